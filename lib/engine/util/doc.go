// Package util provides utility components for
// storage engine implementations that satisfy the engine.IEngine interface.
//
// The package contains:
//   - statistics: Utility tools for analyzing engine characteristics and a SizeHistogram for tracking document size distribution
//   - functions: Hash functions and other utility functions
//   - mapheap: A priority queue implementation for expiry collection that also supports key-based access
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue implementation built for high throughput and low latency
//
// This package is particularly useful for:
//   - Engine developers implementing the IEngine interface
//   - Implementation of expiry collection or other priority queue systems
//   - Monitoring systems that need to track engine size and distribution metrics
//
// Each component is designed to work with any implementation of the engine.IEngine interface,
// allowing for consistent validation and measurement across different storage backends.
package util
