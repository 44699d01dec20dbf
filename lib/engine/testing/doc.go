// Package testing provides standardised tests and benchmarks for
// engine implementations that satisfy the engine.IEngine interface.
//
// The package contains:
//   - testing: A conformance suite validating the IEngine interface contract,
//     including conditional store semantics, CAS guards and expiry behavior
//   - benchmark: Performance tests for measuring throughput of common operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() engine.IEngine {
//		return NewMyEngine()
//	}
//
//	// Running the standard test suite
//	testing.RunEngineTests(t, "MyEngine", factory)
//
//	// Running performance benchmarks
//	testing.RunEngineBenchmarks(b, "MyEngine", factory)
package testing
