// Package engine provides a standardized interface for document storage
// engine implementations. It defines the IEngine interface that allows for
// consistent interaction with various storage backends while abstracting
// implementation details.
//
// The package focuses on:
//   - A unified interface for conditional document operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - IEngine Interface: The core interface that all engine implementations
//     must satisfy. It provides conditional write semantics through a single
//     Store method (upsert, insert, replace via StoreMode), CAS guarded
//     mutations, read operations (Get, Exists), metadata retrieval (GetInfo)
//     and persistence operations (Save, Load).
//
//   - Status Codes: Every mutation reports a Status. Conditional failures
//     (StatusKeyNotFound, StatusKeyExists, StatusCasMismatch) are ordinary
//     outcomes, not errors, and must leave the stored document untouched.
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method.
//     This allows clients to discover supported operations at runtime.
//
//   - Engine Information: The EngineInfo structure provides standardized
//     reporting on engine state, including size statistics, implementation
//     type and implementation-specific metadata. Note: For most
//     implementations all size statistics will be estimated since a precise
//     calculation can be expensive.
//
// Note on Time-Based Operations:
//   - Write Operations and Time-Tracking: All write operations require a
//     write-index parameter that serves as a logical timestamp. The
//     write-index records when a document was mutated, doubles as the
//     document's CAS value, and is used to calculate expiry deadlines
//     (by adding the ttl offset to the current write-index).
//   - Read Operations: Read methods do not accept a time-index parameter as
//     they always operate against the most recently set write-index.
//   - Manual Time Advancement: If the caller needs to advance the logical
//     time without performing a write operation, the SetWriteIdx() method
//     should be used.
//   - Monotonicity Guarantee: All implementations must ensure that the
//     write-index only increases monotonically. Attempts to set a
//     write-index lower than the current one must be ignored.
//
// Note on Expiry and Garbage Collection:
//   - A document whose expiry deadline has passed behaves exactly as if it
//     was removed: Get() and Exists() must not report it, and a subsequent
//     Insert of the same key must succeed.
//   - Implementations may collect expired documents lazily in the
//     background, but the logical state visible through the interface must
//     never lag behind the write-index.
//
// Related Packages:
//
// The cedar package (github.com/lweidner/akv/lib/engine/cedar) provides a
// high-performance implementation of the IEngine interface using a sharded
// in-memory architecture with lock-free data structures and background
// expiry collection.
//
// The util package (github.com/lweidner/akv/lib/engine/util) provides
// complementary tools for engine implementations:
//   - SizeHistogram: Utilities for analyzing document size distributions
//   - MapHeap: A keyed priority queue for expiry tracking
//   - LockFreeMPSC: A lock-free multi-producer single-consumer queue
//
// The testing package (github.com/lweidner/akv/lib/engine/testing) provides
// standardized tests and benchmarks for engine implementations:
//   - RunEngineTests: Runs a standardized conformance suite
//   - RunEngineBenchmarks: Provides performance benchmarks for comparisons
package engine
