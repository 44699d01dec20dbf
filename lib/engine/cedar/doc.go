// Package cedar implements a high-performance in-memory document engine
// with advanced concurrency control and logical expiry. It provides a
// complete implementation of the engine.IEngine interface with a focus on
// thread safety, performance, and memory efficiency.
//
// The package focuses on:
//   - Optimized concurrent access through sharding and lock-free data structures
//   - Conditional writes (upsert, insert, replace) with CAS guards
//   - Logical, tick-based document expiry with background collection
//   - Persistent storage with fuzzy snapshots and efficient binary encoding
//   - Metrics and statistics for monitoring
//
// Key Components:
//
//   - cedarImpl: The central engine structure implementing engine.IEngine.
//     It manages shards, coordinates garbage collection, and provides the
//     public API for document operations. The engine does not generate the
//     write index itself but delegates this responsibility to the caller, so
//     the index source can be an atomic counter for a local engine or the
//     raft log index for a replicated one.
//
//   - Shard: A partition of the engine that manages a subset of the key
//     space. Each shard contains its own document map, a TTL heap for
//     pending expiries and an event queue. Shards operate independently to
//     minimize contention. Keys are distributed across shards using a
//     seeded hash function to ensure even distribution.
//
//   - Document: The core structure for storing values and metadata. Each
//     document carries the byte value, the application flags, the expiry
//     deadline and the CAS value (the write index of the mutation that
//     created the revision). The CAS field also drives stale write
//     detection.
//
//   - Event System: A lock-free multi-producer single-consumer event queue
//     that coordinates garbage collection across shards. Events are
//     generated when documents with a deadline are written or when
//     documents are removed, and are processed by the collector to keep the
//     TTL heap current.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: String keys are converted to 64-bit integers using
//     a seeded FNV-1a hash, then right-shifted by 7 bits to use
//     higher-quality bits for shard selection.
//
//   - Write Index: A logical timestamp that orders mutations. The index is
//     monotonically increased and atomically updated using CompareAndSwap
//     operations. It detects and rejects stale writes, determines when
//     documents expire, and doubles as the CAS value reported to callers.
//
//   - Conditional Writes: The StoreMode parameter selects between
//     unconditional upsert, insert-if-absent and replace-if-present
//     semantics. Replace and Remove additionally accept a CAS guard that
//     must match the stored revision. All conditions are evaluated inside a
//     single atomic Compute call per key, so a failed condition can never
//     leave a partial write behind.
//
//   - Expiry: A ttl greater than zero schedules the document for removal
//     ttl logical ticks after its write index. An expired document is
//     invisible to Get and Exists immediately, regardless of when the
//     background collector physically removes it.
//
//   - Persistence Format: A compact binary format:
//     1. Magic number "CEDARDB\x00" to identify the file format
//     2. Version number (currently 1)
//     3. Engine seed value for hash function consistency
//     4. Number of documents
//     5. For each document: key hash, flags, expiry deadline, cas,
//     value length, value bytes
//     Note: Save creates a fuzzy snapshot without locking the engine; it is
//     on the caller to ensure a consistent cut when one is required (the
//     replicated collection does this by saving from the raft snapshot
//     callback).
//
// Garbage Collection:
//
//   - One collector goroutine runs per shard. Writes with a deadline push an
//     event to the shard's queue; the collector drains the queue into the
//     TTL heap and then removes every document whose deadline has passed.
//     The heaps are only ever touched by their shard's collector goroutine,
//     so no locking is needed on them.
//
//   - Since collection is asynchronous, Get and Exists double-check the
//     expiry deadline themselves and never report an expired document, even
//     if it is still physically present pending collection.
package cedar
