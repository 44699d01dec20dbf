// Package local implements a local, in-memory, single-node document
// collection based on the document.ICollection interface. It provides a
// thin wrapper around any engine.IEngine implementation with automatic
// write index management. Data is stored entirely in memory and is not
// persisted between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Direct integration with engine.IEngine implementations
//   - Automatic write index (and thereby CAS) progression using atomic operations
//   - Feature detection to handle unsupported operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Write Index Management: The collection maintains an atomic counter
//     that increments with each mutation. The allocated index becomes the
//     new revision's CAS value, so CAS values are unique per mutation and
//     totally ordered.
//
//   - Feature Detection: Before executing operations, the collection checks
//     if the underlying engine supports the requested feature through the
//     SupportsFeature method. Unsupported operations return
//     StatusUnsupported errors rather than failing silently.
//
//   - Composition Architecture: The document.EngineFactory function injects
//     the underlying engine, so the collection works with any
//     engine.IEngine-compatible implementation without modification.
//
// Usage Example:
//
//	// Create a collection with a cedar engine backend
//	factory := func() engine.IEngine { return cedar.NewCedarEngine(nil) }
//	coll := local.NewLocalCollection(factory)
//
//	// Store a document that expires after 300 logical ticks
//	res, err := coll.Upsert("session:123", sessionData, 0, document.StoreOptions{Expiry: 300})
//
//	// Retrieve the document
//	result, found, err := coll.Get("session:123", document.GetOptions{})
//
// For distributed scenarios requiring consensus across multiple nodes,
// consider using the raft package instead, which provides a RAFT-based
// implementation of the same interface with strong consistency guarantees.
package local
