// Package document provides a high-level interface for document storage
// operations with conditional write semantics, CAS guards, expiry and
// unified error handling. It serves as an abstraction layer over the
// lower-level engine.IEngine implementations, adding write index management
// and standardized error reporting.
//
// The package focuses on:
//   - A unified interface (ICollection) for document operations across backends
//   - Pluggable storage backend architecture through the EngineFactory pattern
//
// Key Components:
//
//   - ICollection Interface: The core abstraction defining the document
//     operations Get, Upsert, Insert, Replace, Remove and Exists. Upsert
//     stores unconditionally, Insert only if the id is absent, Replace only
//     if it is present. Replace and Remove accept an optional CAS guard that
//     must match the stored revision. All implementations share this common
//     interface, allowing applications to switch between backends without
//     code changes.
//
//   - Results: Get returns a GetResult (content, flags, CAS); every
//     successful mutation returns a MutationResult carrying the CAS of the
//     revision it created. CAS values are the engine's write indices: unique
//     per mutation and totally ordered.
//
//   - Error System: A structured error reporting mechanism using engine
//     status codes and descriptive messages. Conditional failures
//     (StatusKeyExists, StatusKeyNotFound, StatusCasMismatch) are reported
//     through this system so applications can react to specific conditions
//     rather than generic errors.
//
//   - EngineFactory: A function type that abstracts the creation of
//     underlying engine.IEngine instances, providing dependency injection
//     and flexible configuration of storage backends.
//
// Implementations:
//
//	The package includes two implementations of the ICollection interface:
//
//	- Local Collection (local): A simple, non-distributed implementation
//	  that directly drives an engine.IEngine instance. It manages write
//	  index progression internally using atomic operations. Suitable for
//	  single-node deployments.
//	  Available in the "github.com/lweidner/akv/lib/document/local" package.
//
//	- Replicated Collection (raft): An implementation built on the
//	  Dragonboat RAFT consensus library. It replicates mutations across
//	  multiple nodes with strong consistency guarantees and uses the raft
//	  log index as the write index. Appropriate for multi-node deployments
//	  requiring fault tolerance.
//	  Available in the "github.com/lweidner/akv/lib/document/raft" package.
package document
