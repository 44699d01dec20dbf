// Package dlock implements a locking mechanism on top of document
// collections that implement the document.ICollection interface. It provides
// a simple yet robust way to coordinate access to shared resources across
// multiple processes or nodes.
//
// The lock manager only ever stores in the provided collection and has no
// other internal state. Therefore it is safe to be created multiple times on
// the same collection. It is even possible to create a new lock manager for
// every acquire and or release operation. As long as the same collection is
// used every time, all locks will work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lock expiration through configurable timeouts
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic conditional operations
//	of the underlying collection. Specifically:
//
//	- Lock Acquisition: Attempts to create a document using Insert, which
//	  only succeeds if the id is absent, so exactly one contender can win.
//	  The content is a randomly generated owner ID that identifies the
//	  lock holder.
//
//	- Timeouts: Locks can be configured with an optional expiry that
//	  automatically releases the lock after the specified period,
//	  preventing deadlocks if a client crashes.
//
//	- Safe Release: The ReleaseLock operation first verifies that the
//	  requester is the legitimate owner of the lock by comparing owner IDs,
//	  then removes the document guarded by the CAS of the revision it
//	  inspected. A lock that expired and was re-acquired between the Get and
//	  the Remove carries a different CAS, so the guard prevents releasing a
//	  lock now held by someone else.
//
// Thread Safety:
//
//	The lock manager is as thread-safe as the underlying document.ICollection
//	implementation. All operations are performed through the collection
//	interface, which typically provides thread safety guarantees.
//
// Distributed Considerations:
//
//	When used with a replicated collection implementation like raft, the
//	lock manager provides true distributed locking with consensus-based
//	guarantees. This enables coordination across multiple nodes in a cluster
//	while maintaining strong consistency properties.
//
// Usage Example:
//
//	// Create a lock provider with a collection backend
//	lockProvider := dlock.NewLockManager(coll)
//
//	// Acquire a lock with a timeout
//	acquired, ownerID, err := lockProvider.AcquireLock("resource:123", 30)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    // Release the lock when done
//	    released, err := lockProvider.ReleaseLock("resource:123", ownerID)
//	    if err != nil {
//	        // Handle error
//	    }
//	}
//
// Security Considerations:
//
//	The lock mechanism uses randomly generated owner IDs, which provides
//	reasonable protection against accidental lock stealing. However, it is
//	not designed to resist malicious attacks, as an attacker with access to
//	the underlying collection could potentially manipulate lock data directly.
//
// Performance Impact:
//
//	Lock operations require 1-2 collection operations each:
//	- AcquireLock: One Insert
//	- ReleaseLock: One Get followed by a CAS-guarded Remove
//
//	The performance characteristics therefore depend primarily on the
//	underlying collection implementation.
package dlock
