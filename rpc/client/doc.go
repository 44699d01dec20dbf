// Package client implements the RPC clients for the distributed document
// store. Every operation is modelled as a single-use request object that is
// encoded into a wire message and resolved asynchronously through a
// completion channel.
//
// The package focuses on:
//   - Typed request objects (Get, Upsert, Insert, Replace, Remove, Exists,
//     Info, Acquire, Release) constructed with all their fields and consumed
//     exactly once
//   - An Instance that dispatches queued requests to the transport without
//     blocking the submitter
//   - Synchronous facades implementing document.ICollection and
//     dlock.ILockManager on top of the asynchronous core
//
// Key Components:
//
//   - IRequest: The dispatch interface. Encode builds the wire message,
//     Timeout reports the per-request deadline and Complete resolves the
//     request with the response or an error. Each concrete request buffers
//     its outcome in a channel exposed via Done(), so Complete never blocks
//     the transport goroutine that calls it.
//
//   - Instance: Owns the connection to one shard. Requests are submitted
//     into a queue and consumed by a dispatch goroutine that serializes each
//     message and issues it via the transport's SendAsync, handing the
//     request's Complete method along as the completion callback. Closing
//     the instance fails queued requests with ErrInstanceClosed.
//
//   - Collection: Implements document.ICollection by submitting a request
//     and waiting on its Done channel. The XxxAsync variants return the
//     in-flight request instead, letting callers pipeline operations and
//     collect outcomes later.
//
//   - LockManager: Implements dlock.ILockManager the same way for the lock
//     message types.
//
// Error Handling:
//
//	Server-side failures travel as status codes in the response message; the
//	instance rebuilds them into document.Error values, so a remote CAS
//	mismatch is indistinguishable from a local one. Serialization failures
//	resolve the request with an encoding status instead of failing the
//	dispatch loop.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	coll, _ := client.NewRPCCollection(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer coll.Close()
//
//	// Synchronous use
//	coll.Upsert("doc-1", []byte(`{"n":1}`), 0, document.StoreOptions{})
//	result, found, _ := coll.Get("doc-1", document.GetOptions{})
//
//	// Asynchronous use
//	req, _ := coll.UpsertAsync("doc-2", []byte(`{"n":2}`), 0, document.StoreOptions{})
//	// ... do other work ...
//	outcome := <-req.Done()
//
// Thread Safety:
//
//	Instances and their facades are safe for concurrent use. Individual
//	request objects are not; they are consumed exactly once.
package client
