// Package server implements the RPC server for the distributed document store.
// It provides adapters for handling RPC requests to both collection and lock
// manager services, along with the core server implementation that manages
// shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for both collection and lock manager operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration with support for local and replicated collections
//   - Per operation request counters, error counters and duration summaries
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     document.ICollection.
//
//   - NewCollectionServerAdapter: Factory function creating an adapter for document
//     operations, translating RPC requests to document.ICollection method calls.
//
//   - NewLockManagerServerAdapter: Factory function creating an adapter for distributed
//     locking operations, creating a dlock.ILockManager on top of the collection.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalCollection},
//	    {ShardID: 200, Type: common.ShardTypeLocalLockManager},
//	  },
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports four types of shards, which can be mixed within a single server:
//
//   - ShardTypeLocalCollection: A single node collection backed directly by a
//     storage engine, suitable for single-node deployments or development
//     environments.
//
//   - ShardTypeReplicatedCollection: A collection replicated via Raft consensus,
//     providing strong consistency across multiple nodes. When using this type,
//     RAFT configuration (RTTMillisecond, SnapshotEntries, CompactionOverhead,
//     DataDir, ReplicaID, and ClusterMembers) must be properly configured.
//
//   - ShardTypeLocalLockManager: A local lock manager implementation, using a local
//     collection as its backend.
//
//   - ShardTypeReplicatedLockManager: A distributed lock manager implementation using
//     a replicated collection as its backend. When using this type, all RAFT
//     configuration parameters must be properly configured.
//
// Metrics:
//
//	Every handled request updates a request counter, an error counter when the
//	response carries an error, and a duration summary, all labelled with the
//	operation name. The http transport exposes them under GET /metrics in
//	Prometheus exposition format.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Listen method is not thread-safe and should be called only once.
package server
