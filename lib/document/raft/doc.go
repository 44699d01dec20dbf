// Package raft implements a distributed, fault-tolerant document collection using
// the Dragonboat RAFT consensus library. It provides a strongly consistent implementation
// of the document.ICollection interface that can operate across multiple nodes while
// maintaining linearizable consistency.
//
// Architecture:
//
// The raft implementation consists of three main components:
//
//   - Collection Client: Implements the document.ICollection interface and communicates
//     with the RAFT cluster. It serializes operations into commands, sends them to the
//     consensus layer, and processes responses.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that processes
//     commands and queries on each node. The state machine contains the actual
//     engine.IEngine instance and applies operations to it.
//
//   - Communication Protocol: Defined in the internal package, this consists of Command
//     and Query structures with serialization logic for transmitting operations across
//     the network.
//
// Consensus Model:
//
//	The collection uses Dragonboat's implementation of the RAFT consensus protocol which provides:
//
//	- Strong Consistency: All operations are linearizable, meaning they appear to
//	  execute atomically and in a consistent order across all nodes.
//
//	- Fault Tolerance: The system remains operational as long as a majority of nodes
//	  are functioning. With 2N+1 nodes, up to N node failures can be tolerated.
//
//	- Leader-Based Processing: Mutations are forwarded to the leader node,
//	  replicated to followers, and only considered committed when a majority of nodes
//	  have persisted the operation.
//
// Mutations:
//
//	All mutations (Upsert, Insert, Replace, Remove) follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is executed on the state machine on each node (Update method in statemachine.go)
//	5. The resulting CAS (or the condition failure) is returned to the client
//
//	The write index for all operations is provided by the RAFT log index. Since the
//	CAS of a revision is its write index, CAS values are assigned by consensus and
//	identical on every replica. Conditional failures (StatusKeyExists,
//	StatusKeyNotFound, StatusCasMismatch) are decided deterministically on each node
//	while applying the entry, so all replicas agree on the outcome.
//
// Read Operations:
//
// Read operations (Get, Exists, GetEngineInfo) can be handled in two ways:
//
//   - Linearizable Reads: By default, reads use SyncRead which ensures that the node
//     processing the read has applied all committed log entries locally before processing
//     the request. This guarantees the operation sees the latest committed state of the
//     collection, regardless of which node in the cluster processes the read.
//
//   - Stale Reads: For less critical operations (GetEngineInfo), StaleRead is used,
//     which may return slightly outdated information but with lower latency.
//
// Error Handling and Retries:
//
//	The collection implements automatic retry logic for transient failures:
//
//	- System Busy: When Dragonboat returns ErrSystemBusy, the operation is retried
//	  after a short delay, up to a configurable number of attempts.
//
//	- Timeouts: All operations have a configurable timeout, overridable per call via
//	  the operation options. If consensus cannot be reached within this period, the
//	  operation fails with a timeout error.
//
//	- Feature Compatibility: Before executing operations, the state machine verifies
//	  that the underlying engine.IEngine implementation supports the required features.
//
// Snapshotting and Recovery:
//
// The state machine implements Dragonboat's snapshotting interface to persist its state:
//
//   - Fuzzy Snapshots: The state machine creates snapshots without pausing operations,
//     leveraging the engine's Save method.
//
//   - Recovery: On startup or when joining a cluster, nodes first restore their state
//     from the most recent (fuzzy) snapshot using the engine's Load method. Then, they
//     receive all RAFT log entries that were committed after the snapshot was created
//     from other nodes in the cluster. Entries replayed over newer revisions are
//     suppressed by the engine's stale write check, so this two-phase process ensures
//     that after recovery is complete, the node reaches the same consistent state as
//     all other nodes in the cluster.
//
// Usage:
//
//	Setting up and using the replicated collection requires several steps:
//
//	1. Initialize Dragonboat NodeHost (RAFT client)
//	2. Create an engine factory function
//	3. Start a RAFT replica with the state machine factory
//	4. Create the collection with appropriate timeout
//	5. Begin operations once the shard is ready
//
//	Example:
//
//	  // Create NodeHost (RAFT client)
//	  nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	  if err != nil { ... }
//
//	  // Engine factory for the state machine
//	  engineFactory := func() engine.IEngine { return cedar.NewCedarEngine(nil) }
//
//	  // Create and start shard (RAFT server)
//	  err := nh.StartConcurrentReplica(
//	      clusterMembers,
//	      false,
//	      raft.CreateStateMachineFactory(engineFactory),
//	      shardConfig)
//	  if err != nil { ... }
//
//	  // Create collection with appropriate timeout
//	  timeout := time.Duration(5) * time.Second
//	  coll := raft.NewReplicatedCollection(nh, shardID, timeout)
//
//	  // Wait for shard readiness then begin operations
//	  // ...
//
// Performance Considerations:
//
//   - Consensus Overhead: Due to the requirement for replication and majority commitment,
//     distributed operations are significantly slower than local operations.
//
//   - Network Conditions: Operation latency is highly dependent on network conditions
//     between nodes. Timeouts should be adjusted based on expected network performance.
//
// Deployment Recommendations:
//
//   - Node Count: Deploy with an odd number of nodes (typically 3, 5, or 7) to ensure
//     majority consensus is always possible.
//
//   - Geographic Distribution: For maximum fault tolerance, distribute nodes across
//     different failure domains (servers, racks, data centers).
//
// Limitations:
//
//   - Majority Requirement: Operations cannot proceed if a majority of nodes are unavailable
//   - Leader Dependency: Mutations require the leader to be available
//   - Consistency vs. Performance: The strong consistency model introduces performance overhead
//
// For scenarios where distributed consensus is not required, consider using the simpler
// and faster local package, which provides a single-node not-persistent implementation of the
// same interface.
package raft
