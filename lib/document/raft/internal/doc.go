// Package internal provides the communication protocol structures and serialization
// logic for the raft package. It defines the wire format used to transmit operations
// between the collection client and the replicated state machine.
//
// This package is intended for internal use by the raft implementation and should
// not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines mutations (Upsert, Insert, Replace, Remove) that modify
//     the state of the document store. Commands are serialized and proposed to the RAFT
//     cluster, executed on the state machine, and produce results that are returned to
//     the client. The Command structure includes efficient binary serialization.
//
//   - Query System: Defines read operations (Get, Exists, GetEngineInfo) that retrieve
//     data from the store without modifying its state. Queries are executed locally on
//     the state machine and therefore do not require serialization.
//
// Protocol Design:
//
//	The Command serialization format is optimized for:
//
//	- Minimal Size: Commands use a compact binary encoding that minimizes the amount
//	  of data transmitted over the network and stored in the RAFT log.
//
//	- Efficient Parsing: The format is designed for fast serialization and deserialization
//	  with minimal allocations.
//
// Command Format:
//
//	Commands are serialized into a binary format with the following structure:
//
//	- 1 byte: Command type (Upsert, Insert, Replace, Remove)
//	- 4 bytes: Flags value (uint32, big endian)
//	- 8 bytes: CAS guard (uint64, big endian, 0 = unguarded)
//	- 8 bytes: Expiry value (uint64, big endian, 0 = no expiry)
//	- 4 bytes: Key length (uint32, big endian)
//	- N bytes: Key data (string as byte array)
//	- M bytes: Value data (optional, only present for store operations)
//
//	This format ensures efficient storage in the RAFT log while providing all
//	necessary information for the operation.
//
// Query Format:
//
//	Queries use a simpler structure as they are not persisted in the RAFT log:
//
//	- Type: The query operation to perform (Get, Exists, GetEngineInfo)
//	- Key: The id to query (empty for operations like GetEngineInfo)
//
// Type Mapping:
//
//	The package provides mappings between:
//	- Command types and engine.Feature flags for feature detection
//	- Command types and engine.StoreMode values for conditional stores
//	- String representations for logging and debugging
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization. However, this is not
//	typically an issue as the RAFT protocol ensures sequential processing of
//	commands on the state machine.
package internal
