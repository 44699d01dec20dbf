package internal

import (
	"encoding/binary"
	"fmt"

	"github.com/lweidner/akv/lib/engine"
)

// CommandType defines the possible mutations for the state machine.
type CommandType uint8

const (
	CommandTUpsert  CommandType = iota // Store a document unconditionally.
	CommandTInsert                     // Store a document only if the id is absent.
	CommandTReplace                    // Store a document only if the id is present.
	CommandTRemove                     // Remove a document.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTUpsert:
		return "Upsert"
	case CommandTInsert:
		return "Insert"
	case CommandTReplace:
		return "Replace"
	case CommandTRemove:
		return "Remove"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToEngineFeature converts a CommandType to the corresponding engine.Feature.
// This can be used for checking if the engine supports a certain operation.
func (ct CommandType) ToEngineFeature() (engine.Feature, error) {
	switch ct {
	case CommandTUpsert:
		return engine.FeatureUpsert, nil
	case CommandTInsert:
		return engine.FeatureInsert, nil
	case CommandTReplace:
		return engine.FeatureReplace, nil
	case CommandTRemove:
		return engine.FeatureRemove, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// ToStoreMode converts a store command to the engine.StoreMode it applies with.
// Only valid for the three store commands.
func (ct CommandType) ToStoreMode() (engine.StoreMode, error) {
	switch ct {
	case CommandTUpsert:
		return engine.ModeUpsert, nil
	case CommandTInsert:
		return engine.ModeInsert, nil
	case CommandTReplace:
		return engine.ModeReplace, nil
	default:
		return 0, fmt.Errorf("command type %s is not a store command", ct)
	}
}

// Command represents a mutation to be executed by the state machine
// (a single entry in the raft log)
type Command struct {
	Type   CommandType
	Flags  uint32
	Cas    uint64 // optional CAS guard, 0 = unguarded
	Expiry uint64 // ttl in logical ticks, 0 = no expiry
	Key    string
	Value  []byte
}

// headerSize is the fixed prefix of a serialized command:
// Type + Flags + Cas + Expiry + KeyLen
const headerSize = 1 + 4 + 8 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := headerSize + len(command.Key)
	if command.Value != nil {
		size += len(command.Value)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 4 bytes for flags (big endian),
// 8 bytes for the cas guard,
// 8 bytes for the expiry,
// 4 bytes for key length (big endian),
// N bytes for key data,
// N bytes for value data (optional)
func (command *Command) Serialize() []byte {
	totalSize := command.SizeBytes()

	result := make([]byte, totalSize)

	// Set operation type
	result[0] = byte(command.Type)

	// Set flags, cas and expiry
	binary.BigEndian.PutUint32(result[1:5], command.Flags)
	binary.BigEndian.PutUint64(result[5:13], command.Cas)
	binary.BigEndian.PutUint64(result[13:21], command.Expiry)

	// Set key length (4 bytes, big endian)
	binary.BigEndian.PutUint32(result[21:25], uint32(len(command.Key)))

	// Copy key bytes
	keyBytes := []byte(command.Key)
	copy(result[headerSize:headerSize+len(keyBytes)], keyBytes)

	// Copy value if present
	if command.Value != nil {
		copy(result[headerSize+len(keyBytes):], command.Value)
	}

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	// Extract operation type
	command.Type = CommandType(data[0])

	// Extract flags, cas and expiry
	command.Flags = binary.BigEndian.Uint32(data[1:5])
	command.Cas = binary.BigEndian.Uint64(data[5:13])
	command.Expiry = binary.BigEndian.Uint64(data[13:21])

	// Extract key length
	keyLen := binary.BigEndian.Uint32(data[21:25])

	// Validate key length
	if len(data) < headerSize+int(keyLen) {
		return fmt.Errorf("data too short for key of length %d", keyLen)
	}

	// Extract key
	command.Key = string(data[headerSize : headerSize+keyLen])

	// Extract value if present
	if len(data) > headerSize+int(keyLen) {
		valueLen := len(data) - (headerSize + int(keyLen))
		// Reuse existing buffer if possible to reduce allocations
		if command.Value == nil || cap(command.Value) < valueLen {
			command.Value = make([]byte, valueLen)
		} else {
			command.Value = command.Value[:valueLen]
		}
		copy(command.Value, data[headerSize+int(keyLen):])
	} else {
		command.Value = nil
	}

	return nil
}
