package internal

import (
	"fmt"

	"github.com/lweidner/akv/lib/engine/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Event Types are used to signal changes in the engine state
// --------------------------------------------------------------------------

type EventType int

const (
	EventTWrite EventType = iota
	EventTRemove
)

func (e EventType) String() string {
	switch e {
	case EventTWrite:
		return "Write"
	case EventTRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type EventType
	Key  util.UintKey
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Key: %d}", e.Type, e.Key)
}

// --------------------------------------------------------------------------
// Document Type (stored value with metadata)
// --------------------------------------------------------------------------

// Document stores a value with its metadata
type Document struct {
	Value    []byte // document content
	Flags    uint32 // opaque application flags stored alongside the content
	ExpireAt uint64 // logical expiry deadline, 0 = no expiry
	Cas      uint64 // write index of the mutation that created this revision
}

// Expired returns whether the document is logically expired at the given
// write index. An expired document behaves as if it was removed.
func (d Document) Expired(writeIdx uint64) bool {
	return d.ExpireAt != 0 && writeIdx >= d.ExpireAt
}

// --------------------------------------------------------------------------
// Shard Type (partition of the engine)
// --------------------------------------------------------------------------

// Shard represents a partition of the engine
// Each shard has its own independent map, TTL heap and event queue
type Shard struct {
	Data    *xsync.MapOf[util.UintKey, Document] // map of active documents
	TTLHeap *util.MapHeap                        // pending expiries, smallest deadline first
	Events  *util.LockFreeMPSC[Event]
}

// NewShard creates a new shard with the provided hash function
func NewShard(hasher func(util.UintKey, uint64) uint64) *Shard {
	return &Shard{
		Data:    xsync.NewMapOfWithHasher[util.UintKey, Document](hasher),
		TTLHeap: util.NewMapHeap(),
		Events:  util.NewLockFreeMPSC[Event](), // this queue is closed to stop the gc per shard
	}
}

// GetShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
