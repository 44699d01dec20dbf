package raft

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/document/raft/internal"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("document")
)

// collectionImpl is the concrete implementation of the replicated collection.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type collectionImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewReplicatedCollection creates a new collection instance which uses raft consensus to ensure
// strict linearizability across multiple nodes. The raft log index serves as the write index,
// so CAS values are assigned by consensus and identical on every replica.
func NewReplicatedCollection(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) document.ICollection {
	cs := nh.GetNoOPSession(shardID)
	return &collectionImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// effectiveTimeout returns the per operation timeout if one was requested,
// otherwise the collection default.
func (c *collectionImpl) effectiveTimeout(opTimeout time.Duration) time.Duration {
	if opTimeout > 0 {
		return opTimeout
	}
	return c.timeout
}

// write serializes a Command and sends it via SyncPropose.
// On success it returns the CAS of the revision the command created.
func (c *collectionImpl) write(cmd internal.Command, opTimeout time.Duration) (uint64, error) {
	timeout := c.effectiveTimeout(opTimeout)
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		res, err := c.nh.SyncPropose(ctx, c.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(timeout / 10)
			continue
		}

		if err != nil {
			return 0, document.NewError(engine.StatusInternal, err.Error())
		}
		if res.Value != uint64(engine.StatusOK) {
			return 0, document.NewError(engine.Status(res.Value), string(res.Data))
		}
		if len(res.Data) != 8 {
			return 0, document.NewError(engine.StatusInternal,
				fmt.Sprintf("malformed mutation result: %d bytes", len(res.Data)))
		}
		return binary.BigEndian.Uint64(res.Data), nil
	}
	return 0, document.NewError(engine.StatusTimeout, "timeout")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function retries up to 5 times.
//
// It returns the response of type R and an error (nil on success).
func read[R any](c *collectionImpl, q internal.Query, opTimeout time.Duration, stale bool) (R, error) {
	var zero R
	timeout := c.effectiveTimeout(opTimeout)
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = c.nh.StaleRead(c.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			res, err = c.nh.SyncRead(ctx, c.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(timeout / 10)
			continue
		}

		if err != nil {
			var ce *document.Error
			if errors.As(err, &ce) {
				return zero, ce
			}
			return zero, document.NewError(engine.StatusInternal, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, document.NewError(engine.StatusInternal,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, document.NewError(engine.StatusTimeout, "timeout")
}

// store is the shared path of the three conditional store methods.
func (c *collectionImpl) store(id string, content []byte, flags uint32, t internal.CommandType, opts document.StoreOptions) (*document.MutationResult, error) {
	cas, err := c.write(internal.Command{
		Type:   t,
		Flags:  flags,
		Cas:    opts.Cas,
		Expiry: opts.Expiry,
		Key:    id,
		Value:  content,
	}, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return &document.MutationResult{Cas: cas}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see document/interface.go)
// --------------------------------------------------------------------------

func (c *collectionImpl) Get(id string, opts document.GetOptions) (*document.GetResult, bool, error) {
	res, err := read[internal.QueryResult](c, internal.Query{
		Type: internal.QueryTGet,
		Key:  id,
	}, opts.Timeout, false)
	if err != nil {
		return nil, false, err
	}
	if !res.Ok {
		return nil, false, nil
	}
	return &document.GetResult{
		Content: res.Value,
		Flags:   res.Flags,
		Cas:     res.Cas,
	}, true, nil
}

func (c *collectionImpl) Upsert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	return c.store(id, content, flags, internal.CommandTUpsert, opts)
}

func (c *collectionImpl) Insert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	return c.store(id, content, flags, internal.CommandTInsert, opts)
}

func (c *collectionImpl) Replace(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	return c.store(id, content, flags, internal.CommandTReplace, opts)
}

func (c *collectionImpl) Remove(id string, opts document.RemoveOptions) (*document.MutationResult, error) {
	cas, err := c.write(internal.Command{
		Type: internal.CommandTRemove,
		Cas:  opts.Cas,
		Key:  id,
	}, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return &document.MutationResult{Cas: cas}, nil
}

func (c *collectionImpl) Exists(id string) (bool, error) {
	return read[bool](c, internal.Query{
		Type: internal.QueryTExists,
		Key:  id,
	}, 0, false)
}

func (c *collectionImpl) GetEngineInfo() (engine.EngineInfo, error) {
	return read[engine.EngineInfo](
		c,
		internal.Query{
			Type: internal.QueryTGetEngineInfo,
		},
		0,
		true, // Note: allow for stale reads
	)
}
