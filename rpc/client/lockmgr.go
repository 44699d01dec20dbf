package client

import (
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/serializer"
	"github.com/lweidner/akv/rpc/transport"
)

// NewRPCLockManager creates a lock manager client for a single shard. It
// connects the given transport and starts the dispatch goroutine.
// The returned LockManager implements dlock.ILockManager.
func NewRPCLockManager(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*LockManager, error) {

	instance, err := NewInstance(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}

	return NewLockManager(instance), nil
}

// NewLockManager wraps an existing instance.
func NewLockManager(instance *Instance) *LockManager {
	return &LockManager{instance: instance}
}

// LockManager is an RPC-backed distributed lock manager.
type LockManager struct {
	instance *Instance
}

// Close shuts down the underlying instance and its transport.
func (l *LockManager) Close() error {
	return l.instance.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the dlock package in interface.go)
// --------------------------------------------------------------------------

func (l *LockManager) AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error) {
	req := NewAcquireRequest(key, timeout)
	if err := l.instance.Submit(req); err != nil {
		return false, nil, err
	}
	outcome := <-req.Done()
	return outcome.Acquired, outcome.OwnerID, outcome.Err
}

func (l *LockManager) ReleaseLock(key string, ownerID []byte) (ok bool, err error) {
	req := NewReleaseRequest(key, ownerID)
	if err := l.instance.Submit(req); err != nil {
		return false, err
	}
	outcome := <-req.Done()
	return outcome.Released, outcome.Err
}
