package local

import (
	"fmt"
	"sync/atomic"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
)

type collectionImpl struct {
	engine engine.IEngine
	index  atomic.Uint64
}

// NewLocalCollection creates a new local collection instance.
// This collection implementation is not distributed and only works on a
// single node. It drives an engine from the engine package directly and
// generates write indices (and thereby CAS values) from an atomic counter.
func NewLocalCollection(factory document.EngineFactory) document.ICollection {
	return &collectionImpl{
		engine: factory(),
		index:  atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (c *collectionImpl) incAndGetIndex() uint64 {
	return c.index.Add(1)
}

// store is the shared implementation behind Upsert, Insert and Replace.
func (c *collectionImpl) store(id string, content []byte, flags uint32, mode engine.StoreMode, expiry, cas uint64) (*document.MutationResult, error) {
	newCas, status := c.engine.Store(id, content, flags, c.incAndGetIndex(), expiry, mode, cas)
	if status != engine.StatusOK {
		return nil, document.NewError(status, fmt.Sprintf("%s of %q failed", mode, id))
	}
	return &document.MutationResult{Cas: newCas}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see document/interface.go)
// --------------------------------------------------------------------------

func (c *collectionImpl) Get(id string, _ document.GetOptions) (*document.GetResult, bool, error) {
	if !c.engine.SupportsFeature(engine.FeatureGet) {
		return nil, false, document.NewError(engine.StatusUnsupported, "Get operation is not supported")
	}
	content, flags, cas, found := c.engine.Get(id)
	if !found {
		return nil, false, nil
	}
	return &document.GetResult{Content: content, Flags: flags, Cas: cas}, true, nil
}

func (c *collectionImpl) Upsert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	if !c.engine.SupportsFeature(engine.FeatureUpsert) {
		return nil, document.NewError(engine.StatusUnsupported, "Upsert operation is not supported")
	}
	return c.store(id, content, flags, engine.ModeUpsert, opts.Expiry, 0)
}

func (c *collectionImpl) Insert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	if !c.engine.SupportsFeature(engine.FeatureInsert) {
		return nil, document.NewError(engine.StatusUnsupported, "Insert operation is not supported")
	}
	return c.store(id, content, flags, engine.ModeInsert, opts.Expiry, 0)
}

func (c *collectionImpl) Replace(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	if !c.engine.SupportsFeature(engine.FeatureReplace) {
		return nil, document.NewError(engine.StatusUnsupported, "Replace operation is not supported")
	}
	return c.store(id, content, flags, engine.ModeReplace, opts.Expiry, opts.Cas)
}

func (c *collectionImpl) Remove(id string, opts document.RemoveOptions) (*document.MutationResult, error) {
	if !c.engine.SupportsFeature(engine.FeatureRemove) {
		return nil, document.NewError(engine.StatusUnsupported, "Remove operation is not supported")
	}
	idx := c.incAndGetIndex()
	status := c.engine.Remove(id, idx, opts.Cas)
	if status != engine.StatusOK {
		return nil, document.NewError(status, fmt.Sprintf("Remove of %q failed", id))
	}
	return &document.MutationResult{Cas: idx}, nil
}

func (c *collectionImpl) Exists(id string) (bool, error) {
	if !c.engine.SupportsFeature(engine.FeatureExists) {
		return false, document.NewError(engine.StatusUnsupported, "Exists operation is not supported")
	}
	return c.engine.Exists(id), nil
}

func (c *collectionImpl) GetEngineInfo() (engine.EngineInfo, error) {
	return c.engine.GetInfo(), nil
}
