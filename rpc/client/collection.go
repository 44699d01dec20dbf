package client

import (
	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/serializer"
	"github.com/lweidner/akv/rpc/transport"
)

// NewRPCCollection creates a collection client for a single shard. It
// connects the given transport and starts the dispatch goroutine.
// The returned Collection implements document.ICollection; the Async
// variants expose the underlying request objects for callers that do not
// want to block.
func NewRPCCollection(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Collection, error) {

	instance, err := NewInstance(shardId, config, transport, serializer)
	if err != nil {
		return nil, err
	}

	return NewCollection(instance), nil
}

// NewCollection wraps an existing instance. Useful when a collection and a
// lock manager share one connection to the same server process.
func NewCollection(instance *Instance) *Collection {
	return &Collection{instance: instance}
}

// Collection is an RPC-backed document collection.
type Collection struct {
	instance *Instance
}

// Close shuts down the underlying instance and its transport.
func (c *Collection) Close() error {
	return c.instance.Close()
}

// --------------------------------------------------------------------------
// Async Methods
// --------------------------------------------------------------------------

// GetAsync submits a Get and returns the in-flight request.
func (c *Collection) GetAsync(id string, opts document.GetOptions) (*GetRequest, error) {
	req := NewGetRequest(id, opts)
	if err := c.instance.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

// UpsertAsync submits an Upsert and returns the in-flight request.
func (c *Collection) UpsertAsync(id string, content []byte, flags uint32, opts document.StoreOptions) (*UpsertRequest, error) {
	req := NewUpsertRequest(id, content, flags, opts)
	if err := c.instance.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

// InsertAsync submits an Insert and returns the in-flight request.
func (c *Collection) InsertAsync(id string, content []byte, flags uint32, opts document.StoreOptions) (*InsertRequest, error) {
	req := NewInsertRequest(id, content, flags, opts)
	if err := c.instance.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ReplaceAsync submits a Replace and returns the in-flight request.
func (c *Collection) ReplaceAsync(id string, content []byte, flags uint32, opts document.StoreOptions) (*ReplaceRequest, error) {
	req := NewReplaceRequest(id, content, flags, opts)
	if err := c.instance.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

// RemoveAsync submits a Remove and returns the in-flight request.
func (c *Collection) RemoveAsync(id string, opts document.RemoveOptions) (*RemoveRequest, error) {
	req := NewRemoveRequest(id, opts)
	if err := c.instance.Submit(req); err != nil {
		return nil, err
	}
	return req, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the document package in interface.go)
// --------------------------------------------------------------------------

func (c *Collection) Get(id string, opts document.GetOptions) (*document.GetResult, bool, error) {
	req, err := c.GetAsync(id, opts)
	if err != nil {
		return nil, false, err
	}
	outcome := <-req.Done()
	return outcome.Result, outcome.Found, outcome.Err
}

func (c *Collection) Upsert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	req, err := c.UpsertAsync(id, content, flags, opts)
	if err != nil {
		return nil, err
	}
	outcome := <-req.Done()
	return outcome.Result, outcome.Err
}

func (c *Collection) Insert(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	req, err := c.InsertAsync(id, content, flags, opts)
	if err != nil {
		return nil, err
	}
	outcome := <-req.Done()
	return outcome.Result, outcome.Err
}

func (c *Collection) Replace(id string, content []byte, flags uint32, opts document.StoreOptions) (*document.MutationResult, error) {
	req, err := c.ReplaceAsync(id, content, flags, opts)
	if err != nil {
		return nil, err
	}
	outcome := <-req.Done()
	return outcome.Result, outcome.Err
}

func (c *Collection) Remove(id string, opts document.RemoveOptions) (*document.MutationResult, error) {
	req, err := c.RemoveAsync(id, opts)
	if err != nil {
		return nil, err
	}
	outcome := <-req.Done()
	return outcome.Result, outcome.Err
}

func (c *Collection) Exists(id string) (bool, error) {
	req := NewExistsRequest(id)
	if err := c.instance.Submit(req); err != nil {
		return false, err
	}
	outcome := <-req.Done()
	return outcome.Found, outcome.Err
}

func (c *Collection) GetEngineInfo() (engine.EngineInfo, error) {
	req := NewInfoRequest()
	if err := c.instance.Submit(req); err != nil {
		return engine.EngineInfo{}, err
	}
	outcome := <-req.Done()
	return outcome.Info, outcome.Err
}
