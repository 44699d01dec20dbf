package client

import (
	"fmt"
	"sync"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/serializer"
	"github.com/lweidner/akv/rpc/transport"
)

// queueSize bounds the number of requests waiting for dispatch.
const queueSize = 1024

// ErrInstanceClosed resolves requests that were still queued or submitted
// after the instance shut down.
var ErrInstanceClosed = document.NewError(engine.StatusInternal, "instance closed")

// Instance owns the connection to one shard and dispatches requests to it.
// Requests are submitted from any goroutine into an internal queue; a single
// dispatch goroutine encodes them and hands them to the transport, passing
// the request's Complete method as the completion callback. The submitting
// goroutine therefore never blocks on the network.
type Instance struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer

	queue  chan IRequest
	stopCh chan struct{}
	wg     sync.WaitGroup

	// mu orders Submit against Close: stopCh is only closed while the write
	// lock is held, so every request that passed the closed check is in the
	// queue before the dispatch goroutine starts draining.
	mu     sync.RWMutex
	closed bool
}

// NewInstance connects the transport and starts the dispatch goroutine.
func NewInstance(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*Instance, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	i := &Instance{
		shardId:    shardId,
		config:     config,
		transport:  transport,
		serializer: serializer,
		queue:      make(chan IRequest, queueSize),
		stopCh:     make(chan struct{}),
	}

	i.wg.Add(1)
	go i.dispatch()

	return i, nil
}

// Submit queues a request for dispatch. It returns ErrInstanceClosed after
// Close; the request is then not completed and must not be waited on. A nil
// return guarantees the request resolves, even if Close races the submission.
func (i *Instance) Submit(req IRequest) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return ErrInstanceClosed
	}

	// The dispatch goroutine keeps consuming until stopCh closes, and stopCh
	// cannot close while the read lock is held, so this send always proceeds.
	i.queue <- req
	return nil
}

// Close stops the dispatch goroutine, fails all queued requests with
// ErrInstanceClosed and closes the transport.
func (i *Instance) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	close(i.stopCh)
	i.mu.Unlock()

	i.wg.Wait()
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch is the consume loop of the request queue.
func (i *Instance) dispatch() {
	defer i.wg.Done()

	for {
		select {
		case req := <-i.queue:
			i.issue(req)
		case <-i.stopCh:
			// Drain requests that were queued before shutdown.
			for {
				select {
				case req := <-i.queue:
					req.Complete(nil, ErrInstanceClosed)
				default:
					return
				}
			}
		}
	}
}

// issue encodes a request and hands it to the transport. The request's
// completion handle travels with the transport call as an opaque token; the
// transport invokes it exactly once when the response arrives, the timeout
// fires or the send fails.
func (i *Instance) issue(req IRequest) {
	msg := req.Encode()

	// Serialize the request
	data, err := i.serializer.Serialize(*msg)
	if err != nil {
		Logger.Warningf("failed to serialize %s request: %v", msg.MsgType, err)
		req.Complete(nil, document.NewError(engine.StatusEncoding, err.Error()))
		return
	}

	expected := msg.MsgType
	i.transport.SendAsync(i.shardId, data, req.Timeout(), func(respBytes []byte, err error) {
		if err != nil {
			req.Complete(nil, err)
			return
		}

		// Deserialize the response
		resp := &common.Message{}
		if err := i.serializer.Deserialize(respBytes, resp); err != nil {
			req.Complete(nil, document.NewError(engine.StatusEncoding, err.Error()))
			return
		}

		// Error responses carry the status code so the caller gets the same
		// typed error a local collection would have returned.
		if resp.MsgType == common.MsgTError || resp.Err != "" {
			code := engine.Status(resp.ErrCode)
			if code == engine.StatusOK {
				code = engine.StatusInternal
			}
			req.Complete(nil, document.NewError(code, resp.Err))
			return
		}

		// Check if the type of the response is the expected type
		if resp.MsgType != expected {
			req.Complete(nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, expected))
			return
		}

		req.Complete(resp, nil)
	})
}
