package transport

import (
	"time"

	"github.com/lweidner/akv/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response
type ServerHandleFunc func(shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a RPCServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// CompletionFunc is called exactly once when an asynchronous request finishes,
// either with the response bytes or with an error.
type CompletionFunc func(resp []byte, err error)

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and blocks until the response arrives
	Send(shardId uint64, req []byte) (resp []byte, err error)
	// SendAsync sends a request without blocking. The complete callback is
	// invoked exactly once, from a transport goroutine, when the response
	// arrives, the request times out, or the send fails. A timeout of 0 uses
	// the transport's configured default.
	SendAsync(shardId uint64, req []byte, timeout time.Duration, complete CompletionFunc)
	// Close closes the transport connection
	Close() error
}
