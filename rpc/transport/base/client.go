package base

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// errResolved signals that a failed write lost the race against a shutdown
// or reconnect sweep that already resolved the request.
var errResolved = fmt.Errorf("request already resolved")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection based on the provided configuration
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection.
// Requests in flight are tracked in the pending map, keyed by the request ID
// that travels in the frame header. The reader goroutine resolves each entry
// with LoadAndDelete, so every completion fires exactly once even when a
// response races a timeout.
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	pending  *xsync.MapOf[uint64, transport.CompletionFunc]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64      // Atomic counter for Round Robin
	nextRequestID uint64      // Atomic counter for unique request IDs
	stopping      atomic.Bool // Signals shutdown, fails new sends fast
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Close all existing connections
	t.closeConnections()

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	// Create connections
	t.connections = make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)

	// Initialize client connections
	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				conn:     nil, // Will be set by reconnect
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, transport.CompletionFunc](),
				parent:   t,
			}

			// Establish the initial connection using reconnect
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				continue
			}

			// Add to our connections list
			t.connectionsMu.Lock()
			t.connections = append(t.connections, clientConn)
			t.connectionsMu.Unlock()

			Logger.Infof("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)

			// Start the response reader
			go clientConn.readResponses()
		}
	}

	// Check if we have at least one connection
	if len(t.connections) == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Infof("Connected to %d out of %d connections to %d endpoints using %s transport",
		len(t.connections), len(config.Transport.Endpoints)*connectionsPerEP, len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	// Define the send function to be used in retries
	send := func(connection *clientConnection) ([]byte, error) {
		// Create a channel for the response
		respCh := make(chan responseResult, 1)

		requestID, err := t.dispatch(connection, shardId, req, func(data []byte, err error) {
			respCh <- responseResult{data, err}
		})
		if err != nil {
			return nil, err
		}

		// Ensure we clean up when done
		defer connection.pending.Delete(requestID)

		// Wait for response or timeout
		var timeoutCh <-chan time.Time
		if t.config.TimeoutSecond > 0 {
			timeout := time.Duration(t.config.TimeoutSecond) * time.Second
			timeoutCh = time.After(timeout)
		} else {
			timeoutCh = make(chan time.Time) // Never triggers
		}

		select {
		case result := <-respCh:
			return result.data, result.err
		case <-timeoutCh:
			return nil, fmt.Errorf("request timed out")
		}
	}

	// Retry logic with exponential backoff
	var lastErr error

	// We always try at least once, and up to maxRetries times
	maxRetries := t.config.Transport.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		// Try with this connection
		data, err := send(conn)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if i < maxRetries {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			backoffDuration := time.Duration(jitter) * time.Millisecond
			time.Sleep(backoffDuration)
			backoffMs *= 2
		}
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request after %d attempts: %v", t.config.Transport.RetryCount, lastErr)
}

func (t *clientTransport) SendAsync(shardId uint64, req []byte, timeout time.Duration, complete transport.CompletionFunc) {
	conn := t.getNextConnection()
	if conn == nil {
		complete(nil, fmt.Errorf("no active connections available"))
		return
	}

	if timeout <= 0 {
		timeout = time.Duration(t.config.TimeoutSecond) * time.Second
	}

	requestID, err := t.dispatch(conn, shardId, req, complete)
	if err == errResolved {
		return
	}
	if err != nil {
		complete(nil, err)
		return
	}

	// Arm the timeout. Whoever wins the LoadAndDelete race (reader goroutine
	// or this timer) resolves the request, the loser finds the entry gone.
	if timeout > 0 {
		time.AfterFunc(timeout, func() {
			if fn, ok := conn.pending.LoadAndDelete(requestID); ok {
				fn(nil, fmt.Errorf("request timed out"))
			}
		})
	}
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// dispatch registers the completion under a fresh request ID and writes the
// frame. On a write error the entry is removed again and the completion is
// NOT called, the caller decides how to surface the error. When the write
// error races a sweep that already resolved the request, errResolved is
// returned and the caller must not complete it a second time.
func (t *clientTransport) dispatch(connection *clientConnection, shardId uint64, req []byte, complete transport.CompletionFunc) (uint64, error) {
	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	// Register the request before the write so a fast response cannot miss it
	connection.pending.Store(requestID, complete)

	// The connection pointer is swapped by reconnect under connMu, so the
	// validity check, the write deadline and the write itself all happen
	// under the same lock.
	connection.connMu.Lock()
	if connection.conn == nil {
		connection.connMu.Unlock()
		connection.pending.Delete(requestID)
		return 0, fmt.Errorf("connection is closed")
	}

	// Set write timeout
	if t.config.TimeoutSecond > 0 {
		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		connection.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	err := writeFrame(connection.conn, shardId, requestID, req)
	connection.connMu.Unlock()

	if err != nil {
		// Only the side that removes the pending entry may resolve the
		// request; the shutdown sweep can get there first.
		if _, ok := connection.pending.LoadAndDelete(requestID); !ok {
			return 0, errResolved
		}
		return 0, err
	}
	return requestID, nil
}

// getNextConnection selects the next connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	if t.stopping.Load() {
		return nil
	}

	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	if len(t.connections) == 0 {
		return nil
	}

	// Simple Round Robin algorithm
	var index uint64
	if len(t.connections) == 1 {
		// optimize for single connection
		index = 0
	} else {
		index = atomic.AddUint64(&t.nextConnIndex, 1) % uint64(len(t.connections))
	}
	return t.connections[index]
}

// closeConnections closes all active connections and fails their in-flight
// requests. The socket is closed before the sweep, so a dispatch racing the
// close either gets swept here or fails its write and resolves the request
// itself; no registered completion is left behind.
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		// Signal reader goroutine to stop
		close(conn.stopCh)

		// Close the connection
		conn.connMu.Lock()
		if conn.conn != nil {
			conn.conn.Close()
		}
		conn.connMu.Unlock()

		// Resolve requests that will never get a response
		conn.failPending(fmt.Errorf("transport closed"))
	}

	// Empty the list
	t.connections = nil
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		// Check if we should stop
		select {
		case <-c.stopCh:
			return
		default:
			// Continue
		}

		// Set timeout if configured
		if c.parent.config.TimeoutSecond > 0 {
			timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second
			c.conn.SetReadDeadline(time.Now().Add(timeout))
		}

		// Read the response frame. The buffer is allocated per frame so the
		// payload can be handed to the completion without copying.
		shardID, requestID, data, err := readFrame(c.conn, nil)

		// Find the corresponding request, exactly-once via LoadAndDelete
		complete, found := c.pending.LoadAndDelete(requestID)

		if found {
			if err != nil {
				// Send the error to the waiting request
				complete(nil, fmt.Errorf("error reading response: %v", err))
			} else {
				// Send the response to the waiting request
				complete(data, nil)
			}
		} else if err != nil {
			// Error with unknown request ID
			Logger.Errorf("Error reading response with unknown request ID %d: %v", requestID, err)

			// A read error caused by Close is not worth a reconnect
			select {
			case <-c.stopCh:
				return
			default:
			}

			// Try to restore the connection
			if err := c.reconnect(); err != nil {
				Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
				return
			}
		} else {
			// Warning for unknown request ID (e.g. a response that lost the
			// race against its timeout)
			Logger.Warningf("Received response for unknown request ID %d with shard ID %d", requestID, shardID)
		}
	}
}

// failPending resolves every in-flight request on this connection with err.
// LoadAndDelete keeps the exactly-once guarantee against a racing response
// or timeout.
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(requestID uint64, _ transport.CompletionFunc) bool {
		if fn, ok := c.pending.LoadAndDelete(requestID); ok {
			fn(nil, err)
		}
		return true
	})
}

// reconnect establishes or restores a connection to the endpoint
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists. Requests written on it can no
	// longer be answered on the new socket, so they are resolved here.
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.failPending(fmt.Errorf("connection to %s lost", c.endpoint))
	}

	// Connect to the endpoint
	conn, err := c.parent.connector.Connect(c.endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", c.endpoint, err)
	}

	c.conn = conn
	return nil
}
