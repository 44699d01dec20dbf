package base

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lweidner/akv/rpc/common"
)

// silentConnector dials plain TCP without any protocol upgrades.
type silentConnector struct{}

func (c *silentConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

func (c *silentConnector) GetName() string { return "tcp-test" }

func (c *silentConnector) UpgradeConnection(_ net.Conn, _ common.ClientConfig) error {
	return nil
}

// startSilentServer accepts connections and discards everything it reads
// without ever answering, keeping every request in flight forever.
func startSilentServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				_, _ = io.Copy(io.Discard, conn)
				_ = conn.Close()
			}()
		}
	}()

	return listener.Addr().String()
}

func newTestTransport(t *testing.T, addr string) *clientTransport {
	t.Helper()

	tr := NewBaseClientTransport(&silentConnector{}).(*clientTransport)
	config := common.ClientConfig{
		// No client-side timeout, requests only resolve via response,
		// explicit timeout or shutdown
		TimeoutSecond: 0,
		Transport: common.ClientTransportConfig{
			Endpoints: []string{addr},
		},
	}
	if err := tr.Connect(config); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return tr
}

// TestCloseResolvesPendingRequests checks that a request without a timeout
// whose response never arrives is resolved by Close instead of hanging
// forever.
func TestCloseResolvesPendingRequests(t *testing.T) {
	tr := newTestTransport(t, startSilentServer(t))

	done := make(chan error, 1)
	tr.SendAsync(1, []byte("request"), 0, func(_ []byte, err error) {
		done <- err
	})

	// Let the frame reach the wire before tearing down
	time.Sleep(50 * time.Millisecond)

	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error for a request cut off by Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion did not fire after Close")
	}
}

// TestSendAsyncAfterClose checks that sends on a closed transport fail fast.
func TestSendAsyncAfterClose(t *testing.T) {
	tr := newTestTransport(t, startSilentServer(t))

	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	done := make(chan error, 1)
	tr.SendAsync(1, []byte("request"), 0, func(_ []byte, err error) {
		done <- err
	})

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error on a closed transport")
		}
	case <-time.After(time.Second):
		t.Fatal("completion did not fire on a closed transport")
	}
}

// TestConcurrentSendAsyncAndClose races sends against Close and checks that
// every issued completion fires exactly once.
func TestConcurrentSendAsyncAndClose(t *testing.T) {
	tr := newTestTransport(t, startSilentServer(t))

	var (
		wg        sync.WaitGroup
		issued    atomic.Int64
		completed atomic.Int64
	)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 64; n++ {
				issued.Add(1)
				tr.SendAsync(1, []byte("request"), 0, func(_ []byte, _ error) {
					completed.Add(1)
				})
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	if err := tr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	wg.Wait()

	// Completions may still be in flight right after Close returns
	deadline := time.Now().Add(2 * time.Second)
	for completed.Load() != issued.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got, want := completed.Load(), issued.Load(); got != want {
		t.Errorf("completions = %d, want %d", got, want)
	}
}
