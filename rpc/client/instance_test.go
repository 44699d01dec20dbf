package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/rpc/common"
	"github.com/lweidner/akv/rpc/serializer"
	"github.com/lweidner/akv/rpc/transport"
)

// fakeTransport resolves every request through a handler func on a separate
// goroutine, mimicking the asynchronous resolution of the real transports.
type fakeTransport struct {
	handler func(shardId uint64, req []byte) ([]byte, error)
}

func (t *fakeTransport) Connect(config common.ClientConfig) error { return nil }

func (t *fakeTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	return t.handler(shardId, req)
}

func (t *fakeTransport) SendAsync(shardId uint64, req []byte, timeout time.Duration, complete transport.CompletionFunc) {
	go func() {
		complete(t.handler(shardId, req))
	}()
}

func (t *fakeTransport) Close() error { return nil }

// echoHandler deserializes the request and answers it from an in-memory map,
// exercising the full encode/decode round trip of the dispatch path.
func echoHandler(ser serializer.IRPCSerializer, docs map[string][]byte) func(uint64, []byte) ([]byte, error) {
	var (
		mu  sync.Mutex
		cas uint64
	)
	return func(shardId uint64, reqBytes []byte) ([]byte, error) {
		req := &common.Message{}
		if err := ser.Deserialize(reqBytes, req); err != nil {
			return nil, err
		}

		mu.Lock()
		defer mu.Unlock()

		var resp *common.Message
		switch req.MsgType {
		case common.MsgTDocGet:
			value, ok := docs[req.Key]
			resp = common.NewGetResponse(value, req.Flags, cas, ok, nil)
		case common.MsgTDocUpsert:
			cas++
			docs[req.Key] = req.Value
			resp = common.NewMutationResponse(req.MsgType, cas, nil)
		case common.MsgTDocInsert:
			if _, ok := docs[req.Key]; ok {
				resp = common.NewMutationResponse(req.MsgType,
					0, document.NewError(engine.StatusKeyExists, "insert failed"))
			} else {
				cas++
				docs[req.Key] = req.Value
				resp = common.NewMutationResponse(req.MsgType, cas, nil)
			}
		case common.MsgTDocExists:
			_, ok := docs[req.Key]
			resp = common.NewExistsResponse(ok, nil)
		default:
			resp = common.NewErrorResponse("unsupported message type")
		}
		return ser.Serialize(*resp)
	}
}

func newTestCollection(t *testing.T, handler func(uint64, []byte) ([]byte, error)) *Collection {
	t.Helper()
	coll, err := NewRPCCollection(1, common.ClientConfig{TimeoutSecond: 1},
		&fakeTransport{handler: handler}, serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	t.Cleanup(func() { _ = coll.Close() })
	return coll
}

// TestInstanceRoundTrip runs the sync facade against a fake server and checks
// that requests and responses survive the full dispatch path.
func TestInstanceRoundTrip(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	coll := newTestCollection(t, echoHandler(ser, map[string][]byte{}))

	result, err := coll.Upsert("doc-1", []byte("content"), 0, document.StoreOptions{})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if result.Cas == 0 {
		t.Error("expected a non-zero cas")
	}

	getResult, found, err := coll.Get("doc-1", document.GetOptions{})
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !found || string(getResult.Content) != "content" {
		t.Errorf("got %q (found=%v), want %q", getResult.Content, found, "content")
	}

	if _, found, _ := coll.Get("missing", document.GetOptions{}); found {
		t.Error("expected missing document to not be found")
	}

	found, err = coll.Exists("doc-1")
	if err != nil || !found {
		t.Errorf("exists = %v, %v, want true, nil", found, err)
	}
}

// TestInstanceTypedErrors checks that status codes survive the wire and come
// back as document errors.
func TestInstanceTypedErrors(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	coll := newTestCollection(t, echoHandler(ser, map[string][]byte{"doc-1": []byte("v")}))

	_, err := coll.Insert("doc-1", []byte("other"), 0, document.StoreOptions{})
	if document.StatusOf(err) != engine.StatusKeyExists {
		t.Errorf("status = %s, want KeyExists", document.StatusOf(err))
	}
}

// TestInstancePipelining submits several requests before collecting any
// outcome.
func TestInstancePipelining(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	coll := newTestCollection(t, echoHandler(ser, map[string][]byte{}))

	var reqs []*UpsertRequest
	for i := 0; i < 16; i++ {
		req, err := coll.UpsertAsync("doc", []byte{byte(i)}, 0, document.StoreOptions{})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		reqs = append(reqs, req)
	}

	for i, req := range reqs {
		outcome := <-req.Done()
		if outcome.Err != nil {
			t.Fatalf("request %d failed: %v", i, outcome.Err)
		}
		if outcome.Result.Cas == 0 {
			t.Errorf("request %d: expected a non-zero cas", i)
		}
	}
}

// TestInstanceTransportError checks that a failed send resolves the request
// instead of losing it.
func TestInstanceTransportError(t *testing.T) {
	coll := newTestCollection(t, func(shardId uint64, req []byte) ([]byte, error) {
		return nil, errors.New("connection lost")
	})

	_, _, err := coll.Get("doc-1", document.GetOptions{})
	if err == nil {
		t.Fatal("expected an error from the failed send")
	}
}

// TestInstanceUnexpectedResponseType checks that a response of the wrong type
// is rejected.
func TestInstanceUnexpectedResponseType(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	coll := newTestCollection(t, func(shardId uint64, req []byte) ([]byte, error) {
		return ser.Serialize(*common.NewExistsResponse(true, nil))
	})

	_, _, err := coll.Get("doc-1", document.GetOptions{})
	if err == nil {
		t.Fatal("expected an error for a mismatched response type")
	}
}

// TestInstanceCloseDoesNotLoseRequests races Close against submitters and
// checks that every accepted request resolves, with a response or
// ErrInstanceClosed.
func TestInstanceCloseDoesNotLoseRequests(t *testing.T) {
	ser := serializer.NewBinarySerializer()
	instance, err := NewInstance(1, common.ClientConfig{},
		&fakeTransport{handler: echoHandler(ser, map[string][]byte{})}, ser)
	if err != nil {
		t.Fatalf("failed to create instance: %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 64; n++ {
				req := NewUpsertRequest("doc", []byte{byte(n)}, 0, document.StoreOptions{})
				if err := instance.Submit(req); err != nil {
					if err != ErrInstanceClosed {
						t.Errorf("submit failed: %v", err)
					}
					return
				}
				select {
				case <-req.Done():
				case <-time.After(5 * time.Second):
					t.Error("accepted request never resolved")
					return
				}
			}
		}()
	}

	time.Sleep(time.Millisecond)
	if err := instance.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	wg.Wait()
}

// TestInstanceClosed checks that submissions after Close fail fast.
func TestInstanceClosed(t *testing.T) {
	instance, err := NewInstance(1, common.ClientConfig{},
		&fakeTransport{handler: func(uint64, []byte) ([]byte, error) { return nil, nil }},
		serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("failed to create instance: %v", err)
	}

	if err := instance.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := instance.Submit(NewGetRequest("doc-1", document.GetOptions{})); err != ErrInstanceClosed {
		t.Errorf("err = %v, want ErrInstanceClosed", err)
	}

	// Close is idempotent.
	if err := instance.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}
