package client

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/rpc/common"
)

// TestRequestEncoding verifies the field mapping of every request type,
// including the optional timeout.
func TestRequestEncoding(t *testing.T) {
	tests := []struct {
		name string
		req  IRequest
		want common.Message
	}{
		{
			name: "Get without timeout",
			req:  NewGetRequest("doc-1", document.GetOptions{}),
			want: common.Message{MsgType: common.MsgTDocGet, Key: "doc-1"},
		},
		{
			name: "Get with timeout",
			req:  NewGetRequest("doc-1", document.GetOptions{Timeout: 2500 * time.Millisecond}),
			want: common.Message{MsgType: common.MsgTDocGet, Key: "doc-1", TimeoutMs: 2500},
		},
		{
			name: "Upsert",
			req:  NewUpsertRequest("doc-2", []byte("v"), 42, document.StoreOptions{Expiry: 10}),
			want: common.Message{MsgType: common.MsgTDocUpsert, Key: "doc-2", Value: []byte("v"), Flags: 42, Expiry: 10},
		},
		{
			name: "Insert with timeout",
			req:  NewInsertRequest("doc-3", []byte("v"), 0, document.StoreOptions{Timeout: time.Second}),
			want: common.Message{MsgType: common.MsgTDocInsert, Key: "doc-3", Value: []byte("v"), TimeoutMs: 1000},
		},
		{
			name: "Replace with cas guard",
			req:  NewReplaceRequest("doc-4", []byte("v2"), 7, document.StoreOptions{Cas: 99, Expiry: 5}),
			want: common.Message{MsgType: common.MsgTDocReplace, Key: "doc-4", Value: []byte("v2"), Flags: 7, Cas: 99, Expiry: 5},
		},
		{
			name: "Remove with cas guard",
			req:  NewRemoveRequest("doc-5", document.RemoveOptions{Cas: 123}),
			want: common.Message{MsgType: common.MsgTDocRemove, Key: "doc-5", Cas: 123},
		},
		{
			name: "Exists",
			req:  NewExistsRequest("doc-6"),
			want: common.Message{MsgType: common.MsgTDocExists, Key: "doc-6"},
		},
		{
			name: "Info",
			req:  NewInfoRequest(),
			want: common.Message{MsgType: common.MsgTDocInfo},
		},
		{
			name: "Acquire",
			req:  NewAcquireRequest("lock-1", 30),
			want: common.Message{MsgType: common.MsgTLCKAcquire, Key: "lock-1", Expiry: 30},
		},
		{
			name: "Release",
			req:  NewReleaseRequest("lock-1", []byte("owner")),
			want: common.Message{MsgType: common.MsgTLCKRelease, Key: "lock-1", Value: []byte("owner")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.req.Encode()
			if got.MsgType != tt.want.MsgType {
				t.Errorf("MsgType = %s, want %s", got.MsgType, tt.want.MsgType)
			}
			if got.Key != tt.want.Key {
				t.Errorf("Key = %q, want %q", got.Key, tt.want.Key)
			}
			if !bytes.Equal(got.Value, tt.want.Value) {
				t.Errorf("Value = %q, want %q", got.Value, tt.want.Value)
			}
			if got.Flags != tt.want.Flags {
				t.Errorf("Flags = %d, want %d", got.Flags, tt.want.Flags)
			}
			if got.Cas != tt.want.Cas {
				t.Errorf("Cas = %d, want %d", got.Cas, tt.want.Cas)
			}
			if got.Expiry != tt.want.Expiry {
				t.Errorf("Expiry = %d, want %d", got.Expiry, tt.want.Expiry)
			}
			if got.TimeoutMs != tt.want.TimeoutMs {
				t.Errorf("TimeoutMs = %d, want %d", got.TimeoutMs, tt.want.TimeoutMs)
			}
		})
	}
}

// TestGetRequestComplete verifies the three outcomes of a Get: found, not
// found and failed.
func TestGetRequestComplete(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		req := NewGetRequest("doc-1", document.GetOptions{})
		req.Complete(common.NewGetResponse([]byte("content"), 7, 42, true, nil), nil)

		outcome := <-req.Done()
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
		if !outcome.Found {
			t.Fatal("expected document to be found")
		}
		if !bytes.Equal(outcome.Result.Content, []byte("content")) {
			t.Errorf("Content = %q, want %q", outcome.Result.Content, "content")
		}
		if outcome.Result.Flags != 7 || outcome.Result.Cas != 42 {
			t.Errorf("Flags/Cas = %d/%d, want 7/42", outcome.Result.Flags, outcome.Result.Cas)
		}
	})

	t.Run("not found", func(t *testing.T) {
		req := NewGetRequest("missing", document.GetOptions{})
		req.Complete(common.NewGetResponse(nil, 0, 0, false, nil), nil)

		outcome := <-req.Done()
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
		if outcome.Found || outcome.Result != nil {
			t.Error("expected empty outcome for missing document")
		}
	})

	t.Run("error", func(t *testing.T) {
		req := NewGetRequest("doc-1", document.GetOptions{})
		req.Complete(nil, errors.New("boom"))

		outcome := <-req.Done()
		if outcome.Err == nil {
			t.Fatal("expected an error")
		}
	})
}

// TestMutationRequestComplete verifies that mutation requests surface the new
// CAS on success and pass errors through untouched.
func TestMutationRequestComplete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		req := NewUpsertRequest("doc-1", []byte("v"), 0, document.StoreOptions{})
		req.Complete(common.NewMutationResponse(common.MsgTDocUpsert, 17, nil), nil)

		outcome := <-req.Done()
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
		if outcome.Result.Cas != 17 {
			t.Errorf("Cas = %d, want 17", outcome.Result.Cas)
		}
	})

	t.Run("typed error", func(t *testing.T) {
		req := NewInsertRequest("doc-1", []byte("v"), 0, document.StoreOptions{})
		req.Complete(nil, document.NewError(engine.StatusKeyExists, "insert failed"))

		outcome := <-req.Done()
		if document.StatusOf(outcome.Err) != engine.StatusKeyExists {
			t.Errorf("status = %s, want KeyExists", document.StatusOf(outcome.Err))
		}
	})
}

// TestLockRequestComplete verifies the lock request outcomes.
func TestLockRequestComplete(t *testing.T) {
	t.Run("acquired", func(t *testing.T) {
		req := NewAcquireRequest("lock-1", 30)
		req.Complete(common.NewAcquireResponse(true, []byte("owner"), nil), nil)

		outcome := <-req.Done()
		if outcome.Err != nil {
			t.Fatalf("unexpected error: %v", outcome.Err)
		}
		if !outcome.Acquired || !bytes.Equal(outcome.OwnerID, []byte("owner")) {
			t.Error("expected acquired outcome with owner token")
		}
	})

	t.Run("held elsewhere", func(t *testing.T) {
		req := NewAcquireRequest("lock-1", 30)
		req.Complete(common.NewAcquireResponse(false, nil, nil), nil)

		outcome := <-req.Done()
		if outcome.Acquired || outcome.Err != nil {
			t.Error("expected not-acquired outcome without error")
		}
	})

	t.Run("released", func(t *testing.T) {
		req := NewReleaseRequest("lock-1", []byte("owner"))
		req.Complete(common.NewReleaseResponse(true, nil), nil)

		outcome := <-req.Done()
		if !outcome.Released || outcome.Err != nil {
			t.Error("expected released outcome without error")
		}
	})
}
