package server

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/document/local"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/lib/engine/cedar"
	"github.com/lweidner/akv/rpc/common"
)

func newTestCollection() document.ICollection {
	return local.NewLocalCollection(func() engine.IEngine {
		return cedar.NewCedarEngine(nil)
	})
}

// TestCollectionAdapter runs the document message types against a local
// collection and checks the responses.
func TestCollectionAdapter(t *testing.T) {
	adapter := NewCollectionServerAdapter()
	coll := newTestCollection()

	// Upsert
	resp := adapter.Handle(common.NewUpsertRequest("doc-1", []byte("content"), 7, 0, 0), coll)
	if resp.Err != "" {
		t.Fatalf("upsert failed: %s", resp.Err)
	}
	cas := resp.Cas
	if cas == 0 {
		t.Fatal("expected a non-zero cas")
	}

	// Get
	resp = adapter.Handle(common.NewGetRequest("doc-1", 0), coll)
	if !resp.Ok || !bytes.Equal(resp.Value, []byte("content")) || resp.Flags != 7 {
		t.Errorf("get = %q (ok=%v, flags=%d), want %q (true, 7)", resp.Value, resp.Ok, resp.Flags, "content")
	}
	if resp.Cas != cas {
		t.Errorf("get cas = %d, want %d", resp.Cas, cas)
	}

	// Get of a missing document is not an error
	resp = adapter.Handle(common.NewGetRequest("missing", 0), coll)
	if resp.Ok || resp.Err != "" {
		t.Errorf("expected not-found response without error, got ok=%v err=%q", resp.Ok, resp.Err)
	}

	// Insert on an existing id fails with KeyExists
	resp = adapter.Handle(common.NewInsertRequest("doc-1", []byte("other"), 0, 0, 0), coll)
	if engine.Status(resp.ErrCode) != engine.StatusKeyExists {
		t.Errorf("insert status = %s, want KeyExists", engine.Status(resp.ErrCode))
	}

	// Replace with a stale cas guard fails with CasMismatch
	resp = adapter.Handle(common.NewReplaceRequest("doc-1", []byte("v2"), 0, 0, cas+100, 0), coll)
	if engine.Status(resp.ErrCode) != engine.StatusCasMismatch {
		t.Errorf("replace status = %s, want CasMismatch", engine.Status(resp.ErrCode))
	}

	// Replace with the correct cas succeeds
	resp = adapter.Handle(common.NewReplaceRequest("doc-1", []byte("v2"), 0, 0, cas, 0), coll)
	if resp.Err != "" {
		t.Fatalf("replace failed: %s", resp.Err)
	}
	if resp.Cas <= cas {
		t.Errorf("replace cas = %d, want > %d", resp.Cas, cas)
	}

	// Exists
	resp = adapter.Handle(common.NewExistsRequest("doc-1"), coll)
	if !resp.Ok {
		t.Error("expected document to exist")
	}

	// Remove
	resp = adapter.Handle(common.NewRemoveRequest("doc-1", 0, 0), coll)
	if resp.Err != "" {
		t.Fatalf("remove failed: %s", resp.Err)
	}

	// Remove of a missing document fails with KeyNotFound
	resp = adapter.Handle(common.NewRemoveRequest("doc-1", 0, 0), coll)
	if engine.Status(resp.ErrCode) != engine.StatusKeyNotFound {
		t.Errorf("remove status = %s, want KeyNotFound", engine.Status(resp.ErrCode))
	}

	// Info
	resp = adapter.Handle(common.NewEngineInfoRequest(), coll)
	if resp.Err != "" {
		t.Fatalf("info failed: %s", resp.Err)
	}
	var info engine.EngineInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		t.Fatalf("failed to decode info meta: %v", err)
	}
	if info.EngineType != engine.ImplCedar {
		t.Errorf("engine type = %s, want %s", info.EngineType, engine.ImplCedar)
	}

	// Unsupported message type
	resp = adapter.Handle(common.NewAcquireRequest("lock", 1), coll)
	if resp.MsgType != common.MsgTError {
		t.Error("expected an error response for an unsupported message type")
	}

	// Nil collection
	resp = adapter.Handle(common.NewGetRequest("doc-1", 0), nil)
	if resp.MsgType != common.MsgTError {
		t.Error("expected an error response for a nil collection")
	}
}

// TestLockManagerAdapter runs the lock message types against a local
// collection.
func TestLockManagerAdapter(t *testing.T) {
	adapter := NewLockManagerServerAdapter()
	coll := newTestCollection()

	// Acquire
	resp := adapter.Handle(common.NewAcquireRequest("lock-1", 100), coll)
	if !resp.Ok || len(resp.Value) == 0 {
		t.Fatalf("expected lock to be acquired with an owner token, got ok=%v", resp.Ok)
	}
	ownerID := resp.Value

	// Second acquire fails while the lock is held
	resp = adapter.Handle(common.NewAcquireRequest("lock-1", 100), coll)
	if resp.Ok {
		t.Error("expected second acquire to fail")
	}

	// Release with the wrong owner fails
	resp = adapter.Handle(common.NewReleaseRequest("lock-1", []byte("wrong")), coll)
	if resp.Ok {
		t.Error("expected release with wrong owner to fail")
	}

	// Release with the correct owner succeeds
	resp = adapter.Handle(common.NewReleaseRequest("lock-1", ownerID), coll)
	if !resp.Ok {
		t.Error("expected release to succeed")
	}

	// Unsupported message type
	resp = adapter.Handle(common.NewGetRequest("lock-1", 0), coll)
	if resp.MsgType != common.MsgTError {
		t.Error("expected an error response for an unsupported message type")
	}
}
