package local

import (
	"bytes"
	"testing"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/lib/engine/cedar"
)

func newTestCollection() document.ICollection {
	return NewLocalCollection(func() engine.IEngine {
		return cedar.NewCedarEngine(nil)
	})
}

// requireStatus asserts that err carries the expected status code
func requireStatus(t *testing.T, err error, want engine.Status) {
	t.Helper()
	if got := document.StatusOf(err); got != want {
		t.Fatalf("expected status %v, got %v (err: %v)", want, got, err)
	}
}

func TestUpsertGet(t *testing.T) {
	coll := newTestCollection()

	res, err := coll.Upsert("doc-1", []byte("content-1"), 7, document.StoreOptions{})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if res.Cas == 0 {
		t.Errorf("Expected a non-zero cas")
	}

	result, found, err := coll.Get("doc-1", document.GetOptions{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected doc-1 to be found")
	}
	if !bytes.Equal(result.Content, []byte("content-1")) {
		t.Errorf("Expected content-1, got %s", result.Content)
	}
	if result.Flags != 7 {
		t.Errorf("Expected flags 7, got %d", result.Flags)
	}
	if result.Cas != res.Cas {
		t.Errorf("Expected cas %d, got %d", res.Cas, result.Cas)
	}

	// missing id is not an error
	_, found, err = coll.Get("missing", document.GetOptions{})
	if err != nil {
		t.Fatalf("Get of missing id returned error: %v", err)
	}
	if found {
		t.Error("Expected missing id to report found=false")
	}
}

func TestInsertSemantics(t *testing.T) {
	coll := newTestCollection()

	if _, err := coll.Insert("doc-1", []byte("v1"), 0, document.StoreOptions{}); err != nil {
		t.Fatalf("Insert of absent id failed: %v", err)
	}

	_, err := coll.Insert("doc-1", []byte("v2"), 0, document.StoreOptions{})
	requireStatus(t, err, engine.StatusKeyExists)

	// the failed insert must not have overwritten
	result, _, _ := coll.Get("doc-1", document.GetOptions{})
	if !bytes.Equal(result.Content, []byte("v1")) {
		t.Errorf("Failed insert overwrote document: got %s", result.Content)
	}
}

func TestReplaceSemantics(t *testing.T) {
	coll := newTestCollection()

	_, err := coll.Replace("doc-1", []byte("v1"), 0, document.StoreOptions{})
	requireStatus(t, err, engine.StatusKeyNotFound)

	if found, _ := coll.Exists("doc-1"); found {
		t.Error("Failed replace must not create the id")
	}

	res, err := coll.Upsert("doc-1", []byte("v1"), 0, document.StoreOptions{})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// replace with a stale cas fails without side effects
	_, err = coll.Replace("doc-1", []byte("v2"), 0, document.StoreOptions{Cas: res.Cas + 1})
	requireStatus(t, err, engine.StatusCasMismatch)

	result, _, _ := coll.Get("doc-1", document.GetOptions{})
	if !bytes.Equal(result.Content, []byte("v1")) {
		t.Errorf("Failed cas replace overwrote document: got %s", result.Content)
	}

	// replace with the matching cas succeeds
	res2, err := coll.Replace("doc-1", []byte("v2"), 0, document.StoreOptions{Cas: res.Cas})
	if err != nil {
		t.Fatalf("Replace with matching cas failed: %v", err)
	}
	if res2.Cas <= res.Cas {
		t.Errorf("Expected cas to increase: %d after %d", res2.Cas, res.Cas)
	}
}

func TestRemoveSemantics(t *testing.T) {
	coll := newTestCollection()

	_, err := coll.Remove("doc-1", document.RemoveOptions{})
	requireStatus(t, err, engine.StatusKeyNotFound)

	res, _ := coll.Upsert("doc-1", []byte("v1"), 0, document.StoreOptions{})

	// remove with a stale cas fails
	_, err = coll.Remove("doc-1", document.RemoveOptions{Cas: res.Cas + 1})
	requireStatus(t, err, engine.StatusCasMismatch)

	if found, _ := coll.Exists("doc-1"); !found {
		t.Fatal("Failed cas remove deleted the document")
	}

	if _, err := coll.Remove("doc-1", document.RemoveOptions{Cas: res.Cas}); err != nil {
		t.Fatalf("Remove with matching cas failed: %v", err)
	}

	if found, _ := coll.Exists("doc-1"); found {
		t.Error("Document still exists after remove")
	}
}

func TestCasMonotonicity(t *testing.T) {
	coll := newTestCollection()

	var lastCas uint64
	for i := 0; i < 100; i++ {
		res, err := coll.Upsert("doc-1", []byte("v"), 0, document.StoreOptions{})
		if err != nil {
			t.Fatalf("Upsert %d failed: %v", i, err)
		}
		if res.Cas <= lastCas {
			t.Fatalf("Cas not monotonic: %d after %d", res.Cas, lastCas)
		}
		lastCas = res.Cas
	}
}

func TestGetEngineInfo(t *testing.T) {
	coll := newTestCollection()

	info, err := coll.GetEngineInfo()
	if err != nil {
		t.Fatalf("GetEngineInfo failed: %v", err)
	}
	if info.EngineType != engine.ImplCedar {
		t.Errorf("Expected engine type %s, got %s", engine.ImplCedar, info.EngineType)
	}
}
