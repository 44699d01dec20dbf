package dlock

import (
	"testing"

	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/lib/document/local"
	"github.com/lweidner/akv/lib/engine"
	"github.com/lweidner/akv/lib/engine/cedar"
)

func newTestCollection() document.ICollection {
	return local.NewLocalCollection(func() engine.IEngine {
		return cedar.NewCedarEngine(nil)
	})
}

func TestAcquireRelease(t *testing.T) {
	coll := newTestCollection()
	mgr := NewLockManager(coll)

	ok, ownerID, err := mgr.AcquireLock("resource:1", 0)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected to acquire the lock")
	}
	if len(ownerID) == 0 {
		t.Fatal("Expected a non-empty owner ID")
	}

	// a second acquire must fail while the lock is held
	ok, _, err = mgr.AcquireLock("resource:1", 0)
	if err != nil {
		t.Fatalf("Second AcquireLock failed: %v", err)
	}
	if ok {
		t.Fatal("Expected second acquire to fail while the lock is held")
	}

	released, err := mgr.ReleaseLock("resource:1", ownerID)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if !released {
		t.Fatal("Expected the lock to be released")
	}

	// after release the lock can be acquired again
	ok, _, err = mgr.AcquireLock("resource:1", 0)
	if err != nil {
		t.Fatalf("Reacquire failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected to reacquire the lock after release")
	}
}

func TestReleaseVerifiesOwnership(t *testing.T) {
	coll := newTestCollection()
	mgr := NewLockManager(coll)

	_, ownerID, err := mgr.AcquireLock("resource:1", 0)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	// releasing with a wrong owner ID must fail and leave the lock intact
	released, err := mgr.ReleaseLock("resource:1", []byte("not the owner"))
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if released {
		t.Fatal("Release with wrong owner ID must not succeed")
	}

	ok, _, _ := mgr.AcquireLock("resource:1", 0)
	if ok {
		t.Fatal("Lock was released despite wrong owner ID")
	}

	// the real owner can still release
	released, err = mgr.ReleaseLock("resource:1", ownerID)
	if err != nil || !released {
		t.Fatalf("Owner could not release the lock: ok=%v err=%v", released, err)
	}
}

func TestReleaseOfMissingLock(t *testing.T) {
	mgr := NewLockManager(newTestCollection())

	// releasing a lock that does not exist reports success
	released, err := mgr.ReleaseLock("resource:missing", []byte("anyone"))
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}
	if !released {
		t.Fatal("Release of a missing lock should report success")
	}
}

func TestLockTimeout(t *testing.T) {
	coll := newTestCollection()
	mgr := NewLockManager(coll)

	// acquire with a timeout of 2 logical ticks
	ok, _, err := mgr.AcquireLock("resource:1", 2)
	if err != nil || !ok {
		t.Fatalf("AcquireLock failed: ok=%v err=%v", ok, err)
	}

	// advance the write index past the lock's deadline
	for i := 0; i < 3; i++ {
		if _, err := coll.Upsert("tick", []byte("t"), 0, document.StoreOptions{}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	// the expired lock is up for grabs again
	ok, _, err = mgr.AcquireLock("resource:1", 0)
	if err != nil {
		t.Fatalf("Reacquire after timeout failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected to acquire the lock after its timeout passed")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	coll := newTestCollection()

	const contenders = 32
	results := make(chan bool, contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			// a fresh manager per goroutine, all sharing the collection
			ok, _, err := NewLockManager(coll).AcquireLock("resource:1", 0)
			if err != nil {
				t.Errorf("AcquireLock failed: %v", err)
			}
			results <- ok
		}()
	}

	winners := 0
	for i := 0; i < contenders; i++ {
		if <-results {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("Expected exactly one winner, got %d", winners)
	}
}
