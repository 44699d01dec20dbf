package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/lweidner/akv/lib/engine"
)

// EngineFactory is a function that creates a new instance of an IEngine implementation
type EngineFactory func() engine.IEngine

// RunEngineTests runs a comprehensive test suite for an IEngine implementation.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Upsert&Get", func(t *testing.T) {
			testUpsertGet(t, factory())
		})

		t.Run("Insert", func(t *testing.T) {
			testInsert(t, factory())
		})

		t.Run("Replace", func(t *testing.T) {
			testReplace(t, factory())
		})

		t.Run("CasGuards", func(t *testing.T) {
			testCasGuards(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Exists", func(t *testing.T) {
			testExists(t, factory())
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory())
		})

		t.Run("ManyExpiringDocuments", func(t *testing.T) {
			testManyExpiringDocuments(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the engine supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, eng engine.IEngine, feature engine.Feature) {
	if !eng.SupportsFeature(feature) {
		t.Skip()
	}
}

// upsert is a shorthand for an unconditional store that must succeed
func upsert(t testing.TB, eng engine.IEngine, key string, value []byte, writeIdx uint64) uint64 {
	cas, status := eng.Store(key, value, 0, writeIdx, 0, engine.ModeUpsert, 0)
	if status != engine.StatusOK {
		t.Fatalf("Upsert of %q failed with status %v", key, status)
	}
	return cas
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpsertGet(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	cas1, status := eng.Store(testKey, testValue1, 42, 1, 0, engine.ModeUpsert, 0)
	if status != engine.StatusOK {
		t.Fatalf("Upsert failed with status %v", status)
	}

	result, flags, cas, exists := eng.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Upsert", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
	if flags != 42 {
		t.Errorf("Expected flags 42, got %d", flags)
	}
	if cas != cas1 {
		t.Errorf("Expected cas %d, got %d", cas1, cas)
	}

	// upsert overwrites unconditionally
	cas2, status := eng.Store(testKey, testValue2, 43, 2, 0, engine.ModeUpsert, 0)
	if status != engine.StatusOK {
		t.Fatalf("Second upsert failed with status %v", status)
	}
	if cas2 <= cas1 {
		t.Errorf("Expected cas to increase, got %d after %d", cas2, cas1)
	}

	result, flags, _, exists = eng.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after overwrite", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}
	if flags != 43 {
		t.Errorf("Expected flags 43, got %d", flags)
	}

	_, _, _, exists = eng.Get("nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// Get must return a copy, not a reference to the stored value
	retrievedValue, _, _, _ := eng.Get(testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _, _ := eng.Get(testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testInsert(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureInsert)
	requireFeature(t, eng, engine.FeatureGet)

	testKey := "insert-key"
	testValue1 := []byte("insert-value1")
	testValue2 := []byte("insert-value2")

	_, status := eng.Store(testKey, testValue1, 0, 1, 0, engine.ModeInsert, 0)
	if status != engine.StatusOK {
		t.Fatalf("Insert of absent key failed with status %v", status)
	}

	// inserting again must fail and leave the document untouched
	_, status = eng.Store(testKey, testValue2, 0, 2, 0, engine.ModeInsert, 0)
	if status != engine.StatusKeyExists {
		t.Errorf("Expected StatusKeyExists for insert on existing key, got %v", status)
	}

	result, _, _, exists := eng.Get(testKey)
	if !exists {
		t.Fatalf("Key %s vanished after failed insert", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Failed insert must not overwrite: expected %s, got %s", testValue1, result)
	}
}

func testReplace(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureReplace)
	requireFeature(t, eng, engine.FeatureGet)

	testKey := "replace-key"
	testValue1 := []byte("replace-value1")
	testValue2 := []byte("replace-value2")

	// replacing an absent key must fail and must not create it
	_, status := eng.Store(testKey, testValue1, 0, 1, 0, engine.ModeReplace, 0)
	if status != engine.StatusKeyNotFound {
		t.Errorf("Expected StatusKeyNotFound for replace on absent key, got %v", status)
	}
	if eng.Exists(testKey) {
		t.Errorf("Failed replace must not create the key")
	}

	upsert(t, eng, testKey, testValue1, 2)

	_, status = eng.Store(testKey, testValue2, 0, 3, 0, engine.ModeReplace, 0)
	if status != engine.StatusOK {
		t.Fatalf("Replace of existing key failed with status %v", status)
	}

	result, _, _, exists := eng.Get(testKey)
	if !exists {
		t.Fatalf("Key %s not found after replace", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}
}

func testCasGuards(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureReplace)
	requireFeature(t, eng, engine.FeatureCas)

	testKey := "cas-key"

	cas := upsert(t, eng, testKey, []byte("v1"), 1)

	// replace with a stale cas must fail without side effects
	_, status := eng.Store(testKey, []byte("v2"), 0, 2, 0, engine.ModeReplace, cas+100)
	if status != engine.StatusCasMismatch {
		t.Errorf("Expected StatusCasMismatch, got %v", status)
	}

	result, _, _, _ := eng.Get(testKey)
	if !bytes.Equal(result, []byte("v1")) {
		t.Errorf("Failed cas replace must not overwrite, got %s", result)
	}

	// replace with the matching cas must succeed
	newCas, status := eng.Store(testKey, []byte("v2"), 0, 3, 0, engine.ModeReplace, cas)
	if status != engine.StatusOK {
		t.Fatalf("Replace with matching cas failed with status %v", status)
	}
	if newCas == cas {
		t.Errorf("Expected a new cas after replace")
	}

	// remove with a stale cas must fail
	status = eng.Remove(testKey, 4, cas)
	if status != engine.StatusCasMismatch {
		t.Errorf("Expected StatusCasMismatch on remove, got %v", status)
	}
	if !eng.Exists(testKey) {
		t.Errorf("Failed cas remove must not delete the key")
	}

	// remove with the matching cas must succeed
	status = eng.Remove(testKey, 5, newCas)
	if status != engine.StatusOK {
		t.Errorf("Remove with matching cas failed with status %v", status)
	}
	if eng.Exists(testKey) {
		t.Errorf("Key should be gone after cas remove")
	}
}

func testRemove(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureRemove)

	testKey := "remove-test-key"
	testValue := []byte("remove-test-value")

	upsert(t, eng, testKey, testValue, 1)

	_, _, _, exists := eng.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Upsert", testKey)
	}

	status := eng.Remove(testKey, 10, 0)
	if status != engine.StatusOK {
		t.Errorf("Remove failed with status %v", status)
	}

	_, _, _, exists = eng.Get(testKey)
	if exists {
		t.Errorf("Expected key %s to not exist after Remove", testKey)
	}

	if eng.Exists(testKey) {
		t.Errorf("Expected key %s to not exist after Remove", testKey)
	}

	// removing an absent key reports KeyNotFound
	status = eng.Remove("nonexistent-key", 11, 0)
	if status != engine.StatusKeyNotFound {
		t.Errorf("Expected StatusKeyNotFound, got %v", status)
	}
}

func testExists(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureExists)

	testKey := "exists-test-key"

	if eng.Exists(testKey) {
		t.Errorf("Expected Exists to return false for nonexistent key")
	}

	upsert(t, eng, testKey, []byte("exists-test-value"), 1)

	if !eng.Exists(testKey) {
		t.Errorf("Expected Exists to return true after Upsert")
	}

	eng.Remove(testKey, 2, 0)

	if eng.Exists(testKey) {
		t.Errorf("Expected Exists to return false after Remove")
	}
}

func testExpiry(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureExpiry)

	testKey := "expiring-key"
	testValue := []byte("expiring-value")

	// document expires 10 ticks after write index 100
	_, status := eng.Store(testKey, testValue, 0, 100, 10, engine.ModeUpsert, 0)
	if status != engine.StatusOK {
		t.Fatalf("Upsert with ttl failed with status %v", status)
	}

	eng.SetWriteIdx(109)

	result, _, _, exists := eng.Get(testKey)
	if !exists {
		t.Errorf("Document should still exist at index 109")
	}
	if !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, result)
	}
	if !eng.Exists(testKey) {
		t.Errorf("Document should still exist at index 109 (exists)")
	}

	eng.SetWriteIdx(110)

	_, _, _, exists = eng.Get(testKey)
	if exists {
		t.Errorf("Document should have expired at index 110")
	}
	if eng.Exists(testKey) {
		t.Errorf("Expired document should not be findable at index 110")
	}

	// an expired key can be inserted again
	_, status = eng.Store(testKey, testValue, 0, 120, 0, engine.ModeInsert, 0)
	if status != engine.StatusOK {
		t.Errorf("Insert over expired key failed with status %v", status)
	}

	// ttl=0 never expires
	testKey2 := "not-expiring-key"
	testValue2 := []byte("not-expiring-value")

	upsert(t, eng, testKey2, testValue2, 300)

	eng.SetWriteIdx(100000)
	result, _, _, exists = eng.Get(testKey2)
	if !exists {
		t.Errorf("Document with ttl=0 should never expire")
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}
}

func testManyExpiringDocuments(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureExpiry)

	numKeys := 1000
	baseIndex := uint64(1000)

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("expire-key-%d", i)
		value := []byte(fmt.Sprintf("expire-value-%d", i))
		ttl := uint64(i % 100)
		_, status := eng.Store(key, value, 0, baseIndex, ttl, engine.ModeUpsert, 0)
		if status != engine.StatusOK {
			t.Fatalf("Upsert of %s failed with status %v", key, status)
		}

		if !eng.Exists(key) {
			t.Errorf("Key %s not found after Upsert", key)
		}
	}

	for offset := uint64(0); offset <= 100; offset += 10 {
		currentIndex := baseIndex + offset

		for i := 0; i < numKeys; i++ {
			key := fmt.Sprintf("expire-key-%d", i)
			ttl := uint64(i % 100)

			if ttl > 0 && ttl <= offset {
				eng.SetWriteIdx(currentIndex)
				_, _, _, exists := eng.Get(key)
				if exists {
					t.Errorf("Key %s should have expired at index %d (TTL=%d)",
						key, currentIndex, ttl)
				}
			}
		}
	}
}

func testSaveLoad(t *testing.T, factory EngineFactory) {
	eng := factory()
	eng2 := factory()

	// close the engines after the test
	defer eng.Close()
	defer eng2.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureGet)
	requireFeature(t, eng, engine.FeatureSave)
	requireFeature(t, eng, engine.FeatureLoad)

	numEntries := 1000
	originalKeys := make([]string, numEntries)
	originalValues := make([][]byte, numEntries)
	originalCas := make([]uint64, numEntries)

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		originalKeys[i] = key
		originalValues[i] = value

		cas, status := eng.Store(key, value, uint32(i), uint64(i+1), 0, engine.ModeUpsert, 0)
		if status != engine.StatusOK {
			t.Fatalf("Upsert of %s failed with status %v", key, status)
		}
		originalCas[i] = cas
	}

	var buf bytes.Buffer
	err := eng.Save(&buf)
	if err != nil {
		t.Errorf("Unexpected error during Save: %v", err)
	}

	err = eng2.Load(&buf)
	if err != nil {
		t.Errorf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, flags, cas, exists := eng2.Get(key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
		if flags != uint32(i) {
			t.Errorf("Flags mismatch for key %s: expected %d, got %d", key, i, flags)
		}
		if cas != originalCas[i] {
			t.Errorf("Cas mismatch for key %s: expected %d, got %d", key, originalCas[i], cas)
		}
	}

	// the original engine must be untouched by Save
	for i := 0; i < numEntries; i++ {
		key := originalKeys[i]
		expectedValue := originalValues[i]

		actualValue, _, _, exists := eng.Get(key)
		if !exists {
			t.Errorf("Key %s not found in original engine", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch in original engine for key %s", key)
		}
	}
}

func testEdgeCases(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureGet)

	emptyKey := ""
	emptyKeyValue := []byte("value for empty key")

	upsert(t, eng, emptyKey, emptyKeyValue, 1)

	result, _, _, exists := eng.Get(emptyKey)
	if !exists {
		t.Errorf("Empty key not found after Upsert")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	emptyValueKey := "empty-value-key"
	var emptyValue []byte

	upsert(t, eng, emptyValueKey, emptyValue, 2)

	result, _, _, exists = eng.Get(emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Upsert")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	if !t.Failed() {

		largeKey := string(make([]byte, 1000))
		largeKeyValue := []byte("value for large key")

		upsert(t, eng, largeKey, largeKeyValue, 3)

		result, _, _, exists = eng.Get(largeKey)
		if !exists {
			t.Errorf("Large key not found after Upsert")
		} else if !bytes.Equal(result, largeKeyValue) {
			t.Errorf("Value mismatch for large key")
		}

		largeValueKey := "large-value-key"
		largeValue := make([]byte, 100*1024*1024)

		for i := range largeValue {
			largeValue[i] = byte(i % 256)
		}

		upsert(t, eng, largeValueKey, largeValue, 4)

		result, _, _, exists = eng.Get(largeValueKey)
		if !exists {
			t.Errorf("Key for large value not found after Upsert")
		} else if !bytes.Equal(result, largeValue) {

			headMismatch := !bytes.Equal(result[:10], largeValue[:10])
			tailMismatch := !bytes.Equal(result[len(result)-10:], largeValue[len(largeValue)-10:])
			if headMismatch || tailMismatch || len(result) != len(largeValue) {
				t.Errorf("Large value mismatch: Head mismatch=%v, Tail mismatch=%v, Size mismatch=%v",
					headMismatch, tailMismatch, len(result) != len(largeValue))
			}
		}
	}
}

func testCollisionHandling(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureGet)
	requireFeature(t, eng, engine.FeatureRemove)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		value := []byte(fmt.Sprintf("value-%d", i))

		upsert(t, eng, key, value, 1)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, _, _, exists := eng.Get(key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}

		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s",
				key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		key := fmt.Sprintf("%s%d", prefix, i)
		eng.Remove(key, 10, 0)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, _, _, exists := eng.Get(key)

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %s should be removed", key)
			}
		} else {
			if !exists {
				t.Errorf("Key %s should still exist", key)
			}
		}
	}
}

func testRealisticUsage(t *testing.T, eng engine.IEngine) {
	defer eng.Close()

	requireFeature(t, eng, engine.FeatureUpsert)
	requireFeature(t, eng, engine.FeatureGet)
	requireFeature(t, eng, engine.FeatureRemove)

	type operation struct {
		op    string
		key   string
		value []byte
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "store"
		case 7, 8:
			op = "get"
		case 9:
			op = "remove"
		}

		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i)
		}

		var value []byte
		if op == "store" {
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value = make([]byte, valueSize)

			for j := 0; j < valueSize; j++ {
				value[j] = byte((i + j) % 256)
			}
		}

		operations[i] = operation{op, key, value}
	}

	allKeys := make(map[string]bool)
	for _, op := range operations {
		allKeys[op.key] = true
	}

	numWorkers := 8
	var wg sync.WaitGroup
	wg.Add(numWorkers)

	opsPerWorker := numOperations / numWorkers

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			end := start + opsPerWorker

			for i := start; i < end; i++ {
				op := operations[i]

				switch op.op {
				case "store":
					eng.Store(op.key, op.value, 0, 0, 0, engine.ModeUpsert, 0)
				case "get":
					eng.Get(op.key)
				case "remove":
					eng.Remove(op.key, 0, 0)
				}
			}
		}(w)
	}

	wg.Wait()

	// the engine must be internally consistent after the concurrent phase
	var (
		mu        sync.Mutex
		keyStatus = make(map[string]bool)
		keyValues = make(map[string][]byte)
	)

	var verifyWg sync.WaitGroup
	verifyWg.Add(len(allKeys))

	for key := range allKeys {
		go func(k string) {
			defer verifyWg.Done()

			value, _, _, exists := eng.Get(k)

			mu.Lock()
			defer mu.Unlock()

			keyStatus[k] = exists
			if exists {
				keyValues[k] = value
			}
		}(key)
	}

	verifyWg.Wait()

	for key := range allKeys {
		value, _, _, exists := eng.Get(key)

		if exists != keyStatus[key] {
			t.Errorf("Consistency error: Key %s existence changed during verification", key)
			continue
		}

		if exists && !bytes.Equal(value, keyValues[key]) {
			t.Errorf("Value mismatch for key %s between verification passes", key)
		}
	}
}
