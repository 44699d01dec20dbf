package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lweidner/akv/lib/engine"
)

// RunEngineBenchmarks runs all benchmarks for an IEngine implementation
func RunEngineBenchmarks(b *testing.B, name string, factory EngineFactory) {

	b.Run("Upsert", func(b *testing.B) {
		benchmarkUpsert(b, factory())
	})

	b.Run("UpsertExisting", func(b *testing.B) {
		benchmarkUpsertExisting(b, factory())
	})

	b.Run("UpsertLargeValue", func(b *testing.B) {
		benchmarkUpsertLargeValue(b, factory())
	})

	b.Run("UpsertWithExpiry", func(b *testing.B) {
		benchmarkUpsertWithExpiry(b, factory())
	})

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Remove", func(b *testing.B) {
		benchmarkRemove(b, factory())
	})

	b.Run("Exists", func(b *testing.B) {
		benchmarkExists(b, factory())
	})

	b.Run("Exists(not)", func(b *testing.B) {
		benchmarkExistsNot(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for unconditional Store operation
func benchmarkUpsert(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
			counter++
		}
	})
}

// Benchmark for Store operation on existing keys
func benchmarkUpsertExisting(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)

	// Prepare data
	numKeys := b.N
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
			counter++
		}
	})
}

// Benchmark for Store operation with large values
func benchmarkUpsertLargeValue(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			largeValue := make([]byte, 1*1024*1024) // 1MB
			eng.Store(key, largeValue, 0, 0, 0, engine.ModeUpsert, 0)
			counter++
		}
	})
}

// benchmarkUpsertWithExpiry tests the performance of Store with a ttl
func benchmarkUpsertWithExpiry(b *testing.B, eng engine.IEngine) {
	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureExpiry)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		currentIndex := uint64(0)
		for pb.Next() {
			key := fmt.Sprintf("test-expiry-key-%d", currentIndex)
			value := []byte(fmt.Sprintf("test-expiry-value-%d", currentIndex))
			eng.Store(key, value, 0, currentIndex, 2, engine.ModeUpsert, 0)
			currentIndex++
		}
	})
}

// Benchmark for Insert operation (always a fresh key)
func benchmarkInsert(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureInsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("insert-key-%d-%d", rand.Int63(), counter)
			value := []byte(fmt.Sprintf("insert-value-%d", counter))
			eng.Store(key, value, 0, 0, 0, engine.ModeInsert, 0)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			eng.Get(key)
			counter++
		}
	})
}

// Parallel benchmarking for Remove operation
func benchmarkRemove(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureRemove)

	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(keys[i], value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys
			eng.Remove(keys[idx], 0, 0)
		}
	})
}

// Parallel benchmarking for Exists operation (with key miss)
func benchmarkExistsNot(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureExists)
	const key = "test-key"

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			eng.Exists(key)
		}
	})
}

// Parallel benchmarking for Exists operation
func benchmarkExists(b *testing.B, eng engine.IEngine) {

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureExists)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			eng.Exists(key)
			counter++
		}
	})
}

// Benchmark for Save and Load operations
// Parallelization is not meaningful here since both walk the whole engine
func benchmarkSaveLoad(b *testing.B, factory EngineFactory) {

	eng := factory()

	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureSave)
	requireFeature(b, eng, engine.FeatureLoad)

	// Create an engine with some data
	numEntries := 10000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			eng.Save(&buf)
		}
	})

	// Prepare a data buffer for the Load benchmark
	var loadBuf bytes.Buffer
	eng.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadEngine := factory()
			defer loadEngine.Close()
			loadEngine.Load(bytes.NewReader(data))
		}
	})
}

// Benchmark for mixed usage patterns
func benchmarkMixedUsage(b *testing.B, eng engine.IEngine) {
	b.Cleanup(func() {
		eng.Close()
	})

	requireFeature(b, eng, engine.FeatureUpsert)
	requireFeature(b, eng, engine.FeatureGet)
	requireFeature(b, eng, engine.FeatureRemove)
	requireFeature(b, eng, engine.FeatureExists)

	// Number of pre-populated keys
	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}

	// Prepare initial data
	keys := make([]string, numKeys)
	for i := 0; i < numKeys; i++ {
		keys[i] = fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		eng.Store(keys[i], value, 0, 0, 0, engine.ModeUpsert, 0)
	}

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		localCounter := 0
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys

			// for every 10th operation, use a completely new key
			var key string
			if localCounter%10 == 0 {
				key = fmt.Sprintf("new-key-%d", localCounter)
			} else {
				key = keys[idx]
			}

			switch rnd.Intn(4) {
			case 0:
				eng.Get(key)
			case 1:
				value := []byte(fmt.Sprintf("mixed-value-%d", localCounter))
				eng.Store(key, value, 0, 0, 0, engine.ModeUpsert, 0)
			case 2:
				eng.Remove(key, 0, 0)
			case 3:
				eng.Exists(key)
			}

			localCounter++
		}
	})
}
