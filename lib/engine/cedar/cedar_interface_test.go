package cedar

import (
	"testing"

	"github.com/lweidner/akv/lib/engine"
	enginetesting "github.com/lweidner/akv/lib/engine/testing"
)

func Test(t *testing.T) {
	enginetesting.RunEngineTests(t, "CedarEngine", func() engine.IEngine {
		return NewCedarEngine(nil)
	})
}

func Benchmark(t *testing.B) {
	enginetesting.RunEngineBenchmarks(t, "CedarEngine", func() engine.IEngine {
		return NewCedarEngine(nil)
	})
}
