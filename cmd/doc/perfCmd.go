package doc

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lweidner/akv/cmd/util"
	"github.com/lweidner/akv/lib/document"
	"github.com/lweidner/akv/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for akv servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	DocumentCommands.PersistentFlags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. upsert,get)"))
	key = "threads"
	DocumentCommands.PersistentFlags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	DocumentCommands.PersistentFlags().Int(key, 1000, util.WrapString("How large the content for the upsert-large test should be (in KB)"))
	key = "keys"
	DocumentCommands.PersistentFlags().Int(key, 100, util.WrapString("How many different ids to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for akv servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	upsertResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("upsert") {
			return
		}

		// prepare ids
		getID, iter := getIDs("upsert")

		// cleanup
		b.Cleanup(func() {
			iter(func(id string) {
				if _, err := rpcColl.Remove(id, document.RemoveOptions{}); err != nil {
					log.Printf("(upsert) - error removing document: %v\n", err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_, err := rpcColl.Upsert(getID(counter), []byte("test"), 0, document.StoreOptions{})
				if err != nil {
					log.Printf("(upsert) - error upserting document: %v\n", err)
				}
				counter++
			}
		})
	})

	results["upsert"] = upsertResult
	printResult("upsert", upsertResult)

	upsertLargeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("upsert-large") {
			return
		}

		// prepare large content
		largeContent := make([]byte, perfLargeValueSizeKB*1024)

		// prepare ids
		getID, iter := getIDs("upsert-large")

		// cleanup
		b.Cleanup(func() {
			iter(func(id string) {
				if _, err := rpcColl.Remove(id, document.RemoveOptions{}); err != nil {
					log.Printf("(upsert-large) - error removing document: %v\n", err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_, err := rpcColl.Upsert(getID(counter), largeContent, 0, document.StoreOptions{})
				if err != nil {
					log.Printf("(upsert-large) - error upserting document: %v", err)
				}
				counter++
			}
		})
	})

	results["upsert-large"] = upsertLargeResult
	printResult("upsert-large", upsertLargeResult)

	getResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}

		// prepare ids
		getID, iter := getIDs("get")

		// store documents
		iter(func(id string) {
			if _, err := rpcColl.Upsert(id, []byte("test"), 0, document.StoreOptions{}); err != nil {
				log.Printf("(get) - error upserting document: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(id string) {
				if _, err := rpcColl.Remove(id, document.RemoveOptions{}); err != nil {
					log.Printf("(get) - error removing document: %v\n", err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_, _, err := rpcColl.Get(getID(counter), document.GetOptions{})
				if err != nil {
					log.Printf("(get) - error getting document: %v\n", err)
				}
				counter++
			}
		})
	})

	results["get"] = getResult
	printResult("get", getResult)

	removeResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("remove") {
			return
		}

		// prepare ids
		getID, iter := getIDs("remove")

		// store documents
		iter(func(id string) {
			if _, err := rpcColl.Upsert(id, []byte("test"), 0, document.StoreOptions{}); err != nil {
				log.Printf("(remove) - error upserting document: %v\n", err)
			}
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				// ignore key-not-found after the first round over the ids
				_, _ = rpcColl.Remove(getID(counter), document.RemoveOptions{})
				counter++
			}
		})
	})

	results["remove"] = removeResult
	printResult("remove", removeResult)

	existsResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("exists") {
			return
		}

		// prepare ids
		getID, iter := getIDs("exists")

		// store documents
		iter(func(id string) {
			if _, err := rpcColl.Upsert(id, []byte("test"), 0, document.StoreOptions{}); err != nil {
				log.Printf("(exists) - error upserting document: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(id string) {
				if _, err := rpcColl.Remove(id, document.RemoveOptions{}); err != nil {
					log.Printf("(exists) - error removing document: %v\n", err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				_, err := rpcColl.Exists(getID(counter))
				if err != nil {
					log.Printf("(exists) - error checking document: %v\n", err)
				}
				counter++
			}
		})
	})

	results["exists"] = existsResult
	printResult("exists", existsResult)

	existsNotResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("exists-not") {
			return
		}

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				id := fmt.Sprintf("%s/exists-not-%d", perfKeyPrefix, counter%100)
				_, err := rpcColl.Exists(id)
				if err != nil {
					log.Printf("(exists-not) - error checking document: %v\n", err)
				}
				counter++
			}
		})
	})

	results["exists-not"] = existsNotResult
	printResult("exists-not", existsNotResult)

	mixedUsageResult := testing.Benchmark(func(b *testing.B) {
		if shouldSkip("mixed") {
			return
		}

		// prepare ids
		getID, iter := getIDs("mixed")

		// store documents
		iter(func(id string) {
			if _, err := rpcColl.Upsert(id, []byte("test"), 0, document.StoreOptions{}); err != nil {
				log.Printf("(mixed) - error upserting document: %v\n", err)
			}
		})

		// cleanup
		b.Cleanup(func() {
			iter(func(id string) {
				_, _ = rpcColl.Remove(id, document.RemoveOptions{})
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			id := getID(counter)
			for pb.Next() {
				var err error
				switch counter % 4 {
				case 0: // upsert
					_, err = rpcColl.Upsert(id, []byte("test"), 0, document.StoreOptions{})
				case 1: // get
					_, _, err = rpcColl.Get(id, document.GetOptions{})
				case 2: // remove (key-not-found expected on repeats)
					_, _ = rpcColl.Remove(id, document.RemoveOptions{})
				case 3: // exists
					_, err = rpcColl.Exists(id)
				}

				if err != nil {
					log.Printf("(mixed) - error performing operation (%d): %v\n", counter%4, err)
				}
				counter++
			}
		})
	})

	results["mixed"] = mixedUsageResult
	printResult("mixed", mixedUsageResult)

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test ids and functions to work with them
func getIDs(prefix string) (func(int) string, func(func(string))) {
	ids := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		ids[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get an id by index (with wraparound)
	getID := func(i int) string {
		return ids[i%perfKeySpread]
	}

	// Function to iterate over all ids and apply a function to each
	iterateIDs := func(fn func(string)) {
		for _, id := range ids {
			fn(id)
		}
	}

	return getID, iterateIDs
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
