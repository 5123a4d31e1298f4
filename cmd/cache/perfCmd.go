package cache

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/resqcache/resq/cmd/util"
	"github.com/resqcache/resq/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for resq servers",
		Long:    "Measures the latency of cache operations against a running server. The server should serve the targeted cache with the echo source so that every fetch resolves instantly and the measurements reflect cache and transport overhead.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfOps        = 1000
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. get,has)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many operations each thread performs per test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for resq servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Ops per thread: %d\n", perfOps)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()

	// sample the server-side fetch concurrency for the duration of the run
	stopSampler := make(chan struct{})
	maxFetching := sampleFetching(stopSampler)

	// get-cold: every op evicts first, so each get triggers a fresh fetch
	getColdTimer := runTimed(registry, "get-cold", func(key string) {
		rpcCache.Evict(key)
		if _, err := rpcCache.Get(context.Background(), key, nil); err != nil {
			log.Printf("(get-cold) - error getting key: %v\n", err)
		}
	})
	printResult("get-cold", getColdTimer)

	// get-warm: keys are fetched once up front, every op is a cache hit
	warmKeys(perfKeyPrefix + "-get-warm")
	getWarmTimer := runTimed(registry, "get-warm", func(key string) {
		if _, err := rpcCache.Get(context.Background(), key, nil); err != nil {
			log.Printf("(get-warm) - error getting key: %v\n", err)
		}
	})
	printResult("get-warm", getWarmTimer)

	hasTimer := runTimed(registry, "has", func(key string) {
		rpcCache.Has(key)
	})
	printResult("has", hasTimer)

	statusTimer := runTimed(registry, "status", func(key string) {
		rpcCache.GetStatus(key)
	})
	printResult("status", statusTimer)

	var mixedCounter atomic.Int64
	mixedTimer := runTimed(registry, "mixed", func(key string) {
		var err error
		switch mixedCounter.Add(1) % 4 {
		case 0:
			_, err = rpcCache.Get(context.Background(), key, nil)
		case 1:
			rpcCache.Has(key)
		case 2:
			rpcCache.GetStatus(key)
		case 3:
			rpcCache.Evict(key)
		}
		if err != nil {
			log.Printf("(mixed) - error performing operation: %v\n", err)
		}
	})
	printResult("mixed", mixedTimer)

	close(stopSampler)
	fmt.Printf("\nmax observed concurrent fetches: %d\n", maxFetching.Load())

	// cleanup all test entries
	rpcCache.Clear()

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry, util.GetClientConfig()); err != nil {
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

// runTimed runs op on perfNumThreads goroutines, perfOps times each, and
// records every call in a timer registered under the test name
func runTimed(registry gometrics.Registry, test string, op func(key string)) gometrics.Timer {
	timer := gometrics.NewRegisteredTimer(test, registry)
	if shouldSkip(test) {
		return timer
	}

	keys := testKeys(perfKeyPrefix + "-" + test)

	var wg sync.WaitGroup
	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < perfOps; i++ {
				key := keys[(offset+i)%len(keys)]
				start := time.Now()
				op(key)
				timer.UpdateSince(start)
			}
		}(t)
	}
	wg.Wait()

	return timer
}

// sampleFetching polls the cache stats in the background and tracks the
// highest number of in-flight fetches seen until stop is closed. The value
// is an observation, not an exact peak - short bursts between two polls can
// go unnoticed.
func sampleFetching(stop <-chan struct{}) *atomic.Int64 {
	var peak atomic.Int64
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				stats := rpcCache.Stats()
				if n := int64(stats.Fetching); n > peak.Load() {
					peak.Store(n)
				}
			}
		}
	}()
	return &peak
}

// warmKeys fetches every test key once so subsequent gets are hits
func warmKeys(prefix string) {
	for _, key := range testKeys(prefix) {
		if _, err := rpcCache.Get(context.Background(), key, nil); err != nil {
			log.Printf("(warmup) - error getting key: %v\n", err)
		}
	}
}

// testKeys creates the list of keys used by one test
func testKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return keys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, timer gometrics.Timer) {
	snapshot := timer.Snapshot()
	if snapshot.Count() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	mean := time.Duration(snapshot.Mean())
	p95 := time.Duration(snapshot.Percentile(0.95))
	p99 := time.Duration(snapshot.Percentile(0.99))
	opsPerSec := 0.0
	if snapshot.Mean() > 0 {
		opsPerSec = float64(perfNumThreads) * 1e9 / snapshot.Mean()
	}

	// Print the formatted result
	fmt.Printf("%-20smean=%s\tp95=%s\tp99=%s\t%.0f ops/sec\n", test, mean, p95, p99, opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry gometrics.Registry, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P95Ns", "P99Ns", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"CacheID", "Serializer", "Transport",
		"Threads", "OpsPerThread", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	var writeErr error
	registry.Each(func(test string, metric interface{}) {
		if writeErr != nil {
			return
		}

		timer, ok := metric.(gometrics.Timer)
		if !ok {
			return
		}
		snapshot := timer.Snapshot()

		row := []string{
			test,
			strconv.FormatInt(snapshot.Count(), 10),
			fmt.Sprintf("%.0f", snapshot.Mean()),
			fmt.Sprintf("%.0f", snapshot.Percentile(0.95)),
			fmt.Sprintf("%.0f", snapshot.Percentile(0.99)),
			strconv.FormatBool(snapshot.Count() == 0),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetCacheID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfOps),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			writeErr = fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	})

	return writeErr
}
