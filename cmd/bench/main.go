package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/i5heu/GoLogQueue/internal/store"
	"github.com/i5heu/GoLogQueue/internal/testbench"
	"github.com/i5heu/GoLogQueue/pkg/linkmpmc"
	"github.com/i5heu/GoLogQueue/pkg/logqueue"
	"github.com/i5heu/GoLogQueue/pkg/mutexfifo"
	"github.com/i5heu/GoLogQueue/pkg/report"
	"github.com/i5heu/GoLogQueue/pkg/segmpmc"
)

// benchEvent is the payload pushed through the queues. A small struct rather
// than a bare pointer so each run moves something shaped like a log record.
type benchEvent struct {
	seq   int
	level string
	msg   string
}

func newBenchEvent(i int) *benchEvent {
	return &benchEvent{seq: i, level: "INFO", msg: "benchmark event"}
}

type eventStore = store.Interface[*benchEvent]
type requestStore = logqueue.Store[logqueue.Request[*benchEvent]]

// Backend describes one storage backend and how to build it for both the
// raw runs and the policy-queue runs.
type Backend struct {
	name            string
	pkgName         string
	description     string
	features        []string
	newStore        func() eventStore
	newRequestStore func() requestStore
}

// benchMode is one column of the benchmark matrix: either a raw run against
// the bare backend or a policy run through the queue.
type benchMode struct {
	name   string
	policy logqueue.OverflowPolicy
	raw    bool
}

func getBenchModes() []benchMode {
	return []benchMode{
		{name: "raw", raw: true},
		{name: logqueue.OverflowDiscard.String(), policy: logqueue.OverflowDiscard},
		{name: logqueue.OverflowBlock.String(), policy: logqueue.OverflowBlock},
		{name: logqueue.OverflowGrow.String(), policy: logqueue.OverflowGrow},
	}
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table.
func outputMarkdownTable(jsonFile string) {
	sessions, err := report.LoadSessions(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sessions: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}

	// Use the last session for the table.
	lastSession := sessions[len(sessions)-1]

	backendMeta := make(map[string]Backend)
	for _, b := range getBackends() {
		backendMeta[b.name] = b
	}

	type tableRow struct {
		backend    string
		pkgName    string
		policy     string
		features   string
		throughput float64
	}
	var rows []tableRow
	for _, bench := range lastSession.Benchmarks {
		var pkgName, features string
		if meta, ok := backendMeta[bench.Backend]; ok {
			pkgName = meta.pkgName
			features = strings.Join(meta.features, ", ")
		}
		rows = append(rows, tableRow{
			backend:    bench.Backend,
			pkgName:    pkgName,
			policy:     bench.Policy,
			features:   features,
			throughput: bench.Throughput,
		})
	}

	// Sort rows by throughput descending.
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	fmt.Println("## Last Session Benchmark Summary")
	fmt.Println()
	fmt.Println("| Backend            | Package   | Mode    | Features                      | Throughput (events/sec) |")
	fmt.Println("|--------------------|-----------|---------|-------------------------------|-------------------------|")
	for _, r := range rows {
		fmt.Printf("| %-18s | %-9s | %-7s | %-29s | %23.0f |\n",
			r.backend, r.pkgName, r.policy, r.features, r.throughput)
	}
}

func main() {
	// Flags.
	testIterations := flag.Int("iter", 5, "Number of test iterations per concurrency setting")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	durationFlag := flag.Duration("duration", 5*time.Second, "Duration of each test run")
	limitFlag := flag.Int("limit", 1024, "Request limit for the policy-queue runs")
	batchFlag := flag.Int("batch", 64, "Batch size consumers use in the policy-queue runs")
	storeFilter := flag.String("store", "", "Only benchmark the backend with this package name (segmpmc, linkmpmc, mutexfifo)")
	policyFilter := flag.String("policy", "", "Only benchmark this mode (raw, discard, block, grow)")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	flag.Parse()

	if *markdownTable {
		outputMarkdownTable(*jsonFileForMarkdown)
		return
	}

	backends := getBackends()
	if *storeFilter != "" {
		var filtered []Backend
		for _, b := range backends {
			if b.pkgName == *storeFilter {
				filtered = append(filtered, b)
			}
		}
		if len(filtered) == 0 {
			fmt.Fprintf(os.Stderr, "Unknown backend %q\n", *storeFilter)
			os.Exit(1)
		}
		backends = filtered
	}

	modes := getBenchModes()
	if *policyFilter != "" {
		var filtered []benchMode
		for _, m := range modes {
			if m.name == *policyFilter {
				filtered = append(filtered, m)
			}
		}
		if len(filtered) == 0 {
			fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *policyFilter)
			os.Exit(1)
		}
		modes = filtered
	}

	trueCpuCount := runtime.NumCPU()
	var cpuSettings []int
	// Define the common CPU/vCPU settings.
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}

	if *cpuMaxFlag > 0 {
		desired := *cpuMaxFlag
		if desired > trueCpuCount {
			desired = trueCpuCount
		}
		cpuSettings = []int{desired}
	} else {
		for _, v := range commonCPUs {
			if v <= trueCpuCount {
				cpuSettings = append(cpuSettings, v)
			}
		}
	}

	// Define concurrency configurations.
	concurrencyConfigs := []testbench.Config{
		{NumProducers: 2, NumConsumers: 2},
		{NumProducers: 10, NumConsumers: 10},
		{NumProducers: 50, NumConsumers: 50},
	}
	if *highConcurrency {
		concurrencyConfigs = append(concurrencyConfigs,
			testbench.Config{NumProducers: 100, NumConsumers: 100},
			testbench.Config{NumProducers: 250, NumConsumers: 250},
			testbench.Config{NumProducers: 500, NumConsumers: 500},
		)
	}

	testDuration := *durationFlag

	// Total number of runs, for progress tracking.
	totalTests := len(cpuSettings) * len(concurrencyConfigs) * (*testIterations) * len(backends) * len(modes)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetDescription("benchmarking"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	var allSessions []report.FullReport

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := report.GatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []report.BenchmarkResult

		// Loop over each concurrency configuration.
		for _, cfg := range concurrencyConfigs {
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d]\n", cfg.NumProducers, cfg.NumConsumers)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, *testIterations)
				for _, b := range backends {
					for _, mode := range modes {
						// Let the previous run's garbage settle before timing.
						runtime.GC()
						time.Sleep(250 * time.Millisecond)

						var produced, consumed, dropped int64
						var actualTime time.Duration
						limit, batch := 0, 0
						if mode.raw {
							produced, consumed, actualTime = testbench.RunTimedTest(
								b.newStore(), cfg, testDuration, newBenchEvent)
						} else {
							limit, batch = *limitFlag, *batchFlag
							q := logqueue.New[*benchEvent](limit, mode.policy,
								logqueue.WithStore[*benchEvent](b.newRequestStore()))
							produced, consumed, dropped, actualTime = testbench.RunPolicyTest(
								q, cfg, testDuration, batch, newBenchEvent)
						}
						throughput := float64(consumed) / actualTime.Seconds()
						timestamp := time.Now().Unix()

						fmt.Printf("    %s/%s => enqueued=%d, delivered=%d, dropped=%d, throughput=%.0f events/s, took=%v\n",
							b.name, mode.name, produced, consumed, dropped, throughput, actualTime)

						if bar != nil {
							_ = bar.Add(1)
						}

						results = append(results, report.BenchmarkResult{
							Backend:       b.name,
							Policy:        mode.name,
							NumProducers:  cfg.NumProducers,
							NumConsumers:  cfg.NumConsumers,
							RequestLimit:  limit,
							BatchSize:     batch,
							NumEnqueued:   produced,
							NumDelivered:  consumed,
							NumDropped:    dropped,
							TestDuration:  testDuration.String(),
							ActualElapsed: actualTime.String(),
							Throughput:    throughput,
							Timestamp:     timestamp,
							GoVersion:     runtime.Version(),
						})
					}
				}
			}
		}

		allSessions = append(allSessions, report.NewSession(sysInfo, results))
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// If JSON export is requested, append the new sessions to test-results.json.
	if *jsonExport {
		const filename = "test-results.json"
		if err := report.AppendSessions(filename, allSessions); err != nil {
			fmt.Fprintln(os.Stderr, "Error exporting JSON:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// getBackends enumerates the storage backends.
func getBackends() []Backend {
	return []Backend{
		{
			name:        "SegmentedMPMCQueue",
			pkgName:     "segmpmc",
			description: "A segmented MPMC queue that links fixed-size slot arrays; the default backend.",
			features:    []string{"MPMC", "FIFO", "Lock-Free", "Unbounded"},
			newStore: func() eventStore {
				return segmpmc.New[*benchEvent]()
			},
			newRequestStore: func() requestStore {
				return segmpmc.New[logqueue.Request[*benchEvent]]()
			},
		},
		{
			name:        "LinkedMPMCQueue",
			pkgName:     "linkmpmc",
			description: "A linked-node MPMC queue; every enqueue allocates a node, nothing is recycled.",
			features:    []string{"MPMC", "FIFO", "Lock-Free", "Unbounded"},
			newStore: func() eventStore {
				return linkmpmc.New[*benchEvent]()
			},
			newRequestStore: func() requestStore {
				return linkmpmc.New[logqueue.Request[*benchEvent]]()
			},
		},
		{
			name:        "MutexRingQueue",
			pkgName:     "mutexfifo",
			description: "A mutex-guarded growable ring buffer; the baseline the lock-free backends have to beat.",
			features:    []string{"MPMC", "FIFO", "Unbounded"},
			newStore: func() eventStore {
				return mutexfifo.New[*benchEvent](1024)
			},
			newRequestStore: func() requestStore {
				return mutexfifo.New[logqueue.Request[*benchEvent]](1024)
			},
		},
	}
}
