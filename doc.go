// Package perftester measures the execution time and memory usage of Go
// functions and compares the measurements with limits, failing with a
// descriptive error when a limit is exceeded.
//
// # Overview
//
// perftester serves two purposes: quick interactive benchmarking, and
// performance regression tests that live next to (or inside) a unit-test
// suite.
//
// The package components:
//
//   - sampler    - runs a subject repeatedly and records time or memory
//   - aggregate  - min/mean/max summaries of the raw observations
//   - baseline   - reference function used for machine-independent ratios
//   - config     - per-subject repetition settings with defaults
//   - check      - raw and relative limit checks
//   - suite      - named tests, test-file discovery and run reports
//   - calls      - recording of every call of a wrapped subject
//   - assertions - helpers for go test
//
// # Quick Start
//
// Wrap the function under test in a Subject. Settings are keyed by the
// Subject handle, so keep it in a variable:
//
//	cfg := perftester.NewConfig()
//	sum := perftester.NewSubject("sum_sqrt", func(args ...any) error {
//	    n, err := perftester.IntArg(args, 0)
//	    if err != nil {
//	        return err
//	    }
//	    total := 0.0
//	    for i := 0; i < n; i++ {
//	        total += math.Sqrt(float64(i))
//	    }
//	    return nil
//	})
//
//	results, err := cfg.Benchmark(sum, 1000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.PP(os.Stdout, results.Time, results.Memory)
//
// # Time
//
// Time is measured like Python's timeit.repeat: Repeat batches of Number
// consecutive calls. Each batch is divided by Number, so every observation is
// the time of a single call and Number does not change the size of the limit
// you write. The minimum over the batches is the figure compared with a raw
// limit:
//
//	_, err := cfg.TestTime(sum, perftester.RawLimit(5e-6), perftester.Overrides{}, 1000)
//
// # Memory
//
// Memory is traced while the subject runs: readings are taken before the call,
// every Interval during it, and after it. Figures are in MB (10^6 bytes). The
// peak over all traces is compared with a raw limit. The default reader uses
// the resident set size of the process; HeapReader reads the Go heap instead.
//
// # Relative limits
//
// A relative limit compares the measurement with the same measurement of a
// reference function (by default an empty function), run in the same
// process. A relative time limit of 10 means "at most ten times the cost of
// calling an empty function". The time baseline is recalibrated right before
// every relative time check; the memory baseline is computed once.
//
// When a raw and a relative limit are both given, the raw limit is checked
// first and the test stops at the first violated limit.
//
// # Settings
//
//	cfg.SetDefaults(perftester.KindTime, perftester.Number(1000))
//	cfg.Set(sum, perftester.KindTime, perftester.Number(10), perftester.Repeat(3))
//	cfg.Set(sum, perftester.KindMemory, perftester.Repeat(2))
//
// Changing the defaults does not touch subjects that already have settings.
// For memory only repeat can be set.
//
// # Errors
//
// A failing subject (returned error or panic) surfaces as *FunctionError;
// violated limits as *TimeTestError or *MemoryTestError; invalid settings
// as *IncorrectArgumentError. Use errors.As to tell them apart.
//
// # Test Files
//
// The perftester command discovers perftester_*.yaml files and runs the tests
// they declare against subjects registered with RegisterSubject:
//
//	settings:
//	  sleep: {time: {number: 1, repeat: 1}}
//	tests:
//	  - name: perftester_sleep
//	    checks:
//	      - {subject: sleep, kind: time, raw_limit: 0.011}
//
// # Recording calls
//
// TimePerformance and MemoryPerformance wrap a subject so that every call made
// through it is recorded in DefaultCalls: the caller, the arguments and the
// execution time or memory peak, plus per-subject totals. Summarize reduces
// the registry to the totals and Save writes it as JSON or YAML:
//
//	parse = perftester.TimePerformance(parse)
//	// ... run the program ...
//	perftester.DefaultCalls().Save("calls.json")
//
// # Concurrency
//
// Measurements are synchronous and meant for one subject at a time. Measuring
// subjects that start their own goroutines or processes gives figures that
// are hard to interpret. Config is safe for concurrent use, but measuring in
// parallel skews the results.
package perftester
