package perftester

import (
	"testing"
)

// AssertTime runs a time test inside a Go test and fails it with the
// engine's message when a limit is violated.
//
// Example:
//
//	func TestParse_Speed(t *testing.T) {
//	    cfg := perftester.NewConfig()
//	    parse := perftester.NewSubject("parse", func(args ...any) error { return parse(input) })
//	    perftester.AssertTime(t, cfg, parse, perftester.RawLimit(2e-6))
//	}
func AssertTime(t testing.TB, c *Config, s *Subject, limits Limits, args ...any) TimeResult {
	t.Helper()

	r, err := c.TestTime(s, limits, Overrides{}, args...)
	if err != nil {
		t.Fatalf("%s", c.Describe(err))
		return r
	}

	t.Logf("✓ %s: min = %s s/call", s.Name(), formatSignif(r.Min, c.Digits()))
	if r.HasRelative() {
		t.Logf("  min_relative = %s", formatSignif(r.MinRelative, c.Digits()))
	}
	return r
}

// AssertMemory runs a memory test inside a Go test.
func AssertMemory(t testing.TB, c *Config, s *Subject, limits Limits, args ...any) MemoryResult {
	t.Helper()

	r, err := c.TestMemory(s, limits, Overrides{}, args...)
	if err != nil {
		t.Fatalf("%s", c.Describe(err))
		return r
	}

	t.Logf("✓ %s: max = %s MB", s.Name(), formatSignif(r.Max, c.Digits()))
	if r.HasRelative() {
		t.Logf("  max_relative = %s", formatSignif(r.MaxRelative, c.Digits()))
	}
	return r
}

// AssertPerformance runs a time test and a memory test as subtests.
func AssertPerformance(t *testing.T, c *Config, s *Subject, timeLimits, memoryLimits Limits, args ...any) {
	t.Helper()

	t.Run("Time", func(t *testing.T) {
		AssertTime(t, c, s, timeLimits, args...)
	})

	t.Run("Memory", func(t *testing.T) {
		AssertMemory(t, c, s, memoryLimits, args...)
	})
}

// PrintBenchmark benchmarks s and writes the rounded results to the test log.
// Use it to choose limits before writing assertions.
func PrintBenchmark(t testing.TB, c *Config, s *Subject, args ...any) Results {
	t.Helper()

	res, err := c.Benchmark(s, args...)
	if err != nil {
		t.Fatalf("%s", c.Describe(err))
		return res
	}

	d := c.Digits()
	t.Logf("\n=== %s ===", s.Name())
	t.Logf("Time (seconds per call):")
	t.Logf("  min          = %s", formatSignif(res.Time.Min, d))
	t.Logf("  mean         = %s", formatSignif(res.Time.Mean, d))
	t.Logf("  max          = %s", formatSignif(res.Time.Max, d))
	t.Logf("  min_relative = %s", formatSignif(res.Time.MinRelative, d))
	t.Logf("Memory (MB):")
	t.Logf("  max          = %s", formatSignif(res.Memory.Max, d))
	t.Logf("  mean         = %s", formatSignif(res.Memory.Mean, d))
	t.Logf("  max_relative = %s", formatSignif(res.Memory.MaxRelative, d))
	return res
}
