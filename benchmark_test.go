package perftester

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqrtSink float64

func sumSqrt() *Subject {
	return NewSubject("sum_sqrt", func(args ...any) error {
		n, err := IntArg(args, 0)
		if err != nil {
			return err
		}
		total := 0.0
		for i := 0; i < n; i++ {
			total += math.Sqrt(float64(i))
		}
		sqrtSink = total
		return nil
	})
}

// TestBenchmark_Results verifies that both summaries and their relative
// figures are produced.
func TestBenchmark_Results(t *testing.T) {
	c := newTestConfig()
	s := sumSqrt()

	res, err := c.Benchmark(s, 100)
	require.NoError(t, err)

	assert.Len(t, res.Time.RawTimes, 3)
	assert.True(t, res.Time.HasRelative())
	assert.LessOrEqual(t, res.Time.Min, res.Time.Mean)
	assert.LessOrEqual(t, res.Time.Mean, res.Time.Max)

	assert.Len(t, res.Memory.RawResults, 2)
	assert.Equal(t, 10.0, res.Memory.Max)
	assert.True(t, res.Memory.HasRelative())
	assert.Equal(t, 1.0, res.Memory.MaxRelative)

	t.Logf("sum_sqrt(100): min=%.3g s, min_relative=%.3g", res.Time.Min, res.Time.MinRelative)
}

// TestBenchmark_MonotonicInput verifies that more work takes longer.
func TestBenchmark_MonotonicInput(t *testing.T) {
	c := newTestConfig()
	s := sumSqrt()

	small, err := c.TimeBenchmark(s, Overrides{}, 100)
	require.NoError(t, err)
	large, err := c.TimeBenchmark(s, Overrides{}, 100_000)
	require.NoError(t, err)

	assert.Greater(t, large.Min, small.Min)
	assert.Greater(t, large.MinRelative, small.MinRelative)
}

// TestBenchmark_MaterializesEntry verifies that measuring creates the
// subject's settings from the current defaults.
func TestBenchmark_MaterializesEntry(t *testing.T) {
	c := newTestConfig()
	s := sumSqrt()

	_, err := c.Benchmark(s, 10)
	require.NoError(t, err)
	assert.True(t, c.Configured(s))

	require.NoError(t, c.SetDefaults(KindTime, Number(1)))
	assert.Equal(t, 20, c.Settings(s).Time.Number)
}

// TestBenchmarkWith_Overrides verifies that Number applies to timing only,
// Repeat to both paths, and that nothing is persisted.
func TestBenchmarkWith_Overrides(t *testing.T) {
	var calls int64
	s := SubjectOf("count", func() { atomic.AddInt64(&calls, 1) })
	c := newTestConfig()

	res, err := c.BenchmarkWith(s, Overrides{Number: 5, Repeat: 1})
	require.NoError(t, err)

	assert.Len(t, res.Time.RawTimes, 1)
	assert.Len(t, res.Memory.RawResults, 1)
	assert.Equal(t, int64(5+1), atomic.LoadInt64(&calls))
	assert.Equal(t, TimeSettings{Number: 20, Repeat: 3}, c.Settings(s).Time)
	assert.Equal(t, MemorySettings{Repeat: 2}, c.Settings(s).Memory)

	res, err = c.BenchmarkWith(s, Overrides{Number: 5})
	require.NoError(t, err)
	assert.Len(t, res.Time.RawTimes, 3)
	assert.Len(t, res.Memory.RawResults, 2)

	_, err = c.BenchmarkWith(s, Overrides{Number: -1})
	assert.Equal(t, "IncorrectArgumentError", ErrorKind(err))
}

// TestBenchmark_FunctionError verifies that subject failures abort the
// benchmark.
func TestBenchmark_FunctionError(t *testing.T) {
	c := newTestConfig()
	_, err := c.Benchmark(sumSqrt())
	assert.Equal(t, "FunctionError", ErrorKind(err), "missing argument fails the subject")
}

// TestObserver_ReceivesResults verifies that benchmarks reach the observer.
func TestObserver_ReceivesResults(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestConfig(WithObserver(obs))

	_, err := c.Benchmark(sumSqrt(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"time:sum_sqrt", "memory:sum_sqrt"}, obs.events)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) ObserveTime(subject string, r TimeResult) {
	o.events = append(o.events, "time:"+subject)
}

func (o *recordingObserver) ObserveMemory(subject string, r MemoryResult) {
	o.events = append(o.events, "memory:"+subject)
}

// TestBenchmark_Idempotent verifies that repeated benchmarks agree within
// measurement noise.
func TestBenchmark_Idempotent(t *testing.T) {
	c := newTestConfig()
	s := sumSqrt()
	require.NoError(t, c.Set(s, KindTime, Number(50), Repeat(5)))

	first, err := c.TimeBenchmark(s, Overrides{}, 10_000)
	require.NoError(t, err)
	second, err := c.TimeBenchmark(s, Overrides{}, 10_000)
	require.NoError(t, err)

	ratio := first.Min / second.Min
	assert.Greater(t, ratio, 0.2)
	assert.Less(t, ratio, 5.0)
	t.Logf("min: %.3g vs %.3g s", first.Min, second.Min)
}

// TestBenchmark_MemoryFlatForComputeBoundSubject verifies that a subject
// without allocations peaks at the same resident memory for both sizes. The
// subject runs once before measuring so that the first trace does not pay
// for faulting in the code and the test binary's lazily mapped pages.
func TestBenchmark_MemoryFlatForComputeBoundSubject(t *testing.T) {
	c := newTestConfig(WithMemoryReader(RSSReader()))
	s := sumSqrt()
	_, err := c.MemoryBenchmark(s, Overrides{}, 1000)
	require.NoError(t, err)

	small, err := c.MemoryBenchmark(s, Overrides{}, 100)
	require.NoError(t, err)
	large, err := c.MemoryBenchmark(s, Overrides{}, 1000)
	require.NoError(t, err)

	assert.InEpsilon(t, small.Max, large.Max, 0.01)
	t.Logf("max: %.4g vs %.4g MB", small.Max, large.Max)
}
