package perftester

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSampleTime_CallsAndShape verifies repeat batches of number calls.
func TestSampleTime_CallsAndShape(t *testing.T) {
	var calls int64
	s := SubjectOf("count", func() { atomic.AddInt64(&calls, 1) })

	sm := NewSampler()
	times, err := sm.SampleTime(s, 10, 3)
	require.NoError(t, err)

	assert.Len(t, times, 3)
	assert.Equal(t, int64(30), atomic.LoadInt64(&calls))
	for _, v := range times {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

// TestSampleTime_PerCall verifies that batch times are divided by number.
func TestSampleTime_PerCall(t *testing.T) {
	s := SubjectOf("sleep", func() { time.Sleep(2 * time.Millisecond) })

	times, err := NewSampler().SampleTime(s, 3, 1)
	require.NoError(t, err)
	require.Len(t, times, 1)

	assert.GreaterOrEqual(t, times[0], 0.002)
	assert.Less(t, times[0], 0.006, "a 3-call batch must not be reported as one call")
	t.Logf("per-call time: %.6f s", times[0])
}

// TestSampleTime_PassesArgs verifies argument forwarding.
func TestSampleTime_PassesArgs(t *testing.T) {
	var got []any
	s := NewSubject("args", func(args ...any) error {
		got = args
		return nil
	})

	_, err := NewSampler().SampleTime(s, 1, 1, 7, "x")
	require.NoError(t, err)
	assert.Equal(t, []any{7, "x"}, got)
}

// TestSampleTime_InvalidCounts verifies validation of number and repeat.
func TestSampleTime_InvalidCounts(t *testing.T) {
	sm := NewSampler()
	var ie *IncorrectArgumentError

	_, err := sm.SampleTime(noop(), 0, 1)
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "number", ie.Argument)

	_, err = sm.SampleTime(noop(), 1, -1)
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "repeat", ie.Argument)

	_, err = sm.SampleMemory(noop(), 0)
	require.True(t, errors.As(err, &ie), "got %v", err)
}

// TestSampleTime_SubjectError verifies that a returned error becomes a
// FunctionError carrying the original type and message.
func TestSampleTime_SubjectError(t *testing.T) {
	orig := &parseError{msg: "unexpected token"}
	var calls int
	s := NewSubject("parse", func(args ...any) error {
		calls++
		return orig
	})

	_, err := NewSampler().SampleTime(s, 5, 5)
	var fe *FunctionError
	require.True(t, errors.As(err, &fe), "got %v", err)

	assert.Equal(t, "parse", fe.Subject)
	assert.Equal(t, "parseError", fe.Type)
	assert.Equal(t, "unexpected token", fe.Message)
	assert.True(t, errors.Is(err, orig), "original error must stay reachable")
	assert.Equal(t, 1, calls, "sampling stops at the first failure")
}

// TestSampleTime_WrappedSubjectError verifies that the type of the innermost
// error is reported while the message keeps the wrapping context.
func TestSampleTime_WrappedSubjectError(t *testing.T) {
	orig := &parseError{msg: "unexpected token"}
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"errors.Wrap", errors.Wrap(orig, "line 3"), "line 3: unexpected token"},
		{"fmt.Errorf", fmt.Errorf("line 3: %w", orig), "line 3: unexpected token"},
		{"errors.WithStack", errors.WithStack(orig), "unexpected token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSubject("parse", func(args ...any) error { return tt.err })

			_, err := NewSampler().SampleTime(s, 1, 1)
			var fe *FunctionError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, "parseError", fe.Type)
			assert.Equal(t, tt.message, fe.Message)
			assert.Equal(t, "the tested function parse raised parseError: "+tt.message, fe.Error())
			assert.True(t, errors.Is(err, orig))
		})
	}

	panicky := SubjectOf("panicky", func() { panic(errors.Wrap(orig, "deep")) })
	_, err := NewSampler().SampleTime(panicky, 1, 1)
	var fe *FunctionError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "parseError", fe.Type)
	assert.Equal(t, "deep: unexpected token", fe.Message)
}

// TestSampleTime_SubjectPanic verifies that panics are contained.
func TestSampleTime_SubjectPanic(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		typ     string
		message string
	}{
		{"string", "index out of range", "panic", "index out of range"},
		{"error", &parseError{msg: "boom"}, "parseError", "boom"},
		{"other", 42, "int", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SubjectOf("panicky", func() { panic(tt.value) })

			_, err := NewSampler().SampleTime(s, 1, 1)
			var fe *FunctionError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tt.typ, fe.Type)
			assert.Equal(t, tt.message, fe.Message)
		})
	}
}

// TestSampleMemory_TraceBracketsCall verifies that a trace starts before and
// ends after the call and collects readings while it runs.
func TestSampleMemory_TraceBracketsCall(t *testing.T) {
	var n int64
	reader := MemoryReaderFunc(func() (float64, error) {
		return float64(atomic.AddInt64(&n, 1)), nil
	})
	sm := &Sampler{Memory: reader, Interval: time.Millisecond}
	s := SubjectOf("slow", func() { time.Sleep(20 * time.Millisecond) })

	traces, err := sm.SampleMemory(s, 2)
	require.NoError(t, err)
	require.Len(t, traces, 2)

	for _, tr := range traces {
		require.GreaterOrEqual(t, len(tr), 3, "expected readings during the call")
		for i := 1; i < len(tr); i++ {
			assert.Greater(t, tr[i], tr[i-1], "readings are in order")
		}
	}
	assert.Greater(t, traces[1][0], traces[0][len(traces[0])-1], "traces run one after another")
}

// TestSampleMemory_ShortCall verifies that even an instant call gets the
// bracketing readings.
func TestSampleMemory_ShortCall(t *testing.T) {
	sm := &Sampler{Memory: constReader(3), Interval: time.Hour}

	traces, err := sm.SampleMemory(noop(), 1)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 3}}, traces)
}

// TestSampleMemory_SubjectError verifies FunctionError on memory tracing.
func TestSampleMemory_SubjectError(t *testing.T) {
	sm := &Sampler{Memory: constReader(1), Interval: time.Millisecond}
	s := NewSubject("bad", func(args ...any) error { return errors.New("no") })

	_, err := sm.SampleMemory(s, 1)
	var fe *FunctionError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, "bad", fe.Subject)
}

// TestSampleMemory_ReaderError verifies that reader failures surface.
func TestSampleMemory_ReaderError(t *testing.T) {
	failing := MemoryReaderFunc(func() (float64, error) { return 0, errors.New("no procfs") })
	sm := &Sampler{Memory: failing, Interval: time.Millisecond}

	_, err := sm.SampleMemory(noop(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no procfs")
}

// TestReaders_Positive verifies the real readers on this process.
func TestReaders_Positive(t *testing.T) {
	rss, err := RSSReader().ReadMemory()
	require.NoError(t, err)
	assert.Greater(t, rss, 0.0)

	heap, err := HeapReader().ReadMemory()
	require.NoError(t, err)
	assert.Greater(t, heap, 0.0)

	t.Logf("rss = %.2f MB, heap = %.2f MB", rss, heap)
}
