package perftester

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecorder_Observe verifies the gauges and the test counter.
func TestRecorder_Observe(t *testing.T) {
	r := NewRecorder()

	r.ObserveTime("f", TimeResult{Min: 0.5, MinRelative: 10, RawTimesRelative: []float64{10}})
	r.ObserveMemory("f", MemoryResult{Max: 42})
	r.ObserveTest("m.a", nil)
	r.ObserveTest("m.b", errors.New("x"))
	r.ObserveTest("m.c", nil)

	assert.Equal(t, 0.5, testutil.ToFloat64(r.timeMin.WithLabelValues("f")))
	assert.Equal(t, 10.0, testutil.ToFloat64(r.timeMinRel.WithLabelValues("f")))
	assert.Equal(t, 42.0, testutil.ToFloat64(r.memoryMax.WithLabelValues("f")))
	assert.Equal(t, 0, testutil.CollectAndCount(r.memoryMaxRel), "no relative memory figure was observed")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tests.WithLabelValues("passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tests.WithLabelValues("failed")))
}

// TestRecorder_WiredThroughConfig verifies that measurements reach the
// recorder and can be written out.
func TestRecorder_WiredThroughConfig(t *testing.T) {
	rec := NewRecorder()
	c := newTestConfig(WithObserver(rec), WithMemoryReader(constReader(25)))

	_, err := c.TestMemory(noop(), RawLimit(100), Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 25.0, testutil.ToFloat64(rec.memoryMax.WithLabelValues("noop")))

	path := filepath.Join(t.TempDir(), "perftester.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `perftester_memory_max_megabytes{subject="noop"} 25`)
}

func counterValue(r *Recorder, result string) float64 {
	return testutil.ToFloat64(r.tests.WithLabelValues(result))
}
