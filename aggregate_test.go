package perftester

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAggregateTime_Summary verifies min, mean and max of batch times.
func TestAggregateTime_Summary(t *testing.T) {
	r, err := AggregateTime([]float64{3, 1, 2}, 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Min)
	assert.Equal(t, 2.0, r.Mean)
	assert.Equal(t, 3.0, r.Max)
	assert.Equal(t, []float64{3, 1, 2}, r.RawTimes)
	assert.False(t, r.HasRelative())
	assert.Zero(t, r.MinRelative)
}

// TestAggregateTime_Relative verifies ratios against the baseline.
func TestAggregateTime_Relative(t *testing.T) {
	r, err := AggregateTime([]float64{3, 1, 2}, 0.5)
	require.NoError(t, err)

	require.True(t, r.HasRelative())
	assert.Equal(t, 2.0, r.MinRelative)
	assert.Equal(t, []float64{6, 2, 4}, r.RawTimesRelative)

	// Dropping the baseline removes every relative figure.
	plain := r.WithBaseline(0)
	assert.False(t, plain.HasRelative())
	assert.Zero(t, plain.MinRelative)
	assert.Equal(t, r.Min, plain.Min)
}

// TestAggregateTime_Empty verifies that nothing cannot be summarised.
func TestAggregateTime_Empty(t *testing.T) {
	_, err := AggregateTime(nil, 1)
	var ie *IncorrectArgumentError
	assert.True(t, errors.As(err, &ie), "got %v", err)
}

// TestAggregateMemory_Summary verifies per-run and overall figures.
func TestAggregateMemory_Summary(t *testing.T) {
	raw := [][]float64{{1, 5, 3}, {2, 4}}
	r, err := AggregateMemory(raw, 0)
	require.NoError(t, err)

	assert.Equal(t, []float64{5, 4}, r.MaxResultPerRun)
	assert.Equal(t, []float64{3, 3}, r.MeanResultPerRun)
	assert.Equal(t, 5.0, r.Max)
	assert.Equal(t, 4.5, r.Mean)
	assert.Equal(t, raw, r.RawResults)
	assert.False(t, r.HasRelative())
}

// TestAggregateMemory_Relative verifies ratios against the baseline.
func TestAggregateMemory_Relative(t *testing.T) {
	r, err := AggregateMemory([][]float64{{1, 5, 3}, {2, 4}}, 2)
	require.NoError(t, err)

	require.True(t, r.HasRelative())
	assert.Equal(t, 2.5, r.MaxRelative)
	assert.Equal(t, []float64{2.5, 2}, r.MaxResultPerRunRelative)
	assert.Equal(t, [][]float64{{0.5, 2.5, 1.5}, {1, 2}}, r.RelativeResults)
}

// TestAggregateMemory_EmptyRun verifies that every trace needs a reading.
func TestAggregateMemory_EmptyRun(t *testing.T) {
	_, err := AggregateMemory([][]float64{{1}, {}}, 0)
	var ie *IncorrectArgumentError
	assert.True(t, errors.As(err, &ie), "got %v", err)

	_, err = AggregateMemory(nil, 0)
	assert.True(t, errors.As(err, &ie), "got %v", err)
}

// TestAggregate_Ordering verifies min ≤ mean ≤ max on assorted inputs.
func TestAggregate_Ordering(t *testing.T) {
	inputs := [][]float64{
		{0.5},
		{1e-9, 2e-9, 1.5e-9},
		{7, 7, 7, 7},
		{100, 0.001, 42},
	}
	for _, in := range inputs {
		tr, err := AggregateTime(in, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, tr.Min, tr.Mean)
		assert.LessOrEqual(t, tr.Mean, tr.Max)

		mr, err := AggregateMemory([][]float64{in, in}, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, mr.Mean, mr.Max)
	}
}
