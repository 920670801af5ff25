package perftester

import (
	"github.com/montanaflynn/stats"
)

// TimeResult summarises timing batches. All times are seconds per call.
type TimeResult struct {
	Min              float64   `yaml:"min"`
	MinRelative      float64   `yaml:"min_relative,omitempty"`
	Mean             float64   `yaml:"mean"`
	Max              float64   `yaml:"max"`
	RawTimes         []float64 `yaml:"raw_times"`
	RawTimesRelative []float64 `yaml:"raw_times_relative,omitempty"`
}

// HasRelative reports whether a baseline was available when the result was
// built.
func (r TimeResult) HasRelative() bool { return r.RawTimesRelative != nil }

// WithBaseline returns a copy carrying figures relative to baselineTime.
// A non-positive baseline leaves the relative figures unset.
func (r TimeResult) WithBaseline(baselineTime float64) TimeResult {
	r.MinRelative, r.RawTimesRelative = 0, nil
	if baselineTime <= 0 {
		return r
	}
	r.MinRelative = r.Min / baselineTime
	r.RawTimesRelative = make([]float64, len(r.RawTimes))
	for i, v := range r.RawTimes {
		r.RawTimesRelative[i] = v / baselineTime
	}
	return r
}

// MemoryResult summarises memory traces. Memory is in MB.
type MemoryResult struct {
	Max                     float64     `yaml:"max"`
	MaxRelative             float64     `yaml:"max_relative,omitempty"`
	Mean                    float64     `yaml:"mean"`
	MaxResultPerRun         []float64   `yaml:"max_result_per_run"`
	MaxResultPerRunRelative []float64   `yaml:"max_result_per_run_relative,omitempty"`
	MeanResultPerRun        []float64   `yaml:"mean_result_per_run"`
	RawResults              [][]float64 `yaml:"raw_results"`
	RelativeResults         [][]float64 `yaml:"relative_results,omitempty"`
}

// HasRelative reports whether a baseline was available when the result was
// built.
func (r MemoryResult) HasRelative() bool { return r.RelativeResults != nil }

// WithBaseline returns a copy carrying figures relative to baselineMemory.
func (r MemoryResult) WithBaseline(baselineMemory float64) MemoryResult {
	r.MaxRelative, r.MaxResultPerRunRelative, r.RelativeResults = 0, nil, nil
	if baselineMemory <= 0 {
		return r
	}
	r.MaxRelative = r.Max / baselineMemory
	r.MaxResultPerRunRelative = make([]float64, len(r.MaxResultPerRun))
	for i, v := range r.MaxResultPerRun {
		r.MaxResultPerRunRelative[i] = v / baselineMemory
	}
	r.RelativeResults = make([][]float64, len(r.RawResults))
	for i, run := range r.RawResults {
		rel := make([]float64, len(run))
		for j, v := range run {
			rel[j] = v / baselineMemory
		}
		r.RelativeResults[i] = rel
	}
	return r
}

// Results is what Benchmark returns.
type Results struct {
	Time   TimeResult   `yaml:"time"`
	Memory MemoryResult `yaml:"memory"`
}

// AggregateTime reduces per-call batch times. baselineTime ≤ 0 means no
// baseline is available.
func AggregateTime(raw []float64, baselineTime float64) (TimeResult, error) {
	if len(raw) == 0 {
		return TimeResult{}, incorrectArgument("raw_times", "no observations to aggregate")
	}

	minV, err := stats.Min(raw)
	if err != nil {
		return TimeResult{}, err
	}
	meanV, err := stats.Mean(raw)
	if err != nil {
		return TimeResult{}, err
	}
	maxV, err := stats.Max(raw)
	if err != nil {
		return TimeResult{}, err
	}

	r := TimeResult{
		Min:      minV,
		Mean:     meanV,
		Max:      maxV,
		RawTimes: raw,
	}
	return r.WithBaseline(baselineTime), nil
}

// AggregateMemory reduces memory traces: per-run maximum and mean, then the
// overall maximum and the mean of the per-run maxima.
func AggregateMemory(raw [][]float64, baselineMemory float64) (MemoryResult, error) {
	if len(raw) == 0 {
		return MemoryResult{}, incorrectArgument("raw_results", "no observations to aggregate")
	}

	r := MemoryResult{
		RawResults:       raw,
		MaxResultPerRun:  make([]float64, 0, len(raw)),
		MeanResultPerRun: make([]float64, 0, len(raw)),
	}
	for i, run := range raw {
		if len(run) == 0 {
			return MemoryResult{}, incorrectArgument("raw_results", "run %d has no readings", i)
		}
		runMax, err := stats.Max(run)
		if err != nil {
			return MemoryResult{}, err
		}
		runMean, err := stats.Mean(run)
		if err != nil {
			return MemoryResult{}, err
		}
		r.MaxResultPerRun = append(r.MaxResultPerRun, runMax)
		r.MeanResultPerRun = append(r.MeanResultPerRun, runMean)
	}

	var err error
	if r.Max, err = stats.Max(r.MaxResultPerRun); err != nil {
		return MemoryResult{}, err
	}
	if r.Mean, err = stats.Mean(r.MaxResultPerRun); err != nil {
		return MemoryResult{}, err
	}
	return r.WithBaseline(baselineMemory), nil
}
