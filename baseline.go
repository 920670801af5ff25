package perftester

import (
	"log/slog"
	"sync"

	"github.com/montanaflynn/stats"
)

// DefaultReference is the built-in reference subject. It does nothing, so
// its cost is the cost of calling a function through the sampler.
var DefaultReference = SubjectOf("perftester.reference", func() {})

// Baseline holds the reference subject and its cached summary, used to turn
// raw figures into ratios. A zero cached value means "not calibrated".
type Baseline struct {
	mu        sync.Mutex
	sampler   *Sampler
	settings  func() Settings
	logger    *slog.Logger
	reference *Subject
	time      float64 // min seconds per call
	memory    float64 // max MB
}

func newBaseline(sampler *Sampler, settings func() Settings, logger *slog.Logger) *Baseline {
	return &Baseline{
		sampler:   sampler,
		settings:  settings,
		logger:    logger,
		reference: DefaultReference,
	}
}

// Reference returns the current reference subject.
func (b *Baseline) Reference() *Subject {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reference
}

// SetReference replaces the reference subject and drops both cached figures.
// A nil subject restores DefaultReference.
func (b *Baseline) SetReference(s *Subject) {
	if s == nil {
		s = DefaultReference
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reference = s
	b.time, b.memory = 0, 0
}

// CalibrateTime samples the reference with the current time defaults and
// stores the minimum per-call time.
func (b *Baseline) CalibrateTime() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calibrateTimeLocked()
}

func (b *Baseline) calibrateTimeLocked() (float64, error) {
	d := b.settings().Time
	raw, err := b.sampler.SampleTime(b.reference, d.Number, d.Repeat)
	if err != nil {
		return 0, err
	}
	minV, err := stats.Min(raw)
	if err != nil {
		return 0, err
	}
	b.time = minV
	b.logger.Debug("time baseline calibrated", "reference", b.reference.Name(), "seconds", minV)
	return minV, nil
}

// CalibrateMemory traces the reference with the current memory defaults and
// stores the peak reading.
func (b *Baseline) CalibrateMemory() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calibrateMemoryLocked()
}

func (b *Baseline) calibrateMemoryLocked() (float64, error) {
	d := b.settings().Memory
	raw, err := b.sampler.SampleMemory(b.reference, d.Repeat)
	if err != nil {
		return 0, err
	}
	res, err := AggregateMemory(raw, 0)
	if err != nil {
		return 0, err
	}
	b.memory = res.Max
	b.logger.Debug("memory baseline calibrated", "reference", b.reference.Name(), "mb", res.Max)
	return res.Max, nil
}

// Time returns the cached time baseline, calibrating it first if needed.
func (b *Baseline) Time() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.time > 0 {
		return b.time, nil
	}
	return b.calibrateTimeLocked()
}

// FreshTime recalibrates the time baseline unconditionally. Relative time
// checks call it right before comparing, because machine load drifts.
func (b *Baseline) FreshTime() (float64, error) {
	return b.CalibrateTime()
}

// Memory returns the cached memory baseline, calibrating it first if needed.
// Peak memory of the reference does not drift within a process, so it is
// only recomputed when the reference changes or on explicit request.
func (b *Baseline) Memory() (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.memory > 0 {
		return b.memory, nil
	}
	return b.calibrateMemoryLocked()
}

// cachedTime returns the time baseline without triggering calibration.
func (b *Baseline) cachedTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.time
}

// cachedMemory returns the memory baseline without triggering calibration.
func (b *Baseline) cachedMemory() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.memory
}
