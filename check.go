package perftester

import (
	"github.com/cockroachdb/errors"
)

// Limits are the thresholds of a test. A nil limit is not checked; with
// both nil the test only measures.
type Limits struct {
	Raw      *float64 // Seconds per call (time) or MB (memory)
	Relative *float64 // Ratio against the baseline
}

// Limit returns a pointer to v, for use in Limits literals.
func Limit(v float64) *float64 { return &v }

// RawLimit returns Limits with only a raw limit.
func RawLimit(v float64) Limits { return Limits{Raw: Limit(v)} }

// RelativeLimit returns Limits with only a relative limit.
func RelativeLimit(v float64) Limits { return Limits{Relative: Limit(v)} }

// checkState is a step of the threshold check.
type checkState int

const (
	stateStart checkState = iota
	stateRawCheck
	stateRelativeCheck
	statePass
	stateFail
)

// check walks START → RAW_CHECK → RELATIVE_CHECK → PASS. The first violated
// limit ends the walk in FAIL; the relative figure is only computed when the
// raw check passed.
func check(limits Limits, raw func(limit float64) error, relative func(limit float64) error) error {
	state := stateStart
	var err error
	for {
		switch state {
		case stateStart:
			state = stateRawCheck
		case stateRawCheck:
			state = stateRelativeCheck
			if limits.Raw != nil {
				if err = raw(*limits.Raw); err != nil {
					state = stateFail
				}
			}
		case stateRelativeCheck:
			state = statePass
			if limits.Relative != nil {
				if err = relative(*limits.Relative); err != nil {
					state = stateFail
				}
			}
		case statePass:
			return nil
		case stateFail:
			return err
		}
	}
}

// TestTime measures s and checks min against limits.Raw and min_relative
// against limits.Relative. The time baseline is recalibrated right before
// the relative comparison. The measured result is returned whenever
// measuring succeeded; after a raw failure it carries no relative figures.
func (c *Config) TestTime(s *Subject, limits Limits, o Overrides, args ...any) (TimeResult, error) {
	r, err := c.measureTime(s, o, args)
	if err != nil {
		return TimeResult{}, err
	}
	digits := c.Digits()

	err = check(limits,
		func(limit float64) error {
			if r.Min > limit {
				return errors.WithStack(&TimeTestError{
					Subject: s.Name(), Limit: limit, Measured: r.Min, Digits: digits,
				})
			}
			return nil
		},
		func(limit float64) error {
			bt, err := c.baseline.FreshTime()
			if err != nil {
				return err
			}
			r = r.WithBaseline(bt)
			if r.MinRelative > limit {
				return errors.WithStack(&TimeTestError{
					Subject: s.Name(), Relative: true, Limit: limit, Measured: r.MinRelative, Digits: digits,
				})
			}
			return nil
		})
	if err == nil && limits.Relative == nil {
		r = r.WithBaseline(c.baseline.cachedTime())
	}
	c.observeTime(s, r)
	return r, err
}

// TestMemory measures s and checks max against limits.Raw and max_relative
// against limits.Relative.
func (c *Config) TestMemory(s *Subject, limits Limits, o Overrides, args ...any) (MemoryResult, error) {
	r, err := c.measureMemory(s, o, args)
	if err != nil {
		return MemoryResult{}, err
	}
	digits := c.Digits()

	err = check(limits,
		func(limit float64) error {
			if r.Max > limit {
				return errors.WithStack(&MemoryTestError{
					Subject: s.Name(), Limit: limit, Measured: r.Max, Digits: digits,
				})
			}
			return nil
		},
		func(limit float64) error {
			bm, err := c.baseline.Memory()
			if err != nil {
				return err
			}
			r = r.WithBaseline(bm)
			if r.MaxRelative > limit {
				return errors.WithStack(&MemoryTestError{
					Subject: s.Name(), Relative: true, Limit: limit, Measured: r.MaxRelative, Digits: digits,
				})
			}
			return nil
		})
	if err == nil && limits.Relative == nil {
		r = r.WithBaseline(c.baseline.cachedMemory())
	}
	c.observeMemory(s, r)
	return r, err
}

// TestTime runs a time test with the shared store.
func TestTime(s *Subject, limits Limits, args ...any) (TimeResult, error) {
	return Shared().TestTime(s, limits, Overrides{}, args...)
}

// TestMemory runs a memory test with the shared store.
func TestMemory(s *Subject, limits Limits, args ...any) (MemoryResult, error) {
	return Shared().TestMemory(s, limits, Overrides{}, args...)
}
