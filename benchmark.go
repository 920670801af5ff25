package perftester

// Overrides replace the stored repetition counts for a single call. Zero
// values leave the stored setting in place. Overrides are never persisted.
type Overrides struct {
	Number int
	Repeat int
}

func (o Overrides) check() error {
	if o.Number < 0 {
		return incorrectArgument("Number", "must not be negative, got %d", o.Number)
	}
	if o.Repeat < 0 {
		return incorrectArgument("Repeat", "must not be negative, got %d", o.Repeat)
	}
	return nil
}

func (o Overrides) timeSettings(s TimeSettings) TimeSettings {
	if o.Number > 0 {
		s.Number = o.Number
	}
	if o.Repeat > 0 {
		s.Repeat = o.Repeat
	}
	return s
}

func (o Overrides) memorySettings(s MemorySettings) (MemorySettings, error) {
	if o.Number != 0 {
		return s, incorrectArgument(KeyNumber, "for memory tests only %q can be set, not %q", KeyRepeat, KeyNumber)
	}
	if o.Repeat > 0 {
		s.Repeat = o.Repeat
	}
	return s, nil
}

// measureTime samples and aggregates without any baseline figures.
func (c *Config) measureTime(s *Subject, o Overrides, args []any) (TimeResult, error) {
	if err := o.check(); err != nil {
		return TimeResult{}, err
	}
	ts := o.timeSettings(c.materialize(s).Time)
	raw, err := c.sampler.SampleTime(s, ts.Number, ts.Repeat, args...)
	if err != nil {
		return TimeResult{}, err
	}
	return AggregateTime(raw, 0)
}

// measureMemory samples and aggregates without any baseline figures.
func (c *Config) measureMemory(s *Subject, o Overrides, args []any) (MemoryResult, error) {
	if err := o.check(); err != nil {
		return MemoryResult{}, err
	}
	ms, err := o.memorySettings(c.materialize(s).Memory)
	if err != nil {
		return MemoryResult{}, err
	}
	raw, err := c.sampler.SampleMemory(s, ms.Repeat, args...)
	if err != nil {
		return MemoryResult{}, err
	}
	return AggregateMemory(raw, 0)
}

func (c *Config) observeTime(s *Subject, r TimeResult) {
	if c.observer != nil {
		c.observer.ObserveTime(s.Name(), r)
	}
}

func (c *Config) observeMemory(s *Subject, r MemoryResult) {
	if c.observer != nil {
		c.observer.ObserveMemory(s.Name(), r)
	}
}

// TimeBenchmark measures execution time of s called with args. Relative
// figures use the cached time baseline, calibrating it if needed.
func (c *Config) TimeBenchmark(s *Subject, o Overrides, args ...any) (TimeResult, error) {
	r, err := c.measureTime(s, o, args)
	if err != nil {
		return TimeResult{}, err
	}
	bt, err := c.baseline.Time()
	if err != nil {
		return TimeResult{}, err
	}
	r = r.WithBaseline(bt)
	c.observeTime(s, r)
	return r, nil
}

// MemoryBenchmark measures memory usage of s called with args.
func (c *Config) MemoryBenchmark(s *Subject, o Overrides, args ...any) (MemoryResult, error) {
	r, err := c.measureMemory(s, o, args)
	if err != nil {
		return MemoryResult{}, err
	}
	bm, err := c.baseline.Memory()
	if err != nil {
		return MemoryResult{}, err
	}
	r = r.WithBaseline(bm)
	c.observeMemory(s, r)
	return r, nil
}

// Benchmark measures both time and memory of s with its current settings.
// No limits are involved.
func (c *Config) Benchmark(s *Subject, args ...any) (Results, error) {
	return c.BenchmarkWith(s, Overrides{}, args...)
}

// BenchmarkWith is Benchmark with per-call overrides. Number applies to the
// timing path only; Repeat applies to both.
func (c *Config) BenchmarkWith(s *Subject, o Overrides, args ...any) (Results, error) {
	tr, err := c.TimeBenchmark(s, o, args...)
	if err != nil {
		return Results{}, err
	}
	mr, err := c.MemoryBenchmark(s, Overrides{Repeat: o.Repeat}, args...)
	if err != nil {
		return Results{}, err
	}
	return Results{Time: tr, Memory: mr}, nil
}

// Benchmark measures s with the shared store.
func Benchmark(s *Subject, args ...any) (Results, error) {
	return Shared().Benchmark(s, args...)
}
