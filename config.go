package perftester

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind selects the time or the memory settings.
type Kind string

const (
	KindTime   Kind = "time"
	KindMemory Kind = "memory"
)

// Setting keys.
const (
	KeyNumber = "number"
	KeyRepeat = "repeat"
)

// DefaultDigits is the default display precision in significant digits.
const DefaultDigits = 4

// DefaultLogFile is the log file name used when none is configured.
const DefaultLogFile = "perftester.log"

// TimeSettings control timing: Number calls per batch, Repeat batches.
type TimeSettings struct {
	Number int `yaml:"number"`
	Repeat int `yaml:"repeat"`
}

// MemorySettings control memory tracing: Repeat independent single-call
// traces.
type MemorySettings struct {
	Repeat int `yaml:"repeat"`
}

// Settings are the repetition counts used to measure a subject.
type Settings struct {
	Time   TimeSettings   `yaml:"time"`
	Memory MemorySettings `yaml:"memory"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		Time:   TimeSettings{Number: 100_000, Repeat: 5},
		Memory: MemorySettings{Repeat: 1},
	}
}

// Param is a single setting assignment.
type Param struct {
	Key   string
	Value int
}

// Number sets the calls per timing batch.
func Number(n int) Param { return Param{Key: KeyNumber, Value: n} }

// Repeat sets the number of timing batches or memory traces.
func Repeat(n int) Param { return Param{Key: KeyRepeat, Value: n} }

// Observer receives every result measured through a Config.
type Observer interface {
	ObserveTime(subject string, r TimeResult)
	ObserveMemory(subject string, r MemoryResult)
}

// Config is the configuration store: per-subject settings with a default
// fallback, the baseline, display precision, traceback verbosity and log
// file settings. Create one with NewConfig, or use Shared for a
// process-wide instance.
type Config struct {
	mu        sync.Mutex
	defaults  Settings
	settings  map[*Subject]*Settings
	digits    int
	traceback bool
	logToFile bool
	logFile   string

	sampler  *Sampler
	baseline *Baseline
	observer Observer
	logger   *slog.Logger
}

// Option configures a Config.
type Option func(*Config)

// WithLogger sets the logger used for calibration and settings events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithMemoryReader replaces the default RSS reader.
func WithMemoryReader(r MemoryReader) Option {
	return func(c *Config) { c.sampler.Memory = r }
}

// WithTraceInterval sets how often memory is read during a trace.
func WithTraceInterval(d time.Duration) Option {
	return func(c *Config) { c.sampler.Interval = d }
}

// WithObserver registers an observer for every measured result.
func WithObserver(o Observer) Option {
	return func(c *Config) { c.observer = o }
}

// WithReference replaces the baseline reference subject.
func WithReference(s *Subject) Option {
	return func(c *Config) { c.baseline.reference = s }
}

// WithDefaults replaces the built-in default settings.
func WithDefaults(s Settings) Option {
	return func(c *Config) { c.defaults = s }
}

// NewConfig returns an independent configuration store.
func NewConfig(opts ...Option) *Config {
	logFile := DefaultLogFile
	if wd, err := os.Getwd(); err == nil {
		logFile = filepath.Join(wd, DefaultLogFile)
	}

	c := &Config{
		defaults:  DefaultSettings(),
		settings:  make(map[*Subject]*Settings),
		digits:    DefaultDigits,
		logToFile: true,
		logFile:   logFile,
		sampler:   NewSampler(),
		logger:    slog.Default(),
	}
	c.baseline = newBaseline(c.sampler, c.Defaults, c.logger)
	for _, opt := range opts {
		opt(c)
	}
	c.baseline.logger = c.logger
	if c.baseline.reference == nil {
		c.baseline.reference = DefaultReference
	}
	return c
}

var (
	shared     *Config
	sharedOnce sync.Once
)

// Shared returns the process-wide Config, creating it on first use. Every
// call returns the same instance.
func Shared() *Config {
	sharedOnce.Do(func() {
		shared = NewConfig()
	})
	return shared
}

// Baseline returns the store's baseline calibrator.
func (c *Config) Baseline() *Baseline { return c.baseline }

// Sampler returns the store's sampler.
func (c *Config) Sampler() *Sampler { return c.sampler }

// Logger returns the store's logger.
func (c *Config) Logger() *slog.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logger
}

// SetLogger replaces the logger of the store and its baseline.
func (c *Config) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()

	c.baseline.mu.Lock()
	c.baseline.logger = l
	c.baseline.mu.Unlock()
}

func checkKind(kind Kind) error {
	if kind != KindTime && kind != KindMemory {
		return incorrectArgument("kind", "must be one of %q or %q, got %q", KindMemory, KindTime, kind)
	}
	return nil
}

func checkParams(kind Kind, params []Param) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	for _, p := range params {
		switch {
		case p.Key == KeyNumber && kind == KindMemory:
			return incorrectArgument(p.Key, "for memory tests only %q can be set, not %q", KeyRepeat, KeyNumber)
		case p.Key != KeyNumber && p.Key != KeyRepeat:
			return incorrectArgument(p.Key, "unknown %s setting, expected %q or %q", kind, KeyNumber, KeyRepeat)
		case p.Value <= 0:
			return incorrectArgument(p.Key, "must be a positive integer, got %d", p.Value)
		}
	}
	return nil
}

func (s *Settings) apply(kind Kind, params []Param) {
	for _, p := range params {
		switch {
		case kind == KindTime && p.Key == KeyNumber:
			s.Time.Number = p.Value
		case kind == KindTime && p.Key == KeyRepeat:
			s.Time.Repeat = p.Value
		case kind == KindMemory && p.Key == KeyRepeat:
			s.Memory.Repeat = p.Value
		}
	}
}

func (s Settings) lookup(kind Kind, key string) (int, bool) {
	switch {
	case kind == KindTime && key == KeyNumber:
		return s.Time.Number, s.Time.Number > 0
	case kind == KindTime && key == KeyRepeat:
		return s.Time.Repeat, s.Time.Repeat > 0
	case kind == KindMemory && key == KeyRepeat:
		return s.Memory.Repeat, s.Memory.Repeat > 0
	}
	return 0, false
}

// Setting returns the subject's value for kind/key, falling back to the
// defaults when the subject has no entry. It never creates an entry.
func (c *Config) Setting(s *Subject, kind Kind, key string) (int, error) {
	if err := checkParams(kind, []Param{{Key: key, Value: 1}}); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.settings[s]; ok {
		if v, ok := entry.lookup(kind, key); ok {
			return v, nil
		}
	}
	v, _ := c.defaults.lookup(kind, key)
	return v, nil
}

// Settings returns the subject's settings, or the defaults when it has none.
func (c *Config) Settings(s *Subject) Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.settings[s]; ok {
		return *entry
	}
	return c.defaults
}

// Configured reports whether the subject has its own entry.
func (c *Config) Configured(s *Subject) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.settings[s]
	return ok
}

// Defaults returns the current default settings.
func (c *Config) Defaults() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.defaults
}

// Set merges params into the subject's entry, creating it from the current
// defaults first if needed. On error nothing is changed.
func (c *Config) Set(s *Subject, kind Kind, params ...Param) error {
	if s == nil {
		return incorrectArgument("subject", "must not be nil")
	}
	if err := checkParams(kind, params); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.materializeLocked(s).apply(kind, params)
	c.logger.Debug("settings changed", "subject", s.Name(), "kind", kind, "params", params)
	return nil
}

// SetDefaults merges params into the defaults. Subjects that already have
// an entry keep it.
func (c *Config) SetDefaults(kind Kind, params ...Param) error {
	if err := checkParams(kind, params); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults.apply(kind, params)
	c.logger.Debug("defaults changed", "kind", kind, "params", params)
	return nil
}

// materialize creates the subject's entry from the current defaults if it
// does not exist yet, and returns a copy of it.
func (c *Config) materialize(s *Subject) Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.materializeLocked(s)
}

func (c *Config) materializeLocked(s *Subject) *Settings {
	entry, ok := c.settings[s]
	if !ok {
		d := c.defaults
		entry = &d
		c.settings[s] = entry
	}
	return entry
}

// Subjects returns the configured subjects sorted by name.
func (c *Config) Subjects() []*Subject {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Subject, 0, len(c.settings))
	for s := range c.settings {
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Digits returns the display precision in significant digits.
func (c *Config) Digits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.digits
}

// SetDigits changes the display precision.
func (c *Config) SetDigits(n int) error {
	if n <= 0 {
		return incorrectArgument("digits", "must be a positive integer, got %d", n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.digits = n
	return nil
}

// FullTraceback makes Describe include the stack of engine errors.
func (c *Config) FullTraceback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traceback = true
}

// CutTraceback makes Describe report only the error message. This is the
// default.
func (c *Config) CutTraceback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traceback = false
}

// Traceback reports whether full tracebacks are enabled.
func (c *Config) Traceback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceback
}

// Describe renders err for humans according to the traceback setting.
func (c *Config) Describe(err error) string {
	if err == nil {
		return ""
	}
	if c.Traceback() {
		return fmt.Sprintf("%+v", err)
	}
	return err.Error()
}

// LogToFile reports whether run output should be mirrored to LogFile.
func (c *Config) LogToFile() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logToFile
}

// SetLogToFile enables or disables log mirroring.
func (c *Config) SetLogToFile(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logToFile = v
}

// LogFile returns the log file path.
func (c *Config) LogFile() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logFile
}

// SetLogFile changes the log file path. Its directory must exist.
func (c *Config) SetLogFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.WithStack(&LogFilePathError{Path: path})
	}
	if info, err := os.Stat(filepath.Dir(abs)); err != nil || !info.IsDir() {
		return errors.WithStack(&LogFilePathError{Path: path})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logFile = abs
	return nil
}

// Package-level helpers operating on Shared.

// Set changes settings of s in the shared store.
func Set(s *Subject, kind Kind, params ...Param) error {
	return Shared().Set(s, kind, params...)
}

// SetDefaults changes the defaults of the shared store.
func SetDefaults(kind Kind, params ...Param) error {
	return Shared().SetDefaults(kind, params...)
}
