package perftester

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/montanaflynn/stats"
	"gopkg.in/yaml.v3"
)

// CallRecord is a single recorded call of a wrapped subject.
type CallRecord struct {
	ID         int     `json:"id" yaml:"id"`
	CalledFrom string  `json:"called_from" yaml:"called_from"`
	Call       string  `json:"call" yaml:"call"`
	Time       float64 `json:"execution_time,omitempty" yaml:"execution_time,omitempty"` // seconds
	MemoryPeak float64 `json:"memory_peak,omitempty" yaml:"memory_peak,omitempty"`       // MB
}

// FunctionCalls aggregates the recorded calls of one subject.
type FunctionCalls struct {
	Count      int          `json:"no_of_calls" yaml:"no_of_calls"`
	TimeAll    float64      `json:"time_spent_inside_all,omitempty" yaml:"time_spent_inside_all,omitempty"`
	TimeMean   float64      `json:"time_spent_inside_mean,omitempty" yaml:"time_spent_inside_mean,omitempty"`
	MemoryPeak float64      `json:"memory_peak,omitempty" yaml:"memory_peak,omitempty"`
	Records    []CallRecord `json:"calls,omitempty" yaml:"calls,omitempty"`
}

// CallsSnapshot is a copy of a Calls registry, keyed by subject name.
type CallsSnapshot struct {
	Time   map[string]FunctionCalls `json:"time" yaml:"time"`
	Memory map[string]FunctionCalls `json:"memory" yaml:"memory"`
}

// Kinds returns the kinds that hold at least one subject.
func (cs CallsSnapshot) Kinds() []Kind {
	var kinds []Kind
	if len(cs.Time) > 0 {
		kinds = append(kinds, KindTime)
	}
	if len(cs.Memory) > 0 {
		kinds = append(kinds, KindMemory)
	}
	return kinds
}

// Calls records every call of the subjects wrapped by Time and Memory.
// Unlike benchmarks, it observes a subject while the program uses it.
type Calls struct {
	mu      sync.Mutex
	sampler *Sampler
	time    map[string]*FunctionCalls
	memory  map[string]*FunctionCalls
}

// NewCalls returns an empty registry tracing memory with sampler. A nil
// sampler reads RSS.
func NewCalls(sampler *Sampler) *Calls {
	if sampler == nil {
		sampler = NewSampler()
	}
	return &Calls{
		sampler: sampler,
		time:    make(map[string]*FunctionCalls),
		memory:  make(map[string]*FunctionCalls),
	}
}

// Time wraps s so that the execution time of each successful call is
// recorded. The wrapper keeps the subject's name.
func (c *Calls) Time(s *Subject) *Subject {
	name := s.Name()
	return NewSubject(name, func(args ...any) error {
		from := callerName()
		start := time.Now()
		err := s.fn(args...)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		fc := callsEntry(c.time, name)
		fc.Count++
		fc.Records = append(fc.Records, CallRecord{
			ID:         fc.Count,
			CalledFrom: from,
			Call:       describeCall(name, args),
			Time:       elapsed,
		})
		fc.TimeAll += elapsed
		fc.TimeMean = fc.TimeAll / float64(fc.Count)
		return nil
	})
}

// Memory wraps s so that the memory peak of each successful call is
// recorded. Calls are traced like in memory tests, so a panic in s comes
// back as an error.
func (c *Calls) Memory(s *Subject) *Subject {
	name := s.Name()
	return NewSubject(name, func(args ...any) error {
		from := callerName()
		readings, failed, err := c.sampler.trace(s, args)
		if failed != nil {
			if failed.err != nil {
				return failed.err
			}
			return errors.Newf("%s: %s", failed.typ, failed.msg)
		}
		if err != nil {
			return errors.Wrapf(err, "tracing %s", name)
		}
		peak, err := stats.Max(readings)
		if err != nil {
			return errors.Wrapf(err, "tracing %s", name)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		fc := callsEntry(c.memory, name)
		fc.Count++
		fc.Records = append(fc.Records, CallRecord{
			ID:         fc.Count,
			CalledFrom: from,
			Call:       describeCall(name, args),
			MemoryPeak: peak,
		})
		if peak > fc.MemoryPeak {
			fc.MemoryPeak = peak
		}
		return nil
	})
}

func callsEntry(m map[string]*FunctionCalls, name string) *FunctionCalls {
	fc, ok := m[name]
	if !ok {
		fc = &FunctionCalls{}
		m[name] = fc
	}
	return fc
}

// Snapshot returns a deep copy of the registry.
func (c *Calls) Snapshot() CallsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CallsSnapshot{Time: copyCalls(c.time), Memory: copyCalls(c.memory)}
}

func copyCalls(m map[string]*FunctionCalls) map[string]FunctionCalls {
	out := make(map[string]FunctionCalls, len(m))
	for name, fc := range m {
		cp := *fc
		cp.Records = append([]CallRecord(nil), fc.Records...)
		out[name] = cp
	}
	return out
}

// Reset drops every recorded call.
func (c *Calls) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = make(map[string]*FunctionCalls)
	c.memory = make(map[string]*FunctionCalls)
}

// Summarize returns the per-subject aggregates without the individual
// records, rounded to digits significant digits.
func (c *Calls) Summarize(digits int) CallsSnapshot {
	snap := c.Snapshot()
	return CallsSnapshot{
		Time:   roundCalls(snap.Time, digits, false),
		Memory: roundCalls(snap.Memory, digits, false),
	}
}

func roundCalls(m map[string]FunctionCalls, digits int, keepRecords bool) map[string]FunctionCalls {
	out := make(map[string]FunctionCalls, len(m))
	for name, fc := range m {
		fc.TimeAll = Signif(fc.TimeAll, digits)
		fc.TimeMean = Signif(fc.TimeMean, digits)
		fc.MemoryPeak = Signif(fc.MemoryPeak, digits)
		if keepRecords {
			records := make([]CallRecord, len(fc.Records))
			for i, r := range fc.Records {
				r.Time = Signif(r.Time, digits)
				r.MemoryPeak = Signif(r.MemoryPeak, digits)
				records[i] = r
			}
			fc.Records = records
		} else {
			fc.Records = nil
		}
		out[name] = fc
	}
	return out
}

// Show writes every recorded call as indented JSON, one section per kind.
func (c *Calls) Show(w io.Writer, digits int) error {
	snap := c.Snapshot()
	sections := []struct {
		title string
		calls map[string]FunctionCalls
	}{
		{"Time", snap.Time},
		{"Memory", snap.Memory},
	}
	for _, sec := range sections {
		data, err := json.MarshalIndent(roundCalls(sec.calls, digits, true), "", "    ")
		if err != nil {
			return errors.Wrap(err, "rendering calls")
		}
		if _, err := fmt.Fprintf(w, "%s:\n%s\n", sec.title, data); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calls) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Registered:\n  * %d timed calls\n  * %d memory-traced calls\n",
		countCalls(c.time), countCalls(c.memory))
}

func countCalls(m map[string]*FunctionCalls) int {
	n := 0
	for _, fc := range m {
		n += fc.Count
	}
	return n
}

// Save writes the registry to path as JSON or YAML, chosen by the file
// extension.
func (c *Calls) Save(path string) error {
	snap := c.Snapshot()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(snap, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(snap)
	default:
		return incorrectArgument("path", "%q: calls are saved as .json, .yaml or .yml", path)
	}
	if err != nil {
		return errors.Wrapf(err, "encoding calls for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// LoadCalls reads a registry saved by Save. A file recording no calls at
// all is rejected.
func LoadCalls(path string) (CallsSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CallsSnapshot{}, errors.Wrapf(err, "reading %s", path)
	}

	var snap CallsSnapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &snap)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	default:
		return CallsSnapshot{}, incorrectArgument("path", "%q: calls are read from .json, .yaml or .yml", path)
	}
	if err != nil {
		return CallsSnapshot{}, errors.Wrapf(err, "parsing %s", path)
	}

	if snap.Time == nil {
		snap.Time = make(map[string]FunctionCalls)
	}
	if snap.Memory == nil {
		snap.Memory = make(map[string]FunctionCalls)
	}
	if len(snap.Kinds()) == 0 {
		return CallsSnapshot{}, errors.Newf("%s holds neither time nor memory calls", path)
	}
	return snap, nil
}

// callerName names the function that invoked a wrapped subject, looking
// through Subject's own call helpers.
func callerName() string {
	pcs := make([]uintptr, 16)
	// Skip runtime.Callers, callerName and the wrapper itself.
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasSuffix(f.Function, ".(*Subject).Call") && !strings.HasSuffix(f.Function, ".(*Subject).call") {
			return f.Function[strings.LastIndex(f.Function, "/")+1:]
		}
		if !more {
			return "unknown"
		}
	}
}

// describeCall renders a call the way it would be written: strings quoted,
// floats rounded to four significant digits.
func describeCall(name string, args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			parts[i] = fmt.Sprintf("%q", v)
		case float64:
			parts[i] = fmt.Sprint(Signif(v, 4))
		case []any:
			parts[i] = fmt.Sprintf("[%d items]", len(v))
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Names returns the subject names recorded under kind, sorted.
func (cs CallsSnapshot) Names(kind Kind) []string {
	m := cs.Time
	if kind == KindMemory {
		m = cs.Memory
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultCalls = NewCalls(nil)

// DefaultCalls returns the registry used by TimePerformance and
// MemoryPerformance.
func DefaultCalls() *Calls { return defaultCalls }

// TimePerformance wraps s to record its execution time in DefaultCalls.
func TimePerformance(s *Subject) *Subject { return defaultCalls.Time(s) }

// MemoryPerformance wraps s to record its memory peak in DefaultCalls.
func MemoryPerformance(s *Subject) *Subject { return defaultCalls.Memory(s) }
