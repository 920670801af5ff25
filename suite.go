package perftester

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// TestFunc is a performance test. It typically calls TestTime or TestMemory
// on the given store and returns the first error.
type TestFunc func(c *Config) error

// Test is a named performance test belonging to a module.
type Test struct {
	Module string
	Name   string
	Run    TestFunc
}

// QualifiedName returns "module.name".
func (t Test) QualifiedName() string {
	if t.Module == "" {
		return t.Name
	}
	return t.Module + "." + t.Name
}

// Suite is a registry of named subjects and performance tests. Subjects are
// registered by name so that test files can refer to them.
type Suite struct {
	mu       sync.Mutex
	subjects map[string]*Subject
	tests    []Test
	setups   map[string]TestFunc
	modules  []string
	files    map[string]bool // Absolute paths of loaded test files
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{
		subjects: make(map[string]*Subject),
		setups:   make(map[string]TestFunc),
		files:    make(map[string]bool),
	}
}

// AddSubject registers s under its name.
func (su *Suite) AddSubject(s *Subject) error {
	if s == nil {
		return incorrectArgument("subject", "must not be nil")
	}
	su.mu.Lock()
	defer su.mu.Unlock()
	if _, dup := su.subjects[s.Name()]; dup {
		return incorrectArgument("subject", "%q is already registered", s.Name())
	}
	su.subjects[s.Name()] = s
	return nil
}

// Subject looks up a registered subject by name.
func (su *Suite) Subject(name string) (*Subject, bool) {
	su.mu.Lock()
	defer su.mu.Unlock()
	s, ok := su.subjects[name]
	return s, ok
}

// SubjectNames returns the registered subject names, sorted.
func (su *Suite) SubjectNames() []string {
	su.mu.Lock()
	defer su.mu.Unlock()
	names := make([]string, 0, len(su.subjects))
	for name := range su.subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add registers a test.
func (su *Suite) Add(module, name string, fn TestFunc) {
	su.mu.Lock()
	defer su.mu.Unlock()
	su.addModuleLocked(module)
	su.tests = append(su.tests, Test{Module: module, Name: name, Run: fn})
}

// Setup registers fn to run once, before the first test of module.
func (su *Suite) Setup(module string, fn TestFunc) {
	su.mu.Lock()
	defer su.mu.Unlock()
	su.addModuleLocked(module)
	su.setups[module] = fn
}

func (su *Suite) addModuleLocked(module string) {
	for _, m := range su.modules {
		if m == module {
			return
		}
	}
	su.modules = append(su.modules, module)
}

// Tests returns the registered tests in registration order.
func (su *Suite) Tests() []Test {
	su.mu.Lock()
	defer su.mu.Unlock()
	return append([]Test(nil), su.tests...)
}

// Modules returns the module names in registration order.
func (su *Suite) Modules() []string {
	su.mu.Lock()
	defer su.mu.Unlock()
	return append([]string(nil), su.modules...)
}

// Report is the outcome of a suite run.
type Report struct {
	Passed   []string
	Failed   []string
	Failures map[string]error
}

// Total returns the number of tests run.
func (r Report) Total() int { return len(r.Passed) + len(r.Failed) }

// OK reports whether no test failed.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// WriteSummary writes the tally and the passed and failed lists.
func (r Report) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "\n\nPerformance testing done.\nOut of %d tests, %d passed and %d failed.\n",
		r.Total(), len(r.Passed), len(r.Failed))
	if len(r.Passed) > 0 {
		fmt.Fprintln(w, "\nPassed tests:")
		for _, name := range r.Passed {
			fmt.Fprintln(w, name)
		}
	}
	if len(r.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed tests:")
		for _, name := range r.Failed {
			fmt.Fprintln(w, name)
		}
	}
}

// testObserver is implemented by observers that count suite tests.
type testObserver interface {
	ObserveTest(name string, err error)
}

// Runner executes a suite against a store.
type Runner struct {
	Config *Config
	Out    io.Writer      // Human-readable run output
	Match  *regexp.Regexp // Only run tests whose qualified name matches
	Logger *slog.Logger
}

// Run executes every selected test. A failing test does not stop the run;
// a cancelled context stops it before the next test.
func (r *Runner) Run(ctx context.Context, su *Suite) Report {
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	logger := r.Logger
	if logger == nil {
		logger = r.Config.Logger()
	}

	report := Report{Failures: make(map[string]error)}
	setupDone := make(map[string]error)

	for _, t := range su.Tests() {
		name := t.QualifiedName()
		if r.Match != nil && !r.Match.MatchString(name) {
			continue
		}
		if ctx.Err() != nil {
			logger.Warn("run interrupted", "remaining_from", name, "error", ctx.Err())
			break
		}

		err := r.setup(su, t.Module, setupDone)
		if err == nil {
			logger.Debug("running test", "test", name)
			err = runTest(t, r.Config)
		}

		if obs, ok := r.Config.observer.(testObserver); ok {
			obs.ObserveTest(name, err)
		}
		if err != nil {
			report.Failed = append(report.Failed, name)
			report.Failures[name] = err
			fmt.Fprintf(out, "\n%s in %s\n%s\n", ErrorKind(err), name, r.Config.Describe(err))
			continue
		}
		report.Passed = append(report.Passed, name)
	}
	return report
}

func (r *Runner) setup(su *Suite, module string, done map[string]error) error {
	if err, ok := done[module]; ok {
		return err
	}
	su.mu.Lock()
	fn := su.setups[module]
	su.mu.Unlock()

	var err error
	if fn != nil {
		if err = fn(r.Config); err != nil {
			err = errors.Wrapf(err, "setting up module %s", module)
		}
	}
	done[module] = err
	return err
}

// runTest converts a panic escaping a test into an error so that the run
// continues.
func runTest(t Test, c *Config) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf("test panicked: %v", p)
		}
	}()
	return t.Run(c)
}

// WriteHeader writes the banner printed at the start of a run.
func WriteHeader(w io.Writer, modules int) {
	plural := ""
	if modules != 1 {
		plural = "s"
	}
	fmt.Fprintf(w, "Performance tests using perftester\n%s\n\nCollected %d perftester module%s for testing.\n",
		strings.Repeat("-", 44), modules, plural)
}

var defaultSuite = NewSuite()

// DefaultSuite returns the suite used by Register and RegisterSubject.
func DefaultSuite() *Suite { return defaultSuite }

// Register adds a test to the default suite.
func Register(module, name string, fn TestFunc) {
	defaultSuite.Add(module, name, fn)
}

// RegisterSubject adds s to the default suite and returns it. It panics if
// the name is taken, like other init-time registries.
func RegisterSubject(s *Subject) *Subject {
	if err := defaultSuite.AddSubject(s); err != nil {
		panic(fmt.Sprintf("perftester: %v", err))
	}
	return s
}
