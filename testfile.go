package perftester

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// TestFilePrefix is the naming convention for discoverable test files.
const TestFilePrefix = "perftester_"

type checkEntry struct {
	Subject       string   `yaml:"subject"`
	Kind          string   `yaml:"kind"`
	RawLimit      *float64 `yaml:"raw_limit"`
	RelativeLimit *float64 `yaml:"relative_limit"`
	Number        int      `yaml:"number"`
	Repeat        int      `yaml:"repeat"`
	Args          []any    `yaml:"args"`
}

type testEntry struct {
	Name   string      `yaml:"name"`
	Checks []checkEntry `yaml:"checks"`
}

// testFile is a declarative test module. Settings are applied to the store
// before its first test runs.
type testFile struct {
	Settings map[string]map[string]map[string]int `yaml:"settings"`
	Tests    []testEntry                           `yaml:"tests"`
}

// IsTestFile reports whether name follows the test file naming convention.
func IsTestFile(name string) bool {
	ext := filepath.Ext(name)
	return strings.HasPrefix(name, TestFilePrefix) && (ext == ".yaml" || ext == ".yml")
}

// Discover loads test files from path: every perftester_*.yaml file below a
// directory, or the single file path names. It returns the loaded files.
func (su *Suite) Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WithStack(&CLIPathError{Path: path, Reason: "path does not exist"})
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsTestFile(d.Name()) {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walking %s", path)
		}
	} else {
		files = []string{path}
	}
	sort.Strings(files)

	for _, f := range files {
		if err := su.LoadFile(f); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// LoadFile parses a test file and registers its tests under a module named
// after the file. A file that is already loaded is skipped.
func (su *Suite) LoadFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", path)
	}
	su.mu.Lock()
	loaded := su.files[abs]
	su.mu.Unlock()
	if loaded {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	var tf testFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}

	module := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var setup TestFunc
	if len(tf.Settings) > 0 {
		if setup, err = su.settingsSetup(tf.Settings); err != nil {
			return errors.Wrapf(err, "%s: settings", path)
		}
	}

	tests := make([]Test, 0, len(tf.Tests))
	for i, ts := range tf.Tests {
		if ts.Name == "" {
			return errors.Newf("%s: test %d has no name", path, i)
		}
		fn, err := su.checksTest(ts.Checks)
		if err != nil {
			return errors.Wrapf(err, "%s: test %s", path, ts.Name)
		}
		tests = append(tests, Test{Module: module, Name: ts.Name, Run: fn})
	}

	if setup != nil {
		su.Setup(module, setup)
	}
	for _, t := range tests {
		su.Add(t.Module, t.Name, t.Run)
	}
	su.mu.Lock()
	su.files[abs] = true
	su.mu.Unlock()
	return nil
}

func (su *Suite) lookup(name string) (*Subject, error) {
	s, ok := su.Subject(name)
	if !ok {
		return nil, incorrectArgument("subject", "%q is not registered", name)
	}
	return s, nil
}

func (su *Suite) settingsSetup(settings map[string]map[string]map[string]int) (TestFunc, error) {
	type assignment struct {
		subject *Subject
		kind    Kind
		params  []Param
	}
	var plan []assignment

	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s, err := su.lookup(name)
		if err != nil {
			return nil, err
		}
		for kind, values := range settings[name] {
			params := make([]Param, 0, len(values))
			for k, v := range values {
				params = append(params, Param{Key: k, Value: v})
			}
			sort.Slice(params, func(i, j int) bool { return params[i].Key < params[j].Key })
			if err := checkParams(Kind(kind), params); err != nil {
				return nil, err
			}
			plan = append(plan, assignment{subject: s, kind: Kind(kind), params: params})
		}
	}

	return func(c *Config) error {
		for _, a := range plan {
			if err := c.Set(a.subject, a.kind, a.params...); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (su *Suite) checksTest(checks []checkEntry) (TestFunc, error) {
	if len(checks) == 0 {
		return nil, errors.New("no checks")
	}
	type step struct {
		subject *Subject
		kind    Kind
		limits  Limits
		o       Overrides
		args    []any
	}
	steps := make([]step, 0, len(checks))
	for _, cs := range checks {
		s, err := su.lookup(cs.Subject)
		if err != nil {
			return nil, err
		}
		kind := Kind(cs.Kind)
		if err := checkKind(kind); err != nil {
			return nil, err
		}
		steps = append(steps, step{
			subject: s,
			kind:    kind,
			limits:  Limits{Raw: cs.RawLimit, Relative: cs.RelativeLimit},
			o:       Overrides{Number: cs.Number, Repeat: cs.Repeat},
			args:    cs.Args,
		})
	}

	return func(c *Config) error {
		for _, st := range steps {
			var err error
			if st.kind == KindTime {
				_, err = c.TestTime(st.subject, st.limits, st.o, st.args...)
			} else {
				_, err = c.TestMemory(st.subject, st.limits, st.o, st.args...)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, nil
}
