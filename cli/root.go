// Package cli implements the perftester command line: discovery and running
// of test files, benchmarking of single subjects and settings inspection.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/nyggus/perftester"
)

// ErrTestsFailed is returned by the run command when at least one test
// failed. The failures themselves are already in the run output.
var ErrTestsFailed = errors.New("performance tests failed")

type options struct {
	configFile    string
	digits        int
	logFile       string
	logToFile     bool
	fullTraceback bool
	run           string
	metricsFile   string
	verbose       bool
}

// NewRootCommand builds the command tree around suite, whose subjects the
// test files and the bench command refer to.
func NewRootCommand(suite *perftester.Suite) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "perftester [path]",
		Short: "Run performance tests declared in perftester_*.yaml files",
		Long: `perftester collects perftester_*.yaml files below path (default: the
current directory), or the single file path names, and runs the time and
memory tests they declare against the registered subjects.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runTests(cmd, opts, suite, path)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "settings file (default ./perftester.yaml)")
	pf.IntVar(&opts.digits, "digits", perftester.DefaultDigits, "significant digits in printed results")
	pf.StringVar(&opts.logFile, "log-file", perftester.DefaultLogFile, "file mirroring the run output")
	pf.BoolVar(&opts.logToFile, "log-to-file", true, "mirror the run output to --log-file")
	pf.BoolVar(&opts.fullTraceback, "full-traceback", false, "print errors with their stack traces")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.Flags().StringVar(&opts.run, "run", "", "only run tests whose module.name matches this regexp")
	root.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics of the run to this file")

	root.AddCommand(newListCommand(suite), newBenchCommand(opts, suite), newConfigCommand(opts, suite))
	return root
}

// Execute runs the root command with signal handling and exits non-zero on
// failure.
func Execute(suite *perftester.Suite) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand(suite).ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// env is what every command needs after flags and settings are resolved.
type env struct {
	cfg     *perftester.Config
	out     io.Writer
	logger  *slog.Logger
	settled bool // a settings file was found
	close   func()
}

// setup resolves settings into a fresh store. With mirror set and log
// mirroring enabled, the log file is truncated and receives both the run
// output and the log records.
func setup(cmd *cobra.Command, opts *options, suite *perftester.Suite, observer perftester.Observer, mirror bool) (*env, error) {
	v, found, err := loadConfig(cmd.Flags(), opts.configFile)
	if err != nil {
		return nil, err
	}

	e := &env{
		out:     cmd.OutOrStdout(),
		logger:  newLogger(cmd.ErrOrStderr(), nil, opts.verbose),
		settled: found,
		close:   func() {},
	}

	configOpts := []perftester.Option{perftester.WithLogger(e.logger)}
	if observer != nil {
		configOpts = append(configOpts, perftester.WithObserver(observer))
	}
	e.cfg = perftester.NewConfig(configOpts...)
	if err := applyConfig(v, e.cfg, suite); err != nil {
		return nil, err
	}

	if mirror && e.cfg.LogToFile() {
		f, err := os.Create(e.cfg.LogFile())
		if err != nil {
			e.logger.Warn("log file disabled", "path", e.cfg.LogFile(), "error", err)
			return e, nil
		}
		e.out = io.MultiWriter(e.out, f)
		e.logger = newLogger(cmd.ErrOrStderr(), f, opts.verbose)
		e.cfg.SetLogger(e.logger)
		e.close = func() { _ = f.Close() }
	}
	return e, nil
}

func runTests(cmd *cobra.Command, opts *options, suite *perftester.Suite, path string) error {
	var match *regexp.Regexp
	if opts.run != "" {
		re, err := regexp.Compile(opts.run)
		if err != nil {
			return errors.Wrap(err, "--run")
		}
		match = re
	}

	var recorder *perftester.Recorder
	var observer perftester.Observer
	if opts.metricsFile != "" {
		recorder = perftester.NewRecorder()
		observer = recorder
	}

	e, err := setup(cmd, opts, suite, observer, true)
	if err != nil {
		return err
	}
	defer e.close()

	files, err := suite.Discover(path)
	if err != nil {
		return err
	}
	e.logger.Debug("discovered test files", "path", path, "files", files)

	perftester.WriteHeader(e.out, len(suite.Modules()))
	if e.settled {
		fmt.Fprintln(e.out, "Importing settings from the perftester settings file.")
	} else {
		fmt.Fprintln(e.out, "No settings file detected, using default perftester configuration.")
	}

	runner := &perftester.Runner{Config: e.cfg, Out: e.out, Match: match, Logger: e.logger}
	report := runner.Run(cmd.Context(), suite)
	report.WriteSummary(e.out)

	if recorder != nil {
		if err := recorder.WriteTextfile(opts.metricsFile); err != nil {
			return errors.Wrapf(err, "writing metrics to %s", opts.metricsFile)
		}
		e.logger.Info("metrics written", "file", opts.metricsFile)
	}

	if !report.OK() {
		return ErrTestsFailed
	}
	return nil
}

func newListCommand(suite *perftester.Suite) *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List registered subjects and discovered tests",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := suite.Discover(path); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Subjects:")
			for _, name := range suite.SubjectNames() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Tests:")
			for _, t := range suite.Tests() {
				fmt.Fprintf(out, "  %s\n", t.QualifiedName())
			}
			return nil
		},
	}
}

func newBenchCommand(opts *options, suite *perftester.Suite) *cobra.Command {
	var o perftester.Overrides
	var memory bool
	var callsFile string

	cmd := &cobra.Command{
		Use:   "bench <subject> [args...]",
		Short: "Benchmark one registered subject and pretty-print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, suite, nil, true)
			if err != nil {
				return err
			}
			defer e.close()

			s, err := resolveSubject(suite, args[0])
			if err != nil {
				return err
			}
			subjectArgs := make([]any, 0, len(args)-1)
			for _, a := range args[1:] {
				subjectArgs = append(subjectArgs, a)
			}

			timed, traced := s, s
			var calls *perftester.Calls
			if callsFile != "" {
				calls = perftester.NewCalls(nil)
				timed, traced = calls.Time(s), calls.Memory(s)
				// Settings are keyed by handle; the wrappers inherit the subject's.
				st := e.cfg.Settings(s)
				if err := e.cfg.Set(timed, perftester.KindTime, perftester.Number(st.Time.Number), perftester.Repeat(st.Time.Repeat)); err != nil {
					return err
				}
				if err := e.cfg.Set(traced, perftester.KindMemory, perftester.Repeat(st.Memory.Repeat)); err != nil {
					return err
				}
			}

			res, err := e.cfg.TimeBenchmark(timed, o, subjectArgs...)
			if err != nil {
				return err
			}
			values := []any{res}
			if memory {
				mem, err := e.cfg.MemoryBenchmark(traced, perftester.Overrides{Repeat: o.Repeat}, subjectArgs...)
				if err != nil {
					return err
				}
				values = append(values, mem)
			}
			if err := e.cfg.PP(e.out, values...); err != nil {
				return err
			}

			if calls == nil {
				return nil
			}
			if err := calls.Save(callsFile); err != nil {
				return err
			}
			e.logger.Info("calls written", "file", callsFile)
			return e.cfg.PP(e.out, calls.Summarize(e.cfg.Digits()))
		},
	}
	cmd.Flags().IntVar(&o.Number, "number", 0, "calls per timing batch (default from settings)")
	cmd.Flags().IntVar(&o.Repeat, "repeat", 0, "timing batches and memory traces (default from settings)")
	cmd.Flags().BoolVar(&memory, "memory", true, "also trace memory usage")
	cmd.Flags().StringVar(&callsFile, "calls-file", "", "record every call of the subject to this .json or .yaml file")
	return cmd
}

func newConfigCommand(opts *options, suite *perftester.Suite) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, opts, suite, nil, false)
			if err != nil {
				return err
			}

			return e.cfg.PP(e.out, map[string]any{
				"digits":         e.cfg.Digits(),
				"full_traceback": e.cfg.Traceback(),
				"log_to_file":    e.cfg.LogToFile(),
				"log_file":       e.cfg.LogFile(),
				"settings":       e.cfg.SettingsTable(),
			})
		},
	}
}
