package perftester

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/cockroachdb/errors"
)

// FunctionError reports that the subject itself failed while it was being
// measured, either by returning an error or by panicking.
type FunctionError struct {
	Subject string // Name of the subject
	Type    string // Type name of the original error or panic value
	Message string // Original message
	cause   error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("the tested function %s raised %s: %s", e.Subject, e.Type, e.Message)
}

// Unwrap exposes the original error when the subject returned one.
func (e *FunctionError) Unwrap() error { return e.cause }

// TimeTestError reports a violated time limit.
type TimeTestError struct {
	Subject  string
	Relative bool    // Relative limit violated (raw otherwise)
	Limit    float64 // The configured limit
	Measured float64 // min (raw) or min_relative (relative)
	Digits   int     // Significant digits used for Measured
}

func (e *TimeTestError) Error() string {
	if e.Relative {
		return fmt.Sprintf("time test not passed for function %s:\nrelative_limit = %s\nminimum time ratio = %s",
			e.Subject, formatLimit(e.Limit), formatSignif(e.Measured, e.Digits))
	}
	return fmt.Sprintf("time test not passed for function %s:\nraw_limit = %s\nminimum run time = %s",
		e.Subject, formatLimit(e.Limit), formatSignif(e.Measured, e.Digits))
}

// MemoryTestError reports a violated memory limit.
type MemoryTestError struct {
	Subject  string
	Relative bool
	Limit    float64
	Measured float64 // max (raw, MB) or max_relative (relative)
	Digits   int
}

func (e *MemoryTestError) Error() string {
	if e.Relative {
		return fmt.Sprintf("memory test not passed for function %s:\nrelative memory limit = %s\nmaximum obtained relative memory usage = %s",
			e.Subject, formatLimit(e.Limit), formatSignif(e.Measured, e.Digits))
	}
	return fmt.Sprintf("memory test not passed for function %s:\nmemory_limit = %s\nmaximum memory usage = %s",
		e.Subject, formatLimit(e.Limit), formatSignif(e.Measured, e.Digits))
}

// IncorrectArgumentError reports an invalid configuration request.
type IncorrectArgumentError struct {
	Argument string // Offending argument or key
	Reason   string
}

func (e *IncorrectArgumentError) Error() string {
	return fmt.Sprintf("incorrect argument %s: %s", e.Argument, e.Reason)
}

// LogFilePathError reports a log file whose directory does not exist.
type LogFilePathError struct {
	Path string
}

func (e *LogFilePathError) Error() string {
	return fmt.Sprintf("log file path %q: parent directory does not exist", e.Path)
}

// CLIPathError reports a missing or unusable discovery path.
type CLIPathError struct {
	Path   string
	Reason string
}

func (e *CLIPathError) Error() string {
	return fmt.Sprintf("incorrect path %q provided to perftester: %s", e.Path, e.Reason)
}

func incorrectArgument(arg, format string, a ...any) error {
	return errors.WithStack(&IncorrectArgumentError{Argument: arg, Reason: fmt.Sprintf(format, a...)})
}

// ErrorKind names the failure kind of err for test drivers.
func ErrorKind(err error) string {
	var (
		fe *FunctionError
		te *TimeTestError
		me *MemoryTestError
		ie *IncorrectArgumentError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return "TimeTestError"
	case errors.As(err, &me):
		return "MemoryTestError"
	case errors.As(err, &fe):
		return "FunctionError"
	case errors.As(err, &ie):
		return "IncorrectArgumentError"
	}
	return "unexpected error"
}

// IsTestFailure reports whether err is a violated time or memory limit.
func IsTestFailure(err error) bool {
	var (
		te *TimeTestError
		me *MemoryTestError
	)
	return errors.As(err, &te) || errors.As(err, &me)
}

// typeName returns the bare type name of a returned error or panic value.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatSignif(v float64, digits int) string {
	if digits <= 0 {
		digits = DefaultDigits
	}
	return strconv.FormatFloat(v, 'g', digits, 64)
}
