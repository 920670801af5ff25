package perftester

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
)

// Func is a measured callable. A non-nil error or a panic counts as a failure
// of the subject.
type Func func(args ...any) error

// Subject is a handle to a measured callable. Settings are keyed by the
// handle's identity, not by its name: two subjects sharing a name are
// configured independently.
type Subject struct {
	name string
	fn   Func
}

// NewSubject wraps fn under a display name.
func NewSubject(name string, fn Func) *Subject {
	return &Subject{name: name, fn: fn}
}

// SubjectOf wraps a plain function that takes no arguments and cannot fail.
func SubjectOf(name string, fn func()) *Subject {
	return NewSubject(name, func(...any) error {
		fn()
		return nil
	})
}

// Name returns the display name.
func (s *Subject) Name() string {
	if s == nil {
		return "<nil>"
	}
	return s.name
}

func (s *Subject) String() string { return s.Name() }

// subjectFailed is the failure arm of a sampling outcome: the subject
// returned an error or panicked. It is translated into a FunctionError at
// the sampler boundary.
type subjectFailed struct {
	typ string
	msg string
	err error
}

func (f *subjectFailed) Error() string { return f.typ + ": " + f.msg }

// Call invokes the subject once. Panics are not recovered.
func (s *Subject) Call(args ...any) error {
	return s.fn(args...)
}

// call invokes the subject n times and converts panics into subjectFailed.
func (s *Subject) call(n int, args []any) (failed *subjectFailed) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				failed = &subjectFailed{typ: typeName(errors.UnwrapAll(v)), msg: v.Error(), err: v}
			case string:
				failed = &subjectFailed{typ: "panic", msg: v}
			default:
				failed = &subjectFailed{typ: typeName(v), msg: fmt.Sprint(v)}
			}
		}
	}()

	for i := 0; i < n; i++ {
		if err := s.fn(args...); err != nil {
			return &subjectFailed{typ: typeName(errors.UnwrapAll(err)), msg: err.Error(), err: err}
		}
	}
	return nil
}

func (f *subjectFailed) toFunctionError(subject string) error {
	return errors.WithStack(&FunctionError{
		Subject: subject,
		Type:    f.typ,
		Message: f.msg,
		cause:   f.err,
	})
}

// IntArg converts the i-th argument to an int. Numbers decoded from YAML or
// JSON arrive as int, int64, uint64 or float64.
func IntArg(args []any, i int) (int, error) {
	if i < 0 || i >= len(args) {
		return 0, errors.Newf("argument %d missing (got %d arguments)", i, len(args))
	}
	switch v := args[i].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, errors.Newf("argument %d: %v is not an integer", i, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.Wrapf(err, "argument %d", i)
		}
		return n, nil
	}
	return 0, errors.Newf("argument %d: unsupported type %T", i, args[i])
}
