package perftester

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

// TestTimeTestError_Message verifies both message variants.
func TestTimeTestError_Message(t *testing.T) {
	raw := &TimeTestError{Subject: "f", Limit: 1e-5, Measured: 1.23456789e-5, Digits: 4}
	assert.Equal(t, "time test not passed for function f:\nraw_limit = 1e-05\nminimum run time = 1.235e-05", raw.Error())

	rel := &TimeTestError{Subject: "f", Relative: true, Limit: 2, Measured: 3.14159, Digits: 3}
	assert.Equal(t, "time test not passed for function f:\nrelative_limit = 2\nminimum time ratio = 3.14", rel.Error())
}

// TestMemoryTestError_Message verifies both message variants.
func TestMemoryTestError_Message(t *testing.T) {
	raw := &MemoryTestError{Subject: "g", Limit: 50, Measured: 100.26, Digits: 4}
	assert.Equal(t, "memory test not passed for function g:\nmemory_limit = 50\nmaximum memory usage = 100.3", raw.Error())

	rel := &MemoryTestError{Subject: "g", Relative: true, Limit: 1.5, Measured: 2, Digits: 4}
	assert.Equal(t, "memory test not passed for function g:\nrelative memory limit = 1.5\nmaximum obtained relative memory usage = 2", rel.Error())
}

// TestFunctionError_Message verifies the subject failure message.
func TestFunctionError_Message(t *testing.T) {
	e := &FunctionError{Subject: "h", Type: "TypeError", Message: "bad operand"}
	assert.Equal(t, "the tested function h raised TypeError: bad operand", e.Error())
}

// TestErrorKind verifies classification through wrapping.
func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.WithStack(&TimeTestError{}), "TimeTestError"},
		{errors.Wrap(&MemoryTestError{}, "ctx"), "MemoryTestError"},
		{fmt.Errorf("x: %w", &FunctionError{}), "FunctionError"},
		{incorrectArgument("k", "bad"), "IncorrectArgumentError"},
		{errors.New("boom"), "unexpected error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}

	assert.True(t, IsTestFailure(errors.WithStack(&TimeTestError{})))
	assert.True(t, IsTestFailure(&MemoryTestError{}))
	assert.False(t, IsTestFailure(&FunctionError{}))
}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// TestTypeName verifies bare type names for errors and panic values.
func TestTypeName(t *testing.T) {
	assert.Equal(t, "parseError", typeName(&parseError{}))
	assert.Equal(t, "int", typeName(42))
	assert.Equal(t, "nil", typeName(nil))
	assert.Equal(t, "[]string", typeName([]string{}))
}
