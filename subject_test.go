package perftester

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIntArg verifies the accepted argument encodings.
func TestIntArg(t *testing.T) {
	tests := []struct {
		arg  any
		want int
	}{
		{7, 7},
		{int64(8), 8},
		{uint64(9), 9},
		{10.0, 10},
		{"11", 11},
	}
	for _, tt := range tests {
		got, err := IntArg([]any{tt.arg}, 0)
		require.NoError(t, err, "%T", tt.arg)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range [][]any{nil, {1.5}, {"x"}, {true}} {
		_, err := IntArg(bad, 0)
		assert.Error(t, err, "%v", bad)
	}
}

// TestSubject_Name verifies names, including the nil handle.
func TestSubject_Name(t *testing.T) {
	s := SubjectOf("f", func() {})
	assert.Equal(t, "f", s.Name())
	assert.Equal(t, "f", s.String())

	var missing *Subject
	assert.Equal(t, "<nil>", missing.Name())
}
