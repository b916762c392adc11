package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeOf(t *testing.T) {
	cause := errors.New("registry down")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", cause, CodeGeneric},
		{"new", New(CodeUsage, "bad flag"), CodeUsage},
		{"zero normalized", New(0, "oops"), CodeGeneric},
		{"wrapped further", fmt.Errorf("outer: %w", Wrap(CodeRegistry, "assign", cause)), CodeRegistry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeOf(tt.err))
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("registry down")

	err := Wrap(CodeRegistry, "assign", cause)
	assert.EqualError(t, err, "assign: registry down")
	assert.ErrorIs(t, err, cause)

	assert.EqualError(t, Wrap(CodeLint, "", cause), "registry down")
	assert.EqualError(t, Wrap(CodeLint, "nothing", nil), "nothing")
	assert.EqualError(t, Newf(CodeBelowGate, "level %s", "low"), "level low")
}
