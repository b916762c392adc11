package readiness

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a finding carries a severity outside
// the known set. It is never defaulted to another severity.
var ErrInvalidInput = errors.New("invalid input")

// InvalidSeverityError identifies the offending finding.
type InvalidSeverityError struct {
	// Index is the position of the finding, or -1 when parsing a bare value.
	Index int
	// Severity holds the numeric value when the source was numeric.
	Severity Severity
	// Raw holds the textual value when the source was a string.
	Raw string
}

func (e *InvalidSeverityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("unrecognized severity %q", e.Raw)
	}
	return fmt.Sprintf("finding %d: unrecognized severity %d", e.Index, int(e.Severity))
}

// Is lets errors.Is match ErrInvalidInput.
func (e *InvalidSeverityError) Is(target error) bool {
	return target == ErrInvalidInput
}
