package pipeline

import (
	"errors"
	"fmt"
)

// Stage names reported in failures and run records.
const (
	StageEnsureAttribute = "ensure_attribute"
	StageLint            = "lint_execution"
	StageClassify        = "classify"
	StageRegister        = "register"
	StageAssign          = "assign"
)

// StageError is the Failed(stage, cause) outcome of a run.
type StageError struct {
	Stage string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// FailedStage returns the stage named by a StageError in err's chain, or "".
func FailedStage(err error) string {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr.Stage
	}
	return ""
}

// Retryable reports whether re-running the whole pipeline could change the
// outcome. Only registry stages qualify; linter and classification failures
// are deterministic for a given document.
func Retryable(err error) bool {
	switch FailedStage(err) {
	case StageEnsureAttribute, StageRegister, StageAssign:
		return true
	default:
		return false
	}
}
