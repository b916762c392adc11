package commands

import (
	"errors"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/config"
	"github.com/bartekus/agentready/internal/lint"
	"github.com/bartekus/agentready/internal/pipeline"
	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/registry"
)

// exitError attaches the process exit code for err. Errors that already
// carry one pass through.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	var ec clierr.ExitCoder
	if errors.As(err, &ec) {
		return err
	}
	return clierr.Wrap(exitCode(err), "", err)
}

func exitCode(err error) int {
	switch pipeline.FailedStage(err) {
	case pipeline.StageLint:
		return clierr.CodeLint
	case pipeline.StageClassify:
		return clierr.CodeClassify
	case pipeline.StageEnsureAttribute, pipeline.StageRegister, pipeline.StageAssign:
		return clierr.CodeRegistry
	}

	var status *registry.StatusError
	switch {
	case errors.Is(err, config.ErrInvalid):
		return clierr.CodeUsage
	case errors.Is(err, lint.ErrToolMissing), errors.Is(err, lint.ErrExecution):
		return clierr.CodeLint
	case errors.Is(err, readiness.ErrInvalidInput):
		return clierr.CodeClassify
	case errors.Is(err, registry.ErrUnavailable), errors.As(err, &status):
		return clierr.CodeRegistry
	}
	return clierr.CodeGeneric
}

// gate returns a CodeBelowGate error when level is under floor. A zero
// floor disables the gate.
func gate(level, floor readiness.Level) error {
	if !floor.Valid() || level.AtLeast(floor) {
		return nil
	}
	return clierr.Newf(clierr.CodeBelowGate, "readiness %s is below the required %s", level, floor)
}

func parseMinLevel(s string) (readiness.Level, error) {
	if s == "" {
		return 0, nil
	}
	l, err := readiness.ParseLevel(s)
	if err != nil {
		return 0, clierr.Wrap(clierr.CodeUsage, "--min-level", err)
	}
	return l, nil
}
