// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lint runs the external OpenAPI linter and turns its report into
// readiness findings.
//
// Lint findings, errors included, are a successful lint run. Only a linter
// that cannot run or whose report cannot be read is a failure.
package lint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/ruleset"
)

var (
	// ErrToolMissing means the linter binary could not be located.
	ErrToolMissing = errors.New("linter not found")
	// ErrExecution means the linter ran but did not produce a usable report.
	ErrExecution = errors.New("linter execution failed")
)

// InstallHint is shown when the binary is missing.
const InstallHint = "Run: npm install -g @stoplight/spectral-cli"

// ExecutionError carries the linter's exit code and stderr.
type ExecutionError struct {
	Binary   string
	ExitCode int
	Stderr   string
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Is lets errors.Is match ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// Spectral runs the Spectral CLI.
type Spectral struct {
	// Binary is a command name or path. Empty means "spectral".
	Binary string
	// Ruleset is the ruleset file. Empty lets Spectral discover one.
	Ruleset string
	// Dir is the working directory; node_modules/.bin under it is searched.
	Dir string
}

// Find locates the binary.
// Search order:
//  1. Binary as a path, when it contains a separator
//  2. $PATH
//  3. <Dir>/node_modules/.bin
func (s *Spectral) Find() (string, error) {
	name := s.Binary
	if name == "" {
		name = "spectral"
	}

	if strings.ContainsRune(name, filepath.Separator) {
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s. %s", ErrToolMissing, name, InstallHint)
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	local := filepath.Join(s.Dir, "node_modules", ".bin", name)
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local, nil
	}
	return "", fmt.Errorf("%w: %s. %s", ErrToolMissing, name, InstallHint)
}

// Lint runs the linter against specPath and returns its findings.
func (s *Spectral) Lint(ctx context.Context, specPath string) ([]readiness.Finding, error) {
	bin, err := s.Find()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(specPath); err != nil {
		return nil, fmt.Errorf("%w: specification: %v", ErrExecution, err)
	}

	args := []string{"lint", specPath, "--format", "json", "--quiet"}
	if s.Ruleset != "" {
		rs, err := ruleset.Load(s.Ruleset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		if err := rs.Validate(); err != nil {
			return nil, fmt.Errorf("%w: ruleset %s: %v", ErrExecution, s.Ruleset, err)
		}
		args = append(args, "--ruleset", s.Ruleset)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = s.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("lint: running", "binary", bin, "spec", specPath, "ruleset", s.Ruleset)
	err = cmd.Run()

	// Spectral exits 1 when findings reach the fail severity. That is a
	// report, not a failure.
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %v", ErrExecution, err)
		}
		exitCode = exitErr.ExitCode()
	}
	if exitCode != 0 && exitCode != 1 {
		return nil, &ExecutionError{Binary: bin, ExitCode: exitCode, Stderr: strings.TrimSpace(stderr.String())}
	}

	findings, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	slog.Debug("lint: done", "spec", specPath, "findings", len(findings), "exit_code", exitCode)
	return findings, nil
}
