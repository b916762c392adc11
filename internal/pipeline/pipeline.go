// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Agentready - governance tooling that scores OpenAPI documents for consumption by AI agents
and records the resulting readiness level against versioned resources in an API registry.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package pipeline sequences one classification run:
//
//	start -> attribute_ensured -> linted -> classified -> resource_registered -> assigned -> done
//
// Any stage may end the run in failed, carrying the stage name and cause.
// Completed stages are idempotent, so recovery is re-running the whole
// pipeline rather than resuming part of it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"

	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/registry"
)

// Linter produces findings for a specification document. It returns an
// error only when linting could not run.
type Linter interface {
	Lint(ctx context.Context, specPath string) ([]readiness.Finding, error)
}

// AttributeStore persists the readiness attribute.
type AttributeStore interface {
	EnsureDefinition(ctx context.Context, def registry.Definition) (registry.EnsureResult, error)
	Assign(ctx context.Context, ref registry.VersionRef, attributeID, valueID string) error
}

// Registrar creates (or finds) the registry record for a document.
type Registrar interface {
	Register(ctx context.Context, reg registry.Registration) (registry.VersionRef, error)
}

// Target is the document a run classifies and where the result is recorded.
type Target struct {
	SpecPath string

	APIID              string
	VersionID          string
	DisplayName        string
	Description        string
	VersionDisplayName string

	// UploadSpec attaches the document itself to the registered version.
	UploadSpec bool
	MimeType   string
}

// Pipeline holds the collaborators shared by runs. A Pipeline is safe for
// concurrent use as long as its collaborators are.
type Pipeline struct {
	Linter     Linter
	Store      AttributeStore
	Registrar  Registrar
	Definition registry.Definition

	// Records, when set, receives a record of every finished run.
	Records *StateStore
	Logger  *slog.Logger

	now func() time.Time
}

// New validates the collaborators and returns a Pipeline.
func New(linter Linter, store AttributeStore, registrar Registrar, def registry.Definition) (*Pipeline, error) {
	if linter == nil || store == nil || registrar == nil {
		return nil, errors.New("pipeline: linter, attribute store and registrar are required")
	}
	if def.ID == "" {
		return nil, errors.New("pipeline: attribute definition id is required")
	}
	for _, l := range readiness.Levels() {
		if !def.Allows(l.ID()) {
			return nil, fmt.Errorf("pipeline: attribute %q does not allow %q", def.ID, l.ID())
		}
	}
	return &Pipeline{
		Linter:     linter,
		Store:      store,
		Registrar:  registrar,
		Definition: def,
		Logger:     slog.Default(),
		now:        time.Now,
	}, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// Outcome is the observable result of a run. On success State is done and
// Level is what was assigned.
type Outcome struct {
	RunID    string
	Spec     string
	State    string
	Ref      registry.VersionRef
	Level    readiness.Level
	Summary  readiness.Summary
	Findings []readiness.Finding
	Ensure   registry.EnsureResult
	Err      error
}

// Succeeded reports whether the run reached done.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.State == StateDone
}

// Evaluation is the offline half of a run: findings and their level.
type Evaluation struct {
	Spec     string
	Findings []readiness.Finding
	Summary  readiness.Summary
	Level    readiness.Level
}

// Evaluate lints and classifies a document without touching the registry.
// Failures carry the same stage names as Run.
func Evaluate(ctx context.Context, linter Linter, specPath string) (*Evaluation, error) {
	findings, err := linter.Lint(ctx, specPath)
	if err != nil {
		return nil, &StageError{Stage: StageLint, Cause: err}
	}
	summary, err := readiness.Summarize(findings)
	if err != nil {
		return nil, &StageError{Stage: StageClassify, Cause: err}
	}
	return &Evaluation{
		Spec:     specPath,
		Findings: findings,
		Summary:  summary,
		Level:    summary.Level(),
	}, nil
}

// Run executes one pipeline run against target. The returned Outcome is
// never nil; on failure the error is a *StageError.
func (p *Pipeline) Run(ctx context.Context, target Target) (*Outcome, error) {
	runID := uuid.NewString()
	out := &Outcome{RunID: runID, Spec: target.SpecPath, State: StateStart}
	log := p.logger().With("run_id", runID, "spec", target.SpecPath)
	started := p.clock()

	m, err := newMachine(runID)
	if err != nil {
		return out, err
	}

	r := &run{p: p, m: m, log: log, out: out}
	err = r.execute(ctx, target)
	out.State = m.current()
	out.Err = err

	if err != nil {
		log.Error("pipeline: run failed", "stage", FailedStage(err), "err", err)
	} else {
		log.Info("pipeline: run complete",
			"stage", out.State,
			"api", out.Ref.APIID,
			"version", out.Ref.VersionID,
			"level", out.Level.ID(),
		)
	}

	if p.Records != nil {
		rec := NewRecord(out, started, p.clock())
		if werr := p.Records.Write(rec); werr != nil {
			log.Warn("pipeline: could not write run record", "err", werr)
		}
	}
	return out, err
}

// RunWithAttempts re-invokes the whole pipeline up to attempts times while
// the failure is Retryable. Each attempt is a fresh run with its own id.
func (p *Pipeline) RunWithAttempts(ctx context.Context, target Target, attempts int, delay time.Duration) (*Outcome, error) {
	if attempts <= 1 {
		return p.Run(ctx, target)
	}
	if delay <= 0 {
		delay = time.Second
	}

	r := retry.New[*Outcome](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		BackoffPolicy: retry.BackoffExponential,
	})

	var (
		last  *Outcome
		final error
		n     int
	)
	_, err := r.Do(ctx, func(ctx context.Context) (*Outcome, error) {
		n++
		out, err := p.Run(ctx, target)
		last = out
		if err != nil && !Retryable(err) {
			final = err
			return out, nil
		}
		if err != nil {
			p.logger().Warn("pipeline: attempt failed", "attempt", n, "of", attempts, "stage", FailedStage(err), "err", err)
		}
		return out, err
	})
	if final != nil {
		return last, final
	}
	if err != nil && last != nil && last.Err != nil {
		// Report the stage error of the last attempt, not the retry wrapper.
		return last, last.Err
	}
	return last, err
}

type run struct {
	p   *Pipeline
	m   *machine
	log *slog.Logger
	out *Outcome
}

// step runs fn for stage and moves the machine forward, or into failed.
func (r *run) step(stage string, fn func() error) error {
	r.log.Debug("pipeline: stage started", "stage", stage, "state", r.m.current())
	if err := fn(); err != nil {
		serr := &StageError{Stage: stage, Cause: err}
		if ferr := r.m.fail(); ferr != nil {
			return errors.Join(serr, ferr)
		}
		return serr
	}
	if err := r.m.advance(); err != nil {
		return &StageError{Stage: stage, Cause: err}
	}
	r.log.Debug("pipeline: stage finished", "stage", stage, "state", r.m.current())
	return nil
}

func (r *run) execute(ctx context.Context, target Target) error {
	p := r.p
	out := r.out

	if target.SpecPath == "" {
		return r.step(StageLint, func() error { return errors.New("no specification path") })
	}

	if err := r.step(StageEnsureAttribute, func() error {
		res, err := p.Store.EnsureDefinition(ctx, p.Definition)
		out.Ensure = res
		return err
	}); err != nil {
		return err
	}

	var findings []readiness.Finding
	if err := r.step(StageLint, func() error {
		var err error
		findings, err = p.Linter.Lint(ctx, target.SpecPath)
		return err
	}); err != nil {
		return err
	}
	out.Findings = findings

	if err := r.step(StageClassify, func() error {
		s, err := readiness.Summarize(findings)
		if err != nil {
			return err
		}
		out.Summary = s
		out.Level = s.Level()
		return nil
	}); err != nil {
		return err
	}

	if err := r.step(StageRegister, func() error {
		reg, err := registration(target)
		if err != nil {
			return err
		}
		ref, err := p.Registrar.Register(ctx, reg)
		if err != nil {
			return err
		}
		if ref.APIID == "" || ref.VersionID == "" {
			return fmt.Errorf("registrar returned incomplete reference %q", ref.String())
		}
		out.Ref = ref
		return nil
	}); err != nil {
		return err
	}

	if err := r.step(StageAssign, func() error {
		return p.Store.Assign(ctx, out.Ref, p.Definition.ID, out.Level.ID())
	}); err != nil {
		return err
	}

	// assigned -> done
	if err := r.m.advance(); err != nil {
		return err
	}
	return nil
}

func registration(t Target) (registry.Registration, error) {
	reg := registry.Registration{
		APIID:              t.APIID,
		VersionID:          t.VersionID,
		DisplayName:        t.DisplayName,
		Description:        t.Description,
		VersionDisplayName: t.VersionDisplayName,
	}
	if !t.UploadSpec {
		return reg, nil
	}
	data, err := os.ReadFile(t.SpecPath)
	if err != nil {
		return reg, fmt.Errorf("reading specification for upload: %w", err)
	}
	base := filepath.Base(t.SpecPath)
	reg.Spec = &registry.SpecUpload{
		ID:          "openapi",
		DisplayName: base,
		MimeType:    t.MimeType,
		Contents:    data,
	}
	return reg, nil
}
