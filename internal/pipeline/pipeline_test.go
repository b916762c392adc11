package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/registry"
	"github.com/bartekus/agentready/internal/registry/registrytest"
)

type fakeLinter struct {
	findings []readiness.Finding
	err      error
	calls    int
}

func (f *fakeLinter) Lint(ctx context.Context, specPath string) ([]readiness.Finding, error) {
	f.calls++
	return f.findings, f.err
}

// cleanLinter reports no findings and is safe for concurrent use.
type cleanLinter struct{}

func (cleanLinter) Lint(context.Context, string) ([]readiness.Finding, error) {
	return nil, nil
}

type fakeStore struct {
	mu         sync.Mutex
	ensureErrs []error
	assignErrs []error
	ensures    int
	assigned   []string
}

func (f *fakeStore) EnsureDefinition(ctx context.Context, def registry.Definition) (registry.EnsureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	if len(f.ensureErrs) > 0 {
		err := f.ensureErrs[0]
		f.ensureErrs = f.ensureErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	if f.ensures == 1 {
		return registry.Created, nil
	}
	return registry.AlreadyExists, nil
}

func (f *fakeStore) Assign(ctx context.Context, ref registry.VersionRef, attributeID, valueID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.assignErrs) > 0 {
		err := f.assignErrs[0]
		f.assignErrs = f.assignErrs[1:]
		if err != nil {
			return err
		}
	}
	f.assigned = append(f.assigned, ref.String()+"="+valueID)
	return nil
}

type fakeRegistrar struct {
	err   error
	calls int
	last  registry.Registration
}

func (f *fakeRegistrar) Register(ctx context.Context, reg registry.Registration) (registry.VersionRef, error) {
	f.calls++
	f.last = reg
	if f.err != nil {
		return registry.VersionRef{}, f.err
	}
	return registry.VersionRef{APIID: reg.APIID, VersionID: reg.VersionID}, nil
}

func definition() registry.Definition {
	return registry.Definition{
		ID:          "agentic-readiness",
		DisplayName: "Agentic Readiness",
		Scope:       registry.ScopeVersion,
		DataType:    registry.DataTypeEnum,
		AllowedValues: []registry.AllowedValue{
			{ID: "readiness_low", DisplayName: "Low"},
			{ID: "readiness_medium", DisplayName: "Medium"},
			{ID: "readiness_high", DisplayName: "High"},
		},
		Cardinality: 1,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(t *testing.T, l Linter, s AttributeStore, r Registrar) *Pipeline {
	t.Helper()
	p, err := New(l, s, r, definition())
	require.NoError(t, err)
	p.Logger = quietLogger()
	return p
}

func ordersTarget() Target {
	return Target{SpecPath: "orders.yaml", APIID: "orders-api", VersionID: "v1"}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeStore{}, &fakeRegistrar{}, definition())
	assert.Error(t, err)

	def := definition()
	def.ID = ""
	_, err = New(&fakeLinter{}, &fakeStore{}, &fakeRegistrar{}, def)
	assert.Error(t, err)

	def = definition()
	def.AllowedValues = def.AllowedValues[:2]
	_, err = New(&fakeLinter{}, &fakeStore{}, &fakeRegistrar{}, def)
	assert.ErrorContains(t, err, "readiness_high")
}

func TestRun_AssignsClassifiedLevel(t *testing.T) {
	tests := []struct {
		name     string
		findings []readiness.Finding
		want     readiness.Level
	}{
		{"errors still assign low", []readiness.Finding{
			{Severity: readiness.SeverityError, Message: "missing operationId"},
			{Severity: readiness.SeverityWarning, Message: "no description"},
		}, readiness.LevelLow},
		{"warnings assign medium", []readiness.Finding{
			{Severity: readiness.SeverityWarning},
			{Severity: readiness.SeverityHint},
		}, readiness.LevelMedium},
		{"clean assigns high", nil, readiness.LevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linter := &fakeLinter{findings: tt.findings}
			store := &fakeStore{}
			reg := &fakeRegistrar{}
			p := newPipeline(t, linter, store, reg)

			out, err := p.Run(context.Background(), ordersTarget())
			require.NoError(t, err)
			assert.True(t, out.Succeeded())
			assert.Equal(t, StateDone, out.State)
			assert.Equal(t, tt.want, out.Level)
			assert.Equal(t, registry.Created, out.Ensure)
			assert.NotEmpty(t, out.RunID)
			assert.Equal(t, []string{"orders-api/v1=" + tt.want.ID()}, store.assigned)
			assert.Equal(t, 1, reg.calls)
		})
	}
}

func TestRun_StageFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		linter    *fakeLinter
		store     *fakeStore
		registrar *fakeRegistrar
		stage     string
		lintCalls int
		regCalls  int
	}{
		{
			name:      "ensure attribute",
			linter:    &fakeLinter{},
			store:     &fakeStore{ensureErrs: []error{boom}},
			registrar: &fakeRegistrar{},
			stage:     StageEnsureAttribute,
		},
		{
			name:      "linter cannot run",
			linter:    &fakeLinter{err: boom},
			store:     &fakeStore{},
			registrar: &fakeRegistrar{},
			stage:     StageLint,
			lintCalls: 1,
		},
		{
			name:      "unknown severity",
			linter:    &fakeLinter{findings: []readiness.Finding{{Severity: readiness.Severity(9)}}},
			store:     &fakeStore{},
			registrar: &fakeRegistrar{},
			stage:     StageClassify,
			lintCalls: 1,
		},
		{
			name:      "register",
			linter:    &fakeLinter{},
			store:     &fakeStore{},
			registrar: &fakeRegistrar{err: boom},
			stage:     StageRegister,
			lintCalls: 1,
			regCalls:  1,
		},
		{
			name:      "assign",
			linter:    &fakeLinter{},
			store:     &fakeStore{assignErrs: []error{boom}},
			registrar: &fakeRegistrar{},
			stage:     StageAssign,
			lintCalls: 1,
			regCalls:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, tt.linter, tt.store, tt.registrar)

			out, err := p.Run(context.Background(), ordersTarget())
			require.Error(t, err)

			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.stage, serr.Stage)
			assert.Equal(t, tt.stage, FailedStage(err))
			assert.Equal(t, StateFailed, out.State)
			assert.False(t, out.Succeeded())
			assert.Equal(t, tt.lintCalls, tt.linter.calls)
			assert.Equal(t, tt.regCalls, tt.registrar.calls)
			assert.Empty(t, tt.store.assigned)

			if tt.stage == StageClassify {
				assert.ErrorIs(t, err, readiness.ErrInvalidInput)
			} else {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestRun_EmptySpecPath(t *testing.T) {
	store := &fakeStore{}
	p := newPipeline(t, &fakeLinter{}, store, &fakeRegistrar{})

	out, err := p.Run(context.Background(), Target{APIID: "a", VersionID: "v1"})
	require.Error(t, err)
	assert.Equal(t, StageLint, FailedStage(err))
	assert.Equal(t, StateFailed, out.State)
	assert.Zero(t, store.ensures)
}

func TestRun_UploadsSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openapi: 3.0.3\n"), 0o600))

	reg := &fakeRegistrar{}
	p := newPipeline(t, &fakeLinter{}, &fakeStore{}, reg)

	target := ordersTarget()
	target.SpecPath = path
	target.UploadSpec = true
	target.MimeType = "application/yaml"

	_, err := p.Run(context.Background(), target)
	require.NoError(t, err)
	require.NotNil(t, reg.last.Spec)
	assert.Equal(t, "openapi", reg.last.Spec.ID)
	assert.Equal(t, "orders.yaml", reg.last.Spec.DisplayName)
	assert.Equal(t, []byte("openapi: 3.0.3\n"), reg.last.Spec.Contents)
}

func TestRun_WritesRecords(t *testing.T) {
	store := NewStateStore(t.TempDir())
	p := newPipeline(t, &fakeLinter{findings: []readiness.Finding{{Severity: readiness.SeverityWarning}}}, &fakeStore{}, &fakeRegistrar{})
	p.Records = store

	out, err := p.Run(context.Background(), ordersTarget())
	require.NoError(t, err)

	last, err := store.ReadLastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, out.RunID, last.RunID)
	assert.Equal(t, "pass", last.Status)
	assert.Equal(t, StateDone, last.State)
	assert.Equal(t, "readiness_medium", last.Level)
	assert.Equal(t, 1, last.Warnings)

	byID, err := store.ReadRun(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, last, byID)

	p.Registrar = &fakeRegistrar{err: errors.New("quota exceeded")}
	_, err = p.Run(context.Background(), ordersTarget())
	require.Error(t, err)

	last, err = store.ReadLastRun()
	require.NoError(t, err)
	assert.Equal(t, "fail", last.Status)
	assert.Equal(t, StageRegister, last.Stage)
	assert.Contains(t, last.Error, "quota exceeded")
	assert.Equal(t, "readiness_medium", last.Level)
}

func TestRunWithAttempts_RetriesRegistryStages(t *testing.T) {
	store := &fakeStore{assignErrs: []error{errors.New("unavailable"), nil}}
	linter := &fakeLinter{}
	p := newPipeline(t, linter, store, &fakeRegistrar{})

	out, err := p.RunWithAttempts(context.Background(), ordersTarget(), 3, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.Equal(t, 2, store.ensures)
	assert.Equal(t, 2, linter.calls)
	assert.Equal(t, registry.AlreadyExists, out.Ensure)
	assert.Equal(t, []string{"orders-api/v1=readiness_high"}, store.assigned)
}

func TestRunWithAttempts_GivesUp(t *testing.T) {
	boom := errors.New("still down")
	reg := &fakeRegistrar{err: boom}
	p := newPipeline(t, &fakeLinter{}, &fakeStore{}, reg)

	out, err := p.RunWithAttempts(context.Background(), ordersTarget(), 2, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, StageRegister, FailedStage(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 2, reg.calls)
}

func TestRunWithAttempts_DoesNotRetryLint(t *testing.T) {
	linter := &fakeLinter{err: errors.New("spectral: not found")}
	p := newPipeline(t, linter, &fakeStore{}, &fakeRegistrar{})

	_, err := p.RunWithAttempts(context.Background(), ordersTarget(), 5, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, StageLint, FailedStage(err))
	assert.Equal(t, 1, linter.calls)
}

func TestEvaluate(t *testing.T) {
	ev, err := Evaluate(context.Background(), &fakeLinter{findings: []readiness.Finding{
		{Severity: readiness.SeverityInfo},
		{Severity: readiness.SeverityHint},
	}}, "x.yaml")
	require.NoError(t, err)
	assert.Equal(t, readiness.LevelHigh, ev.Level)
	assert.Equal(t, 2, ev.Summary.Total())

	_, err = Evaluate(context.Background(), &fakeLinter{err: errors.New("x")}, "x.yaml")
	assert.Equal(t, StageLint, FailedStage(err))
}

func TestRun_AgainstRegistry(t *testing.T) {
	const (
		project  = "demo-project"
		location = "us-central1"
	)
	srv := registrytest.New(t)
	client, err := registry.New(registry.Options{
		Endpoint:    srv.URL,
		Project:     project,
		Location:    location,
		Timeout:     5 * time.Second,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}),
	})
	require.NoError(t, err)

	versionName := "projects/demo-project/locations/us-central1/apis/orders-api/versions/v1"
	owner := "projects/demo-project/locations/us-central1/attributes/owner"
	srv.SeedVersion(versionName, map[string]json.RawMessage{
		owner: json.RawMessage(`{"stringValues":{"values":["payments-team"]}}`),
	})

	linter := &fakeLinter{findings: []readiness.Finding{{Severity: readiness.SeverityWarning}}}
	p := newPipeline(t, linter, client, client)
	ctx := context.Background()

	out, err := p.Run(ctx, ordersTarget())
	require.NoError(t, err)
	assert.Equal(t, registry.Created, out.Ensure)

	ids, err := client.ReadAssignment(ctx, out.Ref, "agentic-readiness")
	require.NoError(t, err)
	assert.Equal(t, []string{"readiness_medium"}, ids)

	// The document is fixed; a second run replaces the value.
	linter.findings = nil
	out, err = p.Run(ctx, ordersTarget())
	require.NoError(t, err)
	assert.Equal(t, registry.AlreadyExists, out.Ensure)

	ids, err = client.ReadAssignment(ctx, out.Ref, "agentic-readiness")
	require.NoError(t, err)
	assert.Equal(t, []string{"readiness_high"}, ids)

	attrs, ok := srv.VersionAttributes(versionName)
	require.True(t, ok)
	assert.JSONEq(t, `{"stringValues":{"values":["payments-team"]}}`, string(attrs[owner]))
	assert.Len(t, attrs, 2)
}

func TestRun_ConcurrentFirstRuns(t *testing.T) {
	srv := registrytest.New(t)
	client, err := registry.New(registry.Options{
		Endpoint:    srv.URL,
		Project:     "p",
		Location:    "l",
		Timeout:     5 * time.Second,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}),
	})
	require.NoError(t, err)

	ctx := context.Background()
	apis := []string{"orders-api", "billing-api", "users-api", "search-api"}

	p := newPipeline(t, cleanLinter{}, client, client)

	var wg sync.WaitGroup
	errs := make([]error, len(apis))
	for i, api := range apis {
		wg.Add(1)
		go func(i int, api string) {
			defer wg.Done()
			_, errs[i] = p.Run(ctx, Target{SpecPath: api + ".yaml", APIID: api, VersionID: "v1"})
		}(i, api)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, apis[i])
	}
	assert.True(t, srv.HasAttribute("projects/p/locations/l/attributes/agentic-readiness"))
	for _, api := range apis {
		ids, err := client.ReadAssignment(ctx, registry.VersionRef{APIID: api, VersionID: "v1"}, "agentic-readiness")
		require.NoError(t, err)
		assert.Equal(t, []string{"readiness_high"}, ids)
	}
}
