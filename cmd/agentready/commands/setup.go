package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/auth"
	"github.com/bartekus/agentready/internal/config"
	"github.com/bartekus/agentready/internal/lint"
	"github.com/bartekus/agentready/internal/openapi"
	"github.com/bartekus/agentready/internal/pipeline"
	"github.com/bartekus/agentready/internal/registry"
)

func (o *rootOptions) linter() *lint.Spectral {
	return &lint.Spectral{
		Binary:  o.cfg.Lint.Binary,
		Ruleset: o.rulesetPath(),
		Dir:     o.root,
	}
}

// rulesetPath anchors the ruleset at the project root. The default ruleset
// is optional: when it is absent Spectral discovers its own.
func (o *rootOptions) rulesetPath() string {
	rs := o.cfg.Lint.Ruleset
	if rs == "" {
		return ""
	}
	if !filepath.IsAbs(rs) {
		rs = filepath.Join(o.root, rs)
	}
	if o.cfg.Lint.Ruleset == config.DefaultRuleset {
		if _, err := os.Stat(rs); err != nil {
			return ""
		}
	}
	return rs
}

func (o *rootOptions) registryClient() (*registry.Client, error) {
	if err := o.cfg.ValidateRegistry(); err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "", err)
	}
	ts, err := auth.NewTokenSource(o.cfg.Auth)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "credentials", err)
	}
	c, err := registry.New(registry.Options{
		Endpoint:    o.cfg.Endpoint,
		Project:     o.cfg.Project,
		Location:    o.cfg.Location,
		Timeout:     o.cfg.Timeout,
		TokenSource: ts,
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "", err)
	}
	return c, nil
}

// definition maps the configured attribute onto the registry definition.
// Readiness is single-valued, so cardinality is always 1.
func definition(a config.AttributeConfig) registry.Definition {
	scope := registry.ScopeVersion
	if a.Scope == config.ScopeResource {
		scope = registry.ScopeAPI
	}
	values := make([]registry.AllowedValue, 0, len(a.Values))
	for _, v := range a.Values {
		values = append(values, registry.AllowedValue{ID: v.ID, DisplayName: v.DisplayName})
	}
	return registry.Definition{
		ID:            a.ID,
		DisplayName:   a.DisplayName,
		Description:   a.Description,
		Scope:         scope,
		DataType:      registry.DataTypeEnum,
		AllowedValues: values,
		Cardinality:   1,
	}
}

func (o *rootOptions) newPipeline() (*pipeline.Pipeline, error) {
	client, err := o.registryClient()
	if err != nil {
		return nil, err
	}
	p, err := pipeline.New(o.linter(), client, client, definition(o.cfg.Attribute))
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "", err)
	}
	p.Records = pipeline.NewStateStore(o.cfg.StateDir)
	return p, nil
}

type targetFlags struct {
	apiID       string
	versionID   string
	displayName string
	uploadSpec  bool
}

// target fills in ids and display names from the document header for
// anything not given on the command line.
func (f targetFlags) target(specPath string) (pipeline.Target, error) {
	t := pipeline.Target{
		SpecPath:    specPath,
		APIID:       f.apiID,
		VersionID:   f.versionID,
		DisplayName: f.displayName,
		UploadSpec:  f.uploadSpec,
	}

	doc, err := openapi.Probe(specPath)
	if err != nil {
		if t.APIID == "" || t.VersionID == "" {
			return t, clierr.Wrap(clierr.CodeUsage,
				fmt.Sprintf("cannot derive ids from %s (pass --api and --version)", specPath), err)
		}
		return t, nil
	}

	if t.APIID == "" {
		t.APIID = doc.ResourceID()
	}
	if t.VersionID == "" {
		t.VersionID = doc.VersionID()
	}
	if t.DisplayName == "" {
		t.DisplayName = doc.Info.Title
	}
	if t.APIID == "" {
		return t, clierr.Newf(clierr.CodeUsage, "cannot derive an api id from %s (pass --api)", specPath)
	}
	t.Description = doc.Info.Description
	t.VersionDisplayName = doc.Info.Version
	t.MimeType = doc.MimeType()
	return t, nil
}
