package ruleset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentRules = `
extends:
  - [spectral:oas, recommended]
rules:
  info-contact: off
  operation-tags: warn
  operation-description:
    description: Agents need a description for every operation.
    severity: error
    given: $.paths[*][*]
    then:
      field: description
      function: truthy
  operation-examples:
    severity: 3
    given:
      - $.paths[*][*].responses[*].content[*]
    then:
      field: example
      function: defined
`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(agentRules))
	require.NoError(t, err)
	require.NoError(t, rs.Validate())

	assert.Equal(t, []string{"spectral:oas"}, rs.Extends)
	require.Len(t, rs.Rules, 4)

	byName := map[string]Rule{}
	for _, r := range rs.Rules {
		byName[r.Name] = r
	}
	assert.Equal(t, SeverityOff, byName["info-contact"].Severity)
	assert.Equal(t, "warning", byName["operation-tags"].Severity)
	assert.Equal(t, "error", byName["operation-description"].Severity)
	assert.True(t, byName["operation-description"].Custom)
	assert.Equal(t, []string{"$.paths[*][*]"}, byName["operation-description"].Given)
	assert.Equal(t, "hint", byName["operation-examples"].Severity)

	assert.Equal(t, map[string]int{"off": 1, "warning": 1, "error": 1, "hint": 1}, rs.Counts())
}

func TestParse_ExtendsScalar(t *testing.T) {
	rs, err := Parse([]byte(`extends: spectral:oas`))
	require.NoError(t, err)
	assert.Equal(t, []string{"spectral:oas"}, rs.Extends)
	assert.NoError(t, rs.Validate())
}

func TestParse_JSON(t *testing.T) {
	rs, err := Parse([]byte(`{"extends": ["spectral:oas"], "rules": {"info-contact": false, "tag-description": true}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"off": 1, "inherited": 1}, rs.Counts())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "bad yaml", content: "rules: [unterminated"},
		{name: "unknown severity name", content: "rules:\n  a: fatal\n"},
		{name: "unknown severity number", content: "rules:\n  a:\n    severity: 9\n"},
		{name: "rule is a list", content: "rules:\n  a: [1, 2]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	rs, err := Parse([]byte(`rules: {}`))
	require.NoError(t, err)
	assert.ErrorContains(t, rs.Validate(), "no rules")

	rs, err = Parse([]byte("rules:\n  a:\n    then:\n      function: truthy\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, rs.Validate(), "no given")

	rs, err = Parse([]byte("rules:\n  a:\n    given: paths\n    then:\n      function: truthy\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, rs.Validate(), "JSONPath")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".spectral.yaml")
	require.NoError(t, os.WriteFile(path, []byte(agentRules), 0o600))

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, rs.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_ShippedRuleset(t *testing.T) {
	rs, err := Load(filepath.Join("..", "..", "examples", ".spectral.yaml"))
	require.NoError(t, err)
	require.NoError(t, rs.Validate())

	assert.Equal(t, []string{"spectral:oas"}, rs.Extends)
	assert.Len(t, rs.Rules, 10)
	assert.Equal(t, map[string]int{"error": 3, "warning": 4, "info": 1, "hint": 2}, rs.Counts())
}
