package lint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/bartekus/agentready/internal/readiness"
)

const reportSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["code", "message", "severity"],
    "properties": {
      "code": { "type": ["string", "number"] },
      "message": { "type": "string" },
      "severity": { "type": "integer" },
      "path": { "type": "array", "items": { "type": ["string", "number"] } },
      "source": { "type": "string" },
      "range": {
        "type": "object",
        "properties": {
          "start": {
            "type": "object",
            "properties": { "line": { "type": "integer" } }
          }
        }
      }
    }
  }
}`

var reportSchemaLoader = gojsonschema.NewStringLoader(reportSchemaJSON)

type reportEntry struct {
	Code     any    `json:"code"`
	Message  string `json:"message"`
	Severity int    `json:"severity"`
	Path     []any  `json:"path"`
	Source   string `json:"source"`
	Range    *struct {
		Start struct {
			Line int `json:"line"`
		} `json:"start"`
	} `json:"range"`
}

// Parse decodes a Spectral JSON report. The report shape is validated before
// decoding; severity values are passed through unchanged so that the
// classifier can reject unknown ones.
func Parse(data []byte) ([]readiness.Finding, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []readiness.Finding{}, nil
	}

	result, err := gojsonschema.Validate(reportSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: report is not JSON: %v", ErrExecution, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("%w: unexpected report shape: %s", ErrExecution, strings.Join(issues, "; "))
	}

	var entries []reportEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode report: %v", ErrExecution, err)
	}

	findings := make([]readiness.Finding, 0, len(entries))
	for _, e := range entries {
		path := make([]string, 0, len(e.Path))
		for _, p := range e.Path {
			path = append(path, fmt.Sprint(p))
		}
		f := readiness.Finding{
			Code:     fmt.Sprint(e.Code),
			Severity: readiness.Severity(e.Severity),
			Message:  e.Message,
			Path:     path,
			Source:   e.Source,
		}
		if e.Range != nil {
			// Spectral lines are zero-based.
			f.Line = e.Range.Start.Line + 1
		}
		findings = append(findings, f)
	}
	return findings, nil
}
