package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bartekus/agentready/internal/pipeline"
	"github.com/bartekus/agentready/internal/readiness"
)

type findingView struct {
	Code     string `json:"code,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// result is the printed form of one classified document.
type result struct {
	RunID     string            `json:"run_id,omitempty"`
	Spec      string            `json:"spec"`
	APIID     string            `json:"api_id,omitempty"`
	VersionID string            `json:"version_id,omitempty"`
	Level     string            `json:"level,omitempty"`
	Summary   readiness.Summary `json:"summary"`
	Findings  []findingView     `json:"findings,omitempty"`
	Stage     string            `json:"failed_stage,omitempty"`
	Error     string            `json:"error,omitempty"`

	level readiness.Level
	err   error
}

func findingViews(findings []readiness.Finding) []findingView {
	out := make([]findingView, 0, len(findings))
	for _, f := range findings {
		out = append(out, findingView{
			Code:     f.Code,
			Severity: f.Severity.String(),
			Message:  f.Message,
			Path:     f.Location(),
			Line:     f.Line,
		})
	}
	return out
}

func evaluationResult(ev *pipeline.Evaluation) result {
	return result{
		Spec:     ev.Spec,
		Level:    ev.Level.ID(),
		Summary:  ev.Summary,
		Findings: findingViews(ev.Findings),
		level:    ev.Level,
	}
}

func outcomeResult(out *pipeline.Outcome) result {
	r := result{
		RunID:     out.RunID,
		Spec:      out.Spec,
		APIID:     out.Ref.APIID,
		VersionID: out.Ref.VersionID,
		Level:     out.Level.ID(),
		Summary:   out.Summary,
		level:     out.Level,
		err:       out.Err,
	}
	if out.Err != nil {
		r.Stage = pipeline.FailedStage(out.Err)
		r.Error = out.Err.Error()
	}
	return r
}

func failedResult(spec string, err error) result {
	return result{
		Spec:  spec,
		Stage: pipeline.FailedStage(err),
		Error: err.Error(),
		err:   err,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeResult prints one line per document, then its findings when verbose.
func writeResult(w io.Writer, r result, verbose bool) {
	name := r.Spec
	if r.APIID != "" {
		name = fmt.Sprintf("%s (%s/%s)", r.Spec, r.APIID, r.VersionID)
	}
	if r.err != nil {
		_, _ = fmt.Fprintf(w, "FAIL %s: %s\n", name, r.Error)
		return
	}
	s := r.Summary
	_, _ = fmt.Fprintf(w, "%-6s %s  errors=%d warnings=%d infos=%d hints=%d\n",
		r.level, name, s.Errors, s.Warnings, s.Infos, s.Hints)

	if !verbose || len(r.Findings) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range r.Findings {
		loc := f.Path
		if f.Line > 0 {
			loc = fmt.Sprintf("%d:%s", f.Line, f.Path)
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Severity, f.Code, loc, f.Message)
	}
	_ = tw.Flush()
}
