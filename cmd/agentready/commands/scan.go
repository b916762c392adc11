package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/openapi"
	"github.com/bartekus/agentready/internal/pipeline"
	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/scanner"
)

func newScanCmd(o *rootOptions) *cobra.Command {
	var (
		publish     bool
		concurrency int
		minLevel    string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Discover OpenAPI documents and classify each one",
		Long: `Finds OpenAPI documents under dir (default: the project root), skipping
vendored and generated directories, and classifies each. With --publish
every document runs the full pipeline; runs proceed concurrently and share
one attribute definition.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := parseMinLevel(minLevel)
			if err != nil {
				return err
			}
			if concurrency < 1 {
				return clierr.Newf(clierr.CodeUsage, "--concurrency must be at least 1, got %d", concurrency)
			}

			dir := o.root
			if len(args) == 1 {
				dir = args[0]
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return clierr.Newf(clierr.CodeUsage, "%s is not a directory", dir)
			}

			docs, err := scanner.New(dir).Specs(cmd.Context())
			if err != nil {
				return err
			}

			var p *pipeline.Pipeline
			if publish {
				if p, err = o.newPipeline(); err != nil {
					return err
				}
			}

			results := o.scanAll(cmd.Context(), docs, p, concurrency)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					writeResult(cmd.OutOrStdout(), r, false)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) scanned\n", len(results))
			}
			return scanVerdict(results, floor)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&publish, "publish", false, "run the full pipeline for each document")
	f.IntVar(&concurrency, "concurrency", 4, "documents processed at once")
	f.StringVar(&minLevel, "min-level", "", "exit 3 when any level is below low, medium or high")
	f.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

// scanAll classifies docs with at most limit in flight. Results keep the
// order of docs; one document failing does not stop the others.
func (o *rootOptions) scanAll(ctx context.Context, docs []*openapi.Document, p *pipeline.Pipeline, limit int) []result {
	results := make([]result, len(docs))
	linter := o.linter()

	var g errgroup.Group
	g.SetLimit(limit)
	for i, doc := range docs {
		g.Go(func() error {
			spec := o.relative(doc.Path)
			if p == nil {
				ev, err := pipeline.Evaluate(ctx, linter, doc.Path)
				if err != nil {
					results[i] = failedResult(spec, err)
					return nil
				}
				results[i] = evaluationResult(ev)
				results[i].Findings = nil
				results[i].Spec = spec
				return nil
			}

			target, err := targetFlags{}.target(doc.Path)
			if err != nil {
				results[i] = failedResult(spec, err)
				return nil
			}
			out, _ := p.Run(ctx, target)
			results[i] = outcomeResult(out)
			results[i].Spec = spec
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *rootOptions) relative(path string) string {
	if rel, err := filepath.Rel(o.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// scanVerdict reports the first failure, or a gate error for the lowest
// level found.
func scanVerdict(results []result, floor readiness.Level) error {
	lowest := readiness.LevelHigh
	for _, r := range results {
		if r.err != nil {
			return exitError(fmt.Errorf("%s: %w", r.Spec, r.err))
		}
		if r.level < lowest {
			lowest = r.level
		}
	}
	if len(results) == 0 {
		return nil
	}
	return gate(lowest, floor)
}
