package commands

import (
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(o *rootOptions) *cobra.Command {
	var (
		tf       targetFlags
		minLevel string
		attempts int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run <spec>",
		Short: "Classify a document and record its readiness in the registry",
		Long: `Runs the full pipeline for one OpenAPI document:

  ensure_attribute -> lint_execution -> classify -> register -> assign

Lint findings, errors included, do not fail the run; they lower the level.
Every stage is idempotent, so --attempts re-runs the whole pipeline when a
registry stage fails. A record of each run is written to the state dir.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := parseMinLevel(minLevel)
			if err != nil {
				return err
			}
			target, err := tf.target(args[0])
			if err != nil {
				return err
			}
			p, err := o.newPipeline()
			if err != nil {
				return err
			}

			out, err := p.RunWithAttempts(cmd.Context(), target, attempts, time.Second)
			if err != nil {
				return exitError(err)
			}

			res := outcomeResult(out)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				writeResult(cmd.OutOrStdout(), res, false)
			}
			return gate(out.Level, floor)
		},
	}

	f := cmd.Flags()
	f.StringVar(&tf.apiID, "api", "", "registry API id (default: slug of info.title)")
	f.StringVar(&tf.versionID, "version", "", "registry version id (default: slug of info.version)")
	f.StringVar(&tf.displayName, "display-name", "", "API display name (default: info.title)")
	f.BoolVar(&tf.uploadSpec, "upload-spec", false, "attach the document to the registered version")
	f.StringVar(&minLevel, "min-level", "", "exit 3 when the level is below low, medium or high")
	f.IntVar(&attempts, "attempts", 1, "whole-pipeline attempts when a registry stage fails")
	f.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
