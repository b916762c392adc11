package commands

import (
	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/internal/pipeline"
)

func newClassifyCmd(o *rootOptions) *cobra.Command {
	var (
		minLevel string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "classify <spec>",
		Short: "Lint and classify a document without touching the registry",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			floor, err := parseMinLevel(minLevel)
			if err != nil {
				return err
			}

			ev, err := pipeline.Evaluate(cmd.Context(), o.linter(), args[0])
			if err != nil {
				return exitError(err)
			}

			res := evaluationResult(ev)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				writeResult(cmd.OutOrStdout(), res, true)
			}
			return gate(ev.Level, floor)
		},
	}

	cmd.Flags().StringVar(&minLevel, "min-level", "", "exit 3 when the level is below low, medium or high")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
