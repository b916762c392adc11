package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/internal/pipeline"
)

func newReportCmd(o *rootOptions) *cobra.Command {
	var (
		asJSON bool
		runID  string
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last recorded run",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := pipeline.NewStateStore(o.cfg.StateDir)
			if reset {
				return store.Reset()
			}

			var (
				rec *pipeline.Record
				err error
			)
			if runID != "" {
				rec, err = store.ReadRun(runID)
			} else {
				rec, err = store.ReadLastRun()
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}

			w := cmd.OutOrStdout()
			if rec == nil {
				_, _ = fmt.Fprintln(w, "No run state found.")
				return nil
			}

			_, _ = fmt.Fprintf(w, "Run:      %s\n", rec.RunID)
			_, _ = fmt.Fprintf(w, "Spec:     %s\n", rec.Spec)
			if rec.APIID != "" {
				_, _ = fmt.Fprintf(w, "Version:  %s/%s\n", rec.APIID, rec.VersionID)
			}
			_, _ = fmt.Fprintf(w, "Status:   %s (%s)\n", rec.Status, rec.State)
			if rec.Level != "" {
				_, _ = fmt.Fprintf(w, "Level:    %s\n", rec.Level)
				_, _ = fmt.Fprintf(w, "Findings: errors=%d warnings=%d infos=%d hints=%d\n",
					rec.Errors, rec.Warnings, rec.Infos, rec.Hints)
			}
			if rec.Error != "" {
				_, _ = fmt.Fprintf(w, "Failed:   %s\n", rec.Stage)
				_, _ = fmt.Fprintf(w, "Error:    %s\n", rec.Error)
			}
			_, _ = fmt.Fprintf(w, "Duration: %s\n", rec.FinishedAt.Sub(rec.StartedAt))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&asJSON, "json", false, "output JSON")
	f.StringVar(&runID, "run", "", "show a specific run id")
	f.BoolVar(&reset, "reset", false, "clear recorded runs")
	return cmd
}
