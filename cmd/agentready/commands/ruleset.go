package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/ruleset"
)

func newRulesetCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ruleset",
		Short: "Inspect the Spectral ruleset",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check the ruleset before it is handed to the linter",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.rulesetPath()
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return clierr.Newf(clierr.CodeUsage, "no ruleset configured and %s not found", o.cfg.Lint.Ruleset)
			}

			rs, err := ruleset.Load(path)
			if err != nil {
				return clierr.Wrap(clierr.CodeLint, "", err)
			}
			if err := rs.Validate(); err != nil {
				return clierr.Wrap(clierr.CodeLint, path, err)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%s: ok (%d rules", path, len(rs.Rules))
			if len(rs.Extends) > 0 {
				_, _ = fmt.Fprintf(w, ", extends %v", rs.Extends)
			}
			_, _ = fmt.Fprintln(w, ")")

			counts := rs.Counts()
			keys := make([]string, 0, len(counts))
			for k := range counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "  %-9s %d\n", k, counts[k])
			}
			return nil
		},
	})
	return cmd
}
