package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/readiness"
	"github.com/bartekus/agentready/internal/registry"
)

func newAttributeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attribute",
		Short: "Manage the readiness attribute directly",
	}
	cmd.AddCommand(newAttributeEnsureCmd(o))
	cmd.AddCommand(newAttributeGetCmd(o))
	cmd.AddCommand(newAttributeAssignCmd(o))
	cmd.AddCommand(newAttributeShowCmd(o))
	return cmd
}

func newAttributeEnsureCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create the attribute definition if it does not exist",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.registryClient()
			if err != nil {
				return err
			}
			def := definition(o.cfg.Attribute)
			res, err := client.EnsureDefinition(cmd.Context(), def)
			if err != nil {
				return exitError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", client.AttributeName(def.ID), res)
			return nil
		},
	}
}

func newAttributeGetCmd(o *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the attribute definition stored in the registry",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.registryClient()
			if err != nil {
				return err
			}
			id := o.cfg.Attribute.ID
			def, err := client.GetDefinition(cmd.Context(), id)
			if err != nil {
				return exitError(err)
			}
			if def == nil {
				return clierr.Newf(clierr.CodeGeneric, "attribute %s does not exist (run: agentready attribute ensure)", id)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), def)
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "name:        %s\n", def.Name)
			_, _ = fmt.Fprintf(w, "display:     %s\n", def.DisplayName)
			_, _ = fmt.Fprintf(w, "scope:       %s\n", def.Scope)
			_, _ = fmt.Fprintf(w, "cardinality: %d\n", def.Cardinality)
			_, _ = fmt.Fprintln(w, "values:")
			for _, v := range def.AllowedValues {
				_, _ = fmt.Fprintf(w, "  - %s (%s)\n", v.ID, v.DisplayName)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newAttributeAssignCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <api> <version> <level>",
		Short: "Set the readiness level of a version, replacing any previous value",
		Args:  exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := readiness.ParseLevel(args[2])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "", err)
			}
			def := definition(o.cfg.Attribute)
			if !def.Allows(level.ID()) {
				return clierr.Newf(clierr.CodeUsage, "attribute %s does not allow %s", def.ID, level.ID())
			}

			client, err := o.registryClient()
			if err != nil {
				return err
			}
			ref := registry.VersionRef{APIID: args[0], VersionID: args[1]}
			if err := client.Assign(cmd.Context(), ref, def.ID, level.ID()); err != nil {
				return exitError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s=%s\n", ref, def.ID, level.ID())
			return nil
		},
	}
}

func newAttributeShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <api> <version>",
		Short: "Read back the readiness level recorded on a version",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.registryClient()
			if err != nil {
				return err
			}
			ref := registry.VersionRef{APIID: args[0], VersionID: args[1]}
			ids, err := client.ReadAssignment(cmd.Context(), ref, o.cfg.Attribute.ID)
			if err != nil {
				return exitError(err)
			}
			if len(ids) == 0 {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s not set\n", ref, o.cfg.Attribute.ID)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s=%s\n", ref, o.cfg.Attribute.ID, strings.Join(ids, ","))
			return nil
		},
	}
}
