// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Agentready - governance tooling that scores OpenAPI documents for consumption by AI agents
and records the resulting readiness level against versioned resources in an API registry.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/agentready/cmd/agentready/internal/clierr"
	"github.com/bartekus/agentready/internal/config"
	"github.com/bartekus/agentready/internal/projectroot"
)

// rootOptions holds global flags and the state resolved from them before
// any subcommand runs.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	project    string
	location   string
	endpoint   string
	stateDir   string

	root string
	cfg  *config.Config
}

// NewRootCmd constructs the agentready root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("AGENTREADY_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "agentready",
		Short: "Score OpenAPI documents for AI agents and record the result in the API registry",
		Long: `agentready lints an OpenAPI document with Spectral, classifies the findings
into a readiness level (low, medium, high) and records that level as an
attribute on the matching API version in the registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "", err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default <project root>/"+config.DefaultFile+")")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&opts.project, "project", "", "registry project")
	pf.StringVar(&opts.location, "location", "", "registry location")
	pf.StringVar(&opts.endpoint, "endpoint", "", "registry endpoint URL")
	pf.StringVar(&opts.stateDir, "state-dir", "", "directory for run records")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of agentready",
		// Printing the version never needs configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "agentready version %s\n", version)
		},
	})

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newAttributeCmd(opts))
	cmd.AddCommand(newReportCmd(opts))
	cmd.AddCommand(newRulesetCmd(opts))

	return cmd
}

// init resolves the project root, loads configuration, applies flag
// overrides and installs the logger.
func (o *rootOptions) init(cmd *cobra.Command) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	o.root = projectroot.FindOr(wd, wd)

	path, optional := o.configPath, false
	if path == "" {
		path, optional = filepath.Join(o.root, config.DefaultFile), true
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "", err)
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Project, o.project)
	override(&cfg.Location, o.location)
	override(&cfg.Endpoint, strings.TrimRight(o.endpoint, "/"))
	override(&cfg.StateDir, o.stateDir)
	override(&cfg.LogLevel, o.logLevel)
	override(&cfg.LogFormat, o.logFormat)

	if err := cfg.Validate(); err != nil {
		return clierr.Wrap(clierr.CodeUsage, "", err)
	}
	if !filepath.IsAbs(cfg.StateDir) {
		cfg.StateDir = filepath.Join(o.root, cfg.StateDir)
	}
	o.cfg = cfg

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), cfg.LogFormat))
	slog.Debug("agentready: configured",
		"root", o.root,
		"config", path,
		"project", cfg.Project,
		"location", cfg.Location,
		"endpoint", cfg.Endpoint,
	)
	return nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// exactArgs is cobra.ExactArgs reporting a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return clierr.Wrap(clierr.CodeUsage, "", err)
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return clierr.Wrap(clierr.CodeUsage, "", err)
		}
		return nil
	}
}
