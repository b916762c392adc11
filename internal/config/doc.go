// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads agentready settings.
//
// Sources are applied in order: built-in defaults, the YAML file
// (.agentready.yaml), then AGENTREADY_* environment variables. Command-line
// flags are applied last by the caller.
//
// Top-level types:
//   - Config: project, location, endpoint, timeout, auth, lint, attribute, state_dir
//   - AuthConfig: mode (gcloud|env|static), token_env, command, token_lifetime
//   - LintConfig: binary, ruleset
//   - AttributeConfig: id, display_name, description, scope, values
//
// Registry operations require project and location; ValidateRegistry checks
// them separately so offline commands (classify, scan) work without them.
package config
