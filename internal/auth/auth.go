// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth provides bearer credential sources for registry calls.
// Every source satisfies oauth2.TokenSource so it plugs into oauth2.NewClient.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/bartekus/agentready/internal/config"
)

// ErrNoToken is returned when a source yields an empty credential.
var ErrNoToken = errors.New("no bearer token available")

// DefaultCommand prints a short-lived access token for the active gcloud account.
var DefaultCommand = []string{"gcloud", "auth", "print-access-token"}

const commandTimeout = 30 * time.Second

// CommandSource obtains a token by running an external command and reading
// its stdout.
type CommandSource struct {
	Command  []string
	Lifetime time.Duration

	now func() time.Time
}

// Token runs the command. Tokens are stamped with Lifetime so that a
// ReuseTokenSource refreshes them before the issuer does.
func (s *CommandSource) Token() (*oauth2.Token, error) {
	argv := s.Command
	if len(argv) == 0 {
		argv = DefaultCommand
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("token command %s: %w", argv[0], err)
		}
		return nil, fmt.Errorf("token command %s: %w: %s", argv[0], err, msg)
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return nil, fmt.Errorf("token command %s: %w", argv[0], ErrNoToken)
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	lifetime := s.Lifetime
	if lifetime <= 0 {
		lifetime = config.DefaultLifetime
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      now().Add(lifetime),
	}, nil
}

// EnvSource reads the token from an environment variable on every call.
type EnvSource struct {
	Name string
}

func (s EnvSource) Token() (*oauth2.Token, error) {
	tok := strings.TrimSpace(os.Getenv(s.Name))
	if tok == "" {
		return nil, fmt.Errorf("environment variable %s: %w", s.Name, ErrNoToken)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// NewTokenSource builds the source selected by cfg.Mode.
func NewTokenSource(cfg config.AuthConfig) (oauth2.TokenSource, error) {
	switch cfg.Mode {
	case config.AuthModeGcloud, "":
		src := &CommandSource{Command: cfg.Command, Lifetime: cfg.TokenLifetime}
		return oauth2.ReuseTokenSource(nil, src), nil
	case config.AuthModeEnv:
		name := cfg.TokenEnv
		if name == "" {
			name = config.DefaultTokenEnv
		}
		return EnvSource{Name: name}, nil
	case config.AuthModeStatic:
		if cfg.Token == "" {
			return nil, fmt.Errorf("static auth: %w", ErrNoToken)
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
