// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/parley-dev/parley/internal/secrets"
	"github.com/parley-dev/parley/pkg/health"
)

func newDoctorCmd(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the configuration, backend reachability, the stored session and disk space.",
		Args:  cobra.NoArgs,
		RunE:  s.runDoctor,
	}
}

func (s *cliState) runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	ctx := cmd.Context()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Config", s.checkConfig},
		{"Backend", func() string { return s.checkBackend(ctx) }},
		{"Session", func() string { return s.checkSession(ctx) }},
		{"LLM API key", s.checkAPIKey},
		{"Disk Space", func() string { return checkDiskSpace(s.cfg.Server.DataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}
	return nil
}

func checkBinary() string {
	return fmt.Sprintf("parley %s (%s/%s, %s)", version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func (s *cliState) checkConfig() string {
	if used := s.v.ConfigFileUsed(); used != "" {
		return fmt.Sprintf("loaded from %s", used)
	}
	return "using defaults (no config file found)"
}

func (s *cliState) checkBackend(ctx context.Context) string {
	a, err := s.open(ctx)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var report health.Report
	if err := a.Client.Get(ctx, "/health", &report); err != nil {
		return fmt.Sprintf("unreachable at %s (%s)", a.Client.BaseURL(), err)
	}
	return fmt.Sprintf("%s at %s (database %s, provider %s)",
		report.Status, a.Client.BaseURL(), report.Database, report.Provider)
}

func (s *cliState) checkSession(ctx context.Context) string {
	a, err := s.open(ctx)
	if err != nil {
		return fmt.Sprintf("error: %s", err)
	}
	if !a.Session.Authenticated() {
		return "not logged in (run 'parley login')"
	}
	return fmt.Sprintf("logged in as %s (tokens in %s store)", a.Session.User().Username, s.cfg.Auth.TokenStore)
}

func (s *cliState) checkAPIKey() string {
	key := s.cfg.LLM.APIKey
	switch {
	case s.cfg.LLM.Provider == "echo":
		return "not needed for the echo provider"
	case key == "":
		return fmt.Sprintf("missing for %s (set llm.api_key)", s.cfg.LLM.Provider)
	case secrets.IsKeyringURI(key):
		if _, err := secrets.Resolve(key); err != nil {
			return fmt.Sprintf("%s cannot be read: %s", key, err)
		}
		return fmt.Sprintf("found in keyring (%s)", key)
	default:
		return "set in plain text (consider 'parley secret set')"
	}
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); err != nil {
		// The data directory is created on first serve.
		path = "."
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
