// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference backend",
		Long:  "Open the SQLite store and the configured LLM provider, then serve the Parley API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				s.cfg.Server.Listen = listen
			}

			b, err := WireBackend(s.cfg, version)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving the Parley API on %s (provider %s)\n",
				s.cfg.Server.Listen, b.LLM.Name())
			return b.Server.Start(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "override listen address (host:port)")
	return cmd
}
