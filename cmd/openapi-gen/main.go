// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parley-dev/parley/internal/provider"
	"github.com/parley-dev/parley/internal/provider/echo"
	"github.com/parley-dev/parley/internal/server"
	"github.com/parley-dev/parley/internal/store/sqlite"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec builds a throwaway server, backed by the echo provider and a
// temporary database, and returns the OpenAPI document huma derives from
// the route types. No handler runs.
func generateSpec() ([]byte, error) {
	dir, err := os.MkdirTemp("", "parley-openapi-")
	if err != nil {
		return nil, parleyerr.Errorf(parleyerr.CodeCLISetupFailure, "creating temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	st, err := sqlite.Open(filepath.Join(dir, sqlite.DBName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	llm, err := provider.Track(echo.New(), provider.DefaultHealthCooldown)
	if err != nil {
		return nil, err
	}
	tokens, err := server.NewTokenIssuer("openapi-generation-only-secret-000", time.Hour, time.Hour)
	if err != nil {
		return nil, err
	}
	svc, err := server.NewServices(st, llm, tokens, server.ChatSettings{})
	if err != nil {
		return nil, err
	}

	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
		Services:   svc,
	})
	if err != nil {
		return nil, parleyerr.Errorf(parleyerr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer srv.Close()

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
