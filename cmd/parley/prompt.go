// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// flagOrPrompt returns the named flag when set and otherwise asks for it.
func (s *cliState) flagOrPrompt(cmd *cobra.Command, flag, label string, secret bool) (string, error) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v, nil
	}
	if secret {
		return s.promptSecret(cmd, label)
	}
	return s.prompt(cmd, label)
}

func (s *cliState) prompt(cmd *cobra.Command, label string) (string, error) {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), label+": ")
	if s.in == nil {
		s.in = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := s.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (err != io.EOF || line == "") {
		return "", parleyerr.New(parleyerr.CodeCLIInputInvalid, "reading "+label,
			parleyerr.FieldReason(label+" is required."))
	}
	return line, nil
}

// promptSecret reads without echo when stdin is a terminal.
func (s *cliState) promptSecret(cmd *cobra.Command, label string) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s.prompt(cmd, label)
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), label+": ")
	b, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", parleyerr.Wrapf(err, parleyerr.CodeCLIInputInvalid, "reading %s", label)
	}
	return string(b), nil
}
