// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/secrets"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// secretStoreFactory opens the keyring for service. It is a package-level
// variable so tests can substitute an in-memory store.
var secretStoreFactory = func(service string) (secrets.Store, error) {
	return secrets.NewKeyringStore(service)
}

func newSecretCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store values such as the LLM API key in the OS keyring. Reference them from\n" +
			"parley.yaml as keyring://<service>/<name>.",
	}
	set := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (the value is prompted for)",
		Args:  cobra.ExactArgs(1),
		RunE:  s.runSecretSet,
	}
	set.Flags().String("value", "", "secret value (prompted when omitted)")
	cmd.AddCommand(
		set,
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a secret by name",
			Args:  cobra.ExactArgs(1),
			RunE:  s.runSecretDelete,
		},
	)
	return cmd
}

func (s *cliState) runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, err := s.flagOrPrompt(cmd, "value", "Value for "+name, true)
	if err != nil {
		return err
	}
	if value == "" {
		return parleyerr.New(parleyerr.CodeCLIInputInvalid, "empty secret", parleyerr.FieldReason("Secret must not be empty."))
	}

	store, err := secretStoreFactory(s.cfg.Auth.Service)
	if err != nil {
		return err
	}
	if err := store.Set(name, value); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretStoreFailure, "storing secret %q", name)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s. Reference it as keyring://%s/%s\n", name, s.cfg.Auth.Service, name)
	return err
}

func (s *cliState) runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	store, err := secretStoreFactory(s.cfg.Auth.Service)
	if err != nil {
		return err
	}
	if err := store.Delete(name); err != nil {
		return parleyerr.Wrapf(err, parleyerr.CodeSecretDeleteFailure, "deleting secret %q", name)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return err
}
