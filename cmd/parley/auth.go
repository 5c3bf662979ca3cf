// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-dev/parley/internal/identity"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

func newLoginCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend",
		Long:  "Exchange a username and password for a session. Missing values are prompted for.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			username, err := s.flagOrPrompt(cmd, "username", "Username", false)
			if err != nil {
				return err
			}
			password, err := s.flagOrPrompt(cmd, "password", "Password", true)
			if err != nil {
				return err
			}

			user, err := a.Session.Login(cmd.Context(), identity.Credentials{Username: username, Password: password})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", user.Username)
			return err
		},
	}
	cmd.Flags().StringP("username", "u", "", "account username")
	cmd.Flags().StringP("password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			var reg identity.Registration
			if reg.Email, err = s.flagOrPrompt(cmd, "email", "Email", false); err != nil {
				return err
			}
			if reg.Username, err = s.flagOrPrompt(cmd, "username", "Username", false); err != nil {
				return err
			}
			if reg.Password, err = s.flagOrPrompt(cmd, "password", "Password", true); err != nil {
				return err
			}
			// A password given as a flag needs no confirmation.
			if pw, _ := cmd.Flags().GetString("password"); pw != "" {
				reg.Password2 = pw
			} else if reg.Password2, err = s.promptSecret(cmd, "Confirm password"); err != nil {
				return err
			}

			user, err := a.Session.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `parley login` to start a session.\n", user.Username)
			return err
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().StringP("username", "u", "", "account username")
	cmd.Flags().StringP("password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on the server and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.open(cmd.Context())
			if err != nil {
				return err
			}
			// The local session ends even when the server cannot be told.
			if a.Session.Authenticated() {
				if err := a.Session.Revoke(cmd.Context()); err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n",
						parleyerr.Reason(err, "Could not end the session on the server."))
				}
			}
			a.Session.Logout()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return err
		},
	}
}

func newWhoamiCmd(s *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := s.session(cmd.Context())
			if err != nil {
				return err
			}
			user, err := a.Session.Me(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (id %d) at %s\n",
				user.Username, user.Email, user.ID, a.Client.BaseURL())
			return err
		},
	}
}

func newProfileCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change the email or username of the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var p identity.Profile
			p.Email, _ = cmd.Flags().GetString("email")
			p.Username, _ = cmd.Flags().GetString("username")
			if p.Email == "" && p.Username == "" {
				return parleyerr.New(parleyerr.CodeCLIInputInvalid, "nothing to update",
					parleyerr.FieldReason("Give --email or --username."))
			}

			a, err := s.session(cmd.Context())
			if err != nil {
				return err
			}
			user, err := a.Session.UpdateProfile(cmd.Context(), p)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated profile: %s <%s>.\n", user.Username, user.Email)
			return err
		},
	}
	cmd.Flags().String("email", "", "new email")
	cmd.Flags().StringP("username", "u", "", "new username")
	return cmd
}
