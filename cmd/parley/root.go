// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parley-dev/parley/internal/app"
	"github.com/parley-dev/parley/internal/config"
	"github.com/parley-dev/parley/internal/logging"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// cliState is shared by every command of one invocation.
type cliState struct {
	v   *viper.Viper
	cfg *config.Config
	app *app.App
	in  *bufio.Reader
}

// NewRootCmd creates the root parley command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	s := &cliState{v: viper.New()}

	root := &cobra.Command{
		Use:   "parley",
		Short: "Parley: chat with an LLM assistant from the terminal",
		Long: "Parley keeps your conversations with an LLM assistant on a Parley backend.\n" +
			"Log in, then chat from the command line or the full-screen `parley tui`.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.initViper(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			s.close()
		},
	}

	// Global flags. initViper maps them onto config keys.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("server", "", "backend base URL (overrides client.base_url)")

	root.AddCommand(
		newLoginCmd(s),
		newRegisterCmd(s),
		newLogoutCmd(s),
		newWhoamiCmd(s),
		newProfileCmd(s),
		newConversationsCmd(s),
		newSendCmd(s),
		newSearchCmd(s),
		newTUICmd(s),
		newServeCmd(s),
		newDoctorCmd(s),
		newSecretCmd(s),
		newVersionCmd(),
	)

	return root
}

// initViper layers defaults, parley.yaml, PARLEY_ variables and flags so the
// usual precedence (flag > env > file > defaults) applies, then installs the
// logger.
func (s *cliState) initViper(cmd *cobra.Command) error {
	v := s.v

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// No SetConfigType: with it Viper also tries the bare name, which
		// matches a ./parley binary.
		v.SetConfigName("parley")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/parley")
		v.AddConfigPath("/etc/parley")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path, perr := config.DefaultConfigPath(); perr == nil {
				if written := config.BootstrapConfig(path); written != "" {
					v.SetConfigFile(written)
					if err := v.ReadInConfig(); err != nil {
						return parleyerr.Errorf(parleyerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
					}
				}
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		config.WarnInsecurePermissions(used)
	}

	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("client.base_url", flags.Lookup("server")); err != nil {
		return parleyerr.Errorf(parleyerr.CodeCLISetupFailure, "binding server flag: %w", err)
	}
	if err := v.BindPFlag("verbose", flags.Lookup("verbose")); err != nil {
		return parleyerr.Errorf(parleyerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	s.cfg = cfg

	logging.Setup(cmd.ErrOrStderr(), logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return nil
}

// open builds the client app and resolves the stored session. Later calls
// return the same app.
func (s *cliState) open(ctx context.Context, opts ...app.Option) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	a, err := app.New(s.cfg, append(opts, app.WithLogger(slog.Default()))...)
	if err != nil {
		return nil, err
	}
	a.Init(ctx)
	s.app = a
	return a, nil
}

// session is open for commands that need a logged-in user.
func (s *cliState) session(ctx context.Context, opts ...app.Option) (*app.App, error) {
	a, err := s.open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if !a.Session.Authenticated() {
		return nil, parleyerr.New(parleyerr.CodeIdentityNotAuthenticated, "not logged in",
			parleyerr.FieldReason("Not logged in. Run `parley login` first."))
	}
	return a, nil
}

func (s *cliState) close() {
	if s.app != nil {
		s.app.Close()
		s.app = nil
	}
}
