// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/parley-dev/parley/internal/chat"
	"github.com/parley-dev/parley/internal/render"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const timeLayout = "2006-01-02 15:04"

func newConversationsCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recently active first",
			Args:  cobra.NoArgs,
			RunE:  s.runConversationsList,
		},
		&cobra.Command{
			Use:   "new",
			Short: "Start an empty conversation",
			Args:  cobra.NoArgs,
			RunE:  s.runConversationsNew,
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a conversation with its messages",
			Args:  cobra.ExactArgs(1),
			RunE:  s.runConversationsShow,
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a conversation and its messages",
			Args:  cobra.ExactArgs(1),
			RunE:  s.runConversationsDelete,
		},
		&cobra.Command{
			Use:   "archive <id>",
			Short: "Hide a conversation from the list",
			Args:  cobra.ExactArgs(1),
			RunE:  s.runConversationsArchive,
		},
		&cobra.Command{
			Use:   "summarize <id>",
			Short: "Regenerate the summary of a conversation",
			Args:  cobra.ExactArgs(1),
			RunE:  s.runConversationsSummarize,
		},
		newSuggestCmd(s),
	)
	return cmd
}

func newSuggestCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest [id]",
		Short: "Suggest what to say next",
		Long:  "Ask for follow-up messages based on a conversation, on --context, or on both.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  s.runConversationsSuggest,
	}
	cmd.Flags().String("context", "", "extra text to base the suggestions on")
	return cmd
}

func (s *cliState) runConversationsList(cmd *cobra.Command, _ []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	convs, err := a.Store.ListConversations(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(convs) == 0 {
		_, _ = fmt.Fprintln(out, "No conversations.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED\tLAST MESSAGE")
	for _, c := range convs {
		last := ""
		if c.LastMessage != nil {
			last = render.Truncate(c.LastMessage.Content, 40)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			c.ID, c.Title, c.MessageCount, c.UpdatedAt.Local().Format(timeLayout), last)
	}
	return tw.Flush()
}

func (s *cliState) runConversationsNew(cmd *cobra.Command, _ []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	conv, err := a.Store.CreateConversation(cmd.Context())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created conversation %s (%s).\n", conv.ID, conv.Title)
	return err
}

func (s *cliState) runConversationsShow(cmd *cobra.Command, args []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.Store.SetActiveConversationID(cmd.Context(), chat.ID(args[0])); err != nil {
		return err
	}
	conv := a.Store.Active()
	if conv == nil {
		return noConversation(args[0])
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s (id %s)\n", conv.Title, conv.ID)
	if conv.Summary != "" {
		_, _ = fmt.Fprintf(out, "Summary: %s\n", conv.Summary)
	}
	_, err = fmt.Fprintf(out, "\n%s\n", renderer(cmd).Transcript(conv.Messages))
	return err
}

func (s *cliState) runConversationsDelete(cmd *cobra.Command, args []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.Store.DeleteConversation(cmd.Context(), chat.ID(args[0])); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation %s.\n", args[0])
	return err
}

func (s *cliState) runConversationsArchive(cmd *cobra.Command, args []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.Store.ArchiveConversation(cmd.Context(), chat.ID(args[0])); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Archived conversation %s.\n", args[0])
	return err
}

func (s *cliState) runConversationsSummarize(cmd *cobra.Command, args []string) error {
	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := a.Store.Summarize(cmd.Context(), chat.ID(args[0]))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
	return err
}

func (s *cliState) runConversationsSuggest(cmd *cobra.Command, args []string) error {
	var id chat.ID
	if len(args) == 1 {
		id = chat.ID(args[0])
	}
	extra, _ := cmd.Flags().GetString("context")

	a, err := s.session(cmd.Context())
	if err != nil {
		return err
	}
	suggestions, err := a.Store.Suggestions(cmd.Context(), id, extra)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(suggestions) == 0 {
		_, err = fmt.Fprintln(out, "No suggestions.")
		return err
	}
	for i, text := range suggestions {
		_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, text)
	}
	return nil
}

func newSendCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message and print the reply",
		Long:  "Send a message to a conversation. Without --conversation a new conversation is started.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.session(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			content := strings.Join(args, " ")
			if strings.TrimSpace(content) == "" {
				return parleyerr.New(parleyerr.CodeCLIInputInvalid, "empty message",
					parleyerr.FieldReason("Message must not be empty."))
			}

			id, _ := cmd.Flags().GetString("conversation")
			if id == "" {
				conv, err := a.Store.CreateConversation(ctx)
				if err != nil {
					return err
				}
				id = string(conv.ID)
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Started conversation %s.\n", id)
			}
			if err := a.Store.SetActiveConversationID(ctx, chat.ID(id)); err != nil {
				return err
			}

			reply, err := a.Store.SendMessage(ctx, content)
			if err != nil {
				return err
			}
			if reply == nil {
				return parleyerr.New(parleyerr.CodeCLIRequestFailure, "no reply",
					parleyerr.FieldReason("No reply received."))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderer(cmd).Markdown(reply.Content))
			return err
		},
	}
	cmd.Flags().String("conversation", "", "conversation id")
	return cmd
}

func newSearchCmd(s *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the messages of a conversation, or of all of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if strings.TrimSpace(query) == "" {
				return parleyerr.New(parleyerr.CodeCLIInputInvalid, "empty query",
					parleyerr.FieldReason("Query must not be empty."))
			}

			all, _ := cmd.Flags().GetBool("all")
			id, _ := cmd.Flags().GetString("conversation")
			if id == "" && !all {
				return parleyerr.New(parleyerr.CodeCLIInputInvalid, "missing conversation",
					parleyerr.FieldReason("--conversation or --all is required."))
			}
			a, err := s.session(cmd.Context())
			if err != nil {
				return err
			}

			var results []chat.SearchResult
			if all {
				results, err = a.Store.SearchAll(cmd.Context(), query)
			} else {
				if err := a.Store.SetActiveConversationID(cmd.Context(), chat.ID(id)); err != nil {
					return err
				}
				results, err = a.Search.Run(cmd.Context(), query)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderer(cmd).SearchResults(results))
			return err
		},
	}
	cmd.Flags().String("conversation", "", "conversation id")
	cmd.Flags().Bool("all", false, "search every active conversation")
	cmd.MarkFlagsMutuallyExclusive("conversation", "all")
	return cmd
}

// renderer wraps output to the terminal width, or 80 columns when stdout is
// not a terminal.
func renderer(cmd *cobra.Command) *render.Renderer {
	width := 80
	style := render.StyleNoTTY
	if f, ok := cmd.OutOrStdout().(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		style = render.StyleAuto
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = w
		}
	}
	return render.New(style, width)
}

func noConversation(id string) error {
	return parleyerr.New(parleyerr.CodeChatFetchFailure, "conversation not loaded",
		parleyerr.FieldConversationID(id), parleyerr.FieldReason("Conversation not found."))
}
