package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/ashureev/analystai/internal/domain"
	"github.com/ashureev/analystai/internal/flows"
	"github.com/ashureev/analystai/internal/generation"
	"github.com/ashureev/analystai/internal/history"
	"github.com/ashureev/analystai/internal/publish"
	"github.com/ashureev/analystai/internal/store"
)

func (a *app) openArchive() (*history.Archive, func(), error) {
	repo, err := store.NewSQLite(a.cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeFn := func() {
		if err := repo.Close(); err != nil {
			a.logger.Warn("Failed to close database", "error", err)
		}
	}
	return history.NewArchive(repo, a.logger), closeFn, nil
}

func conversationsCmd(a *app) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List and show saved conversations",
	}
	cmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Owner user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List a user's conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, closeFn, err := a.openArchive()
			if err != nil {
				return err
			}
			defer closeFn()

			summaries, err := archive.Summaries(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return writeSummaries(cmd.OutOrStdout(), summaries)
		},
	})

	var raw bool
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a conversation transcript and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, closeFn, err := a.openArchive()
			if err != nil {
				return err
			}
			defer closeFn()

			conv, err := archive.Load(cmd.Context(), userID, args[0])
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("conversation %s not found for user %s", args[0], userID)
			}
			if err != nil {
				return err
			}
			return printMarkdown(cmd.OutOrStdout(), conversationMarkdown(conv), raw)
		},
	}
	show.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")
	cmd.AddCommand(show)

	return cmd
}

func publishCmd(a *app) *cobra.Command {
	var (
		userID string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a finalized conversation's documents to Confluence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := publish.NewConfluenceClient(publish.Config{
				BaseURL:      a.cfg.Confluence.BaseURL,
				SpaceKey:     a.cfg.Confluence.SpaceKey,
				ParentPageID: a.cfg.Confluence.ParentPageID,
				Email:        a.cfg.Confluence.Email,
				APIToken:     a.cfg.Confluence.APIToken,
			}, a.logger)
			if err != nil {
				return err
			}

			archive, closeFn, err := a.openArchive()
			if err != nil {
				return err
			}
			defer closeFn()

			conv, err := archive.Load(cmd.Context(), userID, args[0])
			if err != nil {
				return err
			}
			if conv.Documents == nil {
				return fmt.Errorf("conversation %s has no generated documents", conv.ID)
			}
			if title == "" {
				title = conv.Title
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			res, err := client.Publish(ctx, conv.Documents, title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %q: %s\n", res.Action, res.Title, res.URL)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id (required)")
	cmd.Flags().StringVar(&title, "title", "", "Page title (default: conversation title)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func suggestCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "suggest [performance data]",
		Short: "Suggest process improvements for performance data (reads stdin when no args)",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := strings.Join(args, " ")
			if data == "" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				data = string(b)
			}

			backend, closeBackend, err := generation.NewBackend(a.cfg.Generation, a.logger)
			if err != nil {
				return err
			}
			defer closeBackend()

			gateway := generation.NewGateway(backend,
				generation.WithLogger(a.logger),
				generation.WithTimeout(a.cfg.Generation.Timeout),
			)
			suggestions, err := flows.New(gateway).SuggestImprovements(cmd.Context(), data)
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return errors.New(verr.Message)
			}
			if err != nil {
				return err
			}
			return printMarkdown(cmd.OutOrStdout(), suggestions, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown without terminal rendering")
	return cmd
}

func writeSummaries(w io.Writer, summaries []domain.ConversationSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tFINALIZED\tTITLE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.StartTime.Local().Format("2006-01-02 15:04"), s.IsFinalized, s.Title)
	}
	return tw.Flush()
}

// conversationMarkdown renders the transcript followed by the generated documents.
func conversationMarkdown(conv *domain.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + conv.Title + "\n\n")
	sb.WriteString("_Started " + conv.StartTime.Local().Format("2006-01-02 15:04") + "_\n\n")
	sb.WriteString("## Transcript\n\n")
	for _, m := range conv.Messages {
		speaker := "AnalystAI"
		if m.Role == domain.RoleUser {
			speaker = "User"
		}
		sb.WriteString("**" + speaker + ":** " + m.Content + "\n\n")
	}
	if conv.Documents != nil {
		sb.WriteString(publish.Markdown(conv.Documents, ""))
	}
	return sb.String()
}

// printMarkdown renders md for the terminal when stdout is a TTY and raw is false.
func printMarkdown(w io.Writer, md string, raw bool) error {
	if raw || !isTerminal(w) {
		_, err := io.WriteString(w, md)
		return err
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		_, err = io.WriteString(w, md)
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		out = md
	}
	_, err = io.WriteString(w, out)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
