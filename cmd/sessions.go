package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/termwave/termwave/internal/session"
	"github.com/termwave/termwave/internal/tui"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"chats"},
		Short:   "List, show or delete saved chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *session.SQLiteStore) error {
				return listSessions(ctx, s, cmd.OutOrStdout())
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s *session.SQLiteStore) error {
				return listSessions(ctx, s, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a chat transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s *session.SQLiteStore) error {
				return showSession(ctx, s, id, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chat and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseChatID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s *session.SQLiteStore) error {
				return deleteSession(ctx, s, id, cmd.OutOrStdout())
			})
		},
	})
	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, *session.SQLiteStore) error) error {
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a.store)
}

func parseChatID(s string) (session.ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return session.NoChat, fmt.Errorf("invalid chat id %q", s)
	}
	return session.ID(n), nil
}

func listSessions(ctx context.Context, s session.Store, w io.Writer) error {
	chats, err := s.ListChats(ctx)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(w, "No saved chats.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMESSAGES\tTITLE")
	for _, c := range chats {
		n, err := s.CountMessages(ctx, c.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), n, tui.DisplayTitle(c.Title))
	}
	return tw.Flush()
}

func showSession(ctx context.Context, s session.Store, id session.ID, w io.Writer) error {
	chat, err := s.GetChat(ctx, id)
	if err != nil {
		return err
	}
	msgs, err := s.GetMessages(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "# %s\n", chat.Title)
	for _, m := range msgs {
		label := "You"
		if m.Role == session.RoleAssistant {
			label = "AI"
		}
		fmt.Fprintf(w, "\n[%s] %s:\n%s\n", m.Timestamp.Local().Format("15:04:05"), label, m.Content)
	}
	return nil
}

func deleteSession(ctx context.Context, s session.Store, id session.ID, w io.Writer) error {
	if _, err := s.GetChat(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("no chat with id %d", id)
		}
		return err
	}
	if err := s.DeleteChat(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted chat %d.\n", id)
	return nil
}
