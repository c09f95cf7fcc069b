package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/termwave/termwave/internal/chat"
	"github.com/termwave/termwave/internal/session"
	"github.com/termwave/termwave/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		prompt    string
		sessionID int64
		cont      bool
		format    string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a single prompt non-interactively",
		Example: `  termwave run -P "tell me a joke"
  echo "summarize this" | termwave run --provider openai
  termwave run -P "and then?" --session 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				prompt = strings.TrimRight(string(data), "\r\n")
			}
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("--prompt / -P is required")
			}
			if format != "text" && format != "jsonl" {
				return fmt.Errorf("unknown --format %q (text or jsonl)", format)
			}
			ui := tui.NewPipeIOWith(cmd.OutOrStdout(), cmd.ErrOrStderr(), format, verbose, prompt)
			return runOnce(cmd.Context(), ui, session.ID(sessionID), cont)
		},
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "P", "", "the prompt to send (default: read stdin)")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "append to the chat with this id")
	cmd.Flags().BoolVar(&cont, "continue", false, "append to the most recent chat")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or jsonl")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print notices on stderr")
	cmd.MarkFlagsMutuallyExclusive("session", "continue")

	return cmd
}

// runOnce sends one prompt through the chat loop and exits.
func runOnce(parent context.Context, ui *tui.PipeIO, id session.ID, cont bool) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ctrl, err := a.controller()
	if err != nil {
		return err
	}

	loop := chat.NewLoop(ctrl, ui, a.cfg, a.logger)
	switch {
	case id != session.NoChat:
		loop.StartAt(id)
	case !cont:
		loop.StartNew()
	}
	if err := loop.Run(ctx); err != nil {
		return err
	}
	if ui.Failed() {
		return fmt.Errorf("run failed")
	}
	return nil
}
