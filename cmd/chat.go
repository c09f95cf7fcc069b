package cmd

import (
	"context"

	"github.com/termwave/termwave/internal/chat"
	"github.com/termwave/termwave/internal/tui"
)

// runChat starts the interactive chat mode.
func runChat(parent context.Context) error {
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

	if useTUI {
		p := ctrl.Provider()
		tuiCfg := tui.TUIConfig{
			Version:     displayVersion(),
			Theme:       a.cfg.UI.Theme,
			Status:      tui.Status{Provider: p.DisplayName(), Model: chat.ModelName(p)},
			ShowWelcome: true,
		}
		return tui.RunTUI(tuiCfg, func(ui tui.IO) error {
			return chat.NewLoop(ctrl, ui, a.cfg, a.logger).Run(ctx)
		})
	}

	// Plain IO mode
	return chat.NewLoop(ctrl, tui.NewPlainIO(), a.cfg, a.logger).Run(ctx)
}
