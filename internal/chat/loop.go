package chat

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/termwave/termwave/internal/provider"
	"github.com/termwave/termwave/internal/session"
	"github.com/termwave/termwave/internal/tui"
)

// ProviderConfig supplies settings for a provider by name and persists the
// user's provider choices. *config.Config implements it.
type ProviderConfig interface {
	ProviderSettings(name string) provider.Settings
	SaveProvider(name string, options map[string]any) error
}

type startMode int

const (
	startRecent startMode = iota
	startNew
	startAt
)

// Loop reads input from a tui.IO and dispatches it to slash commands or
// Controller.Submit.
type Loop struct {
	ctrl   *Controller
	io     tui.IO
	cfg    ProviderConfig
	logger *zap.Logger

	mode    startMode
	startID session.ID
}

// NewLoop creates a loop. cfg may be nil, in which case provider switches
// use empty settings and nothing is persisted.
func NewLoop(ctrl *Controller, uio tui.IO, cfg ProviderConfig, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{ctrl: ctrl, io: uio, cfg: cfg, logger: logger}
}

// StartNew makes Run begin in a fresh chat instead of the most recent one.
func (l *Loop) StartNew() *Loop {
	l.mode = startNew
	return l
}

// StartAt makes Run begin in chat id.
func (l *Loop) StartAt(id session.ID) *Loop {
	l.mode = startAt
	l.startID = id
	return l
}

// Run starts the controller, shows the current transcript and processes
// input until EOF, /quit or ctx is done. Storage faults during startup are
// returned; later faults are reported through IO.Error.
func (l *Loop) Run(ctx context.Context) error {
	tr, err := l.start(ctx)
	if err != nil {
		return err
	}
	l.showTranscript(tr)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		input, err := l.io.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}

		// Slash commands are intercepted before reaching the provider.
		if strings.HasPrefix(trimmed, "/") {
			if quit := l.handleSlashCommand(ctx, trimmed); quit {
				return nil
			}
			continue
		}
		// Chat text is stored exactly as typed.
		l.submit(ctx, input)
	}
}

func (l *Loop) start(ctx context.Context) (Transcript, error) {
	switch l.mode {
	case startNew:
		return l.ctrl.NewSession(ctx)
	case startAt:
		return l.ctrl.LoadSession(ctx, l.startID)
	default:
		return l.ctrl.Start(ctx)
	}
}

func (l *Loop) submit(ctx context.Context, text string) {
	l.io.UserMessage(text)
	l.io.ThinkingStart()

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if lc, ok := l.io.(tui.LoopCanceller); ok {
		lc.SetLoopCancel(cancel)
		defer lc.ClearLoopCancel()
	}

	reply, err := l.ctrl.Submit(turnCtx, text)
	switch {
	case err == nil:
		l.io.AssistantMessage(reply)
		l.refreshStatus(ctx)
	case errors.Is(err, context.Canceled):
		l.io.SystemMessage("Response cancelled.")
		l.refreshStatus(ctx)
	case errors.Is(err, ErrNoSession):
		l.io.Error("No active chat. Use /new to start one.")
	default:
		l.logger.Error("submit failed", zap.Error(err))
		l.io.Error(err.Error())
	}
}

// showTranscript clears the view and replays a transcript into it.
func (l *Loop) showTranscript(tr Transcript) {
	l.io.SessionStart(tr.Chat.Title)
	for _, m := range tr.Messages {
		switch m.Role {
		case session.RoleUser:
			l.io.UserMessage(m.Content)
		case session.RoleAssistant:
			l.io.AssistantMessage(m.Content)
		}
	}
	l.setStatus(tr.Chat.Title)
}

// refreshStatus re-reads the current chat so auto-titles show up.
func (l *Loop) refreshStatus(ctx context.Context) {
	tr, err := l.ctrl.Transcript(ctx)
	if err != nil {
		l.logger.Warn("refresh status", zap.Error(err))
		return
	}
	l.setStatus(tr.Chat.Title)
}

func (l *Loop) setStatus(title string) {
	p := l.ctrl.Provider()
	l.io.SetStatus(tui.Status{
		Provider: p.DisplayName(),
		Model:    ModelName(p),
		Session:  title,
	})
}

// ModelName returns the provider's "model" option, if it has one.
func ModelName(p provider.Provider) string {
	if m, ok := p.Options()["model"].(string); ok {
		return m
	}
	return ""
}
