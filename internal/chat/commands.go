package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/termwave/termwave/internal/provider"
	"github.com/termwave/termwave/internal/session"
	"github.com/termwave/termwave/internal/tui"
)

// commandHelp is shown by /help, in display order.
var commandHelp = []struct{ usage, desc string }{
	{"/new", "Start a new chat session"},
	{"/provider [name|key=value]", "Show, switch or configure the chat provider"},
	{"/providers", "List available providers"},
	{"/models", "List models of the current provider"},
	{"/sessions", "List saved chats"},
	{"/load <id>", "Open a saved chat"},
	{"/delete <id>", "Delete a chat"},
	{"/history", "Show the current transcript again"},
	{"/help", "Show available commands"},
	{"/quit", "Exit the application (also /exit, /q)"},
}

// handleSlashCommand processes built-in commands. Returns true when the
// loop should exit.
func (l *Loop) handleSlashCommand(ctx context.Context, input string) bool {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		l.io.SystemMessage("Bye.")
		return true
	case "/help":
		l.showHelp()
	case "/new":
		l.handleNew(ctx)
	case "/provider":
		l.handleProvider(ctx, arg)
	case "/providers":
		l.handleProviders()
	case "/models":
		l.handleModels()
	case "/sessions":
		l.handleSessions(ctx)
	case "/load":
		l.handleLoad(ctx, arg)
	case "/delete":
		l.handleDelete(ctx, arg)
	case "/history":
		l.handleHistory(ctx)
	default:
		l.io.SystemMessage(fmt.Sprintf("Unknown command: `%s`\nType `/help` to see available commands.", input))
	}
	return false
}

func (l *Loop) showHelp() {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, c := range commandHelp {
		fmt.Fprintf(&sb, "  %-28s %s\n", c.usage, c.desc)
	}
	l.io.SystemMessage(strings.TrimRight(sb.String(), "\n"))
}

func (l *Loop) handleNew(ctx context.Context) {
	tr, err := l.ctrl.NewSession(ctx)
	if err != nil {
		l.io.Error("Failed to create chat: " + err.Error())
		return
	}
	l.showTranscript(tr)
}

func (l *Loop) handleProvider(ctx context.Context, arg string) {
	if arg == "" {
		l.showProvider()
		return
	}
	if key, value, ok := strings.Cut(arg, "="); ok {
		l.setProviderOption(ctx, strings.TrimSpace(key), parseOptionValue(strings.TrimSpace(value)))
		return
	}

	name := strings.ToLower(arg)
	if !l.ctrl.Providers().Has(name) {
		l.io.Error(fmt.Sprintf("Invalid provider name. Available providers: %s.", quoteNames(l.ctrl.Providers().Names())))
		return
	}
	if err := l.ctrl.SwitchProvider(name, l.settings(name)); err != nil {
		l.io.Error("Error switching provider: " + err.Error())
		return
	}
	l.persist(name, nil)
	l.io.SystemMessage(fmt.Sprintf("Switched to the %s provider.", l.ctrl.Provider().DisplayName()))
	l.refreshStatus(ctx)
}

func (l *Loop) showProvider() {
	p := l.ctrl.Provider()
	opts := p.Options()
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current provider: %s (%s)\n", p.DisplayName(), p.Name())
	sb.WriteString("Provider options:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, opts[k])
	}
	sb.WriteString("Use /provider [name] to switch providers or /provider option=value to set options.")
	l.io.SystemMessage(sb.String())
}

func (l *Loop) setProviderOption(ctx context.Context, key string, value any) {
	p := l.ctrl.Provider()
	current, known := p.Options()[key]
	if !known {
		l.io.Error(fmt.Sprintf("Unknown option: `%s`.", key))
		return
	}
	if !l.ctrl.SetOption(key, value) {
		l.io.Error(fmt.Sprintf("Invalid value for `%s`: %v (current: %v).", key, value, current))
		return
	}
	// Persist the coerced value, not the raw input.
	stored := p.Options()[key]
	l.persist(p.Name(), map[string]any{key: stored})
	l.io.SystemMessage(fmt.Sprintf("Option `%s` set to `%v`.", key, stored))
	l.refreshStatus(ctx)
}

func (l *Loop) handleProviders() {
	current := l.ctrl.Provider().Name()
	var sb strings.Builder
	sb.WriteString("Available providers:\n")
	for _, name := range l.ctrl.Providers().Names() {
		marker := "  "
		if name == current {
			marker = "* "
		}
		sb.WriteString(marker + name + "\n")
	}
	sb.WriteString("Use /provider <name> to switch.")
	l.io.SystemMessage(sb.String())
}

func (l *Loop) handleModels() {
	p := l.ctrl.Provider()
	models := p.Models()
	if len(models) == 0 {
		l.io.SystemMessage(fmt.Sprintf("%s does not list models.", p.DisplayName()))
		return
	}
	current := ModelName(p)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Models for %s:\n", p.DisplayName())
	for _, m := range models {
		marker := "  "
		if m == current {
			marker = "* "
		}
		sb.WriteString(marker + m + "\n")
	}
	if _, ok := p.Options()["model"]; ok {
		sb.WriteString("Use /provider model=<name> to switch.")
	}
	l.io.SystemMessage(strings.TrimRight(sb.String(), "\n"))
}

func (l *Loop) handleSessions(ctx context.Context) {
	chats, err := l.ctrl.Sessions(ctx)
	if err != nil {
		l.io.Error("Failed to list chats: " + err.Error())
		return
	}
	if len(chats) == 0 {
		l.io.SystemMessage("No saved chats.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Saved chats (%d):\n", len(chats))
	for i, c := range chats {
		if i >= 20 {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(chats)-20)
			break
		}
		marker := " "
		if c.ID == l.ctrl.Current() {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %4d  %s  %s\n", marker, c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), tui.DisplayTitle(c.Title))
	}
	sb.WriteString("Use /load <id> to open a chat.")
	l.io.SystemMessage(sb.String())
}

func (l *Loop) handleLoad(ctx context.Context, arg string) {
	id, ok := l.parseID("/load", arg)
	if !ok {
		return
	}
	tr, err := l.ctrl.LoadSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.io.Error(fmt.Sprintf("No chat with id %d.", id))
			return
		}
		l.io.Error("Failed to load chat: " + err.Error())
		return
	}
	l.showTranscript(tr)
}

func (l *Loop) handleDelete(ctx context.Context, arg string) {
	id, ok := l.parseID("/delete", arg)
	if !ok {
		return
	}
	replaced, tr, err := l.ctrl.DeleteSession(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.io.Error(fmt.Sprintf("No chat with id %d.", id))
			return
		}
		l.io.Error("Failed to delete chat: " + err.Error())
		return
	}
	if replaced {
		l.showTranscript(tr)
	}
	l.io.SystemMessage(fmt.Sprintf("Deleted chat %d.", id))
}

func (l *Loop) handleHistory(ctx context.Context) {
	tr, err := l.ctrl.Transcript(ctx)
	if err != nil {
		l.io.Error("Failed to load transcript: " + err.Error())
		return
	}
	l.showTranscript(tr)
}

func (l *Loop) parseID(cmd, arg string) (session.ID, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if arg == "" || err != nil || id <= 0 {
		l.io.SystemMessage(fmt.Sprintf("Usage: %s <id> (see /sessions)", cmd))
		return session.NoChat, false
	}
	return session.ID(id), true
}

func (l *Loop) settings(name string) provider.Settings {
	if l.cfg == nil {
		return provider.Settings{}
	}
	return l.cfg.ProviderSettings(name)
}

// persist saves the provider choice; failures are reported but do not undo
// the in-memory change.
func (l *Loop) persist(name string, options map[string]any) {
	if l.cfg == nil {
		return
	}
	if err := l.cfg.SaveProvider(name, options); err != nil {
		l.logger.Warn("save provider config", zap.String("provider", name), zap.Error(err))
		l.io.Error("Could not save configuration: " + err.Error())
	}
}

// parseOptionValue converts a /provider key=value value to int, float or
// bool when it parses as one, else keeps the string.
func parseOptionValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func quoteNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}
