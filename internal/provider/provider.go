// Package provider defines the uniform interface implemented by every chat
// provider and the registry that constructs them by name.
// Each variant (mock.go, eliza.go, openai.go, anthropic.go) turns a
// conversation history into a single reply string.
package provider

import (
	"context"
	"errors"
)

// ErrUnknownProvider is returned by Registry.New for names with no factory.
var ErrUnknownProvider = errors.New("unknown provider")

// ── Message types ────────────────────────────────────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the history handed to a provider.
type Message struct {
	Role    Role
	Content string
}

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the capability set shared by all chat providers.
//
// Variants report their own failures (missing credentials, API errors) as
// reply text so the conversation can continue. A non-nil error is reserved
// for cancellation and faults the caller must not persist as a reply.
type Provider interface {
	// Name returns the registry key, e.g. "mock", "openai", "deepseek".
	Name() string

	// DisplayName returns the human-readable name, e.g. "Mock Provider".
	DisplayName() string

	// GenerateResponse produces the assistant reply for the full history.
	GenerateResponse(ctx context.Context, history []Message) (string, error)

	// Options returns a snapshot of the provider's options and their values.
	Options() map[string]any

	// SetOption updates a known option. It reports false, leaving the
	// option untouched, when the name is unknown or the value does not fit.
	SetOption(name string, value any) bool

	// Models returns the models this provider can be pointed at.
	Models() []string
}

// Settings carries construction-time configuration for a provider.
type Settings struct {
	APIKey  string
	BaseURL string
	// Options are applied with SetOption after construction; unknown keys
	// are ignored.
	Options map[string]any
}

// lastUserMessage returns the content of the most recent user turn.
func lastUserMessage(history []Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}
