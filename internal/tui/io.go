// Package tui defines the IO interface between the chat loop and the
// user interface layer, plus TuiIO (bubbletea), PlainIO (terminal fallback),
// PipeIO (non-interactive) and BufferIO (scripted, for tests).
package tui

import "context"

// IO is the contract between the chat loop and the UI layer.
// Every method maps to a distinct visual event, so the loop never depends
// on a specific rendering implementation.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays a user turn in the transcript.
	UserMessage(text string)

	// ThinkingStart signals that the provider has started generating.
	// Implementations should show a spinner or "Thinking..." indicator.
	ThinkingStart()

	// AssistantMessage displays a complete assistant turn. TUI
	// implementations render it as Markdown.
	AssistantMessage(text string)

	// SessionStart clears the visible transcript and shows the header of
	// the session that is now current.
	SessionStart(title string)

	// SystemMessage displays a notice (command output, help, status).
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetStatus updates the provider / model / session indicator.
	SetStatus(s Status)
}

// Status is what the status bar shows.
type Status struct {
	Provider string
	Model    string
	Session  string
}

// LoopCanceller is implemented by IOs that let the user abort the
// in-flight turn (esc in the TUI).
type LoopCanceller interface {
	SetLoopCancel(cancel context.CancelFunc)
	ClearLoopCancel()
}
