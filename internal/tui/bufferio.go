package tui

import (
	"io"
	"sync"
)

// EventKind names an IO call recorded by BufferIO.
type EventKind string

const (
	EventUser      EventKind = "user"
	EventThinking  EventKind = "thinking"
	EventAssistant EventKind = "assistant"
	EventSession   EventKind = "session"
	EventSystem    EventKind = "system"
	EventError     EventKind = "error"
)

// Event is one recorded IO call.
type Event struct {
	Kind EventKind
	Text string
}

// BufferIO is a silent IO implementation that replays scripted input lines
// and records every output event without rendering to any terminal.
type BufferIO struct {
	mu     sync.Mutex
	inputs []string
	events []Event
	status Status
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO creates a BufferIO that returns inputs in order from
// ReadInput, then io.EOF.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{inputs: inputs}
}

// Events returns a copy of everything recorded so far.
func (b *BufferIO) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Texts returns the text of every recorded event of the given kind.
func (b *BufferIO) Texts(kind EventKind) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		if e.Kind == kind {
			out = append(out, e.Text)
		}
	}
	return out
}

// Status returns the last status set.
func (b *BufferIO) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *BufferIO) record(kind EventKind, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{Kind: kind, Text: text})
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return "", io.EOF
	}
	line := b.inputs[0]
	b.inputs = b.inputs[1:]
	return line, nil
}

func (b *BufferIO) UserMessage(text string)      { b.record(EventUser, text) }
func (b *BufferIO) ThinkingStart()               { b.record(EventThinking, "") }
func (b *BufferIO) AssistantMessage(text string) { b.record(EventAssistant, text) }
func (b *BufferIO) SessionStart(title string)    { b.record(EventSession, title) }
func (b *BufferIO) SystemMessage(text string)    { b.record(EventSystem, text) }
func (b *BufferIO) Error(msg string)             { b.record(EventError, msg) }

func (b *BufferIO) SetStatus(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}
