package tui

import (
	"context"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TuiIO implements the IO interface by sending messages to a bubbletea Program.
// All methods are safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult
	done    chan struct{}

	mu         sync.Mutex
	cancelLoop context.CancelFunc
}

var (
	_ IO            = (*TuiIO)(nil)
	_ LoopCanceller = (*TuiIO)(nil)
)

// send is a nil-safe helper that sends a message to the bubbletea program.
// Fire-and-forget methods use this to avoid panicking when program is nil.
func (t *TuiIO) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TuiIO) ReadInput() (string, error) {
	if t.program == nil {
		return "", io.EOF
	}
	// Tell the TUI to activate the text input
	t.program.Send(readInputMsg{})

	// Block until the user submits or the TUI exits
	select {
	case res := <-t.inputCh:
		if res.err != nil {
			return "", io.EOF
		}
		return res.text, nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *TuiIO) UserMessage(text string)      { t.send(userMsg{text: text}) }
func (t *TuiIO) ThinkingStart()               { t.send(thinkingStartMsg{}) }
func (t *TuiIO) AssistantMessage(text string) { t.send(assistantMsg{text: text}) }
func (t *TuiIO) SessionStart(title string)    { t.send(sessionStartMsg{title: title}) }
func (t *TuiIO) SystemMessage(text string)    { t.send(systemMsg{text: text}) }
func (t *TuiIO) Error(msg string)             { t.send(errorMsg{text: msg}) }
func (t *TuiIO) SetStatus(s Status)           { t.send(statusMsg{status: s}) }

// --- LoopCanceller implementation ---

// SetLoopCancel registers the per-turn cancel function for the chat loop.
func (t *TuiIO) SetLoopCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLoop = cancel
}

// ClearLoopCancel clears the loop cancel function when the turn ends.
func (t *TuiIO) ClearLoopCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLoop = nil
}

// CancelLoop cancels the in-flight turn. Returns true if a turn was
// actually cancelled.
func (t *TuiIO) CancelLoop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelLoop != nil {
		t.cancelLoop()
		t.cancelLoop = nil
		return true
	}
	return false
}

// RunTUI starts the bubbletea program and runs loop on its own goroutine
// with a TuiIO connected to it. It returns when both have finished.
func RunTUI(cfg TUIConfig, loop func(io IO) error) error {
	inputCh := make(chan inputResult, 1)
	tio := &TuiIO{inputCh: inputCh, done: make(chan struct{})}

	m := NewModel(inputCh, cfg)
	m.cancelLoopFn = tio.CancelLoop
	p := tea.NewProgram(m)
	tio.program = p

	loopErr := make(chan error, 1)
	go func() {
		err := loop(tio)
		p.Send(loopDoneMsg{err: err})
		loopErr <- err
	}()

	_, runErr := p.Run()

	// The UI is gone: unblock a pending ReadInput and abort any turn.
	close(tio.done)
	tio.CancelLoop()

	err := <-loopErr
	if runErr != nil {
		return runErr
	}
	return err
}
