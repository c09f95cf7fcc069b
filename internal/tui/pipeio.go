package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// PipeIO implements IO for non-interactive pipe/CI mode.
// Assistant text goes to stdout, diagnostics go to stderr.
// ReadInput returns the queued prompts, then io.EOF. Transcript replay that
// happens before the first ReadInput is not written.
type PipeIO struct {
	format  string    // "text" or "jsonl"
	verbose bool      // echo system notices on stderr
	prompts []string  // remaining input lines
	writer  io.Writer // stdout
	errW    io.Writer // stderr
	live    bool      // set by the first ReadInput
	failed  bool      // an error was reported
}

var _ IO = (*PipeIO)(nil)

// NewPipeIO creates a PipeIO instance that will feed prompts to the loop.
func NewPipeIO(format string, verbose bool, prompts ...string) *PipeIO {
	return NewPipeIOWith(os.Stdout, os.Stderr, format, verbose, prompts...)
}

// NewPipeIOWith creates a PipeIO over explicit writers.
func NewPipeIOWith(out, errW io.Writer, format string, verbose bool, prompts ...string) *PipeIO {
	if format == "" {
		format = "text"
	}
	return &PipeIO{
		format:  format,
		verbose: verbose,
		prompts: prompts,
		writer:  out,
		errW:    errW,
	}
}

func (p *PipeIO) ReadInput() (string, error) {
	p.live = true
	if len(p.prompts) == 0 {
		return "", io.EOF
	}
	next := p.prompts[0]
	p.prompts = p.prompts[1:]
	return next, nil
}

func (p *PipeIO) UserMessage(text string) {
	if p.live && p.format == "jsonl" {
		p.emitJSONL("user", map[string]string{"content": text})
	}
}

func (p *PipeIO) ThinkingStart() {}

func (p *PipeIO) AssistantMessage(text string) {
	if !p.live {
		return
	}
	if p.format == "jsonl" {
		p.emitJSONL("assistant", map[string]string{"content": text})
		return
	}
	fmt.Fprintln(p.writer, text)
}

func (p *PipeIO) SessionStart(title string) {
	if p.format == "jsonl" {
		p.emitJSONL("session", map[string]string{"title": title})
	}
}

func (p *PipeIO) SystemMessage(text string) {
	if p.format == "jsonl" {
		p.emitJSONL("system", map[string]string{"content": text})
		return
	}
	if p.verbose {
		fmt.Fprintln(p.errW, text)
	}
}

func (p *PipeIO) Error(msg string) {
	p.failed = true
	if p.format == "jsonl" {
		p.emitJSONL("error", map[string]string{"message": msg})
	}
	fmt.Fprintf(p.errW, "error: %s\n", msg)
}

func (p *PipeIO) SetStatus(_ Status) {}

// Failed reports whether Error was called.
func (p *PipeIO) Failed() bool { return p.failed }

// emitJSONL writes a JSON line to stdout.
func (p *PipeIO) emitJSONL(eventType string, data any) {
	line, _ := json.Marshal(map[string]any{
		"type":      eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
	fmt.Fprintln(p.writer, string(line))
}
