package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// PlainIO implements IO using plain terminal output.
// It is used when TUI mode is disabled or stdin is not a terminal.
type PlainIO struct {
	scanner *bufio.Scanner
	out     io.Writer
	errW    io.Writer
}

var _ IO = (*PlainIO)(nil)

// NewPlainIO creates a PlainIO that reads from stdin.
func NewPlainIO() *PlainIO {
	return NewPlainIOWith(os.Stdin, os.Stdout, os.Stderr)
}

// NewPlainIOWith creates a PlainIO over explicit streams.
func NewPlainIOWith(in io.Reader, out, errW io.Writer) *PlainIO {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s, out: out, errW: errW}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Fprint(p.out, "\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// Plain terminal: the user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Fprintln(p.out, "Thinking...")
}

func (p *PlainIO) AssistantMessage(text string) {
	fmt.Fprintf(p.out, "AI: %s\n", text)
}

func (p *PlainIO) SessionStart(title string) {
	fmt.Fprintf(p.out, "\n== %s ==\n", title)
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(p.errW, "error: %s\n", msg)
}

func (p *PlainIO) SetStatus(_ Status) {}
