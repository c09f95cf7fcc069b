package provider

import (
	"context"
	"fmt"
)

const (
	mockResponseNormal = "normal"
	mockResponseCode   = "code"
	mockResponseError  = "error"
)

// MockProvider returns canned replies derived from the last user message.
type MockProvider struct {
	opts *options
}

func NewMockProvider() *MockProvider {
	o := newOptions()
	o.define("response_delay", optionSpec{kind: kindFloat}, 0.5)
	o.define("response_type", optionSpec{
		kind:    kindString,
		choices: []string{mockResponseNormal, mockResponseCode, mockResponseError},
	}, mockResponseNormal)
	return &MockProvider{opts: o}
}

func (p *MockProvider) Name() string                      { return "mock" }
func (p *MockProvider) DisplayName() string               { return "Mock Provider" }
func (p *MockProvider) Models() []string                  { return []string{"code", "error", "normal"} }
func (p *MockProvider) Options() map[string]any           { return p.opts.snapshot() }
func (p *MockProvider) SetOption(name string, v any) bool { return p.opts.set(name, v) }

func (p *MockProvider) GenerateResponse(ctx context.Context, history []Message) (string, error) {
	if err := sleepCtx(ctx, p.opts.floatValue("response_delay")); err != nil {
		return "", err
	}

	if len(history) == 0 {
		return "I don't have any messages to respond to.", nil
	}
	last, ok := lastUserMessage(history)
	if !ok {
		return "I don't see any user messages to respond to.", nil
	}

	switch p.opts.stringValue("response_type") {
	case mockResponseCode:
		return fmt.Sprintf("Here's some code that might help:\n```python\n"+
			"def process_text(text):\n    return text.upper()\n\n"+
			"# Example usage\nresult = process_text('%s')\nprint(result)\n```", last), nil
	case mockResponseError:
		return "I'm sorry, but I encountered an error processing your request. Please try again.", nil
	default:
		return fmt.Sprintf("You said: %s\n\nThis is a mock response from the testing provider. "+
			"In a real application, this would be a response from an AI service.", last), nil
	}
}
