package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	apiKey string
	opts   *options
}

func NewAnthropicProvider(apiKey, baseURL, model string) *AnthropicProvider {
	reqOpts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithMaxRetries(1),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(baseURL))
	}
	if model == "" {
		model = anthropicDefaultModel
	}

	o := newOptions()
	o.define("model", optionSpec{kind: kindString}, model)
	o.define("temperature", optionSpec{kind: kindFloat}, 0.7)
	o.define("max_tokens", optionSpec{kind: kindInt, min: 1}, 1000)

	return &AnthropicProvider{
		client: anthropic.NewClient(reqOpts...),
		apiKey: apiKey,
		opts:   o,
	}
}

func (p *AnthropicProvider) Name() string                      { return "anthropic" }
func (p *AnthropicProvider) DisplayName() string               { return "Anthropic" }
func (p *AnthropicProvider) Models() []string                  { return []string{p.opts.stringValue("model")} }
func (p *AnthropicProvider) Options() map[string]any           { return p.opts.snapshot() }
func (p *AnthropicProvider) SetOption(name string, v any) bool { return p.opts.set(name, v) }

func (p *AnthropicProvider) GenerateResponse(ctx context.Context, history []Message) (string, error) {
	if p.apiKey == "" {
		return "Error: Anthropic API key not found. Please set the ANTHROPIC_API_KEY environment variable.", nil
	}

	msgs := p.buildMessages(history)
	if len(msgs) == 0 {
		return "Error generating response from Anthropic: no user message to respond to", nil
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.opts.stringValue("model")),
		Messages:    msgs,
		MaxTokens:   int64(p.opts.intValue("max_tokens")),
		Temperature: anthropic.Float(p.opts.floatValue("temperature")),
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return fmt.Sprintf("Error generating response from Anthropic: %v", err), nil
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// buildMessages converts the history into Anthropic message params.
// The API expects a user turn first and alternating roles, so leading
// assistant turns are dropped and consecutive same-role turns are merged.
func (p *AnthropicProvider) buildMessages(history []Message) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	var lastRole Role
	for _, m := range history {
		if len(msgs) == 0 && m.Role != RoleUser {
			continue
		}
		// Empty text blocks are rejected by the API.
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == lastRole {
			last := &msgs[len(msgs)-1]
			last.Content = append(last.Content, block)
			continue
		}
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		default:
			continue
		}
		lastRole = m.Role
	}
	return msgs
}
