package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIProvider implements Provider for OpenAI and every OpenAI-compatible
// API (DeepSeek, Groq, Kimi, Qwen, ...). The registry name and display name
// distinguish the compatible services.
type OpenAIProvider struct {
	client  openai.Client
	name    string
	display string
	apiKey  string
	baseURL string
	opts    *options
}

func NewOpenAIProvider(name, display, apiKey, baseURL, model string) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = openAIDefaultModel
	}

	o := newOptions()
	o.define("model", optionSpec{kind: kindString}, model)
	o.define("temperature", optionSpec{kind: kindFloat}, 0.7)
	o.define("max_tokens", optionSpec{kind: kindInt, min: 1}, 1000)

	return &OpenAIProvider{
		client:  openai.NewClient(reqOpts...),
		name:    name,
		display: display,
		apiKey:  apiKey,
		baseURL: baseURL,
		opts:    o,
	}
}

func (p *OpenAIProvider) Name() string                      { return p.name }
func (p *OpenAIProvider) DisplayName() string               { return p.display }
func (p *OpenAIProvider) Models() []string                  { return []string{p.opts.stringValue("model")} }
func (p *OpenAIProvider) Options() map[string]any           { return p.opts.snapshot() }
func (p *OpenAIProvider) SetOption(name string, v any) bool { return p.opts.set(name, v) }

func (p *OpenAIProvider) GenerateResponse(ctx context.Context, history []Message) (string, error) {
	if p.apiKey == "" {
		if p.name == "openai" {
			return "Error: OpenAI API key not found. Please set the OPENAI_API_KEY environment variable.", nil
		}
		return fmt.Sprintf("Error: %s API key not found. Please set providers.%s.api_key in the config file.",
			p.display, p.name), nil
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.opts.stringValue("model")),
		Messages:    p.buildMessages(history),
		Temperature: openai.Float(p.opts.floatValue("temperature")),
		MaxTokens:   openai.Int(int64(p.opts.intValue("max_tokens"))),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return fmt.Sprintf("Error generating response from %s: %v", p.display, err), nil
	}
	if len(resp.Choices) == 0 {
		return fmt.Sprintf("Error generating response from %s: %v", p.display, errors.New("empty response")), nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) buildMessages(history []Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return msgs
}
