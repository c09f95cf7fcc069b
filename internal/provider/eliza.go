package provider

import (
	"context"
	"math/rand"

	"github.com/termwave/termwave/internal/eliza"
)

// ElizaProvider answers with the classic DOCTOR pattern-matching script.
type ElizaProvider struct {
	engine *eliza.Engine
	opts   *options
}

// NewElizaProvider builds an Eliza provider. rng may be nil.
func NewElizaProvider(rng *rand.Rand) (*ElizaProvider, error) {
	engine, err := eliza.NewDoctor(rng)
	if err != nil {
		return nil, err
	}
	o := newOptions()
	o.define("response_delay", optionSpec{kind: kindFloat}, 0.5)
	o.define("model", optionSpec{kind: kindString, choices: []string{"doctor"}}, "doctor")
	return &ElizaProvider{engine: engine, opts: o}, nil
}

func (p *ElizaProvider) Name() string                      { return "eliza" }
func (p *ElizaProvider) DisplayName() string               { return "Eliza" }
func (p *ElizaProvider) Models() []string                  { return []string{"doctor"} }
func (p *ElizaProvider) Options() map[string]any           { return p.opts.snapshot() }
func (p *ElizaProvider) SetOption(name string, v any) bool { return p.opts.set(name, v) }

func (p *ElizaProvider) GenerateResponse(ctx context.Context, history []Message) (string, error) {
	if err := sleepCtx(ctx, p.opts.floatValue("response_delay")); err != nil {
		return "", err
	}

	last, ok := lastUserMessage(history)
	if !ok {
		return p.engine.Initial(), nil
	}
	reply, ok := p.engine.Respond(last)
	if !ok {
		return p.engine.Final(), nil
	}
	return reply, nil
}
