package provider

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider from its settings.
type Factory func(s Settings) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Has reports whether name has a registered factory.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// New constructs the named provider and applies s.Options to it.
func (r *Registry) New(name string, s Settings) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	p, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("create provider %s: %w", name, err)
	}
	for k, v := range s.Options {
		p.SetOption(k, v)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint describes an OpenAI-compatible service reachable under its own
// provider name (deepseek, groq, ...).
type Endpoint struct {
	DisplayName  string
	BaseURL      string
	DefaultModel string
	KeyOptional  bool // local servers such as Ollama accept any key
}

// DefaultRegistry registers the built-in variants plus one OpenAI-compatible
// provider per entry in compat.
func DefaultRegistry(compat map[string]Endpoint) *Registry {
	r := NewRegistry()
	r.Register("mock", func(Settings) (Provider, error) { return NewMockProvider(), nil })
	r.Register("eliza", func(Settings) (Provider, error) { return NewElizaProvider(nil) })
	r.Register("openai", func(s Settings) (Provider, error) {
		return NewOpenAIProvider("openai", "OpenAI", s.APIKey, s.BaseURL, ""), nil
	})
	r.Register("anthropic", func(s Settings) (Provider, error) {
		return NewAnthropicProvider(s.APIKey, s.BaseURL, ""), nil
	})
	for name, ep := range compat {
		if r.Has(name) {
			continue
		}
		r.Register(name, func(s Settings) (Provider, error) {
			baseURL := s.BaseURL
			if baseURL == "" {
				baseURL = ep.BaseURL
			}
			apiKey := s.APIKey
			if apiKey == "" && ep.KeyOptional {
				apiKey = "none"
			}
			display := ep.DisplayName
			if display == "" {
				display = name
			}
			return NewOpenAIProvider(name, display, apiKey, baseURL, ep.DefaultModel), nil
		})
	}
	return r
}
