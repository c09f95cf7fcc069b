package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quickMock(t *testing.T) *MockProvider {
	t.Helper()
	p := NewMockProvider()
	if !p.SetOption("response_delay", 0) {
		t.Fatal("SetOption(response_delay, 0) = false")
	}
	return p
}

// --- Registry ---

func TestDefaultRegistry_Names(t *testing.T) {
	r := DefaultRegistry(map[string]Endpoint{
		"deepseek": {DisplayName: "DeepSeek", BaseURL: "https://api.deepseek.com/v1", DefaultModel: "deepseek-chat"},
		"openai":   {DisplayName: "ignored"},
	})
	got := strings.Join(r.Names(), ",")
	want := "anthropic,deepseek,eliza,mock,openai"
	if got != want {
		t.Errorf("Names() = %q, want %q", got, want)
	}

	p, err := r.New("deepseek", Settings{APIKey: "k"})
	if err != nil {
		t.Fatalf("New(deepseek): %v", err)
	}
	if p.Name() != "deepseek" || p.DisplayName() != "DeepSeek" {
		t.Errorf("deepseek provider = %q/%q", p.Name(), p.DisplayName())
	}
	if m := p.Options()["model"]; m != "deepseek-chat" {
		t.Errorf("deepseek default model = %v, want deepseek-chat", m)
	}

	o, err := r.New("openai", Settings{})
	if err != nil {
		t.Fatalf("New(openai): %v", err)
	}
	if o.DisplayName() != "OpenAI" {
		t.Errorf("openai display name = %q, compat entry must not override the built-in", o.DisplayName())
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := DefaultRegistry(nil)
	_, err := r.New("nope", Settings{})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("New(nope) error = %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_AppliesSettingsOptions(t *testing.T) {
	r := DefaultRegistry(nil)
	p, err := r.New("mock", Settings{Options: map[string]any{
		"response_type":  "code",
		"response_delay": 0,
		"not_an_option":  true,
	}})
	if err != nil {
		t.Fatalf("New(mock): %v", err)
	}
	opts := p.Options()
	if opts["response_type"] != "code" {
		t.Errorf("response_type = %v, want code", opts["response_type"])
	}
	if _, ok := opts["not_an_option"]; ok {
		t.Error("unknown setting must not become an option")
	}
}

func TestDisplayNames(t *testing.T) {
	r := DefaultRegistry(nil)
	tests := map[string]string{
		"mock":      "Mock Provider",
		"eliza":     "Eliza",
		"openai":    "OpenAI",
		"anthropic": "Anthropic",
	}
	for name, want := range tests {
		p, err := r.New(name, Settings{})
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if got := p.DisplayName(); got != want {
			t.Errorf("%s DisplayName() = %q, want %q", name, got, want)
		}
	}
}

// --- Options ---

func TestSetOption(t *testing.T) {
	tests := []struct {
		name   string
		option string
		value  any
		ok     bool
		want   any
	}{
		{"float from int", "response_delay", 2, true, 2.0},
		{"float from string", "response_delay", "0.25", true, 0.25},
		{"negative delay", "response_delay", -1.0, false, 0.5},
		{"float from bool", "response_delay", true, false, 0.5},
		{"enum value", "response_type", "error", true, "error"},
		{"enum case-insensitive", "response_type", "CODE", true, "code"},
		{"enum rejects unknown", "response_type", "poetry", false, "normal"},
		{"unknown option", "colour", "blue", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMockProvider()
			before := p.Options()
			if got := p.SetOption(tt.option, tt.value); got != tt.ok {
				t.Fatalf("SetOption(%q, %v) = %v, want %v", tt.option, tt.value, got, tt.ok)
			}
			after := p.Options()
			if after[tt.option] != tt.want {
				t.Errorf("option %q = %v, want %v", tt.option, after[tt.option], tt.want)
			}
			if !tt.ok && len(after) != len(before) {
				t.Errorf("rejected SetOption changed option set: %v -> %v", before, after)
			}
		})
	}
}

func TestOptionsIsSnapshot(t *testing.T) {
	p := NewMockProvider()
	opts := p.Options()
	opts["response_type"] = "code"
	if p.Options()["response_type"] != "normal" {
		t.Error("mutating the Options() map must not change the provider")
	}
}

func TestIntOption(t *testing.T) {
	p := NewOpenAIProvider("openai", "OpenAI", "", "", "")
	if !p.SetOption("max_tokens", 2048.0) {
		t.Error("integral float should coerce to int")
	}
	if p.Options()["max_tokens"] != 2048 {
		t.Errorf("max_tokens = %v", p.Options()["max_tokens"])
	}
	if p.SetOption("max_tokens", 1.5) {
		t.Error("fractional value must be rejected")
	}
	if p.SetOption("max_tokens", 0) {
		t.Error("zero max_tokens must be rejected")
	}
}

// --- Mock ---

func TestMockProvider_Responses(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "Hello"},
	}
	tests := []struct {
		responseType string
		history      []Message
		want         string
	}{
		{"normal", history, "You said: Hello\n\nThis is a mock response from the testing provider. In a real application, this would be a response from an AI service."},
		{"error", history, "I'm sorry, but I encountered an error processing your request. Please try again."},
		{"normal", nil, "I don't have any messages to respond to."},
		{"normal", []Message{{Role: RoleAssistant, Content: "hi"}}, "I don't see any user messages to respond to."},
	}
	for _, tt := range tests {
		p := quickMock(t)
		p.SetOption("response_type", tt.responseType)
		got, err := p.GenerateResponse(context.Background(), tt.history)
		if err != nil {
			t.Fatalf("GenerateResponse: %v", err)
		}
		if got != tt.want {
			t.Errorf("[%s] GenerateResponse = %q, want %q", tt.responseType, got, tt.want)
		}
	}
}

func TestMockProvider_CodeResponse(t *testing.T) {
	p := quickMock(t)
	p.SetOption("response_type", "code")
	got, _ := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "shout"}})
	if !strings.HasPrefix(got, "Here's some code that might help:\n```python\n") {
		t.Errorf("unexpected code reply prefix: %q", got)
	}
	if !strings.Contains(got, "process_text('shout')") {
		t.Errorf("code reply should embed the user message: %q", got)
	}
}

func TestMockProvider_DelayHonoursContext(t *testing.T) {
	p := NewMockProvider()
	p.SetOption("response_delay", 30)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.GenerateResponse(ctx, []Message{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not interrupt the delay")
	}
}

func TestMockProvider_Models(t *testing.T) {
	got := strings.Join(NewMockProvider().Models(), ",")
	if got != "code,error,normal" {
		t.Errorf("Models() = %q", got)
	}
}

// --- Eliza ---

func TestElizaProvider(t *testing.T) {
	p, err := NewElizaProvider(nil)
	if err != nil {
		t.Fatalf("NewElizaProvider: %v", err)
	}
	p.SetOption("response_delay", 0)
	ctx := context.Background()

	initial, err := p.GenerateResponse(ctx, nil)
	if err != nil || initial == "" {
		t.Fatalf("empty history: %q, %v", initial, err)
	}

	reply, _ := p.GenerateResponse(ctx, []Message{{Role: RoleUser, Content: "I am feeling sad today"}})
	if reply != "I am sorry to hear that you are sad." {
		t.Errorf("reply = %q", reply)
	}

	final, _ := p.GenerateResponse(ctx, []Message{{Role: RoleUser, Content: "goodbye"}})
	if !strings.HasPrefix(final, "Goodbye.") {
		t.Errorf("quit word reply = %q, want a final line", final)
	}

	if p.SetOption("model", "therapist") {
		t.Error("only the doctor model exists")
	}
}

// --- Remote providers ---

func TestOpenAIProvider_MissingKey(t *testing.T) {
	p := NewOpenAIProvider("openai", "OpenAI", "", "", "")
	got, err := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "Error: OpenAI API key not found. Please set the OPENAI_API_KEY environment variable."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOpenAIProvider_GenerateResponse(t *testing.T) {
	var gotPath string
	var body struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "OpenAI", "test-key", srv.URL+"/v1/", "gpt-test")
	p.SetOption("temperature", 0.2)
	got, err := p.GenerateResponse(context.Background(), []Message{
		{Role: RoleUser, Content: "ping"},
		{Role: RoleAssistant, Content: "pong?"},
		{Role: RoleUser, Content: "ping again"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "pong" {
		t.Errorf("reply = %q, want pong", got)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if body.Model != "gpt-test" || body.Temperature != 0.2 || body.MaxTokens != 1000 {
		t.Errorf("request params = %+v", body)
	}
	if len(body.Messages) != 3 || body.Messages[2].Content != "ping again" || body.Messages[1].Role != "assistant" {
		t.Errorf("request messages = %+v", body.Messages)
	}
}

func TestOpenAIProvider_APIErrorBecomesReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "OpenAI", "test-key", srv.URL+"/", "")
	got, err := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Error generating response from OpenAI: ") {
		t.Errorf("reply = %q", got)
	}
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	p := NewAnthropicProvider("", "", "")
	got, _ := p.GenerateResponse(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !strings.HasPrefix(got, "Error: Anthropic API key not found.") {
		t.Errorf("reply = %q", got)
	}
}

func TestAnthropicProvider_GenerateResponse(t *testing.T) {
	var gotPath string
	var body struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string            `json:"role"`
			Content []json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"hello "},{"type":"text","text":"there"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL+"/", "claude-test")
	got, err := p.GenerateResponse(context.Background(), []Message{
		{Role: RoleAssistant, Content: "welcome"},
		{Role: RoleUser, Content: "one"},
		{Role: RoleUser, Content: "two"},
		{Role: RoleAssistant, Content: "ok"},
		{Role: RoleUser, Content: "three"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello there" {
		t.Errorf("reply = %q", got)
	}
	if gotPath != "/v1/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if body.Model != "claude-test" || body.MaxTokens != 1000 {
		t.Errorf("request params = %+v", body)
	}
	// Leading assistant dropped, consecutive user turns merged.
	if len(body.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(body.Messages))
	}
	if body.Messages[0].Role != "user" || len(body.Messages[0].Content) != 2 {
		t.Errorf("first message = %+v", body.Messages[0])
	}
}
