package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/termwave/termwave/internal/provider"
	"github.com/termwave/termwave/internal/session"
)

// recordingProvider captures the history it is given and replies with a
// fixed text or error. during, if set, runs before the reply is returned.
type recordingProvider struct {
	reply     string
	err       error
	during    func()
	histories [][]provider.Message
}

func (p *recordingProvider) Name() string               { return "recording" }
func (p *recordingProvider) DisplayName() string        { return "Recording" }
func (p *recordingProvider) Options() map[string]any    { return map[string]any{} }
func (p *recordingProvider) SetOption(string, any) bool { return false }
func (p *recordingProvider) Models() []string           { return nil }

func (p *recordingProvider) GenerateResponse(_ context.Context, history []provider.Message) (string, error) {
	p.histories = append(p.histories, append([]provider.Message(nil), history...))
	if p.during != nil {
		p.during()
	}
	return p.reply, p.err
}

func openStore(t *testing.T) *session.SQLiteStore {
	t.Helper()
	store, err := session.Open(context.Background(), filepath.Join(t.TempDir(), "chat_history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func instantSettings() provider.Settings {
	return provider.Settings{Options: map[string]any{"response_delay": 0}}
}

func newController(t *testing.T, store Store, active provider.Provider) *Controller {
	t.Helper()
	reg := provider.DefaultRegistry(nil)
	if active == nil {
		p, err := reg.New("mock", instantSettings())
		require.NoError(t, err)
		active = p
	}
	return NewController(store, reg, active, zaptest.NewLogger(t))
}

type roleContent struct {
	Role    session.Role
	Content string
}

func pairs(msgs []session.Message) []roleContent {
	out := make([]roleContent, len(msgs))
	for i, m := range msgs {
		out[i] = roleContent{m.Role, m.Content}
	}
	return out
}

func TestStartCreatesChatWhenStoreIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	c := newController(t, store, nil)
	require.Equal(t, session.NoChat, c.Current())

	tr, err := c.Start(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, session.NoChat, c.Current())
	assert.Equal(t, c.Current(), tr.Chat.ID)
	assert.Equal(t, session.DefaultTitle, tr.Chat.Title)
	assert.Empty(t, tr.Messages)

	chats, err := store.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestStartLoadsMostRecentChat(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	older, err := store.CreateChat(ctx, "")
	require.NoError(t, err)
	newer, err := store.CreateChat(ctx, "")
	require.NoError(t, err)
	_, err = store.SaveMessage(ctx, newer, session.RoleUser, "hi")
	require.NoError(t, err)

	c := newController(t, store, nil)
	tr, err := c.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer, c.Current())
	assert.NotEqual(t, older, c.Current())
	assert.Equal(t, "hi", tr.Chat.Title)
	assert.Len(t, tr.Messages, 1)
}

func TestSubmitEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	c := newController(t, store, nil)
	_, err := c.Start(ctx)
	require.NoError(t, err)

	reply, err := c.Submit(ctx, "Hello, this is a test message")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "You said: Hello, this is a test message\n\n"), reply)

	tr, err := c.Transcript(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Hello, this is a test...", tr.Chat.Title)
	want := []roleContent{
		{session.RoleUser, "Hello, this is a test message"},
		{session.RoleAssistant, reply},
	}
	if diff := cmp.Diff(want, pairs(tr.Messages)); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitReplaysFullHistory(t *testing.T) {
	ctx := context.Background()
	rec := &recordingProvider{reply: "ok"}
	c := newController(t, openStore(t), rec)
	_, err := c.Start(ctx)
	require.NoError(t, err)

	_, err = c.Submit(ctx, "first")
	require.NoError(t, err)
	_, err = c.Submit(ctx, "second")
	require.NoError(t, err)

	require.Len(t, rec.histories, 2)
	want := []provider.Message{
		{Role: provider.RoleUser, Content: "first"},
		{Role: provider.RoleAssistant, Content: "ok"},
		{Role: provider.RoleUser, Content: "second"},
	}
	if diff := cmp.Diff(want, rec.histories[1]); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitProviderErrorKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	store := openStore(t)
	c := newController(t, store, &recordingProvider{err: boom})
	_, err := c.Start(ctx)
	require.NoError(t, err)

	_, err = c.Submit(ctx, "hello")
	require.ErrorIs(t, err, boom)

	msgs, err := store.GetMessages(ctx, c.Current())
	require.NoError(t, err)
	if diff := cmp.Diff([]roleContent{{session.RoleUser, "hello"}}, pairs(msgs)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitChatDeletedDuringReply(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	rp := &recordingProvider{reply: "too late"}
	c := newController(t, store, rp)
	_, err := c.Start(ctx)
	require.NoError(t, err)
	id := c.Current()
	rp.during = func() { require.NoError(t, store.DeleteChat(ctx, id)) }

	_, err = c.Submit(ctx, "hello")
	require.ErrorIs(t, err, ErrNoSession)

	n, err := store.CountMessages(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmitWithoutSession(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	other, err := store.CreateChat(ctx, "")
	require.NoError(t, err)

	c := newController(t, store, nil)
	_, err = c.Submit(ctx, "x")
	require.ErrorIs(t, err, ErrNoSession)

	n, err := store.CountMessages(ctx, other)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = c.Transcript(ctx)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadSessionNotFoundKeepsPointer(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t), nil)
	_, err := c.Start(ctx)
	require.NoError(t, err)
	before := c.Current()

	_, err = c.LoadSession(ctx, before+100)
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, before, c.Current())
}

func TestLoadSessionSwitchesPointer(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t), nil)
	first, err := c.Start(ctx)
	require.NoError(t, err)
	_, err = c.Submit(ctx, "in first")
	require.NoError(t, err)

	second, err := c.NewSession(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Chat.ID, second.Chat.ID)
	assert.Empty(t, second.Messages)

	tr, err := c.LoadSession(ctx, first.Chat.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Chat.ID, c.Current())
	assert.Len(t, tr.Messages, 2)
}

func TestDeleteActiveSessionSelfHeals(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	c := newController(t, store, nil)
	_, err := c.Start(ctx)
	require.NoError(t, err)
	_, err = c.Submit(ctx, "doomed")
	require.NoError(t, err)
	old := c.Current()

	replaced, tr, err := c.DeleteSession(ctx, old)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.NotEqual(t, session.NoChat, c.Current())
	assert.NotEqual(t, old, c.Current())
	assert.Equal(t, c.Current(), tr.Chat.ID)
	assert.Empty(t, tr.Messages)

	_, err = store.GetChat(ctx, old)
	assert.ErrorIs(t, err, session.ErrNotFound)
	msgs, err := store.GetMessages(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// failingCreateStore refuses to create chats once failCreate is set.
type failingCreateStore struct {
	*session.SQLiteStore
	failCreate bool
}

func (s *failingCreateStore) CreateChat(ctx context.Context, title string) (session.ID, error) {
	if s.failCreate {
		return session.NoChat, errors.New("disk full")
	}
	return s.SQLiteStore.CreateChat(ctx, title)
}

func TestDeleteActiveSessionReplacementFails(t *testing.T) {
	ctx := context.Background()
	store := &failingCreateStore{SQLiteStore: openStore(t)}
	c := newController(t, store, nil)
	_, err := c.Start(ctx)
	require.NoError(t, err)
	old := c.Current()

	store.failCreate = true
	replaced, _, err := c.DeleteSession(ctx, old)
	require.Error(t, err)
	assert.False(t, replaced)
	assert.Equal(t, session.NoChat, c.Current())

	_, err = c.Submit(ctx, "anyone there?")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDeleteOtherSessionKeepsPointer(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	other, err := store.CreateChat(ctx, "")
	require.NoError(t, err)
	c := newController(t, store, nil)
	_, err = c.NewSession(ctx)
	require.NoError(t, err)
	current := c.Current()

	replaced, _, err := c.DeleteSession(ctx, other)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, current, c.Current())

	_, _, err = c.DeleteSession(ctx, other)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSwitchProviderKeepsHistory(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t), nil)
	_, err := c.Start(ctx)
	require.NoError(t, err)

	first, err := c.Submit(ctx, "hello mock")
	require.NoError(t, err)

	require.NoError(t, c.SwitchProvider("eliza", instantSettings()))
	assert.Equal(t, "eliza", c.Provider().Name())

	second, err := c.Submit(ctx, "I am feeling sad today")
	require.NoError(t, err)
	assert.Equal(t, "I am sorry to hear that you are sad.", second)

	tr, err := c.Transcript(ctx)
	require.NoError(t, err)
	want := []roleContent{
		{session.RoleUser, "hello mock"},
		{session.RoleAssistant, first},
		{session.RoleUser, "I am feeling sad today"},
		{session.RoleAssistant, second},
	}
	if diff := cmp.Diff(want, pairs(tr.Messages)); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitchProviderUnknown(t *testing.T) {
	c := newController(t, openStore(t), nil)
	err := c.SwitchProvider("nope", provider.Settings{})
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
	assert.Equal(t, "mock", c.Provider().Name())
}

func TestSetOption(t *testing.T) {
	c := newController(t, openStore(t), nil)
	assert.True(t, c.SetOption("response_type", "code"))
	assert.Equal(t, "code", c.Provider().Options()["response_type"])

	assert.False(t, c.SetOption("nonexistent", 1))
	assert.False(t, c.SetOption("response_type", "poetry"))
	assert.Equal(t, "code", c.Provider().Options()["response_type"])
}
