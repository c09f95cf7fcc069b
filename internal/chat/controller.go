// Package chat owns the current-session pointer and sequences storage calls
// with provider calls. Loop drives a Controller from a tui.IO.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/termwave/termwave/internal/provider"
	"github.com/termwave/termwave/internal/session"
)

var (
	// ErrNotFound is returned when a chat id does not resolve. The current
	// session is left unchanged.
	ErrNotFound = errors.New("no such chat")
	// ErrNoSession is returned by Submit when there is no current chat.
	ErrNoSession = errors.New("no current chat")
)

// Store is the subset of session.Store the controller needs.
type Store interface {
	CreateChat(ctx context.Context, title string) (session.ID, error)
	ListChats(ctx context.Context) ([]session.Chat, error)
	GetChat(ctx context.Context, id session.ID) (session.Chat, error)
	GetMessages(ctx context.Context, id session.ID) ([]session.Message, error)
	SaveMessage(ctx context.Context, id session.ID, role session.Role, content string) (bool, error)
	DeleteChat(ctx context.Context, id session.ID) error
}

// Transcript is a chat plus its messages, oldest first.
type Transcript struct {
	Chat     session.Chat
	Messages []session.Message
}

// Controller holds the current-session pointer and the active provider.
// It is not safe for concurrent use; the loop issues one call at a time.
type Controller struct {
	store     Store
	providers *provider.Registry
	active    provider.Provider
	current   session.ID
	logger    *zap.Logger
}

// NewController returns a controller in the uninitialized state. Call Start
// before Submit.
func NewController(store Store, providers *provider.Registry, active provider.Provider, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:     store,
		providers: providers,
		active:    active,
		logger:    logger,
	}
}

// Current returns the current chat id, or session.NoChat before Start.
func (c *Controller) Current() session.ID { return c.current }

// Provider returns the active provider.
func (c *Controller) Provider() provider.Provider { return c.active }

// Providers returns the registry used by SwitchProvider.
func (c *Controller) Providers() *provider.Registry { return c.providers }

// Start makes the most recent chat current, creating one if the store is
// empty.
func (c *Controller) Start(ctx context.Context) (Transcript, error) {
	chats, err := c.store.ListChats(ctx)
	if err != nil {
		return Transcript{}, fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		return c.NewSession(ctx)
	}
	return c.LoadSession(ctx, chats[0].ID)
}

// NewSession creates a chat and makes it current.
func (c *Controller) NewSession(ctx context.Context) (Transcript, error) {
	id, err := c.store.CreateChat(ctx, session.DefaultTitle)
	if err != nil {
		return Transcript{}, fmt.Errorf("create chat: %w", err)
	}
	chat, err := c.store.GetChat(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	c.current = id
	c.logger.Info("chat created", zap.Int64("chat_id", int64(id)))
	return Transcript{Chat: chat, Messages: []session.Message{}}, nil
}

// LoadSession makes id current and returns its transcript. An unknown id
// returns ErrNotFound and leaves the current chat unchanged.
func (c *Controller) LoadSession(ctx context.Context, id session.ID) (Transcript, error) {
	tr, err := c.load(ctx, id)
	if err != nil {
		return Transcript{}, err
	}
	c.current = id
	c.logger.Debug("chat loaded", zap.Int64("chat_id", int64(id)), zap.Int("messages", len(tr.Messages)))
	return tr, nil
}

// DeleteSession deletes chat id. When id is the current chat a replacement
// chat is created and made current; replaced reports that case and tr holds
// the new transcript.
func (c *Controller) DeleteSession(ctx context.Context, id session.ID) (replaced bool, tr Transcript, err error) {
	if _, err := c.store.GetChat(ctx, id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return false, Transcript{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return false, Transcript{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	if err := c.store.DeleteChat(ctx, id); err != nil {
		return false, Transcript{}, fmt.Errorf("delete chat %d: %w", id, err)
	}
	c.logger.Info("chat deleted", zap.Int64("chat_id", int64(id)))

	if id != c.current {
		return false, Transcript{}, nil
	}
	// The pointer stays null if the replacement cannot be created; only a
	// storage fault gets here and Submit then reports ErrNoSession.
	c.current = session.NoChat
	tr, err = c.NewSession(ctx)
	if err != nil {
		return false, Transcript{}, err
	}
	return true, tr, nil
}

// Sessions lists all chats, newest first.
func (c *Controller) Sessions(ctx context.Context) ([]session.Chat, error) {
	chats, err := c.store.ListChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// Transcript returns the current chat and its messages.
func (c *Controller) Transcript(ctx context.Context) (Transcript, error) {
	if c.current == session.NoChat {
		return Transcript{}, ErrNoSession
	}
	return c.load(ctx, c.current)
}

// Submit persists text as a user message, replays the full history to the
// active provider and persists the reply. A provider error is returned as is
// and nothing is saved for the assistant; the user message stays. If the chat
// disappears before either save, ErrNoSession is returned.
func (c *Controller) Submit(ctx context.Context, text string) (string, error) {
	if c.current == session.NoChat {
		return "", ErrNoSession
	}
	chatID := c.current
	log := c.logger.With(
		zap.Int64("chat_id", int64(chatID)),
		zap.String("provider", c.active.Name()),
		zap.String("turn", uuid.NewString()[:8]),
	)

	ok, err := c.store.SaveMessage(ctx, chatID, session.RoleUser, text)
	if err != nil {
		return "", fmt.Errorf("save user message: %w", err)
	}
	if !ok {
		return "", ErrNoSession
	}

	msgs, err := c.store.GetMessages(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("get messages: %w", err)
	}
	history := make([]provider.Message, len(msgs))
	for i, m := range msgs {
		history[i] = provider.Message{Role: provider.Role(m.Role), Content: m.Content}
	}

	log.Debug("generating response", zap.Int("history", len(history)))
	reply, err := c.active.GenerateResponse(ctx, history)
	if err != nil {
		log.Warn("provider failed", zap.Error(err))
		return "", err
	}

	ok, err = c.store.SaveMessage(ctx, chatID, session.RoleAssistant, reply)
	if err != nil {
		return "", fmt.Errorf("save assistant message: %w", err)
	}
	if !ok {
		log.Warn("chat vanished before the reply was saved")
		return "", ErrNoSession
	}
	log.Info("turn complete", zap.Int("reply_len", len(reply)))
	return reply, nil
}

// SwitchProvider replaces the active provider with a new instance of name.
// Persisted history is untouched.
func (c *Controller) SwitchProvider(name string, s provider.Settings) error {
	p, err := c.providers.New(name, s)
	if err != nil {
		return err
	}
	c.logger.Info("provider switched", zap.String("provider", name), zap.String("previous", c.active.Name()))
	c.active = p
	return nil
}

// SetOption sets an option on the active provider.
func (c *Controller) SetOption(name string, value any) bool {
	ok := c.active.SetOption(name, value)
	c.logger.Debug("set option",
		zap.String("provider", c.active.Name()),
		zap.String("option", name),
		zap.Any("value", value),
		zap.Bool("ok", ok))
	return ok
}

func (c *Controller) load(ctx context.Context, id session.ID) (Transcript, error) {
	chat, err := c.store.GetChat(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Transcript{}, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return Transcript{}, fmt.Errorf("get chat %d: %w", id, err)
	}
	msgs, err := c.store.GetMessages(ctx, id)
	if err != nil {
		return Transcript{}, fmt.Errorf("get messages: %w", err)
	}
	return Transcript{Chat: chat, Messages: msgs}, nil
}
