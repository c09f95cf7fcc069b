package session

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("chat not found")
	ErrInvalidRole = errors.New("invalid message role")
)

// Store abstracts chat persistence.
type Store interface {
	CreateChat(ctx context.Context, title string) (ID, error)
	ListChats(ctx context.Context) ([]Chat, error)
	// GetChat returns ErrNotFound if id does not exist.
	GetChat(ctx context.Context, id ID) (Chat, error)
	// GetMessages returns the transcript oldest first. Unknown ids yield an
	// empty slice.
	GetMessages(ctx context.Context, id ID) ([]Message, error)
	// SaveMessage returns false without writing when id is NoChat or does not
	// exist. The first user message of a chat sets its title.
	SaveMessage(ctx context.Context, id ID, role Role, content string) (bool, error)
	CountMessages(ctx context.Context, id ID) (int, error)
	// DeleteChat removes the chat and all its messages. Deleting an unknown
	// id is a no-op.
	DeleteChat(ctx context.Context, id ID) error
	Close() error
}
