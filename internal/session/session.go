package session

import (
	"strings"
	"time"
)

// ID identifies a chat. IDs are assigned by the store and never reused.
type ID int64

// NoChat is the null marker: no chat is selected.
const NoChat ID = 0

// DefaultTitle is the placeholder title of a chat that has no user message yet.
const DefaultTitle = "New Chat"

// titleWords is how many words of the first user message make up a title.
const titleWords = 5

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Chat is one persisted conversation.
type Chat struct {
	ID        ID
	Title     string
	TitleSet  bool // true once the first user message has titled the chat
	CreatedAt time.Time
}

// Message is a single turn within a chat.
type Message struct {
	ID        int64
	ChatID    ID
	Role      Role
	Content   string
	Timestamp time.Time
}

// Title derives a chat title from the content of its first user message:
// the first five whitespace-delimited words joined by single spaces, with a
// trailing "..." when the content has more than five words.
func Title(content string) string {
	words := strings.Fields(content)
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "..."
}
