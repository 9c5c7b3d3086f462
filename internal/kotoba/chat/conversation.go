// Package chat owns conversations: their lifecycle, titles, ordering and
// retention. Every mutation is written through to the persistence adapter
// before the call returns.
package chat

import "unicode/utf8"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// DefaultTitle is the title of a conversation with no user message yet.
	DefaultTitle = "New Chat"
	// titleLimit is the number of characters kept from the first user message.
	titleLimit = 40
)

// Message is one turn in a conversation. Timestamp is epoch milliseconds.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// Conversation is an ordered message list with a title derived from its
// first user message.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
}

// LastActivity is the newest message timestamp, or CreatedAt for an empty
// conversation.
func (c *Conversation) LastActivity() int64 {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1].Timestamp
	}
	return c.CreatedAt
}

// hasUserMessage reports whether any user turn exists yet.
func (c *Conversation) hasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

func (c *Conversation) clone() Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}

// Summary is a conversation as shown in a list.
type Summary struct {
	ID           string
	Title        string
	MessageCount int
	CreatedAt    int64
	LastActivity int64
}

// deriveTitle truncates content to titleLimit characters, appending "..."
// when anything was cut.
func deriveTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:titleLimit]) + "..."
}
