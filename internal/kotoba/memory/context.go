package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bdobrica/Kotoba/internal/kotoba/chat"
	"github.com/bdobrica/Kotoba/internal/kotoba/identity"
	"github.com/bdobrica/Kotoba/internal/kotoba/nlp"
	"github.com/bdobrica/Kotoba/internal/kotoba/settings"
)

// recentTopics is how many of the newest topics go into the prompt.
const recentTopics = 5

// ContextAssembler builds the message list for one completion request:
// the system prompt, an optional memory summary, then the trailing window
// of the conversation.
type ContextAssembler struct {
	Chats  *chat.Store
	Memory *Store
	Logger *slog.Logger
	// Now defaults to time.Now; the system prompt states the current time.
	Now func() time.Time
}

// Request identifies what to assemble. Settings are passed per call.
type Request struct {
	ConversationID string
	Identity       identity.Identity
	Settings       settings.Settings
}

// Assemble returns the ordered messages. After the leading system prompt it
// returns at most Settings.ContextWindowSize+1 entries. A memory lookup
// failure drops the memory message rather than failing the request.
func (a *ContextAssembler) Assemble(ctx context.Context, req Request) ([]nlp.Message, error) {
	conv, ok := a.Chats.Get(req.ConversationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", chat.ErrNotFound, req.ConversationID)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	window := req.Settings.ContextWindowSize
	if window < 1 {
		window = settings.Defaults().ContextWindowSize
	}
	recent := conv.Messages
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	msgs := make([]nlp.Message, 0, len(recent)+2)
	msgs = append(msgs, nlp.Message{
		Role:    "system",
		Content: nlp.SystemPrompt(req.Identity.Enhanced, req.Settings, now()),
	})

	if req.Settings.MemoryEnabled && req.Identity.Authenticated() && a.Memory != nil {
		profile, err := a.Memory.Profile(ctx, req.Identity.UserID)
		if err != nil {
			logger.Warn("memory: profile lookup failed, continuing without memory",
				"user_id", req.Identity.UserID,
				"err", err,
			)
		} else if summary := Summarize(profile); summary != "" {
			msgs = append(msgs, nlp.Message{Role: "system", Content: summary})
		}
	}

	for _, m := range recent {
		msgs = append(msgs, nlp.Message{Role: string(m.Role), Content: m.Content})
	}
	return msgs, nil
}

// Summarize renders the non-empty parts of a profile as plain sentences,
// one per line. It returns "" for an empty profile.
func Summarize(p Profile) string {
	var parts []string
	if len(p.PersonalInfo) > 0 {
		parts = append(parts, "User's personal information: "+pairs(p.PersonalInfo)+".")
	}
	if len(p.Preferences) > 0 {
		parts = append(parts, "User's preferences: "+pairs(p.Preferences)+".")
	}
	if len(p.Interests) > 0 {
		parts = append(parts, "User's interests: "+strings.Join(p.Interests, ", ")+".")
	}
	if len(p.Topics) > 0 {
		parts = append(parts, "Recent conversation topics: "+strings.Join(keepLast(p.Topics, recentTopics), ", ")+".")
	}
	return strings.Join(parts, "\n")
}

// pairs formats a map as "k: v, k: v" in key order.
func pairs(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + ": " + m[k]
	}
	return strings.Join(out, ", ")
}
