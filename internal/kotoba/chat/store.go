package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

var (
	// ErrNotFound is returned when a conversation id is unknown.
	ErrNotFound = errors.New("chat: conversation not found")
	// ErrIndex is returned for a message index outside the conversation.
	ErrIndex = errors.New("chat: message index out of range")
	// ErrNotAssistant is returned when removing a message that is not an
	// assistant reply.
	ErrNotAssistant = errors.New("chat: message is not an assistant reply")
)

// Store holds all conversations in memory and persists the full snapshot
// under kv.KeyConversations on every mutation. A mutation whose write fails
// is rolled back and its error returned.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewStore returns an empty Store. Call Load to restore persisted state.
func NewStore(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     backend,
		logger: logger,
		now:    time.Now,
		convs:  make(map[string]*Conversation),
	}
}

// Load replaces in-memory state with the persisted snapshot, if any.
func (s *Store) Load(ctx context.Context) error {
	var snapshot []Conversation
	found, err := kv.Load(ctx, s.kv, kv.KeyConversations, &snapshot)
	if err != nil {
		return fmt.Errorf("chat: load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = make(map[string]*Conversation, len(snapshot))
	if !found {
		return nil
	}
	for i := range snapshot {
		c := snapshot[i]
		s.convs[c.ID] = &c
	}
	s.logger.Info("chat: conversations restored", "count", len(snapshot))
	return nil
}

// Create starts an empty conversation titled DefaultTitle.
func (s *Store) Create(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Conversation{
		ID:        "chat_" + uuid.New().String(),
		Title:     DefaultTitle,
		Messages:  []Message{},
		CreatedAt: s.now().UnixMilli(),
	}
	s.convs[c.ID] = c
	if err := s.persistLocked(ctx); err != nil {
		delete(s.convs, c.ID)
		return "", err
	}
	return c.ID, nil
}

// Append adds a message to the conversation. The first user message sets
// the title. Timestamps never go backwards within a conversation.
func (s *Store) Append(ctx context.Context, id string, role Role, content string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	ts := s.now().UnixMilli()
	if last := c.LastActivity(); len(c.Messages) > 0 && ts < last {
		ts = last
	}
	msg := Message{Role: role, Content: content, Timestamp: ts}

	prev := c.clone()
	if role == RoleUser && !c.hasUserMessage() {
		c.Title = deriveTitle(content)
	}
	c.Messages = append(c.Messages, msg)

	if err := s.persistLocked(ctx); err != nil {
		*c = prev
		return Message{}, err
	}
	return msg, nil
}

// RemoveMessage deletes the assistant reply at index, for regeneration.
func (s *Store) RemoveMessage(ctx context.Context, id string, index int) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if index < 0 || index >= len(c.Messages) {
		return Message{}, fmt.Errorf("%w: %d of %d", ErrIndex, index, len(c.Messages))
	}
	removed := c.Messages[index]
	if removed.Role != RoleAssistant {
		return Message{}, ErrNotAssistant
	}

	prev := c.clone()
	c.Messages = append(c.Messages[:index:index], c.Messages[index+1:]...)
	if err := s.persistLocked(ctx); err != nil {
		*c = prev
		return Message{}, err
	}
	return removed, nil
}

// Delete removes a conversation. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return nil
	}
	delete(s.convs, id)
	if err := s.persistLocked(ctx); err != nil {
		s.convs[id] = c
		return err
	}
	return nil
}

// ClearAll removes every conversation.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.convs
	s.convs = make(map[string]*Conversation)
	if err := s.persistLocked(ctx); err != nil {
		s.convs = prev
		return err
	}
	return nil
}

// Get returns a copy of the conversation.
func (s *Store) Get(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		return Conversation{}, false
	}
	return c.clone(), true
}

// Exists reports whether id is a live conversation.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.convs[id]
	return ok
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

// List returns summaries ordered by last activity, newest first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.convs))
	for _, c := range s.sortedLocked() {
		out = append(out, Summary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
			LastActivity: c.LastActivity(),
		})
	}
	return out
}

// Sweep evicts the least recently active conversations until at most max
// remain. Conversations for which exempt returns true are never evicted and
// still count towards max. It returns the evicted ids.
func (s *Store) Sweep(ctx context.Context, max int, exempt func(id string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.convs) - max
	if excess <= 0 {
		return nil, nil
	}

	ordered := s.sortedLocked()
	var evicted []*Conversation
	for i := len(ordered) - 1; i >= 0 && len(evicted) < excess; i-- {
		c := ordered[i]
		if exempt != nil && exempt(c.ID) {
			continue
		}
		evicted = append(evicted, c)
	}
	if len(evicted) == 0 {
		return nil, nil
	}

	ids := make([]string, len(evicted))
	for i, c := range evicted {
		ids[i] = c.ID
		delete(s.convs, c.ID)
	}
	if err := s.persistLocked(ctx); err != nil {
		for _, c := range evicted {
			s.convs[c.ID] = c
		}
		return nil, err
	}
	return ids, nil
}

// sortedLocked orders conversations by last activity, newest first, with
// id as a tie-breaker so the order is stable.
func (s *Store) sortedLocked() []*Conversation {
	out := make([]*Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].LastActivity(), out[j].LastActivity()
		if ai != aj {
			return ai > aj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) persistLocked(ctx context.Context) error {
	ordered := s.sortedLocked()
	snapshot := make([]Conversation, len(ordered))
	for i, c := range ordered {
		snapshot[i] = *c
	}
	if err := kv.Save(ctx, s.kv, kv.KeyConversations, snapshot); err != nil {
		return fmt.Errorf("chat: persist: %w", err)
	}
	return nil
}
