package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

// ErrAnonymous is returned when a profile is requested without a user id.
var ErrAnonymous = errors.New("memory: anonymous identities have no profile")

// Store holds every user's profile and persists the whole collection as
// one document under kv.KeyProfiles on each write.
type Store struct {
	kv     kv.Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	profiles map[string]*Profile
}

// Stats summarises a profile for the memory viewer.
type Stats struct {
	HistoryEntries int
	Topics         int
	PersonalFacts  int
	Interests      int
}

// NewStore returns an empty Store. Call Load to restore persisted profiles.
func NewStore(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:       backend,
		logger:   logger,
		now:      time.Now,
		profiles: make(map[string]*Profile),
	}
}

// Load replaces in-memory profiles with the persisted collection.
func (s *Store) Load(ctx context.Context) error {
	stored := map[string]*Profile{}
	if _, err := kv.Load(ctx, s.kv, kv.KeyProfiles, &stored); err != nil {
		return fmt.Errorf("memory: load: %w", err)
	}
	for _, p := range stored {
		p.normalize()
	}

	s.mu.Lock()
	s.profiles = stored
	s.mu.Unlock()
	return nil
}

// Profile returns a copy of the user's profile, creating and persisting the
// empty shape on first access.
func (s *Store) Profile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrAnonymous
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return p.clone(), nil
}

// Update applies fn to the user's profile and persists the collection. If
// the write fails the change is rolled back.
func (s *Store) Update(ctx context.Context, userID string, fn func(*Profile)) error {
	if userID == "" {
		return ErrAnonymous
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrCreateLocked(ctx, userID)
	if err != nil {
		return err
	}
	prev := p.clone()
	fn(p)
	p.LastActive = s.now()
	if err := s.persistLocked(ctx); err != nil {
		*p = prev
		return err
	}
	return nil
}

// Reset replaces the user's profile with the empty shape. Other users are
// untouched.
func (s *Store) Reset(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrAnonymous
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.profiles[userID]
	fresh := NewProfile(s.now())
	s.profiles[userID] = &fresh
	if err := s.persistLocked(ctx); err != nil {
		if had {
			s.profiles[userID] = prev
		} else {
			delete(s.profiles, userID)
		}
		return Profile{}, err
	}
	return fresh.clone(), nil
}

// Stats returns counts for the user's profile. Unknown users have zero
// counts; Stats never creates a profile.
func (s *Store) Stats(userID string) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return Stats{}
	}
	return Stats{
		HistoryEntries: len(p.ConversationHistory),
		Topics:         len(p.Topics),
		PersonalFacts:  len(p.PersonalInfo),
		Interests:      len(p.Interests),
	}
}

func (st Stats) String() string {
	return fmt.Sprintf("%d history entries, %d topics, %d personal facts, %d interests",
		st.HistoryEntries, st.Topics, st.PersonalFacts, st.Interests)
}

func (s *Store) getOrCreateLocked(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	fresh := NewProfile(s.now())
	s.profiles[userID] = &fresh
	if err := s.persistLocked(ctx); err != nil {
		delete(s.profiles, userID)
		return nil, err
	}
	s.logger.Debug("memory: profile created", "user_id", userID)
	return &fresh, nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := kv.Save(ctx, s.kv, kv.KeyProfiles, s.profiles); err != nil {
		return fmt.Errorf("memory: persist: %w", err)
	}
	return nil
}
