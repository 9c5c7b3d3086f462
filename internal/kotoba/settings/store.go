package settings

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

//go:embed schema.json
var schemaJSON string

var compiledSchema = jsonschema.MustCompileString("settings.schema.json", schemaJSON)

// Store keeps the current settings in memory and writes every change
// through to the persistence adapter.
type Store struct {
	kv     kv.Store
	logger *slog.Logger

	mu      sync.Mutex
	current Settings
}

// NewStore returns a Store holding Defaults until Load is called.
func NewStore(backend kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: backend, logger: logger, current: Defaults()}
}

// Load restores persisted settings. Saved fields are merged over Defaults,
// so documents written before a field existed still load. A document that
// fails schema validation is ignored and Defaults are kept.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, kv.KeySettings)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}

	loaded, err := decode(raw)
	if err != nil {
		s.logger.Warn("settings: stored document rejected, using defaults", "err", err)
		return nil
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the active settings.
func (s *Store) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update merges p into the current settings, validates and persists them.
// On error nothing changes.
func (s *Store) Update(ctx context.Context, p Patch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Apply(s.current)
	if err := next.Validate(); err != nil {
		return s.current, err
	}
	if err := kv.Save(ctx, s.kv, kv.KeySettings, next); err != nil {
		return s.current, fmt.Errorf("settings: persist: %w", err)
	}
	s.current = next
	return next, nil
}

// Reset restores and persists Defaults.
func (s *Store) Reset(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Defaults()
	if err := kv.Save(ctx, s.kv, kv.KeySettings, d); err != nil {
		return s.current, fmt.Errorf("settings: persist: %w", err)
	}
	s.current = d
	return d, nil
}

// decode validates raw against the schema and merges it over Defaults.
func decode(raw []byte) (Settings, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Settings{}, fmt.Errorf("settings: schema: %w", err)
	}

	out := Defaults()
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	return out, out.Validate()
}
