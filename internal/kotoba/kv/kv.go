// Package kv is the persistence adapter: a flat key/value store of JSON
// documents. Each component keeps its whole state under one key and
// rewrites it on every mutation, so Get and Set are the whole contract.
//
// Writes are synchronous. A successful Set has reached the backend before it
// returns.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the engine.
const (
	KeyConversations = "conversations"
	KeyProfiles      = "memory-profiles"
	KeySettings      = "settings"

	// KeyMatrixRooms maps Matrix rooms to their current conversation.
	KeyMatrixRooms = "matrix-rooms"
	// KeyMatrixSyncPrefix namespaces the Matrix binding's sync tokens.
	KeyMatrixSyncPrefix = "matrix-sync/"
)

var (
	// ErrNotFound is returned by Get when the key has never been set.
	ErrNotFound = errors.New("kv: key not found")
	// ErrInvalidJSON is returned by Set when value is not a JSON document.
	ErrInvalidJSON = errors.New("kv: value is not valid JSON")
)

// Store is the read/write interface over a key/value backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Set stores value under key, replacing any previous document.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Load decodes the document under key into v. It reports false, with a nil
// error, when the key is absent.
func Load(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return true, nil
}

// Save encodes v as JSON and stores it under key.
func Save(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
