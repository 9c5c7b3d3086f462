package kv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/bdobrica/Kotoba/common/crypto"
)

// sealedStore encrypts every document before handing it to the inner
// store. The stored form is a JSON string holding base64(nonce|ciphertext),
// so the inner store still only ever sees JSON.
type sealedStore struct {
	inner  Store
	sealer *crypto.Sealer
}

// NewSealed wraps inner so that values are sealed at rest with key.
func NewSealed(inner Store, key []byte) (Store, error) {
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return nil, err
	}
	return &sealedStore{inner: inner, sealer: sealer}, nil
}

func (s *sealedStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("kv: %q is not a sealed value: %w", key, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("kv: decode sealed %q: %w", key, err)
	}
	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("kv: open %q: %w", key, err)
	}
	return json.RawMessage(plain), nil
}

func (s *sealedStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("kv: set %q: %w", key, ErrInvalidJSON)
	}
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return fmt.Errorf("kv: seal %q: %w", key, err)
	}
	wrapped, err := json.Marshal(base64.StdEncoding.EncodeToString(sealed))
	if err != nil {
		return fmt.Errorf("kv: wrap %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, wrapped)
}

func (s *sealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
