package matrix

import (
	"context"
	"encoding/json"
	"errors"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

var _ mautrix.SyncStore = (*KVSyncStore)(nil)

// KVSyncStore implements mautrix.SyncStore on the engine's key/value store,
// so the bot resumes from the last next_batch token after a restart instead
// of replaying room history. Values live under matrix-sync/<user>/<key>.
type KVSyncStore struct {
	kv kv.Store
}

// NewKVSyncStore returns a sync store backed by s.
func NewKVSyncStore(s kv.Store) *KVSyncStore {
	return &KVSyncStore{kv: s}
}

func (s *KVSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.save(ctx, userID, "filter_id", filterID)
}

// LoadFilterID returns ("", nil) when no filter has been saved yet.
func (s *KVSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, userID, "filter_id")
}

func (s *KVSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.save(ctx, userID, "next_batch", nextBatchToken)
}

// LoadNextBatch returns ("", nil) on first run.
func (s *KVSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.load(ctx, userID, "next_batch")
}

func syncKey(userID id.UserID, key string) string {
	return kv.KeyMatrixSyncPrefix + userID.String() + "/" + key
}

func (s *KVSyncStore) save(ctx context.Context, userID id.UserID, key, value string) error {
	return kv.Save(ctx, s.kv, syncKey(userID, key), value)
}

func (s *KVSyncStore) load(ctx context.Context, userID id.UserID, key string) (string, error) {
	raw, err := s.kv.Get(ctx, syncKey(userID, key))
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", err
	}
	return value, nil
}
