package matrix

import (
	"context"
	"fmt"
	"sync"

	"github.com/bdobrica/Kotoba/internal/kotoba/kv"
)

// RoomMap remembers which conversation each room is currently writing to.
// It is persisted as one document under kv.KeyMatrixRooms.
type RoomMap struct {
	kv kv.Store

	mu    sync.Mutex
	rooms map[string]string
}

// NewRoomMap returns an empty map; call Load to read the stored one.
func NewRoomMap(s kv.Store) *RoomMap {
	return &RoomMap{kv: s, rooms: map[string]string{}}
}

// Load replaces the in-memory map with the stored document.
func (m *RoomMap) Load(ctx context.Context) error {
	rooms := map[string]string{}
	if _, err := kv.Load(ctx, m.kv, kv.KeyMatrixRooms, &rooms); err != nil {
		return fmt.Errorf("matrix: load rooms: %w", err)
	}
	m.mu.Lock()
	m.rooms = rooms
	m.mu.Unlock()
	return nil
}

// Conversation returns the room's conversation id, or "" when it has none.
func (m *RoomMap) Conversation(roomID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID]
}

// Bind points roomID at convID. An empty convID unbinds the room, so its
// next message starts a new conversation.
func (m *RoomMap) Bind(ctx context.Context, roomID, convID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, had := m.rooms[roomID]
	if convID == "" {
		delete(m.rooms, roomID)
	} else {
		m.rooms[roomID] = convID
	}
	if err := kv.Save(ctx, m.kv, kv.KeyMatrixRooms, m.rooms); err != nil {
		if had {
			m.rooms[roomID] = prev
		} else {
			delete(m.rooms, roomID)
		}
		return fmt.Errorf("matrix: save rooms: %w", err)
	}
	return nil
}
