package guilds

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory guild store for tests and local runs.
type MemoryStore struct {
	mutex sync.Mutex
	byID  map[string]Guild
}

// NewMemoryStore constructs an empty in-memory guild store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Guild)}
}

// Save inserts or replaces a guild.
func (store *MemoryStore) Save(ctx context.Context, guild Guild) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.byID[guild.ID] = guild
	return nil
}

// List returns all guilds ordered by creation time.
func (store *MemoryStore) List(ctx context.Context) ([]Guild, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	listed := make([]Guild, 0, len(store.byID))
	for _, guild := range store.byID {
		listed = append(listed, guild)
	}
	sort.Slice(listed, func(left, right int) bool {
		return listed[left].CreatedAt.Before(listed[right].CreatedAt)
	})
	return listed, nil
}

// Delete removes a guild by id.
func (store *MemoryStore) Delete(ctx context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, ok := store.byID[id]; !ok {
		return fmt.Errorf("guild_store.delete: %w", ErrGuildNotFound)
	}
	delete(store.byID, id)
	return nil
}
