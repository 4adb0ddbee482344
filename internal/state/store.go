package state

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Store.Load when no record exists for the id.
var ErrNotFound = errors.New("conversation not found")

// Store persists conversation records keyed by conversation id.
// Expiry policy belongs to the store, not the conversation.
type Store interface {
	// Load retrieves the conversation for the id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Conversation, error)
	// Save persists the conversation, applying the store's TTL.
	Save(ctx context.Context, c *Conversation) error
}

// LoadOrCreate rehydrates the conversation for the id, creating a fresh
// one when the store has no record. An empty id gets a generated one.
func LoadOrCreate(ctx context.Context, s Store, id string) (*Conversation, error) {
	if id == "" {
		return New(uuid.New().String()), nil
	}

	c, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return New(id), nil
		}
		return nil, errors.Wrapf(err, "load conversation %s", id)
	}
	return c, nil
}

// MemoryStore is an in-process Store for tests and local runs. Records
// are stored serialized so callers never share a live Conversation.
type MemoryStore struct {
	records map[string][]byte
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	return Load(raw)
}

func (m *MemoryStore) Save(_ context.Context, c *Conversation) error {
	raw, err := c.Dump()
	if err != nil {
		return errors.Wrap(err, "marshal conversation")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[c.ConversationID] = raw
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
