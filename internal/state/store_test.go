package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	c := New("conv-1")
	c.AddMessage(RoleUser, "hello", nil)
	require.NoError(t, store.Save(ctx, c))

	loaded, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", loaded.LastUserMessage())

	// The stored record is detached from the live instance.
	c.AddMessage(RoleUser, "second", nil)
	loaded, err = store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 1)
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New("conv-1")))
	require.NoError(t, store.Delete(ctx, "conv-1"))

	_, err := store.Load(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadOrCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	t.Run("creates fresh for unknown id", func(t *testing.T) {
		c, err := LoadOrCreate(ctx, store, "new-conv")
		require.NoError(t, err)
		assert.Equal(t, "new-conv", c.ConversationID)
		assert.Empty(t, c.Messages)
	})

	t.Run("generates id when empty", func(t *testing.T) {
		c, err := LoadOrCreate(ctx, store, "")
		require.NoError(t, err)
		assert.NotEmpty(t, c.ConversationID)
	})

	t.Run("rehydrates existing", func(t *testing.T) {
		existing := New("known-conv")
		existing.AddMessage(RoleUser, "earlier message", nil)
		require.NoError(t, store.Save(ctx, existing))

		c, err := LoadOrCreate(ctx, store, "known-conv")
		require.NoError(t, err)
		assert.Equal(t, "earlier message", c.LastUserMessage())
	})
}
