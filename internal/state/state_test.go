package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLastMessageLookup(t *testing.T) {
	c := New("conv-1")
	c.AddMessage(RoleUser, "a", nil)
	c.AddMessage(RoleAssistant, "b", nil)
	c.AddMessage(RoleUser, "c", nil)

	assert.Equal(t, "c", c.LastUserMessage())
	assert.Equal(t, "b", c.LastAssistantMessage())
}

func TestLastMessageLookupEmpty(t *testing.T) {
	c := New("conv-1")
	assert.Equal(t, "", c.LastUserMessage())
	assert.Equal(t, "", c.LastAssistantMessage())

	c.AddMessage(RoleSystem, "persona", nil)
	assert.Equal(t, "", c.LastUserMessage())
}

func TestRecentMessages(t *testing.T) {
	c := New("conv-1")
	for i := 0; i < 15; i++ {
		c.AddMessage(RoleUser, "msg", nil)
	}

	assert.Len(t, c.RecentMessages(10), 10)
	assert.Len(t, c.RecentMessages(20), 15)
	assert.Len(t, c.RecentMessages(0), 15)

	// The window keeps the newest messages.
	c.AddMessage(RoleAssistant, "latest", nil)
	window := c.RecentMessages(3)
	assert.Equal(t, "latest", window[len(window)-1].Content)
}

func TestDataAccess(t *testing.T) {
	c := New("conv-1")

	c.Set("topic", "housing")
	c.Set("blocked", true)
	c.Set("score", 3)

	assert.Equal(t, "housing", c.GetString("topic"))
	assert.True(t, c.GetBool("blocked"))
	assert.Equal(t, "", c.GetString("score"))
	assert.False(t, c.GetBool("topic"))

	v, ok := c.Get("topic")
	require.True(t, ok)
	assert.Equal(t, "housing", v)

	c.Delete("topic")
	_, ok = c.Get("topic")
	assert.False(t, ok)
}

func TestTraceAppendOrder(t *testing.T) {
	c := New("conv-1")
	for _, name := range []string{"guardrails", "classifier", "composer"} {
		c.AddTrace(TraceEntry{Name: name, Node: name})
	}

	require.Len(t, c.Trace, 3)
	assert.Equal(t, "guardrails", c.Trace[0].Name)
	assert.Equal(t, "classifier", c.Trace[1].Name)
	assert.Equal(t, "composer", c.Trace[2].Name)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	c := New("conv-1")
	c.AddMessage(RoleUser, "hello", map[string]any{"source": "widget"})
	c.AddMessage(RoleAssistant, "hi there", nil)
	c.Set("topic", "general")
	c.AddTrace(TraceEntry{Name: "composer", Node: "compose", LatencyMS: 12})
	c.SetMeta("workflow_name", "newcomer-assistant")

	raw, err := c.Dump()
	require.NoError(t, err)

	loaded, err := Load(raw)
	require.NoError(t, err)

	assert.Equal(t, "conv-1", loaded.ConversationID)
	assert.Equal(t, "hi there", loaded.LastAssistantMessage())
	assert.Equal(t, "general", loaded.GetString("topic"))
	require.Len(t, loaded.Trace, 1)
	assert.Equal(t, int64(12), loaded.Trace[0].LatencyMS)

	name, ok := loaded.Meta("workflow_name")
	require.True(t, ok)
	assert.Equal(t, "newcomer-assistant", name)
}

func TestLoadInitializesMaps(t *testing.T) {
	loaded, err := Load([]byte(`{"conversation_id":"conv-2"}`))
	require.NoError(t, err)

	// Maps must be usable even when absent from the stored record.
	loaded.Set("topic", "legal")
	loaded.SetMeta("workflow_name", "wf")
	assert.Equal(t, "legal", loaded.GetString("topic"))
}
