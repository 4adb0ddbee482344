package state

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in the conversation log.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// TraceEntry records one node execution during a workflow run.
type TraceEntry struct {
	Name       string         `json:"name"`
	Node       string         `json:"node"`
	ExecutedAt time.Time      `json:"executed_at"`
	LatencyMS  int64          `json:"latency_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Conversation is the mutable per-conversation record threaded through
// a workflow run. Messages and Trace are append-only during a run;
// Data and Metadata are unordered string-keyed bags. A conversation is
// owned by exactly one run at a time; callers serialize requests per
// conversation id.
type Conversation struct {
	ConversationID string         `json:"conversation_id"`
	Messages       []Message      `json:"messages"`
	Data           map[string]any `json:"data"`
	Trace          []TraceEntry   `json:"trace"`
	Metadata       map[string]any `json:"metadata"`
}

// New creates a fresh conversation for the given id.
func New(id string) *Conversation {
	return &Conversation{
		ConversationID: id,
		Messages:       []Message{},
		Data:           make(map[string]any),
		Trace:          []TraceEntry{},
		Metadata:       make(map[string]any),
	}
}

// AddMessage appends a message with the current timestamp.
func (c *Conversation) AddMessage(role Role, content string, metadata map[string]any) {
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})
}

// LastUserMessage returns the content of the most recent user message,
// or the empty string if none exists.
func (c *Conversation) LastUserMessage() string {
	return c.lastMessage(RoleUser)
}

// LastAssistantMessage returns the content of the most recent assistant
// message, or the empty string if none exists.
func (c *Conversation) LastAssistantMessage() string {
	return c.lastMessage(RoleAssistant)
}

func (c *Conversation) lastMessage(role Role) string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return c.Messages[i].Content
		}
	}
	return ""
}

// RecentMessages returns up to the last n messages in order.
func (c *Conversation) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// Get retrieves a data value by key.
func (c *Conversation) Get(key string) (any, bool) {
	v, ok := c.Data[key]
	return v, ok
}

// GetString retrieves a data value as a string, returning the empty
// string when the key is missing or holds a non-string value.
func (c *Conversation) GetString(key string) string {
	if v, ok := c.Data[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetBool retrieves a data value as a bool, defaulting to false.
func (c *Conversation) GetBool(key string) bool {
	if v, ok := c.Data[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Set stores a data value.
func (c *Conversation) Set(key string, value any) {
	c.Data[key] = value
}

// Delete removes a data value.
func (c *Conversation) Delete(key string) {
	delete(c.Data, key)
}

// AddTrace appends an execution trace entry.
func (c *Conversation) AddTrace(entry TraceEntry) {
	c.Trace = append(c.Trace, entry)
}

// SetMeta stores a metadata value.
func (c *Conversation) SetMeta(key string, value any) {
	c.Metadata[key] = value
}

// Meta retrieves a metadata value by key.
func (c *Conversation) Meta(key string) (any, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// Dump serializes the conversation record.
func (c *Conversation) Dump() ([]byte, error) {
	return json.Marshal(c)
}

// Load deserializes a conversation record.
func Load(data []byte) (*Conversation, error) {
	var c Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Data == nil {
		c.Data = make(map[string]any)
	}
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	return &c, nil
}
