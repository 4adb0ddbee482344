package agent

import (
	"context"

	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/state"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

// Topics is the closed set of topics the classifier may assign.
var Topics = []string{
	"housing", "employment", "healthcare", "education", "entertainment",
	"legal", "transportation", "finance", "general",
}

// UrgencyLevels is the closed set of urgency values.
var UrgencyLevels = []string{"low", "medium", "high"}

const (
	DefaultTopic   = "general"
	DefaultUrgency = "medium"
)

const classifierInstructions = "You classify a visitor's chat message for a local services assistant. " +
	"Pick the single best topic and urgency, and extract a location, intent and entities when present."

// Classifier extracts topic, urgency and optional context fields from
// the last user message into the conversation data. Extraction failure
// is never fatal: the defaults keep the workflow moving.
type Classifier struct {
	Base
}

func NewClassifier(p provider.Provider, cfg Config) *Classifier {
	return &Classifier{Base: NewBase("classifier", p, cfg)}
}

func (c *Classifier) Execute(ctx context.Context, conv *state.Conversation) error {
	msg := conv.LastUserMessage()
	if msg == "" {
		return nil
	}

	fields, err := c.Provider().Extract(ctx, []state.Message{
		{Role: state.RoleSystem, Content: classifierInstructions},
		{Role: state.RoleUser, Content: msg},
	}, classificationSchema())
	if err != nil {
		logx.Warn().Err(err).Str("agent", c.Name()).
			Str("conversationID", conv.ConversationID).
			Msg("classification failed, using defaults")
		conv.Set("topic", DefaultTopic)
		conv.Set("urgency", DefaultUrgency)
		return nil
	}

	for _, key := range []string{"topic", "urgency", "location", "intent", "entities"} {
		if v, ok := fields[key]; ok {
			conv.Set(key, v)
		}
	}
	return nil
}

func classificationSchema() provider.ExtractionSchema {
	return provider.ExtractionSchema{
		Name:        "classify_message",
		Description: "Classify the user's message by topic and urgency.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"topic": map[string]any{
					"type": "string",
					"enum": Topics,
				},
				"urgency": map[string]any{
					"type": "string",
					"enum": UrgencyLevels,
				},
				"location": map[string]any{
					"type":        "string",
					"description": "City or region mentioned in the message, if any.",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Short phrase describing what the user wants.",
				},
				"entities": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required": []string{"topic", "urgency"},
		},
	}
}
