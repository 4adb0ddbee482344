package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/state"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

const (
	defaultTemperature   = 0.7
	defaultMaxTokens     = 800
	defaultHistoryWindow = 10

	defaultPersona = "You are a friendly assistant for a community services website. " +
		"Answer briefly, plainly and helpfully. If you do not know something, say so " +
		"and point the visitor to a human."

	defaultFallback = "Sorry, I'm having trouble answering right now. " +
		"Please try again in a moment or contact our support team."
)

// lookupKeys are data keys accumulated by upstream lookup agents whose
// results get folded into the system prompt when present.
var lookupKeys = []string{"events", "offers", "content"}

// Composer produces the assistant reply: persona plus contextual
// fragments as the system prompt, the recent history as the message
// list. A failed completion degrades to a topic-keyed canned fallback
// so the visitor always gets an answer.
type Composer struct {
	Base
}

func NewComposer(p provider.Provider, cfg Config) *Composer {
	return &Composer{Base: NewBase("composer", p, cfg)}
}

func (a *Composer) Execute(ctx context.Context, conv *state.Conversation) error {
	cfg := a.Config()

	msgs := []state.Message{{Role: state.RoleSystem, Content: a.systemPrompt(conv)}}
	msgs = append(msgs, conv.RecentMessages(cfg.Int("history_window", defaultHistoryWindow))...)

	completion, err := a.Provider().Complete(ctx, msgs, provider.CompletionOptions{
		Model:       cfg.String("model", ""),
		Temperature: float32(cfg.Float("temperature", defaultTemperature)),
		MaxTokens:   cfg.Int("max_tokens", defaultMaxTokens),
	})
	if err != nil {
		logx.Warn().Err(err).Str("agent", a.Name()).
			Str("conversationID", conv.ConversationID).
			Msg("completion failed, using fallback message")
		conv.AddMessage(state.RoleAssistant, a.fallback(conv.GetString("topic")),
			map[string]any{"agent": a.Name(), "fallback": true})
		return nil
	}

	conv.AddMessage(state.RoleAssistant, completion.Content,
		map[string]any{"agent": a.Name()})
	if model, ok := completion.Metadata["model"]; ok {
		conv.SetMeta("model_used", model)
	}
	if usage, ok := completion.Metadata["total_tokens"]; ok {
		conv.SetMeta("token_usage", usage)
	}
	return nil
}

func (a *Composer) systemPrompt(conv *state.Conversation) string {
	var b strings.Builder
	b.WriteString(a.Config().String("persona", defaultPersona))

	if location := conv.GetString("location"); location != "" {
		fmt.Fprintf(&b, "\n\nThe visitor is in %s; prefer local information.", location)
	}
	if topic := conv.GetString("topic"); topic != "" {
		fmt.Fprintf(&b, "\nThe conversation topic is %s.", topic)
	}
	if conv.GetString("urgency") == "high" {
		b.WriteString("\nThe request is urgent; lead with the most actionable next step.")
	}

	for _, key := range lookupKeys {
		v, ok := conv.Get(key)
		if !ok {
			continue
		}
		if raw, err := json.Marshal(v); err == nil {
			fmt.Fprintf(&b, "\nRelevant %s: %s", key, raw)
		}
	}

	return b.String()
}

// fallback returns the canned reply for the topic, or the generic one.
func (a *Composer) fallback(topic string) string {
	if topic != "" {
		if msg, ok := a.Config().StringMap("fallbacks")[topic]; ok {
			return msg
		}
	}
	return a.Config().String("fallback_message", defaultFallback)
}
