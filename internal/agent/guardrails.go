package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/state"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

const (
	// Messages longer than this are rejected without calling the
	// moderation service at all.
	defaultMaxMessageLength = 10000

	defaultBlockedMessage = "I'm sorry, but I can't help with that message. " +
		"Please rephrase it and try again."
)

var (
	spamPattern = regexp.MustCompile(`(?i)(viagra|casino|lottery|jackpot|click here|free money|wire transfer|crypto giveaway)`)
	urlPattern  = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)

	profanityWords = []string{"fuck", "shit", "bitch", "asshole", "cunt"}
)

// Guardrails evaluates the safety of the last user message. It prefers
// the provider's moderation capability and falls back to local
// heuristic checks when the remote call fails, so a moderation outage
// never blocks the pipeline.
type Guardrails struct {
	Base
}

func NewGuardrails(p provider.Provider, cfg Config) *Guardrails {
	return &Guardrails{Base: NewBase("guardrails", p, cfg)}
}

func (g *Guardrails) Execute(ctx context.Context, conv *state.Conversation) error {
	msg := conv.LastUserMessage()
	if msg == "" {
		return nil
	}

	maxLen := g.Config().Int("max_message_length", defaultMaxMessageLength)
	if utf8.RuneCountInString(msg) > maxLen {
		g.block(conv, fmt.Sprintf("message exceeds %d characters", maxLen))
		return nil
	}

	if reason, unsafe := g.moderate(ctx, msg); unsafe {
		g.block(conv, reason)
		return nil
	}

	conv.Set("content_safe", true)
	return nil
}

// moderate tries the remote moderation capability first and falls back
// to the heuristic checks on any failure.
func (g *Guardrails) moderate(ctx context.Context, msg string) (string, bool) {
	mod, ok := g.Provider().(provider.Moderator)
	if !ok {
		return g.heuristics(msg)
	}

	result, err := mod.Moderate(ctx, msg)
	if err != nil {
		logx.Warn().Err(err).Str("agent", g.Name()).Msg("moderation call failed, using heuristic checks")
		return g.heuristics(msg)
	}

	if result.Flagged {
		reason := "flagged by moderation"
		if len(result.Categories) > 0 {
			reason = fmt.Sprintf("flagged by moderation: %s", strings.Join(result.Categories, ", "))
		}
		return reason, true
	}
	return "", false
}

// heuristics is the local fallback: pattern-based spam, URL and
// profanity detection plus an all-caps shouting check.
func (g *Guardrails) heuristics(msg string) (string, bool) {
	if spamPattern.MatchString(msg) {
		return "spam pattern detected", true
	}

	// Aggressive on purpose; configurable until policy settles.
	if g.Config().Bool("block_urls", true) && urlPattern.MatchString(msg) {
		return "message contains a URL", true
	}

	lower := strings.ToLower(msg)
	for _, word := range profanityWords {
		if strings.Contains(lower, word) {
			return "profanity detected", true
		}
	}

	if capsRatio(msg) > 0.5 {
		return "excessive capitalization", true
	}

	return "", false
}

func (g *Guardrails) block(conv *state.Conversation, reason string) {
	logx.Info().Str("agent", g.Name()).Str("reason", reason).
		Str("conversationID", conv.ConversationID).Msg("message blocked")

	conv.Set("content_safe", false)
	conv.Set("blocked", true)
	conv.Set("block_reason", reason)
	conv.AddMessage(state.RoleAssistant,
		g.Config().String("blocked_message", defaultBlockedMessage),
		map[string]any{"agent": g.Name(), "blocked": true})
}

// capsRatio returns the share of letters that are uppercase. Short
// messages are exempt so "OK" and friends pass.
func capsRatio(msg string) float64 {
	var letters, upper int
	for _, r := range msg {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < 10 {
		return 0
	}
	return float64(upper) / float64(letters)
}
