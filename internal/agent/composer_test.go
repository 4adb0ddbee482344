package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/state"
)

func TestComposerAppendsReplyAndMetadata(t *testing.T) {
	var gotOpts provider.CompletionOptions
	p := &stubProvider{
		completeFn: func(_ context.Context, msgs []state.Message, opts provider.CompletionOptions) (*provider.Completion, error) {
			gotOpts = opts
			require.NotEmpty(t, msgs)
			assert.Equal(t, state.RoleSystem, msgs[0].Role)
			return &provider.Completion{
				Content: "Here is some housing info.",
				Metadata: map[string]any{
					"model":        "stub-model",
					"total_tokens": 42,
				},
			}, nil
		},
	}
	c := NewComposer(p, nil)

	conv := state.New("conv-1")
	conv.AddMessage(state.RoleUser, "I need help finding housing", nil)

	require.NoError(t, c.Execute(context.Background(), conv))

	assert.Equal(t, "Here is some housing info.", conv.LastAssistantMessage())
	assert.InEpsilon(t, 0.7, float64(gotOpts.Temperature), 1e-6)
	assert.Equal(t, 800, gotOpts.MaxTokens)

	model, ok := conv.Meta("model_used")
	require.True(t, ok)
	assert.Equal(t, "stub-model", model)
	usage, ok := conv.Meta("token_usage")
	require.True(t, ok)
	assert.Equal(t, 42, usage)
}

func TestComposerSystemPromptFragments(t *testing.T) {
	var systemPrompt string
	p := &stubProvider{
		completeFn: func(_ context.Context, msgs []state.Message, _ provider.CompletionOptions) (*provider.Completion, error) {
			systemPrompt = msgs[0].Content
			return &provider.Completion{Content: "ok", Metadata: map[string]any{}}, nil
		},
	}
	c := NewComposer(p, Config{"persona": "You are a test persona."})

	conv := state.New("conv-1")
	conv.Set("location", "Toronto")
	conv.Set("topic", "housing")
	conv.Set("urgency", "high")
	conv.Set("events", []string{"housing fair on Saturday"})
	conv.AddMessage(state.RoleUser, "help", nil)

	require.NoError(t, c.Execute(context.Background(), conv))

	assert.Contains(t, systemPrompt, "You are a test persona.")
	assert.Contains(t, systemPrompt, "Toronto")
	assert.Contains(t, systemPrompt, "housing")
	assert.Contains(t, systemPrompt, "urgent")
	assert.Contains(t, systemPrompt, "housing fair on Saturday")
}

func TestComposerHistoryWindow(t *testing.T) {
	var gotLen int
	p := &stubProvider{
		completeFn: func(_ context.Context, msgs []state.Message, _ provider.CompletionOptions) (*provider.Completion, error) {
			gotLen = len(msgs)
			return &provider.Completion{Content: "ok", Metadata: map[string]any{}}, nil
		},
	}
	c := NewComposer(p, nil)

	conv := state.New("conv-1")
	for i := 0; i < 25; i++ {
		conv.AddMessage(state.RoleUser, "msg", nil)
	}

	require.NoError(t, c.Execute(context.Background(), conv))

	// System prompt plus the ten most recent history messages.
	assert.Equal(t, 11, gotLen)
}

// A failed completion degrades to the topic-keyed canned fallback.
func TestComposerTopicFallbackOnFailure(t *testing.T) {
	p := &stubProvider{
		completeFn: func(context.Context, []state.Message, provider.CompletionOptions) (*provider.Completion, error) {
			return nil, provider.NewError("stub", "complete", errors.New("model unavailable"))
		},
	}
	c := NewComposer(p, Config{
		"fallbacks": map[string]any{
			"housing": "Our housing directory is at the community centre front desk.",
		},
		"fallback_message": "Sorry, please try again later.",
	})

	t.Run("topic-specific fallback", func(t *testing.T) {
		conv := state.New("conv-1")
		conv.Set("topic", "housing")
		conv.AddMessage(state.RoleUser, "help with housing", nil)

		require.NoError(t, c.Execute(context.Background(), conv))
		assert.Equal(t, "Our housing directory is at the community centre front desk.",
			conv.LastAssistantMessage())
	})

	t.Run("generic fallback for unknown topic", func(t *testing.T) {
		conv := state.New("conv-2")
		conv.Set("topic", "entertainment")
		conv.AddMessage(state.RoleUser, "help", nil)

		require.NoError(t, c.Execute(context.Background(), conv))
		assert.Equal(t, "Sorry, please try again later.", conv.LastAssistantMessage())
	})

	t.Run("generic fallback without topic", func(t *testing.T) {
		conv := state.New("conv-3")
		conv.AddMessage(state.RoleUser, "help", nil)

		require.NoError(t, c.Execute(context.Background(), conv))
		assert.Equal(t, "Sorry, please try again later.", conv.LastAssistantMessage())
	})
}
