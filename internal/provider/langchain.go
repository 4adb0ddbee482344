package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/wpchat/agentcore/internal/state"
)

// LangChain adapts any langchaingo llms.Model to the Provider
// capability, which covers local and OpenAI-compatible backends the
// dedicated client does not (ollama, mistral, and friends). It has no
// moderation capability; guardrails falls back to its local heuristics.
type LangChain struct {
	name    string
	model   llms.Model
	modelID string
	timeout time.Duration
}

var _ Provider = (*LangChain)(nil)

// NewLangChain wraps the given model. modelID is the identifier
// reported in completion metadata and used for cost estimates.
func NewLangChain(name string, model llms.Model, modelID string, timeout time.Duration) *LangChain {
	if name == "" {
		name = "langchain"
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &LangChain{name: name, model: model, modelID: modelID, timeout: timeout}
}

func (p *LangChain) Name() string {
	return p.name
}

func (p *LangChain) Models() []string {
	return []string{p.modelID}
}

func (p *LangChain) Complete(ctx context.Context, msgs []state.Message, opts CompletionOptions) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	callOpts := []llms.CallOption{}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(float64(opts.Temperature)))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}

	resp, err := p.model.GenerateContent(ctx, toLLMSMessages(msgs), callOpts...)
	if err != nil {
		return nil, NewError(p.name, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(p.name, "complete", errors.New("no choices returned"))
	}

	choice := resp.Choices[0]
	metadata := map[string]any{
		"provider":      p.name,
		"model":         p.modelID,
		"finish_reason": choice.StopReason,
	}
	// GenerationInfo keys are backend-flavored; normalize to the
	// snake_case keys the rest of the pipeline reads.
	for key, norm := range map[string]string{
		"PromptTokens":     "prompt_tokens",
		"CompletionTokens": "completion_tokens",
		"TotalTokens":      "total_tokens",
	} {
		if v, ok := choice.GenerationInfo[key]; ok {
			metadata[norm] = v
		}
	}

	return &Completion{Content: choice.Content, Metadata: metadata}, nil
}

func (p *LangChain) Extract(ctx context.Context, msgs []state.Message, schema ExtractionSchema) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.model.GenerateContent(ctx, toLLMSMessages(msgs),
		llms.WithTemperature(0),
		llms.WithTools([]llms.Tool{{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		}}),
	)
	if err != nil {
		return nil, NewError(p.name, "extract", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(p.name, "extract", errors.New("no choices returned"))
	}

	for _, call := range resp.Choices[0].ToolCalls {
		if call.FunctionCall == nil || call.FunctionCall.Name != schema.Name {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(call.FunctionCall.Arguments), &decoded); err != nil {
			return nil, NewError(p.name, "extract", fmt.Errorf("decode arguments: %w", err))
		}
		if err := validateAgainstSchema(schema.Parameters, decoded); err != nil {
			return nil, NewError(p.name, "extract", err)
		}
		return decoded, nil
	}

	return nil, NewError(p.name, "extract", errors.New("no structured result returned"))
}

// Health probes the backend with a one-token generation.
func (p *LangChain) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, "ping")},
		llms.WithMaxTokens(1),
	)
	return err == nil
}

func (p *LangChain) EstimateCost(inputTokens, outputTokens int) float64 {
	return estimateCost(p.modelID, inputTokens, outputTokens)
}

func toLLMSMessages(msgs []state.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		var role llms.ChatMessageType
		switch m.Role {
		case state.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case state.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
