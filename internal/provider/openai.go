package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/wpchat/agentcore/internal/state"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

const defaultCallTimeout = 30 * time.Second

// OpenAIConfig configures an OpenAI-backed provider. BaseURL may point
// at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Models  []string
	Timeout time.Duration
}

// OpenAI implements Provider over the OpenAI chat completions API,
// plus the Moderator and Streamer capabilities.
type OpenAI struct {
	name    string
	client  *openai.Client
	model   string
	models  []string
	timeout time.Duration
}

var (
	_ Provider  = (*OpenAI)(nil)
	_ Moderator = (*OpenAI)(nil)
	_ Streamer  = (*OpenAI)(nil)
)

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider %q: api key not set", cfg.Name)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	models := cfg.Models
	if len(models) == 0 {
		models = []string{model}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &OpenAI{
		name:    name,
		client:  openai.NewClientWithConfig(apiCfg),
		model:   model,
		models:  models,
		timeout: timeout,
	}, nil
}

func (p *OpenAI) Name() string {
	return p.name
}

func (p *OpenAI) Models() []string {
	return p.models
}

// Complete sends the message list to the chat completions endpoint.
func (p *OpenAI) Complete(ctx context.Context, msgs []state.Message, opts CompletionOptions) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(msgs),
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, NewError(p.name, "complete", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(p.name, "complete", errors.New("no choices returned"))
	}

	choice := resp.Choices[0]
	return &Completion{
		Content: choice.Message.Content,
		Metadata: map[string]any{
			"provider":          p.name,
			"model":             resp.Model,
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
			"finish_reason":     string(choice.FinishReason),
		},
	}, nil
}

// Extract requests a single forced function call conforming to the
// schema. Temperature is pinned to zero so extraction stays
// deterministic regardless of caller options.
func (p *OpenAI) Extract(ctx context.Context, msgs []state.Message, schema ExtractionSchema) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	zero := float32(0)
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    toChatMessages(msgs),
		Temperature: &zero,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: schema.Name},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, NewError(p.name, "extract", err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, NewError(p.name, "extract", errors.New("no structured result returned"))
	}

	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	var decoded map[string]any
	if err := json.Unmarshal([]byte(args), &decoded); err != nil {
		return nil, NewError(p.name, "extract", fmt.Errorf("decode arguments: %w", err))
	}

	if err := validateAgainstSchema(schema.Parameters, decoded); err != nil {
		return nil, NewError(p.name, "extract", err)
	}
	return decoded, nil
}

// Moderate runs the input through the moderation endpoint.
func (p *OpenAI) Moderate(ctx context.Context, input string) (*ModerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Moderations(ctx, openai.ModerationRequest{Input: input})
	if err != nil {
		return nil, NewError(p.name, "moderate", err)
	}
	if len(resp.Results) == 0 {
		return nil, NewError(p.name, "moderate", errors.New("no moderation result returned"))
	}

	result := resp.Results[0]
	return &ModerationResult{
		Flagged:    result.Flagged,
		Categories: flaggedCategories(result.Categories),
	}, nil
}

// Stream sends the completion request in streaming mode, invoking fn
// for every content delta.
func (p *OpenAI) Stream(ctx context.Context, msgs []state.Message, opts CompletionOptions, fn func(chunk string) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	model := p.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(msgs),
		Stream:   true,
	}
	if opts.Temperature > 0 {
		req.Temperature = &opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return NewError(p.name, "stream", err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return NewError(p.name, "stream", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

// Health checks reachability by listing models.
func (p *OpenAI) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.client.ListModels(ctx); err != nil {
		logx.Warn().Err(err).Str("provider", p.name).Msg("health check failed")
		return false
	}
	return true
}

// EstimateCost looks up the default model's pricing. No I/O.
func (p *OpenAI) EstimateCost(inputTokens, outputTokens int) float64 {
	return estimateCost(p.model, inputTokens, outputTokens)
}

func toChatMessages(msgs []state.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		var role string
		switch m.Role {
		case state.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case state.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}

func validateAgainstSchema(schema map[string]any, doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("schema validation: %v", result.Errors())
	}
	return nil
}

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	if c.Hate || c.HateThreatening {
		out = append(out, "hate")
	}
	if c.Harassment || c.HarassmentThreatening {
		out = append(out, "harassment")
	}
	if c.SelfHarm || c.SelfHarmIntent || c.SelfHarmInstructions {
		out = append(out, "self-harm")
	}
	if c.Sexual || c.SexualMinors {
		out = append(out, "sexual")
	}
	if c.Violence || c.ViolenceGraphic {
		out = append(out, "violence")
	}
	return out
}
