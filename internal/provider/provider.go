package provider

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/wpchat/agentcore/internal/state"
)

// CompletionOptions are per-call sampling options. Zero values fall
// back to the provider's defaults.
type CompletionOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Completion is the result of a completion call. Metadata carries the
// model actually used, token usage and the finish reason.
type Completion struct {
	Content  string
	Metadata map[string]any
}

// ExtractionSchema describes the structured output requested from the
// model, expressed as a JSON schema for a single function call.
type ExtractionSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ModerationResult is the outcome of a content moderation check.
type ModerationResult struct {
	Flagged    bool
	Categories []string
}

// Provider wraps a remote language-model backend. Implementations make
// one outbound call per operation and never retry; retry policy, if
// any, belongs to the caller.
type Provider interface {
	// Name returns the configured provider name.
	Name() string

	// Models returns the model identifiers this provider is configured for.
	Models() []string

	// Complete sends the message list to the model and returns the
	// generated text. Fails with a *Error when the remote call fails or
	// returns no choices.
	Complete(ctx context.Context, msgs []state.Message, opts CompletionOptions) (*Completion, error)

	// Extract requests output conforming to the schema via function
	// calling, with temperature pinned to zero regardless of caller
	// options. Fails with a *Error when no structured result comes back
	// or it cannot be decoded.
	Extract(ctx context.Context, msgs []state.Message, schema ExtractionSchema) (map[string]any, error)

	// Health reports whether the backend is reachable. Never errors.
	Health(ctx context.Context) bool

	// EstimateCost returns the estimated USD cost for the token counts.
	EstimateCost(inputTokens, outputTokens int) float64
}

// Moderator is an optional provider capability for dedicated content
// moderation. Discovered by interface assertion.
type Moderator interface {
	Moderate(ctx context.Context, input string) (*ModerationResult, error)
}

// Streamer is an optional provider capability for incremental output.
// Not used on the core agents' critical path.
type Streamer interface {
	Stream(ctx context.Context, msgs []state.Message, opts CompletionOptions, fn func(chunk string) error) error
}

// Error is a recoverable remote-call failure. Agents catch it and
// degrade gracefully; it never aborts a workflow run on its own.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps a remote failure for the given provider and operation.
func NewError(provider, op string, err error) error {
	return &Error{Provider: provider, Op: op, Err: err}
}

// IsError reports whether err is (or wraps) a provider Error.
func IsError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
