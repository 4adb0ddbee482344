package agent

import (
	"context"

	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/state"
)

// Agent is a single-purpose unit of conversation processing. It is
// stateless across invocations apart from its name and configuration;
// the conversation is mutated in place and owned by the calling run.
type Agent interface {
	Name() string
	Execute(ctx context.Context, conv *state.Conversation) error
}

// Config is the static per-agent configuration bag.
type Config map[string]any

// String returns the string at key, or def when missing or mistyped.
func (c Config) String(key, def string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns the int at key, accepting JSON/YAML numeric decodings.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Float returns the float at key, or def.
func (c Config) Float(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Bool returns the bool at key, or def.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// StringMap returns the nested string map at key. Values decoded from
// JSON or YAML arrive as map[string]any and are filtered to strings.
func (c Config) StringMap(key string) map[string]string {
	out := make(map[string]string)
	switch v := c[key].(type) {
	case map[string]string:
		for k, s := range v {
			out[k] = s
		}
	case map[string]any:
		for k, raw := range v {
			if s, ok := raw.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Base carries the pieces every concrete agent shares.
type Base struct {
	name     string
	provider provider.Provider
	config   Config
}

func NewBase(name string, p provider.Provider, cfg Config) Base {
	if cfg == nil {
		cfg = Config{}
	}
	return Base{name: name, provider: p, config: cfg}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Provider() provider.Provider {
	return b.provider
}

func (b *Base) Config() Config {
	return b.config
}
