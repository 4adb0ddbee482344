package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/wpchat/agentcore/internal/workflow"
	redisx "github.com/wpchat/agentcore/pkg/redis"
)

// OpenAI holds credentials for the default provider. BaseURL may point
// at any OpenAI-compatible endpoint.
type OpenAI struct {
	APIKey  string `envconfig:"OPENAI_API_KEY"`
	BaseURL string `envconfig:"OPENAI_BASE_URL"`
	Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// LangChain configures the langchaingo-backed provider. Setting
// BaseURL enables it, pointed at any OpenAI-compatible backend
// (ollama, vllm, and friends).
type LangChain struct {
	BaseURL string `envconfig:"LANGCHAIN_BASE_URL"`
	APIKey  string `envconfig:"LANGCHAIN_API_KEY" default:"unused"`
	Model   string `envconfig:"LANGCHAIN_MODEL" default:"llama3"`
}

// Conversation controls store behavior.
type Conversation struct {
	TTL string `split_words:"true" default:"24h"`
}

// ParsedTTL returns the TTL as a duration.
func (c Conversation) ParsedTTL() (time.Duration, error) {
	return time.ParseDuration(c.TTL)
}

// Config is the full environment-sourced configuration surface
// consumed by the core. Workflow definitions live in a separate YAML
// file named by WorkflowsFile.
type Config struct {
	Production bool `default:"false"`

	DefaultProvider string `split_words:"true" default:"openai"`
	OpenAI          OpenAI
	LangChain       LangChain
	Redis           redisx.Config
	Conversation    Conversation

	WorkflowsFile   string `split_words:"true" default:"workflows.yaml"`
	DefaultWorkflow string `split_words:"true" default:"newcomer-assistant"`

	MaxIterations   int `split_words:"true" default:"100"`
	ProviderTimeout int `split_words:"true" default:"30"`
}

// ProviderCallTimeout returns the per-call provider timeout.
func (c *Config) ProviderCallTimeout() time.Duration {
	return time.Duration(c.ProviderTimeout) * time.Second
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment config")
	}
	return &cfg, nil
}

// LoadWorkflows reads the workflow definitions file.
func (c *Config) LoadWorkflows() (map[string]workflow.Definition, error) {
	data, err := os.ReadFile(c.WorkflowsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflows file %s", c.WorkflowsFile)
	}
	return workflow.ParseDefinitions(data)
}
