package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/wpchat/agentcore/internal/agent"
	"github.com/wpchat/agentcore/internal/config"
	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/registry"
	"github.com/wpchat/agentcore/internal/state"
	"github.com/wpchat/agentcore/internal/workflow"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

// Minimal runner for exercising one chat turn from the command line.
// The production HTTP layer does the same wiring: load-or-create the
// conversation, append the user message, run the workflow, read the
// last assistant message and trace, save.
func main() {
	conversationID := flag.String("conversation", "", "conversation id (empty for a new one)")
	workflowName := flag.String("workflow", "", "workflow name (defaults from config)")
	location := flag.String("location", "", "optional visitor location seeded into state")
	flag.Parse()

	message := strings.Join(flag.Args(), " ")
	if message == "" {
		fmt.Fprintln(os.Stderr, "usage: agentcore [flags] <message>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Init(logx.LoggerOpts{Production: cfg.Production})

	ctx := context.Background()

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise redis client")
	}
	defer rdb.Close()

	ttl, err := cfg.Conversation.ParsedTTL()
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", cfg.Conversation.TTL).Msg("invalid conversation TTL")
	}
	store := state.NewRedisStore(rdb, ttl)

	reg, err := buildRegistry(cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build registry")
	}

	definitions := loadDefinitions(cfg)
	name := *workflowName
	if name == "" {
		name = cfg.DefaultWorkflow
	}
	def, ok := definitions[name]
	if !ok {
		logx.Fatal().Str("workflow", name).Msg("workflow is not defined")
	}
	wf, err := def.Build(reg, workflow.WithMaxIterations(cfg.MaxIterations))
	if err != nil {
		logx.Fatal().Err(err).Str("workflow", name).Msg("failed to build workflow")
	}

	conv, err := state.LoadOrCreate(ctx, store, *conversationID)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to load conversation")
	}
	conv.AddMessage(state.RoleUser, message, nil)
	if *location != "" {
		conv.Set("location", *location)
	}

	if err := wf.Run(ctx, conv); err != nil {
		logx.Fatal().Err(err).Str("workflow", name).Msg("workflow run failed")
	}

	if err := store.Save(ctx, conv); err != nil {
		logx.Error().Err(err).Msg("failed to save conversation")
	}

	fmt.Printf("conversation: %s\n", conv.ConversationID)
	fmt.Printf("assistant: %s\n", conv.LastAssistantMessage())
	var executed []string
	for _, entry := range conv.Trace {
		executed = append(executed, entry.Name)
	}
	fmt.Printf("trace: %s\n", strings.Join(executed, " -> "))
	if topic := conv.GetString("topic"); topic != "" {
		fmt.Printf("topic: %s (urgency: %s)\n", topic, conv.GetString("urgency"))
	}
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg := registry.New(cfg.DefaultProvider)

	openAI, err := provider.NewOpenAI(provider.OpenAIConfig{
		Name:    "openai",
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.ProviderCallTimeout(),
	})
	if err != nil {
		return nil, err
	}
	reg.RegisterProvider("openai", openAI)

	if cfg.LangChain.BaseURL != "" {
		model, err := lcopenai.New(
			lcopenai.WithBaseURL(cfg.LangChain.BaseURL),
			lcopenai.WithToken(cfg.LangChain.APIKey),
			lcopenai.WithModel(cfg.LangChain.Model),
		)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider("langchain", provider.NewLangChain(
			"langchain", model, cfg.LangChain.Model, cfg.ProviderCallTimeout()))
	}

	reg.RegisterAgent("guardrails", func(p provider.Provider, c agent.Config) agent.Agent {
		return agent.NewGuardrails(p, c)
	}, "", nil)
	reg.RegisterAgent("classifier", func(p provider.Provider, c agent.Config) agent.Agent {
		return agent.NewClassifier(p, c)
	}, "", nil)
	reg.RegisterAgent("composer", func(p provider.Provider, c agent.Config) agent.Agent {
		return agent.NewComposer(p, c)
	}, "", nil)

	return reg, nil
}

// loadDefinitions reads the workflows file, falling back to the
// built-in default pipeline when the file is absent.
func loadDefinitions(cfg *config.Config) map[string]workflow.Definition {
	definitions, err := cfg.LoadWorkflows()
	if err != nil {
		logx.Warn().Err(err).Str("file", cfg.WorkflowsFile).
			Msg("could not load workflow definitions, using built-in default")
		return map[string]workflow.Definition{
			"newcomer-assistant": defaultPipeline(),
		}
	}
	return definitions
}

// defaultPipeline is guardrails -> classify -> compose, with the
// guardrails edge short-circuiting to END on a blocked message.
func defaultPipeline() workflow.Definition {
	return workflow.Definition{
		Name:  "newcomer-assistant",
		Entry: "guardrails",
		Nodes: map[string]string{
			"guardrails": "guardrails",
			"classify":   "classifier",
			"compose":    "composer",
		},
		Edges: map[string]workflow.EdgeDef{
			"guardrails": {IfFlag: "blocked", Then: workflow.END, Else: "classify"},
			"classify":   {To: "compose"},
			"compose":    {To: workflow.END},
		},
	}
}
