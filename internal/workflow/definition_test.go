package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpchat/agentcore/internal/agent"
	"github.com/wpchat/agentcore/internal/provider"
	"github.com/wpchat/agentcore/internal/registry"
	"github.com/wpchat/agentcore/internal/state"
)

const sampleDefinitions = `
workflows:
  newcomer-assistant:
    entry: guardrails
    nodes:
      guardrails: guardrails
      classify: classifier
      compose: composer
    edges:
      guardrails:
        if_flag: blocked
        then: END
        else: classify
      classify: compose
      compose: END
  compose-only:
    name: compose-only
    entry: compose
    max_iterations: 5
    nodes:
      compose: composer
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(sampleDefinitions))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	main := defs["newcomer-assistant"]
	assert.Equal(t, "newcomer-assistant", main.Name, "name defaults to the map key")
	assert.Equal(t, "guardrails", main.Entry)
	assert.Equal(t, "classifier", main.Nodes["classify"])

	// Scalar edge form.
	assert.Equal(t, "compose", main.Edges["classify"].To)
	assert.Equal(t, END, main.Edges["compose"].To)

	// Flag route form.
	guard := main.Edges["guardrails"]
	assert.Empty(t, guard.To)
	assert.Equal(t, "blocked", guard.IfFlag)
	assert.Equal(t, END, guard.Then)
	assert.Equal(t, "classify", guard.Else)

	small := defs["compose-only"]
	assert.Equal(t, "compose-only", small.Name)
	assert.Equal(t, 5, small.MaxIterations)
}

func TestParseDefinitionsInvalidYAML(t *testing.T) {
	_, err := ParseDefinitions([]byte("workflows: [not a map"))
	assert.Error(t, err)
}

func TestDefinitionBuildErrors(t *testing.T) {
	resolver := mapResolver{}

	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "missing name",
			def:  Definition{Entry: "a", Nodes: map[string]string{"a": "x"}},
		},
		{
			name: "no nodes",
			def:  Definition{Name: "w", Entry: "a"},
		},
		{
			name: "unknown entry",
			def:  Definition{Name: "w", Entry: "missing", Nodes: map[string]string{"a": "x"}},
		},
		{
			name: "fixed edge to unknown node",
			def: Definition{Name: "w", Entry: "a",
				Nodes: map[string]string{"a": "x"},
				Edges: map[string]EdgeDef{"a": {To: "missing"}}},
		},
		{
			name: "if_flag without else",
			def: Definition{Name: "w", Entry: "a",
				Nodes: map[string]string{"a": "x"},
				Edges: map[string]EdgeDef{"a": {IfFlag: "blocked", Then: END}}},
		},
		{
			name: "empty edge definition",
			def: Definition{Name: "w", Entry: "a",
				Nodes: map[string]string{"a": "x"},
				Edges: map[string]EdgeDef{"a": {}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.def.Build(resolver)
			assert.Error(t, err)
		})
	}
}

// A per-definition max_iterations wins over the deployment-wide bound
// passed by the caller.
func TestDefinitionMaxIterationsOverridesCallerOption(t *testing.T) {
	def := Definition{
		Name:          "looping",
		Entry:         "a",
		Nodes:         map[string]string{"a": "noop"},
		Edges:         map[string]EdgeDef{"a": {To: "a"}},
		MaxIterations: 3,
	}

	w, err := def.Build(mapResolver{"noop": marker("noop")}, WithMaxIterations(100))
	require.NoError(t, err)

	conv := state.New("conv-1")
	runErr := w.Run(context.Background(), conv)
	assert.ErrorIs(t, runErr, ErrMaxIterations)
	assert.Len(t, conv.Trace, 3)
}

func TestDefinitionBuildRespectsMaxIterations(t *testing.T) {
	def := Definition{
		Name:          "looping",
		Entry:         "a",
		Nodes:         map[string]string{"a": "noop"},
		Edges:         map[string]EdgeDef{"a": {To: "a"}},
		MaxIterations: 3,
	}

	w, err := def.Build(mapResolver{"noop": marker("noop")})
	require.NoError(t, err)

	runErr := w.Run(context.Background(), state.New("conv-1"))
	assert.ErrorIs(t, runErr, ErrMaxIterations)
}

// scriptedProvider returns canned completions and extractions, enough
// to drive the real agents without a backend.
type scriptedProvider struct {
	reply  string
	fields map[string]any
}

func (p *scriptedProvider) Name() string     { return "scripted" }
func (p *scriptedProvider) Models() []string { return []string{"scripted-1"} }

func (p *scriptedProvider) Complete(_ context.Context, _ []state.Message, _ provider.CompletionOptions) (*provider.Completion, error) {
	return &provider.Completion{Content: p.reply, Metadata: map[string]any{"model": "scripted-1"}}, nil
}

func (p *scriptedProvider) Extract(_ context.Context, _ []state.Message, _ provider.ExtractionSchema) (map[string]any, error) {
	return p.fields, nil
}

func (p *scriptedProvider) Health(context.Context) bool      { return true }
func (p *scriptedProvider) EstimateCost(in, out int) float64 { return 0 }

func newPipelineRegistry(p provider.Provider) *registry.Registry {
	reg := registry.New(p.Name())
	reg.RegisterProvider(p.Name(), p)
	reg.RegisterAgent("guardrails", func(p provider.Provider, cfg agent.Config) agent.Agent {
		return agent.NewGuardrails(p, cfg)
	}, "", nil)
	reg.RegisterAgent("classifier", func(p provider.Provider, cfg agent.Config) agent.Agent {
		return agent.NewClassifier(p, cfg)
	}, "", nil)
	reg.RegisterAgent("composer", func(p provider.Provider, cfg agent.Config) agent.Agent {
		return agent.NewComposer(p, cfg)
	}, "", nil)
	return reg
}

func TestNewcomerAssistantPipeline(t *testing.T) {
	scripted := &scriptedProvider{
		reply: "Here are a few housing resources in Toronto to get you started.",
		fields: map[string]any{
			"topic":    "housing",
			"urgency":  "medium",
			"location": "Toronto",
		},
	}

	reg := newPipelineRegistry(scripted)

	defs, err := ParseDefinitions([]byte(sampleDefinitions))
	require.NoError(t, err)

	w, err := defs["newcomer-assistant"].Build(reg)
	require.NoError(t, err)

	conv := state.New("conv-scenario")
	conv.AddMessage(state.RoleUser, "I need help finding housing in Toronto", nil)

	require.NoError(t, w.Run(context.Background(), conv))

	// The routing edge after guardrails contributes no trace entry.
	require.Len(t, conv.Trace, 3)
	assert.Equal(t, "guardrails", conv.Trace[0].Name)
	assert.Equal(t, "classifier", conv.Trace[1].Name)
	assert.Equal(t, "composer", conv.Trace[2].Name)

	assert.True(t, conv.GetBool("content_safe"))
	assert.False(t, conv.GetBool("blocked"))
	assert.Equal(t, "housing", conv.GetString("topic"))
	assert.Equal(t, "Toronto", conv.GetString("location"))
	assert.Equal(t, scripted.reply, conv.LastAssistantMessage())
}

func TestBlockedMessageEndsPipeline(t *testing.T) {
	scripted := &scriptedProvider{reply: "unused"}

	reg := newPipelineRegistry(scripted)

	defs, err := ParseDefinitions([]byte(sampleDefinitions))
	require.NoError(t, err)
	w, err := defs["newcomer-assistant"].Build(reg)
	require.NoError(t, err)

	conv := state.New("conv-blocked")
	conv.AddMessage(state.RoleUser, "free money!!! click here to claim your lottery jackpot", nil)

	require.NoError(t, w.Run(context.Background(), conv))

	require.Len(t, conv.Trace, 1)
	assert.Equal(t, "guardrails", conv.Trace[0].Name)
	assert.True(t, conv.GetBool("blocked"))
	assert.Empty(t, conv.GetString("topic"))
	assert.NotEmpty(t, conv.LastAssistantMessage(), "blocked turns still answer the visitor")
}
