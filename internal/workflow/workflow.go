package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/wpchat/agentcore/internal/agent"
	"github.com/wpchat/agentcore/internal/state"
	logx "github.com/wpchat/agentcore/pkg/logger"
)

// END is the reserved terminal marker. It is never a node.
const END = "END"

// DefaultMaxIterations bounds a run even on fully deterministic graphs;
// it exists to catch misconfigured cycles.
const DefaultMaxIterations = 100

// StepFunc is an inline routing/processing step bound directly into the
// graph instead of going through the agent registry.
type StepFunc func(ctx context.Context, conv *state.Conversation) error

// Action is what a node executes: a registered agent or an inline step.
type Action interface {
	isAction()
}

// AgentAction names an agent resolved through the registry at run time.
type AgentAction struct {
	AgentName string
}

func (AgentAction) isAction() {}

// StepAction wraps an inline callable step.
type StepAction struct {
	Fn StepFunc
}

func (StepAction) isAction() {}

// RouteFunc computes the next node name from the current state. It is
// the sole branching mechanism.
type RouteFunc func(conv *state.Conversation) string

// Edge is the transition rule out of a node: fixed or conditional.
// Multi-candidate edges are deliberately not modeled.
type Edge interface {
	isEdge()
}

// FixedEdge transitions unconditionally.
type FixedEdge struct {
	To string
}

func (FixedEdge) isEdge() {}

// ConditionalEdge routes through a function of the state.
type ConditionalEdge struct {
	Route RouteFunc
}

func (ConditionalEdge) isEdge() {}

// AgentResolver supplies agents on demand. (nil, nil) means unknown
// name; the workflow turns that into a fatal error.
type AgentResolver interface {
	Agent(name string) (agent.Agent, error)
}

// Workflow is a named directed graph of nodes and edges that sequences
// agent executions and branching decisions for one conversation turn.
// Construction is not safe for concurrent use; running is, as long as
// each run owns its conversation.
type Workflow struct {
	name          string
	nodes         map[string]Action
	edges         map[string]Edge
	entryPoint    string
	maxIterations int
	resolver      AgentResolver
}

type Option func(*Workflow)

// WithMaxIterations overrides the iteration budget.
func WithMaxIterations(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// New creates an empty workflow bound to an agent resolver.
func New(name string, resolver AgentResolver, opts ...Option) *Workflow {
	w := &Workflow{
		name:          name,
		nodes:         make(map[string]Action),
		edges:         make(map[string]Edge),
		maxIterations: DefaultMaxIterations,
		resolver:      resolver,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Workflow) Name() string {
	return w.name
}

// AddNode binds a node name to a registered agent.
func (w *Workflow) AddNode(name, agentName string) error {
	return w.addAction(name, AgentAction{AgentName: agentName})
}

// AddStep binds a node name to an inline step.
func (w *Workflow) AddStep(name string, fn StepFunc) error {
	if fn == nil {
		return errors.Errorf("step %s: nil function", name)
	}
	return w.addAction(name, StepAction{Fn: fn})
}

func (w *Workflow) addAction(name string, action Action) error {
	if name == END {
		return errors.Errorf("cannot add node named %s", END)
	}
	if _, exists := w.nodes[name]; exists {
		return errors.Errorf("node %s already exists", name)
	}
	w.nodes[name] = action
	return nil
}

// AddEdge adds an unconditional transition. A node without any outgoing
// edge implicitly transitions to END.
func (w *Workflow) AddEdge(from, to string) error {
	if err := w.validateEdge(from, to); err != nil {
		return err
	}
	w.edges[from] = FixedEdge{To: to}
	return nil
}

// AddConditionalEdge adds a state-dependent transition.
func (w *Workflow) AddConditionalEdge(from string, route RouteFunc) error {
	if route == nil {
		return errors.Errorf("edge from %s: nil route", from)
	}
	if _, exists := w.nodes[from]; !exists {
		return errors.Errorf("source node %s does not exist", from)
	}
	w.edges[from] = ConditionalEdge{Route: route}
	return nil
}

func (w *Workflow) validateEdge(from, to string) error {
	if from == END {
		return errors.Errorf("cannot add edge from %s", END)
	}
	if _, exists := w.nodes[from]; !exists {
		return errors.Errorf("source node %s does not exist", from)
	}
	if to != END {
		if _, exists := w.nodes[to]; !exists {
			return errors.Errorf("target node %s does not exist", to)
		}
	}
	return nil
}

// SetEntryPoint selects the initial node.
func (w *Workflow) SetEntryPoint(name string) error {
	if name == END {
		return errors.Errorf("cannot set %s as entry point", END)
	}
	if _, exists := w.nodes[name]; !exists {
		return errors.Errorf("node %s does not exist", name)
	}
	w.entryPoint = name
	return nil
}

// Validate checks the static parts of the graph: the entry point is
// set and every fixed edge points at a known node. Conditional routes
// are only checkable at run time.
func (w *Workflow) Validate() error {
	if w.entryPoint == "" {
		return ErrNoEntryPoint
	}
	for from, edge := range w.edges {
		if fixed, ok := edge.(FixedEdge); ok {
			if fixed.To != END {
				if _, exists := w.nodes[fixed.To]; !exists {
					return errors.Errorf("edge %s -> %s: target does not exist", from, fixed.To)
				}
			}
		}
	}
	return nil
}

// Run executes the workflow against the conversation, which is mutated
// in place: one trace entry per node executed, run bookkeeping stamped
// into metadata. Structural failures return a *Error and stop the run
// immediately.
func (w *Workflow) Run(ctx context.Context, conv *state.Conversation) error {
	if w.entryPoint == "" {
		return NewError(w.name, "", ErrNoEntryPoint)
	}

	runID := uuid.New().String()
	conv.SetMeta("workflow_name", w.name)
	conv.SetMeta("workflow_run_id", runID)
	conv.SetMeta("workflow_started_at", time.Now().UTC().Format(time.RFC3339))

	logx.Debug().Str("workflow", w.name).Str("runID", runID).
		Str("conversationID", conv.ConversationID).Msg("run started")

	current := w.entryPoint
	iterations := 0

	for current != END {
		select {
		case <-ctx.Done():
			return NewError(w.name, current, ctx.Err())
		default:
		}

		action, exists := w.nodes[current]
		if !exists {
			return NewError(w.name, current, ErrNodeNotFound)
		}

		if err := w.executeAction(ctx, current, action, conv); err != nil {
			return err
		}

		next, err := w.nextNode(current, conv)
		if err != nil {
			return err
		}

		iterations++
		if next != END && iterations >= w.maxIterations {
			return NewError(w.name, current, ErrMaxIterations)
		}
		current = next
	}

	conv.SetMeta("workflow_completed_at", time.Now().UTC().Format(time.RFC3339))
	conv.SetMeta("workflow_iterations", iterations)

	logx.Debug().Str("workflow", w.name).Str("runID", runID).
		Int("iterations", iterations).Msg("run completed")
	return nil
}

func (w *Workflow) executeAction(ctx context.Context, node string, action Action, conv *state.Conversation) error {
	started := time.Now()

	switch a := action.(type) {
	case AgentAction:
		ag, err := w.resolver.Agent(a.AgentName)
		if err != nil {
			// Registry construction failures are configuration bugs;
			// they propagate untouched.
			return err
		}
		if ag == nil {
			return NewError(w.name, node, fmt.Errorf("%w: %s", ErrAgentNotFound, a.AgentName))
		}
		if err := ag.Execute(ctx, conv); err != nil {
			return NewError(w.name, node, err)
		}
		conv.AddTrace(state.TraceEntry{
			Name:       ag.Name(),
			Node:       node,
			ExecutedAt: started,
			LatencyMS:  time.Since(started).Milliseconds(),
			Metadata:   map[string]any{"kind": "agent"},
		})
	case StepAction:
		if err := a.Fn(ctx, conv); err != nil {
			return NewError(w.name, node, err)
		}
		conv.AddTrace(state.TraceEntry{
			Name:       node,
			Node:       node,
			ExecutedAt: started,
			LatencyMS:  time.Since(started).Milliseconds(),
			Metadata:   map[string]any{"kind": "step"},
		})
	default:
		return NewError(w.name, node, fmt.Errorf("unknown action type %T", action))
	}
	return nil
}

// nextNode resolves the outgoing edge. A missing edge is an implicit
// transition to END, not an error.
func (w *Workflow) nextNode(current string, conv *state.Conversation) (string, error) {
	edge, exists := w.edges[current]
	if !exists {
		return END, nil
	}

	var next string
	switch e := edge.(type) {
	case FixedEdge:
		next = e.To
	case ConditionalEdge:
		next = e.Route(conv)
	default:
		return "", NewError(w.name, current, fmt.Errorf("unknown edge type %T", edge))
	}

	if next == "" {
		return "", NewError(w.name, current, fmt.Errorf("%w: empty node name", ErrInvalidNext))
	}
	if next != END {
		if _, exists := w.nodes[next]; !exists {
			return "", NewError(w.name, current, fmt.Errorf("%w: %s", ErrInvalidNext, next))
		}
	}
	return next, nil
}
