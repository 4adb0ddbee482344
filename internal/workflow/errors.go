package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEntryPoint is returned when running a workflow without one.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrNodeNotFound is returned when the current node has no action.
	ErrNodeNotFound = errors.New("node not found")

	// ErrAgentNotFound is returned when a node names an unregistered agent.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidNext is returned when an edge resolves to something that
	// is not a node name or END.
	ErrInvalidNext = errors.New("invalid next node")

	// ErrMaxIterations is the cycle guard: the run did not reach END
	// within the iteration budget.
	ErrMaxIterations = errors.New("exceeded maximum iterations")
)

// Error is a structural workflow failure: a bad graph, a missing
// registration or a runaway run. It is always fatal to the current run
// and surfaces to the caller unretried.
type Error struct {
	Workflow string
	Node     string
	Err      error
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("workflow %s: node %q: %v", e.Workflow, e.Node, e.Err)
	}
	return fmt.Sprintf("workflow %s: %v", e.Workflow, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a fatal workflow error.
func NewError(workflow, node string, err error) error {
	return &Error{Workflow: workflow, Node: node, Err: err}
}

// IsError reports whether err is (or wraps) a workflow Error.
func IsError(err error) bool {
	var we *Error
	return errors.As(err, &we)
}
