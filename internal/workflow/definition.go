package workflow

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/wpchat/agentcore/internal/state"
)

// Definition is the declarative form of a workflow: one entry point,
// a node map (node name to agent name) and an edge map. This is the
// operational way workflows are configured.
type Definition struct {
	Name          string             `yaml:"name" json:"name"`
	Entry         string             `yaml:"entry" json:"entry"`
	Nodes         map[string]string  `yaml:"nodes" json:"nodes"`
	Edges         map[string]EdgeDef `yaml:"edges" json:"edges"`
	MaxIterations int                `yaml:"max_iterations" json:"max_iterations"`
}

// EdgeDef is either a plain destination node name or a flag route:
// transition to Then when the named data flag is true, Else otherwise.
//
//	edges:
//	  classify: compose
//	  guardrails:
//	    if_flag: blocked
//	    then: END
//	    else: classify
type EdgeDef struct {
	To     string `yaml:"-" json:"to,omitempty"`
	IfFlag string `yaml:"if_flag" json:"if_flag,omitempty"`
	Then   string `yaml:"then" json:"then,omitempty"`
	Else   string `yaml:"else" json:"else,omitempty"`
}

func (e *EdgeDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.To = value.Value
		return nil
	}

	type plain struct {
		IfFlag string `yaml:"if_flag"`
		Then   string `yaml:"then"`
		Else   string `yaml:"else"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	e.IfFlag, e.Then, e.Else = p.IfFlag, p.Then, p.Else
	return nil
}

// FlagRoute builds the conditional route used by declarative edges.
func FlagRoute(flag, then, els string) RouteFunc {
	return func(conv *state.Conversation) string {
		if conv.GetBool(flag) {
			return then
		}
		return els
	}
}

// Build turns the definition into an executable workflow.
func (d Definition) Build(resolver AgentResolver, opts ...Option) (*Workflow, error) {
	if d.Name == "" {
		return nil, errors.New("workflow definition: name is required")
	}
	if len(d.Nodes) == 0 {
		return nil, errors.Errorf("workflow %s: no nodes defined", d.Name)
	}

	// Caller options are deployment-wide defaults; a per-definition
	// max_iterations takes precedence, so it is applied last.
	allOpts := make([]Option, 0, len(opts)+1)
	allOpts = append(allOpts, opts...)
	if d.MaxIterations > 0 {
		allOpts = append(allOpts, WithMaxIterations(d.MaxIterations))
	}
	w := New(d.Name, resolver, allOpts...)

	for node, agentName := range d.Nodes {
		if err := w.AddNode(node, agentName); err != nil {
			return nil, errors.Wrapf(err, "workflow %s", d.Name)
		}
	}

	for from, edge := range d.Edges {
		var err error
		switch {
		case edge.To != "":
			err = w.AddEdge(from, edge.To)
		case edge.IfFlag != "":
			if edge.Then == "" || edge.Else == "" {
				err = errors.Errorf("edge from %s: if_flag requires then and else", from)
			} else {
				err = w.AddConditionalEdge(from, FlagRoute(edge.IfFlag, edge.Then, edge.Else))
			}
		default:
			err = errors.Errorf("edge from %s: empty definition", from)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "workflow %s", d.Name)
		}
	}

	if err := w.SetEntryPoint(d.Entry); err != nil {
		return nil, errors.Wrapf(err, "workflow %s", d.Name)
	}
	if err := w.Validate(); err != nil {
		return nil, errors.Wrapf(err, "workflow %s", d.Name)
	}
	return w, nil
}

// DefinitionsFile is the on-disk shape of the workflow configuration.
type DefinitionsFile struct {
	Workflows map[string]Definition `yaml:"workflows"`
}

// ParseDefinitions decodes a workflows YAML document. Definition names
// default to their map key.
func ParseDefinitions(data []byte) (map[string]Definition, error) {
	var file DefinitionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse workflow definitions")
	}

	out := make(map[string]Definition, len(file.Workflows))
	for name, def := range file.Workflows {
		if def.Name == "" {
			def.Name = name
		}
		out[name] = def
	}
	return out, nil
}
