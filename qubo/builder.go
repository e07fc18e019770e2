package qubo

import (
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"
)

// An Edge is a weighted undirected edge between two vertices.
type Edge struct {
	U      string  `yaml:"u" json:"u"`
	V      string  `yaml:"v" json:"v"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// A Graph describes a vertex-to-terminal assignment instance.  Vertices
// include the terminals.
type Graph struct {
	Vertices  []string `yaml:"vertices" json:"vertices"`
	Edges     []Edge   `yaml:"edges" json:"edges"`
	Terminals []string `yaml:"terminals" json:"terminals"`
	Alpha     float64  `yaml:"alpha,omitempty" json:"alpha,omitempty"`
}

// GraphError reports an invalid builder input.
type GraphError struct {
	Field  string
	Reason string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("qubo: invalid %s: %s", e.Field, e.Reason)
}

// VarName returns the indicator variable for "node is assigned to terminal".
func VarName(node, terminal string) string {
	return "x" + node + terminal
}

type buildOptions struct {
	raw bool
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithRawOrdering keeps every pair in the order the penalty loops produce it
// and keeps zero coefficients.  (u, v) and (v, u) then remain separate keys.
func WithRawOrdering() BuildOption {
	return func(o *buildOptions) {
		o.raw = true
	}
}

// Validate checks that g and alpha describe a well-formed instance.
func (g Graph) Validate(alpha float64) error {
	if len(g.Vertices) == 0 {
		return &GraphError{Field: "vertices", Reason: "empty"}
	}
	if len(g.Terminals) == 0 {
		return &GraphError{Field: "terminals", Reason: "empty"}
	}
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) || alpha <= 0 {
		return &GraphError{Field: "alpha", Reason: fmt.Sprintf("%g is not a positive finite number", alpha)}
	}
	vs := make(map[string]struct{}, len(g.Vertices))
	for _, v := range g.Vertices {
		if _, dup := vs[v]; dup {
			return &GraphError{Field: "vertices", Reason: fmt.Sprintf("%q listed twice", v)}
		}
		vs[v] = struct{}{}
	}
	ts := make(map[string]struct{}, len(g.Terminals))
	for _, t := range g.Terminals {
		if _, ok := vs[t]; !ok {
			return &GraphError{Field: "terminals", Reason: fmt.Sprintf("%q is not a vertex", t)}
		}
		if _, dup := ts[t]; dup {
			return &GraphError{Field: "terminals", Reason: fmt.Sprintf("%q listed twice", t)}
		}
		ts[t] = struct{}{}
	}
	owner := make(map[string][2]string, len(g.Vertices)*len(g.Terminals))
	for _, u := range g.Vertices {
		for _, t := range g.Terminals {
			x := VarName(u, t)
			if prev, clash := owner[x]; clash {
				return &GraphError{Field: "vertices", Reason: fmt.Sprintf(
					"variable %s names both (%s, %s) and (%s, %s)", x, prev[0], prev[1], u, t)}
			}
			owner[x] = [2]string{u, t}
		}
	}
	for _, e := range g.Edges {
		for _, end := range [2]string{e.U, e.V} {
			if _, ok := vs[end]; !ok {
				return &GraphError{Field: "edges", Reason: fmt.Sprintf("endpoint %q of (%s, %s) is not a vertex", end, e.U, e.V)}
			}
		}
		if e.U == e.V {
			return &GraphError{Field: "edges", Reason: fmt.Sprintf("self-loop on %q", e.U)}
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return &GraphError{Field: "edges", Reason: fmt.Sprintf("weight of (%s, %s) is not finite", e.U, e.V)}
		}
	}
	return nil
}

// Build constructs the QUBO table for g with penalty strength alpha as the
// sum of three terms:
//
//	alpha · Σ_u (1 - Σ_t x_ut)²                     each vertex on exactly one terminal
//	alpha · Σ_t Σ_{t'≠t} x_tt'                      terminals mutually exclusive
//	Σ_{(u,v)∈E} Σ_t Σ_{t'≠t} C(u,v) · x_ut · x_vt'  cut edge cost
//
// The first term is expanded with x² = x, so its constant lands on the
// ConstantVar entry.  The result is canonical and free of zero entries unless
// WithRawOrdering is given.
func Build(g Graph, alpha float64, opts ...BuildOption) (Table, error) {
	var o buildOptions
	for _, fn := range opts {
		fn(&o)
	}
	if err := g.Validate(alpha); err != nil {
		return nil, err
	}

	q := make(Table)
	addAssignment(q, g, alpha)
	addTerminalExclusion(q, g, alpha)
	addCutCost(q, g)

	if o.raw {
		return q, nil
	}
	return q.Canonical().Prune(), nil
}

// addAssignment adds alpha·(1 - Σ_t x_ut)² for every vertex u.
func addAssignment(q Table, g Graph, alpha float64) {
	for _, u := range g.Vertices {
		q.Add(ConstantVar, ConstantVar, alpha)
		for i, t := range g.Terminals {
			x := VarName(u, t)
			q.Add(x, x, -alpha)
			for _, t2 := range g.Terminals[i+1:] {
				q.Add(x, VarName(u, t2), 2*alpha)
			}
		}
	}
}

// addTerminalExclusion penalizes a terminal assigned to any other terminal.
func addTerminalExclusion(q Table, g Graph, alpha float64) {
	for _, t := range g.Terminals {
		for _, t2 := range g.Terminals {
			if t == t2 {
				continue
			}
			x := VarName(t, t2)
			q.Add(x, x, alpha)
		}
	}
}

// addCutCost charges an edge's weight when its endpoints sit on different
// terminals.
func addCutCost(q Table, g Graph) {
	for _, e := range g.Edges {
		for _, t := range g.Terminals {
			for _, t2 := range g.Terminals {
				if t == t2 {
					continue
				}
				q.Add(VarName(e.U, t), VarName(e.V, t2), e.Weight)
			}
		}
	}
}

// LoadGraph parses a YAML (or JSON) instance description.  A missing alpha
// is left at zero for the caller to fill in.
func LoadGraph(r io.Reader) (Graph, error) {
	var g Graph
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("qubo: decode graph: %w", err)
	}
	return g, nil
}
