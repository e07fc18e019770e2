// Package bqm provides a labelled binary quadratic model that can be
// expressed either over binary (0/1) or spin (±1) variables.
package bqm

import (
	"fmt"
	"math"
	"sort"
)

// Vartype indicates the domain of a model's variables.
type Vartype int

// These are the valid values for a Vartype.
const (
	Binary Vartype = iota // Variables take values 0 or 1
	Spin                  // Variables take values -1 or +1
)

// String returns "BINARY" or "SPIN".
func (vt Vartype) String() string {
	switch vt {
	case Binary:
		return "BINARY"
	case Spin:
		return "SPIN"
	default:
		return fmt.Sprintf("Vartype(%d)", int(vt))
	}
}

// valid says whether v is a legal value for the vartype.
func (vt Vartype) valid(v int8) bool {
	if vt == Spin {
		return v == -1 || v == 1
	}
	return v == 0 || v == 1
}

// A Pair is an unordered pair of variable names.  The lexically smaller name
// is always stored first; use NewPair to construct one.
type Pair [2]string

// NewPair returns the canonical Pair for u and v.
func NewPair(u, v string) Pair {
	if v < u {
		u, v = v, u
	}
	return Pair{u, v}
}

// A Sample assigns a value to each variable.
type Sample map[string]int8

// A Model is a binary quadratic model:
//
//	E(x) = Offset + Σ Linear[v]·x_v + Σ Quadratic[{u,v}]·x_u·x_v
type Model struct {
	Vartype   Vartype
	Linear    map[string]float64
	Quadratic map[Pair]float64
	Offset    float64
}

// New returns an empty model of the given vartype.
func New(vt Vartype) *Model {
	return &Model{
		Vartype:   vt,
		Linear:    make(map[string]float64),
		Quadratic: make(map[Pair]float64),
	}
}

// AddVariable adds bias to the linear term of v, creating v if needed.
func (m *Model) AddVariable(v string, bias float64) {
	m.Linear[v] += bias
}

// AddInteraction adds bias to the coupling between u and v.  When u and v
// name the same variable the term is folded into the linear bias (binary,
// since x·x = x) or into the offset (spin, since s·s = 1).
func (m *Model) AddInteraction(u, v string, bias float64) {
	if u == v {
		if m.Vartype == Spin {
			m.Linear[u] += 0
			m.Offset += bias
		} else {
			m.Linear[u] += bias
		}
		return
	}
	m.Linear[u] += 0
	m.Linear[v] += 0
	m.Quadratic[NewPair(u, v)] += bias
}

// AddOffset adds c to the model's constant term.
func (m *Model) AddOffset(c float64) {
	m.Offset += c
}

// FromQUBO constructs a binary model from a QUBO coefficient table.  Both
// orderings of a pair accumulate into a single coupling.
func FromQUBO(q map[[2]string]float64, offset float64) *Model {
	m := New(Binary)
	for k, c := range q {
		m.AddInteraction(k[0], k[1], c)
	}
	m.Offset = offset
	return m
}

// FromIsing constructs a spin model from field weights and coupler
// strengths.
func FromIsing(h map[string]float64, j map[[2]string]float64, offset float64) *Model {
	m := New(Spin)
	for v, b := range h {
		m.AddVariable(v, b)
	}
	for k, c := range j {
		m.AddInteraction(k[0], k[1], c)
	}
	m.Offset = offset
	return m
}

// Copy returns a deep copy of the model.
func (m *Model) Copy() *Model {
	c := New(m.Vartype)
	for v, b := range m.Linear {
		c.Linear[v] = b
	}
	for p, b := range m.Quadratic {
		c.Quadratic[p] = b
	}
	c.Offset = m.Offset
	return c
}

// NumVariables returns the number of variables in the model.
func (m *Model) NumVariables() int {
	return len(m.Linear)
}

// Variables returns the model's variables in ascending order.
func (m *Model) Variables() []string {
	vs := make([]string, 0, len(m.Linear))
	for v := range m.Linear {
		vs = append(vs, v)
	}
	sort.Strings(vs)
	return vs
}

// Edges returns the model's interactions in ascending order.
func (m *Model) Edges() []Pair {
	es := make([]Pair, 0, len(m.Quadratic))
	for p := range m.Quadratic {
		es = append(es, p)
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i][0] != es[j][0] {
			return es[i][0] < es[j][0]
		}
		return es[i][1] < es[j][1]
	})
	return es
}

// MaxAbsBias returns the largest absolute linear or quadratic bias.
func (m *Model) MaxAbsBias() float64 {
	mx := 0.0
	for _, b := range m.Linear {
		mx = math.Max(mx, math.Abs(b))
	}
	for _, b := range m.Quadratic {
		mx = math.Max(mx, math.Abs(b))
	}
	return mx
}

// Energy evaluates the model at the given sample.
func (m *Model) Energy(s Sample) (float64, error) {
	e := m.Offset
	for v, b := range m.Linear {
		x, ok := s[v]
		if !ok {
			return 0, fmt.Errorf("bqm: sample is missing variable %q", v)
		}
		if !m.Vartype.valid(x) {
			return 0, fmt.Errorf("bqm: value %d of variable %q is not %s", x, v, m.Vartype)
		}
		e += b * float64(x)
	}
	for p, b := range m.Quadratic {
		e += b * float64(s[p[0]]) * float64(s[p[1]])
	}
	return e, nil
}

// ToQUBO returns the model in QUBO form: linear biases on the diagonal,
// couplings off the diagonal, plus the constant offset.
func (m *Model) ToQUBO() (map[Pair]float64, float64) {
	b := m
	if m.Vartype != Binary {
		b = m.ChangeVartype(Binary)
	}
	q := make(map[Pair]float64, len(b.Linear)+len(b.Quadratic))
	for v, c := range b.Linear {
		q[Pair{v, v}] = c
	}
	for p, c := range b.Quadratic {
		q[p] = c
	}
	return q, b.Offset
}

// ToIsing returns the model in Ising form.
func (m *Model) ToIsing() (map[string]float64, map[Pair]float64, float64) {
	s := m
	if m.Vartype != Spin {
		s = m.ChangeVartype(Spin)
	}
	h := make(map[string]float64, len(s.Linear))
	for v, c := range s.Linear {
		h[v] = c
	}
	j := make(map[Pair]float64, len(s.Quadratic))
	for p, c := range s.Quadratic {
		j[p] = c
	}
	return h, j, s.Offset
}

// ChangeVartype returns a copy of the model expressed over vt.  The energy of
// every sample is preserved under x = (s+1)/2.
func (m *Model) ChangeVartype(vt Vartype) *Model {
	if vt == m.Vartype {
		return m.Copy()
	}
	out := New(vt)
	out.Offset = m.Offset
	switch vt {
	case Spin:
		// b·x = b/2·s + b/2
		for v, b := range m.Linear {
			out.Linear[v] += b / 2
			out.Offset += b / 2
		}
		// q·x_u·x_v = q/4·(s_u·s_v + s_u + s_v + 1)
		for p, q := range m.Quadratic {
			out.Quadratic[p] += q / 4
			out.Linear[p[0]] += q / 4
			out.Linear[p[1]] += q / 4
			out.Offset += q / 4
		}
	case Binary:
		// h·s = 2h·x - h
		for v, h := range m.Linear {
			out.Linear[v] += 2 * h
			out.Offset -= h
		}
		// J·s_u·s_v = J·(4·x_u·x_v - 2·x_u - 2·x_v + 1)
		for p, j := range m.Quadratic {
			out.Quadratic[p] += 4 * j
			out.Linear[p[0]] -= 2 * j
			out.Linear[p[1]] -= 2 * j
			out.Offset += j
		}
	}
	return out
}

// ConvertSample maps a sample between vartypes (0 ↔ -1, 1 ↔ +1).
func ConvertSample(s Sample, from, to Vartype) Sample {
	out := make(Sample, len(s))
	for v, x := range s {
		switch {
		case from == to:
			out[v] = x
		case to == Binary:
			out[v] = (x + 1) / 2
		default:
			out[v] = 2*x - 1
		}
	}
	return out
}
