// This file provides convenience routines that do not map to individual SAPI
// functions.

package sapi

import (
	"cmp"
	"context"
	"slices"
)

// NewSolver is a convenience function that establishes either a remote or
// local connection to a solver.  NewSolver reads connection settings with
// LoadConfig (dwave.conf, then the DW_INTERNAL__* and DWAVE_API_* environment
// variables) and invokes either RemoteConnection or LocalConnection, as
// appropriate, followed by the Solver method on the corresponding connection.
func NewSolver(ctx context.Context, opts ...Option) (*Solver, error) {
	cfg, err := LoadConfig("", "")
	if err != nil {
		return nil, err
	}
	conn, err := cfg.Connect(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Solver == "" {
		return nil, newErrorf(ErrInvalidParameter, "A solver must be named via dwave.conf or the DWAVE_API_SOLVER environment variable")
	}
	return conn.Solver(ctx, cfg.Solver)
}

// Canonicalize returns a copy of p sorted by (I, J) with I ≤ J in every
// entry.  Entries naming the same pair are summed in their original order.
func (p Problem) Canonicalize() Problem {
	sums := make(map[[2]int]float64, len(p))
	var pairs [][2]int
	for _, pe := range p {
		k := [2]int{min(pe.I, pe.J), max(pe.I, pe.J)}
		if _, ok := sums[k]; !ok {
			pairs = append(pairs, k)
		}
		sums[k] += pe.Value
	}
	slices.SortFunc(pairs, comparePairs)
	out := make(Problem, len(pairs))
	for i, k := range pairs {
		out[i] = ProblemEntry{I: k[0], J: k[1], Value: sums[k]}
	}
	return out
}

func comparePairs(a, b [2]int) int {
	if c := cmp.Compare(a[0], b[0]); c != 0 {
		return c
	}
	return cmp.Compare(a[1], b[1])
}

// problemFrom assembles a canonical Problem with a field entry for every
// variable of h and a coupler entry for every pair of j.
func problemFrom(h map[int]float64, j map[[2]int]float64) Problem {
	p := make(Problem, 0, len(h)+len(j))
	for q, v := range h {
		p = append(p, ProblemEntry{I: q, J: q, Value: v})
	}
	for c, v := range j {
		p = append(p, ProblemEntry{I: c[0], J: c[1], Value: v})
	}
	slices.SortFunc(p, func(a, b ProblemEntry) int {
		return comparePairs([2]int{a.I, a.J}, [2]int{b.I, b.J})
	})
	return p
}

// ToIsing rewrites a QUBO problem over x ∈ {0, 1} as an Ising problem over
// s = 2x - 1.  The returned offset added to an Ising energy gives the QUBO
// energy of the same assignment.  Every variable receives a field entry,
// even a zero one.
func (p Problem) ToIsing() (Problem, float64) {
	q, c := p.fieldsAndCouplers()
	h := make(map[int]float64, len(q))
	j := make(map[[2]int]float64, len(c))
	offset := 0.0
	for v, w := range q {
		// w·x = w/2·s + w/2
		h[v] += w / 2
		offset += w / 2
	}
	for k, w := range c {
		// w·x_a·x_b = w/4·(s_a·s_b + s_a + s_b + 1)
		j[k] = w / 4
		h[k[0]] += w / 4
		h[k[1]] += w / 4
		offset += w / 4
	}
	return problemFrom(h, j), offset
}

// ToQubo is the inverse of ToIsing.  The returned offset added to a QUBO
// energy gives the Ising energy of the same assignment.
func (p Problem) ToQubo() (Problem, float64) {
	h, j := p.fieldsAndCouplers()
	q := make(map[int]float64, len(h))
	c := make(map[[2]int]float64, len(j))
	offset := 0.0
	for v, w := range h {
		// w·s = 2w·x - w
		q[v] += 2 * w
		offset -= w
	}
	for k, w := range j {
		// w·s_a·s_b = 4w·x_a·x_b - 2w·x_a - 2w·x_b + w
		c[k] = 4 * w
		q[k[0]] -= 2 * w
		q[k[1]] -= 2 * w
		offset += w
	}
	return problemFrom(q, c), offset
}
