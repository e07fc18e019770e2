// This file presents an interface to SAPI functions for simplifying
// optimization problems.

package sapi

import (
	"math"
	"sort"
)

// FixVariablesMethod specifies how to identify values with a fixed value in
// all optimal solutions.
type FixVariablesMethod int

// These are the values a FixVariablesMethod accepts.
const (
	FixVariablesMethodOptimized FixVariablesMethod = iota // Dominance plus exhaustive search of small components
	FixVariablesMethodStandard                            // Dominance only
)

// maxComponentVariables bounds the components FixVariablesMethodOptimized
// solves exhaustively.
const maxComponentVariables = 16

// A FixVariablesResult identifies variables that can be removed from a problem
// because their value is known a priori.
type FixVariablesResult struct {
	FixedVars  map[int]int8 // Map from a variable to its value
	Offset     float64      // Energy difference between the new and original problems
	NewProblem Problem      // Simplified problem, containing no fixed variables
}

// A reducer is a QUBO being simplified by fixing variables.
type reducer struct {
	lin    map[int]float64
	quad   map[int]map[int]float64
	fixed  map[int]int8
	offset float64
}

func newReducer(p Problem) *reducer {
	r := &reducer{
		lin:   make(map[int]float64),
		quad:  make(map[int]map[int]float64),
		fixed: make(map[int]int8),
	}
	h, j := p.fieldsAndCouplers()
	for v, w := range h {
		r.lin[v] = w
		r.quad[v] = make(map[int]float64)
	}
	for c, w := range j {
		if w == 0 {
			continue
		}
		r.quad[c[0]][c[1]] = w
		r.quad[c[1]][c[0]] = w
	}
	return r
}

// fix assigns a value to v and folds it into the rest of the problem.
func (r *reducer) fix(v int, x int8) {
	if x == 1 {
		r.offset += r.lin[v]
		for u, w := range r.quad[v] {
			r.lin[u] += w
		}
	}
	for u := range r.quad[v] {
		delete(r.quad[u], v)
	}
	delete(r.quad, v)
	delete(r.lin, v)
	r.fixed[v] = x
}

func (r *reducer) sortedVars() []int {
	vs := make([]int, 0, len(r.lin))
	for v := range r.lin {
		vs = append(vs, v)
	}
	sort.Ints(vs)
	return vs
}

// dominance fixes every variable whose best value does not depend on its
// neighbors, until none is left.  It reports whether anything was fixed.
func (r *reducer) dominance() bool {
	fixedAny := false
	for changed := true; changed; {
		changed = false
		for _, v := range r.sortedVars() {
			pos, neg := 0.0, 0.0
			for _, w := range r.quad[v] {
				if w > 0 {
					pos += w
				} else {
					neg += w
				}
			}
			switch {
			case r.lin[v]+neg > 0:
				r.fix(v, 0)
			case r.lin[v]+pos < 0:
				r.fix(v, 1)
			default:
				continue
			}
			changed, fixedAny = true, true
		}
	}
	return fixedAny
}

// components returns the connected components of the remaining variables.
func (r *reducer) components() [][]int {
	seen := make(map[int]bool, len(r.lin))
	var comps [][]int
	for _, v := range r.sortedVars() {
		if seen[v] {
			continue
		}
		seen[v] = true
		comp := []int{v}
		for i := 0; i < len(comp); i++ {
			for u := range r.quad[comp[i]] {
				if !seen[u] {
					seen[u] = true
					comp = append(comp, u)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// solveComponent enumerates a component and fixes the variables that take
// the same value in every minimum.  It reports whether anything was fixed.
func (r *reducer) solveComponent(comp []int) bool {
	n := len(comp)
	best := math.Inf(1)
	var agree, value uint64 // Bits on which all minima agree, and their values
	for x := uint64(0); x < 1<<n; x++ {
		e := 0.0
		for a, v := range comp {
			if x>>a&1 == 0 {
				continue
			}
			e += r.lin[v]
			for b := a + 1; b < n; b++ {
				if x>>b&1 == 1 {
					e += r.quad[v][comp[b]]
				}
			}
		}
		switch {
		case e < best-1e-9:
			best, agree, value = e, uint64(1)<<n-1, x
		case e <= best+1e-9:
			agree &^= x ^ value
		}
	}
	fixed := false
	for a, v := range comp {
		if agree>>a&1 == 1 {
			r.fix(v, int8(value>>a&1))
			fixed = true
		}
	}
	return fixed
}

// FixVariables identifies variables in a QUBO problem that have a fixed value
// in all optimal solutions and can therefore be elided from the problem that
// gets submitted to the solver.
func (p Problem) FixVariables(m FixVariablesMethod) (FixVariablesResult, error) {
	if m != FixVariablesMethodOptimized && m != FixVariablesMethodStandard {
		return FixVariablesResult{}, newErrorf(ErrInvalidParameter, "Unknown variable-fixing method %d", int(m))
	}
	r := newReducer(p)
	r.dominance()
	if m == FixVariablesMethodOptimized {
		for progress := true; progress; {
			progress = false
			for _, comp := range r.components() {
				if len(comp) <= maxComponentVariables && r.solveComponent(comp) {
					progress = true
				}
			}
			if progress {
				r.dominance()
			}
		}
	}

	var np Problem
	for _, v := range r.sortedVars() {
		np = append(np, ProblemEntry{I: v, J: v, Value: r.lin[v]})
		for u, w := range r.quad[v] {
			if u > v {
				np = append(np, ProblemEntry{I: v, J: u, Value: w})
			}
		}
	}
	return FixVariablesResult{
		FixedVars:  r.fixed,
		Offset:     r.offset,
		NewProblem: np.Canonicalize(),
	}, nil
}
