// This file presents SAPI problem-related types and functions.

package sapi

// A ProblemEntry represents a single coefficient in a problem to submit to a
// solver.  If I=J, the ProblemEntry represents a linear term.  Otherwise, it
// represents a quadratic term.
type ProblemEntry struct {
	I     int
	J     int
	Value float64
}

// A Problem is a list of ProblemEntry coefficients.
type Problem []ProblemEntry

// qubits returns the set of unique qubits referenced by a Problem.
func (p Problem) qubits() map[int]struct{} {
	seen := make(map[int]struct{}, len(p))
	for _, pe := range p {
		seen[pe.I] = struct{}{}
		seen[pe.J] = struct{}{}
	}
	return seen
}

// countQubits returns a tally of the number of unique qubits referenced by a
// Problem.
func (p Problem) countQubits() int {
	return len(p.qubits())
}

// maxIndex returns the largest qubit index in a Problem, or -1 if it is
// empty.
func (p Problem) maxIndex() int {
	mx := -1
	for _, pe := range p {
		mx = max(mx, pe.I, pe.J)
	}
	return mx
}

// fieldsAndCouplers splits a Problem into field weights and coupler
// strengths.  Couplers are keyed with the smaller index first and duplicate
// entries are summed.
func (p Problem) fieldsAndCouplers() (map[int]float64, map[[2]int]float64) {
	h := make(map[int]float64)
	j := make(map[[2]int]float64)
	for _, pe := range p {
		if pe.I == pe.J {
			h[pe.I] += pe.Value
			continue
		}
		a, b := pe.I, pe.J
		if a > b {
			a, b = b, a
		}
		h[a] += 0
		h[b] += 0
		j[[2]int{a, b}] += pe.Value
	}
	return h, j
}

// IsingEnergy evaluates an Ising-model Problem at a solution indexed by
// qubit.  Entries of 3 (unused) contribute nothing.
func (p Problem) IsingEnergy(soln []int8) float64 {
	spin := func(q int) float64 {
		if q >= len(soln) || soln[q] == 3 {
			return 0
		}
		return float64(soln[q])
	}
	e := 0.0
	for _, pe := range p {
		if pe.I == pe.J {
			e += pe.Value * spin(pe.I)
		} else {
			e += pe.Value * spin(pe.I) * spin(pe.J)
		}
	}
	return e
}

// QuboEnergy evaluates a QUBO Problem at a 0/1 solution indexed by qubit.
func (p Problem) QuboEnergy(soln []int8) float64 {
	bit := func(q int) float64 {
		if q >= len(soln) || soln[q] == 3 {
			return 0
		}
		return float64(soln[q])
	}
	e := 0.0
	for _, pe := range p {
		e += pe.Value * bit(pe.I) * bit(pe.J)
	}
	return e
}

// ChimeraAdjacency constructs the adjacency matrix for an arbitrary Chimera
// graph of m×n unit cells, each a complete bipartite K_{l,l}.  Each coupler
// appears once, with I < J and a Value of 1.
func ChimeraAdjacency(m, n, l int) (Problem, error) {
	if m <= 0 || n <= 0 || l <= 0 {
		return nil, newErrorf(ErrInvalidParameter, "Failed to construct a {%d, %d, %d} Chimera graph", m, n, l)
	}
	idx := func(i, j, u, k int) int {
		return ((i*n+j)*2+u)*l + k
	}
	adj := make(Problem, 0, m*n*l*l+(m-1)*n*l+m*(n-1)*l)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			// Couplers within the unit cell.
			for k0 := 0; k0 < l; k0++ {
				for k1 := 0; k1 < l; k1++ {
					adj = append(adj, ProblemEntry{I: idx(i, j, 0, k0), J: idx(i, j, 1, k1), Value: 1})
				}
			}

			// Vertical couplers to the cell below and horizontal
			// couplers to the cell on the right.
			for k := 0; k < l; k++ {
				if i+1 < m {
					adj = append(adj, ProblemEntry{I: idx(i, j, 0, k), J: idx(i+1, j, 0, k), Value: 1})
				}
				if j+1 < n {
					adj = append(adj, ProblemEntry{I: idx(i, j, 1, k), J: idx(i, j+1, 1, k), Value: 1})
				}
			}
		}
	}
	return adj, nil
}
