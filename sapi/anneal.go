// This file implements the spin-glass kernels behind the local solvers:
// exhaustive enumeration, simulated annealing, steepest descent and
// fixed-temperature Metropolis sampling.

package sapi

import (
	"container/heap"
	"math"
	"math/rand/v2"
	"sort"
)

// A neighbor is one coupler incident on a variable of an isingModel.
type neighbor struct {
	k int     // Position of the other variable
	j float64 // Coupler strength
}

// An isingModel is a dense spin model over the active qubits of a Problem.
// QUBO problems are converted on the way in so the kernels only deal with
// spins; the offset keeps energies equal to those of the original problem.
type isingModel struct {
	qubits []int // Active qubits in ascending order
	h      []float64
	adj    [][]neighbor
	offset float64
}

// newIsingModel builds an isingModel from a Problem of the given type.
func newIsingModel(p Problem, problemType string) *isingModel {
	m := &isingModel{}
	if problemType == "qubo" {
		p, m.offset = p.ToIsing()
	}
	h, j := p.fieldsAndCouplers()
	m.qubits = make([]int, 0, len(h))
	for q := range h {
		m.qubits = append(m.qubits, q)
	}
	sort.Ints(m.qubits)
	pos := make(map[int]int, len(m.qubits))
	for i, q := range m.qubits {
		pos[q] = i
	}
	m.h = make([]float64, len(m.qubits))
	m.adj = make([][]neighbor, len(m.qubits))
	for q, v := range h {
		m.h[pos[q]] = v
	}
	for c, v := range j {
		if v == 0 {
			continue
		}
		a, b := pos[c[0]], pos[c[1]]
		m.adj[a] = append(m.adj[a], neighbor{k: b, j: v})
		m.adj[b] = append(m.adj[b], neighbor{k: a, j: v})
	}
	return m
}

func (m *isingModel) size() int { return len(m.qubits) }

// energy returns the model's energy at a spin configuration.
func (m *isingModel) energy(s []int8) float64 {
	e := m.offset
	for i, hi := range m.h {
		e += hi * float64(s[i])
		for _, nb := range m.adj[i] {
			if nb.k > i {
				e += nb.j * float64(s[i]) * float64(s[nb.k])
			}
		}
	}
	return e
}

// field returns the effective field acting on variable i.
func (m *isingModel) field(s []int8, i int) float64 {
	f := m.h[i]
	for _, nb := range m.adj[i] {
		f += nb.j * float64(s[nb.k])
	}
	return f
}

// flipDelta returns the energy change of flipping variable i.
func (m *isingModel) flipDelta(s []int8, i int) float64 {
	return -2 * float64(s[i]) * m.field(s, i)
}

// betaRange picks hot and cold inverse temperatures from the model's
// coefficients: a flip costing the largest possible amount is accepted half
// the time at the hot end, and one costing the smallest nonzero amount is
// accepted once in a hundred tries at the cold end.
func (m *isingModel) betaRange() (hot, cold float64) {
	maxDelta, minDelta := 0.0, math.Inf(1)
	for i, hi := range m.h {
		d := math.Abs(hi)
		if d > 0 {
			minDelta = min(minDelta, d)
		}
		for _, nb := range m.adj[i] {
			d += math.Abs(nb.j)
			if nb.j != 0 {
				minDelta = min(minDelta, math.Abs(nb.j))
			}
		}
		maxDelta = max(maxDelta, d)
	}
	if maxDelta == 0 {
		return 0.1, 1
	}
	hot = math.Ln2 / (2 * maxDelta)
	cold = math.Log(100) / (2 * minDelta)
	if cold < hot {
		cold = hot
	}
	return hot, cold
}

func randomSpins(rng *rand.Rand, n int) []int8 {
	s := make([]int8, n)
	for i := range s {
		if rng.IntN(2) == 0 {
			s[i] = -1
		} else {
			s[i] = 1
		}
	}
	return s
}

// metropolisSweep attempts one flip per variable at inverse temperature
// beta.
func (m *isingModel) metropolisSweep(rng *rand.Rand, s []int8, beta float64) {
	for i := range s {
		d := m.flipDelta(s, i)
		if d <= 0 || rng.Float64() < math.Exp(-beta*d) {
			s[i] = -s[i]
		}
	}
}

// anneal runs simulated annealing from a random start along a geometric
// beta schedule and finishes with steepest descent.
func (m *isingModel) anneal(rng *rand.Rand, sweeps int) []int8 {
	s := randomSpins(rng, m.size())
	hot, cold := m.betaRange()
	ratio := 1.0
	if sweeps > 1 {
		ratio = math.Pow(cold/hot, 1/float64(sweeps-1))
	}
	beta := hot
	for range sweeps {
		m.metropolisSweep(rng, s, beta)
		beta *= ratio
	}
	m.descend(s)
	return s
}

// sample draws one configuration from the Boltzmann distribution at beta by
// running sweeps Metropolis sweeps from a random start.
func (m *isingModel) sample(rng *rand.Rand, beta float64, sweeps int) []int8 {
	s := randomSpins(rng, m.size())
	for range sweeps {
		m.metropolisSweep(rng, s, beta)
	}
	return s
}

// descend repeatedly flips the variable with the most negative flip delta
// until no flip lowers the energy.
func (m *isingModel) descend(s []int8) {
	for {
		best, bestD := -1, 0.0
		for i := range s {
			if d := m.flipDelta(s, i); d < bestD-1e-12 {
				best, bestD = i, d
			}
		}
		if best < 0 {
			return
		}
		s[best] = -s[best]
	}
}

// A scoredState is a configuration with its energy.
type scoredState struct {
	spins  []int8
	energy float64
}

// stateHeap is a max-heap on energy used to keep the k lowest states.
type stateHeap []scoredState

func (h stateHeap) Len() int           { return len(h) }
func (h stateHeap) Less(i, j int) bool { return h[i].energy > h[j].energy }
func (h stateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *stateHeap) Push(x any)        { *h = append(*h, x.(scoredState)) }
func (h *stateHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// maxExactVariables bounds the problem size handled by enumerate.
const maxExactVariables = 20

// enumerate visits every configuration in Gray-code order and returns the k
// lowest-energy ones, lowest first.
func (m *isingModel) enumerate(k int) []scoredState {
	n := m.size()
	s := make([]int8, n)
	for i := range s {
		s[i] = -1
	}
	e := m.energy(s)
	h := make(stateHeap, 0, k+1)
	consider := func() {
		if len(h) < k {
			heap.Push(&h, scoredState{spins: append([]int8(nil), s...), energy: e})
		} else if e < h[0].energy {
			h[0] = scoredState{spins: append([]int8(nil), s...), energy: e}
			heap.Fix(&h, 0)
		}
	}
	consider()
	total := uint64(1) << n
	for g := uint64(1); g < total; g++ {
		// The bit that changes between Gray codes g-1 and g.
		i := 0
		for (g>>i)&1 == 0 {
			i++
		}
		e += m.flipDelta(s, i)
		s[i] = -s[i]
		consider()
	}
	out := make([]scoredState, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(scoredState)
	}
	return out
}
