// This file implements the local (simulated) solvers, which run in process
// on a C4 Chimera topology.

package sapi

import (
	"context"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Dimensions of the local solvers' Chimera graph.
const (
	localChimeraM = 4
	localChimeraN = 4
	localChimeraL = 4
)

// Sweep counts per read for the annealing kernels.
const (
	optimizeSweeps  = 256
	sampleSweeps    = 1000
	heuristicSweeps = 2000
)

type localKind int

const (
	localOptimize localKind = iota
	localSample
	localHeuristic
)

var localSolverKinds = map[string]localKind{
	"c4-sw_optimize": localOptimize,
	"c4-sw_sample":   localSample,
	"c4-heuristic":   localHeuristic,
}

// localSolverNames lists the local solvers in ascending order.
func localSolverNames() []string {
	names := make([]string, 0, len(localSolverKinds))
	for n := range localSolverKinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type localSolver struct {
	kind localKind
	qp   *QuantumSolverProperties
}

func newLocalSolver(name string) (*localSolver, error) {
	kind, ok := localSolverKinds[name]
	if !ok {
		return nil, newErrorf(ErrInvalidParameter, "Unknown local solver %q", name)
	}
	adj, err := ChimeraAdjacency(localChimeraM, localChimeraN, localChimeraL)
	if err != nil {
		return nil, err
	}
	nq := 2 * localChimeraM * localChimeraN * localChimeraL
	qp := &QuantumSolverProperties{
		NumQubits: nq,
		Qubits:    make([]int, nq),
		Couplers:  make([][2]int, len(adj)),
	}
	for q := range qp.Qubits {
		qp.Qubits[q] = q
	}
	for i, pe := range adj {
		qp.Couplers[i] = [2]int{pe.I, pe.J}
	}
	return &localSolver{kind: kind, qp: qp}, nil
}

func (ls *localSolver) properties() *SolverProperties {
	var params []string
	switch ls.kind {
	case localOptimize:
		params = []string{"answer_mode", "num_reads", "random_seed"}
	case localSample:
		params = []string{"answer_mode", "beta", "num_reads", "random_seed"}
	case localHeuristic:
		params = []string{"iteration_limit", "random_seed"}
	}
	return &SolverProperties{
		SupportedProblemTypes: []string{"ising", "qubo"},
		IsingRanges:           &IsingRangeProperties{HMin: -2, HMax: 2, JMin: -1, JMax: 1},
		QuantumProps:          ls.qp,
		Parameters:            params,
	}
}

// localSettings are the parameters a local solver honors.
type localSettings struct {
	reads      int
	raw        bool
	beta       float64
	iterations int
	seed       uint64
}

// settingsFor extracts localSettings from any SolverParameters.  Parameter
// types meant for another solver contribute whatever their wire form shares
// with this one.
func settingsFor(sp SolverParameters) localSettings {
	ls := localSettings{reads: 10, beta: 3.0, iterations: 10}
	switch p := sp.(type) {
	case nil:
	case *SwOptimizeSolverParameters:
		ls.reads, ls.raw, ls.seed = p.NumReads, p.AnswerMode == AnswerModeRaw, p.RandomSeed
	case *SwSampleSolverParameters:
		ls.reads, ls.raw, ls.beta, ls.seed = p.NumReads, p.AnswerMode == AnswerModeRaw, p.Beta, p.RandomSeed
	case *SwHeuristicSolverParameters:
		ls.iterations, ls.seed = p.Iterations, p.RandomSeed
	default:
		m := sp.ToMap()
		if v, ok := m["num_reads"].(int); ok {
			ls.reads = v
		}
		if v, ok := m["answer_mode"].(string); ok {
			ls.raw = v == "raw"
		}
		if v, ok := m["beta"].(float64); ok {
			ls.beta = v
		}
	}
	return ls
}

// solve runs a problem of the given type ("ising" or "qubo") on the local
// solver.  Independent reads run in parallel, each with its own generator
// derived from seed so the output does not depend on scheduling.
func (ls *localSolver) solve(ctx context.Context, p Problem, problemType string, sp SolverParameters, seed uint64) (IsingResult, error) {
	if err := validateProblem(p, ls.qp); err != nil {
		return IsingResult{}, err
	}
	set := settingsFor(sp)
	if set.seed != 0 {
		seed = set.seed
	}
	if set.reads <= 0 {
		return IsingResult{}, newErrorf(ErrInvalidParameter, "num_reads must be positive, not %d", set.reads)
	}
	if set.iterations <= 0 {
		return IsingResult{}, newErrorf(ErrInvalidParameter, "iteration_limit must be positive, not %d", set.iterations)
	}
	m := newIsingModel(p, problemType)

	var states []scoredState
	switch {
	case m.size() == 0:
		states = []scoredState{{spins: nil, energy: m.offset}}
	case ls.kind == localOptimize && m.size() <= maxExactVariables:
		states = m.enumerate(set.reads)
		if set.raw {
			// Every read finds a ground state.
			states = repeatState(states[0], set.reads)
		}
	case ls.kind == localHeuristic:
		best, err := runReads(ctx, seed, set.iterations, func(rng *rand.Rand) []int8 {
			return m.anneal(rng, heuristicSweeps)
		}, m)
		if err != nil {
			return IsingResult{}, err
		}
		sortStates(best)
		states = best[:1]
	case ls.kind == localSample:
		reads, err := runReads(ctx, seed, set.reads, func(rng *rand.Rand) []int8 {
			return m.sample(rng, set.beta, sampleSweeps)
		}, m)
		if err != nil {
			return IsingResult{}, err
		}
		states = reads
	default:
		reads, err := runReads(ctx, seed, set.reads, func(rng *rand.Rand) []int8 {
			return m.anneal(rng, optimizeSweeps)
		}, m)
		if err != nil {
			return IsingResult{}, err
		}
		states = reads
	}
	return ls.result(m, states, problemType, set.raw || ls.kind == localHeuristic), nil
}

func repeatState(s scoredState, n int) []scoredState {
	out := make([]scoredState, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func sortStates(states []scoredState) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].energy < states[j].energy
	})
}

// runReads runs n independent reads in parallel.
func runReads(ctx context.Context, seed uint64, n int, read func(*rand.Rand) []int8, m *isingModel) ([]scoredState, error) {
	out := make([]scoredState, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			s := read(rng)
			out[i] = scoredState{spins: s, energy: m.energy(s)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// result converts model states into an IsingResult over every qubit.  In
// histogram mode identical states are merged and counted.
func (ls *localSolver) result(m *isingModel, states []scoredState, problemType string, raw bool) IsingResult {
	zero := int8(-1)
	if problemType == "qubo" {
		zero = 0
	}
	expand := func(spins []int8) []int8 {
		s := make([]int8, ls.qp.NumQubits)
		for q := range s {
			s[q] = 3
		}
		for i, q := range m.qubits {
			if spins[i] == 1 {
				s[q] = 1
			} else {
				s[q] = zero
			}
		}
		return s
	}

	var ir IsingResult
	index := make(map[string]int)
	for _, st := range states {
		if !raw {
			key := string(spinKey(st.spins))
			if k, ok := index[key]; ok {
				ir.Occurrences[k]++
				continue
			}
			index[key] = len(ir.Solutions)
		}
		ir.Solutions = append(ir.Solutions, expand(st.spins))
		ir.Energies = append(ir.Energies, st.energy)
		ir.Occurrences = append(ir.Occurrences, 1)
	}
	ir.sortByEnergy()
	return ir
}

func spinKey(spins []int8) []byte {
	b := make([]byte, len(spins))
	for i, s := range spins {
		b[i] = byte(s)
	}
	return b
}
