// This file presents an interface to SAPI solver-related types and
// functions.

package sapi

import (
	"context"
	"net/http"
	"net/url"
	"sort"
)

// A Solver represents a SAPI solver.
type Solver struct {
	Name  string      // Solver name
	Conn  *Connection // Connection with which this solver is associated
	props *SolverProperties
	local *localSolver // Non-nil for local solvers
}

// Solver returns a solver associated with a given connection.
func (c *Connection) Solver(ctx context.Context, name string) (*Solver, error) {
	if c.local {
		ls, err := newLocalSolver(name)
		if err != nil {
			return nil, err
		}
		return &Solver{
			Name:  name,
			Conn:  c,
			props: ls.properties(),
			local: ls,
		}, nil
	}

	// Access a remote solver by name.
	var rs remoteSolver
	if err := c.do(ctx, http.MethodGet, "solvers/remote/"+url.PathEscape(name)+"/", nil, &rs); err != nil {
		return nil, err
	}
	return &Solver{
		Name:  name,
		Conn:  c,
		props: propertiesFromRemote(rs.Properties),
	}, nil
}

// An IsingRangeProperties indicates the acceptable ranges of h and J
// coefficients.
type IsingRangeProperties struct {
	HMin float64
	HMax float64
	JMin float64
	JMax float64
}

// A QuantumSolverProperties records the available qubits and couplers.
type QuantumSolverProperties struct {
	NumQubits int      // Total number of qubits, both working and non-working, in the processor
	Qubits    []int    // Working qubit indices
	Couplers  [][2]int // Working couplers in the processor
}

// An AnnealOffsetRange indicates the minimum and maximum values a specific
// anneal offset can accept.
type AnnealOffsetRange [2]float64

// An AnnealOffsetProperties encapsulates properties of per-qubit annealing
// offsets.
type AnnealOffsetProperties struct {
	Ranges   []AnnealOffsetRange // Ranges of valid anneal offset values, in normalized offset units, for each qubit
	Step     float64             // Quantization step size of anneal offset values in normalized units
	StepPhi0 float64             // Quantization step size in physical units (annealing flux bias units)
}

// SolverProperties represents a SAPI solver's properties.
type SolverProperties struct {
	SupportedProblemTypes []string                 // "qubo" and/or "ising"
	IsingRanges           *IsingRangeProperties    // Range of h and J coefficients
	QuantumProps          *QuantumSolverProperties // Properties of the quantum solver
	AnnealOffsets         *AnnealOffsetProperties  // Properties of the per-qubit annealing offsets
	Parameters            []string                 // Valid solver parameter names, sorted in ascending order
}

// propertiesFromRemote converts the wire form of a solver's properties.
func propertiesFromRemote(rp remoteProperties) *SolverProperties {
	p := &SolverProperties{
		SupportedProblemTypes: rp.SupportedProblemTypes,
		QuantumProps: &QuantumSolverProperties{
			NumQubits: rp.NumQubits,
			Qubits:    rp.Qubits,
			Couplers:  rp.Couplers,
		},
	}
	if len(rp.HRange) == 2 && len(rp.JRange) == 2 {
		p.IsingRanges = &IsingRangeProperties{
			HMin: rp.HRange[0],
			HMax: rp.HRange[1],
			JMin: rp.JRange[0],
			JMax: rp.JRange[1],
		}
	}
	if len(rp.AnnealOffsetRanges) > 0 {
		ranges := make([]AnnealOffsetRange, len(rp.AnnealOffsetRanges))
		for i, r := range rp.AnnealOffsetRanges {
			ranges[i] = AnnealOffsetRange(r)
		}
		p.AnnealOffsets = &AnnealOffsetProperties{
			Ranges:   ranges,
			Step:     rp.AnnealOffsetStep,
			StepPhi0: rp.AnnealOffsetStepPhi0,
		}
	}
	for k := range rp.Parameters {
		p.Parameters = append(p.Parameters, k)
	}
	sort.Strings(p.Parameters)
	return p
}

// GetProperties returns the properties associated with a SAPI solver.
func (s *Solver) GetProperties() *SolverProperties {
	return s.props
}

// HardwareAdjacency returns the adjacency matrix for the solver's underlying
// topology.
func (s *Solver) HardwareAdjacency() (Problem, error) {
	qp := s.props.QuantumProps
	if qp == nil {
		return nil, newErrorf(ErrInvalidParameter, "Failed to query the %s solver's topology", s.Name)
	}
	adj := make(Problem, len(qp.Couplers))
	for i, c := range qp.Couplers {
		a, b := c[0], c[1]
		if a > b {
			a, b = b, a
		}
		adj[i] = ProblemEntry{I: a, J: b, Value: 1}
	}
	return adj, nil
}

// A Structure describes a solver's working graph.
type Structure struct {
	Nodes     []int         // Working qubits in ascending order
	Edges     [][2]int      // Working couplers, smaller qubit first
	Adjacency map[int][]int // Neighbors of each working qubit in ascending order
}

// Structure returns the solver's nodes, edge list and adjacency.
func (s *Solver) Structure() (Structure, error) {
	adj, err := s.HardwareAdjacency()
	if err != nil {
		return Structure{}, err
	}
	qp := s.props.QuantumProps
	st := Structure{
		Nodes:     append([]int(nil), qp.Qubits...),
		Edges:     make([][2]int, len(adj)),
		Adjacency: make(map[int][]int, len(qp.Qubits)),
	}
	sort.Ints(st.Nodes)
	for _, q := range st.Nodes {
		st.Adjacency[q] = nil
	}
	for i, pe := range adj {
		st.Edges[i] = [2]int{pe.I, pe.J}
		st.Adjacency[pe.I] = append(st.Adjacency[pe.I], pe.J)
		st.Adjacency[pe.J] = append(st.Adjacency[pe.J], pe.I)
	}
	for _, ns := range st.Adjacency {
		sort.Ints(ns)
	}
	return st, nil
}

// An IsingResult represents a solver's output in Ising-model form.
type IsingResult struct {
	Solutions   [][]int8  // Solutions found (±1, or 0/1 for QUBOs, or 3 for "unused")
	Energies    []float64 // Energy of each solution
	Occurrences []int     // Tally of occurrences of each solution
}

// sortByEnergy orders the result by ascending energy, keeping the solver's
// order among equal energies.
func (ir *IsingResult) sortByEnergy() {
	idx := make([]int, len(ir.Energies))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ir.Energies[idx[a]] < ir.Energies[idx[b]]
	})
	solns := make([][]int8, len(idx))
	energies := make([]float64, len(idx))
	occurs := make([]int, len(idx))
	for i, k := range idx {
		solns[i] = ir.Solutions[k]
		energies[i] = ir.Energies[k]
		occurs[i] = ir.Occurrences[k]
	}
	ir.Solutions, ir.Energies, ir.Occurrences = solns, energies, occurs
}

// SolveIsing solves an Ising-model problem.  It blocks until the solver
// finishes or ctx is done.
func (s *Solver) SolveIsing(ctx context.Context, p Problem, sp SolverParameters) (IsingResult, error) {
	sub, err := s.AsyncSolveIsing(ctx, p, sp)
	if err != nil {
		return IsingResult{}, err
	}
	return sub.wait(ctx)
}

// SolveQubo solves a QUBO problem.  It blocks until the solver finishes or
// ctx is done.
func (s *Solver) SolveQubo(ctx context.Context, p Problem, sp SolverParameters) (IsingResult, error) {
	sub, err := s.AsyncSolveQubo(ctx, p, sp)
	if err != nil {
		return IsingResult{}, err
	}
	return sub.wait(ctx)
}
