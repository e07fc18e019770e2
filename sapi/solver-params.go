// This file presents SAPI types and functions related to solver parameters.

package sapi

import (
	"strings"
)

// A SolverParameterAnswerMode indicates the format in which we want the solver
// to return solutions.
type SolverParameterAnswerMode int

// These are answer modes a solver can accept.
const (
	AnswerModeHistogram SolverParameterAnswerMode = iota // One entry per distinct solution, with occurrence counts
	AnswerModeRaw                                        // One entry per read
)

// String returns the wire name of the answer mode.
func (m SolverParameterAnswerMode) String() string {
	if m == AnswerModeRaw {
		return "raw"
	}
	return "histogram"
}

// SolverParameters is presented as an interface so the caller does not need to
// use different data structures for the different solver types (quantum or the
// various software solvers).
type SolverParameters interface {
	SetAnnealingTime(us int)
	SetAutoScale(y bool)
	SetAnswerMode(m SolverParameterAnswerMode)
	SetBeta(b float64)
	SetNumReads(nr int)
	SetNumSpinReversals(sr int)
	SetLabel(l string)
	ToMap() map[string]any
	label() string
}

// A SwSampleSolverParameters represents the parameters that can be passed to a
// sampling software solver.  It implements the SolverParameters interface.
type SwSampleSolverParameters struct {
	AnswerMode SolverParameterAnswerMode
	Beta       float64 // Boltzmann distribution parameter
	NumReads   int
	RandomSeed uint64 // 0 means "derive from the connection"
	Label      string
}

// NewSwSampleSolverParameters returns a new SwSampleSolverParameters.
func NewSwSampleSolverParameters() *SwSampleSolverParameters {
	return &SwSampleSolverParameters{
		AnswerMode: AnswerModeHistogram,
		Beta:       3.0,
		NumReads:   10,
	}
}

// SetAnnealingTime is a no-op: the Metropolis sampler has no schedule.
func (p *SwSampleSolverParameters) SetAnnealingTime(us int) {
}

// SetAutoScale is a no-op: the sampler uses coefficients as given.
func (p *SwSampleSolverParameters) SetAutoScale(y bool) {
}

// SetAnswerMode chooses between merged counts (histogram) and one
// solution per read (raw).
func (p *SwSampleSolverParameters) SetAnswerMode(m SolverParameterAnswerMode) {
	p.AnswerMode = m
}

// SetBeta sets the inverse temperature the sampler draws from.
func (p *SwSampleSolverParameters) SetBeta(b float64) {
	p.Beta = b
}

// SetNumReads sets how many independent Metropolis chains are run.
func (p *SwSampleSolverParameters) SetNumReads(nr int) {
	p.NumReads = nr
}

// SetNumSpinReversals is a no-op outside hardware.
func (p *SwSampleSolverParameters) SetNumSpinReversals(sr int) {
}

// SetLabel names the problem in logs.
func (p *SwSampleSolverParameters) SetLabel(l string) {
	p.Label = l
}

// ToMap converts a SwSampleSolverParameters to its wire form.
func (p *SwSampleSolverParameters) ToMap() map[string]any {
	return map[string]any{
		"answer_mode": p.AnswerMode.String(),
		"beta":        p.Beta,
		"num_reads":   p.NumReads,
	}
}

func (p *SwSampleSolverParameters) label() string { return p.Label }

// A SwOptimizeSolverParameters represents the parameters that can be passed to
// an optimizing software solver.  It implements the SolverParameters
// interface.
type SwOptimizeSolverParameters struct {
	AnswerMode SolverParameterAnswerMode
	NumReads   int
	RandomSeed uint64
	Label      string
}

// NewSwOptimizeSolverParameters returns a new SwOptimizeSolverParameters.
func NewSwOptimizeSolverParameters() *SwOptimizeSolverParameters {
	return &SwOptimizeSolverParameters{
		AnswerMode: AnswerModeHistogram,
		NumReads:   10,
	}
}

// SetAnnealingTime is a no-op: the optimizer enumerates or anneals on its
// own schedule.
func (p *SwOptimizeSolverParameters) SetAnnealingTime(us int) {
}

// SetAutoScale is a no-op: scaling does not change the optimum.
func (p *SwOptimizeSolverParameters) SetAutoScale(y bool) {
}

// SetAnswerMode chooses between distinct best states with counts
// (histogram) and one state per read (raw).
func (p *SwOptimizeSolverParameters) SetAnswerMode(m SolverParameterAnswerMode) {
	p.AnswerMode = m
}

// SetBeta is a no-op: the optimizer searches for minima, not samples.
func (p *SwOptimizeSolverParameters) SetBeta(b float64) {
}

// SetNumReads bounds the number of best states returned.
func (p *SwOptimizeSolverParameters) SetNumReads(nr int) {
	p.NumReads = nr
}

// SetNumSpinReversals is a no-op outside hardware.
func (p *SwOptimizeSolverParameters) SetNumSpinReversals(sr int) {
}

// SetLabel names the problem in logs.
func (p *SwOptimizeSolverParameters) SetLabel(l string) {
	p.Label = l
}

// ToMap converts a SwOptimizeSolverParameters to its wire form.
func (p *SwOptimizeSolverParameters) ToMap() map[string]any {
	return map[string]any{
		"answer_mode": p.AnswerMode.String(),
		"num_reads":   p.NumReads,
	}
}

func (p *SwOptimizeSolverParameters) label() string { return p.Label }

// A SwHeuristicSolverParameters represents the parameters that can be passed
// to a heuristic software solver.  It implements the SolverParameters
// interface.
type SwHeuristicSolverParameters struct {
	Iterations int // Number of annealing restarts
	RandomSeed uint64
	Label      string
}

// NewSwHeuristicSolverParameters returns a new SwHeuristicSolverParameters.
func NewSwHeuristicSolverParameters() *SwHeuristicSolverParameters {
	return &SwHeuristicSolverParameters{
		Iterations: 10,
	}
}

// SetAnnealingTime is a no-op.  Use Iterations to lengthen the search.
func (p *SwHeuristicSolverParameters) SetAnnealingTime(us int) {
}

// SetAutoScale is a no-op.
func (p *SwHeuristicSolverParameters) SetAutoScale(y bool) {
}

// SetAnswerMode is a no-op: the heuristic returns a single state.
func (p *SwHeuristicSolverParameters) SetAnswerMode(m SolverParameterAnswerMode) {
}

// SetBeta is a no-op: the cooling range is derived from the problem.
func (p *SwHeuristicSolverParameters) SetBeta(b float64) {
}

// SetNumReads is a no-op: the heuristic returns a single state.
func (p *SwHeuristicSolverParameters) SetNumReads(nr int) {
}

// SetNumSpinReversals is a no-op outside hardware.
func (p *SwHeuristicSolverParameters) SetNumSpinReversals(sr int) {
}

// SetLabel names the problem in logs.
func (p *SwHeuristicSolverParameters) SetLabel(l string) {
	p.Label = l
}

// ToMap converts a SwHeuristicSolverParameters to its wire form.
func (p *SwHeuristicSolverParameters) ToMap() map[string]any {
	return map[string]any{
		"iteration_limit": p.Iterations,
	}
}

func (p *SwHeuristicSolverParameters) label() string { return p.Label }

// A QuantumSolverParameters represents the parameters that can be passed to a
// quantum solver.  It implements the SolverParameters interface.
type QuantumSolverParameters struct {
	AnnealingTime    int // Microseconds
	AutoScale        bool
	AnswerMode       SolverParameterAnswerMode
	Beta             float64 // Only sent when positive
	NumReads         int
	NumSpinReversals int
	Label            string
}

// NewQuantumSolverParameters returns a new QuantumSolverParameters.
func NewQuantumSolverParameters() *QuantumSolverParameters {
	return &QuantumSolverParameters{
		AnnealingTime: 20,
		AutoScale:     true,
		AnswerMode:    AnswerModeHistogram,
		NumReads:      1,
	}
}

// SetAnnealingTime sets the duration of each anneal in microseconds.
func (p *QuantumSolverParameters) SetAnnealingTime(us int) {
	p.AnnealingTime = us
}

// SetAutoScale asks the service to rescale coefficients into the
// hardware ranges.
func (p *QuantumSolverParameters) SetAutoScale(y bool) {
	p.AutoScale = y
}

// SetAnswerMode chooses between merged counts (histogram) and one
// solution per read (raw).
func (p *QuantumSolverParameters) SetAnswerMode(m SolverParameterAnswerMode) {
	p.AnswerMode = m
}

// SetBeta sets the Boltzmann parameter sent to the service.  Values of
// zero or less are left out of the request.
func (p *QuantumSolverParameters) SetBeta(b float64) {
	p.Beta = b
}

// SetNumReads sets how many anneals the hardware performs.
func (p *QuantumSolverParameters) SetNumReads(nr int) {
	p.NumReads = nr
}

// SetNumSpinReversals sets how many gauge transformations the service
// spreads the reads over.
func (p *QuantumSolverParameters) SetNumSpinReversals(sr int) {
	p.NumSpinReversals = sr
}

// SetLabel sets the label stored with the problem on the service.
func (p *QuantumSolverParameters) SetLabel(l string) {
	p.Label = l
}

// ToMap converts a QuantumSolverParameters to its wire form.
func (p *QuantumSolverParameters) ToMap() map[string]any {
	m := map[string]any{
		"annealing_time":               p.AnnealingTime,
		"auto_scale":                   p.AutoScale,
		"answer_mode":                  p.AnswerMode.String(),
		"num_reads":                    p.NumReads,
		"num_spin_reversal_transforms": p.NumSpinReversals,
	}
	if p.Beta > 0 {
		m["beta"] = p.Beta
	}
	return m
}

func (p *QuantumSolverParameters) label() string { return p.Label }

// NewSolverParameters returns an appropriate SolverParameters for the solver
// type.
func (s *Solver) NewSolverParameters() SolverParameters {
	switch {
	case strings.HasSuffix(s.Name, "-sw_optimize"):
		return NewSwOptimizeSolverParameters()
	case strings.HasSuffix(s.Name, "-sw_sample"):
		return NewSwSampleSolverParameters()
	case strings.HasSuffix(s.Name, "-heuristic"):
		return NewSwHeuristicSolverParameters()
	default:
		return NewQuantumSolverParameters()
	}
}
