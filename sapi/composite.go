// This file provides samplers that accept binary quadratic models with named
// variables and take care of embedding them in a solver's topology.

package sapi

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lanl/qanneal/bqm"
)

// SampleParams controls a call to Sampler.Sample.
type SampleParams struct {
	NumReads      int              // Number of reads to request; 0 keeps the solver's default
	Label         string           // Free-text problem label
	ChainStrength float64          // Magnitude of the chain couplers; 0 selects 1.5 times the largest bias
	BrokenChains  BrokenChains     // How to resolve broken chains
	Parameters    SolverParameters // Solver parameters to start from; nil uses the solver's defaults
}

// A Record is one distinct sample with its energy.
type Record struct {
	Sample             bqm.Sample
	Energy             float64 // Energy under the sampled model, offset included
	NumOccurrences     int
	ChainBreakFraction float64 // Fraction of the sample's chains that were broken
}

// A SampleSet holds the samples returned by a Sampler ordered by ascending
// energy.  Records with equal energies keep the order the solver reported
// them in.
type SampleSet struct {
	Vartype   bqm.Vartype
	Variables []string // Sorted
	Records   []Record
	Timing    time.Duration // Wall time of the Sample call
}

// Len returns the number of distinct samples.
func (ss *SampleSet) Len() int { return len(ss.Records) }

// First returns the lowest-energy record.  It is the best sample in this
// batch, not a proven optimum.
func (ss *SampleSet) First() (Record, bool) {
	if len(ss.Records) == 0 {
		return Record{}, false
	}
	return ss.Records[0], true
}

// add merges a record into the set, combining it with an identical sample
// if one is already present.
func (ss *SampleSet) add(index map[string]int, r Record) {
	key := sampleKey(ss.Variables, r.Sample)
	if k, ok := index[key]; ok {
		prev := &ss.Records[k]
		total := prev.NumOccurrences + r.NumOccurrences
		if total > 0 {
			prev.ChainBreakFraction = (prev.ChainBreakFraction*float64(prev.NumOccurrences) +
				r.ChainBreakFraction*float64(r.NumOccurrences)) / float64(total)
		}
		prev.NumOccurrences = total
		return
	}
	index[key] = len(ss.Records)
	ss.Records = append(ss.Records, r)
}

func (ss *SampleSet) sort() {
	sort.SliceStable(ss.Records, func(i, j int) bool {
		return ss.Records[i].Energy < ss.Records[j].Energy
	})
}

func sampleKey(vars []string, s bqm.Sample) string {
	var b strings.Builder
	for _, v := range vars {
		b.WriteByte(byte(s[v] + 2))
	}
	return b.String()
}

// A Sampler draws samples from a binary quadratic model.
type Sampler interface {
	Sample(ctx context.Context, m *bqm.Model, p SampleParams) (*SampleSet, error)
}

// modelProblem indexes a model's variables in sorted order and returns the
// model as a Problem of the model's own vartype ("qubo" or "ising").  The
// model's offset is not part of the Problem.
func modelProblem(m *bqm.Model) (Problem, []string, string) {
	vars := m.Variables()
	index := make(map[string]int, len(vars))
	for i, v := range vars {
		index[v] = i
	}
	p := make(Problem, 0, len(vars)+len(m.Quadratic))
	for i, v := range vars {
		p = append(p, ProblemEntry{I: i, J: i, Value: m.Linear[v]})
	}
	for _, e := range m.Edges() {
		p = append(p, ProblemEntry{I: index[e[0]], J: index[e[1]], Value: m.Quadratic[e]})
	}
	if m.Vartype == bqm.Binary {
		return p, vars, "qubo"
	}
	return p, vars, "ising"
}

// ExactSampler solves a model in process by enumerating every assignment.
// It is meant for tests and small problems.
type ExactSampler struct {
	MaxVariables int // Largest model accepted; 0 means 24
}

// exactDefaultReads bounds the records ExactSampler returns when no read
// count is given.
const exactDefaultReads = 1 << 16

// Sample returns the NumReads lowest-energy assignments of m, each with one
// occurrence.  NumReads of 0 asks for every assignment, up to
// exactDefaultReads of them.
func (es ExactSampler) Sample(ctx context.Context, m *bqm.Model, p SampleParams) (*SampleSet, error) {
	start := time.Now()
	limit := es.MaxVariables
	if limit <= 0 {
		limit = 24
	}
	n := m.NumVariables()
	if n > limit {
		return nil, newErrorf(ErrInvalidParameter, "ExactSampler accepts at most %d variables, not %d", limit, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prob, vars, problemType := modelProblem(m)
	k := p.NumReads
	if k <= 0 {
		k = exactDefaultReads
	}
	k = min(k, 1<<n)
	ss := &SampleSet{Vartype: m.Vartype, Variables: vars}
	var states []scoredState
	if n == 0 {
		states = []scoredState{{}}
	} else {
		states = newIsingModel(prob, problemType).enumerate(k)
	}
	for _, st := range states {
		spins := bqm.Sample{}
		for i, v := range vars {
			spins[v] = st.spins[i]
		}
		s := bqm.ConvertSample(spins, bqm.Spin, m.Vartype)
		e, err := m.Energy(s)
		if err != nil {
			return nil, err
		}
		ss.Records = append(ss.Records, Record{Sample: s, Energy: e, NumOccurrences: 1})
	}
	ss.sort()
	ss.Timing = time.Since(start)
	return ss, nil
}

// A FixedEmbeddingComposite samples a model on a solver through a
// precomputed embedding.
type FixedEmbeddingComposite struct {
	Child     *Solver
	Embedding map[string][]int // Chain of qubits for each model variable
	Logger    *Logger          // nil uses the solver's connection logger
}

func (c *FixedEmbeddingComposite) logger() *Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return c.Child.Conn.logger.WithSolver(c.Child.Name)
}

// Sample embeds m, samples it on the child solver and maps the answers back
// onto m's variables.
func (c *FixedEmbeddingComposite) Sample(ctx context.Context, m *bqm.Model, p SampleParams) (*SampleSet, error) {
	start := time.Now()
	ss, err := c.sample(ctx, m, p)
	c.logger().LogSample(ctx, p.Label, p.NumReads, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	ss.Timing = time.Since(start)
	return ss, nil
}

func (c *FixedEmbeddingComposite) sample(ctx context.Context, m *bqm.Model, p SampleParams) (*SampleSet, error) {
	spin := m.ChangeVartype(bqm.Spin)
	lp, vars, _ := modelProblem(spin)
	props := c.Child.GetProperties()
	if props.QuantumProps == nil {
		return nil, newErrorf(ErrInvalidParameter, "Solver %s has no qubit topology", c.Child.Name)
	}

	// Translate the labelled embedding.
	chains := make(map[int][]int, len(vars))
	for i, v := range vars {
		chain, ok := c.Embedding[v]
		if !ok || len(chain) == 0 {
			return nil, newErrorf(ErrInvalidParameter, "Variable %s has no chain", v)
		}
		chains[i] = chain
	}
	emb := embeddingsFromChains(chains, props.QuantumProps.NumQubits)

	adj, err := c.Child.HardwareAdjacency()
	if err != nil {
		return nil, err
	}
	ranges := IsingRangeProperties{HMin: -2, HMax: 2, JMin: -1, JMax: 1}
	if props.IsingRanges != nil {
		ranges = *props.IsingRanges
	}
	epr, err := EmbedProblem(lp, emb, adj, false, false, ranges)
	if err != nil {
		return nil, err
	}

	// Add the chain couplers.
	strength := p.ChainStrength
	if strength == 0 {
		strength = DefaultChainStrength(m)
	}
	phys := append(Problem(nil), epr.Prob...)
	for _, pe := range epr.JC {
		phys = append(phys, ProblemEntry{I: pe.I, J: pe.J, Value: pe.Value * strength})
	}
	phys = phys.Canonicalize()

	sp := p.Parameters
	if sp == nil {
		sp = c.Child.NewSolverParameters()
	}
	if p.NumReads > 0 {
		sp.SetNumReads(p.NumReads)
	}
	if p.Label != "" {
		sp.SetLabel(p.Label)
	}
	ir, err := c.Child.SolveIsing(ctx, phys, sp)
	if err != nil {
		return nil, err
	}

	u, err := unembed(ir.Solutions, epr.Emb, p.BrokenChains, lp)
	if err != nil {
		return nil, err
	}
	ss := &SampleSet{Vartype: m.Vartype, Variables: vars}
	index := make(map[string]int)
	for k, ls := range u.solns {
		spins := make(bqm.Sample, len(vars))
		for i, v := range vars {
			spins[v] = ls[i]
		}
		s := bqm.ConvertSample(spins, bqm.Spin, m.Vartype)
		e, err := m.Energy(s)
		if err != nil {
			return nil, err
		}
		occ := 1
		if j := u.kept[k]; j < len(ir.Occurrences) {
			occ = ir.Occurrences[j]
		}
		ss.add(index, Record{
			Sample:             s,
			Energy:             e,
			NumOccurrences:     occ,
			ChainBreakFraction: u.breakage[k],
		})
	}
	ss.sort()
	return ss, nil
}

// An EmbeddingComposite finds an embedding for each model it samples,
// optionally caching embeddings on disk, and samples through a
// FixedEmbeddingComposite.
type EmbeddingComposite struct {
	Child    *Solver
	Params   *FindEmbeddingParameters // nil uses NewFindEmbeddingParameters
	CacheDir string                   // Directory of cached embeddings; empty disables caching
	Logger   *Logger                  // nil uses the solver's connection logger
}

func (c *EmbeddingComposite) logger() *Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return c.Child.Conn.logger.WithSolver(c.Child.Name)
}

// Embed returns an embedding of m's interaction graph in the child solver's
// topology, reading it from and storing it in the cache when one is set.
func (c *EmbeddingComposite) Embed(ctx context.Context, m *bqm.Model) (map[string][]int, error) {
	vars, edges := m.Variables(), m.Edges()
	adj, err := c.Child.HardwareAdjacency()
	if err != nil {
		return nil, err
	}
	var path string
	if c.CacheDir != "" {
		path = EmbeddingPath(c.CacheDir, EmbeddingKey(c.Child.Name, vars, edges))
		chains, err := LoadEmbedding(path, c.Child.Name)
		switch {
		case err == nil:
			verr := VerifyLabeledEmbedding(edges, vars, chains, adj)
			if verr == nil {
				c.logger().DebugContext(ctx, "embedding cache hit", "path", path)
				return chains, nil
			}
			c.logger().WarnContext(ctx, "ignoring invalid cached embedding", "path", path, "error", verr)
		case !errors.Is(err, ErrEmbeddingNotCached):
			c.logger().WarnContext(ctx, "ignoring unreadable cached embedding", "path", path, "error", err)
		}
	}

	fep := c.Params
	if fep == nil {
		fep = NewFindEmbeddingParameters()
	}
	if fep.Logger == nil {
		withLogger := *fep
		withLogger.Logger = c.logger()
		fep = &withLogger
	}
	chains, err := FindLabeledEmbedding(ctx, edges, vars, adj, fep)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := SaveEmbedding(path, c.Child.Name, chains); err != nil {
			c.logger().WarnContext(ctx, "failed to cache embedding", "path", path, "error", err)
		}
	}
	return chains, nil
}

// Sample embeds m and samples it on the child solver.
func (c *EmbeddingComposite) Sample(ctx context.Context, m *bqm.Model, p SampleParams) (*SampleSet, error) {
	chains, err := c.Embed(ctx, m)
	if err != nil {
		return nil, err
	}
	fixed := &FixedEmbeddingComposite{
		Child:     c.Child,
		Embedding: chains,
		Logger:    c.Logger,
	}
	return fixed.Sample(ctx, m, p)
}

// DefaultChainStrength returns the chain strength used when SampleParams
// leaves it unset: 1.5 times the largest bias of the model in spin form, or 1
// for a model with no biases.
func DefaultChainStrength(m *bqm.Model) float64 {
	s := 1.5 * math.Abs(m.ChangeVartype(bqm.Spin).MaxAbsBias())
	if s == 0 {
		return 1
	}
	return s
}
