// This file implements the heuristic search behind FindEmbedding.

package sapi

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lanl/qanneal/bqm"
)

// FindEmbeddingParameters encapsulate the parameters for FindEmbedding.
type FindEmbeddingParameters struct {
	FastEmbedding    bool          // Try to get an embedding quickly, without worrying about chain length
	MaxNoImprovement int           // Number of refinement rounds to try from the current solution with no improvement
	UseRandomSeed    bool          // Honor the RandomSeed field (below)
	RandomSeed       uint64        // Seed for the random number generator
	Timeout          time.Duration // Give up after this long (0 for no limit)
	Tries            int           // Number of independent attempts
	Logger           *Logger       // Receives a record of the search; nil discards it
}

// NewFindEmbeddingParameters returns a new FindEmbeddingParameters,
// initialized using a set of default parameters.
func NewFindEmbeddingParameters() *FindEmbeddingParameters {
	return &FindEmbeddingParameters{
		MaxNoImprovement: 10,
		Timeout:          1000 * time.Second,
		Tries:            10,
	}
}

// FindEmbedding attempts to find an embedding of a Ising/QUBO problem in a
// graph. This function is entirely heuristic: failure to return an embedding
// does not prove that no embedding exists.
//
// Tries attempts run in parallel, each growing chains in a randomized order;
// the embedding using the fewest qubits wins, with ties going to the
// lowest-numbered attempt so that seeded searches are reproducible.
func FindEmbedding(ctx context.Context, pr, adj Problem, fep *FindEmbeddingParameters) (Embeddings, error) {
	if fep == nil {
		fep = NewFindEmbeddingParameters()
	}
	logger := fep.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	if fep.Tries <= 0 {
		return nil, newErrorf(ErrInvalidParameter, "Tries must be positive, not %d", fep.Tries)
	}
	if fep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fep.Timeout)
		defer cancel()
	}
	seed := uint64(time.Now().UnixNano())
	if fep.UseRandomSeed {
		seed = fep.RandomSeed
	}

	start := time.Now()
	t := newTopology(adj)
	vars, nbrs := sourceGraph(pr)
	found := make([]map[int][]int, fep.Tries)
	var g errgroup.Group
	g.SetLimit(8)
	for i := range fep.Tries {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			e := &embedder{
				t:    t,
				vars: vars,
				nbrs: nbrs,
				rng:  rand.New(rand.NewPCG(seed, uint64(i))),
			}
			found[i] = e.run(ctx, fep)
			return nil
		})
	}
	_ = g.Wait()

	best, bestSize := -1, math.MaxInt
	for i, chains := range found {
		if chains == nil {
			continue
		}
		size := 0
		for _, c := range chains {
			size += len(c)
		}
		if size < bestSize {
			best, bestSize = i, size
		}
	}
	if best < 0 {
		err := newErrorf(ErrNoEmbedding, "Failed to find an embedding of %d variables in %d tries", len(vars), fep.Tries)
		if ctx.Err() != nil {
			err = wrapErrorf(ErrNoEmbedding, ctx.Err(), "Embedding search of %d variables stopped", len(vars))
		}
		logger.LogEmbedding(ctx, len(vars), 0, time.Since(start), err)
		return nil, err
	}
	logger.LogEmbedding(ctx, len(vars), bestSize, time.Since(start), nil)
	return embeddingsFromChains(found[best], t.numQubits), nil
}

// An embedder holds the state of one embedding attempt.
type embedder struct {
	t      *topology
	vars   []int
	nbrs   map[int][]int
	rng    *rand.Rand
	chains map[int][]int
	owner  map[int]int
}

// run places every variable, then refines the chains unless a fast
// embedding was requested.  It returns nil on failure.
func (e *embedder) run(ctx context.Context, fep *FindEmbeddingParameters) map[int][]int {
	e.chains = make(map[int][]int, len(e.vars))
	e.owner = make(map[int]int)
	for _, v := range e.placementOrder() {
		if ctx.Err() != nil {
			return nil
		}
		if !e.place(v) {
			return nil
		}
	}
	if fep.FastEmbedding {
		return e.chains
	}

	stale := 0
	for stale < fep.MaxNoImprovement && ctx.Err() == nil {
		before := e.size()
		order := append([]int(nil), e.vars...)
		e.rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, v := range order {
			old := e.chains[v]
			e.release(v)
			if !e.place(v) || len(e.chains[v]) > len(old) {
				e.release(v)
				e.claim(v, old)
			}
		}
		if e.size() < before {
			stale = 0
		} else {
			stale++
		}
	}
	return e.chains
}

func (e *embedder) size() int {
	n := 0
	for _, c := range e.chains {
		n += len(c)
	}
	return n
}

// placementOrder visits the source graph breadth first from random roots so
// that each variable after the first of its component has a placed
// neighbor.
func (e *embedder) placementOrder() []int {
	roots := append([]int(nil), e.vars...)
	e.rng.Shuffle(len(roots), func(a, b int) { roots[a], roots[b] = roots[b], roots[a] })
	seen := make(map[int]bool, len(e.vars))
	order := make([]int, 0, len(e.vars))
	for _, r := range roots {
		if seen[r] {
			continue
		}
		seen[r] = true
		queue := []int{r}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			order = append(order, v)
			ns := append([]int(nil), e.nbrs[v]...)
			e.rng.Shuffle(len(ns), func(a, b int) { ns[a], ns[b] = ns[b], ns[a] })
			for _, u := range ns {
				if !seen[u] {
					seen[u] = true
					queue = append(queue, u)
				}
			}
		}
	}
	return order
}

func (e *embedder) claim(v int, chain []int) {
	e.chains[v] = chain
	for _, q := range chain {
		e.owner[q] = v
	}
}

func (e *embedder) release(v int) {
	for _, q := range e.chains[v] {
		delete(e.owner, q)
	}
	delete(e.chains, v)
}

func (e *embedder) free(q int) bool {
	_, taken := e.owner[q]
	return !taken
}

// A search is a breadth-first search through free qubits that starts next
// to one chain.
type search struct {
	dist   map[int]int // Free qubits on the path, this one included
	parent map[int]int // Previous free qubit, or -1 next to the chain
}

func (e *embedder) searchFrom(chain []int) search {
	s := search{dist: make(map[int]int), parent: make(map[int]int)}
	var queue []int
	for _, q := range chain {
		for _, n := range e.t.adj[q] {
			if _, ok := s.dist[n]; !ok && e.free(n) {
				s.dist[n] = 1
				s.parent[n] = -1
				queue = append(queue, n)
			}
		}
	}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		for _, n := range e.t.adj[q] {
			if _, ok := s.dist[n]; !ok && e.free(n) {
				s.dist[n] = s.dist[q] + 1
				s.parent[n] = q
				queue = append(queue, n)
			}
		}
	}
	return s
}

// place builds a chain for v that reaches every placed neighbor.  The chain
// is rooted at the free qubit minimizing the total path length to those
// neighbors; ties are broken at random.
func (e *embedder) place(v int) bool {
	var placed [][]int
	for _, u := range e.nbrs[v] {
		if c, ok := e.chains[u]; ok {
			placed = append(placed, c)
		}
	}

	if len(placed) == 0 {
		// Start on the free qubit with the most free neighbors.
		best, bestFree, ties := -1, -1, 0
		for _, q := range e.t.qubits {
			if !e.free(q) {
				continue
			}
			nf := 0
			for _, n := range e.t.adj[q] {
				if e.free(n) {
					nf++
				}
			}
			switch {
			case nf > bestFree:
				best, bestFree, ties = q, nf, 1
			case nf == bestFree:
				ties++
				if e.rng.IntN(ties) == 0 {
					best = q
				}
			}
		}
		if best < 0 {
			return false
		}
		e.claim(v, []int{best})
		return true
	}

	searches := make([]search, len(placed))
	for i, c := range placed {
		searches[i] = e.searchFrom(c)
	}
	root, bestCost, ties := -1, math.MaxInt, 0
	for _, q := range e.t.qubits {
		if !e.free(q) {
			continue
		}
		cost := 1
		for _, s := range searches {
			d, ok := s.dist[q]
			if !ok {
				cost = math.MaxInt
				break
			}
			cost += d - 1
		}
		switch {
		case cost == math.MaxInt:
		case cost < bestCost:
			root, bestCost, ties = q, cost, 1
		case cost == bestCost:
			ties++
			if e.rng.IntN(ties) == 0 {
				root = q
			}
		}
	}
	if root < 0 {
		return false
	}

	in := map[int]bool{root: true}
	chain := []int{root}
	for _, s := range searches {
		for q := s.parent[root]; q >= 0; q = s.parent[q] {
			if !in[q] {
				in[q] = true
				chain = append(chain, q)
			}
		}
	}
	sort.Ints(chain)
	e.claim(v, chain)
	return true
}

// labeledProblem indexes named variables in ascending order and returns a
// Problem with one entry per variable and per edge.
func labeledProblem(vars []string, edges []bqm.Pair) (Problem, []string, error) {
	names := append([]string(nil), vars...)
	sort.Strings(names)
	names = slices.Compact(names)
	index := make(map[string]int, len(names))
	for i, v := range names {
		index[v] = i
	}
	pr := make(Problem, 0, len(names)+len(edges))
	for i := range names {
		pr = append(pr, ProblemEntry{I: i, J: i, Value: 1})
	}
	for _, e := range edges {
		a, okA := index[e[0]]
		b, okB := index[e[1]]
		if !okA || !okB {
			return nil, nil, newErrorf(ErrInvalidParameter, "Edge (%s, %s) names an unknown variable", e[0], e[1])
		}
		if a != b {
			pr = append(pr, ProblemEntry{I: a, J: b, Value: 1})
		}
	}
	return pr, names, nil
}

// FindLabeledEmbedding is FindEmbedding for named variables.  It returns
// each variable's chain of qubits in ascending order.
func FindLabeledEmbedding(ctx context.Context, edges []bqm.Pair, vars []string, adj Problem, fep *FindEmbeddingParameters) (map[string][]int, error) {
	pr, names, err := labeledProblem(vars, edges)
	if err != nil {
		return nil, err
	}
	emb, err := FindEmbedding(ctx, pr, adj, fep)
	if err != nil {
		return nil, err
	}
	chains := emb.Chains()
	out := make(map[string][]int, len(names))
	for i, v := range names {
		out[v] = chains[i]
	}
	return out, nil
}

// VerifyLabeledEmbedding is VerifyEmbedding for named variables.
func VerifyLabeledEmbedding(edges []bqm.Pair, vars []string, chains map[string][]int, adj Problem) error {
	pr, names, err := labeledProblem(vars, edges)
	if err != nil {
		return err
	}
	byIndex := make(map[int][]int, len(names))
	for i, v := range names {
		byIndex[i] = chains[v]
	}
	vs, nbrs := sourceGraph(pr)
	return verifyChains(byIndex, vs, nbrs, newTopology(adj))
}
