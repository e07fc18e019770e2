// This file provides functions for embedding problems in a topology.

package sapi

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Embeddings indicates the logical variable e[i] that maps to physical qubit i
// (or -1 for no logical variable).
type Embeddings []int

// Chains groups an Embeddings by logical variable.  Each chain lists its
// qubits in ascending order.
func (emb Embeddings) Chains() map[int][]int {
	chains := make(map[int][]int)
	for q, v := range emb {
		if v >= 0 {
			chains[v] = append(chains[v], q)
		}
	}
	return chains
}

// embeddingsFromChains is the inverse of Embeddings.Chains.
func embeddingsFromChains(chains map[int][]int, numQubits int) Embeddings {
	emb := make(Embeddings, numQubits)
	for q := range emb {
		emb[q] = -1
	}
	for v, chain := range chains {
		for _, q := range chain {
			emb[q] = v
		}
	}
	return emb
}

// A topology is a hardware graph in adjacency-list form.
type topology struct {
	qubits    []int // Qubits that appear in at least one coupler, ascending
	numQubits int   // One more than the largest qubit index
	adj       map[int][]int
	couplers  map[[2]int]struct{}
}

func newTopology(adj Problem) *topology {
	t := &topology{
		numQubits: adj.maxIndex() + 1,
		adj:       make(map[int][]int),
		couplers:  make(map[[2]int]struct{}),
	}
	for _, pe := range adj {
		if pe.I == pe.J {
			continue
		}
		a, b := pe.I, pe.J
		if a > b {
			a, b = b, a
		}
		if _, dup := t.couplers[[2]int{a, b}]; dup {
			continue
		}
		t.couplers[[2]int{a, b}] = struct{}{}
		t.adj[a] = append(t.adj[a], b)
		t.adj[b] = append(t.adj[b], a)
	}
	for q, ns := range t.adj {
		sort.Ints(ns)
		t.qubits = append(t.qubits, q)
	}
	sort.Ints(t.qubits)
	return t
}

func (t *topology) coupled(a, b int) bool {
	if a > b {
		a, b = b, a
	}
	_, ok := t.couplers[[2]int{a, b}]
	return ok
}

// sourceGraph returns the variables of a problem and, for each, its distinct
// neighbors in ascending order.
func sourceGraph(pr Problem) ([]int, map[int][]int) {
	nbrs := make(map[int]map[int]struct{})
	for _, pe := range pr {
		for _, v := range [2]int{pe.I, pe.J} {
			if nbrs[v] == nil {
				nbrs[v] = make(map[int]struct{})
			}
		}
		if pe.I != pe.J {
			nbrs[pe.I][pe.J] = struct{}{}
			nbrs[pe.J][pe.I] = struct{}{}
		}
	}
	vars := make([]int, 0, len(nbrs))
	out := make(map[int][]int, len(nbrs))
	for v, set := range nbrs {
		vars = append(vars, v)
		ns := make([]int, 0, len(set))
		for u := range set {
			ns = append(ns, u)
		}
		sort.Ints(ns)
		out[v] = ns
	}
	sort.Ints(vars)
	return vars, out
}

// chainConnected says whether a chain induces a connected subgraph.
func (t *topology) chainConnected(chain []int) bool {
	if len(chain) == 0 {
		return false
	}
	in := make(map[int]bool, len(chain))
	for _, q := range chain {
		in[q] = true
	}
	seen := map[int]bool{chain[0]: true}
	stack := []int{chain[0]}
	for len(stack) > 0 {
		q := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range t.adj[q] {
			if in[n] && !seen[n] {
				seen[n] = true
				stack = append(stack, n)
			}
		}
	}
	return len(seen) == len(in)
}

// chainsCoupled says whether some coupler joins two chains.
func (t *topology) chainsCoupled(a, b []int) bool {
	for _, qa := range a {
		for _, qb := range b {
			if t.coupled(qa, qb) {
				return true
			}
		}
	}
	return false
}

// verifyChains checks chains against a source graph and a topology.
func verifyChains(chains map[int][]int, vars []int, nbrs map[int][]int, t *topology) error {
	owner := make(map[int]int)
	for _, v := range vars {
		chain := chains[v]
		if len(chain) == 0 {
			return newErrorf(ErrInvalidParameter, "Variable %d has an empty chain", v)
		}
		for _, q := range chain {
			if _, ok := t.adj[q]; !ok {
				return newErrorf(ErrInvalidParameter, "Chain of variable %d uses unknown qubit %d", v, q)
			}
			if o, taken := owner[q]; taken && o != v {
				return newErrorf(ErrInvalidParameter, "Qubit %d is shared by variables %d and %d", q, o, v)
			}
			owner[q] = v
		}
		if !t.chainConnected(chain) {
			return newErrorf(ErrInvalidParameter, "Chain of variable %d is not connected", v)
		}
	}
	for _, v := range vars {
		for _, u := range nbrs[v] {
			if u > v && !t.chainsCoupled(chains[v], chains[u]) {
				return newErrorf(ErrInvalidParameter, "No coupler joins the chains of variables %d and %d", v, u)
			}
		}
	}
	return nil
}

// VerifyEmbedding reports whether emb is a valid embedding of pr in adj:
// every variable has a non-empty connected chain and every interaction of pr
// is covered by at least one coupler.
func VerifyEmbedding(pr Problem, emb Embeddings, adj Problem) error {
	vars, nbrs := sourceGraph(pr)
	return verifyChains(emb.Chains(), vars, nbrs, newTopology(adj))
}

// An EmbedProblemResult represents the result of an embedding of a problem in
// a physical topology.
type EmbedProblemResult struct {
	Prob Problem    // Embedded problem
	JC   Problem    // Chain edges (J values coupling vertices representing the same logical variable)
	Emb  Embeddings // Embeddings, possibly modified by cleaning or smearing
}

// EmbedProblem uses the result of FindEmbedding to embed a problem in the
// physical topology.  Each field weight is spread evenly over its chain and
// each coupler strength over the couplers joining the two chains.  clean
// removes chain qubits no interaction needs; smear grows chains whose field
// weight would otherwise fall outside ranges.
func EmbedProblem(pr Problem, emb Embeddings, adj Problem, clean, smear bool,
	ranges IsingRangeProperties) (*EmbedProblemResult, error) {
	t := newTopology(adj)
	vars, nbrs := sourceGraph(pr)
	chains := emb.Chains()
	if err := verifyChains(chains, vars, nbrs, t); err != nil {
		return nil, err
	}
	h, j := pr.fieldsAndCouplers()

	// Variables outside pr keep their chains but take no part below.
	if clean {
		cleanChains(chains, vars, nbrs, t)
	}
	if smear {
		smearChains(chains, vars, h, ranges, t)
	}

	// Spread the field weights.
	var prob Problem
	for _, v := range vars {
		chain := chains[v]
		w := h[v] / float64(len(chain))
		for _, q := range chain {
			prob = append(prob, ProblemEntry{I: q, J: q, Value: w})
		}
	}

	// Spread the coupler strengths.
	keys := make([][2]int, 0, len(j))
	for k := range j {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a][0] != keys[b][0] {
			return keys[a][0] < keys[b][0]
		}
		return keys[a][1] < keys[b][1]
	})
	for _, k := range keys {
		var cs [][2]int
		for _, qa := range chains[k[0]] {
			for _, qb := range chains[k[1]] {
				if t.coupled(qa, qb) {
					cs = append(cs, [2]int{min(qa, qb), max(qa, qb)})
				}
			}
		}
		if len(cs) == 0 {
			return nil, newErrorf(ErrInvalidParameter, "No coupler joins the chains of variables %d and %d", k[0], k[1])
		}
		w := j[k] / float64(len(cs))
		for _, c := range cs {
			prob = append(prob, ProblemEntry{I: c[0], J: c[1], Value: w})
		}
	}

	// Couple the qubits within each chain.
	var jc Problem
	for _, v := range vars {
		chain := chains[v]
		for a := 0; a < len(chain); a++ {
			for b := a + 1; b < len(chain); b++ {
				if t.coupled(chain[a], chain[b]) {
					jc = append(jc, ProblemEntry{I: chain[a], J: chain[b], Value: -1})
				}
			}
		}
	}
	return &EmbedProblemResult{
		Prob: prob.Canonicalize(),
		JC:   jc,
		Emb:  embeddingsFromChains(chains, max(len(emb), t.numQubits)),
	}, nil
}

// cleanChains repeatedly removes leaf qubits whose removal leaves each chain
// connected and every interaction covered.
func cleanChains(chains map[int][]int, vars []int, nbrs map[int][]int, t *topology) {
	for changed := true; changed; {
		changed = false
		for _, v := range vars {
			chain := chains[v]
			for i := 0; i < len(chain) && len(chain) > 1; i++ {
				rest := make([]int, 0, len(chain)-1)
				rest = append(rest, chain[:i]...)
				rest = append(rest, chain[i+1:]...)
				if !t.chainConnected(rest) {
					continue
				}
				ok := true
				for _, u := range nbrs[v] {
					if !t.chainsCoupled(rest, chains[u]) {
						ok = false
						break
					}
				}
				if ok {
					chain = rest
					chains[v] = rest
					changed = true
					i--
				}
			}
		}
	}
}

// smearChains grows chains onto free neighboring qubits until each chain's
// share of its field weight fits the solver's h range.
func smearChains(chains map[int][]int, vars []int, h map[int]float64, ranges IsingRangeProperties, t *topology) {
	used := make(map[int]bool)
	for _, chain := range chains {
		for _, q := range chain {
			used[q] = true
		}
	}
	for _, v := range vars {
		limit := ranges.HMax
		if h[v] < 0 {
			limit = -ranges.HMin
		}
		if limit <= 0 {
			continue
		}
		need := int(math.Ceil(math.Abs(h[v]) / limit))
		for len(chains[v]) < need {
			grown := false
			for _, q := range chains[v] {
				for _, n := range t.adj[q] {
					if !used[n] {
						used[n] = true
						chains[v] = append(chains[v], n)
						grown = true
						break
					}
				}
				if grown {
					break
				}
			}
			if !grown {
				break
			}
		}
		sort.Ints(chains[v])
	}
}

// BrokenChains specifies how broken chains should be handled.
type BrokenChains int

// These are the valid values for a BrokenChains variable.
const (
	BrokenChainsMinimizeEnergy BrokenChains = iota // Vote, then set each broken variable to the value with lower local energy
	BrokenChainsVote                               // Majority vote, ties going to 1
	BrokenChainsDiscard                            // Drop solutions with any broken chain
	BrokenChainsWeightedRandom                     // Choose 1 with probability equal to the fraction of 1s in the chain
)

// unembedSeed seeds BrokenChainsWeightedRandom so that unembedding is
// reproducible.
const unembedSeed = 0x5eed

// An unembedding is the outcome of mapping physical solutions back onto
// logical variables.
type unembedding struct {
	solns    [][]int8
	kept     []int     // Index into the input of each kept solution
	breakage []float64 // Fraction of broken chains in each kept solution
}

// unembed implements UnembedAnswer and additionally reports which input
// solutions survive and how many of their chains were broken.
func unembed(solns [][]int8, emb Embeddings, broken BrokenChains, prob Problem) (unembedding, error) {
	chains := emb.Chains()
	nv := prob.maxIndex() + 1
	vars := make([]int, 0, len(chains))
	for v := range chains {
		nv = max(nv, v+1)
		vars = append(vars, v)
	}
	sort.Ints(vars)
	h, j := prob.fieldsAndCouplers()
	nbrs := make(map[int][]ProblemEntry)
	for k, w := range j {
		nbrs[k[0]] = append(nbrs[k[0]], ProblemEntry{I: k[0], J: k[1], Value: w})
		nbrs[k[1]] = append(nbrs[k[1]], ProblemEntry{I: k[1], J: k[0], Value: w})
	}
	for _, pes := range nbrs {
		sort.Slice(pes, func(a, b int) bool { return pes[a].J < pes[b].J })
	}
	rng := rand.New(rand.NewPCG(unembedSeed, uint64(len(solns))))

	var out unembedding
	for si, s := range solns {
		low := int8(-1)
		for _, x := range s {
			if x == 0 {
				low = 0
				break
			}
		}
		ls := make([]int8, nv)
		for v := range ls {
			ls[v] = 3
		}
		var brokenVars []int
		for _, v := range vars {
			ones, total := 0, 0
			for _, q := range chains[v] {
				if q >= len(s) {
					return unembedding{}, newErrorf(ErrInvalidParameter, "Solution %d has no qubit %d", si, q)
				}
				switch s[q] {
				case 3:
				case 1:
					ones++
					total++
				default:
					total++
				}
			}
			if total == 0 {
				continue
			}
			switch {
			case ones == total:
				ls[v] = 1
				continue
			case ones == 0:
				ls[v] = low
				continue
			}
			brokenVars = append(brokenVars, v)
			switch broken {
			case BrokenChainsWeightedRandom:
				if rng.Float64() < float64(ones)/float64(total) {
					ls[v] = 1
				} else {
					ls[v] = low
				}
			default:
				if 2*ones >= total {
					ls[v] = 1
				} else {
					ls[v] = low
				}
			}
		}
		if broken == BrokenChainsDiscard && len(brokenVars) > 0 {
			continue
		}
		if broken == BrokenChainsMinimizeEnergy {
			for _, v := range brokenVars {
				f := h[v]
				for _, pe := range nbrs[v] {
					if x := ls[pe.J]; x != 3 {
						f += pe.Value * float64(x)
					}
				}
				switch {
				case f < 0:
					ls[v] = 1
				case f > 0:
					ls[v] = low
				}
			}
		}
		out.solns = append(out.solns, ls)
		out.kept = append(out.kept, si)
		frac := 0.0
		if len(vars) > 0 {
			frac = float64(len(brokenVars)) / float64(len(vars))
		}
		out.breakage = append(out.breakage, frac)
	}
	return out, nil
}

// UnembedAnswer maps an answer from using physical qubit numbers back to
// logical qubit numbers.  Variables without a chain are reported as 3.
func UnembedAnswer(solns [][]int8, emb Embeddings, broken BrokenChains, prob Problem) ([][]int8, error) {
	u, err := unembed(solns, emb, broken, prob)
	if err != nil {
		return nil, err
	}
	return u.solns, nil
}
