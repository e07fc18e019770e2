package qubo

import (
	"fmt"
	"sort"
)

// A Mismatch describes one key on which two tables disagree.  HaveGot and
// HaveWant report whether the key exists on each side.
type Mismatch struct {
	Key      Key
	Got      float64
	Want     float64
	HaveGot  bool
	HaveWant bool
}

func (m Mismatch) String() string {
	show := func(ok bool, v float64) string {
		if !ok {
			return "missing"
		}
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("%s: got %s, want %s", m.Key, show(m.HaveGot, m.Got), show(m.HaveWant, m.Want))
}

// Diff compares got against want after canonicalizing the pair ordering of
// both.  A missing key reads as zero, so zero entries never mismatch.  The
// result is sorted by key.
func Diff(got, want Table) []Mismatch {
	g, w := got.Canonical().Prune(), want.Canonical().Prune()
	var out []Mismatch
	for k, wv := range w {
		gv, ok := g[k]
		if !ok || gv != wv {
			out = append(out, Mismatch{Key: k, Got: gv, Want: wv, HaveGot: ok, HaveWant: true})
		}
	}
	for k, gv := range g {
		if _, ok := w[k]; !ok {
			out = append(out, Mismatch{Key: k, Got: gv, HaveGot: true})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.U != out[j].Key.U {
			return out[i].Key.U < out[j].Key.U
		}
		return out[i].Key.V < out[j].Key.V
	})
	return out
}

// Equal reports whether got and want hold the same coefficients up to pair
// ordering.
func Equal(got, want Table) bool {
	return len(Diff(got, want)) == 0
}

// MatchAssignment reports whether sample agrees with every key of expected.
// Keys missing from sample read as 0.
func MatchAssignment(sample, expected map[string]int) bool {
	for k, v := range expected {
		if sample[k] != v {
			return false
		}
	}
	return true
}
