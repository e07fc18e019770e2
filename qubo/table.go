// Package qubo builds and checks QUBO coefficient tables for the
// vertex-to-terminal assignment problem.
package qubo

import (
	"fmt"
	"io"
	"sort"

	"github.com/lanl/qanneal/bqm"
)

// ConstantVar names the self-pair that carries a table's constant energy
// offset.
const ConstantVar = "constant"

// A Key is a pair of variable names in the order its producer wrote them.
// U == V denotes a linear term.
type Key struct {
	U, V string
}

// canonical returns k with the lexically smaller name first.
func (k Key) canonical() Key {
	if k.V < k.U {
		return Key{k.V, k.U}
	}
	return k
}

// String formats k as "(u, v)".
func (k Key) String() string {
	return fmt.Sprintf("(%s, %s)", k.U, k.V)
}

// A Table maps variable pairs to QUBO coefficients.
type Table map[Key]float64

// Add accumulates c into the (u, v) entry.  A missing entry counts as zero.
func (t Table) Add(u, v string, c float64) {
	t[Key{u, v}] += c
}

// Canonical returns a copy of t in which every pair is stored with the
// lexically smaller name first.  Entries that differ only in ordering are
// summed.
func (t Table) Canonical() Table {
	out := make(Table, len(t))
	for k, c := range t {
		out[k.canonical()] += c
	}
	return out
}

// Prune returns a copy of t without zero coefficients.
func (t Table) Prune() Table {
	out := make(Table, len(t))
	for k, c := range t {
		if c != 0 {
			out[k] = c
		}
	}
	return out
}

// Constant returns the table's constant offset.
func (t Table) Constant() float64 {
	return t[Key{ConstantVar, ConstantVar}]
}

// Keys returns the table's keys sorted by U then V.
func (t Table) Keys() []Key {
	ks := make([]Key, 0, len(t))
	for k := range t {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].U != ks[j].U {
			return ks[i].U < ks[j].U
		}
		return ks[i].V < ks[j].V
	})
	return ks
}

// Variables returns the sorted problem variables, excluding ConstantVar.
func (t Table) Variables() []string {
	seen := make(map[string]struct{}, len(t))
	for k := range t {
		for _, v := range [2]string{k.U, k.V} {
			if v != ConstantVar {
				seen[v] = struct{}{}
			}
		}
	}
	vs := make([]string, 0, len(seen))
	for v := range seen {
		vs = append(vs, v)
	}
	sort.Strings(vs)
	return vs
}

// Energy evaluates the table at assign, including the constant offset.
// Variables absent from assign read as 0.
func (t Table) Energy(assign map[string]int) float64 {
	e := 0.0
	for k, c := range t {
		if k.U == ConstantVar && k.V == ConstantVar {
			e += c
			continue
		}
		e += c * float64(assign[k.U]*assign[k.V])
	}
	return e
}

// ToBQM converts the table to a binary quadratic model.  The constant entry
// becomes the model's offset rather than a variable.
func (t Table) ToBQM() *bqm.Model {
	q := make(map[[2]string]float64, len(t))
	for k, c := range t {
		if k.U == ConstantVar && k.V == ConstantVar {
			continue
		}
		q[[2]string{k.U, k.V}] += c
	}
	return bqm.FromQUBO(q, t.Constant())
}

// FromBQM converts a model back to a canonical table.  A non-zero offset is
// stored under the constant entry.
func FromBQM(m *bqm.Model) Table {
	q, off := m.ToQUBO()
	t := make(Table, len(q)+1)
	for p, c := range q {
		t[Key{p[0], p[1]}] = c
	}
	if off != 0 {
		t[Key{ConstantVar, ConstantVar}] = off
	}
	return t
}

// Format writes one "(u, v): c" line per entry in key order.
func (t Table) Format(w io.Writer) error {
	for _, k := range t.Keys() {
		if _, err := fmt.Fprintf(w, "%s: %g\n", k, t[k]); err != nil {
			return err
		}
	}
	return nil
}
