package bqm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allSamples enumerates every assignment of vars over vt.
func allSamples(vars []string, vt Vartype) []Sample {
	lo, hi := int8(0), int8(1)
	if vt == Spin {
		lo = -1
	}
	n := len(vars)
	out := make([]Sample, 0, 1<<n)
	for bits := 0; bits < 1<<n; bits++ {
		s := make(Sample, n)
		for i, v := range vars {
			if bits&(1<<i) != 0 {
				s[v] = hi
			} else {
				s[v] = lo
			}
		}
		out = append(out, s)
	}
	return out
}

func TestNewPairIsCanonical(t *testing.T) {
	assert.Equal(t, Pair{"a", "b"}, NewPair("b", "a"))
	assert.Equal(t, NewPair("xa1", "x12"), NewPair("x12", "xa1"))
}

func TestFromQUBOMergesOrderings(t *testing.T) {
	m := FromQUBO(map[[2]string]float64{
		{"a", "a"}: -1,
		{"a", "b"}: 2,
		{"b", "a"}: 3,
	}, 4)
	require.Equal(t, Binary, m.Vartype)
	assert.Equal(t, -1.0, m.Linear["a"])
	assert.Equal(t, 0.0, m.Linear["b"])
	assert.Equal(t, 5.0, m.Quadratic[Pair{"a", "b"}])
	assert.Len(t, m.Quadratic, 1)
	assert.Equal(t, 4.0, m.Offset)
}

func TestQUBORoundTrip(t *testing.T) {
	q := map[[2]string]float64{
		{"x", "x"}: -3,
		{"y", "y"}: 1.5,
		{"x", "y"}: 2,
		{"y", "z"}: -0.5,
	}
	m := FromQUBO(q, 7)
	back, off := m.ToQUBO()
	assert.Equal(t, 7.0, off)
	assert.Equal(t, -3.0, back[Pair{"x", "x"}])
	assert.Equal(t, 1.5, back[Pair{"y", "y"}])
	assert.Equal(t, 0.0, back[Pair{"z", "z"}])
	assert.Equal(t, 2.0, back[Pair{"x", "y"}])
	assert.Equal(t, -0.5, back[Pair{"y", "z"}])

	conv := make(map[[2]string]float64, len(back))
	for p, c := range back {
		conv[p] = c
	}
	again := FromQUBO(conv, off)
	assert.Equal(t, m, again)
}

func TestChangeVartypePreservesEnergy(t *testing.T) {
	m := FromQUBO(map[[2]string]float64{
		{"a", "a"}: -25,
		{"b", "b"}: 3,
		{"a", "b"}: 50,
		{"b", "c"}: -2,
	}, 150)
	s := m.ChangeVartype(Spin)
	require.Equal(t, Spin, s.Vartype)
	for _, bs := range allSamples(m.Variables(), Binary) {
		eb, err := m.Energy(bs)
		require.NoError(t, err)
		es, err := s.Energy(ConvertSample(bs, Binary, Spin))
		require.NoError(t, err)
		assert.InDelta(t, eb, es, 1e-9)
	}

	b := s.ChangeVartype(Binary)
	for _, bs := range allSamples(m.Variables(), Binary) {
		e1, _ := m.Energy(bs)
		e2, err := b.Energy(bs)
		require.NoError(t, err)
		assert.InDelta(t, e1, e2, 1e-9)
	}
}

func TestIsingModel(t *testing.T) {
	m := FromIsing(map[string]float64{"a": -1, "b": 1}, map[[2]string]float64{{"a", "b"}: 0.5}, 0)
	e, err := m.Energy(Sample{"a": 1, "b": -1})
	require.NoError(t, err)
	assert.Equal(t, -2.5, e)

	h, j, off := m.ToIsing()
	assert.Equal(t, map[string]float64{"a": -1, "b": 1}, h)
	assert.Equal(t, map[Pair]float64{{"a", "b"}: 0.5}, j)
	assert.Equal(t, 0.0, off)
}

func TestSpinSelfInteractionIsOffset(t *testing.T) {
	m := New(Spin)
	m.AddInteraction("s", "s", 2)
	assert.Equal(t, 2.0, m.Offset)
	assert.Contains(t, m.Linear, "s")
	assert.Empty(t, m.Quadratic)
}

func TestEnergyErrors(t *testing.T) {
	m := FromQUBO(map[[2]string]float64{{"a", "b"}: 1}, 0)
	_, err := m.Energy(Sample{"a": 1})
	assert.Error(t, err)
	_, err = m.Energy(Sample{"a": 1, "b": -1})
	assert.Error(t, err)
}

func TestVariablesAndEdgesSorted(t *testing.T) {
	m := FromQUBO(map[[2]string]float64{
		{"c", "a"}: 1,
		{"b", "a"}: 1,
		{"d", "d"}: 1,
	}, 0)
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Variables())
	assert.Equal(t, []Pair{{"a", "b"}, {"a", "c"}}, m.Edges())
	assert.Equal(t, 1.0, m.MaxAbsBias())
}
