package sapi

import (
	"encoding/base64"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellProperties(t *testing.T) *QuantumSolverProperties {
	t.Helper()
	adj, err := ChimeraAdjacency(1, 1, 4)
	require.NoError(t, err)
	qp := &QuantumSolverProperties{NumQubits: 8}
	for q := 0; q < 8; q++ {
		qp.Qubits = append(qp.Qubits, q)
	}
	for _, pe := range adj {
		qp.Couplers = append(qp.Couplers, [2]int{pe.I, pe.J})
	}
	return qp
}

func TestEncodeQP(t *testing.T) {
	qp := cellProperties(t)
	p := Problem{
		{I: 0, J: 0, Value: 0.5},
		{I: 5, J: 0, Value: -1},
		{I: 4, J: 1, Value: 0.25},
	}
	data, err := encodeQP(p, qp)
	require.NoError(t, err)
	assert.Equal(t, "qp", data.Format)

	lin, err := decodeDoubles(data.Lin)
	require.NoError(t, err)
	require.Len(t, lin, 8)
	assert.Equal(t, 0.5, lin[0])
	assert.Equal(t, 0.0, lin[1])
	assert.True(t, math.IsNaN(lin[2]))
	assert.Equal(t, 0.0, lin[4])
	assert.Equal(t, 0.0, lin[5])

	// Active qubits 0, 1, 4 and 5 share the couplers (0,4), (0,5), (1,4)
	// and (1,5), in the solver's order.
	quad, err := decodeDoubles(data.Quad)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, -1, 0.25, 0}, quad)

	_, err = encodeQP(Problem{{I: 0, J: 1, Value: 1}}, qp)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = encodeQP(Problem{{I: 9, J: 9, Value: 1}}, qp)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestDecodeQP(t *testing.T) {
	// Nine active qubits need two bytes per solution, most significant
	// bit first.
	active := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	a := &qpAnswer{
		Format:          "qp",
		NumVariables:    10,
		ActiveVariables: encodeInts(active),
		Solutions:       base64.StdEncoding.EncodeToString([]byte{0xA0, 0x80, 0x00, 0x00}),
		Energies:        encodeDoubles([]float64{-3, -1}),
		NumOccurrences:  encodeInts([]int{5, 2}),
	}
	ir, err := decodeQP(a, "ising")
	require.NoError(t, err)
	assert.Equal(t, [][]int8{
		{1, -1, 1, -1, -1, -1, -1, -1, 1, 3},
		{-1, -1, -1, -1, -1, -1, -1, -1, -1, 3},
	}, ir.Solutions)
	assert.Equal(t, []float64{-3, -1}, ir.Energies)
	assert.Equal(t, []int{5, 2}, ir.Occurrences)

	ir, err = decodeQP(a, "qubo")
	require.NoError(t, err)
	assert.Equal(t, []int8{1, 0, 1, 0, 0, 0, 0, 0, 1, 3}, ir.Solutions[0])

	// Raw answers carry no occurrence counts.
	a.NumOccurrences = ""
	ir, err = decodeQP(a, "ising")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, ir.Occurrences)
}

func TestDecodeQPErrors(t *testing.T) {
	good := func() *qpAnswer {
		return &qpAnswer{
			Format:          "qp",
			NumVariables:    4,
			ActiveVariables: encodeInts([]int{0, 2}),
			Solutions:       base64.StdEncoding.EncodeToString([]byte{0x40}),
			Energies:        encodeDoubles([]float64{1}),
		}
	}
	_, err := decodeQP(good(), "ising")
	require.NoError(t, err)

	_, err = decodeQP(nil, "ising")
	assert.ErrorIs(t, err, ErrCommunication)

	a := good()
	a.Format = "bq"
	_, err = decodeQP(a, "ising")
	assert.ErrorIs(t, err, ErrCommunication)

	a = good()
	a.Energies = encodeDoubles([]float64{1, 2})
	_, err = decodeQP(a, "ising")
	assert.ErrorIs(t, err, ErrCommunication)

	a = good()
	a.ActiveVariables = encodeInts([]int{0, 7})
	_, err = decodeQP(a, "ising")
	assert.ErrorIs(t, err, ErrCommunication)

	a = good()
	a.Energies = "not base64!"
	_, err = decodeQP(a, "ising")
	assert.ErrorIs(t, err, ErrCommunication)
}

func TestEncodeAnswer(t *testing.T) {
	ir := IsingResult{
		Solutions:   [][]int8{{1, 3, -1, 1}},
		Energies:    []float64{-2},
		Occurrences: []int{4},
	}
	back, err := decodeQP(encodeAnswer(ir, []int{0, 2, 3}, 4), "ising")
	require.NoError(t, err)
	assert.Equal(t, ir, back)
}
