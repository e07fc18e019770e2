// This file implements the "qp" binary encoding SAPI uses for problem data
// and answers.

package sapi

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

type qpData struct {
	Format string `json:"format"`
	Lin    string `json:"lin"`
	Quad   string `json:"quad"`
}

type qpAnswer struct {
	Format          string `json:"format"`
	NumVariables    int    `json:"num_variables"`
	ActiveVariables string `json:"active_variables"`
	Solutions       string `json:"solutions"`
	Energies        string `json:"energies"`
	NumOccurrences  string `json:"num_occurrences,omitempty"`
}

func encodeDoubles(vs []float64) string {
	buf := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeDoubles(s string) ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf)%8 != 0 {
		return nil, newErrorf(ErrCommunication, "double array of %d bytes", len(buf))
	}
	vs := make([]float64, len(buf)/8)
	for i := range vs {
		vs[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return vs, nil
}

func encodeInts(vs []int) string {
	buf := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(int32(v)))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeInts(s string) ([]int, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, newErrorf(ErrCommunication, "int array of %d bytes", len(buf))
	}
	vs := make([]int, len(buf)/4)
	for i := range vs {
		vs[i] = int(int32(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return vs, nil
}

// encodeQP encodes a physical problem for a solver.  Every qubit gets a
// linear entry (NaN when inactive); every coupler whose two qubits are both
// active gets a quadratic entry, in the solver's coupler order.
func encodeQP(p Problem, qp *QuantumSolverProperties) (qpData, error) {
	if err := validateProblem(p, qp); err != nil {
		return qpData{}, err
	}
	h, j := p.fieldsAndCouplers()
	lin := make([]float64, qp.NumQubits)
	for q := range lin {
		if v, ok := h[q]; ok {
			lin[q] = v
		} else {
			lin[q] = math.NaN()
		}
	}
	quad := make([]float64, 0, len(j))
	for _, c := range qp.Couplers {
		a, b := c[0], c[1]
		if a > b {
			a, b = b, a
		}
		_, okA := h[a]
		_, okB := h[b]
		if okA && okB {
			quad = append(quad, j[[2]int{a, b}])
		}
	}
	return qpData{
		Format: "qp",
		Lin:    encodeDoubles(lin),
		Quad:   encodeDoubles(quad),
	}, nil
}

// decodeQP decodes an answer into an IsingResult whose solutions cover all
// numQubits qubits (3 marks an inactive qubit).  QUBO answers hold 0/1
// values; Ising answers hold ±1.
func decodeQP(a *qpAnswer, problemType string) (IsingResult, error) {
	if a == nil {
		return IsingResult{}, newErrorf(ErrCommunication, "Response carries no answer")
	}
	if a.Format != "qp" {
		return IsingResult{}, newErrorf(ErrCommunication, "Unsupported answer format %q", a.Format)
	}
	active, err := decodeInts(a.ActiveVariables)
	if err != nil {
		return IsingResult{}, wrapErrorf(ErrCommunication, err, "Malformed active_variables")
	}
	energies, err := decodeDoubles(a.Energies)
	if err != nil {
		return IsingResult{}, wrapErrorf(ErrCommunication, err, "Malformed energies")
	}
	var occurs []int
	if a.NumOccurrences != "" {
		if occurs, err = decodeInts(a.NumOccurrences); err != nil {
			return IsingResult{}, wrapErrorf(ErrCommunication, err, "Malformed num_occurrences")
		}
	}
	if occurs == nil {
		occurs = make([]int, len(energies))
		for i := range occurs {
			occurs[i] = 1
		}
	}
	bits, err := base64.StdEncoding.DecodeString(a.Solutions)
	if err != nil {
		return IsingResult{}, wrapErrorf(ErrCommunication, err, "Malformed solutions")
	}

	// Each solution occupies a whole number of bytes, most significant
	// bit first.
	ns := len(energies)
	stride := (len(active) + 7) / 8
	if len(bits) != ns*stride || len(occurs) != ns {
		return IsingResult{}, newErrorf(ErrCommunication, "Answer sizes disagree: %d energies, %d occurrences, %d solution bytes",
			ns, len(occurs), len(bits))
	}
	zero := int8(-1)
	if problemType == "qubo" {
		zero = 0
	}
	solns := make([][]int8, ns)
	for i := range solns {
		s := make([]int8, a.NumVariables)
		for q := range s {
			s[q] = 3
		}
		row := bits[i*stride : (i+1)*stride]
		for k, q := range active {
			if q < 0 || q >= a.NumVariables {
				return IsingResult{}, newErrorf(ErrCommunication, "Active variable %d out of range", q)
			}
			if row[k/8]&(0x80>>(k%8)) != 0 {
				s[q] = 1
			} else {
				s[q] = zero
			}
		}
		solns[i] = s
	}
	return IsingResult{
		Solutions:   solns,
		Energies:    energies,
		Occurrences: occurs,
	}, nil
}

// encodeAnswer is the inverse of decodeQP.  Only solution entries for the
// active qubits are encoded.
func encodeAnswer(ir IsingResult, active []int, numQubits int) *qpAnswer {
	stride := (len(active) + 7) / 8
	bits := make([]byte, len(ir.Solutions)*stride)
	for i, s := range ir.Solutions {
		for k, q := range active {
			if s[q] == 1 {
				bits[i*stride+k/8] |= 0x80 >> (k % 8)
			}
		}
	}
	return &qpAnswer{
		Format:          "qp",
		NumVariables:    numQubits,
		ActiveVariables: encodeInts(active),
		Solutions:       base64.StdEncoding.EncodeToString(bits),
		Energies:        encodeDoubles(ir.Energies),
		NumOccurrences:  encodeInts(ir.Occurrences),
	}
}

// validateProblem ensures every entry of p refers to working qubits and
// couplers.
func validateProblem(p Problem, qp *QuantumSolverProperties) error {
	if qp == nil {
		return newErrorf(ErrInvalidParameter, "Solver has no qubit topology")
	}
	working := make(map[int]struct{}, len(qp.Qubits))
	for _, q := range qp.Qubits {
		working[q] = struct{}{}
	}
	couplers := make(map[[2]int]struct{}, len(qp.Couplers))
	for _, c := range qp.Couplers {
		a, b := c[0], c[1]
		if a > b {
			a, b = b, a
		}
		couplers[[2]int{a, b}] = struct{}{}
	}
	for _, pe := range p {
		for _, q := range [2]int{pe.I, pe.J} {
			if _, ok := working[q]; !ok {
				return newErrorf(ErrInvalidParameter, "Qubit %d is not a working qubit", q)
			}
		}
		if pe.I == pe.J {
			continue
		}
		a, b := pe.I, pe.J
		if a > b {
			a, b = b, a
		}
		if _, ok := couplers[[2]int{a, b}]; !ok {
			return newErrorf(ErrInvalidParameter, "(%d, %d) is not a working coupler", pe.I, pe.J)
		}
	}
	return nil
}
