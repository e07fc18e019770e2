// Package sapi provides a Go interface to D-Wave's Solver API (SAPI).
//
// A Connection reaches either the remote SAPI service over HTTP or a set of
// in-process software solvers.  Solvers accept Ising-model and QUBO problems
// expressed over physical qubit indices; the embedding functions and the
// composites in this package map labelled models onto those qubits and back.
package sapi

// version is reported by Version and sent as part of the User-Agent header.
const version = "1.4.0"

// Version returns the version string of this client.
func Version() string {
	return version
}
