// This file provides various tests of the features of the sapi package.

package sapi_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanl/qanneal/sapi"
)

// localSolverName represents the name of a local solver to connect to.
const localSolverName = "c4-sw_optimize"

// TestVersion tests that we can query the SAPI version string without
// crashing.
func TestVersion(t *testing.T) {
	v := sapi.Version()
	require.NotEmpty(t, v, "Expected a non-empty SAPI version string")
	t.Logf("Testing against SAPI version %s", v)
}

// getRemoteParams extracts from the environment the parameters needed for a
// remote connection.  If one of the URL, token, or solver name is not set, the
// function skips the current test.
func getRemoteParams(t *testing.T) (url, token string, proxy *string, solver string) {
	// Define a helper function that indicates a variable is mandatory.
	requireVar := func(k string) string {
		nm := "DWAVE_API_" + k
		v := os.Getenv(nm)
		if v == "" {
			t.Skipf("Environment variable %s is not set", nm)
		}
		return v
	}

	// Extract various variables from the environment and return them.
	url = requireVar("ENDPOINT")
	token = requireVar("TOKEN")
	if p, ok := os.LookupEnv("DWAVE_API_PROXY"); ok {
		proxy = &p
	}
	solver = requireVar("SOLVER")
	return
}

// TestLocalConnection ensures we can connect to a local simulator.
func TestLocalConnection(t *testing.T) {
	conn := sapi.LocalConnection()
	assert.True(t, conn.IsLocal())
	names, err := conn.Solvers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c4-heuristic", "c4-sw_optimize", "c4-sw_sample"}, names)
}

// TestLocalSolver ensures we can connect to a local solver.
func TestLocalSolver(t *testing.T) {
	conn := sapi.LocalConnection()
	s, err := conn.Solver(context.Background(), localSolverName)
	require.NoError(t, err)

	props := s.GetProperties()
	require.NotNil(t, props.QuantumProps)
	assert.Equal(t, 128, props.QuantumProps.NumQubits)
	assert.Len(t, props.QuantumProps.Qubits, 128)
	assert.Len(t, props.QuantumProps.Couplers, 352)
	assert.IsType(t, &sapi.SwOptimizeSolverParameters{}, s.NewSolverParameters())

	_, err = conn.Solver(context.Background(), "c4-nonexistent")
	assert.ErrorIs(t, err, sapi.ErrInvalidParameter)
}

// TestRemoteSolver ensures we can connect to a remote solver.
func TestRemoteSolver(t *testing.T) {
	url, token, proxy, solverName := getRemoteParams(t)
	conn, err := sapi.RemoteConnection(url, token, proxy)
	require.NoError(t, err)
	_, err = conn.Solver(context.Background(), solverName)
	require.NoError(t, err)
}

// TestChimeraAdjacency checks the coupler count and orientation of a Chimera
// graph.
func TestChimeraAdjacency(t *testing.T) {
	adj, err := sapi.ChimeraAdjacency(2, 3, 4)
	require.NoError(t, err)
	// Intra-cell, vertical and horizontal couplers.
	assert.Len(t, adj, 2*3*16+1*3*4+2*2*4)
	seen := make(map[[2]int]bool)
	for _, pe := range adj {
		assert.Less(t, pe.I, pe.J)
		assert.False(t, seen[[2]int{pe.I, pe.J}], "duplicate coupler (%d, %d)", pe.I, pe.J)
		seen[[2]int{pe.I, pe.J}] = true
	}

	_, err = sapi.ChimeraAdjacency(0, 1, 4)
	assert.ErrorIs(t, err, sapi.ErrInvalidParameter)
}

// findFourCycle finds a set of four distinct qubits with connections (0, 1), (1,
// 2), (2, 3), and (3, 0).
func findFourCycle(s *sapi.Solver) []int {
	st, err := s.Structure()
	if err != nil {
		return nil
	}
	adj := make(map[int]map[int]bool, len(st.Nodes))
	for q, ns := range st.Adjacency {
		adj[q] = make(map[int]bool, len(ns))
		for _, n := range ns {
			adj[q][n] = true
		}
	}

	// Search every set of four neighbors until we find a square.
	for _, q0 := range st.Nodes {
		for _, q1 := range st.Adjacency[q0] {
			for _, q2 := range st.Adjacency[q1] {
				if q2 == q0 {
					continue
				}
				for _, q3 := range st.Adjacency[q2] {
					if q3 == q1 || q3 == q0 {
						continue
					}
					if adj[q3][q0] {
						return []int{q0, q1, q2, q3}
					}
				}
			}
		}
	}
	return nil
}

// Solve for all valid rows in an AND truth table.
func testAND(t *testing.T, solver *sapi.Solver) {
	// Find a set of qubits we can use.
	square := findFourCycle(solver)
	require.NotNil(t, square, "Failed to find a 4-cycle in the %s solver", solver.Name)
	q0, q1, q2, q3 := square[0], square[1], square[2], square[3]

	// Construct a simple problem (an AND truth table).
	prob := sapi.Problem{
		{I: q0, J: q0, Value: -0.125},
		{I: q1, J: q1, Value: -0.125},
		{I: q2, J: q2, Value: -0.25},
		{I: q3, J: q3, Value: 0.5},
		{I: q0, J: q1, Value: -1.0},
		{I: q1, J: q2, Value: 0.25},
		{I: q2, J: q3, Value: -0.5},
		{I: q3, J: q0, Value: -0.5},
	}

	// Set the solver NumReads parameter to a large value.
	sp := solver.NewSolverParameters()
	sp.SetNumReads(1000)

	// Solve the problem.
	ir, err := solver.SolveIsing(context.Background(), prob, sp)
	require.NoError(t, err)
	require.NotEmpty(t, ir.Solutions)

	// Ensure that each solution is either correct or sits at high enough
	// energy that we know it's incorrect.
	const correctEnergy = -1.75
	assert.InDelta(t, correctEnergy, ir.Energies[0], 1e-9)
	s2b := map[int8]bool{-1: false, +1: true}
	for i, soln := range ir.Solutions {
		// Extract the AND inputs and output.
		a := s2b[soln[q0]]
		aAlt := s2b[soln[q1]]
		b := s2b[soln[q2]]
		y := s2b[soln[q3]]
		assert.InDelta(t, prob.IsingEnergy(soln), ir.Energies[i], 1e-9)

		// Skip high-energy solutions.
		if ir.Energies[i] > correctEnergy+1e-9 {
			continue
		}

		// Ensure the solutions that should be valid are indeed so.
		assert.Equal(t, a, aAlt, "Expected qubits %d and %d to be equal in solution %d", q0, q1, i+1)
		assert.Equal(t, a && b, y, "Saw %v AND %v = %v in solution %d", a, b, y, i+1)
	}
}

// TestLocalSolveIsing ensures we can solve an Ising-model problem on a local
// solver.
func TestLocalSolveIsing(t *testing.T) {
	conn := sapi.LocalConnection(sapi.WithSeed(1))
	solver, err := conn.Solver(context.Background(), localSolverName)
	require.NoError(t, err)
	testAND(t, solver)
}

// TestLocalHeuristicSolveIsing runs the same problem through simulated
// annealing.
func TestLocalHeuristicSolveIsing(t *testing.T) {
	conn := sapi.LocalConnection(sapi.WithSeed(2))
	solver, err := conn.Solver(context.Background(), "c4-heuristic")
	require.NoError(t, err)
	testAND(t, solver)
}

// TestRemoteSolveIsing ensures we can solve an Ising-model problem on a remote
// solver.
func TestRemoteSolveIsing(t *testing.T) {
	url, token, proxy, solverName := getRemoteParams(t)
	conn, err := sapi.RemoteConnection(url, token, proxy)
	require.NoError(t, err)
	solver, err := conn.Solver(context.Background(), solverName)
	require.NoError(t, err)
	testAND(t, solver)
}

// TestLocalSolveQubo checks QUBO energies and 0/1 solutions.
func TestLocalSolveQubo(t *testing.T) {
	conn := sapi.LocalConnection(sapi.WithSeed(3))
	solver, err := conn.Solver(context.Background(), localSolverName)
	require.NoError(t, err)

	// Minimized by exactly one of qubits 0 and 4 being set.
	prob := sapi.Problem{
		{I: 0, J: 0, Value: -1},
		{I: 4, J: 4, Value: -1},
		{I: 0, J: 4, Value: 2},
	}
	ir, err := solver.SolveQubo(context.Background(), prob, nil)
	require.NoError(t, err)
	require.Len(t, ir.Solutions, 4)
	for i, s := range ir.Solutions {
		assert.Contains(t, []int8{0, 1}, s[0])
		assert.Equal(t, int8(3), s[1])
		assert.InDelta(t, prob.QuboEnergy(s), ir.Energies[i], 1e-12)
	}
	assert.InDelta(t, -1, ir.Energies[0], 1e-12)
	assert.InDelta(t, -1, ir.Energies[1], 1e-12)
	assert.Equal(t, int8(1), ir.Solutions[0][0]+ir.Solutions[0][4])
}

// TestLocalSampleHistogram checks that sampling aggregates identical reads.
func TestLocalSampleHistogram(t *testing.T) {
	conn := sapi.LocalConnection(sapi.WithSeed(4))
	solver, err := conn.Solver(context.Background(), "c4-sw_sample")
	require.NoError(t, err)

	sp := sapi.NewSwSampleSolverParameters()
	sp.NumReads = 200
	sp.Beta = 5
	ir, err := solver.SolveIsing(context.Background(), sapi.Problem{{I: 0, J: 0, Value: 1}}, sp)
	require.NoError(t, err)

	total := 0
	for _, n := range ir.Occurrences {
		total += n
	}
	assert.Equal(t, 200, total)
	assert.LessOrEqual(t, len(ir.Solutions), 2)
	assert.Equal(t, int8(-1), ir.Solutions[0][0])
	assert.Greater(t, ir.Occurrences[0], 150)
}

// TestLocalSeedIsReproducible checks that a fixed seed fixes the answer.
func TestLocalSeedIsReproducible(t *testing.T) {
	run := func() sapi.IsingResult {
		conn := sapi.LocalConnection(sapi.WithSeed(42))
		solver, err := conn.Solver(context.Background(), "c4-sw_sample")
		require.NoError(t, err)
		adj, err := solver.HardwareAdjacency()
		require.NoError(t, err)
		sp := solver.NewSolverParameters()
		sp.SetNumReads(20)
		sp.SetBeta(0.5)
		ir, err := solver.SolveIsing(context.Background(), adj, sp)
		require.NoError(t, err)
		return ir
	}
	assert.Equal(t, run(), run())
}

// TestLocalAsync covers the asynchronous interface on a local solver.
func TestLocalAsync(t *testing.T) {
	ctx := context.Background()
	conn := sapi.LocalConnection(sapi.WithSeed(5))
	solver, err := conn.Solver(ctx, localSolverName)
	require.NoError(t, err)

	sub, err := solver.AsyncSolveIsing(ctx, sapi.Problem{{I: 0, J: 0, Value: 1}}, nil)
	require.NoError(t, err)
	require.True(t, sub.AwaitCompletion(ctx, 0))
	assert.True(t, sub.Done())

	ps, err := sub.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, ps.ID, 36)
	assert.Equal(t, sapi.StateDone, ps.State)
	assert.Equal(t, sapi.StatusCompleted, ps.RemoteStatus)

	ir, err := sub.Result()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), ir.Solutions[0][0])
}

// TestProblemConversions checks that QUBO and Ising forms agree on every
// assignment.
func TestProblemConversions(t *testing.T) {
	qubo := sapi.Problem{
		{I: 0, J: 0, Value: 1.5},
		{I: 1, J: 0, Value: -2},
		{I: 1, J: 2, Value: 3},
		{I: 2, J: 2, Value: -1},
	}
	ising, offset := qubo.ToIsing()
	assert.Equal(t, sapi.Problem{
		{I: 0, J: 0, Value: 0.25},
		{I: 0, J: 1, Value: -0.5},
		{I: 1, J: 1, Value: 0.25},
		{I: 1, J: 2, Value: 0.75},
		{I: 2, J: 2, Value: 0.25},
	}, ising)
	assert.InDelta(t, 0.5, offset, 1e-12)
	for x := 0; x < 8; x++ {
		bits := make([]int8, 3)
		spins := make([]int8, 3)
		for i := range bits {
			bits[i] = int8(x >> i & 1)
			spins[i] = 2*bits[i] - 1
		}
		assert.InDelta(t, qubo.QuboEnergy(bits), ising.IsingEnergy(spins)+offset, 1e-12, "assignment %03b", x)
	}

	back, offset2 := ising.ToQubo()
	assert.InDelta(t, -offset, offset2, 1e-12)
	// Variables that appear only in couplers gain a zero diagonal entry.
	assert.Equal(t, sapi.Problem{
		{I: 0, J: 0, Value: 1.5},
		{I: 0, J: 1, Value: -2},
		{I: 1, J: 1, Value: 0},
		{I: 1, J: 2, Value: 3},
		{I: 2, J: 2, Value: -1},
	}, back)
}

// TestCanonicalize checks ordering and merging of duplicate entries.
func TestCanonicalize(t *testing.T) {
	p := sapi.Problem{
		{I: 2, J: 1, Value: 1},
		{I: 0, J: 0, Value: 2},
		{I: 1, J: 2, Value: 3},
	}
	assert.Equal(t, sapi.Problem{
		{I: 0, J: 0, Value: 2},
		{I: 1, J: 2, Value: 4},
	}, p.Canonicalize())
}
