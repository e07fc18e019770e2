package sapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fakeToken  = "test-token"
	fakeSolver = "fake-qpu"
)

// fakeSAPI is an in-memory stand-in for the SAPI REST service.  Its solver
// is a single Chimera unit cell with qubit 3 out of service.
type fakeSAPI struct {
	t  *testing.T
	qp *QuantumSolverProperties

	mu         sync.Mutex
	mode       string // "solve", "hold" or "fail"
	problems   map[string]*problemMessage
	next       int
	lastParams map[string]any
	lastLabel  string
	polls      int
}

func newFakeSAPI(t *testing.T) *fakeSAPI {
	adj, err := ChimeraAdjacency(1, 1, 4)
	require.NoError(t, err)
	qp := &QuantumSolverProperties{NumQubits: 8}
	for q := 0; q < 8; q++ {
		if q != 3 {
			qp.Qubits = append(qp.Qubits, q)
		}
	}
	for _, pe := range adj {
		if pe.I != 3 && pe.J != 3 {
			qp.Couplers = append(qp.Couplers, [2]int{pe.I, pe.J})
		}
	}
	return &fakeSAPI{t: t, qp: qp, mode: "solve", problems: make(map[string]*problemMessage)}
}

func (f *fakeSAPI) solverJSON() remoteSolver {
	return remoteSolver{
		ID:     fakeSolver,
		Status: "ONLINE",
		Properties: remoteProperties{
			NumQubits:             f.qp.NumQubits,
			Qubits:                f.qp.Qubits,
			Couplers:              f.qp.Couplers,
			HRange:                []float64{-2, 2},
			JRange:                []float64{-1, 1},
			SupportedProblemTypes: []string{"ising", "qubo"},
			Parameters:            map[string]string{"num_reads": "", "annealing_time": ""},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Auth-Token") != fakeToken {
		writeJSON(w, http.StatusUnauthorized, errorMessage{ErrorCode: 401, ErrorMsg: "Invalid token"})
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/sapi/")
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && path == "solvers/remote/":
		writeJSON(w, http.StatusOK, []remoteSolver{f.solverJSON()})
	case r.Method == http.MethodGet && path == "solvers/remote/"+fakeSolver+"/":
		writeJSON(w, http.StatusOK, f.solverJSON())
	case r.Method == http.MethodGet && strings.HasPrefix(path, "solvers/remote/"):
		writeJSON(w, http.StatusNotFound, errorMessage{ErrorCode: 404, ErrorMsg: "Solver not found"})
	case r.Method == http.MethodPost && path == "problems/":
		var subs []problemSubmission
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&subs))
		require.Len(f.t, subs, 1)
		f.next++
		id := fmt.Sprintf("p%d", f.next)
		f.lastParams, f.lastLabel = subs[0].Params, subs[0].Label
		msg := &problemMessage{ID: id, Status: "PENDING", Type: subs[0].Type, SubmittedOn: "2026-01-02T03:04:05Z"}
		switch f.mode {
		case "solve":
			msg.Status = "COMPLETED"
			msg.SolvedOn = "2026-01-02T03:04:06Z"
			msg.Answer = f.solve(subs[0])
		case "fail":
			msg.Status = "FAILED"
			msg.ErrorMessage = "Problem rejected by the annealer"
		}
		f.problems[id] = msg
		// The first response never carries the answer.
		writeJSON(w, http.StatusOK, []problemMessage{{ID: id, Status: "PENDING", SubmittedOn: msg.SubmittedOn}})
	case r.Method == http.MethodGet && path == "problems/":
		msg, ok := f.problems[r.URL.Query().Get("id")]
		if !ok {
			writeJSON(w, http.StatusOK, []problemMessage{})
			return
		}
		status := *msg
		status.Answer = nil
		if status.Status == "PENDING" {
			status.Status = "IN_PROGRESS"
		}
		writeJSON(w, http.StatusOK, []problemMessage{status})
	case strings.HasPrefix(path, "problems/"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "problems/"), "/")
		msg, ok := f.problems[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, errorMessage{ErrorCode: 404, ErrorMsg: "Problem not found"})
			return
		}
		if r.Method == http.MethodDelete {
			msg.Status = "CANCELLED"
		}
		f.polls++
		writeJSON(w, http.StatusOK, msg)
	default:
		writeJSON(w, http.StatusNotFound, errorMessage{ErrorCode: 404, ErrorMsg: "No route"})
	}
}

// solve answers a submission by enumerating it, returning the two lowest
// states.
func (f *fakeSAPI) solve(sub problemSubmission) *qpAnswer {
	lin, err := decodeDoubles(sub.Data.Lin)
	require.NoError(f.t, err)
	quad, err := decodeDoubles(sub.Data.Quad)
	require.NoError(f.t, err)
	var p Problem
	var active []int
	isActive := make(map[int]bool)
	for q, v := range lin {
		if !math.IsNaN(v) {
			active = append(active, q)
			isActive[q] = true
			p = append(p, ProblemEntry{I: q, J: q, Value: v})
		}
	}
	k := 0
	for _, c := range f.qp.Couplers {
		if isActive[c[0]] && isActive[c[1]] {
			p = append(p, ProblemEntry{I: c[0], J: c[1], Value: quad[k]})
			k++
		}
	}
	require.Equal(f.t, len(quad), k)

	zero := int8(-1)
	if sub.Type == "qubo" {
		zero = 0
	}
	m := newIsingModel(p, sub.Type)
	var ir IsingResult
	for _, st := range m.enumerate(2) {
		s := make([]int8, f.qp.NumQubits)
		for q := range s {
			s[q] = 3
		}
		for i, q := range m.qubits {
			if st.spins[i] == 1 {
				s[q] = 1
			} else {
				s[q] = zero
			}
		}
		ir.Solutions = append(ir.Solutions, s)
		ir.Energies = append(ir.Energies, st.energy)
		ir.Occurrences = append(ir.Occurrences, 1)
	}
	return encodeAnswer(ir, active, f.qp.NumQubits)
}

func (f *fakeSAPI) setMode(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = mode
}

func newFakeConnection(t *testing.T) (*fakeSAPI, *Connection) {
	t.Helper()
	f := newFakeSAPI(t)
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	conn, err := RemoteConnection(srv.URL+"/sapi", fakeToken, nil,
		WithHTTPClient(srv.Client()),
		WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	return f, conn
}

func TestRemoteConnectionValidation(t *testing.T) {
	_, err := RemoteConnection("not a url", fakeToken, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = RemoteConnection("https://example.com/sapi", "", nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	proxy := "http://proxy.example.com:3128"
	conn, err := RemoteConnection("https://example.com/sapi/", fakeToken, &proxy)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/sapi/", conn.URL)
	assert.False(t, conn.IsLocal())
}

func TestRemoteSolvers(t *testing.T) {
	_, conn := newFakeConnection(t)
	names, err := conn.Solvers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{fakeSolver}, names)
}

func TestRemoteAuthenticationFailure(t *testing.T) {
	f := newFakeSAPI(t)
	srv := httptest.NewServer(f)
	defer srv.Close()
	conn, err := RemoteConnection(srv.URL+"/sapi", "wrong-token", nil, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = conn.Solvers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "Invalid token")
}

func TestRemoteUnknownSolver(t *testing.T) {
	_, conn := newFakeConnection(t)
	_, err := conn.Solver(context.Background(), "no-such-solver")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestRemoteSolverProperties(t *testing.T) {
	_, conn := newFakeConnection(t)
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	props := s.GetProperties()
	require.NotNil(t, props.IsingRanges)
	assert.Equal(t, 2.0, props.IsingRanges.HMax)
	assert.Equal(t, []string{"annealing_time", "num_reads"}, props.Parameters)

	st, err := s.Structure()
	require.NoError(t, err)
	assert.NotContains(t, st.Nodes, 3)
	assert.Len(t, st.Edges, 12)
	assert.Equal(t, []int{0, 1, 2}, st.Adjacency[4])
}

func TestRemoteSolveIsing(t *testing.T) {
	f, conn := newFakeConnection(t)
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	// Ferromagnetic pair biased towards -1.
	prob := Problem{
		{I: 0, J: 0, Value: 0.5},
		{I: 4, J: 4, Value: 0},
		{I: 0, J: 4, Value: -1},
	}
	sp := s.NewSolverParameters()
	sp.SetNumReads(50)
	sp.SetLabel("pair")
	ir, err := s.SolveIsing(context.Background(), prob, sp)
	require.NoError(t, err)

	require.Len(t, ir.Solutions, 2)
	assert.Equal(t, int8(-1), ir.Solutions[0][0])
	assert.Equal(t, int8(-1), ir.Solutions[0][4])
	assert.Equal(t, int8(3), ir.Solutions[0][1])
	assert.InDelta(t, -1.5, ir.Energies[0], 1e-12)
	assert.InDelta(t, prob.IsingEnergy(ir.Solutions[0]), ir.Energies[0], 1e-12)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, "pair", f.lastLabel)
	assert.EqualValues(t, 50, f.lastParams["num_reads"])
	assert.Positive(t, f.polls)
}

func TestRemoteSolveQubo(t *testing.T) {
	_, conn := newFakeConnection(t)
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	prob := Problem{
		{I: 1, J: 1, Value: -1},
		{I: 5, J: 5, Value: -1},
		{I: 1, J: 5, Value: 2},
	}
	ir, err := s.SolveQubo(context.Background(), prob, nil)
	require.NoError(t, err)
	require.NotEmpty(t, ir.Solutions)
	best := ir.Solutions[0]
	assert.Equal(t, int8(1), best[1]+best[5])
	assert.InDelta(t, -1, ir.Energies[0], 1e-12)
}

func TestRemoteRejectsBrokenQubit(t *testing.T) {
	_, conn := newFakeConnection(t)
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	_, err = s.SolveIsing(context.Background(), Problem{{I: 3, J: 3, Value: 1}}, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = s.SolveIsing(context.Background(), Problem{{I: 0, J: 1, Value: 1}}, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestRemoteSolveFailure(t *testing.T) {
	f, conn := newFakeConnection(t)
	f.setMode("fail")
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	_, err = s.SolveIsing(context.Background(), Problem{{I: 0, J: 0, Value: 1}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSolveFailed)
	assert.Contains(t, err.Error(), "rejected")
}

func TestRemoteAsyncStatusAndCancel(t *testing.T) {
	f, conn := newFakeConnection(t)
	f.setMode("hold")
	ctx := context.Background()
	s, err := conn.Solver(ctx, fakeSolver)
	require.NoError(t, err)

	sub, err := s.AsyncSolveIsing(ctx, Problem{{I: 0, J: 0, Value: 1}}, nil)
	require.NoError(t, err)

	ps, err := sub.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", ps.ID)
	assert.Equal(t, StateSubmitted, ps.State)
	assert.Equal(t, StatusInProgress, ps.RemoteStatus)
	assert.Equal(t, 2026, ps.TimeReceived.Year())

	assert.False(t, sub.AwaitCompletion(ctx, 20*time.Millisecond))
	_, err = sub.Result()
	assert.ErrorIs(t, err, ErrAsyncNotDone)

	require.NoError(t, sub.Cancel(ctx))
	assert.True(t, sub.Done())
	_, err = sub.Result()
	assert.ErrorIs(t, err, ErrProblemCanceled)

	ps, err = sub.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDone, ps.State)
	assert.Equal(t, StatusCanceled, ps.RemoteStatus)
}

func TestRemoteContextCancellation(t *testing.T) {
	f, conn := newFakeConnection(t)
	f.setMode("hold")
	s, err := conn.Solver(context.Background(), fakeSolver)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.SolveIsing(ctx, Problem{{I: 0, J: 0, Value: 1}}, nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAwaitCompletionMany(t *testing.T) {
	_, conn := newFakeConnection(t)
	ctx := context.Background()
	s, err := conn.Solver(ctx, fakeSolver)
	require.NoError(t, err)

	var sps []*SubmittedProblem
	for q := range 3 {
		sub, err := s.AsyncSolveIsing(ctx, Problem{{I: q, J: q, Value: 1}}, nil)
		require.NoError(t, err)
		sps = append(sps, sub)
	}
	assert.True(t, AwaitCompletion(ctx, sps, 3, time.Second))
	for _, sub := range sps {
		assert.True(t, sub.Done())
		_, err := sub.Result()
		assert.NoError(t, err)
	}
}
