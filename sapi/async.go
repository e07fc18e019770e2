// This file presents an interface to SAPI solver-related types and functions.
// Functions related to asynchronous execution are in this file; functions
// related to synchronous execution are in solver.go

package sapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxPollFailures is the number of consecutive failed status queries after
// which a problem enters StateFailed.
const maxPollFailures = 3

// A SubmittedProblem represents a problem submitted asynchronously to a solver.
type SubmittedProblem struct {
	solver      *Solver
	problemType string
	problem     Problem
	params      SolverParameters
	limiter     *rate.Limiter
	logger      *Logger
	cancel      context.CancelFunc // Local problems only
	done        chan struct{}

	mu       sync.Mutex
	status   ProblemStatus
	result   IsingResult
	err      error
	failures int
	closed   bool
}

// AsyncSolveIsing submits an Ising-model problem to a solver but does not wait
// for it to complete.  ctx bounds the submission only.
func (s *Solver) AsyncSolveIsing(ctx context.Context, p Problem, sp SolverParameters) (*SubmittedProblem, error) {
	return s.submit(ctx, p, sp, "ising")
}

// AsyncSolveQubo submits a QUBO problem to a solver but does not wait for it
// to complete.  ctx bounds the submission only.
func (s *Solver) AsyncSolveQubo(ctx context.Context, p Problem, sp SolverParameters) (*SubmittedProblem, error) {
	return s.submit(ctx, p, sp, "qubo")
}

func (s *Solver) submit(ctx context.Context, p Problem, sp SolverParameters, problemType string) (*SubmittedProblem, error) {
	if sp == nil {
		sp = s.NewSolverParameters()
	}
	interval := s.Conn.pollInterval
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	sub := &SubmittedProblem{
		solver:      s,
		problemType: problemType,
		problem:     p,
		params:      sp,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      s.Conn.logger.WithSolver(s.Name),
		done:        make(chan struct{}),
	}
	sub.status.State = StateSubmitting
	sub.status.LastGoodState = StateSubmitting
	if s.local != nil {
		sub.startLocal(ctx)
		return sub, nil
	}
	if err := sub.postRemote(ctx); err != nil {
		return nil, err
	}
	return sub, nil
}

// startLocal runs a problem on a local solver in the background.
func (sp *SubmittedProblem) startLocal(ctx context.Context) {
	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sp.cancel = cancel
	id := uuid.NewString()
	now := time.Now()
	sp.mu.Lock()
	sp.status.ID = id
	sp.status.TimeReceived = now
	sp.setState(StateSubmitted)
	sp.status.RemoteStatus = StatusInProgress
	sp.mu.Unlock()
	sp.logger.LogSubmit(ctx, id, sp.problemType, nil)

	go func() {
		defer cancel()
		ir, err := sp.solver.local.solve(lctx, sp.problem, sp.problemType, sp.params, sp.solver.Conn.seed)
		if errors.Is(err, context.Canceled) {
			err = newErrorf(ErrProblemCanceled, "Problem %s was canceled", id)
		}
		sp.mu.Lock()
		defer sp.mu.Unlock()
		sp.finish(ir, err)
	}()
}

// postRemote submits the problem to the server.
func (sp *SubmittedProblem) postRemote(ctx context.Context) error {
	s := sp.solver
	data, err := encodeQP(sp.problem, s.props.QuantumProps)
	if err != nil {
		sp.logger.LogSubmit(ctx, "", sp.problemType, err)
		return err
	}
	body := []problemSubmission{{
		Solver: s.Name,
		Data:   data,
		Type:   sp.problemType,
		Params: sp.params.ToMap(),
		Label:  sp.params.label(),
	}}
	var msgs []problemMessage
	err = s.Conn.do(ctx, http.MethodPost, "problems/", body, &msgs)
	if err == nil && len(msgs) != 1 {
		err = newErrorf(ErrCommunication, "Expected one problem in the response, not %d", len(msgs))
	}
	if err != nil {
		sp.logger.LogSubmit(ctx, "", sp.problemType, err)
		return err
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.setState(StateSubmitted)
	sp.apply(&msgs[0])
	sp.logger.LogSubmit(ctx, sp.status.ID, sp.problemType, nil)
	return nil
}

// A SubmittedState represents the state of an asynchronously submitted problem.
type SubmittedState int

// These are the values a SubmittedState can accept.
const (
	StateSubmitting SubmittedState = iota // Problem is still being submitted
	StateSubmitted                        // Problem has been submitted but isn't done yet
	StateDone                             // Problem is done (completed, failed, or canceled)
	StateRetrying                         // Network communication error occurred but submission/polling is being retried
	StateFailed                           // Network communication error occurred while submitting the problem or checking its status
)

// A RemoteStatus represents the status of a problem as reported by the server.
type RemoteStatus int

// These are the values a RemoteStatus can accept.
const (
	StatusUnknown    RemoteStatus = iota // No server response yet (still submitting)
	StatusPending                        // Problem is waiting in a queue
	StatusInProgress                     // Problem is being solved (or will be solved shortly)
	StatusCompleted                      // Solving succeeded
	StatusFailed                         // Solving failed
	StatusCanceled                       // Problem cancelled by user
)

var remoteStatusNames = map[string]RemoteStatus{
	"PENDING":     StatusPending,
	"IN_PROGRESS": StatusInProgress,
	"COMPLETED":   StatusCompleted,
	"FAILED":      StatusFailed,
	"CANCELLED":   StatusCanceled,
	"CANCELED":    StatusCanceled,
}

// A ProblemStatus represents the status of an asynchronously submitted
// problem.
type ProblemStatus struct {
	ID            string         // Problem ID (a UUID for local problems)
	TimeReceived  time.Time      // Time at which the server received the problem
	TimeSolved    time.Time      // Time at which the problem was completed
	State         SubmittedState // State of the problem as seen by the client library
	LastGoodState SubmittedState // Last "good" value of state (i.e., not StateFailed or StateRetrying)
	RemoteStatus  RemoteStatus   // Status of the problem as reported by the server
	Error         *Error         // Error when in any kind of failed state
}

// setState records a new client-side state.  Callers hold sp.mu.
func (sp *SubmittedProblem) setState(st SubmittedState) {
	sp.status.State = st
	if st != StateFailed && st != StateRetrying {
		sp.status.LastGoodState = st
	}
}

// finish marks the problem done.  Callers hold sp.mu.
func (sp *SubmittedProblem) finish(ir IsingResult, err error) {
	if sp.closed {
		return
	}
	sp.result, sp.err = ir, err
	sp.status.TimeSolved = time.Now()
	sp.setState(StateDone)
	switch {
	case err == nil:
		sp.status.RemoteStatus = StatusCompleted
	case errors.Is(err, ErrProblemCanceled):
		sp.status.RemoteStatus = StatusCanceled
	default:
		sp.status.RemoteStatus = StatusFailed
	}
	sp.status.Error = asError(err)
	sp.closed = true
	close(sp.done)
}

// fail records a communication failure.  Callers hold sp.mu.
func (sp *SubmittedProblem) fail(err error) {
	sp.failures++
	sp.err = err
	sp.status.Error = asError(err)
	if isRetryable(err) && sp.failures < maxPollFailures {
		sp.setState(StateRetrying)
		return
	}
	sp.setState(StateFailed)
}

func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrapErrorf(ErrCommunication, err, "%v", err)
}

// apply merges a server message into the problem's status.  Callers hold
// sp.mu.
func (sp *SubmittedProblem) apply(msg *problemMessage) {
	if msg.ID != "" {
		sp.status.ID = msg.ID
	}
	if t, err := time.Parse(time.RFC3339, msg.SubmittedOn); err == nil {
		sp.status.TimeReceived = t
	}
	rs := remoteStatusNames[msg.Status]
	sp.status.RemoteStatus = rs
	sp.failures = 0
	if sp.status.State == StateRetrying {
		sp.setState(StateSubmitted)
	}
	switch rs {
	case StatusCompleted:
		if msg.Answer == nil {
			// Status listings omit the answer.
			return
		}
		ir, err := decodeQP(msg.Answer, sp.problemType)
		sp.finish(ir, err)
	case StatusFailed:
		sp.finish(IsingResult{}, newErrorf(ErrSolveFailed, "%s", msg.ErrorMessage))
	case StatusCanceled:
		sp.finish(IsingResult{}, newErrorf(ErrProblemCanceled, "Problem %s was canceled", sp.status.ID))
	}
	if t, err := time.Parse(time.RFC3339, msg.SolvedOn); err == nil && sp.closed {
		sp.status.TimeSolved = t
	}
}

// poll fetches the problem, answer included, from the server once.
func (sp *SubmittedProblem) poll(ctx context.Context) error {
	sp.mu.Lock()
	id := sp.status.ID
	sp.mu.Unlock()
	var msg problemMessage
	err := sp.solver.Conn.do(ctx, http.MethodGet, "problems/"+url.PathEscape(id)+"/", nil, &msg)
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.closed {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sp.fail(err)
		return err
	}
	sp.apply(&msg)
	return nil
}

// Status returns the current status of an asynchronously submitted problem.
// For remote problems that are not yet done it first asks the server.
func (sp *SubmittedProblem) Status(ctx context.Context) (*ProblemStatus, error) {
	if sp.solver.local == nil && !sp.isDone() {
		sp.mu.Lock()
		id := sp.status.ID
		sp.mu.Unlock()
		var msgs []problemMessage
		err := sp.solver.Conn.do(ctx, http.MethodGet, "problems/?id="+url.QueryEscape(id), nil, &msgs)
		sp.mu.Lock()
		switch {
		case err != nil:
			sp.fail(err)
		case len(msgs) == 1:
			sp.apply(&msgs[0])
		}
		sp.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	ps := sp.status
	return &ps, nil
}

func (sp *SubmittedProblem) isDone() bool {
	select {
	case <-sp.done:
		return true
	default:
		return false
	}
}

// Done says whether an asynchronously submitted problem has completed.  It
// never blocks for longer than one status query, and remote problems are
// queried no more often than the connection's poll interval allows.
func (sp *SubmittedProblem) Done() bool {
	if sp.isDone() {
		return true
	}
	if sp.solver.local == nil && sp.limiter.Allow() {
		ctx, cancel := context.WithTimeout(context.Background(), max(sp.solver.Conn.pollInterval, time.Second))
		defer cancel()
		_ = sp.poll(ctx)
	}
	return sp.isDone()
}

// Cancel cancels an asynchronously submitted problem.
func (sp *SubmittedProblem) Cancel(ctx context.Context) error {
	if sp.isDone() {
		return nil
	}
	if sp.cancel != nil {
		sp.cancel()
		return nil
	}
	sp.mu.Lock()
	id := sp.status.ID
	sp.mu.Unlock()
	var msg problemMessage
	if err := sp.solver.Conn.do(ctx, http.MethodDelete, "problems/"+url.PathEscape(id)+"/", nil, &msg); err != nil {
		return err
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if msg.Status == "" {
		msg.Status = "CANCELLED"
	}
	sp.apply(&msg)
	return nil
}

// Retry retries an asynchronously submitted problem that encountered a
// network, communication, or authentication error.  A problem the server
// never accepted is submitted again; otherwise polling resumes.
func (sp *SubmittedProblem) Retry(ctx context.Context) error {
	sp.mu.Lock()
	st, id := sp.status.State, sp.status.ID
	if st != StateFailed && st != StateRetrying {
		sp.mu.Unlock()
		return nil
	}
	sp.failures = 0
	sp.err = nil
	sp.status.Error = nil
	sp.setState(StateSubmitted)
	sp.mu.Unlock()
	if id == "" {
		return sp.postRemote(ctx)
	}
	return sp.poll(ctx)
}

// AwaitCompletion waits for an asynchronously submitted problem to complete.
// It returns true if the problem completed, false if the specified timeout
// was reached, ctx ended or the problem entered StateFailed.  A timeout of
// zero or less waits for as long as ctx allows.
func (sp *SubmittedProblem) AwaitCompletion(ctx context.Context, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if sp.solver.local != nil {
		select {
		case <-sp.done:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for !sp.isDone() {
		if err := sp.limiter.Wait(ctx); err != nil {
			return sp.isDone()
		}
		_ = sp.poll(ctx)
		sp.mu.Lock()
		failed := sp.status.State == StateFailed
		sp.mu.Unlock()
		if failed {
			return false
		}
	}
	return true
}

// AwaitCompletion waits for multiple asynchronously submitted problems to
// complete.  It returns true if a minimum number of problems completed, false
// if the specified timeout was reached first.  For a single submitted problem,
// SubmittedProblem.AwaitCompletion may be more convenient.
func AwaitCompletion(ctx context.Context, sps []*SubmittedProblem, minDone int, timeout time.Duration) bool {
	minDone = min(minDone, len(sps))
	if minDone <= 0 {
		return true
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan bool, len(sps))
	for _, sp := range sps {
		go func() {
			results <- sp.AwaitCompletion(ctx, 0)
		}()
	}
	done := 0
	for range sps {
		if <-results {
			done++
			if done >= minDone {
				return true
			}
		}
	}
	return false
}

// Result returns the result of asynchronously submitted problem.
func (sp *SubmittedProblem) Result() (IsingResult, error) {
	if !sp.isDone() {
		sp.mu.Lock()
		defer sp.mu.Unlock()
		if sp.status.State == StateFailed && sp.err != nil {
			return IsingResult{}, sp.err
		}
		return IsingResult{}, newErrorf(ErrAsyncNotDone, "Problem %s has not completed", sp.status.ID)
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.result, sp.err
}

// wait blocks until the problem completes and returns its result.
func (sp *SubmittedProblem) wait(ctx context.Context) (IsingResult, error) {
	for !sp.AwaitCompletion(ctx, 0) {
		if err := ctx.Err(); err != nil {
			if sp.cancel != nil {
				sp.cancel()
			}
			return IsingResult{}, err
		}
		sp.mu.Lock()
		failed := sp.status.State == StateFailed
		sp.mu.Unlock()
		if failed {
			break
		}
	}
	return sp.Result()
}
