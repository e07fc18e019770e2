// This file defines the error type returned by SAPI functions.

package sapi

import "fmt"

// An ErrorCode classifies a SAPI failure.  ErrorCode values implement error
// so they can be used as errors.Is targets.
type ErrorCode int

// These are the codes an Error can carry.
const (
	OK                  ErrorCode = iota // No error
	ErrInvalidParameter                  // Bad argument to a SAPI function
	ErrSolveFailed                       // Solver reported that it could not solve the problem
	ErrAuthentication                    // Token was rejected by the server
	ErrNetwork                           // Server could not be reached
	ErrCommunication                     // Server response was malformed or unexpected
	ErrAsyncNotDone                      // Result requested before the problem completed
	ErrProblemCanceled                   // Problem was canceled
	ErrNoInitFile                        // Named configuration file could not be read
	ErrNoEmbedding                       // No embedding was found within the search budget
)

var codeNames = map[ErrorCode]string{
	OK:                  "ok",
	ErrInvalidParameter: "invalid parameter",
	ErrSolveFailed:      "solve failed",
	ErrAuthentication:   "authentication failed",
	ErrNetwork:          "network error",
	ErrCommunication:    "communication error",
	ErrAsyncNotDone:     "problem not done",
	ErrProblemCanceled:  "problem canceled",
	ErrNoInitFile:       "configuration file not readable",
	ErrNoEmbedding:      "no embedding found",
}

// Error returns a short description of the code.
func (c ErrorCode) Error() string {
	if s, ok := codeNames[c]; ok {
		return "sapi: " + s
	}
	return fmt.Sprintf("sapi: error code %d", int(c))
}

// An Error is returned by every SAPI function that can fail.
type Error struct {
	Code  ErrorCode // Failure class
	Msg   string    // Human-readable details
	cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.Error()
	}
	return e.Code.Error() + ": " + e.Msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is this error's code.
func (e *Error) Is(target error) bool {
	c, ok := target.(ErrorCode)
	return ok && c == e.Code
}

// newErrorf returns an *Error with a formatted message.
func newErrorf(code ErrorCode, format string, a ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, a...)}
}

// wrapErrorf returns an *Error with a formatted message and a cause.
func wrapErrorf(code ErrorCode, cause error, format string, a ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, a...), cause: cause}
}
