// This file implements the HTTP transport to the remote SAPI service.

package sapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// remoteSolver is a solver description as returned by solvers/remote/.
type remoteSolver struct {
	ID         string           `json:"id"`
	Status     string           `json:"status,omitempty"`
	Properties remoteProperties `json:"properties"`
}

type remoteProperties struct {
	NumQubits             int               `json:"num_qubits"`
	Qubits                []int             `json:"qubits"`
	Couplers              [][2]int          `json:"couplers"`
	HRange                []float64         `json:"h_range,omitempty"`
	JRange                []float64         `json:"j_range,omitempty"`
	SupportedProblemTypes []string          `json:"supported_problem_types"`
	Parameters            map[string]string `json:"parameters,omitempty"`
	AnnealOffsetRanges    [][2]float64      `json:"anneal_offset_ranges,omitempty"`
	AnnealOffsetStep      float64           `json:"anneal_offset_step,omitempty"`
	AnnealOffsetStepPhi0  float64           `json:"anneal_offset_step_phi0,omitempty"`
}

// problemSubmission is one element of the body POSTed to problems/.
type problemSubmission struct {
	Solver string         `json:"solver"`
	Data   qpData         `json:"data"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
	Label  string         `json:"label,omitempty"`
}

// problemMessage is the server's view of a submitted problem.
type problemMessage struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Type         string    `json:"type,omitempty"`
	SubmittedOn  string    `json:"submitted_on,omitempty"`
	SolvedOn     string    `json:"solved_on,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Answer       *qpAnswer `json:"answer,omitempty"`
}

// errorMessage is the body of a failed request.
type errorMessage struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// do performs a SAPI request.  in, if non-nil, is sent as JSON; out, if
// non-nil, receives the decoded JSON response.
func (c *Connection) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return wrapErrorf(ErrInvalidParameter, err, "Failed to encode the %s request", path)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL+path, body)
	if err != nil {
		return wrapErrorf(ErrInvalidParameter, err, "Failed to build the %s request", path)
	}
	req.Header.Set("X-Auth-Token", c.Token)
	req.Header.Set("User-Agent", "qanneal-sapi/"+version)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return wrapErrorf(ErrNetwork, err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapErrorf(ErrNetwork, err, "Failed to read the %s response", path)
	}

	if resp.StatusCode >= 300 {
		return responseError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrapErrorf(ErrCommunication, err, "Malformed %s response", path)
	}
	return nil
}

// responseError maps an HTTP failure onto an *Error.
func responseError(status int, raw []byte) error {
	var em errorMessage
	msg := http.StatusText(status)
	if json.Unmarshal(raw, &em) == nil && em.ErrorMsg != "" {
		msg = em.ErrorMsg
	}
	cause := fmt.Errorf("HTTP %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return wrapErrorf(ErrAuthentication, cause, "%s", msg)
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		return wrapErrorf(ErrInvalidParameter, cause, "%s", msg)
	default:
		return wrapErrorf(ErrCommunication, cause, "%s", msg)
	}
}

// isRetryable says whether a remote failure might succeed if repeated.
func isRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrCommunication)
}
