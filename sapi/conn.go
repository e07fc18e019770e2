// This file presents an interface to SAPI connection-related types and
// functions.

package sapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// A Connection represents a connection to a set of solvers.
type Connection struct {
	URL   string  // Connection name (SAPI endpoint); empty for local connections
	Token string  // Token to authenticate a user
	Proxy *string // Proxy URL, if any

	client       *http.Client
	logger       *Logger
	pollInterval time.Duration
	seed         uint64
	local        bool
}

type connOptions struct {
	client       *http.Client
	logger       *Logger
	pollInterval time.Duration
	seed         uint64
}

// An Option configures a Connection.
type Option func(*connOptions)

// WithHTTPClient makes a remote connection use c instead of a client built
// from the proxy setting.
func WithHTTPClient(c *http.Client) Option {
	return func(o *connOptions) {
		o.client = c
	}
}

// WithLogger sets the connection's logger.  The default discards output.
func WithLogger(l *Logger) Option {
	return func(o *connOptions) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithPollInterval sets the minimum delay between status queries for
// asynchronously submitted problems (default one second).
func WithPollInterval(d time.Duration) Option {
	return func(o *connOptions) {
		o.pollInterval = d
	}
}

// WithSeed fixes the random seed of local solvers so their output is
// reproducible.
func WithSeed(seed uint64) Option {
	return func(o *connOptions) {
		o.seed = seed
	}
}

func applyOptions(opts []Option) connOptions {
	o := connOptions{
		logger:       NoopLogger(),
		pollInterval: time.Second,
		seed:         uint64(time.Now().UnixNano()),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// LocalConnection returns a connection to the set of local solvers (i.e.,
// simulators).
func LocalConnection(opts ...Option) *Connection {
	o := applyOptions(opts)
	return &Connection{
		logger:       o.logger,
		pollInterval: o.pollInterval,
		seed:         o.seed,
		local:        true,
	}
}

// RemoteConnection establishes a connection to a set of remote solvers (i.e.,
// D-Wave hardware).  The token is sent with every request; it is never read
// from package state.
func RemoteConnection(sapiURL, token string, proxy *string, opts ...Option) (*Connection, error) {
	// Validate the arguments.
	u, err := url.Parse(sapiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, newErrorf(ErrInvalidParameter, "Invalid SAPI URL %q", sapiURL)
	}
	if token == "" {
		return nil, newErrorf(ErrInvalidParameter, "A SAPI token is required for a remote connection")
	}
	o := applyOptions(opts)

	// Build an HTTP client that honors the proxy, if any.
	client := o.client
	if client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		if proxy != nil && *proxy != "" {
			pu, err := url.Parse(*proxy)
			if err != nil {
				return nil, wrapErrorf(ErrInvalidParameter, err, "Invalid proxy URL %q", *proxy)
			}
			tr.Proxy = http.ProxyURL(pu)
		}
		client = &http.Client{Transport: tr}
	}
	return &Connection{
		URL:          strings.TrimSuffix(sapiURL, "/") + "/",
		Token:        token,
		Proxy:        proxy,
		client:       client,
		logger:       o.logger,
		pollInterval: o.pollInterval,
		seed:         o.seed,
	}, nil
}

// IsLocal says whether the connection refers to the local solvers.
func (c *Connection) IsLocal() bool {
	return c.local
}

// Solvers returns a list of all solvers available on the current connection.
func (c *Connection) Solvers(ctx context.Context) ([]string, error) {
	if c.local {
		return localSolverNames(), nil
	}
	var rs []remoteSolver
	if err := c.do(ctx, http.MethodGet, "solvers/remote/", nil, &rs); err != nil {
		return nil, err
	}
	list := make([]string, 0, len(rs))
	for _, s := range rs {
		list = append(list, s.ID)
	}
	return list, nil
}
