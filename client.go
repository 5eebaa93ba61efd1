package oren

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Client is the client engine: one session into one channel at a time, its
// lines, its statistics and the discovery requests issued through it.
//
// All session, line and statistics state is guarded by a single mutex.
// Callbacks are delivered outside that mutex, one at a time and in event
// order, and may call back into the Client.
type Client struct {
	rt        *Runtime
	config    ClientConfig
	callbacks *ClientCallbacks
	metrics   MetricsCollector

	mu      sync.Mutex
	session sessionMachine
	lines   lineTable
	stats   statsTracker
	closed  bool

	discovery *discoveryCoordinator
	notify    notifyQueue

	ctx    context.Context // canceled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup // tracks login, pump, send and discovery goroutines
}

// NewClient creates a client from an initialized runtime. callbacks may be nil.
func NewClient(rt *Runtime, config ClientConfig, callbacks *ClientCallbacks) (*Client, error) {
	if rt == nil || rt.IsClosed() {
		return nil, ErrRuntimeClosed
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if callbacks == nil {
		callbacks = &ClientCallbacks{}
	}

	c := &Client{
		rt:        rt,
		config:    config,
		callbacks: callbacks,
		metrics:   config.Metrics,
		lines:     newLineTable(),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.discovery = newDiscoveryCoordinator(c.ctx, config.Directory,
		newBreakerSet(config.BreakerMaxFailures, config.BreakerResetTimeout))
	if c.metrics != nil {
		c.metrics.SetSessionState(StateUnknown)
	}
	Debug("Client created (login timeout %v, retry %v..%v)",
		config.LoginTimeout, config.RetryInitialInterval, config.RetryMaxInterval)
	return c, nil
}

// ensureInitialized checks that the Client was created with NewClient.
func (c *Client) ensureInitialized() error {
	if c == nil || c.ctx == nil || c.discovery == nil || c.lines.lines == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Close logs out, cancels every pending request and send, and waits for the
// client's goroutines to finish. Close is idempotent.
//
// Callbacks run on the client's own goroutines, so Close called while a
// callback executes tears everything down but returns without waiting; the
// canceled goroutines exit on their own.
func (c *Client) Close() error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var conn Conn
	if state := c.session.state; state == StateLoggingIn || state == StateOnline {
		conn = c.goOfflineLocked()
		c.pushLogout(LogoutNormal)
	}
	c.mu.Unlock()

	c.sendLogout(conn)
	c.cancel()
	if c.notify.inCallback() {
		Debug("Client closed from a callback")
		return nil
	}
	c.wg.Wait()
	c.notify.drain()
	Debug("Client closed: %s", c.GetStatistics())
	return nil
}

// GetState returns the current session state.
func (c *Client) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.state
}

// GetStatistics returns a snapshot of the transport counters.
func (c *Client) GetStatistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// ServerName returns the name reported by the server on the last successful login.
func (c *Client) ServerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.serverName
}

// ServerVersion returns the version reported by the server on the last successful login.
func (c *Client) ServerVersion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.serverVersion
}

// Lines returns the line numbers of the current session in ascending order.
func (c *Client) Lines() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines.numbers()
}

// spawn runs fn on a goroutine tracked by Close. Must be called with c.mu held
// and the client not closed.
func (c *Client) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// setStateLocked moves the session to state and reports it to metrics.
func (c *Client) setStateLocked(state State) {
	if c.session.state == state {
		return
	}
	Debug("Session state %s -> %s", c.session.state, state)
	c.session.state = state
	if c.metrics != nil {
		c.metrics.SetSessionState(state)
	}
}

func (c *Client) trackError(errorType string) {
	if c.metrics != nil {
		c.metrics.IncrementError(errorType)
	}
}

// onlineConnLocked returns the connection and session context for a line
// operation, or the reason the operation is not allowed.
func (c *Client) onlineConnLocked() (Conn, context.Context, error) {
	switch {
	case c.closed:
		return nil, nil, ErrClientClosed
	case c.session.state != StateOnline || c.session.conn == nil:
		return nil, nil, fmt.Errorf("%w (state %s)", ErrNotOnline, c.session.state)
	}
	return c.session.conn, c.session.ctx, nil
}

// requestContext bounds a single transport request by RequestTimeout.
func (c *Client) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.config.RequestTimeout)
}

func validateName(kind, name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return oops.In("validate").With(kind, name).Wrapf(ErrInvalidArgument, "%s must not be empty", kind)
	case len(name) > OREN_MAX_NAME_LENGTH:
		return oops.In("validate").With(kind, name).
			Wrapf(ErrInvalidArgument, "%s longer than %d bytes", kind, OREN_MAX_NAME_LENGTH)
	case trimmed != name:
		return oops.In("validate").With(kind, name).Wrapf(ErrInvalidArgument, "%s has surrounding whitespace", kind)
	}
	return nil
}

func validateLine(line uint32) error {
	if line > OREN_MAX_LINE {
		return NewLineError(line, "validate", fmt.Errorf("%w: line above %d", ErrInvalidArgument, OREN_MAX_LINE))
	}
	return nil
}
