package oren

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// PendingRequest describes an outstanding discovery request.
type PendingRequest struct {
	ID      string
	Kind    string // "ping", "servers" or "trace"
	Target  string
	Started time.Time
}

// discoveryCoordinator tracks ping, server list and route requests. Requests
// run under a scope context that is replaced whenever the session goes
// Offline, so a teardown fails every request started before it.
type discoveryCoordinator struct {
	directory Directory
	breakers  *breakerSet

	mu      sync.Mutex
	root    context.Context
	scope   context.Context
	cancel  context.CancelFunc
	pending map[string]PendingRequest
}

func newDiscoveryCoordinator(root context.Context, directory Directory, breakers *breakerSet) *discoveryCoordinator {
	d := &discoveryCoordinator{
		directory: directory,
		breakers:  breakers,
		root:      root,
		pending:   make(map[string]PendingRequest),
	}
	d.scope, d.cancel = context.WithCancel(root)
	return d
}

// begin registers a request and returns its id and context. timeout
// WaitForever means no deadline.
func (d *discoveryCoordinator) begin(kind, target string, timeout time.Duration) (string, context.Context, context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ctx context.Context
	var cancel context.CancelFunc
	if timeout == WaitForever {
		ctx, cancel = context.WithCancel(d.scope)
	} else {
		ctx, cancel = context.WithTimeout(d.scope, timeout)
	}
	id := uuid.NewString()
	d.pending[id] = PendingRequest{ID: id, Kind: kind, Target: target, Started: time.Now()}
	Debug("Started %s request %s to %s", kind, id, target)
	return id, ctx, cancel
}

func (d *discoveryCoordinator) end(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// cancelAll fails every outstanding request and opens a fresh scope.
func (d *discoveryCoordinator) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.pending); n > 0 {
		Debug("Canceling %d discovery requests", n)
	}
	d.cancel()
	d.scope, d.cancel = context.WithCancel(d.root)
}

// requests returns the outstanding requests, oldest first.
func (d *discoveryCoordinator) requests() []PendingRequest {
	d.mu.Lock()
	out := lo.Values(d.pending)
	d.mu.Unlock()
	slices.SortFunc(out, func(a, b PendingRequest) int {
		return a.Started.Compare(b.Started)
	})
	return out
}

// servers queries a channel manager through its circuit breaker. A nil error
// always comes with a non-nil, possibly empty list.
func (d *discoveryCoordinator) servers(ctx context.Context, cmAddress, channel string) ([]ServerInfo, error) {
	var list []ServerInfo
	err := d.breakers.get(cmAddress).Execute(func() error {
		var err error
		list, err = d.directory.Servers(ctx, cmAddress, channel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(list, func(s ServerInfo, _ int) ServerInfo {
		s.Address = strings.TrimSpace(s.Address)
		return s
	}), nil
}

// requestError maps a failed request context to the error reported to the
// application.
func requestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrRequestCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Ping probes a server for a channel. The result is reported through OnPing;
// a failed or timed out probe reports PingTimeout as the RTT. A zero timeout
// uses the configured default and WaitForever waits without a deadline.
func (c *Client) Ping(address, channel string, timeout time.Duration) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if _, err := parseServerAddress(address); err != nil {
		return err
	}
	if timeout == 0 {
		timeout = c.config.PingTimeout
	}
	if timeout < 0 && timeout != WaitForever {
		return fmt.Errorf("%w: ping timeout %v", ErrInvalidArgument, timeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	id, ctx, cancel := c.discovery.begin("ping", address, timeout)
	c.spawn(func() {
		defer cancel()
		defer c.discovery.end(id)

		started := time.Now()
		reply, err := c.discovery.directory.Ping(ctx, address, channel)
		rtt := reply.RTT
		if rtt <= 0 {
			rtt = time.Since(started)
		}

		c.mu.Lock()
		if err != nil {
			Warning("Ping %s failed: %v", address, requestError(ctx, err))
			c.trackError("discovery")
			c.pushPing(address, PingTimeout, channel, 0)
		} else {
			c.stats.recordPing(rtt)
			if c.metrics != nil {
				c.metrics.RecordPingRTT(rtt)
			}
			c.pushPing(address, rtt, channel, reply.UserCount)
		}
		c.mu.Unlock()
		c.notify.drain()
	})
	return nil
}

// ReqServers asks a channel manager for the servers of a channel. The answer
// is reported through OnServerList. cmAddress is host:port, with or without
// the cm:// scheme.
func (c *Client) ReqServers(cmAddress, channel string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := validateName("channel", channel); err != nil {
		return err
	}
	target, err := directoryAddress(cmAddress)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	id, ctx, cancel := c.discovery.begin("servers", target, c.config.RequestTimeout)
	c.spawn(func() {
		defer cancel()
		defer c.discovery.end(id)

		servers, err := c.discovery.servers(ctx, target, channel)
		if err != nil {
			err = requestError(ctx, err)
			Warning("Server list from %s failed: %v", target, err)
		}

		c.mu.Lock()
		if err != nil {
			c.trackError("discovery")
		}
		c.pushServerList(servers, err)
		c.mu.Unlock()
		c.notify.drain()
	})
	return nil
}

func directoryAddress(address string) (string, error) {
	if !strings.Contains(address, "://") {
		a, err := parseServerAddress(address)
		if err != nil {
			return "", err
		}
		return a.HostPort(), nil
	}
	a, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	if a.Mode != ModeDirectory {
		return "", fmt.Errorf("%w: %q is not a channel manager address", ErrInvalidAddress, address)
	}
	return a.HostPort(), nil
}

// TraceRoute traces the network path to target. The trace is reported
// through OnRoute; hops found before the timeout elapsed are reported as a
// partial trace with a nil error.
func (c *Client) TraceRoute(target string, timeout time.Duration) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("%w: empty trace target", ErrInvalidAddress)
	}
	if timeout == 0 {
		timeout = c.config.TraceTimeout
	}
	if timeout < 0 && timeout != WaitForever {
		return fmt.Errorf("%w: trace timeout %v", ErrInvalidArgument, timeout)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	id, ctx, cancel := c.discovery.begin("trace", target, timeout)
	c.spawn(func() {
		defer cancel()
		defer c.discovery.end(id)

		var (
			hopsMu sync.Mutex
			hops   []RouteInfo
			done   bool
		)
		err := c.discovery.directory.TraceRoute(ctx, target, func(hop RouteInfo) {
			hopsMu.Lock()
			defer hopsMu.Unlock()
			if !done {
				hops = append(hops, hop)
			}
		})
		hopsMu.Lock()
		done = true
		trace := RouteTrace{Target: target, Hops: hops}
		hopsMu.Unlock()

		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				trace.Partial = true
				err = nil
			} else {
				err = requestError(ctx, err)
				Warning("Trace to %s failed: %v", target, err)
			}
		}

		c.mu.Lock()
		if err != nil {
			c.trackError("discovery")
		}
		c.pushRoute(trace, err)
		c.mu.Unlock()
		c.notify.drain()
	})
	return nil
}
