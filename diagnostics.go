package oren

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// LineState is the diagnostic view of one line.
type LineState struct {
	Line          uint32
	SourceName    string
	HasFormat     bool
	Refused       RefuseMode
	RemoteRefused RefuseMode
	PendingRetry  int    // retransmissions of the most recent send so far
	Discarded     uint64 // inbound frames dropped by the local refusal mask
}

// Diagnostics is a point-in-time view of a Client for troubleshooting.
type Diagnostics struct {
	State         State
	Channel       string
	User          string
	Address       string
	ServerName    string
	ServerVersion string
	LoggingInFor  time.Duration // zero unless logging in

	Lines                []LineState
	PendingRequests      []PendingRequest
	Breakers             map[string]CircuitState
	PendingNotifications int
	Statistics           Statistics
}

// Diagnostics returns the current diagnostic view.
func (c *Client) Diagnostics() Diagnostics {
	if err := c.ensureInitialized(); err != nil {
		return Diagnostics{}
	}

	c.mu.Lock()
	s := &c.session
	diag := Diagnostics{
		State:         s.state,
		Channel:       s.channel,
		User:          s.user,
		ServerName:    s.serverName,
		ServerVersion: s.serverVersion,
		Statistics:    c.stats.snapshot(),
	}
	if s.epoch > 0 {
		diag.Address = s.address.String()
	}
	if s.state == StateLoggingIn {
		diag.LoggingInFor = time.Since(s.loginStarted)
	}
	for _, n := range c.lines.numbers() {
		l, _ := c.lines.get(n)
		diag.Lines = append(diag.Lines, LineState{
			Line:          n,
			SourceName:    l.sourceName,
			HasFormat:     l.format != nil,
			Refused:       l.refused,
			RemoteRefused: l.remoteRefused,
			PendingRetry:  l.pendingRetry,
			Discarded:     l.discarded,
		})
	}
	c.mu.Unlock()

	diag.PendingRequests = c.discovery.requests()
	diag.Breakers = c.discovery.breakers.states()
	diag.PendingNotifications = c.notify.len()
	return diag
}

// Report renders the diagnostics as a human-readable report.
func (d Diagnostics) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Oren Diagnostic Report ===\n\n")
	fmt.Fprintf(&b, "Session: %s", d.State)
	if d.Channel != "" {
		fmt.Fprintf(&b, " (channel %s, user %s, via %s)", d.Channel, d.User, d.Address)
	}
	b.WriteString("\n")

	switch d.State {
	case StateOnline:
		fmt.Fprintf(&b, "  Server: %s version %s\n", d.ServerName, d.ServerVersion)
	case StateLoggingIn:
		fmt.Fprintf(&b, "  Waiting for login reply for %v\n", d.LoggingInFor.Round(time.Millisecond))
	}

	fmt.Fprintf(&b, "\nLines: %d\n", len(d.Lines))
	for _, l := range d.Lines {
		fmt.Fprintf(&b, "  line %d: source=%q format=%t refused=%#x remote-refused=%#x retry=%d discarded=%d\n",
			l.Line, l.SourceName, l.HasFormat, uint32(l.Refused), uint32(l.RemoteRefused), l.PendingRetry, l.Discarded)
	}

	fmt.Fprintf(&b, "\nPending requests: %d\n", len(d.PendingRequests))
	for _, r := range d.PendingRequests {
		fmt.Fprintf(&b, "  %s %s to %s (%v)\n", r.ID, r.Kind, r.Target, time.Since(r.Started).Round(time.Millisecond))
	}
	addrs := lo.Keys(d.Breakers)
	slices.Sort(addrs)
	for _, addr := range addrs {
		if state := d.Breakers[addr]; state != CircuitClosed {
			fmt.Fprintf(&b, "\nISSUE: circuit to %s is %s\n", addr, state)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", d.Statistics)
	if st := d.Statistics; st.SendLost > 0 {
		fmt.Fprintf(&b, "WARNING: %d sends lost after retries (%d retransmissions)\n", st.SendLost, st.SendRetry)
	}
	return b.String()
}
