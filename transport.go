package oren

import (
	"context"
	"time"
)

// Dialer opens a transport connection to a media server. The concrete socket
// and wire encoding live behind this interface.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// Conn is one transport connection to a media server.
//
// Outbound methods must respect ctx. Send reports a lost frame by returning
// ErrFrameLost (explicit negative acknowledgement) or ErrTimeout; any other
// error is fatal for that send.
//
// Events delivers classified inbound events in arrival order. The transport
// closes the channel when the connection is lost or after Close.
type Conn interface {
	Login(ctx context.Context, req LoginRequest) error
	Logout(ctx context.Context) error
	Start(ctx context.Context, line uint32, param []byte) error
	Meta(ctx context.Context, line uint32, format []byte) error
	Refuse(ctx context.Context, line uint32, mask RefuseMode) error
	Send(ctx context.Context, frame Frame) error
	Events() <-chan Event
	Close() error
}

// Directory is the channel manager collaborator used for discovery.
type Directory interface {
	// Ping probes a server for a channel.
	Ping(ctx context.Context, address, channel string) (PingReply, error)
	// Servers returns the ordered candidate servers for a channel.
	Servers(ctx context.Context, cmAddress, channel string) ([]ServerInfo, error)
	// TraceRoute reports hops through hop in network order until the trace
	// completes, fails or ctx expires.
	TraceRoute(ctx context.Context, target string, hop func(RouteInfo)) error
}

// LoginRequest is handed to Conn.Login.
type LoginRequest struct {
	Channel       string
	User          string
	ClientVersion string
	Nonce         []byte
	Signature     string // keyed digest, see signLogin
}

// Frame is one data frame attempt handed to Conn.Send.
type Frame struct {
	Line    uint32
	Type    DataType
	Payload []byte
	Attempt int // 1 for the first transmission, >1 for retransmissions
}

// PingReply is a directory answer to a ping probe.
type PingReply struct {
	RTT       time.Duration // zero lets the engine use its own measurement
	UserCount int
}

// ServerInfo describes one candidate server for a channel.
type ServerInfo struct {
	Name    string
	Group   string
	Address string // host:port
}

// RouteInfo is one hop of a traced path.
type RouteInfo struct {
	Name string
}

// RouteTrace is the result of TraceRoute. Partial is set when the timeout
// elapsed before the final hop answered; a partial trace is not an error.
type RouteTrace struct {
	Target  string
	Hops    []RouteInfo
	Partial bool
}
