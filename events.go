package oren

import "time"

// Event is an inbound, already classified transport event. Implementations
// are the concrete types in this file.
type Event interface {
	eventName() string
}

// LoginReply answers a Conn.Login request.
type LoginReply struct {
	Result        LoginResult
	ServerName    string
	ServerVersion string
}

// StartFrame is the peer's start handshake for a line.
type StartFrame struct {
	Line       uint32
	SourceName string
	Param      []byte
}

// MetaFrame carries format metadata for a line.
type MetaFrame struct {
	Line   uint32
	Format []byte
}

// RefuseFrame reports the data types the peer refuses on a line.
type RefuseFrame struct {
	Line uint32
	Mask RefuseMode
}

// DataFrame is one inbound data arrival. Duplicate, Retransmit and Lost are
// set by the transport's sequence tracking; the engine only counts them.
type DataFrame struct {
	Line       uint32
	Type       DataType
	Payload    []byte
	Duplicate  bool   // already delivered once
	Retransmit bool   // arrived through a retransmission
	Lost       uint32 // frames detected missing before this one
}

// DelayReport carries the transport's one-way delay estimate for a line.
type DelayReport struct {
	Line  uint32
	Delay time.Duration
}

// AloneNotice reports whether this client is the only channel participant.
type AloneNotice struct {
	Alone bool
}

// SessionClosed is a server initiated termination (kick, freeze, other).
type SessionClosed struct {
	Reason LogoutReason
}

// Disconnected reports loss of transport connectivity.
type Disconnected struct {
	Err error
}

func (LoginReply) eventName() string    { return "login-reply" }
func (StartFrame) eventName() string    { return "start" }
func (MetaFrame) eventName() string     { return "meta" }
func (RefuseFrame) eventName() string   { return "refuse" }
func (DataFrame) eventName() string     { return "data" }
func (DelayReport) eventName() string   { return "delay" }
func (AloneNotice) eventName() string   { return "alone" }
func (SessionClosed) eventName() string { return "session-closed" }
func (Disconnected) eventName() string  { return "disconnected" }
