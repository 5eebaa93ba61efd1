package oren

import "time"

// Oren Protocol Constants
//
// This file contains the constants shared by the client engine: protocol limits,
// the public enumerations surfaced through callbacks, and the sentinel values
// used for timeouts and retry budgets.

// Oren Client Constants
const (
	OREN_CLIENT_VERSION = "2.0.0"
	// Highest line number accepted by SendStart/SendData. Lines are a small
	// fixed-size multiplex, not a stream namespace.
	OREN_MAX_LINE uint32 = 0xff
	// Maximum payload of a single data frame handed to the transport.
	OREN_MAX_PAYLOAD_SIZE = 64 * 1024
	// Maximum size of start parameters and format metadata.
	OREN_MAX_PARAM_SIZE = 4 * 1024
	// Maximum length of channel and user names.
	OREN_MAX_NAME_LENGTH = 64
)

// Address scheme prefixes accepted by Login.
const (
	SCHEME_CHANNEL_MANAGER = "cm"
	SCHEME_DIRECT_CONNECT  = "dc"
)

const (
	// PingTimeout is the RTT reported through OnPing when a probe failed or timed out.
	PingTimeout time.Duration = -1

	// WaitForever disables the deadline of Ping and TraceRoute.
	WaitForever time.Duration = -1

	// InfiniteRetry makes SendData retransmit until delivery or session teardown.
	InfiniteRetry = -1
)

// State is the lifecycle state of a client session.
type State int

const (
	StateUnknown State = iota
	StateLoggingIn
	StateOnline
	StateOffline
)

var stateNames = map[State]string{
	StateUnknown:   "unknown",
	StateLoggingIn: "logging-in",
	StateOnline:    "online",
	StateOffline:   "offline",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "invalid"
}

// LoginResult is the outcome of a login attempt reported through OnLogin.
type LoginResult int

const (
	LoginUnknown LoginResult = iota
	LoginSuccess
	LoginTimeout
	LoginErrCliVer
	LoginErrSvrVer
	LoginErrSignature
	LoginErrUserName
	LoginErrCnlName
	LoginErrOverload
	LoginErrSize
	LoginErrLoginCode
	LoginErrAddress
	LoginNoSvrName
	LoginNoCliName
	LoginNoSvrVer
	LoginNoCliVer
	LoginNoNetType
	LoginNoSignature
	LoginServerInit
	LoginErrCMRequest
)

var loginResultNames = [...]string{
	LoginUnknown:      "unknown error",
	LoginSuccess:      "login success",
	LoginTimeout:      "login timeout",
	LoginErrCliVer:    "client version error",
	LoginErrSvrVer:    "server version error",
	LoginErrSignature: "login signature error",
	LoginErrUserName:  "invalid user name",
	LoginErrCnlName:   "invalid channel name",
	LoginErrOverload:  "server overload",
	LoginErrSize:      "packet size error",
	LoginErrLoginCode: "login code error",
	LoginErrAddress:   "failed to get channel address",
	LoginNoSvrName:    "failed to get server name",
	LoginNoCliName:    "failed to get client name",
	LoginNoSvrVer:     "failed to get server version",
	LoginNoCliVer:     "failed to get client version",
	LoginNoNetType:    "failed to get network type",
	LoginNoSignature:  "failed to get signature",
	LoginServerInit:   "server initializing",
	LoginErrCMRequest: "failed to get server list",
}

func (r LoginResult) String() string {
	if r >= 0 && int(r) < len(loginResultNames) {
		return loginResultNames[r]
	}
	return loginResultNames[LoginUnknown]
}

// Retryable reports whether the caller may retry the login that produced r.
// Every other non-success result is terminal for that attempt.
func (r LoginResult) Retryable() bool {
	return r == LoginTimeout
}

// LogoutReason explains why a session left the online state.
type LogoutReason int

const (
	LogoutUnknown LogoutReason = iota
	LogoutNormal
	LogoutDisconnect
	LogoutKickout
	LogoutFrozen
)

var logoutReasonNames = [...]string{
	LogoutUnknown:    "unknown error",
	LogoutNormal:     "normal logout",
	LogoutDisconnect: "lost connection to server",
	LogoutKickout:    "kicked out of channel",
	LogoutFrozen:     "channel frozen",
}

func (r LogoutReason) String() string {
	if r >= 0 && int(r) < len(logoutReasonNames) {
		return logoutReasonNames[r]
	}
	return logoutReasonNames[LogoutUnknown]
}

// DataType tags the payload of a data frame.
type DataType uint32

const (
	AudioData DataType = 0
	VideoData DataType = 1
	UserData  DataType = 2
)

func (t DataType) String() string {
	switch t {
	case AudioData:
		return "audio"
	case VideoData:
		return "video"
	case UserData:
		return "user"
	default:
		return "unknown"
	}
}

// RefuseMode is a bit-set of refused data types; bit n refuses DataType n.
type RefuseMode uint32

const (
	RefuseNone       RefuseMode = 0
	RefuseAudio      RefuseMode = 1
	RefuseVideo      RefuseMode = 2
	RefuseAudioVideo RefuseMode = 3
	RefuseUser       RefuseMode = 4
	RefuseAll        RefuseMode = 0xFFFFFFFF
)

// Refuses reports whether m refuses frames of type t.
func (m RefuseMode) Refuses(t DataType) bool {
	if m == RefuseAll {
		return true
	}
	if t >= 32 {
		return false
	}
	return m&(1<<t) != 0
}

// Logger Level Constants
const (
	DEBUG   = 1 << 4
	INFO    = 1 << 5
	WARNING = 1 << 6
	ERROR   = 1 << 7
	FATAL   = 1 << 8
)
