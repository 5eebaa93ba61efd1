package oren

import (
	"context"
	"errors"
	"fmt"
)

// Standard Oren Error Types
//
// These errors follow Go 1.13+ error wrapping conventions and can be
// checked using errors.Is() and errors.As(). Input validation failures are
// returned synchronously; protocol rejections and session terminations are
// reported through LoginResult and LogoutReason callbacks instead.

var (
	// ErrInvalidArgument indicates an empty, oversized or otherwise malformed argument.
	ErrInvalidArgument = errors.New("oren: invalid argument")

	// ErrInvalidAddress indicates an address that is neither a cm:// directory
	// address nor a dc:// or host:port server address.
	ErrInvalidAddress = errors.New("oren: invalid address")

	// ErrInvalidState indicates an operation that is not legal in the current session state,
	// e.g. Login while a login is already in progress.
	ErrInvalidState = errors.New("oren: operation not valid in current state")

	// ErrNotOnline indicates a line operation was attempted while the session is not online.
	ErrNotOnline = errors.New("oren: session not online")

	// ErrLineUnknown indicates a line operation on a line that has not been started.
	ErrLineUnknown = errors.New("oren: line not started")

	// ErrDataRefused indicates the peer refused the data type on this line.
	ErrDataRefused = errors.New("oren: data type refused by peer")

	// ErrFrameLost is returned by a transport when a frame was negatively
	// acknowledged. It is the retryable loss signal for SendData.
	ErrFrameLost = errors.New("oren: frame lost")

	// ErrTimeout indicates an operation exceeded its allowed time limit.
	// Transports may return it from Send as a retryable loss signal.
	ErrTimeout = errors.New("oren: operation timed out")

	// ErrSendLost indicates a send exhausted its retry budget.
	ErrSendLost = errors.New("oren: send lost after retries exhausted")

	// ErrSendAbandoned indicates a pending send was dropped because the session went offline.
	ErrSendAbandoned = errors.New("oren: send abandoned on session teardown")

	// ErrRequestCanceled indicates a discovery request was canceled by a session teardown.
	ErrRequestCanceled = errors.New("oren: request canceled")

	// ErrCircuitOpen indicates a directory is being skipped after repeated failures.
	ErrCircuitOpen = errors.New("oren: circuit breaker open")

	// ErrNoServers indicates a directory answered with an empty server list during login.
	ErrNoServers = errors.New("oren: no servers available")

	// ErrClientClosed indicates an operation was attempted on a closed client.
	ErrClientClosed = errors.New("oren: client is closed")

	// ErrClientNotInitialized indicates a zero-value Client{} was used instead of NewClient.
	ErrClientNotInitialized = errors.New("oren: client not initialized (use NewClient)")

	// ErrRuntimeClosed indicates a client was created from an uninitialized runtime.
	ErrRuntimeClosed = errors.New("oren: runtime not initialized")

	// ErrInvalidConfiguration indicates a ClientConfig that failed validation.
	ErrInvalidConfiguration = errors.New("oren: invalid client configuration")
)

// LineError represents an error related to an operation on one line.
type LineError struct {
	Line      uint32 // Line number
	Operation string // What operation failed (e.g., "start", "send")
	Err       error  // Underlying error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("oren: line %d %s failed: %v", e.Line, e.Operation, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// NewLineError creates a LineError with the given parameters.
func NewLineError(line uint32, operation string, err error) error {
	return &LineError{
		Line:      line,
		Operation: operation,
		Err:       err,
	}
}

// ProtocolError represents a malformed or unexpected event from the transport.
type ProtocolError struct {
	Message string // Human-readable error description
	Fatal   bool   // Whether this error should terminate the session
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("oren protocol error: %s", e.Message)
}

// NewProtocolError creates a ProtocolError.
func NewProtocolError(message string, fatal bool) error {
	return &ProtocolError{
		Message: message,
		Fatal:   fatal,
	}
}

// IsTemporary returns true if the error is a transport transient that the
// engine retries internally: explicit frame loss or a timeout.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrFrameLost) || errors.Is(err, ErrTimeout) {
		return true
	}

	type temporary interface {
		Temporary() bool
	}
	var te temporary
	if errors.As(err, &te) {
		return te.Temporary()
	}

	return false
}

// IsFatal returns true if the error terminates the session it occurred on.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrClientClosed) {
		return true
	}

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Fatal
	}

	return false
}

// isCanceled reports whether err comes from a canceled or expired context.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
