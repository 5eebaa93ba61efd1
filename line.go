package oren

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// lineChannel is the per-line state of a session. Like statsTracker it is
// only touched with the owning Client's mutex held.
type lineChannel struct {
	line       uint32
	startParam []byte
	sourceName string // set by an inbound start
	format     []byte // nil until a meta frame was sent or received

	refused       RefuseMode // inbound types dropped locally
	remoteRefused RefuseMode // outbound types the peer refuses

	// Bookkeeping for the most recent SendData on this line.
	lastSend     *Delivery
	pendingRetry int // retransmissions performed for lastSend

	discarded uint64 // inbound frames dropped because of refused
}

func newLineChannel(line uint32) *lineChannel {
	return &lineChannel{line: line}
}

// reset clears a line for a new start handshake, keeping nothing from the previous one.
func (l *lineChannel) reset(param []byte) {
	*l = lineChannel{line: l.line, startParam: cloneBytes(param)}
}

// lineTable holds the lines of one session, keyed by line number.
type lineTable struct {
	lines map[uint32]*lineChannel
}

func newLineTable() lineTable {
	return lineTable{lines: make(map[uint32]*lineChannel)}
}

func (t *lineTable) get(line uint32) (*lineChannel, bool) {
	l, ok := t.lines[line]
	return l, ok
}

// ensure returns the line, creating it if needed.
func (t *lineTable) ensure(line uint32) *lineChannel {
	if l, ok := t.lines[line]; ok {
		return l
	}
	l := newLineChannel(line)
	t.lines[line] = l
	return l
}

// destroyAll destroys every line and returns how many there were.
func (t *lineTable) destroyAll() int {
	n := len(t.lines)
	clear(t.lines)
	return n
}

// numbers returns the line numbers in ascending order.
func (t *lineTable) numbers() []uint32 {
	keys := lo.Keys(t.lines)
	slices.Sort(keys)
	return keys
}

func (t *lineTable) len() int {
	return len(t.lines)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// SendStart starts (or restarts) a line with the given parameter block. The
// line is created if needed; a restart resets its format and refusal state.
// The peer answers with OnStart.
func (c *Client) SendStart(line uint32, param []byte) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := validateLine(line); err != nil {
		return err
	}
	if len(param) > OREN_MAX_PARAM_SIZE {
		return NewLineError(line, "start",
			fmt.Errorf("%w: param of %d bytes exceeds %d", ErrInvalidArgument, len(param), OREN_MAX_PARAM_SIZE))
	}

	c.mu.Lock()
	conn, sessionCtx, err := c.onlineConnLocked()
	if err != nil {
		c.mu.Unlock()
		return NewLineError(line, "start", err)
	}
	c.lines.ensure(line).reset(param)
	c.mu.Unlock()

	ctx, cancel := c.requestContext(sessionCtx)
	defer cancel()
	if err := conn.Start(ctx, line, cloneBytes(param)); err != nil {
		return NewLineError(line, "start", err)
	}
	Debug("Sent start on line %d (%d byte param)", line, len(param))
	return nil
}

// SendMeta sends format metadata on a started line.
func (c *Client) SendMeta(line uint32, format []byte) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := validateLine(line); err != nil {
		return err
	}
	if len(format) > OREN_MAX_PARAM_SIZE {
		return NewLineError(line, "meta",
			fmt.Errorf("%w: format of %d bytes exceeds %d", ErrInvalidArgument, len(format), OREN_MAX_PARAM_SIZE))
	}

	c.mu.Lock()
	conn, sessionCtx, err := c.onlineConnLocked()
	if err != nil {
		c.mu.Unlock()
		return NewLineError(line, "meta", err)
	}
	l, ok := c.lines.get(line)
	if !ok {
		c.mu.Unlock()
		return NewLineError(line, "meta", ErrLineUnknown)
	}
	l.format = cloneBytes(format)
	c.mu.Unlock()

	ctx, cancel := c.requestContext(sessionCtx)
	defer cancel()
	if err := conn.Meta(ctx, line, cloneBytes(format)); err != nil {
		return NewLineError(line, "meta", err)
	}
	return nil
}

// SendRefuse sets the data types this client refuses on a line and tells
// the peer. Inbound frames of a refused type are dropped without reaching
// OnData and without being counted in Statistics.
func (c *Client) SendRefuse(line uint32, mask RefuseMode) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := validateLine(line); err != nil {
		return err
	}

	c.mu.Lock()
	conn, sessionCtx, err := c.onlineConnLocked()
	if err != nil {
		c.mu.Unlock()
		return NewLineError(line, "refuse", err)
	}
	l, ok := c.lines.get(line)
	if !ok {
		c.mu.Unlock()
		return NewLineError(line, "refuse", ErrLineUnknown)
	}
	l.refused = mask
	c.mu.Unlock()

	ctx, cancel := c.requestContext(sessionCtx)
	defer cancel()
	if err := conn.Refuse(ctx, line, mask); err != nil {
		return NewLineError(line, "refuse", err)
	}
	Debug("Refusing %#x on line %d", uint32(mask), line)
	return nil
}
