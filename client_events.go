package oren

import "fmt"

// HandleEvent feeds an inbound transport event into the current session, as
// if it had arrived through the connection's event channel. Transports that
// push events instead of exposing Conn.Events use this entry point.
func (c *Client) HandleEvent(ev Event) {
	if c.ensureInitialized() != nil || ev == nil {
		return
	}
	c.mu.Lock()
	epoch := c.session.epoch
	c.mu.Unlock()
	c.handleEvent(epoch, ev)
}

// handleEvent applies one event of the given session epoch. Events of an
// older epoch belong to a finished session and are dropped.
func (c *Client) handleEvent(epoch uint64, ev Event) {
	c.mu.Lock()
	if epoch != c.session.epoch {
		c.mu.Unlock()
		Debug("Dropping stale %s event from session %d", ev.eventName(), epoch)
		return
	}

	var conn Conn
	switch e := ev.(type) {
	case LoginReply:
		if c.session.state != StateLoggingIn {
			Warning("Unexpected login reply while %s", c.session.state)
			break
		}
		conn = c.completeLoginLocked(e)
	case SessionClosed:
		reason := e.Reason
		if reason != LogoutKickout && reason != LogoutFrozen {
			reason = LogoutUnknown
		}
		conn = c.terminateLocked(reason)
	case Disconnected:
		switch {
		case IsFatal(e.Err):
			Error("Connection failed: %v", e.Err)
		case e.Err != nil:
			Warning("Connection lost: %v", e.Err)
		}
		conn = c.terminateLocked(LogoutDisconnect)
	default:
		if c.session.state != StateOnline {
			Debug("Dropping %s event while %s", ev.eventName(), c.session.state)
			break
		}
		c.handleSessionEventLocked(ev)
	}
	c.mu.Unlock()

	c.closeConn(conn)
	c.notify.drain()
}

// handleSessionEventLocked applies events that are only meaningful online.
func (c *Client) handleSessionEventLocked(ev Event) {
	switch e := ev.(type) {
	case StartFrame:
		if validateLine(e.Line) != nil {
			c.protocolViolationLocked("start on line %d", e.Line)
			return
		}
		l := c.lines.ensure(e.Line)
		l.sourceName = e.SourceName
		if l.startParam == nil {
			l.startParam = cloneBytes(e.Param)
		}
		Debug("Line %d started by %s", e.Line, e.SourceName)
		c.pushStart(e.Line, e.SourceName, cloneBytes(e.Param))

	case MetaFrame:
		l, ok := c.lines.get(e.Line)
		if !ok {
			c.protocolViolationLocked("meta on unknown line %d", e.Line)
			return
		}
		l.format = cloneBytes(e.Format)
		c.pushMeta(e.Line, cloneBytes(e.Format))

	case RefuseFrame:
		l, ok := c.lines.get(e.Line)
		if !ok {
			c.protocolViolationLocked("refuse on unknown line %d", e.Line)
			return
		}
		l.remoteRefused = e.Mask
		Debug("Peer refuses %#x on line %d", uint32(e.Mask), e.Line)
		c.pushRefuse(e.Line, e.Mask)

	case DataFrame:
		c.receiveDataLocked(e)

	case DelayReport:
		c.pushDelay(e.Line, e.Delay)

	case AloneNotice:
		c.pushAlone(e.Alone)

	default:
		Warning("Unhandled event %s", ev.eventName())
	}
}

// receiveDataLocked counts an inbound data frame and forwards it unless the
// type is refused locally or the transport marked it as a duplicate.
func (c *Client) receiveDataLocked(f DataFrame) {
	l, ok := c.lines.get(f.Line)
	if !ok {
		c.protocolViolationLocked("data on unknown line %d", f.Line)
		return
	}
	if l.refused.Refuses(f.Type) {
		l.discarded++
		return
	}
	if !c.stats.recordArrival(f) {
		Debug("Dropping duplicate %s frame on line %d", f.Type, f.Line)
		return
	}
	if c.metrics != nil {
		c.metrics.IncrementFrameReceived(f.Type)
		c.metrics.AddBytesReceived(uint64(len(f.Payload)))
	}
	c.pushData(f.Line, f.Type, cloneBytes(f.Payload))
}

func (c *Client) protocolViolationLocked(format string, args ...interface{}) {
	Warning("%v", NewProtocolError(fmt.Sprintf(format, args...), false))
	c.trackError("protocol")
}
