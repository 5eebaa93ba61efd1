package oren

import "time"

// ClientCallbacks defines callback functions for client events.
//
// Callbacks are one-way notifications: return values do not exist and nothing
// a callback does influences the engine except through further calls on the
// Client, which are allowed from inside a callback. Callbacks are invoked one
// at a time in event order; nil fields are skipped.
type ClientCallbacks struct {
	// OnPing reports a ping result. rtt is PingTimeout when the probe failed.
	OnPing func(c *Client, address string, rtt time.Duration, channel string, userCount int)
	// OnRoute reports a route trace. err is nil for complete and partial traces.
	OnRoute func(c *Client, trace RouteTrace, err error)
	// OnChoose reports the server picked from a directory list during login.
	OnChoose func(c *Client, serverName string)
	OnLogin  func(c *Client, result LoginResult)
	OnLogout func(c *Client, reason LogoutReason)
	// OnServerList reports a directory answer. An empty list with a nil err
	// means no servers are available; a non-nil err means the request failed.
	OnServerList func(c *Client, servers []ServerInfo, err error)
	OnStart      func(c *Client, line uint32, sourceName string, param []byte)
	OnMeta       func(c *Client, line uint32, format []byte)
	OnAlone      func(c *Client, alone bool)
	OnRefuse     func(c *Client, line uint32, mask RefuseMode)
	OnData       func(c *Client, line uint32, dataType DataType, data []byte)
	OnDelay      func(c *Client, line uint32, delay time.Duration)
}

// The push helpers queue a callback while c.mu is held. Arguments are bound
// at push time so the callback sees the state of the moment the event
// happened; the caller drains c.notify after unlocking.

func (c *Client) pushPing(address string, rtt time.Duration, channel string, userCount int) {
	if cb := c.callbacks.OnPing; cb != nil {
		c.notify.push("OnPing", func() { cb(c, address, rtt, channel, userCount) })
	}
}

func (c *Client) pushRoute(trace RouteTrace, err error) {
	if cb := c.callbacks.OnRoute; cb != nil {
		c.notify.push("OnRoute", func() { cb(c, trace, err) })
	}
}

func (c *Client) pushChoose(serverName string) {
	if cb := c.callbacks.OnChoose; cb != nil {
		c.notify.push("OnChoose", func() { cb(c, serverName) })
	}
}

func (c *Client) pushLogin(result LoginResult) {
	if cb := c.callbacks.OnLogin; cb != nil {
		c.notify.push("OnLogin", func() { cb(c, result) })
	}
}

func (c *Client) pushLogout(reason LogoutReason) {
	if cb := c.callbacks.OnLogout; cb != nil {
		c.notify.push("OnLogout", func() { cb(c, reason) })
	}
}

func (c *Client) pushServerList(servers []ServerInfo, err error) {
	if cb := c.callbacks.OnServerList; cb != nil {
		c.notify.push("OnServerList", func() { cb(c, servers, err) })
	}
}

func (c *Client) pushStart(line uint32, sourceName string, param []byte) {
	if cb := c.callbacks.OnStart; cb != nil {
		c.notify.push("OnStart", func() { cb(c, line, sourceName, param) })
	}
}

func (c *Client) pushMeta(line uint32, format []byte) {
	if cb := c.callbacks.OnMeta; cb != nil {
		c.notify.push("OnMeta", func() { cb(c, line, format) })
	}
}

func (c *Client) pushAlone(alone bool) {
	if cb := c.callbacks.OnAlone; cb != nil {
		c.notify.push("OnAlone", func() { cb(c, alone) })
	}
}

func (c *Client) pushRefuse(line uint32, mask RefuseMode) {
	if cb := c.callbacks.OnRefuse; cb != nil {
		c.notify.push("OnRefuse", func() { cb(c, line, mask) })
	}
}

func (c *Client) pushData(line uint32, dataType DataType, data []byte) {
	if cb := c.callbacks.OnData; cb != nil {
		c.notify.push("OnData", func() { cb(c, line, dataType, data) })
	}
}

func (c *Client) pushDelay(line uint32, delay time.Duration) {
	if cb := c.callbacks.OnDelay; cb != nil {
		c.notify.push("OnDelay", func() { cb(c, line, delay) })
	}
}
