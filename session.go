package oren

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
)

// sessionMachine is the login state of a Client. It is only touched with the
// Client mutex held.
//
// epoch increments on every Login. Work started for one attempt carries its
// epoch, and results from an older epoch are dropped. ctx lives from Login
// until the session goes Offline; canceling it abandons pending sends.
type sessionMachine struct {
	state         State
	address       Address
	channel       string
	user          string
	serverName    string
	serverVersion string

	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn

	loginTimer   *time.Timer
	loginStarted time.Time
}

// current reports whether epoch is the live attempt and the session is
// logging in or online.
func (s *sessionMachine) current(epoch uint64) bool {
	return epoch == s.epoch && (s.state == StateLoggingIn || s.state == StateOnline)
}

// Login starts an asynchronous login. The outcome is reported once through
// OnLogin; on success the state is Online before the callback runs.
//
// address is cm://host:port for a channel manager, which is asked for the
// channel's servers first, or dc://host:port / host:port for a direct login.
func (c *Client) Login(address, channel, user string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := validateName("channel", channel); err != nil {
		return err
	}
	if err := validateName("user", user); err != nil {
		return err
	}
	addr, err := ParseAddress(address)
	if err != nil {
		return oops.In("login").With("address", address).Wrap(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if state := c.session.state; state == StateLoggingIn || state == StateOnline {
		c.mu.Unlock()
		return fmt.Errorf("%w: login while %s", ErrInvalidState, state)
	}

	s := &c.session
	s.epoch++
	epoch := s.epoch
	s.address = addr
	s.channel = channel
	s.user = user
	s.serverName = ""
	s.serverVersion = ""
	s.ctx, s.cancel = context.WithCancel(c.ctx)
	s.loginStarted = time.Now()
	s.loginTimer = time.AfterFunc(c.config.LoginTimeout, func() {
		c.finishLogin(epoch, LoginTimeout)
	})
	c.setStateLocked(StateLoggingIn)
	ctx := s.ctx
	c.spawn(func() { c.runLogin(ctx, epoch, addr, channel, user) })
	c.mu.Unlock()

	Info("Logging in to channel %s as %s via %s", channel, user, addr)
	return nil
}

// runLogin resolves the server, dials it and sends the login request. The
// reply arrives as a LoginReply event through the connection pump.
func (c *Client) runLogin(ctx context.Context, epoch uint64, addr Address, channel, user string) {
	loginCtx, cancel := context.WithTimeout(ctx, c.config.LoginTimeout)
	defer cancel()

	target := addr.HostPort()
	if addr.Mode == ModeDirectory {
		server, ok := c.resolveLoginServer(loginCtx, epoch, addr.HostPort(), channel)
		if !ok {
			return
		}
		target = server
	}

	conn, err := c.config.Dialer.Dial(loginCtx, target)
	if err != nil {
		Warning("Failed to dial %s: %v", target, err)
		c.finishLogin(epoch, LoginTimeout)
		return
	}
	if !c.attachConn(epoch, conn) {
		Debug("Login attempt %d superseded, closing connection to %s", epoch, target)
		_ = conn.Close()
		return
	}

	req, err := buildLoginRequest(c.config.Signature, channel, user)
	if err != nil {
		Error("Failed to build login request: %v", err)
		c.finishLogin(epoch, LoginNoSignature)
		return
	}
	if err := conn.Login(loginCtx, req); err != nil {
		Warning("Login request to %s failed: %v", target, err)
		result := LoginUnknown
		if isCanceled(err) || IsTemporary(err) {
			result = LoginTimeout
		}
		c.finishLogin(epoch, result)
	}
}

// resolveLoginServer asks the channel manager for servers and picks one. It
// reports OnServerList and OnChoose, or finishes the login on failure.
func (c *Client) resolveLoginServer(ctx context.Context, epoch uint64, cmAddress, channel string) (string, bool) {
	servers, err := c.discovery.servers(ctx, cmAddress, channel)

	c.mu.Lock()
	if epoch != c.session.epoch || c.session.state != StateLoggingIn {
		c.mu.Unlock()
		return "", false
	}
	if err != nil {
		Warning("Channel manager %s failed: %v", cmAddress, err)
		c.pushServerList(nil, err)
		conn := c.finishLoginLocked(epoch, LoginErrCMRequest)
		c.mu.Unlock()
		c.closeConn(conn)
		c.notify.drain()
		return "", false
	}
	c.pushServerList(servers, nil)
	if len(servers) == 0 {
		Warning("Channel manager %s: %v for channel %s", cmAddress, ErrNoServers, channel)
		conn := c.finishLoginLocked(epoch, LoginErrAddress)
		c.mu.Unlock()
		c.closeConn(conn)
		c.notify.drain()
		return "", false
	}

	choice := c.selectServer(servers)
	if _, perr := parseServerAddress(choice.Address); perr != nil {
		Warning("Chosen server %q has a bad address: %v", choice.Name, perr)
		conn := c.finishLoginLocked(epoch, LoginErrAddress)
		c.mu.Unlock()
		c.closeConn(conn)
		c.notify.drain()
		return "", false
	}
	Debug("Chose server %s (%s) from %d candidates", choice.Name, choice.Address, len(servers))
	c.pushChoose(choice.Name)
	c.mu.Unlock()
	c.notify.drain()
	return choice.Address, true
}

func (c *Client) selectServer(servers []ServerInfo) ServerInfo {
	if c.config.SelectServer != nil {
		return c.config.SelectServer(servers)
	}
	return servers[0]
}

// attachConn installs conn as the session connection and starts its event
// pump, unless the attempt was superseded meanwhile.
func (c *Client) attachConn(epoch uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.session.current(epoch) || c.session.conn != nil {
		return false
	}
	c.session.conn = conn
	c.spawn(func() { c.pump(epoch, conn) })
	return true
}

// pump forwards connection events until the transport closes the channel,
// which is reported as a disconnect.
func (c *Client) pump(epoch uint64, conn Conn) {
	events := conn.Events()
	if events == nil {
		return
	}
	for ev := range events {
		c.handleEvent(epoch, ev)
	}
	c.handleEvent(epoch, Disconnected{})
}

// finishLogin ends a login attempt with a failure result.
func (c *Client) finishLogin(epoch uint64, result LoginResult) {
	c.mu.Lock()
	conn := c.finishLoginLocked(epoch, result)
	c.mu.Unlock()
	c.closeConn(conn)
	c.notify.drain()
}

// finishLoginLocked moves a logging-in session of the given epoch Offline and
// reports result. It returns the connection to close after unlocking.
func (c *Client) finishLoginLocked(epoch uint64, result LoginResult) Conn {
	if epoch != c.session.epoch || c.session.state != StateLoggingIn {
		return nil
	}
	Warning("Login to channel %s failed: %s", c.session.channel, result)
	c.trackError("login")
	conn := c.goOfflineLocked()
	c.pushLogin(result)
	return conn
}

// completeLoginLocked handles a LoginReply for a logging-in session.
func (c *Client) completeLoginLocked(reply LoginReply) Conn {
	s := &c.session
	result := reply.Result
	if result == LoginSuccess {
		result = c.checkServerLocked(reply)
	}
	if result != LoginSuccess {
		return c.finishLoginLocked(s.epoch, result)
	}

	if s.loginTimer != nil {
		s.loginTimer.Stop()
		s.loginTimer = nil
	}
	s.serverName = reply.ServerName
	s.serverVersion = reply.ServerVersion
	c.setStateLocked(StateOnline)
	if c.metrics != nil {
		c.metrics.RecordLoginLatency(time.Since(s.loginStarted))
	}
	Info("Online in channel %s on %s (version %s)", s.channel, s.serverName, s.serverVersion)
	c.pushLogin(LoginSuccess)
	return nil
}

// checkServerLocked validates the identity a server reports on success.
func (c *Client) checkServerLocked(reply LoginReply) LoginResult {
	switch {
	case reply.ServerName == "":
		return LoginNoSvrName
	case reply.ServerVersion == "":
		return LoginNoSvrVer
	case !versionInRange(reply.ServerVersion, c.config.MinServerVersion, c.config.MaxServerVersion):
		Warning("Server version %s outside [%s, %s]", reply.ServerVersion,
			c.config.MinServerVersion, c.config.MaxServerVersion)
		return LoginErrSvrVer
	}
	return LoginSuccess
}

// Logout ends the session. From LoggingIn or Online it moves Offline, reports
// OnLogout(LogoutNormal) and tells the server; in any other state it is a
// no-op, so a second Logout produces no second notification.
func (c *Client) Logout() error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	c.mu.Lock()
	if state := c.session.state; state != StateLoggingIn && state != StateOnline {
		c.mu.Unlock()
		return nil
	}
	Info("Logging out of channel %s", c.session.channel)
	conn := c.goOfflineLocked()
	c.pushLogout(LogoutNormal)
	c.mu.Unlock()

	c.sendLogout(conn)
	c.notify.drain()
	return nil
}

// sendLogout tells the server the session is over and closes the connection.
func (c *Client) sendLogout(conn Conn) {
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
	defer cancel()
	if err := conn.Logout(ctx); err != nil {
		Warning("Logout request failed: %v", err)
	}
	c.closeConn(conn)
}

// terminateLocked handles a server or transport initiated end of session.
func (c *Client) terminateLocked(reason LogoutReason) Conn {
	if state := c.session.state; state != StateLoggingIn && state != StateOnline {
		return nil
	}
	Warning("Session in channel %s terminated: %s", c.session.channel, reason)
	c.trackError("logout")
	conn := c.goOfflineLocked()
	c.pushLogout(reason)
	return conn
}

// goOfflineLocked moves the session Offline and tears down everything that
// belongs to it: the login timer, pending sends, lines and discovery requests.
// It returns the connection for the caller to close after unlocking.
func (c *Client) goOfflineLocked() Conn {
	s := &c.session
	if s.loginTimer != nil {
		s.loginTimer.Stop()
		s.loginTimer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil

	if n := c.lines.destroyAll(); n > 0 {
		Debug("Destroyed %d lines", n)
	}
	c.discovery.cancelAll()
	c.setStateLocked(StateOffline)
	return conn
}

func (c *Client) closeConn(conn Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		Debug("Closing connection: %v", err)
	}
}
