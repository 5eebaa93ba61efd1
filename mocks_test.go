package oren

// mocks_test.go - Shared fakes and helpers used across the client tests.

import (
	"context"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. Login answers with loginReply when set.
// Send consumes sendResults in order and then returns sendDefault.
type fakeConn struct {
	mu     sync.Mutex
	events chan Event
	closed bool

	loginReply  *LoginReply
	loginErr    error
	sendResults []error
	sendDefault error

	logins  []LoginRequest
	frames  []Frame
	starts  []uint32
	metas   []uint32
	refuses []RefuseMode
	logouts int
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan Event, 256)}
}

func (f *fakeConn) emit(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- ev
	}
}

func (f *fakeConn) Login(ctx context.Context, req LoginRequest) error {
	f.mu.Lock()
	f.logins = append(f.logins, req)
	reply, err := f.loginReply, f.loginErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if reply != nil {
		f.emit(*reply)
	}
	return nil
}

func (f *fakeConn) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return nil
}

func (f *fakeConn) Start(ctx context.Context, line uint32, param []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, line)
	return nil
}

func (f *fakeConn) Meta(ctx context.Context, line uint32, format []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metas = append(f.metas, line)
	return nil
}

func (f *fakeConn) Refuse(ctx context.Context, line uint32, mask RefuseMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refuses = append(f.refuses, mask)
	return nil
}

func (f *fakeConn) Send(ctx context.Context, frame Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	if len(f.sendResults) > 0 {
		err := f.sendResults[0]
		f.sendResults = f.sendResults[1:]
		return err
	}
	return f.sendDefault
}

func (f *fakeConn) Events() <-chan Event { return f.events }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeDialer hands out connections built by newConn.
type fakeDialer struct {
	mu      sync.Mutex
	newConn func() *fakeConn
	err     error
	dialed  []string
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, address string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, address)
	if d.err != nil {
		return nil, d.err
	}
	conn := d.newConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) addresses() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// fakeDirectory answers discovery requests. Blocking requests wait for their
// context and return its error.
type fakeDirectory struct {
	mu          sync.Mutex
	servers     []ServerInfo
	serversErr  error
	serverCalls int
	pingReply   PingReply
	pingErr     error
	pingBlock   bool
	hops        []RouteInfo
	traceBlock  bool
}

func (d *fakeDirectory) Ping(ctx context.Context, address, channel string) (PingReply, error) {
	d.mu.Lock()
	reply, err, block := d.pingReply, d.pingErr, d.pingBlock
	d.mu.Unlock()
	if block {
		<-ctx.Done()
		return PingReply{}, ctx.Err()
	}
	return reply, err
}

func (d *fakeDirectory) Servers(ctx context.Context, cmAddress, channel string) ([]ServerInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.serverCalls++
	if d.serversErr != nil {
		return nil, d.serversErr
	}
	return append([]ServerInfo(nil), d.servers...), nil
}

func (d *fakeDirectory) TraceRoute(ctx context.Context, target string, hop func(RouteInfo)) error {
	d.mu.Lock()
	hops, block := d.hops, d.traceBlock
	d.mu.Unlock()
	for _, h := range hops {
		hop(h)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type pingResult struct {
	address   string
	rtt       time.Duration
	channel   string
	userCount int
}

type serverListResult struct {
	servers []ServerInfo
	err     error
}

type routeResult struct {
	trace RouteTrace
	err   error
}

type startResult struct {
	line       uint32
	sourceName string
	param      []byte
}

type dataResult struct {
	line     uint32
	dataType DataType
	data     []byte
}

// recorder captures callbacks on buffered channels.
type recorder struct {
	logins      chan LoginResult
	logouts     chan LogoutReason
	pings       chan pingResult
	serverLists chan serverListResult
	routes      chan routeResult
	chooses     chan string
	starts      chan startResult
	metas       chan []byte
	refuses     chan RefuseMode
	data        chan dataResult
	alones      chan bool
	delays      chan time.Duration

	// onLogin and onLogout run inside their callbacks when set.
	onLogin  func(c *Client, result LoginResult)
	onLogout func(c *Client, reason LogoutReason)
}

func newRecorder() *recorder {
	return &recorder{
		logins:      make(chan LoginResult, 64),
		logouts:     make(chan LogoutReason, 64),
		pings:       make(chan pingResult, 64),
		serverLists: make(chan serverListResult, 64),
		routes:      make(chan routeResult, 64),
		chooses:     make(chan string, 64),
		starts:      make(chan startResult, 64),
		metas:       make(chan []byte, 64),
		refuses:     make(chan RefuseMode, 64),
		data:        make(chan dataResult, 256),
		alones:      make(chan bool, 64),
		delays:      make(chan time.Duration, 64),
	}
}

func (r *recorder) callbacks() *ClientCallbacks {
	return &ClientCallbacks{
		OnPing: func(c *Client, address string, rtt time.Duration, channel string, userCount int) {
			r.pings <- pingResult{address, rtt, channel, userCount}
		},
		OnRoute: func(c *Client, trace RouteTrace, err error) {
			r.routes <- routeResult{trace, err}
		},
		OnChoose: func(c *Client, serverName string) { r.chooses <- serverName },
		OnLogin: func(c *Client, result LoginResult) {
			if r.onLogin != nil {
				r.onLogin(c, result)
			}
			r.logins <- result
		},
		OnLogout: func(c *Client, reason LogoutReason) {
			if r.onLogout != nil {
				r.onLogout(c, reason)
			}
			r.logouts <- reason
		},
		OnServerList: func(c *Client, servers []ServerInfo, err error) {
			r.serverLists <- serverListResult{servers, err}
		},
		OnStart: func(c *Client, line uint32, sourceName string, param []byte) {
			r.starts <- startResult{line, sourceName, param}
		},
		OnMeta:   func(c *Client, line uint32, format []byte) { r.metas <- format },
		OnAlone:  func(c *Client, alone bool) { r.alones <- alone },
		OnRefuse: func(c *Client, line uint32, mask RefuseMode) { r.refuses <- mask },
		OnData: func(c *Client, line uint32, dataType DataType, data []byte) {
			r.data <- dataResult{line, dataType, data}
		},
		OnDelay: func(c *Client, line uint32, delay time.Duration) { r.delays <- delay },
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
		var zero T
		return zero
	}
}

func expectNone[T any](t *testing.T, ch <-chan T, what string, d time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected %s: %v", what, v)
	case <-time.After(d):
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting until %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// testConfig returns a fast configuration around the given fakes.
func testConfig(dialer Dialer, directory Directory) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.LoginTimeout = time.Second
	cfg.RequestTimeout = time.Second
	cfg.PingTimeout = 500 * time.Millisecond
	cfg.TraceTimeout = 500 * time.Millisecond
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.Dialer = dialer
	cfg.Directory = directory
	return cfg
}

func testRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := Initialize(t.TempDir(), "", ERROR, 0)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	t.Cleanup(func() { rt.Uninitialize() })
	return rt
}

// successConn builds connections that accept the login as srv1 version 2.0.
func successConn() *fakeConn {
	conn := newFakeConn()
	conn.loginReply = &LoginReply{Result: LoginSuccess, ServerName: "srv1", ServerVersion: "2.0"}
	return conn
}

type testEnv struct {
	client    *Client
	rec       *recorder
	dialer    *fakeDialer
	directory *fakeDirectory
	metrics   *InMemoryMetrics
}

func newTestEnv(t *testing.T, configure func(cfg *ClientConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		rec:       newRecorder(),
		dialer:    &fakeDialer{newConn: successConn},
		directory: &fakeDirectory{},
		metrics:   NewInMemoryMetrics(),
	}
	cfg := testConfig(env.dialer, env.directory)
	cfg.Metrics = env.metrics
	if configure != nil {
		configure(&cfg)
	}
	client, err := NewClient(testRuntime(t), cfg, env.rec.callbacks())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	env.client = client
	t.Cleanup(func() { client.Close() })
	return env
}

// login logs in directly and waits for success.
func (env *testEnv) login(t *testing.T) *fakeConn {
	t.Helper()
	if err := env.client.Login("127.0.0.1:9001", "room", "alice"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result := waitFor(t, env.rec.logins, "OnLogin"); result != LoginSuccess {
		t.Fatalf("OnLogin result = %v, want %v", result, LoginSuccess)
	}
	return env.dialer.last()
}

// startLine starts a line and feeds the peer's start echo.
func (env *testEnv) startLine(t *testing.T, line uint32) {
	t.Helper()
	if err := env.client.SendStart(line, []byte("param")); err != nil {
		t.Fatalf("SendStart(%d) error = %v", line, err)
	}
	env.client.HandleEvent(StartFrame{Line: line, SourceName: "peer", Param: []byte("param")})
	waitFor(t, env.rec.starts, "OnStart")
}
