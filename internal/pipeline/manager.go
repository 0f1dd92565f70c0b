// Package pipeline owns the WebSocket connection to the gesture pipeline:
// dialing, keepalive, reconnect backoff, and routing of inbound messages to
// the shadow state and the consumer feed.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/wire"
	"nhooyr.io/websocket"
)

// ErrNotConnected rejects sends while no connection is established. Consumer
// operations surface it verbatim, so the text is user-facing.
var ErrNotConnected = errors.New("pipeline not connected")

// Conn is the transport the manager drives. The production implementation
// wraps a websocket connection; tests substitute an in-memory pipe.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens pipeline connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer is the production Dialer.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(8 << 20) // config snapshots embed recorded gesture samples
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.CloseNow()
}

// Manager maintains exactly one pipeline connection. Connect is idempotent:
// the retry timer, the liveness sweep, and user reconnects all funnel into
// it, and only the first caller in a disconnected state actually dials.
//
// Wire the exported fields before Run; they are read-only afterwards.
type Manager struct {
	// Dialer defaults to WSDialer.
	Dialer Dialer
	// Handle receives every well-formed inbound message, in arrival order,
	// from the single read goroutine.
	Handle func(wire.Message)
	// OnState observes connection state transitions.
	OnState func(types.ConnState)

	cfg   Config
	stats *types.Stats

	mu          sync.Mutex
	baseCtx     context.Context
	state       types.ConnState
	conn        Conn
	gen         int // bumps on every dial and teardown; stale goroutines check it
	retry       *time.Timer
	userStopped bool
	lastInbound time.Time
}

// New builds a manager in the disconnected state. stats is shared with the
// router; the manager owns the message counter and every transport and
// protocol error.
func New(cfg Config, stats *types.Stats) *Manager {
	return &Manager{
		cfg:     cfg.withDefaults(),
		stats:   stats,
		baseCtx: context.Background(),
		state:   types.StateDisconnected,
	}
}

// State returns the current connection state.
func (m *Manager) State() types.ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stopped reports whether the user explicitly disconnected. While set, no
// automatic reconnect runs.
func (m *Manager) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userStopped
}

// URL returns the configured pipeline endpoint.
func (m *Manager) URL() string {
	return m.cfg.URL
}

// Run drives the keepalive and liveness tickers and performs the initial
// connect. It blocks until ctx is done, then tears the connection down.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()

	m.Connect()

	keepalive := time.NewTicker(m.cfg.KeepaliveEvery)
	defer keepalive.Stop()
	liveness := time.NewTicker(m.cfg.LivenessEvery)
	defer liveness.Stop()

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return nil
		case <-keepalive.C:
			if m.State() == types.StateConnected {
				if err := m.Send(wire.Ping()); err != nil {
					applog.Error("pipeline.ping", err)
				}
			}
		case <-liveness.C:
			m.sweep()
		}
	}
}

// Connect starts a dial unless one is already running, a connection is
// established, or the user has disconnected. Safe to call from anywhere.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.userStopped || m.state != types.StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = types.StateConnecting
	m.gen++
	gen := m.gen
	ctx := m.baseCtx
	m.mu.Unlock()

	applog.Info("pipeline.connecting", "url", m.cfg.URL)
	m.notifyState(types.StateConnecting)
	go m.dial(ctx, gen)
}

// Disconnect tears the connection down and suppresses automatic reconnects
// until Reconnect. The user's stop always wins over in-flight dials.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.userStopped = true
	m.gen++
	conn := m.conn
	m.conn = nil
	was := m.state
	m.state = types.StateDisconnected
	m.cancelRetryLocked()
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	applog.Info("pipeline.user_disconnect")
	if was != types.StateDisconnected {
		m.notifyState(types.StateDisconnected)
	}
}

// Reconnect clears the user-stop flag and connects.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	m.userStopped = false
	m.mu.Unlock()
	m.Connect()
}

// Send writes one request on the established connection.
func (m *Manager) Send(req wire.Request) error {
	m.mu.Lock()
	conn := m.conn
	ctx := m.baseCtx
	m.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	data, err := req.Encode()
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, m.cfg.WriteTimeout)
	defer cancel()
	applog.Info("pipeline.send", "type", string(req.Type))
	if err := conn.Write(wctx, data); err != nil {
		m.stats.AddError()
		return err
	}
	return nil
}

func (m *Manager) dial(ctx context.Context, gen int) {
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, err := m.transport().Dial(dctx, m.cfg.URL)
	cancel()

	if err != nil {
		applog.Error("pipeline.dial", err, "url", m.cfg.URL)
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.state = types.StateDisconnected
		if !m.userStopped && ctx.Err() == nil {
			m.stats.AddError()
			m.scheduleRetryLocked(m.cfg.RetryAfterFail)
		}
		m.mu.Unlock()
		m.notifyState(types.StateDisconnected)
		return
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state = types.StateConnected
	m.lastInbound = time.Now()
	m.cancelRetryLocked()
	m.mu.Unlock()

	m.stats.ResetErrors()
	applog.Info("pipeline.connected", "url", m.cfg.URL)
	m.notifyState(types.StateConnected)

	// The pipeline pushes a snapshot on connect; requesting one too covers
	// servers restored from an older session.
	if err := m.Send(wire.GetConfig()); err != nil {
		applog.Error("pipeline.get_config", err)
	}

	m.readLoop(ctx, conn, gen)
}

// readLoop is the only goroutine reading the connection, which keeps
// delivery order identical to arrival order.
func (m *Manager) readLoop(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.connClosed(conn, gen, err)
			return
		}

		m.mu.Lock()
		m.lastInbound = time.Now()
		m.mu.Unlock()

		msg, perr := wire.Parse(data)
		if perr != nil {
			m.stats.AddError()
			applog.Error("pipeline.recv", perr)
			continue
		}
		m.stats.AddMessage()
		if m.Handle != nil {
			m.Handle(msg)
		}
	}
}

func (m *Manager) connClosed(conn Conn, gen int, err error) {
	conn.Close()

	m.mu.Lock()
	if m.gen != gen {
		// Superseded by Disconnect or a newer dial; that path already
		// settled the state.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = types.StateDisconnected
	retry := !m.userStopped && m.baseCtx.Err() == nil
	if retry {
		// A close the user did not ask for is a transport failure, whether
		// the pipeline dropped us or went silent past the liveness window.
		m.stats.AddError()
		m.scheduleRetryLocked(m.cfg.RetryAfterClose)
	}
	m.mu.Unlock()

	applog.Info("pipeline.closed", "reason", err.Error(), "retry", retry)
	m.notifyState(types.StateDisconnected)
}

// sweep closes a connection that has gone silent past the liveness window
// and redials a dropped one. Both paths go through the idempotent Connect,
// so a pending retry timer and a sweep never race into two dials.
func (m *Manager) sweep() {
	m.mu.Lock()
	state := m.state
	idle := time.Since(m.lastInbound)
	conn := m.conn
	m.mu.Unlock()

	switch {
	case state == types.StateConnected && idle > m.cfg.LivenessEvery:
		applog.Info("pipeline.stale", "idle", idle.Truncate(time.Millisecond).String())
		if conn != nil {
			conn.Close() // the read loop notices and schedules the retry
		}
	case state == types.StateDisconnected:
		m.Connect()
	}
}

func (m *Manager) teardown() {
	m.mu.Lock()
	m.gen++
	conn := m.conn
	m.conn = nil
	m.state = types.StateDisconnected
	m.cancelRetryLocked()
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	applog.Info("pipeline.stopped")
}

// scheduleRetryLocked arms the reconnect timer, replacing any pending one.
// At most one timer exists at a time; its Connect call re-checks state, so
// a stale fire is harmless.
func (m *Manager) scheduleRetryLocked(after time.Duration) {
	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = time.AfterFunc(after, func() {
		m.mu.Lock()
		m.retry = nil
		m.mu.Unlock()
		m.Connect()
	})
	applog.Info("pipeline.retry_scheduled", "after", after.String())
}

func (m *Manager) cancelRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func (m *Manager) transport() Dialer {
	if m.Dialer != nil {
		return m.Dialer
	}
	return WSDialer{}
}

func (m *Manager) notifyState(s types.ConnState) {
	if m.OnState != nil {
		m.OnState(s)
	}
}
