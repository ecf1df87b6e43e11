package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/seacow-technology/streamline/internal/protocol"
	"github.com/seacow-technology/streamline/internal/transport"
)

// Manager owns the single Transport Handle and drives its lifecycle:
// connect, heartbeat, reconnection with backoff, and teardown. All other
// components go through the Manager's methods and never touch the handle.
type Manager struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger

	// newHandle builds a Transport Handle; package tests substitute it.
	newHandle func(cfg transport.Config, logger *slog.Logger) transport.Handle

	mu         sync.Mutex
	state      State
	handle     transport.Handle
	gen        uint64 // handle generation; stale events compare against it
	sessionKey string
	url        string

	backoff     Backoff
	retryCount  int
	manualClose bool
	connecting  bool

	lastActivity time.Time
	lastForced   time.Time

	retryTimer   *time.Timer
	retryPending bool

	pongTimer   *time.Timer
	pongPending bool
}

// NewManager creates a Connection Manager. Hooks entries may be nil.
func NewManager(cfg Config, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = def.IdleThreshold
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.AliveMultiplier <= 0 {
		cfg.AliveMultiplier = def.AliveMultiplier
	}
	if cfg.ForceReconnectCooldown <= 0 {
		cfg.ForceReconnectCooldown = def.ForceReconnectCooldown
	}

	return &Manager{
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
		newHandle: transport.NewHandle,
		backoff:   NewBackoff(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay),
	}
}

// Connect establishes the connection for the given session key. A no-op when
// an attempt is already in progress. Any existing handle is detached and
// discarded first; its future events are ignored.
func (m *Manager) Connect(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return ErrNoSession
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.manualClose = false
	m.stopTimersLocked()

	// Detach the old handle before building its replacement. Bumping the
	// generation makes its pending close event a no-op.
	old := m.handle
	m.handle = nil
	m.gen++

	m.sessionKey = sessionKey
	m.url = buildURL(m.cfg.BaseURL, sessionKey)
	m.state = Connecting
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	m.notify(Connecting, "connecting")

	tcfg := m.cfg.Transport
	tcfg.URL = m.url
	h := m.newHandle(tcfg, m.logger)

	err := h.Open(ctx)

	m.mu.Lock()
	m.connecting = false

	if err != nil {
		m.state = Disconnected
		m.retryCount++
		delay := m.backoff.Next()
		manual := m.manualClose
		m.mu.Unlock()

		m.logger.Warn("connection attempt failed",
			"url", m.url,
			"error", err,
			"retry_in", delay,
		)
		m.notify(Disconnected, "open failed")
		if !manual {
			m.scheduleReconnect(delay)
		}
		return fmt.Errorf("open connection: %w", err)
	}

	m.handle = h
	gen := m.gen
	m.state = Connected
	m.backoff.Reset()
	m.retryCount = 0
	m.lastActivity = time.Now()
	m.pongPending = false
	m.mu.Unlock()

	go m.eventLoop(h, gen)
	go m.heartbeatLoop(gen)

	m.logger.Info("connected", "url", m.url)
	m.notify(Connected, "connected")

	return nil
}

// Close tears the connection down intentionally. Automatic reconnection is
// suppressed until Connect is called again.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.manualClose = true
	m.stopTimersLocked()
	h := m.handle
	m.handle = nil
	m.gen++
	m.state = Disconnected
	m.mu.Unlock()

	if h != nil {
		h.Close()
	}

	m.logger.Info("connection closed by caller")
	m.notify(Disconnected, "closed by caller")
	return nil
}

// Send writes a payload to the connection. Fails fast when not connected
// and, as a side effect, schedules a reconnect attempt without blocking.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	if m.state != Connected || m.handle == nil {
		key := m.sessionKey
		m.mu.Unlock()

		if key != "" {
			m.scheduleReconnect(0)
		}
		return ErrNotConnected
	}
	h := m.handle
	m.mu.Unlock()

	if err := h.Send(payload); err != nil {
		// The read loop will observe the broken connection and drive the
		// normal reconnect path.
		return fmt.Errorf("send: %w", err)
	}

	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()

	return nil
}

// ForceReconnect reconnects immediately, bypassing backoff. Intended for
// lifecycle triggers; repeated calls within the cooldown window coalesce
// into one attempt.
func (m *Manager) ForceReconnect(reason string) {
	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return
	}
	now := time.Now()
	if now.Sub(m.lastForced) < m.cfg.ForceReconnectCooldown {
		m.mu.Unlock()
		m.logger.Debug("forced reconnect suppressed by cooldown", "reason", reason)
		return
	}
	m.lastForced = now
	m.stopTimersLocked()
	key := m.sessionKey
	m.mu.Unlock()

	if key == "" {
		return
	}

	m.logger.Info("forced reconnect", "reason", reason)
	go m.Connect(context.Background(), key)
}

// IsAlive reports whether the connection is connected and has seen traffic
// within a generous multiple of the heartbeat interval.
func (m *Manager) IsAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Connected {
		return false
	}
	limit := time.Duration(m.cfg.AliveMultiplier) * m.cfg.HeartbeatInterval
	return time.Since(m.lastActivity) <= limit
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Diagnostics returns a read-only snapshot of the manager's state.
func (m *Manager) Diagnostics() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idle time.Duration
	if !m.lastActivity.IsZero() {
		idle = time.Since(m.lastActivity)
	}

	return Diagnostics{
		State:        m.state,
		URL:          m.url,
		BackoffDelay: m.backoff.Current,
		RetryCount:   m.retryCount,
		IdleTime:     idle,
		ManualClose:  m.manualClose,
	}
}

// eventLoop consumes one handle's frames until it dies. The generation tag
// makes events from a superseded handle no-ops.
func (m *Manager) eventLoop(h transport.Handle, gen uint64) {
	for {
		select {
		case raw, ok := <-h.Frames():
			if !ok {
				return
			}
			m.handleFrame(raw, gen)

		case err := <-h.Closed():
			m.connectionLost(gen, fmt.Sprintf("connection lost: %v", err), false)
			return
		}
	}
}

// handleFrame decodes and dispatches one inbound frame.
func (m *Manager) handleFrame(raw transport.RawFrame, gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.lastActivity = raw.ReceivedAt
	m.mu.Unlock()

	frame, err := protocol.Decode(raw.Data)
	if err != nil {
		// Transport-layer defect, not an application error.
		m.logger.Warn("malformed frame, dropping", "error", err)
		if m.hooks.OnDropped != nil {
			m.hooks.OnDropped()
		}
		return
	}

	switch frame.(type) {
	case protocol.Pong:
		m.mu.Lock()
		if gen == m.gen && m.pongPending {
			m.pongPending = false
			if m.pongTimer != nil {
				m.pongTimer.Stop()
			}
		}
		m.mu.Unlock()

	case protocol.Unknown:
		m.logger.Debug("unknown frame kind, dropping", "kind", frame.Kind())
		if m.hooks.OnDropped != nil {
			m.hooks.OnDropped()
		}

	default:
		if m.hooks.OnFrame != nil {
			m.hooks.OnFrame(frame)
		}
	}
}

// heartbeatLoop probes an idle connection and arms the pong watchdog.
func (m *Manager) heartbeatLoop(gen uint64) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if gen != m.gen || m.state != Connected || m.handle == nil {
			m.mu.Unlock()
			return
		}

		idle := time.Since(m.lastActivity)
		if idle < m.cfg.IdleThreshold || m.pongPending {
			m.mu.Unlock()
			continue
		}

		h := m.handle
		m.pongPending = true
		m.pongTimer = time.AfterFunc(m.cfg.PongTimeout, func() {
			m.pongExpired(gen)
		})
		m.mu.Unlock()

		probe, err := protocol.EncodePing(time.Now().UnixMilli())
		if err != nil {
			continue
		}
		if err := h.Send(probe); err != nil {
			m.logger.Debug("liveness probe failed", "error", err)
		}
	}
}

// pongExpired force-closes a half-open connection so the normal backoff
// path takes over; leaving it up would silently stall the request queue.
func (m *Manager) pongExpired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.pongPending {
		m.mu.Unlock()
		return
	}
	m.pongPending = false
	m.mu.Unlock()

	m.logger.Warn("no liveness reply, force-closing connection",
		"pong_timeout", m.cfg.PongTimeout,
	)
	m.connectionLost(gen, "heartbeat timeout", true)
}

// connectionLost handles an unintentional close: detach, reset collaborator
// state, and schedule the next attempt per backoff.
func (m *Manager) connectionLost(gen uint64, reason string, closeHandle bool) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	h := m.handle
	m.handle = nil
	m.state = Disconnected
	m.pongPending = false
	if m.pongTimer != nil {
		m.pongTimer.Stop()
	}
	m.retryCount++
	delay := m.backoff.Next()
	manual := m.manualClose
	m.mu.Unlock()

	if closeHandle && h != nil {
		h.Close()
	}

	m.logger.Warn("connection lost",
		"reason", reason,
		"retry_in", delay,
	)

	// Stale streaming state must not survive a reconnect.
	if m.hooks.OnLoss != nil {
		m.hooks.OnLoss(reason)
	}
	m.notify(Disconnected, reason)

	if !manual {
		m.scheduleReconnect(delay)
	}
}

// scheduleReconnect arms the retry timer unless an attempt is already
// pending or in progress.
func (m *Manager) scheduleReconnect(delay time.Duration) {
	m.mu.Lock()
	if m.manualClose || m.connecting || m.retryPending || m.sessionKey == "" {
		m.mu.Unlock()
		return
	}
	m.retryPending = true
	key := m.sessionKey
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.retryPending = false
		if m.state == Connected {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		m.Connect(context.Background(), key)
	})
	m.mu.Unlock()
}

// stopTimersLocked cancels the retry and pong timers. Must be called with
// the lock held.
func (m *Manager) stopTimersLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryPending = false
	if m.pongTimer != nil {
		m.pongTimer.Stop()
	}
	m.pongPending = false
}

func (m *Manager) notify(state State, reason string) {
	if m.hooks.OnStatus != nil {
		m.hooks.OnStatus(state, reason)
	}
}

// buildURL derives the connection target from the configured origin and the
// session key.
func buildURL(base, sessionKey string) string {
	return strings.TrimSuffix(base, "/") + "/v1/stream?session=" + url.QueryEscape(sessionKey)
}
