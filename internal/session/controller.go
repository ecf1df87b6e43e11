package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/seacow-technology/streamline/internal/config"
	"github.com/seacow-technology/streamline/internal/connection"
	"github.com/seacow-technology/streamline/internal/lifecycle"
	"github.com/seacow-technology/streamline/internal/metrics"
	"github.com/seacow-technology/streamline/internal/protocol"
	"github.com/seacow-technology/streamline/internal/queue"
	"github.com/seacow-technology/streamline/internal/stream"
)

// ErrNoSessionKey is returned when neither the caller nor the config
// provides a session key.
var ErrNoSessionKey = errors.New("no session key configured")

// Callbacks are the collaborator surfaces the controller reports into.
// Any entry may be nil.
type Callbacks struct {
	// OnMessage receives every terminal message signal (completed or failed).
	OnMessage func(stream.Completion)

	// OnStatus receives connection state transitions with a reason.
	OnStatus func(state connection.State, reason string)

	// OnBusy reports queue drain activity, e.g. to disable input.
	OnBusy func(busy bool)

	// ViewActive gates lifecycle-triggered reconnects to the owning view.
	ViewActive func() bool
}

// userMetadata travels with every outbound user_message.
type userMetadata struct {
	ClientID string `json:"client_id"`
}

// Controller owns the client's components and their wiring.
type Controller struct {
	cfg    *config.ClientConfig
	logger *slog.Logger
	mets   *metrics.Metrics
	cb     Callbacks
	conn   *connection.Manager
	asm    *stream.Assembler
	queue  *queue.Queue
	coord  *lifecycle.Coordinator

	mu         sync.Mutex
	sessionKey string
}

// NewController builds a fully wired controller. source and mets may be nil;
// a nil source disables lifecycle reconnection.
func NewController(cfg *config.ClientConfig, source lifecycle.Source, cb Callbacks, mets *metrics.Metrics, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:    cfg,
		logger: logger,
		mets:   mets,
		cb:     cb,
	}

	c.asm = stream.NewAssembler(stream.Config{
		MaxRecords:  cfg.Stream.MaxRecords,
		StaleWindow: cfg.Stream.StaleWindow,
	}, c.onCompletion, logger.With("component", "stream"))

	connCfg := connection.DefaultConfig()
	connCfg.BaseURL = cfg.Server.URL
	connCfg.ReconnectBaseDelay = cfg.Connection.ReconnectBaseDelay
	connCfg.ReconnectMaxDelay = cfg.Connection.ReconnectMaxDelay
	connCfg.HeartbeatInterval = cfg.Connection.HeartbeatInterval
	connCfg.IdleThreshold = cfg.Connection.IdleThreshold
	connCfg.PongTimeout = cfg.Connection.PongTimeout
	connCfg.ForceReconnectCooldown = cfg.Connection.ForceReconnectCooldown
	connCfg.Transport.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	connCfg.Transport.WriteTimeout = cfg.Connection.WriteTimeout
	connCfg.Transport.BufferSize = cfg.Connection.FrameBufferSize

	c.conn = connection.NewManager(connCfg, connection.Hooks{
		OnStatus:  c.onStatus,
		OnFrame:   c.onFrame,
		OnLoss:    c.onLoss,
		OnDropped: c.onDropped,
	}, logger.With("component", "connection"))

	c.queue = queue.New(queue.Config{
		RequestTimeout: cfg.Queue.RequestTimeout,
	}, c.conn.Send, cb.OnBusy, logger.With("component", "queue"))

	if source != nil {
		c.coord = lifecycle.NewCoordinator(lifecycle.Config{
			Cooldown: cfg.Lifecycle.Cooldown,
		}, c.conn, source, cb.ViewActive, logger.With("component", "lifecycle"))
	}

	return c
}

// Start installs the lifecycle subscription. Safe to call more than once.
func (c *Controller) Start(ctx context.Context) {
	if c.coord != nil {
		c.coord.Start(ctx)
	}
}

// Connect opens the connection. An empty key falls back to the configured
// default session.
func (c *Controller) Connect(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		sessionKey = c.cfg.Server.SessionKey
	}
	if sessionKey == "" {
		return ErrNoSessionKey
	}

	c.mu.Lock()
	c.sessionKey = sessionKey
	c.mu.Unlock()

	return c.conn.Connect(ctx, sessionKey)
}

// Send enqueues one user message and returns its outcome channel: nil when
// the exchange completed, an error for send failure, timeout, or clear.
func (c *Controller) Send(content string) (<-chan error, error) {
	meta, err := json.Marshal(userMetadata{ClientID: uuid.NewString()})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	payload, err := protocol.EncodeUserMessage(content, meta)
	if err != nil {
		return nil, fmt.Errorf("encode user message: %w", err)
	}

	out := c.queue.Enqueue(payload)
	res := make(chan error, 1)
	go func() {
		err := <-out
		c.observeOutcome(err)
		res <- err
	}()
	return res, nil
}

// SwitchSession drops all queued work and reconnects under the new key. A
// stale in-flight wait must not resolve against the new session's messages.
func (c *Controller) SwitchSession(ctx context.Context, sessionKey string) error {
	c.queue.Clear()
	return c.Connect(ctx, sessionKey)
}

// Close tears the client down intentionally.
func (c *Controller) Close() error {
	c.queue.Clear()
	return c.conn.Close()
}

// Diagnostics returns the connection manager's snapshot.
func (c *Controller) Diagnostics() connection.Diagnostics {
	return c.conn.Diagnostics()
}

func (c *Controller) onFrame(frame protocol.Frame) {
	if c.mets != nil {
		c.mets.FramesTotal.WithLabelValues(frame.Kind()).Inc()
	}
	c.asm.HandleFrame(frame)
}

func (c *Controller) onCompletion(comp stream.Completion) {
	if c.mets != nil {
		if comp.Failed {
			c.mets.MessagesFailed.Inc()
		} else {
			c.mets.MessagesCompleted.Inc()
		}
	}

	c.queue.NotifyCompletion(comp.MessageID, comp.Failed)

	if c.cb.OnMessage != nil {
		c.cb.OnMessage(comp)
	}
}

func (c *Controller) onStatus(state connection.State, reason string) {
	if c.mets != nil {
		c.mets.ConnectionState.Set(float64(state))
	}
	if c.cb.OnStatus != nil {
		c.cb.OnStatus(state, reason)
	}
}

func (c *Controller) onLoss(reason string) {
	if c.mets != nil {
		c.mets.ReconnectsTotal.Inc()
		if reason == "heartbeat timeout" {
			c.mets.HeartbeatTimeouts.Inc()
		}
	}
	c.asm.Reset(reason)
}

func (c *Controller) onDropped() {
	if c.mets != nil {
		c.mets.FramesDroppedTotal.Inc()
	}
}

func (c *Controller) observeOutcome(err error) {
	if c.mets == nil {
		return
	}
	switch {
	case err == nil:
		c.mets.RequestsTotal.WithLabelValues("delivered").Inc()
	case errors.Is(err, queue.ErrTimeout):
		c.mets.RequestsTotal.WithLabelValues("timeout").Inc()
	case errors.Is(err, queue.ErrCleared):
		c.mets.RequestsTotal.WithLabelValues("cleared").Inc()
	default:
		c.mets.RequestsTotal.WithLabelValues("send_failed").Inc()
	}
}
