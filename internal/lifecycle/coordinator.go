package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Signal is one host-environment lifecycle event.
type Signal int

const (
	// PageResumed fires when the page revives from a frozen (not destroyed)
	// state.
	PageResumed Signal = iota
	// BecameVisible fires when visibility transitions to foreground.
	BecameVisible
	// RegainedFocus fires when the application regains focus.
	RegainedFocus
)

func (s Signal) String() string {
	switch s {
	case PageResumed:
		return "page resumed"
	case BecameVisible:
		return "became visible"
	case RegainedFocus:
		return "regained focus"
	default:
		return "unknown"
	}
}

// Reconnector is the slice of the connection manager the coordinator needs.
type Reconnector interface {
	IsAlive() bool
	ForceReconnect(reason string)
}

// Source delivers lifecycle signals from the hosting environment.
type Source interface {
	Signals() <-chan Signal
}

// Config configures the Coordinator.
type Config struct {
	Cooldown time.Duration // Minimum spacing between triggered reconnects
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Cooldown: 2 * time.Second}
}

// Coordinator reconnects on lifecycle signals. Start installs the
// subscription exactly once per coordinator lifetime.
type Coordinator struct {
	cfg        Config
	conn       Reconnector
	source     Source
	viewActive func() bool
	logger     *slog.Logger

	limiter *rate.Limiter
	once    sync.Once
}

// NewCoordinator creates a Lifecycle Coordinator. viewActive may be nil,
// in which case every signal is considered relevant.
func NewCoordinator(cfg Config, conn Reconnector, source Source, viewActive func() bool, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}

	return &Coordinator{
		cfg:        cfg,
		conn:       conn,
		source:     source,
		viewActive: viewActive,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(cfg.Cooldown), 1),
	}
}

// Start subscribes to the signal source and handles signals until ctx is
// canceled. Repeated calls are no-ops; the subscription is installed once.
func (c *Coordinator) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.run(ctx)
	})
}

func (c *Coordinator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-c.source.Signals():
			if !ok {
				return
			}
			c.handle(sig)
		}
	}
}

func (c *Coordinator) handle(sig Signal) {
	if c.viewActive != nil && !c.viewActive() {
		return
	}
	if c.conn.IsAlive() {
		return
	}
	// Focus and visibility often fire together; the limiter collapses the
	// burst into one attempt.
	if !c.limiter.Allow() {
		c.logger.Debug("lifecycle reconnect suppressed by cooldown", "signal", sig.String())
		return
	}

	c.logger.Info("lifecycle signal triggering reconnect", "signal", sig.String())
	c.conn.ForceReconnect(sig.String())
}
