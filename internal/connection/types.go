package connection

import (
	"errors"
	"time"

	"github.com/seacow-technology/streamline/internal/protocol"
	"github.com/seacow-technology/streamline/internal/transport"
)

// Errors
var (
	ErrNotConnected = errors.New("not connected")
	ErrNoSession    = errors.New("no session key")
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Backoff tracks the delay between reconnection attempts. The current delay
// stays within [Base, Max]: it resets to Base on every successful open and
// doubles (capped) on every non-manual close.
type Backoff struct {
	Current time.Duration
	Base    time.Duration
	Max     time.Duration
}

// NewBackoff creates a Backoff starting at base.
func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{Current: base, Base: base, Max: max}
}

// Next returns the delay to wait before the next attempt, then doubles the
// current delay up to Max.
func (b *Backoff) Next() time.Duration {
	delay := b.Current
	b.Current *= 2
	if b.Current > b.Max {
		b.Current = b.Max
	}
	return delay
}

// Reset returns the current delay to the base value.
func (b *Backoff) Reset() {
	b.Current = b.Base
}

// StatusFunc receives connection state transitions with a human-readable
// reason. May be nil.
type StatusFunc func(state State, reason string)

// FrameFunc receives decoded inbound message frames. Pongs are consumed by
// the manager itself and never forwarded.
type FrameFunc func(frame protocol.Frame)

// LossFunc is invoked once per connection loss, before reconnection is
// scheduled. Collaborators drop any per-connection state here.
type LossFunc func(reason string)

// Hooks bundles the collaborator callbacks the manager reports into.
type Hooks struct {
	OnStatus  StatusFunc
	OnFrame   FrameFunc
	OnLoss    LossFunc
	OnDropped func() // malformed or unknown inbound frame discarded
}

// Config configures the Manager.
type Config struct {
	BaseURL string // Scheme and host, e.g. wss://chat.example.com

	ReconnectBaseDelay time.Duration // Initial backoff delay
	ReconnectMaxDelay  time.Duration // Backoff cap

	HeartbeatInterval time.Duration // Fixed watchdog tick while connected
	IdleThreshold     time.Duration // Idle time before a liveness probe goes out
	PongTimeout       time.Duration // Wait for the liveness reply
	AliveMultiplier   int           // IsAlive allows idle up to this many heartbeat intervals

	ForceReconnectCooldown time.Duration // Suppress duplicate forced reconnects

	Transport transport.Config // Handshake/write timeouts and frame buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseDelay:     1 * time.Second,
		ReconnectMaxDelay:      30 * time.Second,
		HeartbeatInterval:      10 * time.Second,
		IdleThreshold:          30 * time.Second,
		PongTimeout:            10 * time.Second,
		AliveMultiplier:        3,
		ForceReconnectCooldown: 2 * time.Second,
		Transport:              transport.DefaultConfig(),
	}
}

// Diagnostics is a read-only snapshot for observability and testing.
type Diagnostics struct {
	State        State
	URL          string
	BackoffDelay time.Duration
	RetryCount   int
	IdleTime     time.Duration
	ManualClose  bool
}
