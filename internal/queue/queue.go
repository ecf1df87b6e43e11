package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Errors
var (
	ErrTimeout = errors.New("request timed out awaiting completion")
	ErrCleared = errors.New("request dropped by queue clear")
)

// SendFunc attempts to put a payload on the wire. A non-nil error means the
// send failed immediately (e.g. not connected); the connection manager is
// expected to schedule its own recovery as a side effect.
type SendFunc func(payload []byte) error

// BusyFunc reports drain activity to collaborators (e.g. a UI disabling
// input while a request is in flight). May be nil.
type BusyFunc func(busy bool)

// Config configures the Queue.
type Config struct {
	RequestTimeout time.Duration // Ceiling on one request's completion wait
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 60 * time.Second,
	}
}

// entry is one queued request.
type entry struct {
	payload []byte
	done    chan error // resolved exactly once, delivered to the caller
	resolve chan error // internal resolution signal for the drain loop
}

// Queue serializes outbound requests with a single-flight guarantee:
// request N+1 is never sent before request N's outcome is resolved.
type Queue struct {
	cfg    Config
	send   SendFunc
	busy   BusyFunc
	logger *slog.Logger

	mu       sync.Mutex
	pending  *ring[*entry]
	draining bool
	active   *entry
	gen      uint64 // bumped by Clear so a stale drain loop stands down
}

// New creates a Request Queue. busy may be nil.
func New(cfg Config, send SendFunc, busy BusyFunc, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	return &Queue{
		cfg:     cfg,
		send:    send,
		busy:    busy,
		logger:  logger,
		pending: newRing[*entry](16),
	}
}

// Enqueue adds a request and returns a channel that delivers its outcome
// exactly once: nil when the exchange completed (successfully or not),
// an error for an immediate send failure, timeout, or clear.
func (q *Queue) Enqueue(payload []byte) <-chan error {
	e := &entry{
		payload: payload,
		done:    make(chan error, 1),
		resolve: make(chan error, 1),
	}

	q.mu.Lock()
	q.pending.push(e)
	start := !q.draining
	if start {
		q.draining = true
	}
	gen := q.gen
	q.mu.Unlock()

	if start {
		q.setBusy(true)
		go q.drainLoop(gen)
	}

	return e.done
}

// NotifyCompletion resolves the in-flight request. A failed completion still
// resolves as delivered: the exchange did finish, just unsuccessfully.
func (q *Queue) NotifyCompletion(messageID string, failed bool) {
	q.mu.Lock()
	e := q.active
	q.active = nil
	q.mu.Unlock()

	if e == nil {
		return
	}

	q.logger.Debug("request resolved by completion",
		"message_id", messageID,
		"failed", failed,
	)

	select {
	case e.resolve <- nil:
	default:
	}
}

// Clear drops all pending entries and resets the draining flag. Used when
// the logical session changes underneath the queue: a stale in-flight wait
// must not resolve against a new session's messages.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.gen++
	dropped := q.pending.drain()
	active := q.active
	q.active = nil
	wasDraining := q.draining
	q.draining = false
	q.mu.Unlock()

	if active != nil {
		select {
		case active.resolve <- ErrCleared:
		default:
		}
	}
	for _, e := range dropped {
		e.done <- ErrCleared
	}

	if wasDraining {
		q.setBusy(false)
	}

	if n := len(dropped); n > 0 || active != nil {
		q.logger.Info("request queue cleared", "dropped", n)
	}
}

// Len returns the number of requests waiting to be sent.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.len()
}

// drainLoop sends pending requests one at a time. Exactly one loop runs per
// generation; Clear bumps the generation to stand a stale loop down.
func (q *Queue) drainLoop(gen uint64) {
	for {
		q.mu.Lock()
		if q.gen != gen {
			// Cleared underneath us; Clear already reset the drain flag.
			q.mu.Unlock()
			return
		}

		e, ok := q.pending.pop()
		if !ok {
			q.draining = false
			q.mu.Unlock()
			q.setBusy(false)
			return
		}
		q.active = e
		q.mu.Unlock()

		if err := q.send(e.payload); err != nil {
			q.mu.Lock()
			if q.active == e {
				q.active = nil
			}
			q.mu.Unlock()

			q.logger.Warn("send failed, resolving request as failure", "error", err)
			e.done <- fmt.Errorf("send request: %w", err)
			continue
		}

		timer := time.NewTimer(q.cfg.RequestTimeout)
		select {
		case err := <-e.resolve:
			timer.Stop()
			e.done <- err
		case <-timer.C:
			q.mu.Lock()
			if q.active == e {
				q.active = nil
			}
			q.mu.Unlock()

			q.logger.Warn("request timed out", "timeout", q.cfg.RequestTimeout)
			e.done <- ErrTimeout
		}
	}
}

func (q *Queue) setBusy(busy bool) {
	if q.busy != nil {
		q.busy(busy)
	}
}
