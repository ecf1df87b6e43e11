package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotOpen       = errors.New("transport not open")
	ErrAlreadyClosed = errors.New("transport already closed")
)

// RawFrame wraps raw inbound bytes with a receive timestamp.
type RawFrame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Config configures a Handle.
type Config struct {
	URL              string        // WebSocket URL including session key
	HandshakeTimeout time.Duration // Dial deadline
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Frames channel buffer size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       256,
	}
}

// Handle is a single-use wrapper around one WebSocket connection. A Handle
// that has been closed cannot be reopened; the connection manager builds a
// fresh one for every attempt.
type Handle interface {
	// Open dials the WebSocket connection and starts the read loop.
	Open(ctx context.Context) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Frames returns the channel of inbound raw frames.
	Frames() <-chan RawFrame

	// Closed returns a channel that delivers the terminal error exactly once
	// when the connection dies. A manual Close does not deliver.
	Closed() <-chan error

	// IsOpen returns current connection state.
	IsOpen() bool
}

// handle implements the Handle interface.
type handle struct {
	cfg    Config
	logger *slog.Logger

	conn *websocket.Conn

	frames chan RawFrame
	closed chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu       sync.RWMutex
	open     bool
	finished bool
}

// NewHandle creates a new Transport Handle.
func NewHandle(cfg Config, logger *slog.Logger) Handle {
	if logger == nil {
		logger = slog.Default()
	}

	return &handle{
		cfg:    cfg,
		logger: logger,
		frames: make(chan RawFrame, cfg.BufferSize),
		closed: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Open dials the WebSocket connection.
func (h *handle) Open(ctx context.Context) error {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: h.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, h.cfg.URL, header)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conn = conn
	h.open = true
	h.mu.Unlock()

	go h.readLoop()

	h.logger.Debug("transport opened", "url", h.cfg.URL)

	return nil
}

// Close closes the connection without delivering on Closed.
func (h *handle) Close() error {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return nil
	}
	h.finished = true
	h.open = false
	h.mu.Unlock()

	close(h.done)

	if h.conn != nil {
		h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return h.conn.Close()
	}

	return nil
}

// Send writes raw bytes to the connection.
func (h *handle) Send(data []byte) error {
	h.mu.RLock()
	if !h.open {
		h.mu.RUnlock()
		return ErrNotOpen
	}
	h.mu.RUnlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	return h.conn.WriteMessage(websocket.TextMessage, data)
}

// Frames returns the inbound frames channel.
func (h *handle) Frames() <-chan RawFrame {
	return h.frames
}

// Closed returns the terminal error channel.
func (h *handle) Closed() <-chan error {
	return h.closed
}

// IsOpen returns the current connection state.
func (h *handle) IsOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.open
}

// readLoop reads frames from the WebSocket until the connection dies.
// Frames is closed on exit so consumers observe teardown even when the
// terminal error is suppressed by a manual Close.
func (h *handle) readLoop() {
	defer func() {
		h.mu.Lock()
		h.open = false
		h.mu.Unlock()
		close(h.frames)
	}()

	for {
		select {
		case <-h.done:
			return
		default:
		}

		_, data, err := h.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Suppress the terminal error after a manual Close
			select {
			case <-h.done:
			default:
				select {
				case h.closed <- err:
				default:
				}
			}
			return
		}

		frame := RawFrame{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case h.frames <- frame:
		case <-h.done:
			return
		default:
			h.logger.Warn("frame buffer full, dropping frame")
		}
	}
}
