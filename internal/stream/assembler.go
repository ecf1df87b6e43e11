package stream

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/seacow-technology/streamline/internal/protocol"
)

// Lifecycle is the per-message state.
type Lifecycle int

const (
	Streaming Lifecycle = iota
	Ended
)

func (l Lifecycle) String() string {
	switch l {
	case Streaming:
		return "streaming"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Completion is the terminal signal for one message id. Failed completions
// still mean the exchange finished; Err carries the server's error text.
type Completion struct {
	MessageID  string
	Content    string
	ChunkCount int
	Failed     bool
	Err        error
}

// CompletionFunc receives terminal signals. Called outside the assembler's
// lock; it must not call back into the assembler.
type CompletionFunc func(Completion)

// Config configures the Assembler.
type Config struct {
	MaxRecords  int           // Record table cap
	StaleWindow time.Duration // Age beyond which a record is evicted first
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecords:  100,
		StaleWindow: 5 * time.Minute,
	}
}

// record tracks one in-flight message.
type record struct {
	lifecycle  Lifecycle
	lastSeq    int64
	chunkCount int
	lastUpdate time.Time
	content    strings.Builder
}

// Assembler consumes inbound message frames and drives per-message state.
type Assembler struct {
	cfg        Config
	logger     *slog.Logger
	onComplete CompletionFunc

	mu      sync.Mutex
	records map[string]*record

	now func() time.Time // test hook
}

// NewAssembler creates a Stream Assembler. onComplete may be nil.
func NewAssembler(cfg Config, onComplete CompletionFunc, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRecords < 1 {
		cfg.MaxRecords = DefaultConfig().MaxRecords
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = DefaultConfig().StaleWindow
	}

	return &Assembler{
		cfg:        cfg,
		logger:     logger,
		onComplete: onComplete,
		records:    make(map[string]*record),
		now:        time.Now,
	}
}

// HandleFrame applies one decoded inbound frame. Protocol violations are
// logged and dropped, never fatal; at-least-once transports are expected to
// duplicate and reorder.
func (a *Assembler) HandleFrame(frame protocol.Frame) {
	switch f := frame.(type) {
	case protocol.MessageStart:
		a.handleStart(f)
	case protocol.MessageDelta:
		a.handleDelta(f)
	case protocol.MessageEnd:
		a.handleEnd(f)
	case protocol.MessageError:
		a.handleError(f)
	default:
		a.logger.Debug("ignoring non-message frame", "kind", frame.Kind())
	}
}

func (a *Assembler) handleStart(f protocol.MessageStart) {
	a.mu.Lock()

	if rec, ok := a.records[f.MessageID]; ok {
		if rec.lifecycle == Streaming {
			a.mu.Unlock()
			a.logger.Warn("duplicate message.start, ignoring", "message_id", f.MessageID)
			return
		}
		// Ended record: the id is being reused, start fresh.
		delete(a.records, f.MessageID)
	}

	a.evictLocked()
	a.records[f.MessageID] = &record{
		lifecycle:  Streaming,
		lastUpdate: a.now(),
	}
	a.mu.Unlock()

	a.logger.Debug("message started", "message_id", f.MessageID)
}

func (a *Assembler) handleDelta(f protocol.MessageDelta) {
	a.mu.Lock()

	rec, ok := a.records[f.MessageID]
	if !ok {
		a.mu.Unlock()
		a.logger.Warn("delta without start, ignoring", "message_id", f.MessageID)
		return
	}
	if rec.lifecycle == Ended {
		a.mu.Unlock()
		a.logger.Warn("delta after end, ignoring", "message_id", f.MessageID)
		return
	}

	if f.Seq > 0 {
		// Strict monotonic increase: anything at or below the high-water
		// mark is a duplicate or arrived out of order.
		if f.Seq <= rec.lastSeq {
			a.mu.Unlock()
			a.logger.Debug("stale delta, dropping",
				"message_id", f.MessageID,
				"seq", f.Seq,
				"last_seq", rec.lastSeq,
			)
			return
		}
		rec.lastSeq = f.Seq
	} else {
		// No sequence supplied: a local counter only guards against local
		// double-processing, not remote reordering.
		rec.lastSeq++
	}

	rec.content.WriteString(f.Content)
	rec.chunkCount++
	rec.lastUpdate = a.now()
	a.mu.Unlock()
}

func (a *Assembler) handleEnd(f protocol.MessageEnd) {
	a.mu.Lock()

	rec, ok := a.records[f.MessageID]
	if !ok {
		a.mu.Unlock()
		a.logger.Warn("end without start, ignoring", "message_id", f.MessageID)
		return
	}
	if rec.lifecycle == Ended {
		a.mu.Unlock()
		a.logger.Debug("duplicate message.end, ignoring", "message_id", f.MessageID)
		return
	}

	rec.lifecycle = Ended
	rec.lastUpdate = a.now()
	completion := Completion{
		MessageID:  f.MessageID,
		Content:    rec.content.String(),
		ChunkCount: rec.chunkCount,
	}
	a.mu.Unlock()

	a.logger.Debug("message completed",
		"message_id", f.MessageID,
		"chunks", completion.ChunkCount,
	)

	if a.onComplete != nil {
		a.onComplete(completion)
	}
}

func (a *Assembler) handleError(f protocol.MessageError) {
	a.mu.Lock()

	completion := Completion{
		MessageID: f.MessageID,
		Failed:    true,
		Err:       errors.New(f.Content),
	}

	if rec, ok := a.records[f.MessageID]; ok {
		if rec.lifecycle == Ended {
			// Already resolved once; a second terminal frame is a no-op.
			a.mu.Unlock()
			a.logger.Debug("error after terminal frame, ignoring", "message_id", f.MessageID)
			return
		}
		rec.lifecycle = Ended
		rec.lastUpdate = a.now()
		completion.Content = rec.content.String()
		completion.ChunkCount = rec.chunkCount
	}
	a.mu.Unlock()

	a.logger.Warn("message failed",
		"message_id", f.MessageID,
		"error", f.Content,
	)

	if a.onComplete != nil {
		a.onComplete(completion)
	}
}

// Reset discards the entire record table. Called on any connection loss:
// the server may restart numbering, so in-flight state must not survive.
func (a *Assembler) Reset(reason string) {
	a.mu.Lock()
	n := len(a.records)
	a.records = make(map[string]*record)
	a.mu.Unlock()

	if n > 0 {
		a.logger.Info("stream state reset",
			"reason", reason,
			"dropped_records", n,
		)
	}
}

// Len returns the current record count.
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// evictLocked makes room for one insert: stale records go first, then
// oldest-by-lastUpdate until under the cap. Must be called with lock held.
func (a *Assembler) evictLocked() {
	if len(a.records) < a.cfg.MaxRecords {
		return
	}

	cutoff := a.now().Add(-a.cfg.StaleWindow)
	for id, rec := range a.records {
		if rec.lastUpdate.Before(cutoff) {
			delete(a.records, id)
		}
	}

	for len(a.records) >= a.cfg.MaxRecords {
		var oldestID string
		var oldest time.Time
		for id, rec := range a.records {
			if oldestID == "" || rec.lastUpdate.Before(oldest) {
				oldestID = id
				oldest = rec.lastUpdate
			}
		}
		delete(a.records, oldestID)
		a.logger.Debug("evicted message record", "message_id", oldestID)
	}
}
