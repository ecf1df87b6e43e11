package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeConn is a Reconnector that counts forced reconnects.
type fakeConn struct {
	mu    sync.Mutex
	alive bool
	calls []string
}

func (f *fakeConn) IsAlive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeConn) ForceReconnect(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reason)
}

func (f *fakeConn) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// chanSource delivers signals from a plain channel.
type chanSource struct {
	ch chan Signal
}

func (s *chanSource) Signals() <-chan Signal { return s.ch }

func newTestCoordinator(cooldown time.Duration, conn *fakeConn, viewActive func() bool) (*Coordinator, *chanSource) {
	src := &chanSource{ch: make(chan Signal, 16)}
	c := NewCoordinator(Config{Cooldown: cooldown}, conn, src, viewActive, nil)
	return c, src
}

func TestCoordinator_ReconnectsWhenDown(t *testing.T) {
	conn := &fakeConn{}
	c, src := newTestCoordinator(50*time.Millisecond, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	src.ch <- PageResumed

	deadline := time.Now().Add(time.Second)
	for conn.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.callCount() != 1 {
		t.Fatalf("ForceReconnect called %d times, want 1", conn.callCount())
	}

	conn.mu.Lock()
	reason := conn.calls[0]
	conn.mu.Unlock()
	if reason != "page resumed" {
		t.Errorf("reason = %q, want %q", reason, "page resumed")
	}
}

func TestCoordinator_BurstCollapsesToOne(t *testing.T) {
	conn := &fakeConn{}
	c, src := newTestCoordinator(2*time.Second, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	// Focus, visibility, and resume firing within 100ms of each other.
	signals := []Signal{RegainedFocus, BecameVisible, PageResumed, RegainedFocus, BecameVisible}
	for _, sig := range signals {
		src.ch <- sig
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if n := conn.callCount(); n != 1 {
		t.Errorf("ForceReconnect called %d times for a burst, want 1", n)
	}
}

func TestCoordinator_SkipsWhenAlive(t *testing.T) {
	conn := &fakeConn{alive: true}
	c, src := newTestCoordinator(50*time.Millisecond, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	src.ch <- BecameVisible
	time.Sleep(100 * time.Millisecond)

	if n := conn.callCount(); n != 0 {
		t.Errorf("ForceReconnect called %d times while alive, want 0", n)
	}
}

func TestCoordinator_SkipsWhenViewInactive(t *testing.T) {
	conn := &fakeConn{}
	c, src := newTestCoordinator(50*time.Millisecond, conn, func() bool { return false })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	src.ch <- RegainedFocus
	time.Sleep(100 * time.Millisecond)

	if n := conn.callCount(); n != 0 {
		t.Errorf("ForceReconnect called %d times with inactive view, want 0", n)
	}
}

func TestCoordinator_CooldownExpires(t *testing.T) {
	conn := &fakeConn{}
	c, src := newTestCoordinator(50*time.Millisecond, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	src.ch <- PageResumed
	time.Sleep(100 * time.Millisecond)
	src.ch <- BecameVisible
	time.Sleep(100 * time.Millisecond)

	if n := conn.callCount(); n != 2 {
		t.Errorf("ForceReconnect called %d times across cooldown windows, want 2", n)
	}
}

func TestCoordinator_StartIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	c, src := newTestCoordinator(time.Hour, conn, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Repeated initialization must not register duplicate handlers.
	c.Start(ctx)
	c.Start(ctx)
	c.Start(ctx)

	src.ch <- PageResumed
	time.Sleep(100 * time.Millisecond)

	if n := conn.callCount(); n != 1 {
		t.Errorf("ForceReconnect called %d times, want 1", n)
	}
}
