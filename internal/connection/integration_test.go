package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seacow-technology/streamline/internal/protocol"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsBaseURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestManager_RealTransportStream(t *testing.T) {
	frames := []string{
		`{"type":"message.start","message_id":"m1"}`,
		`{"type":"message.delta","message_id":"m1","content":"hi","seq":1}`,
		`{"type":"message.end","message_id":"m1"}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	var mu sync.Mutex
	var kinds []string
	hooks := Hooks{
		OnFrame: func(f protocol.Frame) {
			mu.Lock()
			kinds = append(kinds, f.Kind())
			mu.Unlock()
		},
	}

	cfg := fastConfig()
	cfg.BaseURL = wsBaseURL(server)
	m := NewManager(cfg, hooks, nil)
	defer m.Close()

	if err := m.Connect(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == len(frames)
	}, "frames not delivered through real transport")

	mu.Lock()
	defer mu.Unlock()
	want := []string{protocol.KindMessageStart, protocol.KindMessageDelta, protocol.KindMessageEnd}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kinds[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestManager_RealTransportReconnect(t *testing.T) {
	var mu sync.Mutex
	accepts := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		mu.Lock()
		accepts++
		n := accepts
		mu.Unlock()

		if n == 1 {
			// Drop the first connection immediately.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	cfg := fastConfig()
	cfg.BaseURL = wsBaseURL(server)
	m := NewManager(cfg, Hooks{}, nil)
	defer m.Close()

	if err := m.Connect(context.Background(), "sess-1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	eventually(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return accepts >= 2 && m.State() == Connected
	}, "did not reconnect through real transport")
}
