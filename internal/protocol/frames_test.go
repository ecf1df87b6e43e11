package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecode_KnownKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"start", `{"type":"message.start","message_id":"m1"}`, KindMessageStart},
		{"delta", `{"type":"message.delta","message_id":"m1","content":"hi","seq":3}`, KindMessageDelta},
		{"end", `{"type":"message.end","message_id":"m1"}`, KindMessageEnd},
		{"error", `{"type":"message.error","message_id":"m1","content":"boom"}`, KindMessageError},
		{"pong", `{"type":"pong","ts":1700000000000}`, KindPong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if frame.Kind() != tt.want {
				t.Errorf("Kind() = %q, want %q", frame.Kind(), tt.want)
			}
		})
	}
}

func TestDecode_DeltaFields(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"message.delta","message_id":"m2","content":"chunk","seq":7}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	delta, ok := frame.(MessageDelta)
	if !ok {
		t.Fatalf("expected MessageDelta, got %T", frame)
	}
	if delta.MessageID != "m2" {
		t.Errorf("MessageID = %q, want %q", delta.MessageID, "m2")
	}
	if delta.Content != "chunk" {
		t.Errorf("Content = %q, want %q", delta.Content, "chunk")
	}
	if delta.Seq != 7 {
		t.Errorf("Seq = %d, want 7", delta.Seq)
	}
}

func TestDecode_MissingSeqIsZero(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"message.delta","message_id":"m3","content":"x"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if delta := frame.(MessageDelta); delta.Seq != 0 {
		t.Errorf("Seq = %d, want 0 when absent", delta.Seq)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"server.notice","text":"maintenance"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	unknown, ok := frame.(Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %T", frame)
	}
	if unknown.Type != "server.notice" {
		t.Errorf("Type = %q, want %q", unknown.Type, "server.notice")
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestEncodeUserMessage(t *testing.T) {
	data, err := EncodeUserMessage("hello", json.RawMessage(`{"client_id":"abc"}`))
	if err != nil {
		t.Fatalf("EncodeUserMessage failed: %v", err)
	}

	var msg UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("round-trip failed: %v", err)
	}
	if msg.Type != KindUserMessage {
		t.Errorf("Type = %q, want %q", msg.Type, KindUserMessage)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
}

func TestEncodePing(t *testing.T) {
	data, err := EncodePing(42)
	if err != nil {
		t.Fatalf("EncodePing failed: %v", err)
	}

	var ping Ping
	if err := json.Unmarshal(data, &ping); err != nil {
		t.Fatalf("round-trip failed: %v", err)
	}
	if ping.Type != KindPing || ping.TS != 42 {
		t.Errorf("got %+v, want type=ping ts=42", ping)
	}
}
