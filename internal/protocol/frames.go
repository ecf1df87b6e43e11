package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame kinds as they appear on the wire.
const (
	KindMessageStart = "message.start"
	KindMessageDelta = "message.delta"
	KindMessageEnd   = "message.end"
	KindMessageError = "message.error"
	KindPong         = "pong"
	KindPing         = "ping"
	KindUserMessage  = "user_message"
)

// Frame is one decoded inbound frame. Exactly one of the concrete types
// below is returned by Decode.
type Frame interface {
	// Kind returns the wire-level type string.
	Kind() string
}

// MessageStart opens a new streamed message.
type MessageStart struct {
	MessageID string          `json:"message_id"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// MessageDelta appends a content chunk to a streamed message.
// Seq is optional; zero means the server supplied no sequence number.
type MessageDelta struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	Seq       int64  `json:"seq,omitempty"`
}

// MessageEnd terminates a streamed message normally.
type MessageEnd struct {
	MessageID string          `json:"message_id"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// MessageError terminates a streamed message with a failure. Content carries
// the server's error text.
type MessageError struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// Pong answers a liveness probe.
type Pong struct {
	TS int64 `json:"ts"`
}

// Unknown is any well-formed frame whose type string is not recognized.
// Callers log and discard it.
type Unknown struct {
	Type string
	Raw  []byte
}

func (MessageStart) Kind() string { return KindMessageStart }
func (MessageDelta) Kind() string { return KindMessageDelta }
func (MessageEnd) Kind() string   { return KindMessageEnd }
func (MessageError) Kind() string { return KindMessageError }
func (Pong) Kind() string         { return KindPong }
func (u Unknown) Kind() string    { return u.Type }

// envelope is the common shape every frame shares.
type envelope struct {
	Type string `json:"type"`
}

// Decode parses one raw inbound frame. A parse error means the payload is
// malformed at the transport level; callers log and drop it.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse frame envelope: %w", err)
	}

	switch env.Type {
	case KindMessageStart:
		var f MessageStart
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return f, nil
	case KindMessageDelta:
		var f MessageDelta
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return f, nil
	case KindMessageEnd:
		var f MessageEnd
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return f, nil
	case KindMessageError:
		var f MessageError
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return f, nil
	case KindPong:
		var f Pong
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", env.Type, err)
		}
		return f, nil
	default:
		return Unknown{Type: env.Type, Raw: data}, nil
	}
}

// Ping is the outbound liveness probe.
type Ping struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// UserMessage is the outbound user request frame.
type UserMessage struct {
	Type     string          `json:"type"`
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// EncodePing builds a ping frame for the given unix-milli timestamp.
func EncodePing(ts int64) ([]byte, error) {
	return json.Marshal(Ping{Type: KindPing, TS: ts})
}

// EncodeUserMessage builds a user_message frame.
func EncodeUserMessage(content string, metadata json.RawMessage) ([]byte, error) {
	return json.Marshal(UserMessage{
		Type:     KindUserMessage,
		Content:  content,
		Metadata: metadata,
	})
}
