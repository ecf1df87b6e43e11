// Package protocol defines the JSON frame types exchanged over the
// streaming-session connection.
//
// Inbound frames carry a chunked server response:
//   - message.start opens a message
//   - message.delta appends content (optionally sequence-numbered)
//   - message.end / message.error terminate it
//   - pong answers a liveness probe
//
// Outbound frames are user_message and ping. Decode maps raw bytes to a
// tagged union over the known kinds; unknown kinds are preserved so callers
// can log them without failing.
package protocol
