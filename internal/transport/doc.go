// Package transport implements the Transport Handle: a thin wrapper around
// one WebSocket connection.
//
// A Handle owns exactly one dialed connection for its whole lifetime. It
// exposes open/send/close plus two channels: Frames for raw inbound payloads
// and Closed for the single terminal error. It has no protocol knowledge and
// no reconnection logic; the connection manager owns both.
package transport
