// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one Transport Handle at a time
//   - Handles reconnection with exponential backoff (unbounded retries)
//   - Runs the application-level heartbeat: idle probe plus pong watchdog
//   - Fails sends fast while disconnected and schedules recovery
//   - Reports state transitions and a diagnostics snapshot
//
// A superseded handle is fully detached before its replacement is built, so
// a stale connection can never deliver events or trigger a reconnect loop.
package connection
