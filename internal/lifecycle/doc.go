// Package lifecycle implements the Lifecycle Coordinator component.
//
// The hosting environment reports page resume, foreground visibility, and
// focus regain. Each signal triggers a reconnect through the connection
// manager when the connection is down, gated by a cooldown so a burst of
// near-simultaneous signals issues at most one attempt.
package lifecycle
