// Package session wires the streaming-session client together.
//
// A Controller is the single owned instance holding the connection manager,
// stream assembler, request queue, and lifecycle coordinator. It is built
// once with an explicit connect/close lifecycle; collaborators receive their
// dependencies through it rather than through ambient state.
package session
