// Package queue implements the Request Queue component.
//
// The Request Queue serializes outbound user requests: at most one request
// is in flight at a time, and the next is not sent until the previous one
// resolves via a stream completion, an immediate send failure, or the
// per-request timeout. Pending requests wait in a growable FIFO ring.
package queue
