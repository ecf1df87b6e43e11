// Package stream implements the Stream Assembler component.
//
// The Stream Assembler:
//   - Tracks one record per in-flight message id (Streaming -> Ended)
//   - Deduplicates delta frames via per-message sequence numbers
//   - Accumulates delta content and finalizes it on message.end
//   - Emits exactly one completed or failed signal per message id
//   - Bounds the record table with stale-age-then-oldest eviction
//
// The whole table is dropped on any connection loss; a reconnected server
// may restart its numbering, so half-received streams are never resumed.
package stream
