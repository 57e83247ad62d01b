// Package chunker provides pure combinators for turning slices, and
// key/value-list streams, into size-bounded batches, plus a small
// fixed-parallelism fan-out helper (RunThrottled) built on the same
// iterator style.
package chunker
