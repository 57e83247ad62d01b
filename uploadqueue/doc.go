// Package uploadqueue implements a generic producer/consumer batching
// queue: enqueue never blocks, flushes trigger on a size threshold, an
// interval timer, or an explicit request, and at most one flush is ever in
// flight. Concrete variants plug in the upload call and, optionally, a
// binary spill codec so a server-side fault during flush persists the
// batch to disk instead of losing it.
package uploadqueue
