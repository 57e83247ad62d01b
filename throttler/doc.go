// Package throttler implements a bounded-parallel task executor with two
// optional EWMA-style rate ceilings: a count of scheduled tasks per time
// unit, and an aggregate wall-clock utilization per time unit. A single
// supervisor goroutine owns the scheduling decision; execution itself
// happens on one goroutine per running task.
package throttler
