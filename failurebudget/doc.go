// Package failurebudget implements a tripwire over a set of distinct failed
// job keys: once the set exceeds a percentage of a moving total, a linked
// cancellation is fired exactly once. Re-failing an already-failed key
// never consumes additional budget.
package failurebudget
