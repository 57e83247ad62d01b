// Package opscheduler implements a single-threaded planner for recursive
// item exploration: it pulls items from an active set, borrows admission
// capacity from a resourcecounter.Counter, forms chunks via a pluggable
// strategy, submits them to a throttler.Throttler, drains completions, and
// folds newly discovered items back into the active set. Items a chunk
// could not finish stay active without requesting fresh capacity, so
// forward progress never deadlocks on a shared budget.
package opscheduler
