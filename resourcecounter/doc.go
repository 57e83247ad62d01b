// Package resourcecounter implements a shared, async-acquirable admission
// counter: a unit-weighted semaphore whose capacity can be resized at
// runtime, and whose acquisition suspends on a context rather than blocking a
// scheduler goroutine outright.
package resourcecounter
