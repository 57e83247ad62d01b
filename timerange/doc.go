// Package timerange implements TimeRange, a closed, inclusive-endpoint time
// interval value type with non-mutating extend/contract combinators.
package timerange
