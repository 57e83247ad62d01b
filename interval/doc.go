// Package interval provides the IntervalProvider capability consumed by the
// periodicscheduler package: a value exposing the next sleep duration for a
// periodic task, either as a plain parsed duration or a cron-derived one.
package interval
