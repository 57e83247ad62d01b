// Package retry implements a capped-exponential-backoff retry driver: a
// thin wrapper around a fallible operation, a pluggable classifier deciding
// which failures are worth retrying, and a policy bounding both attempt
// count and wall-clock deadline.
package retry
