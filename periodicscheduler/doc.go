// Package periodicscheduler owns a registry of named, long-lived background
// tasks - each periodic (driven by an interval.Provider) or one-shot - with
// pause/trigger/shutdown semantics and a single aggregate "wait for all"
// task that surfaces the first child failure.
package periodicscheduler
