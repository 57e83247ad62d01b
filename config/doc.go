// Package config loads the default tunables a deployed extractor starts its
// Throttler and UploadQueue components from, plus a failure-budget
// percentage, via a TOML file.
package config
