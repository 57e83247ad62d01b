package config

import (
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cognitedata/extractor-utils-core/errkind"
	"github.com/cognitedata/extractor-utils-core/interval"
	"github.com/cognitedata/extractor-utils-core/throttler"
	"github.com/cognitedata/extractor-utils-core/uploadqueue"
)

// ThrottlerConfig is the TOML-facing shape of throttler.Config; durations
// are plain strings parsed via interval.ParseDuration so operators can
// write "500ms" or "30s" rather than raw nanosecond integers.
type ThrottlerConfig struct {
	MaxParallel     int     `toml:"max-parallel"`
	MaxPerUnit      int     `toml:"max-per-unit"`
	MaxUsagePerUnit float64 `toml:"max-usage-per-unit"`
	Unit            string  `toml:"unit"`
	QuitOnFailure   bool    `toml:"quit-on-failure"`
}

// UploadQueueConfig is the TOML-facing shape of uploadqueue.Config.
type UploadQueueConfig struct {
	MaxSize    int    `toml:"max-size"`
	Interval   string `toml:"interval"`
	BufferPath string `toml:"buffer-path"`
}

// RunnerConfig is the root of a deployed extractor's TOML configuration
// file: default tunables for every long-lived component it starts.
type RunnerConfig struct {
	Throttler  ThrottlerConfig   `toml:"throttler"`
	Points     UploadQueueConfig `toml:"points"`
	Events     UploadQueueConfig `toml:"events"`
	RawRows    UploadQueueConfig `toml:"raw-rows"`
	FailurePct float64           `toml:"failure-budget-percent"`
}

// LoadRunnerConfig parses path as TOML into a RunnerConfig. A malformed file
// surfaces as an errkind.Configuration error.
func LoadRunnerConfig(path string) (RunnerConfig, error) {
	var cfg RunnerConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RunnerConfig{}, errkind.New(errkind.Configuration, err)
	}
	return cfg, nil
}

// ToThrottlerConfig resolves the TOML-facing fields into a throttler.Config.
// Logger is left nil; callers attach one after resolution.
func (c ThrottlerConfig) ToThrottlerConfig() (throttler.Config, error) {
	unit, err := parseUnit(c.Unit)
	if err != nil {
		return throttler.Config{}, err
	}
	return throttler.Config{
		MaxParallel:     c.MaxParallel,
		MaxPerUnit:      c.MaxPerUnit,
		MaxUsagePerUnit: c.MaxUsagePerUnit,
		Unit:            unit,
		QuitOnFailure:   c.QuitOnFailure,
	}, nil
}

// ToQueueConfig resolves the TOML-facing fields into an uploadqueue.Config.
// Logger is left nil; callers attach one after resolution.
func (c UploadQueueConfig) ToQueueConfig() (uploadqueue.Config, error) {
	var provider interval.Provider
	if c.Interval != "" {
		d, err := interval.ParseDuration(c.Interval, interval.Seconds, false)
		if err != nil {
			return uploadqueue.Config{}, err
		}
		provider = fixedProvider(d)
	}
	return uploadqueue.Config{
		MaxSize:    c.MaxSize,
		Interval:   provider,
		BufferPath: c.BufferPath,
	}, nil
}

// fixedProvider is an interval.Provider returning the same duration every
// time - a TOML-configured interval never changes at runtime.
type fixedProvider time.Duration

func (f fixedProvider) Value() time.Duration { return time.Duration(f) }

func parseUnit(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return interval.ParseDuration(raw, interval.Seconds, true)
}
