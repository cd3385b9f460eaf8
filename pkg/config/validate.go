package config

import (
	"errors"
	"fmt"
	"runtime"
)

// Validate applies defaults, clamps out-of-range values and checks required
// fields. It returns human-readable warnings for every clamp applied and an
// error only when the configuration cannot be used at all.
func (cfg *Config) Validate() (warnings []string, err error) {
	if cfg.URL == "" {
		return warnings, errors.New("a root URL is required")
	}

	if cfg.Target == "" {
		return warnings, errors.New("a target directory is required")
	}

	if cfg.ConcurrentFetch == 0 {
		cfg.ConcurrentFetch = DefaultConcurrentFetch
	} else if cfg.ConcurrentFetch < 1 {
		warnings = append(warnings, "concurrent fetch count raised to 1")
		cfg.ConcurrentFetch = 1
	}

	cpus := runtime.NumCPU()

	if cfg.Threads == 0 {
		cfg.Threads = min(cfg.ConcurrentFetch, cpus)
	} else if cfg.Threads < 1 {
		warnings = append(warnings, "thread count raised to 1")
		cfg.Threads = 1
	} else if cfg.Threads > cpus {
		warnings = append(warnings, fmt.Sprintf("clamping number of threads to %d due to cpu count", cpus))
		cfg.Threads = cpus
	}

	if cfg.Unnamed == "" {
		cfg.Unnamed = DefaultUnnamed
	}

	if cfg.ConnectTimeout.Duration <= 0 {
		cfg.ConnectTimeout = DurationFrom(DefaultConnectTimeout)
	}

	if cfg.FetchTimeout.Duration <= 0 {
		cfg.FetchTimeout = DurationFrom(DefaultFetchTimeout)
	}

	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return warnings, nil
}
