// Package config holds the run configuration for a mirror.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by Validate when a field is unset
const (
	DefaultConcurrentFetch = 10
	DefaultUnnamed         = "__file.dat"
	DefaultConnectTimeout  = 60 * time.Second
	DefaultFetchTimeout    = 5 * time.Minute
	DefaultMaxRedirects    = 10
	DefaultUserAgent       = "mirrorurl/1.0"
)

// Config holds all settings for a mirror run. Flags populate it directly; an
// optional YAML file can supply base values which flags then override.
type Config struct {
	// URL is the root URL to mirror
	URL string `yaml:"url"`
	// Target is the directory the mirrored tree is written to
	Target string `yaml:"target"`
	// ConcurrentFetch bounds the number of simultaneous outbound fetches
	ConcurrentFetch int `yaml:"concurrent_fetch,omitempty"`
	// Threads is the number of OS threads made available to the scheduler
	Threads int `yaml:"threads,omitempty"`
	// Unnamed is the file name used when a URL's relative path is empty or ends in "/"
	Unnamed string `yaml:"unnamed,omitempty"`
	// ConnectTimeout is the TCP connect timeout
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`
	// FetchTimeout is the overall per-request timeout
	FetchTimeout Duration `yaml:"fetch_timeout,omitempty"`
	// SkipFile is an optional path to a JSON skip list file
	SkipFile string `yaml:"skip_file,omitempty"`
	// NoETags disables the conditional-fetch cache entirely
	NoETags bool `yaml:"no_etags,omitempty"`
	// Debug is the debug verbosity level (0 = info, 1 = debug, 2+ = trace)
	Debug int `yaml:"debug,omitempty"`
	// DebugDelay inserts an artificial pause around each chunk write, to
	// make concurrency interleavings observable. No effect on correctness.
	DebugDelay Duration `yaml:"debug_delay,omitempty"`
	// MaxRedirects is the redirect hop ceiling per fetch
	MaxRedirects int `yaml:"max_redirects,omitempty"`
	// RespectRobots enables robots.txt checking
	RespectRobots bool `yaml:"respect_robots,omitempty"`
	// UserAgent is sent on every request
	UserAgent string `yaml:"user_agent,omitempty"`
}

// LoadFile reads a YAML config file into a Config
func LoadFile(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", file, err)
	}

	var cfg Config

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", file, err)
	}

	return &cfg, nil
}
