// Command mirrorurl recursively mirrors a website subtree onto local disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andywarduk/mirrorurl/pkg/config"
	"github.com/andywarduk/mirrorurl/pkg/crawler"
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	cfg, err := parseArgs(log)
	if err != nil {
		log.Errorf("%v", err)
		flag.Usage()

		return 2
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Errorf("%v", err)

		return 2
	}

	switch {
	case cfg.Debug >= 2:
		log.SetLevel(logrus.TraceLevel)
	case cfg.Debug == 1:
		log.SetLevel(logrus.DebugLevel)
	}

	// Worker thread count for the scheduler, independent of the fetch
	// concurrency ceiling
	runtime.GOMAXPROCS(cfg.Threads)

	runLog := log.WithField("run_id", uuid.NewString())

	state, err := crawler.NewState(cfg, runLog)
	if err != nil {
		log.Errorf("%v", err)

		return 1
	}

	// SIGINT/SIGTERM cancels the run; in-flight fetches abort and the etag
	// cache is still persisted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = crawler.Run(ctx, state)

	for _, line := range state.Stats().Snapshot().Summary() {
		log.Info(line)
	}

	if err != nil {
		log.Errorf("%v", err)

		return 1
	}

	return 0
}

// parseArgs builds the configuration from an optional YAML config file and
// the command line. Flags override file values; the root URL and target
// directory may be given as flags or as the two positional arguments.
func parseArgs(log *logrus.Logger) (*config.Config, error) {
	configFile := flag.String("config", "", "Path to optional YAML config file")
	concurrent := flag.Int("c", 0, "Maximum number of concurrent fetches")
	threads := flag.Int("t", 0, "Maximum number of worker threads")
	unnamed := flag.String("u", "", "File name to use for unnamed files")
	connectTimeout := flag.Uint("connect-timeout", 0, "Connection timeout in seconds")
	fetchTimeout := flag.Uint("fetch-timeout", 0, "Fetch timeout in minutes")
	skipFile := flag.String("s", "", "Skip list file (JSON array of path prefixes)")
	noETags := flag.Bool("e", false, "Don't use etags to detect out of date files")
	debug := flag.Int("d", 0, "Debug message level (0-2)")
	debugDelay := flag.Uint("debug-delay", 0, "Artificial delay in milliseconds around each chunk write")
	maxRedirects := flag.Int("max-redirects", 0, "Maximum redirect hops per fetch")
	respectRobots := flag.Bool("robots", false, "Respect robots.txt")
	userAgent := flag.String("user-agent", "", "User agent string to send")
	flag.Parse()

	cfg := &config.Config{}

	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}

		cfg = loaded
		log.Infof("Loaded configuration from %s", *configFile)
	}

	if *concurrent != 0 {
		cfg.ConcurrentFetch = *concurrent
	}
	if *threads != 0 {
		cfg.Threads = *threads
	}
	if *unnamed != "" {
		cfg.Unnamed = *unnamed
	}
	if *connectTimeout != 0 {
		cfg.ConnectTimeout = config.DurationFrom(time.Duration(*connectTimeout) * time.Second)
	}
	if *fetchTimeout != 0 {
		cfg.FetchTimeout = config.DurationFrom(time.Duration(*fetchTimeout) * time.Minute)
	}
	if *skipFile != "" {
		cfg.SkipFile = *skipFile
	}
	if *noETags {
		cfg.NoETags = true
	}
	if *debug != 0 {
		cfg.Debug = *debug
	}
	if *debugDelay != 0 {
		cfg.DebugDelay = config.DurationFrom(time.Duration(*debugDelay) * time.Millisecond)
	}
	if *maxRedirects != 0 {
		cfg.MaxRedirects = *maxRedirects
	}
	if *respectRobots {
		cfg.RespectRobots = true
	}
	if *userAgent != "" {
		cfg.UserAgent = *userAgent
	}

	switch flag.NArg() {
	case 0:
		// URL and target must come from the config file
	case 2:
		cfg.URL = flag.Arg(0)
		cfg.Target = flag.Arg(1)
	default:
		return nil, fmt.Errorf("expected <url> <target> arguments, got %d", flag.NArg())
	}

	return cfg, nil
}
