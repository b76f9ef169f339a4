package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/okian/affinity/internal/playtest"
	"github.com/okian/affinity/pkg/logger"
)

// Default configuration constants.
const (
	defaultSessions    = 200
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("base-url", "http://localhost:8080", "Base URL of the service")
		sessions    = flag.Int("sessions", defaultSessions, "Number of simulated sessions")
		concurrency = flag.Int("concurrency", runtime.NumCPU(), "Sessions played concurrently")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed of the play generator")
		verify      = flag.Bool("verify", false, "Recompute every result locally and compare")
		console     = flag.Bool("console", true, "Human readable log output")
		level       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	if err := logger.Init(logger.WithConsole(*console)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(*level); err != nil {
		_, _ = os.Stderr.WriteString("invalid log level: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)

	cfg := &playtest.Config{
		BaseURL:     *baseURL,
		Sessions:    *sessions,
		Concurrency: *concurrency,
		Timeout:     *timeout,
		Seed:        *seed,
		Verify:      *verify,
	}

	log := logger.Named("playtest")
	_, err := playtest.Run(ctx, cfg, log)
	cancel()
	stop()

	switch {
	case err == nil:
		log.Info(context.Background(), "playtest passed", logger.String("seed", fmt.Sprint(*seed)))
	case playtest.IsMismatch(err):
		log.Error(context.Background(), "playtest found mismatches", logger.String("seed", fmt.Sprint(*seed)), logger.Error(err))
		os.Exit(1)
	default:
		log.Error(context.Background(), "playtest failed", logger.Error(err))
		os.Exit(2)
	}
}
