// Package main implements the labreg admin console: a terminal client
// for the laptop registry, gated behind the session lock.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"labreg/internal/apiclient"
	"labreg/internal/config"
	"labreg/internal/gate"
	"labreg/internal/mirror"
	"labreg/internal/registry"
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	serverURL  = flag.String("server", "", "Registry server URL (overrides config)")
	stateDir   = flag.String("state", "", "State directory (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "labreg: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *stateDir != "" {
		cfg.State.Dir = *stateDir
	}
	if *debug {
		cfg.Log.Debug = true
	}

	logger := newLogger(cfg.Log)

	client := apiclient.New(cfg.Server.URL, cfg.Server.Timeout.Std(), logger)

	store, err := mirror.New(cfg.State.Dir, logger)
	if err != nil {
		return err
	}
	reg, err := registry.New(client, store, logger)
	if err != nil {
		return err
	}

	gateStore, err := gate.NewStore(cfg.State.Dir, logger)
	if err != nil {
		return err
	}
	g := gate.New(gateStore, client, gate.Options{
		IdleTimeout: cfg.Gate.IdleTimeout.Std(),
		MaxAttempts: cfg.Gate.MaxAttempts,
		Cooldown:    cfg.Gate.Cooldown.Std(),
		SplashDelay: cfg.Gate.SplashDelay.Std(),
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("shutting down")
		cancel()
	}()

	logger.Info().Str("server", cfg.Server.URL).Str("state_dir", cfg.State.Dir).Msg("console starting")

	console := newConsole(g, reg, logger)
	if err := console.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
		level = parsed
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
