package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herald/internal/bot"
	"herald/internal/config"
	"herald/internal/services/broadcast"
	"herald/internal/services/confirm"
	"herald/internal/services/scheduler"
	"herald/internal/storage"
	"herald/internal/transport/telegram"
	"herald/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logSvc, log, err := logx.New(logxConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logSvc.Close()
	mgr.SetLogger(log.With().Str("component", "config").Logger())

	// Durations were validated during Load; parse errors below are impossible.
	busyTimeout, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := storage.Open(storage.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout},
		log.With().Str("component", "storage").Logger())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	pollTimeout, _ := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	client, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout},
		log.With().Str("component", "telegram").Logger())
	if err != nil {
		return fmt.Errorf("initializing telegram client: %w", err)
	}

	engine := broadcast.New(broadcast.Config{RatePerSec: cfg.Broadcast.RatePerSec}, client, store,
		log.With().Str("component", "broadcast").Logger())

	pollInterval, _ := config.ParseDurationField("scheduler.poll_interval", cfg.Scheduler.PollInterval)
	startupDelay, _ := config.ParseDurationField("scheduler.startup_delay", cfg.Scheduler.StartupDelay)
	sched := scheduler.New(scheduler.Config{PollInterval: pollInterval, StartupDelay: startupDelay},
		store, engine, log.With().Str("component", "scheduler").Logger())

	ttl, _ := config.ParseDurationField("confirm.ttl", cfg.Confirm.TTL)
	gate := confirm.New(ttl)

	b := bot.New(botConfig(cfg), client, store, engine, sched, gate,
		log.With().Str("component", "bot").Logger())

	sched.Start(ctx)

	go func() {
		err := mgr.Watch(ctx, func(c *config.Config) {
			logSvc.Apply(logxConfig(c))
			engine.Apply(broadcast.Config{RatePerSec: c.Broadcast.RatePerSec})
			if ttl, err := config.ParseDurationField("confirm.ttl", c.Confirm.TTL); err == nil {
				gate.Apply(ttl)
			}
			b.Apply(botConfig(c))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("config watcher exited")
		}
	}()

	runErr := b.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)
	_ = client.Stop(stopCtx)
	engine.Wait()

	return runErr
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func botConfig(cfg *config.Config) bot.Config {
	return bot.Config{
		AdminUserIDs:  cfg.Telegram.AdminUserIDs,
		TargetGroupID: cfg.Telegram.TargetGroupID,
	}
}
