package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/config"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/elexon"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/logger"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/scheduler"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/snapshot"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/storage"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	dateFlag   = flag.String("date", "", "Settlement date (YYYY-MM-DD), overrides the config file")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dateFlag != "" {
		cfg.Elexon.SettlementDate = *dateFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	history, err := storage.New(cfg.Storage.DBPath, cfg.Storage.MaxSnapshots)
	if err != nil {
		logger.Fatal("Failed to open history store: %v", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Error("Failed to close history store: %v", err)
		}
	}()

	client := elexon.NewClient(cfg.Elexon.APIBaseURL, cfg.Elexon.Timeout, elexon.ClientConfig{
		MaxAttempts:  cfg.Elexon.MaxAttempts,
		AttemptDelay: cfg.Elexon.AttemptDelay,
		RequestPause: cfg.Elexon.RequestPause,
	})

	sinks := scheduler.MultiSink{logSink{}}
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram notifications enabled")
		sinks = append(sinks, tg)
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(
		scheduler.Config{
			Day:             cfg.SettlementDay(),
			UpdateInterval:  cfg.Scheduler.UpdateInterval,
			Retry:           cfg.Scheduler.Retry,
			RetryIncrements: cfg.Scheduler.RetryIncrements,
		},
		client,
		snapshot.NewStore(),
		history,
		sinks,
		scheduler.RealClock(),
	)

	logger.Info("Starting watch for settlement day %s (interval: %v, retry: %v, increments: %v)",
		cfg.Elexon.SettlementDate,
		cfg.Scheduler.UpdateInterval,
		cfg.Scheduler.Retry,
		cfg.Scheduler.RetryIncrements,
	)

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Service stopped")
			return
		}
		logger.Fatal("Scheduler exited: %v", err)
	}
}

// logSink reports emitted snapshots and diffs through the process log. It is
// always installed so a diff is visible even with notifications disabled.
type logSink struct{}

func (logSink) HandleSnapshot(snap models.Snapshot, tc scheduler.TitleContext) error {
	logger.Info("snapshot for %s: %d periods, latest publish %v",
		tc.SettlementDate, len(snap.Records), tc.PublishedAt)
	return nil
}

func (logSink) HandleDiff(d models.Diff, tc scheduler.TitleContext) error {
	sum := d.Summary()
	logger.Info("diff for %s (%v vs %v): mean delta %+.1f MW, mean abs %.1f MW, max swing %+.1f / %+.1f MW",
		tc.SettlementDate, d.PreviousPublishedAt, d.NewPublishedAt,
		sum.MeanDelta, sum.MeanAbsDelta, sum.MaxIncrease, sum.MaxDecrease)
	return nil
}
