package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/spf13/pflag"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/agent"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/config"
)

func main() {
	cfg := config.LoadTracker()

	var linkUser string
	flags := pflag.NewFlagSet("tracker", pflag.ExitOnError)
	flags.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Base URL of the usage API.")
	flags.StringVar(&cfg.Source, "source", cfg.Source, `Signal source: "desktop" or "browser".`)
	flags.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Foreground poll interval for the desktop source.")
	flags.DurationVar(&cfg.CheckpointInterval, "checkpoint-interval", cfg.CheckpointInterval, "Interval between checkpoint flushes of an active session.")
	flags.DurationVar(&cfg.DwellThreshold, "dwell-threshold", cfg.DwellThreshold, "Minimum session length persisted on a switch.")
	flags.StringVar(&cfg.DeviceIDFile, "device-id-file", cfg.DeviceIDFile, "File holding this device's id.")
	flags.StringVar(&cfg.DeviceName, "device-name", cfg.DeviceName, "Device name reported on registration.")
	flags.StringVar(&cfg.DeviceType, "device-type", cfg.DeviceType, "Device type reported on registration.")
	flags.StringVar(&cfg.UserID, "user-id", cfg.UserID, "User to attribute usage to.")
	flags.StringVar(&cfg.ClassifierFile, "classifier", cfg.ClassifierFile, "YAML file overriding the service tables.")
	flags.BoolVar(&cfg.OutboxEnabled, "outbox", cfg.OutboxEnabled, "Queue flushes on disk and retry failed deliveries.")
	flags.StringVar(&cfg.OutboxPath, "outbox-path", cfg.OutboxPath, "Outbox file.")
	flags.IntVar(&cfg.OutboxCapacity, "outbox-capacity", cfg.OutboxCapacity, "Maximum queued flushes before the oldest is dropped.")
	flags.DurationVar(&cfg.DeliveryTimeout, "delivery-timeout", cfg.DeliveryTimeout, "Per-delivery timeout, 0 for none.")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "info" or "debug".`)
	flags.StringVar(&linkUser, "link-user", "", "Link this device to a user id and exit.")
	_ = flags.Parse(os.Args[1:])

	// Stdout carries native messaging frames for the browser source.
	logger := slog.Make(sloghuman.Sink(os.Stderr))
	if cfg.LogLevel == "debug" {
		logger = logger.Leveled(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{}

	if linkUser != "" {
		deviceID, err := agent.LinkUser(ctx, cfg, httpClient, linkUser)
		if err != nil {
			logger.Fatal(ctx, "link user failed", slog.Error(err))
		}
		logger.Info(ctx, "device linked", slog.F("device_id", deviceID), slog.F("user_id", linkUser))
		return
	}

	err := agent.Run(ctx, agent.Options{
		Logger:     logger,
		Config:     cfg,
		HTTPClient: httpClient,
	})
	if err != nil {
		logger.Fatal(ctx, "tracker failed", slog.Error(err))
	}
}
