// Package agent wires a device's signal source, session tracker and
// delivery sink together.
package agent

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/classifier"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/clients"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/config"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/delivery"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/signal"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/tracker"
)

const (
	SourceDesktop = "desktop"
	SourceBrowser = "browser"
)

// closeTimeout bounds how long pending deliveries may hold up exit.
const closeTimeout = 10 * time.Second

type Options struct {
	Logger     slog.Logger
	Config     config.Tracker
	Clock      quartz.Clock
	HTTPClient *http.Client
	// Source overrides the signal source selected by Config.Source.
	Source signal.Source
	// Stdin feeds the browser source. Defaults to os.Stdin.
	Stdin io.Reader
}

type sink interface {
	tracker.Sink
	Close(ctx context.Context) error
}

// Run tracks the device until ctx is done or the signal source ends.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	logger := opts.Logger
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}

	deviceID, err := DeviceID(cfg.DeviceIDFile)
	if err != nil {
		return err
	}
	logger = logger.With(slog.F("device_id", deviceID))

	client, err := clients.New(cfg.APIURL, opts.HTTPClient)
	if err != nil {
		return err
	}

	kind := classifier.KindProcess
	if cfg.Source == SourceBrowser {
		kind = classifier.KindWeb
	}
	table, err := classifier.Load(cfg.ClassifierFile, kind)
	if err != nil {
		return err
	}

	source := opts.Source
	if source == nil {
		source, err = newSource(logger, opts)
		if err != nil {
			return err
		}
	}

	device := registration(deviceID, cfg)
	register(ctx, logger, client, device)
	uploader := &registeringUploader{logger: logger, client: client, device: device}

	build := usageBuilder(deviceID, cfg)
	var out sink
	if cfg.OutboxEnabled {
		out, err = delivery.NewOutbox(delivery.OutboxOptions{
			Logger:   logger.Named("outbox"),
			Uploader: uploader,
			Build:    build,
			Path:     cfg.OutboxPath,
			Capacity: cfg.OutboxCapacity,
			Timeout:  cfg.DeliveryTimeout,
		})
		if err != nil {
			return err
		}
	} else {
		out = delivery.NewDirect(logger.Named("delivery"), uploader, build, cfg.DeliveryTimeout)
	}

	t := tracker.New(tracker.Options{
		Logger:             logger.Named("tracker"),
		Clock:              opts.Clock,
		Classifier:         table,
		Sink:               out,
		DwellThreshold:     cfg.DwellThreshold,
		CheckpointInterval: cfg.CheckpointInterval,
	})
	logger.Info(ctx, "tracking started",
		slog.F("source", cfg.Source),
		slog.F("outbox", cfg.OutboxEnabled),
	)
	t.Run(ctx, source.Signals(ctx))

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := out.Close(closeCtx); err != nil {
		logger.Warn(ctx, "pending deliveries abandoned", slog.Error(err))
	}
	logger.Info(ctx, "tracking stopped")
	return nil
}

// LinkUser associates the device stored at cfg.DeviceIDFile with userID.
func LinkUser(ctx context.Context, cfg config.Tracker, httpClient *http.Client, userID string) (string, error) {
	deviceID, err := DeviceID(cfg.DeviceIDFile)
	if err != nil {
		return "", err
	}
	client, err := clients.New(cfg.APIURL, httpClient)
	if err != nil {
		return "", err
	}
	if err := client.LinkUser(ctx, deviceID, userID); err != nil {
		return "", xerrors.Errorf("link user: %w", err)
	}
	return deviceID, nil
}

// DeviceID returns the id stored at path, creating and persisting a new one
// when the file is missing or empty.
func DeviceID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", xerrors.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", xerrors.Errorf("create device id dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(id))); err != nil {
		return "", xerrors.Errorf("write device id: %w", err)
	}
	return id, nil
}

func newSource(logger slog.Logger, opts Options) (signal.Source, error) {
	switch opts.Config.Source {
	case SourceDesktop, "":
		return signal.NewProcessSource(logger.Named("process"), opts.Clock, opts.Config.PollInterval, nil), nil
	case SourceBrowser:
		var stdin io.Reader = os.Stdin
		if opts.Stdin != nil {
			stdin = opts.Stdin
		}
		return signal.NewBrowserSource(logger.Named("browser"), opts.Clock, stdin), nil
	default:
		return nil, xerrors.Errorf("unknown tracker source %q", opts.Config.Source)
	}
}

func registration(deviceID string, cfg config.Tracker) clients.RegisterDeviceRequest {
	name := cfg.DeviceName
	if cfg.Source == SourceBrowser && name == "" {
		name = "Browser Extension"
	}
	return clients.RegisterDeviceRequest{
		ID:     deviceID,
		Name:   name,
		Type:   cfg.DeviceType,
		UserID: optional(cfg.UserID),
	}
}

// register is best-effort; tracking proceeds even when the backend is down.
func register(ctx context.Context, logger slog.Logger, client *clients.Client, req clients.RegisterDeviceRequest) {
	if _, err := client.RegisterDevice(ctx, req); err != nil {
		logger.Warn(ctx, "device registration failed", slog.Error(err))
		return
	}
	logger.Info(ctx, "device registered", slog.F("name", req.Name))
}

// registeringUploader registers the device again when the aggregator does not
// know it, then resends the usage once under the same idempotency key.
type registeringUploader struct {
	logger slog.Logger
	client *clients.Client
	device clients.RegisterDeviceRequest
}

func (u *registeringUploader) LogUsage(ctx context.Context, key string, req clients.UsageRequest) (clients.UsageResponse, error) {
	resp, err := u.client.LogUsage(ctx, key, req)
	if !clients.IsDeviceNotFound(err) {
		return resp, err
	}
	u.logger.Info(ctx, "device unknown to aggregator, registering again")
	if _, regErr := u.client.RegisterDevice(ctx, u.device); regErr != nil {
		return clients.UsageResponse{}, xerrors.Errorf("register device: %w", regErr)
	}
	return u.client.LogUsage(ctx, key, req)
}

func usageBuilder(deviceID string, cfg config.Tracker) delivery.RequestFunc {
	platform, source := runtime.GOOS, "desktop-monitor"
	if cfg.Source == SourceBrowser {
		platform, source = "browser", "extension"
	}
	userID := optional(cfg.UserID)
	return func(f tracker.Flush) clients.UsageRequest {
		return clients.UsageRequest{
			DeviceID:        deviceID,
			ServiceName:     f.Service,
			DurationSeconds: f.Seconds(),
			RequestCount:    f.Requests,
			UserID:          userID,
			Metadata: map[string]any{
				"platform":   platform,
				"source":     source,
				"reason":     string(f.Reason),
				"started_at": f.Start.UTC().Format(time.RFC3339),
			},
		}
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
