// Package delivery sends tracker flushes to the aggregator.
//
// Direct mirrors the tracker's historical behaviour: one call per flush,
// failures are logged and the flush is lost. Outbox is an opt-in
// replacement that persists flushes locally and retries them with backoff.
package delivery

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/clients"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/tracker"
)

// Uploader is implemented by *clients.Client.
type Uploader interface {
	LogUsage(ctx context.Context, idempotencyKey string, req clients.UsageRequest) (clients.UsageResponse, error)
}

// RequestFunc builds the usage payload for a flush.
type RequestFunc func(flush tracker.Flush) clients.UsageRequest

// Direct is a fire-and-forget sink. A zero timeout means calls are never
// cut short.
type Direct struct {
	logger   slog.Logger
	uploader Uploader
	build    RequestFunc
	timeout  time.Duration

	wg sync.WaitGroup
}

func NewDirect(logger slog.Logger, uploader Uploader, build RequestFunc, timeout time.Duration) *Direct {
	return &Direct{logger: logger, uploader: uploader, build: build, timeout: timeout}
}

func (d *Direct) Deliver(ctx context.Context, flush tracker.Flush) {
	req := d.build(flush)
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		resp, err := d.uploader.LogUsage(ctx, flush.ID.String(), req)
		if err != nil {
			d.logger.Warn(ctx, "usage delivery failed, discarding",
				slog.F("service", req.ServiceName),
				slog.F("seconds", req.DurationSeconds),
				slog.Error(err),
			)
			return
		}
		d.logger.Info(ctx, "usage logged",
			slog.F("service", req.ServiceName),
			slog.F("seconds", req.DurationSeconds),
			slog.F("log_id", resp.LogID),
		)
	}()
}

// Close waits for in-flight deliveries until ctx is done.
func (d *Direct) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return xerrors.Errorf("waiting for in-flight deliveries: %w", ctx.Err())
	}
}
