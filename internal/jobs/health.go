package jobs

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthReporter interface {
	SetServing(serving bool)
}

// HealthWatcher pings the database on an interval and reports the result.
type HealthWatcher struct {
	logger   slog.Logger
	clock    quartz.Clock
	pinger   Pinger
	reporter HealthReporter
	interval time.Duration
	timeout  time.Duration
}

func NewHealthWatcher(logger slog.Logger, clock quartz.Clock, pinger Pinger, reporter HealthReporter, interval time.Duration) *HealthWatcher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &HealthWatcher{
		logger:   logger,
		clock:    clock,
		pinger:   pinger,
		reporter: reporter,
		interval: interval,
		timeout:  timeout,
	}
}

// Run checks once immediately, then every interval until ctx is done.
func (w *HealthWatcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval, "jobs", "health")
	defer ticker.Stop()

	serving := false
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, w.timeout)
		err := w.pinger.Ping(pingCtx)
		cancel()
		ok := err == nil
		if ok != serving {
			if ok {
				w.logger.Info(ctx, "database reachable")
			} else {
				w.logger.Warn(ctx, "database unreachable", slog.Error(err))
			}
		}
		serving = ok
		w.reporter.SetServing(ok)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
