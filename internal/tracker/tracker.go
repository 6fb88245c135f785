// Package tracker turns a stream of activity signals into session flushes.
package tracker

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/classifier"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/signal"
)

const (
	DefaultDwellThreshold     = 30 * time.Second
	DefaultCheckpointInterval = 5 * time.Minute
)

// Sink receives flushes. Deliver must not block the caller for long; the
// tracker loop calls it inline.
type Sink interface {
	Deliver(ctx context.Context, flush Flush)
}

type Options struct {
	Logger             slog.Logger
	Clock              quartz.Clock
	Classifier         *classifier.Classifier
	Sink               Sink
	DwellThreshold     time.Duration
	CheckpointInterval time.Duration
}

// Tracker owns one Session and drives it from a single goroutine.
type Tracker struct {
	logger     slog.Logger
	clock      quartz.Clock
	classifier *classifier.Classifier
	sink       Sink
	interval   time.Duration
	session    *Session
}

func New(opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.DwellThreshold <= 0 {
		opts.DwellThreshold = DefaultDwellThreshold
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	return &Tracker{
		logger:     opts.Logger,
		clock:      opts.Clock,
		classifier: opts.Classifier,
		sink:       opts.Sink,
		interval:   opts.CheckpointInterval,
		session:    NewSession(opts.DwellThreshold),
	}
}

// Run processes signals until ctx is done or signals is closed. Either way
// the active session is flushed before Run returns.
func (t *Tracker) Run(ctx context.Context, signals <-chan signal.Signal) {
	ticker := t.clock.NewTicker(t.interval, "tracker", "checkpoint")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.shutdown(context.WithoutCancel(ctx), t.clock.Now())
			return
		case sig, ok := <-signals:
			if !ok {
				t.shutdown(context.WithoutCancel(ctx), t.clock.Now())
				return
			}
			t.handle(ctx, sig)
		case now := <-ticker.C:
			if flush, ok := t.session.Checkpoint(now); ok {
				t.emit(ctx, flush)
			}
		}
	}
}

func (t *Tracker) handle(ctx context.Context, sig signal.Signal) {
	at := sig.At
	if at.IsZero() {
		at = t.clock.Now()
	}

	switch sig.Kind {
	case signal.KindFocus:
		service, _ := t.classify(sig.Identity)
		if flush, ok := t.session.Classified(at, service); ok {
			t.emit(ctx, flush)
		}
		if active, ok := t.session.Active(); ok {
			t.logger.Debug(ctx, "tracking service", slog.F("service", active))
		}
	case signal.KindRequest:
		service, ok := t.classify(sig.Identity)
		if !ok || !t.session.Request(service) {
			t.logger.Debug(ctx, "request not attributed", slog.F("identity", sig.Identity))
		}
	case signal.KindSuspend:
		t.shutdown(ctx, at)
	default:
		t.logger.Warn(ctx, "unknown signal kind", slog.F("kind", sig.Kind))
	}
}

func (t *Tracker) classify(identity string) (string, bool) {
	if t.classifier == nil || identity == "" {
		return "", false
	}
	return t.classifier.Classify(identity)
}

func (t *Tracker) shutdown(ctx context.Context, at time.Time) {
	if flush, ok := t.session.Shutdown(at); ok {
		t.emit(ctx, flush)
	}
}

func (t *Tracker) emit(ctx context.Context, flush Flush) {
	t.logger.Info(ctx, "session flushed",
		slog.F("service", flush.Service),
		slog.F("seconds", flush.Seconds()),
		slog.F("requests", flush.Requests),
		slog.F("reason", flush.Reason),
	)
	if t.sink != nil {
		t.sink.Deliver(ctx, flush)
	}
}
