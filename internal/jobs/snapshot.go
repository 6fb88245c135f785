// Package jobs holds the aggregator's background loops.
package jobs

import (
	"context"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type SnapshotStore interface {
	ListProfileIDs(ctx context.Context) ([]string, error)
	RecomputeSnapshot(ctx context.Context, userID string, day time.Time) (db.CognitiveSnapshot, error)
}

// SnapshotJob recomputes the previous UTC day's cognitive snapshot for every
// registered user on a cron schedule.
type SnapshotJob struct {
	logger   slog.Logger
	clock    quartz.Clock
	store    SnapshotStore
	schedule cron.Schedule
	timeout  time.Duration
}

// NewSnapshotJob parses a standard five-field cron expression, evaluated in
// UTC.
func NewSnapshotJob(logger slog.Logger, clock quartz.Clock, store SnapshotStore, spec string, timeout time.Duration) (*SnapshotJob, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, xerrors.Errorf("parse snapshot schedule %q: %w", spec, err)
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &SnapshotJob{
		logger:   logger,
		clock:    clock,
		store:    store,
		schedule: schedule,
		timeout:  timeout,
	}, nil
}

// Run blocks until ctx is done.
func (j *SnapshotJob) Run(ctx context.Context) {
	for {
		now := j.clock.Now().UTC()
		next := j.schedule.Next(now)
		timer := j.clock.NewTimer(next.Sub(now), "jobs", "snapshot")
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		tickCtx, cancel := context.WithTimeout(ctx, j.timeout)
		count, err := j.RunOnce(tickCtx, j.clock.Now())
		cancel()
		if err != nil {
			j.logger.Error(ctx, "snapshot job failed", slog.Error(err))
			continue
		}
		j.logger.Info(ctx, "snapshot job finished", slog.F("users", count))
	}
}

// RunOnce recomputes the day before now for every user and reports how many
// snapshots were stored. A failure for one user does not stop the others.
func (j *SnapshotJob) RunOnce(ctx context.Context, now time.Time) (int, error) {
	ids, err := j.store.ListProfileIDs(ctx)
	if err != nil {
		return 0, xerrors.Errorf("list users: %w", err)
	}
	day := db.Day(now).AddDate(0, 0, -1)
	stored := 0
	for _, id := range ids {
		if _, err := j.store.RecomputeSnapshot(ctx, id, day); err != nil {
			if ctx.Err() != nil {
				return stored, ctx.Err()
			}
			j.logger.Warn(ctx, "recompute snapshot",
				slog.F("user_id", id),
				slog.Error(err),
			)
			continue
		}
		stored++
	}
	return stored, nil
}
