package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/jobs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recompute struct {
	userID string
	day    time.Time
}

type fakeStore struct {
	ids   []string
	fail  map[string]bool
	calls chan recompute
}

func (f *fakeStore) ListProfileIDs(context.Context) ([]string, error) {
	return f.ids, nil
}

func (f *fakeStore) RecomputeSnapshot(_ context.Context, userID string, day time.Time) (db.CognitiveSnapshot, error) {
	f.calls <- recompute{userID: userID, day: day}
	if f.fail[userID] {
		return db.CognitiveSnapshot{}, xerrors.New("boom")
	}
	return db.CognitiveSnapshot{UserID: userID}, nil
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSnapshotJobRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	_, err := jobs.NewSnapshotJob(slogtest.Make(t, nil), quartz.NewMock(t), &fakeStore{}, "every night", 0)
	require.Error(t, err)
}

func TestSnapshotJobRunOnce(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	store := &fakeStore{
		ids:   []string{"u1", "u2", "u3"},
		fail:  map[string]bool{"u2": true},
		calls: make(chan recompute, 3),
	}
	job, err := jobs.NewSnapshotJob(slogtest.Make(t, nil), quartz.NewMock(t), store, "15 0 * * *", 0)
	require.NoError(t, err)

	count, err := job.RunOnce(ctx, time.Date(2030, 3, 1, 0, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, count)
	for range 3 {
		call := <-store.calls
		require.Equal(t, time.Date(2030, 2, 28, 0, 0, 0, 0, time.UTC), call.day)
	}
}

func TestSnapshotJobFollowsSchedule(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2030, 5, 17, 0, 0, 0, 0, time.UTC)).MustWait(ctx)

	store := &fakeStore{ids: []string{"u1"}, calls: make(chan recompute, 1)}
	job, err := jobs.NewSnapshotJob(slogtest.Make(t, nil), clock, store, "15 0 * * *", time.Second)
	require.NoError(t, err)

	trap := clock.Trap().NewTimer("snapshot")
	defer trap.Close()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		job.Run(runCtx)
	}()

	call := trap.MustWait(ctx)
	require.Equal(t, 15*time.Minute, call.Duration)
	call.MustRelease(ctx)

	clock.Advance(15 * time.Minute).MustWait(ctx)
	got := <-store.calls
	require.Equal(t, "u1", got.userID)
	require.Equal(t, time.Date(2030, 5, 16, 0, 0, 0, 0, time.UTC), got.day)

	call = trap.MustWait(ctx)
	require.Equal(t, 24*time.Hour, call.Duration)
	call.MustRelease(ctx)

	cancel()
	<-done
}

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

type reporter chan bool

func (r reporter) SetServing(serving bool) { r <- serving }

func TestHealthWatcher(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	pinger := &fakePinger{}
	states := make(reporter, 4)

	trap := clock.Trap().NewTicker("health")
	defer trap.Close()

	w := jobs.NewHealthWatcher(slogtest.Make(t, nil), clock, pinger, states, 10*time.Second)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(runCtx)
	}()

	trap.MustWait(ctx).MustRelease(ctx)
	require.True(t, <-states)

	pinger.set(xerrors.New("connection refused"))
	clock.Advance(10 * time.Second).MustWait(ctx)
	require.False(t, <-states)

	pinger.set(nil)
	clock.Advance(10 * time.Second).MustWait(ctx)
	require.True(t, <-states)

	cancel()
	<-done
}
