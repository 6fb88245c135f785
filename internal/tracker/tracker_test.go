package tracker_test

import (
	"context"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/classifier"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/signal"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type chanSink chan tracker.Flush

func (c chanSink) Deliver(_ context.Context, f tracker.Flush) {
	c <- f
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	clock   *quartz.Mock
	signals chan signal.Signal
	flushes chanSink
	cancel  context.CancelFunc
	done    chan struct{}
}

func startTracker(t *testing.T) *harness {
	t.Helper()

	ctx, cancelTest := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancelTest)

	h := &harness{
		t:       t,
		ctx:     ctx,
		clock:   quartz.NewMock(t),
		signals: make(chan signal.Signal),
		flushes: make(chanSink, 16),
		done:    make(chan struct{}),
	}
	trap := h.clock.Trap().NewTicker("checkpoint")
	defer trap.Close()

	tr := tracker.New(tracker.Options{
		Logger:             slogtest.Make(t, nil),
		Clock:              h.clock,
		Classifier:         classifier.DefaultWeb(),
		Sink:               h.flushes,
		DwellThreshold:     30 * time.Second,
		CheckpointInterval: 5 * time.Minute,
	})
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go func() {
		defer close(h.done)
		tr.Run(runCtx, h.signals)
	}()
	call := trap.MustWait(ctx)
	require.Equal(t, 5*time.Minute, call.Duration)
	call.MustRelease(ctx)
	return h
}

func (h *harness) send(kind signal.Kind, identity string) {
	h.t.Helper()
	select {
	case h.signals <- signal.Signal{At: h.clock.Now(), Kind: kind, Identity: identity}:
	case <-h.ctx.Done():
		h.t.Fatal("timed out sending signal")
	}
}

func (h *harness) flush() tracker.Flush {
	h.t.Helper()
	select {
	case f := <-h.flushes:
		return f
	case <-h.ctx.Done():
		h.t.Fatal("timed out waiting for flush")
		return tracker.Flush{}
	}
}

func (h *harness) wait() {
	h.t.Helper()
	select {
	case <-h.done:
	case <-h.ctx.Done():
		h.t.Fatal("timed out waiting for tracker to stop")
	}
}

func TestTrackerCheckpointsLongSession(t *testing.T) {
	t.Parallel()

	h := startTracker(t)
	start := h.clock.Now()
	h.send(signal.KindFocus, "https://claude.ai/chat/1")

	h.clock.Advance(5 * time.Minute).MustWait(h.ctx)
	first := h.flush()
	h.clock.Advance(5 * time.Minute).MustWait(h.ctx)
	second := h.flush()
	h.clock.Advance(2 * time.Minute).MustWait(h.ctx)
	h.send(signal.KindFocus, "https://example.com/")
	last := h.flush()

	for _, f := range []tracker.Flush{first, second, last} {
		require.Equal(t, "Claude", f.Service)
	}
	require.Equal(t, tracker.ReasonCheckpoint, first.Reason)
	require.Equal(t, tracker.ReasonCheckpoint, second.Reason)
	require.Equal(t, tracker.ReasonSwitch, last.Reason)
	require.Equal(t, int64(300), first.Seconds())
	require.Equal(t, int64(300), second.Seconds())
	require.Equal(t, int64(120), last.Seconds())
	require.Equal(t, start, first.Start)
	require.Equal(t, start.Add(12*time.Minute), last.End)

	close(h.signals)
	h.wait()
	require.Empty(t, h.flushes)
}

func TestTrackerShutdownFlushesShortSession(t *testing.T) {
	t.Parallel()

	h := startTracker(t)
	h.send(signal.KindFocus, "https://www.perplexity.ai/")
	h.send(signal.KindRequest, "https://perplexity.ai/search")
	h.send(signal.KindRequest, "https://perplexity.ai/search")
	h.send(signal.KindRequest, "https://chat.openai.com/")
	h.send(signal.KindRequest, "")
	h.clock.Advance(10 * time.Second).MustWait(h.ctx)

	h.cancel()
	h.wait()

	f := h.flush()
	require.Equal(t, "Perplexity", f.Service)
	require.Equal(t, int64(10), f.Seconds())
	require.Equal(t, 3, f.Requests)
	require.Equal(t, tracker.ReasonShutdown, f.Reason)
}

func TestTrackerShortSwitchDropped(t *testing.T) {
	t.Parallel()

	h := startTracker(t)
	h.send(signal.KindFocus, "https://claude.ai/")
	h.clock.Advance(20 * time.Second).MustWait(h.ctx)
	h.send(signal.KindFocus, "")
	h.clock.Advance(20 * time.Second).MustWait(h.ctx)

	close(h.signals)
	h.wait()
	require.Empty(t, h.flushes)
}

func TestTrackerSuspendKeepsRunning(t *testing.T) {
	t.Parallel()

	h := startTracker(t)
	h.send(signal.KindFocus, "https://chat.openai.com/")
	h.clock.Advance(3 * time.Second).MustWait(h.ctx)
	h.send(signal.KindSuspend, "")
	f := h.flush()
	require.Equal(t, "ChatGPT", f.Service)
	require.Equal(t, int64(3), f.Seconds())

	h.send(signal.KindFocus, "https://claude.ai/")
	h.clock.Advance(45 * time.Second).MustWait(h.ctx)
	h.send(signal.KindFocus, "https://chat.openai.com/")
	f = h.flush()
	require.Equal(t, "Claude", f.Service)
	require.Equal(t, int64(45), f.Seconds())

	h.cancel()
	h.wait()
	f = h.flush()
	require.Equal(t, "ChatGPT", f.Service)
	require.Equal(t, tracker.ReasonShutdown, f.Reason)
}
