package signal_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/signal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type answer struct {
	name string
	err  error
}

func TestProcessSourceEmitsChanges(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := quartz.NewMock(t)
	answers := make(chan answer)
	fg := func(ctx context.Context) (string, error) {
		select {
		case a := <-answers:
			return a.name, a.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	runCtx, stop := context.WithCancel(ctx)
	src := signal.NewProcessSource(slogtest.Make(t, nil), clock, 10*time.Second, fg)
	out := src.Signals(runCtx)

	receive := func() signal.Signal {
		t.Helper()
		select {
		case sig := <-out:
			return sig
		case <-ctx.Done():
			t.Fatal("timed out waiting for signal")
			return signal.Signal{}
		}
	}

	answers <- answer{name: "Finder"}
	sig := receive()
	require.Equal(t, signal.KindFocus, sig.Kind)
	require.Equal(t, "Finder", sig.Identity)

	clock.Advance(10 * time.Second).MustWait(ctx)
	answers <- answer{name: "Finder"}

	clock.Advance(10 * time.Second).MustWait(ctx)
	answers <- answer{name: "Cursor"}
	sig = receive()
	require.Equal(t, "Cursor", sig.Identity)
	require.Equal(t, clock.Now(), sig.At)

	clock.Advance(10 * time.Second).MustWait(ctx)
	answers <- answer{err: xerrors.New("osascript failed")}
	sig = receive()
	require.Equal(t, signal.KindFocus, sig.Kind)
	require.Empty(t, sig.Identity)

	stop()
	for range out {
	}
}

func frames(t *testing.T, msgs ...signal.BrowserMessage) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, msg := range msgs {
		require.NoError(t, signal.WriteMessage(&buf, msg))
	}
	return &buf
}

func TestBrowserSourceTabEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const (
		claude     = "https://claude.ai/chat/1"
		chatgpt    = "https://chat.openai.com/"
		perplexity = "https://www.perplexity.ai/"
	)
	in := frames(t,
		signal.BrowserMessage{Event: "activated", TabID: 1, URL: claude},
		signal.BrowserMessage{Event: "request", TabID: 1},
		signal.BrowserMessage{Event: "request", TabID: 9},
		signal.BrowserMessage{Event: "updated", TabID: 2, URL: chatgpt, Status: "complete"},
		signal.BrowserMessage{Event: "activated", TabID: 2},
		signal.BrowserMessage{Event: "updated", TabID: 2, URL: perplexity, Status: "loading"},
		signal.BrowserMessage{Event: "updated", TabID: 2, URL: perplexity, Status: "complete"},
		signal.BrowserMessage{Event: "removed", TabID: 1},
		signal.BrowserMessage{Event: "request", TabID: 1},
		signal.BrowserMessage{Event: "removed", TabID: 2},
		signal.BrowserMessage{Event: "bogus"},
		signal.BrowserMessage{Event: "suspend"},
	)

	src := signal.NewBrowserSource(slogtest.Make(t, nil), quartz.NewMock(t), in)
	var got []signal.Signal
	for sig := range src.Signals(ctx) {
		require.False(t, sig.At.IsZero())
		sig.At = time.Time{}
		got = append(got, sig)
	}

	require.Equal(t, []signal.Signal{
		{Kind: signal.KindFocus, Identity: claude},
		{Kind: signal.KindRequest, Identity: claude},
		{Kind: signal.KindFocus, Identity: chatgpt},
		{Kind: signal.KindFocus, Identity: perplexity},
		{Kind: signal.KindFocus},
		{Kind: signal.KindSuspend},
	}, got)
}

func TestBrowserSourceSkipsMalformedFrames(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const (
		claude  = "https://claude.ai/"
		chatgpt = "https://chat.openai.com/"
	)
	in := frames(t, signal.BrowserMessage{Event: "activated", TabID: 1, URL: claude})
	bad := `{"event":"request","tabId":"1"}`
	require.NoError(t, binary.Write(in, binary.LittleEndian, uint32(len(bad))))
	in.WriteString(bad)
	require.NoError(t, signal.WriteMessage(in, signal.BrowserMessage{Event: "activated", TabID: 2, URL: chatgpt}))

	src := signal.NewBrowserSource(slogtest.Make(t, nil), quartz.NewMock(t), in)
	var got []string
	for sig := range src.Signals(ctx) {
		require.Equal(t, signal.KindFocus, sig.Kind)
		got = append(got, sig.Identity)
	}
	require.Equal(t, []string{claude, chatgpt}, got)
}

func TestReadMessageLimits(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(2<<20)))
	var decodeErr *signal.DecodeError
	_, err := signal.ReadMessage(&buf)
	require.Error(t, err)
	require.False(t, xerrors.As(err, &decodeErr))

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(10)))
	buf.WriteString("{}")
	_, err = signal.ReadMessage(&buf)
	require.Error(t, err)
	require.False(t, xerrors.As(err, &decodeErr))

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(3)))
	buf.WriteString("nah")
	_, err = signal.ReadMessage(&buf)
	require.ErrorAs(t, err, &decodeErr)

	msg, err := signal.ReadMessage(frames(t, signal.BrowserMessage{Event: "suspend"}))
	require.NoError(t, err)
	require.Equal(t, "suspend", msg.Event)
}
