package signal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"golang.org/x/xerrors"
)

// maxMessageSize bounds a single native messaging frame.
const maxMessageSize = 1 << 20

// BrowserMessage is a tab event forwarded by the browser extension.
type BrowserMessage struct {
	Event  string `json:"event"`
	TabID  int    `json:"tabId,omitempty"`
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// BrowserSource reads native messaging frames (a 4-byte little-endian length
// followed by JSON) and converts tab events into signals. It keeps the URL of
// every known tab so request events can be resolved to the tab's page.
type BrowserSource struct {
	logger slog.Logger
	clock  quartz.Clock
	r      io.Reader
}

func NewBrowserSource(logger slog.Logger, clock quartz.Clock, r io.Reader) *BrowserSource {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &BrowserSource{logger: logger, clock: clock, r: r}
}

func (b *BrowserSource) Signals(ctx context.Context) <-chan Signal {
	out := make(chan Signal)
	go func() {
		defer close(out)

		tabs := newTabState()
		for {
			msg, err := ReadMessage(b.r)
			var decodeErr *DecodeError
			if xerrors.As(err, &decodeErr) {
				b.logger.Warn(ctx, "skipping malformed browser message", slog.Error(err))
				continue
			}
			if err != nil {
				if !xerrors.Is(err, io.EOF) {
					b.logger.Warn(ctx, "native messaging stream ended", slog.Error(err))
				}
				return
			}
			sig, ok := tabs.apply(msg)
			if !ok {
				b.logger.Debug(ctx, "browser event ignored", slog.F("event", msg.Event), slog.F("tab_id", msg.TabID))
				continue
			}
			sig.At = b.clock.Now()
			select {
			case out <- sig:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

type tabState struct {
	urls   map[int]string
	active int
}

func newTabState() *tabState {
	return &tabState{urls: map[int]string{}}
}

func (s *tabState) apply(msg BrowserMessage) (Signal, bool) {
	switch msg.Event {
	case "activated":
		if msg.URL != "" {
			s.urls[msg.TabID] = msg.URL
		}
		s.active = msg.TabID
		return Signal{Kind: KindFocus, Identity: s.urls[msg.TabID]}, true
	case "updated":
		if msg.Status != "complete" || msg.URL == "" {
			return Signal{}, false
		}
		s.urls[msg.TabID] = msg.URL
		if msg.TabID != s.active {
			return Signal{}, false
		}
		return Signal{Kind: KindFocus, Identity: msg.URL}, true
	case "removed":
		delete(s.urls, msg.TabID)
		if msg.TabID != s.active {
			return Signal{}, false
		}
		s.active = 0
		return Signal{Kind: KindFocus}, true
	case "request":
		url, ok := s.urls[msg.TabID]
		if !ok || msg.TabID <= 0 {
			return Signal{}, false
		}
		return Signal{Kind: KindRequest, Identity: url}, true
	case "suspend":
		return Signal{Kind: KindSuspend}, true
	default:
		return Signal{}, false
	}
}

// DecodeError is returned by ReadMessage when a frame was read in full but
// its body is not a valid message. The stream is still usable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode message: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReadMessage reads one native messaging frame.
func ReadMessage(r io.Reader) (BrowserMessage, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return BrowserMessage{}, err
	}
	if size > maxMessageSize {
		return BrowserMessage{}, xerrors.Errorf("message of %d bytes exceeds limit", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return BrowserMessage{}, xerrors.Errorf("read message body: %w", err)
	}
	var msg BrowserMessage
	if err := json.Unmarshal(buf, &msg); err != nil {
		return BrowserMessage{}, &DecodeError{Err: err}
	}
	return msg, nil
}

// WriteMessage writes one native messaging frame.
func WriteMessage(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return xerrors.Errorf("encode message: %w", err)
	}
	if len(data) > maxMessageSize {
		return xerrors.Errorf("message of %d bytes exceeds limit", len(data))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
