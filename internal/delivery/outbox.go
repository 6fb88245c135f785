package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/retry"
	"github.com/natefinch/atomic"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/clients"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/tracker"
)

const DefaultOutboxCapacity = 256

// Record is one queued usage upload. ID doubles as the idempotency key.
type Record struct {
	ID    string               `json:"id"`
	Usage clients.UsageRequest `json:"usage"`
}

type OutboxOptions struct {
	Logger   slog.Logger
	Uploader Uploader
	Build    RequestFunc
	// Path is where pending records are persisted. Empty keeps them in
	// memory only.
	Path     string
	Capacity int
	// Timeout bounds each upload attempt. Zero means no bound.
	Timeout      time.Duration
	RetryFloor   time.Duration
	RetryCeiling time.Duration
}

// Outbox is a bounded FIFO of pending uploads drained by one worker. When
// full, the oldest record is dropped. Records rejected with a permanent
// client error are dropped; anything else is retried with backoff.
type Outbox struct {
	logger   slog.Logger
	uploader Uploader
	build    RequestFunc
	path     string
	capacity int
	timeout  time.Duration
	floor    time.Duration
	ceiling  time.Duration

	mu    sync.Mutex
	queue []Record

	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewOutbox loads any records persisted at opts.Path and starts the worker.
func NewOutbox(opts OutboxOptions) (*Outbox, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultOutboxCapacity
	}
	if opts.RetryFloor <= 0 {
		opts.RetryFloor = time.Second
	}
	if opts.RetryCeiling < opts.RetryFloor {
		opts.RetryCeiling = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		logger:   opts.Logger,
		uploader: opts.Uploader,
		build:    opts.Build,
		path:     opts.Path,
		capacity: opts.Capacity,
		timeout:  opts.Timeout,
		floor:    opts.RetryFloor,
		ceiling:  opts.RetryCeiling,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	queue, err := o.load()
	if err != nil {
		cancel()
		return nil, err
	}
	o.queue = queue
	if len(queue) > 0 {
		o.logger.Info(ctx, "resuming pending usage uploads", slog.F("count", len(queue)))
	}
	go o.run()
	o.notify()
	return o, nil
}

func (o *Outbox) Deliver(ctx context.Context, flush tracker.Flush) {
	rec := Record{ID: flush.ID.String(), Usage: o.build(flush)}

	o.mu.Lock()
	o.queue = append(o.queue, rec)
	if over := len(o.queue) - o.capacity; over > 0 {
		o.logger.Warn(ctx, "outbox full, dropping oldest records", slog.F("dropped", over))
		o.queue = append([]Record(nil), o.queue[over:]...)
	}
	if err := o.persistLocked(); err != nil {
		o.logger.Error(ctx, "persist outbox", slog.Error(err))
	}
	o.mu.Unlock()

	o.notify()
}

// Pending returns a copy of the queued records.
func (o *Outbox) Pending() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Record(nil), o.queue...)
}

// Close lets the worker drain what is queued until ctx is done. Whatever is
// left stays persisted for the next start.
func (o *Outbox) Close(ctx context.Context) error {
	o.once.Do(func() { close(o.closing) })
	select {
	case <-o.done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-o.done
		return xerrors.Errorf("outbox not drained: %w", ctx.Err())
	}
}

func (o *Outbox) notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Outbox) run() {
	defer close(o.done)
	for {
		if !o.drain() {
			return
		}
		select {
		case <-o.ctx.Done():
			return
		case <-o.closing:
			o.drain()
			return
		case <-o.wake:
		}
	}
}

// drain sends queued records in order. It returns false once the worker is
// cancelled.
func (o *Outbox) drain() bool {
	for {
		rec, ok := o.head()
		if !ok {
			return true
		}
		if !o.send(rec) {
			return false
		}
		o.remove(rec.ID)
	}
}

func (o *Outbox) send(rec Record) bool {
	for r := retry.New(o.floor, o.ceiling); r.Wait(o.ctx); {
		ctx := o.ctx
		var cancel context.CancelFunc = func() {}
		if o.timeout > 0 {
			ctx, cancel = context.WithTimeout(o.ctx, o.timeout)
		}
		resp, err := o.uploader.LogUsage(ctx, rec.ID, rec.Usage)
		cancel()
		if err == nil {
			o.logger.Info(o.ctx, "usage logged",
				slog.F("service", rec.Usage.ServiceName),
				slog.F("seconds", rec.Usage.DurationSeconds),
				slog.F("log_id", resp.LogID),
				slog.F("duplicate", resp.Duplicate),
			)
			return true
		}
		var statusErr *clients.StatusError
		if xerrors.As(err, &statusErr) && statusErr.Permanent() {
			o.logger.Warn(o.ctx, "usage rejected, dropping",
				slog.F("id", rec.ID),
				slog.F("status", statusErr.StatusCode),
				slog.F("code", statusErr.Code),
			)
			return true
		}
		if o.ctx.Err() != nil {
			return false
		}
		o.logger.Warn(o.ctx, "usage upload failed, will retry", slog.F("id", rec.ID), slog.Error(err))
	}
	return false
}

func (o *Outbox) head() (Record, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Record{}, false
	}
	return o.queue[0], true
}

func (o *Outbox) remove(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, rec := range o.queue {
		if rec.ID != id {
			continue
		}
		o.queue = append(o.queue[:i:i], o.queue[i+1:]...)
		if err := o.persistLocked(); err != nil {
			o.logger.Error(o.ctx, "persist outbox", slog.Error(err))
		}
		return
	}
}

func (o *Outbox) load() ([]Record, error) {
	if o.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, xerrors.Errorf("read outbox: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var queue []Record
	if err := json.Unmarshal(data, &queue); err != nil {
		return nil, xerrors.Errorf("decode outbox: %w", err)
	}
	if over := len(queue) - o.capacity; over > 0 {
		queue = queue[over:]
	}
	return queue, nil
}

func (o *Outbox) persistLocked() error {
	if o.path == "" {
		return nil
	}
	queue := o.queue
	if queue == nil {
		queue = []Record{}
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return xerrors.Errorf("encode outbox: %w", err)
	}
	if err := atomic.WriteFile(o.path, bytes.NewReader(data)); err != nil {
		return xerrors.Errorf("write outbox: %w", err)
	}
	return nil
}
