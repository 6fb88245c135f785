package signal

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/xerrors"
)

// ForegroundFunc reports the name of the application currently in front.
type ForegroundFunc func(ctx context.Context) (string, error)

// ProcessSource polls the foreground application and emits a focus signal
// whenever it changes. A failed poll counts as nothing in focus.
type ProcessSource struct {
	logger     slog.Logger
	clock      quartz.Clock
	interval   time.Duration
	foreground ForegroundFunc
}

func NewProcessSource(logger slog.Logger, clock quartz.Clock, interval time.Duration, fg ForegroundFunc) *ProcessSource {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if fg == nil {
		fg = Foreground
	}
	return &ProcessSource{logger: logger, clock: clock, interval: interval, foreground: fg}
}

func (p *ProcessSource) Signals(ctx context.Context) <-chan Signal {
	out := make(chan Signal)
	ticker := p.clock.NewTicker(p.interval, "signal", "poll")
	go func() {
		defer close(out)
		defer ticker.Stop()

		var (
			last  string
			first = true
		)
		poll := func() bool {
			name, err := p.foreground(ctx)
			if err != nil {
				p.logger.Debug(ctx, "foreground lookup failed", slog.Error(err))
				name = ""
			}
			if !first && name == last {
				return true
			}
			first = false
			last = name
			select {
			case out <- Signal{At: p.clock.Now(), Kind: KindFocus, Identity: name}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !poll() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !poll() {
					return
				}
			}
		}
	}()
	return out
}

// Foreground returns the frontmost application on macOS. Elsewhere it falls
// back to the process using the most CPU, which approximates the active
// application.
func Foreground(ctx context.Context) (string, error) {
	if runtime.GOOS == "darwin" {
		return frontmostDarwin(ctx)
	}
	return busiestProcess(ctx)
}

func frontmostDarwin(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-e",
		`tell application "System Events" to get name of first application process whose frontmost is true`,
	).Output()
	if err != nil {
		return "", xerrors.Errorf("osascript: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func busiestProcess(ctx context.Context) (string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return "", xerrors.Errorf("list processes: %w", err)
	}
	var (
		best    string
		bestCPU = -1.0
	)
	for _, proc := range procs {
		cpu, err := proc.CPUPercentWithContext(ctx)
		if err != nil || cpu <= bestCPU {
			continue
		}
		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		best, bestCPU = name, cpu
	}
	if best == "" {
		return "", xerrors.New("no foreground candidate")
	}
	return best, nil
}
