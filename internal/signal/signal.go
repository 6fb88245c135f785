// Package signal defines the activity signal shared by every platform
// adapter and the adapters that produce it.
package signal

import (
	"context"
	"time"
)

type Kind string

const (
	// KindFocus reports the identity now in the foreground. An empty
	// identity means nothing is in focus.
	KindFocus Kind = "focus"
	// KindRequest reports request-like activity from the context that owns
	// the identity.
	KindRequest Kind = "request"
	// KindSuspend reports that the source is about to stop observing.
	KindSuspend Kind = "suspend"
)

type Signal struct {
	At       time.Time
	Kind     Kind
	Identity string
}

// Source produces signals until ctx is done or the source is exhausted, then
// closes the returned channel.
type Source interface {
	Signals(ctx context.Context) <-chan Signal
}
