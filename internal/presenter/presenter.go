// Package presenter shows feed items to the user and reports what the user
// did with them.
//
// Present returns as soon as the item is visible. The returned Signal carries
// at most one Action and is then closed; a Signal closed without a value
// means the user took no action (or the backend cannot report one).
package presenter

import (
	"context"
	"errors"

	"ghnotifier/internal/feed"
)

// Action is the user's response to a presented item.
type Action int

const (
	ActionOpen Action = iota + 1
	ActionDismiss
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionDismiss:
		return "dismiss"
	default:
		return "none"
	}
}

// Signal is a one-shot action channel.
type Signal <-chan Action

type Presenter interface {
	Present(ctx context.Context, it feed.Item) (Signal, error)
}

// Driver is a Presenter that owns resources.
type Driver interface {
	Presenter
	Close() error
}

// ErrUnavailable is returned when the presentation backend cannot be reached.
var ErrUnavailable = errors.New("presenter unavailable")

// Resolved returns a Signal that already carries a.
func Resolved(a Action) Signal {
	ch := make(chan Action, 1)
	ch <- a
	close(ch)
	return ch
}

// NoAction returns a Signal that is closed without a value.
func NoAction() Signal {
	ch := make(chan Action)
	close(ch)
	return ch
}

// Wait blocks until sig resolves or ctx is done. ok is false when the signal
// was closed without an action or ctx ended first.
func Wait(ctx context.Context, sig Signal) (a Action, ok bool) {
	if sig == nil {
		return 0, false
	}
	select {
	case a, ok = <-sig:
		return a, ok
	case <-ctx.Done():
		return 0, false
	}
}

// oneShot is the sending side of a Signal.
type oneShot struct {
	ch   chan Action
	done bool
}

func newOneShot() *oneShot { return &oneShot{ch: make(chan Action, 1)} }

func (o *oneShot) signal() Signal { return o.ch }

// resolve delivers a and closes; callers serialize access.
func (o *oneShot) resolve(a Action) {
	if o.done {
		return
	}
	o.done = true
	o.ch <- a
	close(o.ch)
}

func (o *oneShot) abandon() {
	if o.done {
		return
	}
	o.done = true
	close(o.ch)
}
