// Package feed turns a raw position provider into a filtered, restartable
// stream of fixes for the on-device agent.
package feed

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"safetrack-backend/internal/models"
)

// EventKind tags the entries of a subscription stream.
type EventKind int

const (
	// EventValue carries a position fix.
	EventValue EventKind = iota
	// EventError carries a provider failure; the stream ends after it and
	// the consumer may retry by subscribing again.
	EventError
	// EventClosed marks the end of the stream. Always the last event.
	EventClosed
)

// Event is the tagged union emitted by a Subscription.
type Event struct {
	Kind EventKind
	Fix  models.Fix
	Err  error
}

// Provider is a source of raw position fixes. Next blocks until a fix is
// available, the context is cancelled, or the source is exhausted (io.EOF).
type Provider interface {
	Next(ctx context.Context) (models.Fix, error)
}

// ErrNoFix is returned by Current when no fix can be obtained and none has
// been seen before.
var ErrNoFix = errors.New("no position fix available")

// Feed filters a provider down to usable fixes and remembers the last one.
type Feed struct {
	provider Provider
	timeout  time.Duration

	mu        sync.Mutex
	lastKnown *models.Fix
}

// New creates a feed over the given provider. timeout bounds Current's wait
// for a fresh fix.
func New(provider Provider, timeout time.Duration) *Feed {
	return &Feed{provider: provider, timeout: timeout}
}

// LastKnown returns the most recent accepted fix, or nil.
func (f *Feed) LastKnown() *models.Fix {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastKnown == nil {
		return nil
	}
	fix := *f.lastKnown
	return &fix
}

func (f *Feed) remember(fix models.Fix) {
	f.mu.Lock()
	f.lastKnown = &fix
	f.mu.Unlock()
}

// Current returns a fresh fix, falling back to the last known one when the
// provider cannot produce one within the feed's timeout.
func (f *Feed) Current(ctx context.Context) (models.Fix, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	for {
		fix, err := f.provider.Next(ctx)
		if err != nil {
			if last := f.LastKnown(); last != nil {
				return *last, nil
			}
			return models.Fix{}, ErrNoFix
		}
		if fix.Accuracy > models.MaxFixAccuracy {
			continue
		}
		f.remember(fix)
		return fix, nil
	}
}

// Subscription is a cancellable stream of feed events.
type Subscription struct {
	events chan Event
	cancel context.CancelFunc
	once   sync.Once
}

// Events returns the event stream. Channel close is the definitive end of
// the stream; after cancellation the terminal EventClosed may be dropped if
// the buffer is full.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Cancel stops the stream. Safe to call more than once; the stream simply
// stops emitting, no partial results are flushed.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Subscribe starts pulling fixes from the provider. Fixes with accuracy
// worse than models.MaxFixAccuracy are dropped silently. The subscription
// ends with EventError (provider failure) or plain EventClosed
// (cancellation or source exhausted).
func (f *Feed) Subscribe(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan Event, 16),
		cancel: cancel,
	}

	// The terminal send must never block: a cancelled consumer may have
	// stopped draining with the buffer full, and the producer has to exit.
	closed := func() {
		select {
		case sub.events <- Event{Kind: EventClosed}:
		default:
		}
	}

	go func() {
		defer close(sub.events)
		for {
			fix, err := f.provider.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					select {
					case sub.events <- Event{Kind: EventError, Err: err}:
					case <-ctx.Done():
					}
				}
				closed()
				return
			}
			if fix.Accuracy > models.MaxFixAccuracy {
				continue
			}
			f.remember(fix)
			select {
			case sub.events <- Event{Kind: EventValue, Fix: fix}:
			case <-ctx.Done():
				closed()
				return
			}
		}
	}()

	return sub
}
