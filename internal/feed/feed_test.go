package feed

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"safetrack-backend/internal/models"
)

type fakeProvider struct {
	fixes []models.Fix
	err   error
	i     int
}

func (p *fakeProvider) Next(ctx context.Context) (models.Fix, error) {
	if err := ctx.Err(); err != nil {
		return models.Fix{}, err
	}
	if p.i >= len(p.fixes) {
		if p.err != nil {
			return models.Fix{}, p.err
		}
		return models.Fix{}, io.EOF
	}
	fix := p.fixes[p.i]
	p.i++
	return fix, nil
}

func collect(t *testing.T, sub *Subscription) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v so far", events)
		}
	}
}

func TestSubscribeFiltersAccuracy(t *testing.T) {
	provider := &fakeProvider{fixes: []models.Fix{
		{Latitude: 1, Accuracy: 10},
		{Latitude: 2, Accuracy: 80},
		{Latitude: 3, Accuracy: 50},
		{Latitude: 4, Accuracy: 50.1},
	}}

	f := New(provider, time.Second)
	events := collect(t, f.Subscribe(context.Background()))

	var values []models.Fix
	for _, ev := range events {
		if ev.Kind == EventValue {
			values = append(values, ev.Fix)
		}
	}
	if len(values) != 2 || values[0].Latitude != 1 || values[1].Latitude != 3 {
		t.Fatalf("expected fixes with accuracy <= 50, got %v", values)
	}
	if last := events[len(events)-1]; last.Kind != EventClosed {
		t.Fatalf("stream must end with EventClosed, got %v", last)
	}
}

func TestSubscribeProviderFailure(t *testing.T) {
	wantErr := errors.New("gps went away")
	provider := &fakeProvider{
		fixes: []models.Fix{{Latitude: 1, Accuracy: 5}},
		err:   wantErr,
	}

	f := New(provider, time.Second)
	events := collect(t, f.Subscribe(context.Background()))

	if len(events) != 3 {
		t.Fatalf("expected value, error, closed; got %v", events)
	}
	if events[1].Kind != EventError || !errors.Is(events[1].Err, wantErr) {
		t.Fatalf("expected provider error event, got %v", events[1])
	}
	if events[2].Kind != EventClosed {
		t.Fatalf("expected closed after error, got %v", events[2])
	}
}

func TestSubscribeCancel(t *testing.T) {
	// A provider that blocks until cancelled.
	blocked := &blockingProvider{}
	f := New(blocked, time.Second)

	sub := f.Subscribe(context.Background())
	sub.Cancel()
	sub.Cancel() // idempotent

	events := collect(t, sub)
	if len(events) == 0 || events[len(events)-1].Kind != EventClosed {
		t.Fatalf("cancelled stream must end with EventClosed, got %v", events)
	}
	for _, ev := range events {
		if ev.Kind == EventError {
			t.Fatalf("cancellation must not surface as an error, got %v", events)
		}
	}
}

func TestSubscribeCancelWithFullBuffer(t *testing.T) {
	// An endless provider outruns a consumer that never reads.
	endless := &endlessProvider{}
	f := New(endless, time.Second)

	sub := f.Subscribe(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(sub.events) < cap(sub.events) {
		if time.Now().After(deadline) {
			t.Fatalf("buffer never filled, %d of %d", len(sub.events), cap(sub.events))
		}
		time.Sleep(time.Millisecond)
	}

	sub.Cancel()

	// The producer must exit and close the channel even though nothing was
	// drained before cancellation.
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("stream did not terminate after Cancel with an undrained buffer")
		}
	}
}

type endlessProvider struct{ n int }

func (p *endlessProvider) Next(ctx context.Context) (models.Fix, error) {
	if err := ctx.Err(); err != nil {
		return models.Fix{}, err
	}
	p.n++
	return models.Fix{Latitude: float64(p.n), Accuracy: 5}, nil
}

type blockingProvider struct{}

func (p *blockingProvider) Next(ctx context.Context) (models.Fix, error) {
	<-ctx.Done()
	return models.Fix{}, ctx.Err()
}

func TestCurrentFallsBackToLastKnown(t *testing.T) {
	provider := &fakeProvider{fixes: []models.Fix{{Latitude: 7, Accuracy: 10}}}
	f := New(provider, 50*time.Millisecond)

	fix, err := f.Current(context.Background())
	if err != nil || fix.Latitude != 7 {
		t.Fatalf("expected fresh fix, got %v err=%v", fix, err)
	}

	// Provider is now exhausted; Current must fall back.
	fix, err = f.Current(context.Background())
	if err != nil || fix.Latitude != 7 {
		t.Fatalf("expected last known fix fallback, got %v err=%v", fix, err)
	}
}

func TestCurrentNoFix(t *testing.T) {
	f := New(&fakeProvider{}, 10*time.Millisecond)
	if _, err := f.Current(context.Background()); !errors.Is(err, ErrNoFix) {
		t.Fatalf("expected ErrNoFix, got %v", err)
	}
}

func TestReplayProvider(t *testing.T) {
	input := strings.Join([]string{
		`{"lat": 52.5, "lon": 13.4, "accuracy": 8}`,
		`{"lat": 52.6, "lon": 13.5, "accuracy": 12}`,
	}, "\n")

	p := NewReplayProvider(strings.NewReader(input), 0)

	first, err := p.Next(context.Background())
	if err != nil || first.Latitude != 52.5 {
		t.Fatalf("unexpected first fix %v err=%v", first, err)
	}
	if first.Time.IsZero() {
		t.Fatalf("replay must stamp fixes lacking a time")
	}

	if _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("unexpected error on second fix: %v", err)
	}
	if _, err := p.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of recording, got %v", err)
	}
}
