// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/recommend"
)

const waitTimeout = 2 * time.Second

// subscribe starts SubscribeModels in the background and returns the channel
// of received events and the channel of its return value.
func subscribe(t *testing.T, ctx context.Context, b *Bus, fail func(recommend.ModelPublishedEvent) error) (<-chan recommend.ModelPublishedEvent, <-chan error) {
	t.Helper()
	got := make(chan recommend.ModelPublishedEvent, 16)
	done := make(chan error, 1)
	go func() {
		done <- b.SubscribeModels(ctx, func(_ context.Context, evt recommend.ModelPublishedEvent) error {
			got <- evt
			if fail != nil {
				return fail(evt)
			}
			return nil
		})
	}()
	return got, done
}

// publishUntilReceived republishes evt until the subscriber reports it, since
// messages sent before the subscription registers are dropped.
func publishUntilReceived(t *testing.T, b *Bus, evt recommend.ModelPublishedEvent, got <-chan recommend.ModelPublishedEvent) recommend.ModelPublishedEvent {
	t.Helper()
	deadline := time.After(waitTimeout)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		if err := b.PublishModel(context.Background(), evt); err != nil {
			t.Fatalf("PublishModel() error = %v", err)
		}
		select {
		case received := <-got:
			return received
		case <-tick.C:
		case <-deadline:
			t.Fatal("timed out waiting for model event")
		}
	}
}

func TestBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()

	b := NewBus(DefaultConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, _ := subscribe(t, ctx, b, nil)

	sent := recommend.ModelPublishedEvent{
		Version:     7,
		RunID:       "run-7",
		PublishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	received := publishUntilReceived(t, b, sent, got)

	if received.Version != sent.Version || received.RunID != sent.RunID || !received.PublishedAt.Equal(sent.PublishedAt) {
		t.Errorf("received %+v, want %+v", received, sent)
	}
}

func TestBus_HandlerErrorKeepsSubscription(t *testing.T) {
	t.Parallel()

	b := NewBus(DefaultConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, _ := subscribe(t, ctx, b, func(evt recommend.ModelPublishedEvent) error {
		if evt.Version == 1 {
			return errors.New("refresh failed")
		}
		return nil
	})

	publishUntilReceived(t, b, recommend.ModelPublishedEvent{Version: 1}, got)
	if err := b.PublishModel(context.Background(), recommend.ModelPublishedEvent{Version: 2}); err != nil {
		t.Fatalf("PublishModel() error = %v", err)
	}
	waitForVersion(t, got, 2)
}

// waitForVersion drains got until an event with the given version arrives.
// Extra copies left over from publishUntilReceived are skipped.
func waitForVersion(t *testing.T, got <-chan recommend.ModelPublishedEvent, version int) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case evt := <-got:
			if evt.Version == version {
				return
			}
		case <-deadline:
			t.Fatalf("version %d never delivered", version)
		}
	}
}

func TestBus_SkipsUndecodablePayload(t *testing.T) {
	t.Parallel()

	b := NewBus(DefaultConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, _ := subscribe(t, ctx, b, nil)

	// Make sure the subscription is live before sending garbage.
	publishUntilReceived(t, b, recommend.ModelPublishedEvent{Version: 1}, got)

	if err := b.pubsub.Publish(TopicModelPublished, message.NewMessage("garbage", []byte("{not json"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := b.PublishModel(context.Background(), recommend.ModelPublishedEvent{Version: 2}); err != nil {
		t.Fatalf("PublishModel() error = %v", err)
	}

	waitForVersion(t, got, 2)
}

func TestBus_ContextCancelEndsSubscription(t *testing.T) {
	t.Parallel()

	b := NewBus(DefaultConfig(), zerolog.Nop())
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	_, done := subscribe(t, ctx, b, nil)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("SubscribeModels() error = %v, want nil or context.Canceled", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("SubscribeModels() did not return after cancel")
	}
}

func TestBus_Close(t *testing.T) {
	t.Parallel()

	b := NewBus(DefaultConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got, done := subscribe(t, ctx, b, nil)
	publishUntilReceived(t, b, recommend.ModelPublishedEvent{Version: 1}, got)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("SubscribeModels() after Close error = %v, want nil", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("SubscribeModels() did not return after Close")
	}

	if err := b.PublishModel(context.Background(), recommend.ModelPublishedEvent{Version: 2}); !errors.Is(err, ErrClosed) {
		t.Errorf("PublishModel() after Close error = %v, want ErrClosed", err)
	}
	if err := b.SubscribeModels(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("SubscribeModels() after Close error = %v, want ErrClosed", err)
	}
}
