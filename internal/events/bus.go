// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/flixfinder/internal/logging"
	"github.com/tomtom215/flixfinder/internal/metrics"
	"github.com/tomtom215/flixfinder/internal/recommend"
)

// TopicModelPublished is the topic of recommend.ModelPublishedEvent.
const TopicModelPublished = "model.published"

// Metadata keys set on every model message.
const (
	metadataVersion = "model_version"
	metadataRunID   = "run_id"
)

// ErrClosed is returned by operations on a closed Bus.
var ErrClosed = errors.New("events: bus closed")

// Config configures the Bus.
type Config struct {
	// BufferSize is the per-subscriber output channel buffer.
	BufferSize int64 `koanf:"buffer_size" validate:"gte=0"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{BufferSize: 16}
}

// ModelHandler handles a model published event.
type ModelHandler func(ctx context.Context, evt recommend.ModelPublishedEvent) error

// Bus is an in-process event bus. It implements recommend.EventPublisher.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a Bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(cfg Config, logger zerolog.Logger) *Bus {
	logger = logger.With().Str("component", "events").Logger()
	ps := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logging.NewWatermillAdapter(logger))

	return &Bus{pubsub: ps, logger: logger}
}

// PublishModel publishes evt on TopicModelPublished.
func (b *Bus) PublishModel(ctx context.Context, evt recommend.ModelPublishedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode model event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataVersion, strconv.Itoa(evt.Version))
	msg.Metadata.Set(metadataRunID, evt.RunID)

	if err := b.pubsub.Publish(TopicModelPublished, msg); err != nil {
		return fmt.Errorf("publish model event: %w", err)
	}

	metrics.RecordEventPublished(TopicModelPublished)
	b.logger.Debug().
		Str("message_id", msg.UUID).
		Int("version", evt.Version).
		Msg("model event published")
	return nil
}

// SubscribeModels delivers model events to handler until ctx is cancelled or
// the bus is closed. It blocks; run it in its own goroutine or service.
//
// Messages are acknowledged after the handler returns, whatever the outcome.
// Undecodable payloads and handler errors are logged and counted.
func (b *Bus) SubscribeModels(ctx context.Context, handler ModelHandler) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	messages, err := b.pubsub.Subscribe(ctx, TopicModelPublished)
	b.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicModelPublished, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			b.handle(ctx, msg, handler)
		}
	}
}

func (b *Bus) handle(ctx context.Context, msg *message.Message, handler ModelHandler) {
	defer msg.Ack()

	var evt recommend.ModelPublishedEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		err = fmt.Errorf("decode model event %s: %w", msg.UUID, err)
		metrics.RecordEventConsumed(TopicModelPublished, err)
		b.logger.Warn().Err(err).Msg("dropping undecodable model event")
		return
	}

	err := handler(ctx, evt)
	metrics.RecordEventConsumed(TopicModelPublished, err)
	if err != nil {
		b.logger.Warn().Err(err).
			Str("message_id", msg.UUID).
			Int("version", evt.Version).
			Msg("model event handler failed")
	}
}

// Close closes the bus and ends every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

var _ recommend.EventPublisher = (*Bus)(nil)
