package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"poolbook/codec"
	"poolbook/domain/orderbook"
)

// ErrSkip marks a handler error for an order that can never be accepted.
// The message is logged and committed instead of redelivered.
var ErrSkip = errors.New("kafka: skip message")

// OrderHandler receives each decoded order. An error wrapping ErrSkip
// drops the message. Any other error retries the same message with
// backoff until the handler succeeds or ctx ends.
type OrderHandler func(ctx context.Context, o orderbook.Order) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

const (
	retryBase = 100 * time.Millisecond
	retryMax  = 5 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader    messageReader
	retryBase time.Duration
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			GroupID:     cfg.GroupID,
			StartOffset: kafka.FirstOffset,
			MinBytes:    1,
			MaxBytes:    10 << 20,
		}),
		retryBase: retryBase,
	}
}

// Run consumes until ctx is cancelled. Messages that do not decode as an
// order, or that the handler skips, are logged and committed so they
// cannot block the partition.
func (c *Consumer) Run(ctx context.Context, fn OrderHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		if err := c.deliver(ctx, msg, fn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// deliver hands msg to fn, retrying transient failures. It returns only
// once the message may be committed or ctx has ended.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, fn OrderHandler) error {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := handleMessage(ctx, msg, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, codec.ErrMalformed):
			slog.Warn("INTAKE: dropping malformed order",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			return nil
		case errors.Is(err, ErrSkip):
			slog.Warn("INTAKE: dropping rejected order",
				"partition", msg.Partition, "offset", msg.Offset, "error", err)
			return nil
		}

		slog.Error("INTAKE: handler failed, retrying",
			"partition", msg.Partition, "offset", msg.Offset, "attempt", attempt, "backoff", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, retryMax)
	}
}

func handleMessage(ctx context.Context, msg kafka.Message, fn OrderHandler) error {
	o, err := codec.DecodeOrder(msg.Value)
	if err != nil {
		return err
	}
	if err := fn(ctx, o); err != nil {
		return fmt.Errorf("handle order at offset %d: %w", msg.Offset, err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
