// Package broadcaster replicates journaled rounds from the outbox to the
// audit topic so other nodes can compare digests.
package broadcaster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"poolbook/codec"
	exitwal "poolbook/infra/wal/exit"
)

// MaxRetries is how many failed sends an entry gets before it is marked
// FAILED and left for an operator.
const MaxRetries = 5

type Outbox interface {
	ScanPending(fn func(seq uint64, rec exitwal.Record) error) error
	ScanByState(state exitwal.State, fn func(seq uint64, rec exitwal.Record) error) error
	MarkSent(seq uint64, retries uint32) error
	MarkAcked(seq uint64) error
	MarkFailed(seq uint64, retries uint32) error
	Delete(seq uint64) error
}

type Broadcaster struct {
	outbox   Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewProducer dials brokers with acks from all in-sync replicas,
// retrying while the cluster comes up.
func NewProducer(ctx context.Context, brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	var err error
	for i := 0; i < 10; i++ {
		var prod sarama.SyncProducer
		prod, err = sarama.NewSyncProducer(brokers, cfg)
		if err == nil {
			return prod, nil
		}
		slog.Warn("BROADCASTER: waiting for kafka", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("failed to start producer after retries: %w", err)
}

func New(outbox Outbox, producer sarama.SyncProducer, topic string, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: interval,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	slog.Info("BROADCASTER: started", "topic", b.topic)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				slog.Error("BROADCASTER: flush failed", "error", err)
			}
		}
	}
}

// Flush sends every pending entry once and deletes it once delivered.
// A failed send stays pending until it runs out of retries. FAILED
// entries stay for an operator.
func (b *Broadcaster) Flush() error {
	// ACKED entries left by a crash between ack and delete.
	if err := b.outbox.ScanByState(exitwal.StateAcked, func(seq uint64, _ exitwal.Record) error {
		return b.outbox.Delete(seq)
	}); err != nil {
		return err
	}

	return b.outbox.ScanPending(func(seq uint64, rec exitwal.Record) error {
		retries := rec.Retries + 1

		msg, err := b.message(seq, rec.Payload)
		if err != nil {
			slog.Error("BROADCASTER: undecodable round", "seq", seq, "error", err)
			return b.outbox.MarkFailed(seq, retries)
		}

		if err := b.outbox.MarkSent(seq, retries); err != nil {
			return err
		}

		if _, _, err := b.producer.SendMessage(msg); err != nil {
			if retries >= MaxRetries {
				slog.Error("BROADCASTER: giving up", "seq", seq, "retries", retries, "error", err)
				return b.outbox.MarkFailed(seq, retries)
			}
			slog.Warn("BROADCASTER: send failed", "seq", seq, "retries", retries, "error", err)
			return nil
		}

		if err := b.outbox.MarkAcked(seq); err != nil {
			return err
		}
		return b.outbox.Delete(seq)
	})
}

func (b *Broadcaster) message(seq uint64, payload []byte) (*sarama.ProducerMessage, error) {
	r, err := codec.DecodeRound(payload)
	if err != nil {
		return nil, err
	}

	headers := []sarama.RecordHeader{
		{Key: []byte("seq"), Value: []byte(strconv.FormatUint(seq, 10))},
	}
	if !r.Aborted() {
		d := codec.DigestOf(r.Book)
		headers = append(headers, sarama.RecordHeader{Key: []byte("digest"), Value: []byte(d.String())})
	}

	return &sarama.ProducerMessage{
		Topic:   b.topic,
		Key:     sarama.ByteEncoder(r.Pool[:]),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}, nil
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
