// Package kafka publishes poll events to a Kafka topic as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const (
	DefaultTopic = "poll-events"

	queueSize    = 1024
	writeTimeout = 10 * time.Second
)

var (
	ErrQueueFull       = errors.New("kafka publish queue is full")
	ErrPublisherClosed = errors.New("kafka publisher is closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher hands events to a background writer so requests never wait on
// the brokers. Delivery failures are logged, not returned.
type Publisher struct {
	writer messageWriter
	queue  chan kafka.Message
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher keys messages by poll id; the hash balancer keeps every event
// of one poll on the same partition, in order. Writes wait for all in-sync
// replicas.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            5,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(w, queueSize)
}

func newPublisher(w messageWriter, size int) *Publisher {
	p := &Publisher{
		writer: w,
		queue:  make(chan kafka.Message, size),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues the event and returns at once. A full queue drops the
// event with ErrQueueFull.
func (p *Publisher) Publish(ctx context.Context, event domain.PollEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal poll event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PollID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			slog.Error("failed to write poll event to kafka",
				"poll_id", string(msg.Key),
				"type", string(msg.Headers[0].Value),
				"error", err,
			)
		}
	}
}

// Close stops accepting events, flushes the queue and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
