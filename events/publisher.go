package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names, one durable queue per event type.
const (
	QueueTaskCompleted      = "task.completed"
	QueueCompletionReverted = "completion.reverted"
)

// Publisher pushes engine events to RabbitMQ. Each publish dials a fresh
// connection and declares the queue idempotently; the broker is optional
// infrastructure and callers treat failures as non-fatal.
type Publisher struct {
	URL string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{URL: url}
}

func (p *Publisher) PublishTaskCompleted(ctx context.Context, event TaskCompletedEvent) error {
	return p.publish(ctx, QueueTaskCompleted, event)
}

func (p *Publisher) PublishCompletionReverted(ctx context.Context, event CompletionRevertedEvent) error {
	return p.publish(ctx, QueueCompletionReverted, event)
}

func (p *Publisher) publish(ctx context.Context, queue string, payload any) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
