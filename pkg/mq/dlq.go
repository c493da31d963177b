package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const sourceWorker = "skillfund-worker"

// bindDeadLetterQueue 为 routingKey 声明 DLQ 队列并绑定到 DLQ exchange
func bindDeadLetterQueue(ch *amqp091.Channel, routingKey string) error {
	q, err := ch.QueueDeclare(DeadLetterQueue(routingKey), true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, DLQExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return nil
}

// PublishToDLQ parks a payload the worker gave up on, keeping the cause in the headers.
func (p *Publisher) PublishToDLQ(ctx context.Context, routingKey string, payload []byte, originalError string) error {
	now := time.Now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel.PublishWithContext(ctx, DLQExchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    now,
		Body:         payload,
		Headers: amqp091.Table{
			"x-original-error": originalError,
			"x-failed-at":      now.Format(time.RFC3339),
			"x-source":         sourceWorker,
		},
	})
}
