package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"skillfund/pkg/metrics"
	"skillfund/pkg/otel"
	"skillfund/pkg/trace"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger
}

// NewConsumer binds the notify queue of routingKey to the events exchange
// and prepares its dead letter queue.
func NewConsumer(url, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := Dial(url, "skillfund-worker:"+routingKey)
	if err != nil {
		return nil, err
	}
	ch, err := openChannel(conn)
	if err != nil {
		return nil, err
	}
	queueName := NotifyQueue(routingKey)

	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if err := bindDeadLetterQueue(ch, routingKey); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(20, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	consumerTag := "skillfund-" + c.queue.Name
	deliveries, err := c.channel.Consume(
		c.queue.Name,
		consumerTag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			_ = c.channel.Cancel(consumerTag, false)
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for queue %s", c.queue.Name)
			}
			c.handle(ctx, msg)
		}
	}
}

// 消费结果
const (
	outcomeAck     = "ack"
	outcomeRequeue = "requeue"
	outcomeDrop    = "drop"
)

// handle restores the producer's trace and settles the delivery exactly once.
func (c *Consumer) handle(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := otel.ExtractMQHeaders(parent, msg.Headers)
	if traceID, ok := msg.Headers["trace_id"].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	outcome := c.settle(ctx, msg)
	metrics.RecordMQConsumeLatency(c.routingKey, outcome, time.Since(start))
}

// settle runs the handler: nil acks, an error requeues, a panic drops the
// message without requeue.
func (c *Consumer) settle(ctx context.Context, msg amqp091.Delivery) (outcome string) {
	log := c.logger.With(zap.String("routing_key", c.routingKey), zap.Uint64("delivery_tag", msg.DeliveryTag))

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Error("Handler panic recovered", zap.Any("panic", r))
		if err := msg.Nack(false, false); err != nil {
			log.Error("Failed to nack message after panic", zap.Error(err))
		}
		outcome = outcomeDrop
	}()

	if err := c.handler(ctx, msg.Body); err != nil {
		log.Error("Handler error, requeueing", zap.Bool("redelivered", msg.Redelivered), zap.Error(err))
		if err := msg.Nack(false, true); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return outcomeRequeue
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
	}
	return outcomeAck
}
