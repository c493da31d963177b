package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "skillfund.events"
	DLQExchangeName = "skillfund.events.dlq"

	heartbeat = 10 * time.Second
)

// NotifyQueue 通知 worker 为每个 routing key 使用的队列名
func NotifyQueue(routingKey string) string {
	return routingKey + ".notify.q"
}

// DeadLetterQueue is the parking queue for messages of routingKey that gave up.
func DeadLetterQueue(routingKey string) string {
	return routingKey + ".dlq"
}

// Dial opens a connection labelled with name in the broker's management UI.
func Dial(url, name string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName(name)

	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// declareExchanges declares the events exchange and its dead letter twin.
// Both are durable topic exchanges.
func declareExchanges(ch *amqp091.Channel) error {
	for _, name := range []string{ExchangeName, DLQExchangeName} {
		if err := ch.ExchangeDeclare(name, amqp091.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// openChannel opens a channel on conn with the exchanges in place. The
// connection is closed when anything fails.
func openChannel(conn *amqp091.Connection) (*amqp091.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchanges(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return ch, nil
}
