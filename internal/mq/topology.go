package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// ExchangeStatus — topic-обменник статусов run.
const ExchangeStatus Exchange = "plantit.status"

// QueueStatusEvents — durable очередь для супервизора, получает все обновления.
const QueueStatusEvents Queue = "plantit.status.events"

// Routing keys.
const (
	RoutingKeyStatus RoutingKey = "status"
	RoutingKeyJob    RoutingKey = "job"
	RoutingKeyTask   RoutingKey = "task"

	// RoutingKeyAll — шаблон привязки для всех ключей.
	RoutingKeyAll RoutingKey = "#"
)

// SetupTopology объявляет обменник, очередь и привязку. Повторный вызов безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeStatus), // name
			"topic",                // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeStatus, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueStatusEvents), // name
			true,                      // durable
			false,                     // delete when unused
			false,                     // exclusive
			false,                     // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueStatusEvents, err)
		}

		if err := ch.QueueBind(string(QueueStatusEvents), string(RoutingKeyAll), string(ExchangeStatus), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueStatusEvents, ExchangeStatus, err)
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логов.
func TopologyInfo() string {
	return `
  Plantit RabbitMQ Topology:

    plantit.status (topic)
    └── plantit.status.events [routing: #]
            status | job | task
  `
}
