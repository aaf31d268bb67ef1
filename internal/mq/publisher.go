package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeStatusUpdated MessageType = "status.updated"
	MessageTypeJobUpdated    MessageType = "job.updated"
	MessageTypeTaskUpdated   MessageType = "task.updated"
)

// Message — конверт публикуемого сообщения.
type Message struct {
	ID string `json:"id"`

	Type MessageType `json:"type"`

	// JobID — задача супервизора, к которой относится обновление.
	JobID string `json:"job_id"`

	Payload any `json:"payload"`

	Timestamp time.Time `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, jobID string, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		JobID:     jobID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *zap.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение как persistent JSON.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			zap.String("exchange", string(exchange)),
			zap.String("routing_key", string(routingKey)),
			zap.String("message_id", msg.ID),
			zap.String("type", string(msg.Type)),
		)
		return nil
	})
}

// PublishStatus публикует status_set payload.
func (p *Publisher) PublishStatus(ctx context.Context, jobID string, payload any) error {
	return p.Publish(ctx, ExchangeStatus, RoutingKeyStatus, NewMessage(MessageTypeStatusUpdated, jobID, payload))
}

// PublishJob публикует произвольные свойства задачи.
func (p *Publisher) PublishJob(ctx context.Context, jobID string, payload any) error {
	return p.Publish(ctx, ExchangeStatus, RoutingKeyJob, NewMessage(MessageTypeJobUpdated, jobID, payload))
}

// PublishTask публикует task_set payload.
func (p *Publisher) PublishTask(ctx context.Context, jobID string, payload any) error {
	return p.Publish(ctx, ExchangeStatus, RoutingKeyTask, NewMessage(MessageTypeTaskUpdated, jobID, payload))
}
