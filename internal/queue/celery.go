package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// celeryEnvelope is the Celery protocol v1 message body. The task payload
// rides in kwargs; args stays empty because workers take keyword-only
// parameters.
type celeryEnvelope struct {
	Task    string      `json:"task"`
	ID      string      `json:"id"`
	Args    []any       `json:"args"`
	Kwargs  TaskMessage `json:"kwargs"`
	Retries int         `json:"retries"`
}

// CeleryConfig parameterizes the RabbitMQ-backed Celery producer.
type CeleryConfig struct {
	BrokerURL string
	TaskName  string
	QueueName string
}

// CeleryProvider publishes protocol v1 task messages to a RabbitMQ queue
// consumed by Celery workers.
type CeleryProvider struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     CeleryConfig
}

// NewCeleryProvider connects to the broker and declares the durable task
// queue. Declaration is idempotent; it fails fast if the queue exists with
// incompatible attributes.
func NewCeleryProvider(cfg CeleryConfig) (*CeleryProvider, error) {
	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		cfg.QueueName, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", cfg.QueueName, err)
	}

	return &CeleryProvider{conn: conn, channel: ch, cfg: cfg}, nil
}

// Publish wraps the task message in a Celery envelope and sends it with
// persistent delivery through the default exchange.
func (p *CeleryProvider) Publish(ctx context.Context, msg TaskMessage) error {
	body, err := EncodeCeleryTask(p.cfg.TaskName, msg)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		"",              // default exchange routes by queue name
		p.cfg.QueueName, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish task for %s: %w", msg.ReceiptNo, err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *CeleryProvider) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

// EncodeCeleryTask renders one protocol v1 envelope with a fresh task ID.
func EncodeCeleryTask(taskName string, msg TaskMessage) ([]byte, error) {
	env := celeryEnvelope{
		Task:    taskName,
		ID:      uuid.NewString(),
		Args:    []any{},
		Kwargs:  msg,
		Retries: 0,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode task envelope: %w", err)
	}
	return body, nil
}
