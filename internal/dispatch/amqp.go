package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ahmethakanbesel/mining-reports/internal/job"
)

// AMQPClient owns a RabbitMQ connection and channel.
type AMQPClient struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func DialAMQP(url string) (*AMQPClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return &AMQPClient{conn: conn, ch: ch}, nil
}

// DeclareQueue declares the durable job queue. Idempotent.
func (c *AMQPClient) DeclareQueue(name string) error {
	if _, err := c.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

func (c *AMQPClient) Close() {
	_ = c.ch.Close()
	_ = c.conn.Close()
}

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDispatcher publishes job ids to a queue through the default exchange.
type AMQPDispatcher struct {
	ch    amqpPublisher
	queue string
}

var _ job.Dispatcher = (*AMQPDispatcher)(nil)

func NewAMQPDispatcher(c *AMQPClient, queue string) *AMQPDispatcher {
	return &AMQPDispatcher{ch: c.ch, queue: queue}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, id int64) error {
	body, err := Encode(id)
	if err != nil {
		return err
	}

	err = d.ch.PublishWithContext(ctx,
		"",      // default exchange
		d.queue, // routing key is the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish job %d to %s: %w", id, d.queue, err)
	}
	return nil
}

// AMQPConsumer takes job ids off a queue and hands them to a local
// dispatcher.
type AMQPConsumer struct {
	client *AMQPClient
	queue  string
	target job.Dispatcher
}

func NewAMQPConsumer(c *AMQPClient, queue string, target job.Dispatcher) *AMQPConsumer {
	return &AMQPConsumer{client: c, queue: queue, target: target}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	deliveries, err := c.client.ch.ConsumeWithContext(ctx,
		c.queue,
		"",    // consumer
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	slog.Info("amqp consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("amqp delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *AMQPConsumer) handle(ctx context.Context, d amqp.Delivery) {
	id, err := Decode(d.Body)
	if err != nil {
		slog.Error("amqp consumer: rejecting message", "messageId", d.MessageId, "error", err)
		_ = d.Reject(false)
		return
	}

	if err := c.target.Dispatch(ctx, id); err != nil {
		// Not started here, so another consumer may take it.
		slog.Warn("amqp consumer: requeue", "job", id, "error", err)
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		slog.Error("amqp consumer: ack", "job", id, "error", err)
	}
}
