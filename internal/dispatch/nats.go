package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ahmethakanbesel/mining-reports/internal/job"
)

// ConnectNATS dials url and keeps reconnecting for the life of the process.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("report-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSDispatcher publishes job ids on a subject.
type NATSDispatcher struct {
	nc      natsPublisher
	subject string
}

var _ job.Dispatcher = (*NATSDispatcher)(nil)

func NewNATSDispatcher(nc *nats.Conn, subject string) *NATSDispatcher {
	return &NATSDispatcher{nc: nc, subject: subject}
}

func (d *NATSDispatcher) Dispatch(_ context.Context, id int64) error {
	data, err := Encode(id)
	if err != nil {
		return err
	}
	if err := d.nc.Publish(d.subject, data); err != nil {
		return fmt.Errorf("publish job %d on %s: %w", id, d.subject, err)
	}
	return nil
}

// NATSConsumer receives job ids through a queue group and hands them to a
// local dispatcher, normally a job.Pool.
type NATSConsumer struct {
	nc      *nats.Conn
	subject string
	queue   string
	target  job.Dispatcher
}

func NewNATSConsumer(nc *nats.Conn, subject, queue string, target job.Dispatcher) *NATSConsumer {
	return &NATSConsumer{nc: nc, subject: subject, queue: queue, target: target}
}

// Run subscribes and blocks until ctx is cancelled, then drains the
// subscription.
func (c *NATSConsumer) Run(ctx context.Context) error {
	sub, err := c.nc.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		c.handle(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	slog.Info("nats consumer started", "subject", c.subject, "queue", c.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		slog.Warn("nats consumer: drain", "error", err)
	}
	return nil
}

func (c *NATSConsumer) handle(ctx context.Context, msg *nats.Msg) {
	id, err := Decode(msg.Data)
	if err != nil {
		slog.Error("nats consumer: dropping message", "subject", msg.Subject, "error", err)
		return
	}
	if err := c.target.Dispatch(ctx, id); err != nil {
		slog.Error("nats consumer: dispatch", "job", id, "error", err)
	}
}
