package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes requests as persistent JSON messages on a durable
// queue consumed by the delivery service.
type AMQPNotifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    publisher
	queue string
}

func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &AMQPNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.ID.String(),
		Timestamp:    time.Now(),
		Type:         string(req.Template),
		Headers: amqp.Table{
			"channel": string(req.Channel),
		},
		Body: body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ch.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
