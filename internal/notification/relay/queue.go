package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"community-notifications/internal/notification"

	"github.com/streadway/amqp"
)

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueMessage is one delivery event, published per recipient for push consumers.
type QueueMessage struct {
	BatchID     string    `json:"batchId"`
	RecipientID string    `json:"recipientId"`
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type QueuePublisher struct {
	channel    Channel
	exchange   string
	routingKey string
}

func NewQueuePublisher(ch Channel, exchange, routingKey string) *QueuePublisher {
	return &QueuePublisher{channel: ch, exchange: exchange, routingKey: routingKey}
}

// OpenChannel dials the broker and declares a durable topic exchange.
func OpenChannel(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to queue: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open queue channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func (p *QueuePublisher) Name() string { return "amqp-queue" }

// OnFanout stops at the first publish error; the broker connection is shared so later
// messages would fail the same way.
func (p *QueuePublisher) OnFanout(ctx context.Context, summary notification.BatchSummary, messages []notification.RenderedMessage) error {
	for n, m := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := json.Marshal(QueueMessage{
			BatchID:     summary.BatchID,
			RecipientID: m.RecipientID,
			Title:       m.Title,
			Link:        summary.Link,
			ImageURL:    summary.ImageURL,
			RecordedAt:  summary.RecordedAt,
		})
		if err != nil {
			return fmt.Errorf("encode message for %s: %w", m.RecipientID, err)
		}

		err = p.channel.Publish(p.exchange, p.routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    summary.BatchID + ":" + m.RecipientID,
			Timestamp:    summary.RecordedAt,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("%w: published %d of %d for batch %s: %w", ErrRelayFailed, n, len(messages), summary.BatchID, err)
		}
	}
	return nil
}
