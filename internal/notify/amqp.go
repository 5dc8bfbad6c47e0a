package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mhalley/gatherd/internal/core"
)

// AMQPNotifier publishes attendee notifications as JSON messages on a topic
// exchange, routing key "attendee.<template>". A downstream mailer consumes
// the queue and renders the actual email.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// notificationMessage is the wire envelope consumed by the mailer.
type notificationMessage struct {
	Template   string `json:"template"`
	AttendeeID string `json:"attendee_id"`
	EventID    string `json:"event_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, template core.NotificationTemplate, attendee core.Attendee) error {
	body, err := json.Marshal(notificationMessage{
		Template:   string(template),
		AttendeeID: attendee.ID,
		EventID:    attendee.EventID,
		Name:       attendee.Name,
		Email:      attendee.Email,
	})
	if err != nil {
		return err
	}

	return n.ch.PublishWithContext(ctx, n.exchange, routingKey(template), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func routingKey(template core.NotificationTemplate) string {
	return "attendee." + string(template)
}
