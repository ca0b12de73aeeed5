package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"liveassist/internal/entities"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const maxDialDelay = 60 * time.Second

// EventMeta is the envelope header of a published event.
type EventMeta struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Producer string    `json:"producer"`
	Time     time.Time `json:"time"`
}

// Envelope is the message body published to the exchange.
type Envelope struct {
	Meta EventMeta      `json:"meta"`
	Data entities.Event `json:"data"`
}

func NewEnvelope(ev entities.Event) Envelope {
	return Envelope{
		Meta: EventMeta{
			ID:       ev.ID,
			Type:     string(ev.Type) + ".v1",
			Producer: "liveassist",
			Time:     ev.Time,
		},
		Data: ev,
	}
}

// RoutingKey is "<tenant>.<event type>", e.g. "acme.request.claimed".
func RoutingKey(ev entities.Event) string {
	return ev.TenantID + "." + string(ev.Type)
}

// DialWithRetry connects to RabbitMQ with exponential backoff, giving up
// after attempts tries or when ctx is cancelled.
func DialWithRetry(ctx context.Context, url string, attempts int, delay time.Duration, log zerolog.Logger) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			if i > 1 {
				log.Info().Int("attempt", i).Msg("rabbit connected")
			}
			return conn, nil
		}
		lastErr = err

		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		log.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("rabbit dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, lastErr)
}

// AMQPNotifier publishes events to a topic exchange.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

func NewAMQPNotifier(conn *amqp091.Connection, exchange string, log zerolog.Logger) (*AMQPNotifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPNotifier{
		conn:     conn,
		exchange: exchange,
		log:      log.With().Str("component", "amqp").Logger(),
	}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, ev entities.Event) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return err
	}

	key := RoutingKey(ev)
	err = ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     ev.ID,
		CorrelationId: ev.RequestID,
		Timestamp:     ev.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	n.log.Debug().Str("key", key).Str("exchange", n.exchange).Msg("published")
	return nil
}

func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}
