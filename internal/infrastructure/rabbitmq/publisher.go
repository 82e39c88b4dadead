package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"purchases/internal/domain"
)

var ErrNotConnected = errors.New("rabbitmq: not connected")

type Publisher struct {
	client   *Client
	exchange string
	service  string
	logger   *zap.Logger
}

func NewPublisher(client *Client, exchange, service string, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, exchange: exchange, service: service, logger: logger}
}

// RoutingKey is "<service>.<event type>", e.g. purchases-service.order.paid.
func RoutingKey(service string, eventType domain.OrderEventType) string {
	return fmt.Sprintf("%s.%s", service, eventType)
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	msg, err := buildPublishing(event, p.service)
	if err != nil {
		return err
	}

	routingKey := RoutingKey(p.service, event.Type)
	if err := p.client.Channel().Publish(p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", event.Type, err)
	}

	p.logger.Debug("event published", zap.String("routingKey", routingKey), zap.String("orderId", event.OrderID))
	return nil
}

func buildPublishing(event domain.OrderEvent, service string) (amqp.Publishing, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encoding event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		AppId:        service,
		Headers: amqp.Table{
			"order_id":   event.OrderID,
			"event_type": string(event.Type),
		},
	}, nil
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.OrderEvent) error {
	return nil
}
