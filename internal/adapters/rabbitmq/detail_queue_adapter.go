package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cian-pipeline/internal/core/domain"
	"cian-pipeline/pkg/rabbitmq/rabbitmq_producer"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 10 * time.Second

// DetailQueueAdapter реализует DetailQueuePort поверх RabbitMQ-производителя.
type DetailQueueAdapter struct {
	publisher  *rabbitmq_producer.Publisher
	routingKey string
}

// NewDetailQueueAdapter создает новый экземпляр адаптера.
func NewDetailQueueAdapter(publisher *rabbitmq_producer.Publisher, routingKey string) (*DetailQueueAdapter, error) {
	if publisher == nil {
		return nil, fmt.Errorf("detail queue adapter: publisher cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("detail queue adapter: routing key is required")
	}
	return &DetailQueueAdapter{publisher: publisher, routingKey: routingKey}, nil
}

// Enqueue публикует задачу на извлечение деталей объявления.
func (a *DetailQueueAdapter) Enqueue(ctx context.Context, link domain.ListingLink) error {
	body, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal detail task (cian_id: %d): %w", link.CianID, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := a.publisher.Publish(publishCtx, a.routingKey, msg); err != nil {
		return fmt.Errorf("failed to enqueue detail task (cian_id: %d): %w", link.CianID, err)
	}
	return nil
}
