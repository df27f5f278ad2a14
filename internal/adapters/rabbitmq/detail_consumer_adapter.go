package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/usecase"
	"cian-pipeline/pkg/rabbitmq/rabbitmq_consumer"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DetailConsumerAdapter реализует EventListenerPort: слушает очередь задач
// обогащения и передает их в use case.
type DetailConsumerAdapter struct {
	consumer *rabbitmq_consumer.Consumer
	enricher *usecase.EnrichListingUseCase
}

// NewDetailConsumerAdapter создает новый экземпляр адаптера.
func NewDetailConsumerAdapter(cfg rabbitmq_consumer.ConsumerConfig, enricher *usecase.EnrichListingUseCase) (*DetailConsumerAdapter, error) {
	if enricher == nil {
		return nil, fmt.Errorf("detail consumer adapter: enricher cannot be nil")
	}

	a := &DetailConsumerAdapter{enricher: enricher}

	consumer, err := rabbitmq_consumer.NewConsumer(cfg, a.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("detail consumer adapter: failed to create consumer: %w", err)
	}
	a.consumer = consumer
	return a, nil
}

// Start запускает обработку очереди. Блокирует до отмены контекста.
func (a *DetailConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close закрывает потребителя.
func (a *DetailConsumerAdapter) Close() error {
	return a.consumer.Close()
}

// handleMessage разбирает задачу и выполняет обогащение. Нечитаемые
// сообщения подтверждаются и отбрасываются, заблокированные записи
// возвращаются в очередь.
func (a *DetailConsumerAdapter) handleMessage(d amqp.Delivery) (bool, bool, error) {
	var link domain.ListingLink
	if err := json.Unmarshal(d.Body, &link); err != nil {
		return true, false, fmt.Errorf("failed to unmarshal detail task: %w", err)
	}
	if !link.Valid() {
		return true, false, fmt.Errorf("detail task is missing cian_id or url")
	}

	err := a.enricher.Execute(context.Background(), link)
	if err != nil {
		if errors.Is(err, usecase.ErrRecordLocked) {
			log.Printf("DetailConsumer: cian_id %d is locked, requeueing.\n", link.CianID)
			return false, true, nil
		}
		return false, false, fmt.Errorf("failed to enrich cian_id %d: %w", link.CianID, err)
	}
	return true, false, nil
}
