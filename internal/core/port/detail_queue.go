package port

import (
	"context"

	"cian-pipeline/internal/core/domain"
)

// DetailQueuePort — очередь задач на извлечение деталей объявления.
type DetailQueuePort interface {
	Enqueue(ctx context.Context, link domain.ListingLink) error
}
