package port

import (
	"context"

	"cian-pipeline/internal/core/domain"
)

// ProductionExportPort — выгрузка production-витрины во внешний формат.
type ProductionExportPort interface {
	Export(ctx context.Context, listings []domain.ProductionListing) error
}
