package usecase

import (
	"context"
	"fmt"
	"log"

	"cian-pipeline/internal/core/port"
)

// ExportProductionUseCase выгружает production-витрину во внешний формат.
type ExportProductionUseCase struct {
	storage port.ListingStoragePort
	export  port.ProductionExportPort
	limit   int
}

// NewExportProductionUseCase создает новый экземпляр use case.
func NewExportProductionUseCase(storage port.ListingStoragePort, export port.ProductionExportPort, limit int) *ExportProductionUseCase {
	return &ExportProductionUseCase{
		storage: storage,
		export:  export,
		limit:   limit,
	}
}

// Execute читает витрину и передаёт её экспортёру.
func (uc *ExportProductionUseCase) Execute(ctx context.Context) (int, error) {
	listings, err := uc.storage.ProductionListings(ctx, uc.limit)
	if err != nil {
		return 0, fmt.Errorf("use case: failed to load production listings: %w", err)
	}
	if len(listings) == 0 {
		return 0, nil
	}
	if err := uc.export.Export(ctx, listings); err != nil {
		return 0, fmt.Errorf("use case: failed to export production listings: %w", err)
	}
	log.Printf("ExportUseCase: Exported %d production listing(s)\n", len(listings))
	return len(listings), nil
}
