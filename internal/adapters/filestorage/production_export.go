package filestorage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"cian-pipeline/internal/core/domain"
)

// ProductionExportAdapter реализует ProductionExportPort: выгружает
// production-витрину в JSON-файл. Каждый экспорт перезаписывает файл
// целиком, чтобы потребитель всегда видел актуальный снимок.
type ProductionExportAdapter struct {
	filename string
	mu       sync.Mutex // Для безопасной записи в файл из нескольких горутин
}

// NewProductionExportAdapter создает новый адаптер.
func NewProductionExportAdapter(filename string) (*ProductionExportAdapter, error) {
	if filename == "" {
		return nil, fmt.Errorf("production export: filename cannot be empty")
	}
	return &ProductionExportAdapter{filename: filename}, nil
}

// Export записывает снимок витрины в файл.
func (a *ProductionExportAdapter) Export(_ context.Context, listings []domain.ProductionListing) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Сериализуем с отступами для читаемости
	prettyJSON, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format production listings to pretty JSON: %w", err)
	}

	tmpName := a.filename + ".tmp"
	if err := os.WriteFile(tmpName, prettyJSON, 0644); err != nil {
		return fmt.Errorf("failed to write export file '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, a.filename); err != nil {
		return fmt.Errorf("failed to replace export file '%s': %w", a.filename, err)
	}

	log.Printf("ProductionExport: Saved %d listing(s) to %s\n", len(listings), a.filename)
	return nil
}
