package port

import (
	"context"
	"time"

	"cian-pipeline/internal/core/domain"
)

// SourceRepositoryPort — реестр поисковых источников.
type SourceRepositoryPort interface {
	// ListActive возвращает активные источники в порядке создания.
	ListActive(ctx context.Context) ([]domain.Source, error)

	// MarkCollected обновляет отметку последнего сбора источника.
	MarkCollected(ctx context.Context, sourceID int64, t time.Time) error
}

// BannedMetroPort — бан-лист станций метро, общий для всех профилей.
type BannedMetroPort interface {
	// ListNames возвращает имена станций бан-листа.
	ListNames(ctx context.Context) ([]string, error)
}
