package postgres

import (
	"context"
	"fmt"
	"time"

	"cian-pipeline/internal/core/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceRepository реализует SourceRepositoryPort и BannedMetroPort
// для PostgreSQL.
type SourceRepository struct {
	pool *pgxpool.Pool
}

// NewSourceRepository создает новый экземпляр репозитория.
func NewSourceRepository(pool *pgxpool.Pool) (*SourceRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("source repository: pgxpool.Pool cannot be nil")
	}
	return &SourceRepository{pool: pool}, nil
}

// ListActive возвращает активные источники в порядке создания.
func (r *SourceRepository) ListActive(ctx context.Context) ([]domain.Source, error) {
	query := `
		SELECT id, url, name, is_active, last_parsed_at, created_at
		FROM sources
		WHERE is_active = TRUE
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sources: %w", err)
	}
	defer rows.Close()

	var result []domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.URL, &s.Name, &s.IsActive, &s.LastParsedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	return result, nil
}

// EnsureSource добавляет источник, если его еще нет. Существующие
// источники не трогает, чтобы не перетирать ручные правки.
func (r *SourceRepository) EnsureSource(ctx context.Context, name, url string) error {
	query := `
		INSERT INTO sources (url, name)
		VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, url, name); err != nil {
		return fmt.Errorf("failed to ensure source '%s': %w", name, err)
	}
	return nil
}

// MarkCollected обновляет отметку последнего сбора источника.
func (r *SourceRepository) MarkCollected(ctx context.Context, sourceID int64, t time.Time) error {
	query := `UPDATE sources SET last_parsed_at = $2 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, sourceID, t)
	if err != nil {
		return fmt.Errorf("failed to mark source %d collected: %w", sourceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to mark source collected: source %d not found", sourceID)
	}
	return nil
}

// ListNames возвращает имена станций метро из бан-листа.
func (r *SourceRepository) ListNames(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM banned_metros ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query banned metros: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan banned metro: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read banned metros: %w", err)
	}
	return names, nil
}
