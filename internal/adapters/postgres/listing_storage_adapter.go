package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cian-pipeline/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingStorageAdapter реализует ListingStoragePort для PostgreSQL.
type ListingStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewListingStorageAdapter создает новый экземпляр адаптера.
func NewListingStorageAdapter(pool *pgxpool.Pool) (*ListingStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("listing storage: pgxpool.Pool cannot be nil")
	}
	return &ListingStorageAdapter{pool: pool}, nil
}

const listingColumns = `id, cian_id, url, source_id, is_active, staging_status, status_note, first_seen_at, last_seen_at`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(
		&l.ID, &l.CianID, &l.URL, &l.SourceID, &l.IsActive,
		&l.Status, &l.StatusNote, &l.FirstSeenAt, &l.LastSeenAt,
	)
	return l, err
}

// UpsertCandidate идемпотентно сохраняет кандидата по cian_id. Конфликт по
// cian_id обновляет только last_seen_at и is_active; статус и заметка
// не трогаются, переоценкой управляет ядро.
func (a *ListingStorageAdapter) UpsertCandidate(ctx context.Context, link domain.ListingLink) (domain.Listing, bool, error) {
	query := `
		INSERT INTO listings (cian_id, url, source_id, is_active, staging_status, first_seen_at, last_seen_at)
		VALUES ($1, $2, NULLIF($3, 0), TRUE, $4, $5, $5)
		ON CONFLICT (cian_id) DO UPDATE
		SET last_seen_at = EXCLUDED.last_seen_at,
		    is_active    = TRUE
		RETURNING ` + listingColumns + `, (xmax = 0) AS created`

	observedAt := link.ListedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	var l domain.Listing
	var created bool
	err := a.pool.QueryRow(ctx, query, link.CianID, link.URL, link.SourceID, domain.StagingStatusPending, observedAt).Scan(
		&l.ID, &l.CianID, &l.URL, &l.SourceID, &l.IsActive,
		&l.Status, &l.StatusNote, &l.FirstSeenAt, &l.LastSeenAt,
		&created,
	)
	if err != nil {
		return domain.Listing{}, false, fmt.Errorf("failed to upsert listing (cian_id: %d): %w", link.CianID, err)
	}
	return l, created, nil
}

// GetListing возвращает объявление по cian_id или nil, если его нет.
func (a *ListingStorageAdapter) GetListing(ctx context.Context, cianID int64) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE cian_id = $1`

	l, err := scanListing(a.pool.QueryRow(ctx, query, cianID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing (cian_id: %d): %w", cianID, err)
	}
	return &l, nil
}

// GetDetails возвращает детали или nil, если обогащение еще не выполнялось.
func (a *ListingStorageAdapter) GetDetails(ctx context.Context, listingID int64) (*domain.ListingDetails, error) {
	query := `
		SELECT listing_id, description, total_area, living_area, kitchen_area,
		       floor, floors_count, build_year, material_type, rooms_count,
		       property_type, balcony_count, loggia_count,
		       metro_name, metro_time, metro_transport, extra_attributes, updated_at
		FROM listing_details WHERE listing_id = $1`

	var d domain.ListingDetails
	err := a.pool.QueryRow(ctx, query, listingID).Scan(
		&d.ListingID, &d.Description, &d.TotalArea, &d.LivingArea, &d.KitchenArea,
		&d.Floor, &d.FloorsCount, &d.BuildYear, &d.MaterialType, &d.RoomsCount,
		&d.PropertyType, &d.BalconyCount, &d.LoggiaCount,
		&d.MetroName, &d.MetroTime, &d.MetroTransport, &d.ExtraAttrs, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing details (listing_id: %d): %w", listingID, err)
	}
	return &d, nil
}

// SaveDetails перезаписывает детали объявления (upsert по listing_id).
func (a *ListingStorageAdapter) SaveDetails(ctx context.Context, d domain.ListingDetails) error {
	query := `
		INSERT INTO listing_details (
			listing_id, description, total_area, living_area, kitchen_area,
			floor, floors_count, build_year, material_type, rooms_count,
			property_type, balcony_count, loggia_count,
			metro_name, metro_time, metro_transport, extra_attributes, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (listing_id) DO UPDATE SET
			description      = EXCLUDED.description,
			total_area       = EXCLUDED.total_area,
			living_area      = EXCLUDED.living_area,
			kitchen_area     = EXCLUDED.kitchen_area,
			floor            = EXCLUDED.floor,
			floors_count     = EXCLUDED.floors_count,
			build_year       = EXCLUDED.build_year,
			material_type    = EXCLUDED.material_type,
			rooms_count      = EXCLUDED.rooms_count,
			property_type    = EXCLUDED.property_type,
			balcony_count    = EXCLUDED.balcony_count,
			loggia_count     = EXCLUDED.loggia_count,
			metro_name       = EXCLUDED.metro_name,
			metro_time       = EXCLUDED.metro_time,
			metro_transport  = EXCLUDED.metro_transport,
			extra_attributes = EXCLUDED.extra_attributes,
			updated_at       = EXCLUDED.updated_at`

	_, err := a.pool.Exec(ctx, query,
		d.ListingID, d.Description, d.TotalArea, d.LivingArea, d.KitchenArea,
		d.Floor, d.FloorsCount, d.BuildYear, d.MaterialType, d.RoomsCount,
		d.PropertyType, d.BalconyCount, d.LoggiaCount,
		d.MetroName, d.MetroTime, d.MetroTransport, d.ExtraAttrs, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save listing details (listing_id: %d): %w", d.ListingID, err)
	}
	return nil
}

// AppendPricePoint добавляет строку истории цен.
func (a *ListingStorageAdapter) AppendPricePoint(ctx context.Context, p domain.PricePoint) error {
	query := `
		INSERT INTO price_points (listing_id, price, price_per_m2, currency, observed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := a.pool.Exec(ctx, query, p.ListingID, p.Price, p.PricePerM2, p.Currency, p.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to append price point (listing_id: %d): %w", p.ListingID, err)
	}
	return nil
}

// AppendViewStat добавляет строку истории просмотров.
func (a *ListingStorageAdapter) AppendViewStat(ctx context.Context, s domain.ViewStat) error {
	query := `
		INSERT INTO view_stats (listing_id, views_total, views_today, observed_at)
		VALUES ($1, $2, $3, $4)`

	_, err := a.pool.Exec(ctx, query, s.ListingID, s.ViewsTotal, s.ViewsToday, s.ObservedAt)
	if err != nil {
		return fmt.Errorf("failed to append view stat (listing_id: %d): %w", s.ListingID, err)
	}
	return nil
}

// LatestPricePoint возвращает последнюю ценовую точку или nil.
func (a *ListingStorageAdapter) LatestPricePoint(ctx context.Context, listingID int64) (*domain.PricePoint, error) {
	query := `
		SELECT id, listing_id, price, price_per_m2, currency, observed_at
		FROM price_points
		WHERE listing_id = $1
		ORDER BY observed_at DESC, id DESC
		LIMIT 1`

	var p domain.PricePoint
	err := a.pool.QueryRow(ctx, query, listingID).Scan(
		&p.ID, &p.ListingID, &p.Price, &p.PricePerM2, &p.Currency, &p.ObservedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price point (listing_id: %d): %w", listingID, err)
	}
	return &p, nil
}

// LatestViewStat возвращает последнюю строку просмотров или nil.
func (a *ListingStorageAdapter) LatestViewStat(ctx context.Context, listingID int64) (*domain.ViewStat, error) {
	query := `
		SELECT id, listing_id, views_total, views_today, observed_at
		FROM view_stats
		WHERE listing_id = $1
		ORDER BY observed_at DESC, id DESC
		LIMIT 1`

	var s domain.ViewStat
	err := a.pool.QueryRow(ctx, query, listingID).Scan(
		&s.ID, &s.ListingID, &s.ViewsTotal, &s.ViewsToday, &s.ObservedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest view stat (listing_id: %d): %w", listingID, err)
	}
	return &s, nil
}

// SetStatus переводит объявление в новый staging-статус с заметкой-причиной.
func (a *ListingStorageAdapter) SetStatus(ctx context.Context, listingID int64, status domain.StagingStatus, note string) error {
	query := `UPDATE listings SET staging_status = $2, status_note = $3 WHERE id = $1`

	tag, err := a.pool.Exec(ctx, query, listingID, status, note)
	if err != nil {
		return fmt.Errorf("failed to set status '%s' (listing_id: %d): %w", status, listingID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to set status: listing %d not found", listingID)
	}
	return nil
}

// AppendVerdicts дописывает вердикты фильтров в журнал одной пачкой.
func (a *ListingStorageAdapter) AppendVerdicts(ctx context.Context, verdicts []domain.FilterVerdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO filter_verdicts (listing_id, filter_name, passed, reason, checked_at)
		VALUES ($1, $2, $3, $4, $5)`
	for _, v := range verdicts {
		batch.Queue(query, v.ListingID, v.FilterName, v.Passed, v.Reason, v.CheckedAt)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range verdicts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append filter verdicts: %w", err)
		}
	}
	return nil
}

// PendingEnriched возвращает pending-объявления, у которых уже есть детали.
func (a *ListingStorageAdapter) PendingEnriched(ctx context.Context, limit int) ([]domain.Listing, error) {
	query := `
		SELECT ` + prefixedListingColumns("l") + `
		FROM listings l
		JOIN listing_details d ON d.listing_id = l.id
		WHERE l.staging_status = $1 AND l.is_active = TRUE
		ORDER BY l.last_seen_at ASC
		LIMIT $2`

	rows, err := a.pool.Query(ctx, query, domain.StagingStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending enriched listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// ApprovedListings возвращает одобренные объявления для пересчета оценок.
func (a *ListingStorageAdapter) ApprovedListings(ctx context.Context) ([]domain.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE staging_status = $1
		ORDER BY id ASC`

	rows, err := a.pool.Query(ctx, query, domain.StagingStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved listings: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// HasApprovedDuplicate отвечает, есть ли другое approved-объявление с тем же
// кортежем (цена, общая площадь, этаж, метро) не старше окна. NULL-атрибуты
// сравниваются через IS NOT DISTINCT FROM: отсутствующее значение совпадает
// только с отсутствующим.
func (a *ListingStorageAdapter) HasApprovedDuplicate(ctx context.Context, excludeListingID int64, price int64, totalArea *float64, floor *int, metroName *string, window time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM listings l
			JOIN listing_details d ON d.listing_id = l.id
			JOIN LATERAL (
				SELECT price FROM price_points
				WHERE listing_id = l.id
				ORDER BY observed_at DESC, id DESC
				LIMIT 1
			) p ON TRUE
			WHERE l.id <> $1
			  AND l.staging_status = $2
			  AND l.last_seen_at >= $3
			  AND p.price = $4
			  AND d.total_area IS NOT DISTINCT FROM $5
			  AND d.floor      IS NOT DISTINCT FROM $6
			  AND d.metro_name IS NOT DISTINCT FROM $7
		)`

	cutoff := time.Now().Add(-window)

	var exists bool
	err := a.pool.QueryRow(ctx, query,
		excludeListingID, domain.StagingStatusApproved, cutoff,
		price, totalArea, floor, metroName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for approved duplicate (listing_id: %d): %w", excludeListingID, err)
	}
	return exists, nil
}

// SaveScore сохраняет пересчитанную оценку (upsert по listing_id).
func (a *ListingStorageAdapter) SaveScore(ctx context.Context, s domain.Score) error {
	query := `
		INSERT INTO scores (
			listing_id, price_score, metro_score, floor_score, area_score, views_score,
			quality_score, market_interest_score, total_score, discount_pct, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (listing_id) DO UPDATE SET
			price_score           = EXCLUDED.price_score,
			metro_score           = EXCLUDED.metro_score,
			floor_score           = EXCLUDED.floor_score,
			area_score            = EXCLUDED.area_score,
			views_score           = EXCLUDED.views_score,
			quality_score         = EXCLUDED.quality_score,
			market_interest_score = EXCLUDED.market_interest_score,
			total_score           = EXCLUDED.total_score,
			discount_pct          = EXCLUDED.discount_pct,
			calculated_at         = EXCLUDED.calculated_at`

	_, err := a.pool.Exec(ctx, query,
		s.ListingID, s.PriceScore, s.MetroScore, s.FloorScore, s.AreaScore, s.ViewsScore,
		s.QualityScore, s.InterestScore, s.TotalScore, s.DiscountPct, s.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save score (listing_id: %d): %w", s.ListingID, err)
	}
	return nil
}

// ProductionListings возвращает витрину: одобренные объявления с деталями,
// текущей ценой и оценкой, лучшие по total_score первыми.
func (a *ListingStorageAdapter) ProductionListings(ctx context.Context, limit int) ([]domain.ProductionListing, error) {
	query := `
		SELECT ` + prefixedListingColumns("l") + `,
		       d.listing_id, d.description, d.total_area, d.living_area, d.kitchen_area,
		       d.floor, d.floors_count, d.build_year, d.material_type, d.rooms_count,
		       d.property_type, d.balcony_count, d.loggia_count,
		       d.metro_name, d.metro_time, d.metro_transport, d.extra_attributes, d.updated_at,
		       p.id, p.listing_id, p.price, p.price_per_m2, p.currency, p.observed_at,
		       s.listing_id, s.price_score, s.metro_score, s.floor_score, s.area_score, s.views_score,
		       s.quality_score, s.market_interest_score, s.total_score, s.discount_pct, s.calculated_at
		FROM listings l
		JOIN listing_details d ON d.listing_id = l.id
		JOIN LATERAL (
			SELECT id, listing_id, price, price_per_m2, currency, observed_at
			FROM price_points
			WHERE listing_id = l.id
			ORDER BY observed_at DESC, id DESC
			LIMIT 1
		) p ON TRUE
		LEFT JOIN scores s ON s.listing_id = l.id
		WHERE l.staging_status = $1 AND l.is_active = TRUE
		ORDER BY COALESCE(s.total_score, 0) DESC, l.id ASC
		LIMIT $2`

	rows, err := a.pool.Query(ctx, query, domain.StagingStatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query production listings: %w", err)
	}
	defer rows.Close()

	var result []domain.ProductionListing
	for rows.Next() {
		var pl domain.ProductionListing
		var scoreID *int64
		var sc scoreRow
		err := rows.Scan(
			&pl.Listing.ID, &pl.Listing.CianID, &pl.Listing.URL, &pl.Listing.SourceID, &pl.Listing.IsActive,
			&pl.Listing.Status, &pl.Listing.StatusNote, &pl.Listing.FirstSeenAt, &pl.Listing.LastSeenAt,
			&pl.Details.ListingID, &pl.Details.Description, &pl.Details.TotalArea, &pl.Details.LivingArea, &pl.Details.KitchenArea,
			&pl.Details.Floor, &pl.Details.FloorsCount, &pl.Details.BuildYear, &pl.Details.MaterialType, &pl.Details.RoomsCount,
			&pl.Details.PropertyType, &pl.Details.BalconyCount, &pl.Details.LoggiaCount,
			&pl.Details.MetroName, &pl.Details.MetroTime, &pl.Details.MetroTransport, &pl.Details.ExtraAttrs, &pl.Details.UpdatedAt,
			&pl.Price.ID, &pl.Price.ListingID, &pl.Price.Price, &pl.Price.PricePerM2, &pl.Price.Currency, &pl.Price.ObservedAt,
			&scoreID, &sc.PriceScore, &sc.MetroScore, &sc.FloorScore, &sc.AreaScore, &sc.ViewsScore,
			&sc.QualityScore, &sc.InterestScore, &sc.TotalScore, &sc.DiscountPct, &sc.CalculatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan production listing: %w", err)
		}
		if scoreID != nil {
			pl.Score = sc.toScore(*scoreID)
		}
		result = append(result, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read production listings: %w", err)
	}
	return result, nil
}

// scoreRow — nullable-вариант строки scores для LEFT JOIN.
type scoreRow struct {
	PriceScore   *int
	MetroScore   *int
	FloorScore   *int
	AreaScore    *int
	ViewsScore   *int
	QualityScore *int
	InterestScore *int
	TotalScore   *int
	DiscountPct  *float64
	CalculatedAt *time.Time
}

func (r scoreRow) toScore(listingID int64) *domain.Score {
	s := &domain.Score{ListingID: listingID, DiscountPct: r.DiscountPct}
	if r.PriceScore != nil {
		s.PriceScore = *r.PriceScore
	}
	if r.MetroScore != nil {
		s.MetroScore = *r.MetroScore
	}
	if r.FloorScore != nil {
		s.FloorScore = *r.FloorScore
	}
	if r.AreaScore != nil {
		s.AreaScore = *r.AreaScore
	}
	if r.ViewsScore != nil {
		s.ViewsScore = *r.ViewsScore
	}
	if r.QualityScore != nil {
		s.QualityScore = *r.QualityScore
	}
	if r.InterestScore != nil {
		s.InterestScore = *r.InterestScore
	}
	if r.TotalScore != nil {
		s.TotalScore = *r.TotalScore
	}
	if r.CalculatedAt != nil {
		s.CalculatedAt = *r.CalculatedAt
	}
	return s
}

func prefixedListingColumns(alias string) string {
	return alias + ".id, " + alias + ".cian_id, " + alias + ".url, " + alias + ".source_id, " +
		alias + ".is_active, " + alias + ".staging_status, " + alias + ".status_note, " +
		alias + ".first_seen_at, " + alias + ".last_seen_at"
}

func collectListings(rows pgx.Rows) ([]domain.Listing, error) {
	var result []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}
	return result, nil
}
