package port

import "context"

// RecordLockPort — лёгкая блокировка "одна запись — одно обновление".
// Защищает последовательность upsert-затем-обогащение от параллельных
// воркеров с тем же cian_id.
type RecordLockPort interface {
	// Acquire пытается захватить блокировку; false означает, что запись
	// уже обновляется кем-то другим.
	Acquire(ctx context.Context, cianID int64) (bool, error)
	Release(ctx context.Context, cianID int64) error
}
