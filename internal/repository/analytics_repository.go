package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unihub-dev/clearance-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries over the
// clearance request history.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CountByStatus returns request counts grouped by lifecycle status.
func (r *AnalyticsRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM clearance_requests GROUP BY status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// CountByType returns request counts grouped by clearance type slug.
func (r *AnalyticsRepository) CountByType(ctx context.Context) ([]models.TypeCount, error) {
	const query = `SELECT type, COUNT(*) AS count FROM clearance_requests GROUP BY type ORDER BY count DESC`
	var counts []models.TypeCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	return counts, nil
}

// AverageTurnaroundDays computes the mean reviewer turnaround over decided
// requests. Returns 0 when nothing has been decided yet.
func (r *AnalyticsRepository) AverageTurnaroundDays(ctx context.Context) (float64, error) {
	const query = `SELECT AVG(EXTRACT(EPOCH FROM (reviewed_at - created_at)) / 86400.0)
        FROM clearance_requests WHERE reviewed_at IS NOT NULL`
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, query); err != nil {
		return 0, fmt.Errorf("average turnaround: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// WeeklyTrend returns per-week submission and decision counts since the
// cutoff, oldest bucket first. Weeks with no activity are absent; callers
// fill gaps when rendering a fixed window.
func (r *AnalyticsRepository) WeeklyTrend(ctx context.Context, since time.Time) ([]models.TrendBucket, error) {
	const query = `SELECT date_trunc('week', created_at) AS week_start,
        COUNT(*) AS submitted,
        SUM(CASE WHEN status = 'APPROVED' THEN 1 ELSE 0 END) AS approved,
        SUM(CASE WHEN status = 'REJECTED' THEN 1 ELSE 0 END) AS rejected
        FROM clearance_requests
        WHERE created_at >= $1
        GROUP BY week_start ORDER BY week_start ASC`
	var buckets []models.TrendBucket
	if err := r.db.SelectContext(ctx, &buckets, query, since); err != nil {
		return nil, fmt.Errorf("weekly trend: %w", err)
	}
	return buckets, nil
}
