package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/dto"
	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

const overviewCacheKey = "dashboard:overview"

type analyticsRepository interface {
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountByType(ctx context.Context) ([]models.TypeCount, error)
	AverageTurnaroundDays(ctx context.Context) (float64, error)
	WeeklyTrend(ctx context.Context, since time.Time) ([]models.TrendBucket, error)
}

type progressRequestReader interface {
	LatestStatusByType(ctx context.Context, studentID string) (map[string]models.RequestStatus, error)
}

type typeLister interface {
	List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type studentProfileReader interface {
	FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// DashboardServiceConfig tunes caching and the trend window.
type DashboardServiceConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	TrendWeeks   int
}

// DashboardService derives reporting aggregates from request history. All
// numbers here are display projections; nothing in this service changes
// clearance state.
type DashboardService struct {
	analytics analyticsRepository
	requests  progressRequestReader
	types     typeLister
	profiles  studentProfileReader
	cache     cacheStore
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs the service. The cache is optional.
func NewDashboardService(analytics analyticsRepository, requests progressRequestReader, types typeLister, profiles studentProfileReader, cache cacheStore, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TrendWeeks <= 0 {
		cfg.TrendWeeks = 4
	}
	return &DashboardService{
		analytics: analytics,
		requests:  requests,
		types:     types,
		profiles:  profiles,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Overview returns system-wide clearance aggregates, cached for a short TTL.
// Counts default to zero and the approval rate to 0 when no requests exist.
func (s *DashboardService) Overview(ctx context.Context) (*dto.OverviewResponse, error) {
	if s.cacheActive() {
		var cached dto.OverviewResponse
		if err := s.cache.Get(ctx, overviewCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("overview cache read failed", zap.Error(err))
		}
	}

	statusCounts, err := s.analytics.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests by status")
	}
	typeCounts, err := s.analytics.CountByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests by type")
	}
	turnaround, err := s.analytics.AverageTurnaroundDays(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute turnaround")
	}

	since := startOfWeek(s.now().UTC()).AddDate(0, 0, -7*(s.cfg.TrendWeeks-1))
	buckets, err := s.analytics.WeeklyTrend(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute weekly trend")
	}

	overview := &dto.OverviewResponse{
		ByType:            typeCounts,
		AvgTurnaroundDays: math.Round(turnaround*100) / 100,
		Trend:             fillTrendGaps(buckets, since, s.cfg.TrendWeeks),
	}
	for _, sc := range statusCounts {
		overview.TotalRequests += sc.Count
		switch sc.Status {
		case models.StatusPending:
			overview.Pending = sc.Count
		case models.StatusApproved:
			overview.Approved = sc.Count
		case models.StatusRejected:
			overview.Rejected = sc.Count
		}
	}
	// Pending requests count against the rate; the denominator is the
	// whole register, not just decided rows.
	if overview.TotalRequests > 0 {
		overview.ApprovalRatePercent = int(math.Round(float64(overview.Approved) / float64(overview.TotalRequests) * 100))
	}

	if s.cacheActive() {
		if err := s.cache.Set(ctx, overviewCacheKey, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("overview cache write failed", zap.Error(err))
		}
	}
	return overview, nil
}

// StudentProgress projects a student's standing across their eligible
// types. The percentage is informational only.
func (s *DashboardService) StudentProgress(ctx context.Context, studentID string) (*dto.StudentProgressResponse, error) {
	profile, err := s.profiles.FindStudentProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	types, err := s.types.List(ctx, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list clearance types")
	}
	latest, err := s.requests.LatestStatusByType(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request history")
	}

	progress := &dto.StudentProgressResponse{StudentID: studentID}
	approved := 0
	for _, ct := range types {
		if !ct.IsEligible(*profile) {
			continue
		}
		status := "NOT_STARTED"
		if latestStatus, ok := latest[ct.Name]; ok {
			status = string(latestStatus)
		}
		if status == string(models.StatusApproved) {
			approved++
		}
		progress.PerType = append(progress.PerType, dto.TypeProgress{
			Type:        ct.Name,
			DisplayName: ct.DisplayName,
			Status:      status,
		})
	}
	if len(progress.PerType) > 0 {
		progress.ProgressPercent = int(math.Round(float64(approved) / float64(len(progress.PerType)) * 100))
	}
	return progress, nil
}

func (s *DashboardService) cacheActive() bool {
	return s.cfg.CacheEnabled && s.cache != nil
}

// fillTrendGaps expands sparse weekly buckets into a dense window so charts
// render quiet weeks as zeros.
func fillTrendGaps(buckets []models.TrendBucket, since time.Time, weeks int) []models.TrendBucket {
	byWeek := make(map[string]models.TrendBucket, len(buckets))
	for _, b := range buckets {
		byWeek[b.WeekStart.UTC().Format("2006-01-02")] = b
	}
	dense := make([]models.TrendBucket, 0, weeks)
	for i := 0; i < weeks; i++ {
		week := since.AddDate(0, 0, 7*i)
		if b, ok := byWeek[week.Format("2006-01-02")]; ok {
			b.WeekStart = week
			dense = append(dense, b)
			continue
		}
		dense = append(dense, models.TrendBucket{WeekStart: week})
	}
	return dense
}

func startOfWeek(t time.Time) time.Time {
	day := t.Truncate(24 * time.Hour)
	weekday := int(day.Weekday())
	// ISO weeks start Monday; Sunday counts as day seven.
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
