package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type mockAnalytics struct {
	statusCounts []models.StatusCount
	typeCounts   []models.TypeCount
	turnaround   float64
	trend        []models.TrendBucket
}

func (m *mockAnalytics) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	return m.statusCounts, nil
}

func (m *mockAnalytics) CountByType(ctx context.Context) ([]models.TypeCount, error) {
	return m.typeCounts, nil
}

func (m *mockAnalytics) AverageTurnaroundDays(ctx context.Context) (float64, error) {
	return m.turnaround, nil
}

func (m *mockAnalytics) WeeklyTrend(ctx context.Context, since time.Time) ([]models.TrendBucket, error) {
	return m.trend, nil
}

type mockProgressReader struct {
	latest map[string]models.RequestStatus
}

func (m *mockProgressReader) LatestStatusByType(ctx context.Context, studentID string) (map[string]models.RequestStatus, error) {
	return m.latest, nil
}

type mockTypeLister struct {
	types []models.ClearanceType
}

func (m *mockTypeLister) List(ctx context.Context, includeInactive bool) ([]models.ClearanceType, error) {
	return m.types, nil
}

type mockProfiles struct {
	profiles map[string]models.StudentProfile
}

func (m *mockProfiles) FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

type mockCache struct {
	sets int
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	return appErrors.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	return nil
}

func TestOverviewZeroGuardOnEmptyHistory(t *testing.T) {
	svc := NewDashboardService(&mockAnalytics{}, &mockProgressReader{}, &mockTypeLister{}, &mockProfiles{}, nil, nil, DashboardServiceConfig{TrendWeeks: 4})

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, overview.TotalRequests)
	assert.Equal(t, 0, overview.ApprovalRatePercent)
	assert.Equal(t, float64(0), overview.AvgTurnaroundDays)
	// The trend window stays dense even with no activity.
	require.Len(t, overview.Trend, 4)
	for _, bucket := range overview.Trend {
		assert.Zero(t, bucket.Submitted)
	}
}

func TestOverviewComputesApprovalRate(t *testing.T) {
	analytics := &mockAnalytics{
		statusCounts: []models.StatusCount{
			{Status: models.StatusPending, Count: 5},
			{Status: models.StatusApproved, Count: 3},
			{Status: models.StatusRejected, Count: 1},
		},
		typeCounts: []models.TypeCount{{Type: "library", Count: 9}},
		turnaround: 2.3456,
	}
	svc := NewDashboardService(analytics, &mockProgressReader{}, &mockTypeLister{}, &mockProfiles{}, nil, nil, DashboardServiceConfig{})

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9, overview.TotalRequests)
	assert.Equal(t, 5, overview.Pending)
	assert.Equal(t, 3, overview.Approved)
	assert.Equal(t, 1, overview.Rejected)
	// 3 approved out of 9 total; pending rows stay in the denominator.
	assert.Equal(t, 33, overview.ApprovalRatePercent)
	assert.Equal(t, 2.35, overview.AvgTurnaroundDays)
}

func TestOverviewCachesResult(t *testing.T) {
	cache := &mockCache{}
	svc := NewDashboardService(&mockAnalytics{}, &mockProgressReader{}, &mockTypeLister{}, &mockProfiles{}, cache, nil, DashboardServiceConfig{CacheEnabled: true})

	_, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestStudentProgressCountsOnlyEligibleTypes(t *testing.T) {
	types := &mockTypeLister{types: []models.ClearanceType{
		{Name: "library", DisplayName: "Library", Active: true},
		{Name: "final", DisplayName: "Final Year", Active: true, TargetLevel: models.LevelFinal},
	}}
	requests := &mockProgressReader{latest: map[string]models.RequestStatus{
		"library": models.StatusApproved,
	}}
	profiles := &mockProfiles{profiles: map[string]models.StudentProfile{
		"stu-1": {UserID: "stu-1", Level: models.Level300},
	}}
	svc := NewDashboardService(&mockAnalytics{}, requests, types, profiles, nil, nil, DashboardServiceConfig{})

	progress, err := svc.StudentProgress(context.Background(), "stu-1")
	require.NoError(t, err)

	// The level-gated type is excluded from the denominator.
	require.Len(t, progress.PerType, 1)
	assert.Equal(t, "library", progress.PerType[0].Type)
	assert.Equal(t, string(models.StatusApproved), progress.PerType[0].Status)
	assert.Equal(t, 100, progress.ProgressPercent)
}

func TestStudentProgressRejectedIsNotComplete(t *testing.T) {
	types := &mockTypeLister{types: []models.ClearanceType{
		{Name: "library", DisplayName: "Library", Active: true},
		{Name: "hostel", DisplayName: "Hostel", Active: true},
	}}
	requests := &mockProgressReader{latest: map[string]models.RequestStatus{
		"library": models.StatusApproved,
		"hostel":  models.StatusRejected,
	}}
	profiles := &mockProfiles{profiles: map[string]models.StudentProfile{
		"stu-1": {UserID: "stu-1", Level: models.Level300},
	}}
	svc := NewDashboardService(&mockAnalytics{}, requests, types, profiles, nil, nil, DashboardServiceConfig{})

	progress, err := svc.StudentProgress(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 50, progress.ProgressPercent)
}

func TestFillTrendGaps(t *testing.T) {
	since := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	buckets := []models.TrendBucket{
		{WeekStart: since.AddDate(0, 0, 7), Submitted: 4, Approved: 2},
	}

	dense := fillTrendGaps(buckets, since, 4)
	require.Len(t, dense, 4)
	assert.Zero(t, dense[0].Submitted)
	assert.Equal(t, 4, dense[1].Submitted)
	assert.Equal(t, 2, dense[1].Approved)
	assert.Zero(t, dense[2].Submitted)
	assert.True(t, dense[3].WeekStart.Equal(since.AddDate(0, 0, 21)))
}
