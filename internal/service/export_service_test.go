package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/jobs"
)

type mockExportLister struct {
	details []models.ClearanceRequestDetail
}

func (m *mockExportLister) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, int, error) {
	if filter.PageSize == 1 {
		return nil, len(m.details), nil
	}
	if filter.Page > 1 {
		return nil, len(m.details), nil
	}
	return m.details, len(m.details), nil
}

type memoryJobStore struct {
	mu     sync.Mutex
	values map[string]ExportJobStatus
}

func (m *memoryJobStore) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	if status, ok := dest.(*ExportJobStatus); ok {
		*status = v
	}
	return nil
}

func (m *memoryJobStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]ExportJobStatus)
	}
	m.values[key] = value.(ExportJobStatus)
	return nil
}

func exportFixtures() *mockExportLister {
	reason := "Outstanding fines"
	reviewed := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return &mockExportLister{details: []models.ClearanceRequestDetail{
		{
			ClearanceRequest: models.ClearanceRequest{
				RequestID: "CLR-AAAA1111",
				Status:    models.StatusApproved,
				CreatedAt: reviewed.AddDate(0, 0, -3),
				ReviewedAt: &reviewed,
			},
			StudentName:     "Ada Obi",
			StudentMatric:   "CSC/19/001",
			StudentFaculty:  "Science",
			TypeDisplayName: "Library",
		},
		{
			ClearanceRequest: models.ClearanceRequest{
				RequestID:       "CLR-BBBB2222",
				Status:          models.StatusRejected,
				RejectionReason: &reason,
				CreatedAt:       reviewed.AddDate(0, 0, -1),
			},
			StudentName:     "Ben Musa",
			StudentMatric:   "CSC/19/002",
			StudentFaculty:  "Science",
			TypeDisplayName: "Library",
		},
	}}
}

func TestExportGeneratesCSVInline(t *testing.T) {
	svc := NewExportService(exportFixtures(), &mockPrincipals{}, &memoryJobStore{}, nil, ExportServiceConfig{AsyncThreshold: 10})

	result, err := svc.Generate(context.Background(), adminClaims(), FormatCSV, models.ClearanceRequestFilter{})
	require.NoError(t, err)

	assert.False(t, result.Async)
	assert.Equal(t, "text/csv", result.ContentType)
	body := string(result.Data)
	assert.Contains(t, body, "CLR-AAAA1111")
	assert.Contains(t, body, "Outstanding fines")
	assert.True(t, strings.HasPrefix(body, "Request ID,Student"))
}

func TestExportGeneratesPDFInline(t *testing.T) {
	svc := NewExportService(exportFixtures(), &mockPrincipals{}, &memoryJobStore{}, nil, ExportServiceConfig{AsyncThreshold: 10})

	result, err := svc.Generate(context.Background(), adminClaims(), FormatPDF, models.ClearanceRequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(exportFixtures(), &mockPrincipals{}, &memoryJobStore{}, nil, ExportServiceConfig{})

	_, err := svc.Generate(context.Background(), adminClaims(), "xlsx", models.ClearanceRequestFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportDefersLargeRegisters(t *testing.T) {
	store := &memoryJobStore{}
	svc := NewExportService(exportFixtures(), &mockPrincipals{}, store, nil, ExportServiceConfig{
		StorageDir:     t.TempDir(),
		AsyncThreshold: 1,
	})

	queue := jobs.NewQueue("exports-test", svc.HandleJob, jobs.QueueConfig{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue.Start(ctx)
	defer queue.Stop()
	svc.BindQueue(queue)

	result, err := svc.Generate(context.Background(), adminClaims(), FormatCSV, models.ClearanceRequestFilter{})
	require.NoError(t, err)
	assert.True(t, result.Async)
	require.NotEmpty(t, result.JobID)

	require.Eventually(t, func() bool {
		status, err := svc.JobStatus(context.Background(), result.JobID)
		return err == nil && status.Status == "completed"
	}, 3*time.Second, 20*time.Millisecond)

	status, err := svc.JobStatus(context.Background(), result.JobID)
	require.NoError(t, err)
	assert.NotEmpty(t, status.FilePath)
	assert.True(t, strings.HasSuffix(status.FilePath, ".csv"))
}

func TestExportScopesOfficer(t *testing.T) {
	lister := &scopeRecordingLister{}
	principals := &mockPrincipals{officers: map[string]models.OfficerProfile{
		"off-1": {UserID: "off-1", AssignedType: "library", AssignedFaculty: "Science"},
	}}
	svc := NewExportService(lister, principals, &memoryJobStore{}, nil, ExportServiceConfig{AsyncThreshold: 10})

	_, err := svc.Generate(context.Background(), officerClaims("off-1"), FormatCSV, models.ClearanceRequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "library", lister.lastFilter.Type)
	assert.Equal(t, "Science", lister.lastFilter.Faculty)
}

type scopeRecordingLister struct {
	lastFilter models.ClearanceRequestFilter
	calls      int
}

func (s *scopeRecordingLister) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, int, error) {
	s.lastFilter = filter
	s.calls++
	return nil, 0, nil
}

type failingPrincipals struct {
	mockPrincipals
	err error
}

func (f *failingPrincipals) FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error) {
	return nil, f.err
}

func TestExportFailsClosedOnScopeError(t *testing.T) {
	lister := &scopeRecordingLister{}
	principals := &failingPrincipals{err: errors.New("connection reset by peer")}
	svc := NewExportService(lister, principals, &memoryJobStore{}, nil, ExportServiceConfig{AsyncThreshold: 10})

	_, err := svc.Generate(context.Background(), officerClaims("off-1"), FormatCSV, models.ClearanceRequestFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	// The register query must not run with an unscoped filter.
	assert.Zero(t, lister.calls)
}

func TestExportJobStatusUnknownJob(t *testing.T) {
	svc := NewExportService(exportFixtures(), &mockPrincipals{}, &memoryJobStore{}, nil, ExportServiceConfig{})

	_, err := svc.JobStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
