package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/export"
	"github.com/unihub-dev/clearance-api/pkg/jobs"
)

const (
	// FormatCSV and FormatPDF are the supported register formats.
	FormatCSV = "csv"
	FormatPDF = "pdf"

	exportJobType     = "clearance_register"
	exportJobKeyTTL   = 24 * time.Hour
	exportJobKeyShape = "export:job:%s"
)

// ExportJobStatus tracks an async register generation.
type ExportJobStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Format    string    `json:"format"`
	FilePath  string    `json:"file_path,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExportResult is returned from Generate. Small registers render inline;
// large ones are deferred to the worker queue and referenced by JobID.
type ExportResult struct {
	Async       bool   `json:"async"`
	JobID       string `json:"job_id,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

type exportRequestLister interface {
	List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, int, error)
}

type exportJobStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type exportJobPayload struct {
	JobID  string
	Format string
	Filter models.ClearanceRequestFilter
}

// ExportServiceConfig tunes register generation.
type ExportServiceConfig struct {
	StorageDir     string
	AsyncThreshold int
}

// ExportService renders the clearance register in CSV or PDF form. Registers
// above the async threshold are generated by background workers and fetched
// later via job status.
type ExportService struct {
	requests   exportRequestLister
	principals principalReader
	store      exportJobStore
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	queue      *jobs.Queue
	logger     *zap.Logger
	now        func() time.Time
	cfg        ExportServiceConfig
}

// NewExportService constructs the service. Call BindQueue before Generate.
func NewExportService(requests exportRequestLister, principals principalReader, store exportJobStore, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./exports"
	}
	if cfg.AsyncThreshold <= 0 {
		cfg.AsyncThreshold = 500
	}
	return &ExportService{
		requests:   requests,
		principals: principals,
		store:      store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// BindQueue attaches the worker queue that runs deferred generations.
func (s *ExportService) BindQueue(queue *jobs.Queue) {
	s.queue = queue
}

// HandleJob is the queue handler for deferred register generation.
func (s *ExportService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	data, _, err := s.render(ctx, payload.Format, payload.Filter)
	if err != nil {
		s.updateJob(ctx, payload.JobID, func(st *ExportJobStatus) {
			st.Status = "failed"
			st.Error = err.Error()
		})
		return err
	}

	if err := os.MkdirAll(s.cfg.StorageDir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.cfg.StorageDir, s.fileName(payload.JobID, payload.Format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.updateJob(ctx, payload.JobID, func(st *ExportJobStatus) {
			st.Status = "failed"
			st.Error = err.Error()
		})
		return fmt.Errorf("write export file: %w", err)
	}

	s.updateJob(ctx, payload.JobID, func(st *ExportJobStatus) {
		st.Status = "completed"
		st.FilePath = path
	})
	s.logger.Info("register export completed", zap.String("job_id", payload.JobID), zap.String("path", path))
	return nil
}

// Generate produces the clearance register for the caller's scope. Officers
// are constrained to their assigned type and faculty.
func (s *ExportService) Generate(ctx context.Context, claims *models.JWTClaims, format string, filter models.ClearanceRequestFilter) (*ExportResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if claims.Role == models.RoleOfficer {
		profile, err := s.principals.FindOfficerProfile(ctx, claims.UserID)
		switch {
		case err == nil:
			if profile.AssignedType != "" {
				filter.Type = profile.AssignedType
			}
			if profile.AssignedFaculty != "" {
				filter.Faculty = profile.AssignedFaculty
			}
		case errors.Is(err, sql.ErrNoRows):
			// Missing scope row means an unrestricted officer.
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer scope")
		}
	}

	filter.Page = 1
	filter.PageSize = 1
	_, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to size register")
	}

	if total > s.cfg.AsyncThreshold && s.queue != nil {
		jobID := uuid.NewString()
		status := ExportJobStatus{
			ID:        jobID,
			Status:    "queued",
			Format:    format,
			CreatedAt: s.now().UTC(),
			UpdatedAt: s.now().UTC(),
		}
		if err := s.store.Set(ctx, fmt.Sprintf(exportJobKeyShape, jobID), status, exportJobKeyTTL); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export job")
		}
		if err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: exportJobType, Payload: exportJobPayload{JobID: jobID, Format: format, Filter: filter}}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
		}
		return &ExportResult{Async: true, JobID: jobID}, nil
	}

	data, contentType, err := s.render(ctx, format, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render register")
	}
	return &ExportResult{
		FileName:    s.fileName(s.now().UTC().Format("20060102T150405"), format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// JobStatus returns the state of a deferred generation.
func (s *ExportService) JobStatus(ctx context.Context, jobID string) (*ExportJobStatus, error) {
	var status ExportJobStatus
	if err := s.store.Get(ctx, fmt.Sprintf(exportJobKeyShape, jobID), &status); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return &status, nil
}

func (s *ExportService) render(ctx context.Context, format string, filter models.ClearanceRequestFilter) ([]byte, string, error) {
	filter.Page = 1
	filter.PageSize = 100
	filter.SortBy = "created_at"
	filter.SortOrder = "asc"

	dataset := export.Dataset{
		Headers: []string{"Request ID", "Student", "Matric No", "Faculty", "Type", "Status", "Reason", "Submitted", "Reviewed"},
	}
	for {
		details, total, err := s.requests.List(ctx, filter)
		if err != nil {
			return nil, "", err
		}
		for _, d := range details {
			row := map[string]string{
				"Request ID": d.RequestID,
				"Student":    d.StudentName,
				"Matric No":  d.StudentMatric,
				"Faculty":    d.StudentFaculty,
				"Type":       d.TypeDisplayName,
				"Status":     string(d.Status),
				"Submitted":  d.CreatedAt.Format("2006-01-02"),
			}
			if d.RejectionReason != nil {
				row["Reason"] = *d.RejectionReason
			}
			if d.ReviewedAt != nil {
				row["Reviewed"] = d.ReviewedAt.Format("2006-01-02")
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if len(dataset.Rows) >= total || len(details) == 0 {
			break
		}
		filter.Page++
	}

	if format == FormatPDF {
		data, err := s.pdf.Render(dataset, "Clearance Register")
		return data, "application/pdf", err
	}
	data, err := s.csv.Render(dataset)
	return data, "text/csv", err
}

func (s *ExportService) fileName(stamp, format string) string {
	return fmt.Sprintf("clearance-register-%s.%s", stamp, format)
}

func (s *ExportService) updateJob(ctx context.Context, jobID string, mutate func(*ExportJobStatus)) {
	key := fmt.Sprintf(exportJobKeyShape, jobID)
	var status ExportJobStatus
	if err := s.store.Get(ctx, key, &status); err != nil {
		s.logger.Warn("export job status missing", zap.String("job_id", jobID), zap.Error(err))
		status = ExportJobStatus{ID: jobID, CreatedAt: s.now().UTC()}
	}
	mutate(&status)
	status.UpdatedAt = s.now().UTC()
	if err := s.store.Set(ctx, key, status, exportJobKeyTTL); err != nil {
		s.logger.Warn("export job status write failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
