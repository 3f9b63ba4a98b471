package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/unihub-dev/clearance-api/internal/models"
)

// Sentinel errors surfaced from constraint violations so the service layer
// can map them to conflict responses without string matching.
var (
	ErrRequestIDTaken    = errors.New("request id already taken")
	ErrOpenRequestExists = errors.New("open request already exists")
)

const uniqueViolation = "23505"

// ClearanceRequestRepository handles persistence of clearance requests.
type ClearanceRequestRepository struct {
	db *sqlx.DB
}

// NewClearanceRequestRepository constructs the repository.
func NewClearanceRequestRepository(db *sqlx.DB) *ClearanceRequestRepository {
	return &ClearanceRequestRepository{db: db}
}

const requestColumns = `id, request_id, student_id, type, clearance_type_id, status, rejection_reason, reviewed_by, reviewed_at, payload, created_at, updated_at`

const requestDetailBase = `FROM clearance_requests r
LEFT JOIN users u ON u.id = r.student_id
LEFT JOIN student_profiles sp ON sp.user_id = r.student_id
LEFT JOIN clearance_types ct ON ct.id = r.clearance_type_id
LEFT JOIN users rv ON rv.id = r.reviewed_by`

const requestDetailColumns = `r.id, r.request_id, r.student_id, r.type, r.clearance_type_id, r.status, r.rejection_reason, r.reviewed_by, r.reviewed_at, r.payload, r.created_at, r.updated_at,
        COALESCE(u.full_name, '') AS student_name, COALESCE(sp.matric_no, '') AS student_matric, COALESCE(sp.faculty, '') AS student_faculty,
        COALESCE(ct.display_name, r.type) AS type_display_name, rv.full_name AS reviewer_name`

// Create inserts a new pending request. Constraint violations on the
// external request id or the single-open-request partial index are mapped
// to sentinel errors.
func (r *ClearanceRequestRepository) Create(ctx context.Context, request *models.ClearanceRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.StatusPending
	}
	const query = `INSERT INTO clearance_requests (id, request_id, student_id, type, clearance_type_id, status, payload, created_at, updated_at)
        VALUES (:id, :request_id, :student_id, :type, :clearance_type_id, :status, :payload, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			if strings.Contains(pqErr.Constraint, "request_id") {
				return ErrRequestIDTaken
			}
			return ErrOpenRequestExists
		}
		return fmt.Errorf("create clearance request: %w", err)
	}
	return nil
}

// FindByID returns a request by its internal id.
func (r *ClearanceRequestRepository) FindByID(ctx context.Context, id string) (*models.ClearanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_requests WHERE id = $1`, requestColumns)
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindDetailByID returns a request with contextual display fields.
func (r *ClearanceRequestRepository) FindDetailByID(ctx context.Context, id string) (*models.ClearanceRequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE r.id = $1`, requestDetailColumns, requestDetailBase)
	var detail models.ClearanceRequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindOpenRequest returns the pending request for a (student, type) pair.
func (r *ClearanceRequestRepository) FindOpenRequest(ctx context.Context, studentID, typeSlug string) (*models.ClearanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_requests WHERE student_id = $1 AND type = $2 AND status = $3 LIMIT 1`, requestColumns)
	var request models.ClearanceRequest
	if err := r.db.GetContext(ctx, &request, query, studentID, typeSlug, models.StatusPending); err != nil {
		return nil, err
	}
	return &request, nil
}

// ExistsRequestID checks whether the external request id is already used.
func (r *ClearanceRequestRepository) ExistsRequestID(ctx context.Context, requestID string) (bool, error) {
	const query = `SELECT 1 FROM clearance_requests WHERE request_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, requestID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check request id: %w", err)
	}
	return true, nil
}

// UpdateStatusIfPending performs the guarded decision write. It returns
// false when the row was not pending anymore (or does not exist), which is
// the only concurrency control the lifecycle relies on.
func (r *ClearanceRequestRepository) UpdateStatusIfPending(ctx context.Context, id string, status models.RequestStatus, reviewedBy string, reason *string, reviewedAt time.Time) (bool, error) {
	const query = `UPDATE clearance_requests
        SET status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5, updated_at = $6
        WHERE id = $1 AND status = $7`
	result, err := r.db.ExecContext(ctx, query, id, status, reviewedBy, reviewedAt, reason, reviewedAt, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("update request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// List returns request details filtered by the provided criteria.
func (r *ClearanceRequestRepository) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("r.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("r.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Faculty != "" {
		conditions = append(conditions, fmt.Sprintf("sp.faculty = $%d", len(args)+1))
		args = append(args, filter.Faculty)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":   "r.created_at",
		"reviewed_at":  "r.reviewed_at",
		"student_name": "u.full_name",
		"type":         "r.type",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "r.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		requestDetailColumns, requestDetailBase+clause, orderBy, order, size, offset)

	var details []models.ClearanceRequestDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list clearance requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", requestDetailBase+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count clearance requests: %w", err)
	}
	return details, total, nil
}

// ListByStudent returns all requests belonging to a student, newest first.
func (r *ClearanceRequestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ClearanceRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM clearance_requests WHERE student_id = $1 ORDER BY created_at DESC`, requestColumns)
	var requests []models.ClearanceRequest
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requests: %w", err)
	}
	return requests, nil
}

// ApprovedTypesByStudent returns the type slugs a student has an approved
// request for, used by the progress projection.
func (r *ClearanceRequestRepository) ApprovedTypesByStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT DISTINCT type FROM clearance_requests WHERE student_id = $1 AND status = $2`
	var types []string
	if err := r.db.SelectContext(ctx, &types, query, studentID, models.StatusApproved); err != nil {
		return nil, fmt.Errorf("list approved types: %w", err)
	}
	return types, nil
}

// LatestStatusByType returns the most recent request status per type for a
// student.
func (r *ClearanceRequestRepository) LatestStatusByType(ctx context.Context, studentID string) (map[string]models.RequestStatus, error) {
	const query = `SELECT DISTINCT ON (type) type, status FROM clearance_requests
        WHERE student_id = $1 ORDER BY type, created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("latest status by type: %w", err)
	}
	defer rows.Close()

	result := make(map[string]models.RequestStatus)
	for rows.Next() {
		var typeSlug string
		var status models.RequestStatus
		if err := rows.Scan(&typeSlug, &status); err != nil {
			return nil, fmt.Errorf("scan latest status: %w", err)
		}
		result[typeSlug] = status
	}
	return result, rows.Err()
}

// RecentDecisionsByStudent returns requests decided since the cutoff.
func (r *ClearanceRequestRepository) RecentDecisionsByStudent(ctx context.Context, studentID string, since time.Time, limit int) ([]models.StatusChange, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT request_id, student_id, type, status, rejection_reason, reviewed_at AS changed_at
        FROM clearance_requests
        WHERE student_id = $1 AND status <> $2 AND reviewed_at >= $3
        ORDER BY reviewed_at DESC LIMIT %d`, limit)
	var changes []models.StatusChange
	if err := r.db.SelectContext(ctx, &changes, query, studentID, models.StatusPending, since); err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	return changes, nil
}

// RecentSubmissionsForScope returns pending requests within an officer's
// scope submitted since the cutoff. Empty scope values match everything.
func (r *ClearanceRequestRepository) RecentSubmissionsForScope(ctx context.Context, typeSlug, faculty string, since time.Time, limit int) ([]models.StatusChange, error) {
	if limit <= 0 {
		limit = 20
	}
	var builder strings.Builder
	builder.WriteString(`SELECT r.request_id, r.student_id, r.type, r.status, r.rejection_reason, r.created_at AS changed_at
        FROM clearance_requests r
        LEFT JOIN student_profiles sp ON sp.user_id = r.student_id
        WHERE r.status = $1 AND r.created_at >= $2`)
	args := []interface{}{models.StatusPending, since}
	if typeSlug != "" {
		args = append(args, typeSlug)
		builder.WriteString(fmt.Sprintf(" AND r.type = $%d", len(args)))
	}
	if faculty != "" {
		args = append(args, faculty)
		builder.WriteString(fmt.Sprintf(" AND sp.faculty = $%d", len(args)))
	}
	builder.WriteString(fmt.Sprintf(" ORDER BY r.created_at DESC LIMIT %d", limit))

	var changes []models.StatusChange
	if err := r.db.SelectContext(ctx, &changes, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("recent submissions: %w", err)
	}
	return changes, nil
}
