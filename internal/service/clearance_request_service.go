package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/repository"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type clearanceRequestRepository interface {
	Create(ctx context.Context, request *models.ClearanceRequest) error
	FindByID(ctx context.Context, id string) (*models.ClearanceRequest, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClearanceRequestDetail, error)
	FindOpenRequest(ctx context.Context, studentID, typeSlug string) (*models.ClearanceRequest, error)
	ExistsRequestID(ctx context.Context, requestID string) (bool, error)
	UpdateStatusIfPending(ctx context.Context, id string, status models.RequestStatus, reviewedBy string, reason *string, reviewedAt time.Time) (bool, error)
	List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, int, error)
}

type principalReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
	FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error)
}

type typeRegistry interface {
	FindBySlug(ctx context.Context, slug string) (*models.ClearanceType, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmitRequest describes a student's clearance application payload.
type SubmitRequest struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// DecisionRequest describes a single reviewer verdict.
type DecisionRequest struct {
	Decision models.Decision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Reason   string          `json:"reason"`
}

// BulkDecisionRequest applies one verdict across many requests.
type BulkDecisionRequest struct {
	RequestIDs []string        `json:"request_ids" validate:"required,min=1,dive,required"`
	Decision   models.Decision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	Reason     string          `json:"reason"`
}

// ClearanceRequestServiceConfig tunes request id allocation.
type ClearanceRequestServiceConfig struct {
	IDPrefix     string
	IDRetryLimit int
}

// ClearanceRequestService owns the request lifecycle: creation, single and
// bulk decisioning, and the status invariants around them.
type ClearanceRequestService struct {
	repo       clearanceRequestRepository
	principals principalReader
	types      typeRegistry
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	cfg        ClearanceRequestServiceConfig
}

// NewClearanceRequestService constructs the lifecycle service.
func NewClearanceRequestService(repo clearanceRequestRepository, principals principalReader, types typeRegistry, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg ClearanceRequestServiceConfig) *ClearanceRequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "CLR"
	}
	if cfg.IDRetryLimit <= 0 {
		cfg.IDRetryLimit = 3
	}
	return &ClearanceRequestService{
		repo:       repo,
		principals: principals,
		types:      types,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// Submit creates a new pending clearance request for the student.
func (s *ClearanceRequestService) Submit(ctx context.Context, studentID string, req SubmitRequest) (*models.ClearanceRequestDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	student, err := s.principals.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "student account is inactive")
	}

	profile, err := s.principals.FindStudentProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	ct, err := s.types.FindBySlug(ctx, req.Type)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load clearance type")
	}
	if !ct.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clearance type is no longer active")
	}
	if !ct.IsEligible(*profile) {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, fmt.Sprintf("not eligible for %s clearance", ct.Name))
	}

	if _, err := s.repo.FindOpenRequest(ctx, studentID, ct.Name); err == nil {
		return nil, appErrors.ErrDuplicateOpenRequest
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open requests")
	}

	request := &models.ClearanceRequest{
		StudentID:       studentID,
		Type:            ct.Name,
		ClearanceTypeID: ct.ID,
		Status:          models.StatusPending,
		Payload:         req.Payload,
	}
	if err := s.createWithUniqueRequestID(ctx, request); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, &studentID, string(student.Role), models.AuditActionRequestCreate, request.ID, map[string]interface{}{
		"request_id": request.RequestID,
		"type":       request.Type,
	})

	detail, err := s.repo.FindDetailByID(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request detail")
	}
	return detail, nil
}

// Decide transitions a single pending request to approved or rejected.
func (s *ClearanceRequestService) Decide(ctx context.Context, reviewer *models.JWTClaims, requestID string, req DecisionRequest) (*models.ClearanceRequestDetail, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Decision == models.DecisionReject && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotPending, "request not found or already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	if err := s.authorizeReviewer(ctx, reviewer, request); err != nil {
		return nil, err
	}

	status, reasonPtr := decisionOutcome(req.Decision, reason)
	applied, err := s.repo.UpdateStatusIfPending(ctx, request.ID, status, reviewer.UserID, reasonPtr, s.now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}
	if !applied {
		return nil, appErrors.ErrNotPending
	}

	action := models.AuditActionRequestApprove
	if req.Decision == models.DecisionReject {
		action = models.AuditActionRequestReject
	}
	s.emitAudit(ctx, &reviewer.UserID, string(reviewer.Role), action, request.ID, map[string]interface{}{
		"request_id": request.RequestID,
		"decision":   req.Decision,
		"reason":     reason,
	})

	detail, err := s.repo.FindDetailByID(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request detail")
	}
	return detail, nil
}

// DecideBulk applies one verdict across many requests, best-effort and
// independent per item. Items no longer pending are skipped, storage
// failures are logged and skipped; the batch never rolls back.
func (s *ClearanceRequestService) DecideBulk(ctx context.Context, reviewer *models.JWTClaims, req BulkDecisionRequest) (*models.BulkDecisionResult, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk decision payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Decision == models.DecisionReject && reason == "" {
		reason = models.BulkRejectDefaultReason
	}

	status, reasonPtr := decisionOutcome(req.Decision, reason)
	result := &models.BulkDecisionResult{Items: make([]models.BulkItemResult, 0, len(req.RequestIDs))}
	applied := make([]string, 0, len(req.RequestIDs))

	for _, id := range req.RequestIDs {
		outcome := s.decideOne(ctx, reviewer, id, status, reasonPtr)
		result.Items = append(result.Items, models.BulkItemResult{RequestID: id, Outcome: outcome})
		if outcome == models.BulkOutcomeApplied {
			result.ProcessedCount++
			applied = append(applied, id)
		}
	}

	action := models.AuditActionRequestBulkApprove
	if req.Decision == models.DecisionReject {
		action = models.AuditActionRequestBulkReject
	}
	s.emitAudit(ctx, &reviewer.UserID, string(reviewer.Role), action, "", map[string]interface{}{
		"request_ids":     req.RequestIDs,
		"applied_ids":     applied,
		"processed_count": result.ProcessedCount,
		"reason":          reason,
	})

	return result, nil
}

func (s *ClearanceRequestService) decideOne(ctx context.Context, reviewer *models.JWTClaims, id string, status models.RequestStatus, reason *string) models.BulkItemOutcome {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.BulkOutcomeSkipped
		}
		s.logger.Warn("bulk decision load failed", zap.String("id", id), zap.Error(err))
		return models.BulkOutcomeFailed
	}
	if request.Status != models.StatusPending {
		return models.BulkOutcomeSkipped
	}
	if err := s.authorizeReviewer(ctx, reviewer, request); err != nil {
		s.logger.Warn("bulk decision out of scope", zap.String("id", id), zap.Error(err))
		return models.BulkOutcomeFailed
	}
	applied, err := s.repo.UpdateStatusIfPending(ctx, request.ID, status, reviewer.UserID, reason, s.now().UTC())
	if err != nil {
		s.logger.Warn("bulk decision write failed", zap.String("id", id), zap.Error(err))
		return models.BulkOutcomeFailed
	}
	if !applied {
		// Lost the race to another reviewer between read and write.
		return models.BulkOutcomeSkipped
	}
	return models.BulkOutcomeApplied
}

// List returns request details constrained to the caller's visibility:
// students see their own requests, officers see their scope.
func (s *ClearanceRequestService) List(ctx context.Context, claims *models.JWTClaims, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestDetail, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleOfficer:
		scope, err := s.officerScope(ctx, claims.UserID)
		if err != nil {
			return nil, nil, err
		}
		if scope.AssignedType != "" {
			filter.Type = scope.AssignedType
		}
		if scope.AssignedFaculty != "" {
			filter.Faculty = scope.AssignedFaculty
		}
	}

	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return details, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetByID returns one request, enforcing ownership for students and scope
// for officers.
func (s *ClearanceRequestService) GetByID(ctx context.Context, claims *models.JWTClaims, id string) (*models.ClearanceRequestDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	switch claims.Role {
	case models.RoleStudent:
		if detail.StudentID != claims.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RoleOfficer:
		if err := s.authorizeReviewer(ctx, claims, &detail.ClearanceRequest); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

func (s *ClearanceRequestService) createWithUniqueRequestID(ctx context.Context, request *models.ClearanceRequest) error {
	for attempt := 0; attempt < s.cfg.IDRetryLimit; attempt++ {
		candidate, err := s.generateRequestID()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate request id")
		}
		taken, err := s.repo.ExistsRequestID(ctx, candidate)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check request id")
		}
		if taken {
			continue
		}
		request.RequestID = candidate
		err = s.repo.Create(ctx, request)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrRequestIDTaken) {
			continue
		}
		if errors.Is(err, repository.ErrOpenRequestExists) {
			return appErrors.ErrDuplicateOpenRequest
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return appErrors.ErrIDGeneration
}

func (s *ClearanceRequestService) generateRequestID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", s.cfg.IDPrefix, strings.ToUpper(hex.EncodeToString(buf))), nil
}

func (s *ClearanceRequestService) authorizeReviewer(ctx context.Context, reviewer *models.JWTClaims, request *models.ClearanceRequest) error {
	if reviewer.IsAdmin() {
		return nil
	}
	if reviewer.Role != models.RoleOfficer {
		return appErrors.ErrForbidden
	}
	scope, err := s.officerScope(ctx, reviewer.UserID)
	if err != nil {
		return err
	}
	faculty := ""
	if scope.AssignedFaculty != "" {
		profile, err := s.principals.FindStudentProfile(ctx, request.StudentID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
		}
		if profile != nil {
			faculty = profile.Faculty
		}
	}
	if !scope.CanReview(request.Type, faculty) {
		return appErrors.Clone(appErrors.ErrForbidden, "request is outside your review scope")
	}
	return nil
}

func (s *ClearanceRequestService) officerScope(ctx context.Context, officerID string) (models.OfficerProfile, error) {
	profile, err := s.principals.FindOfficerProfile(ctx, officerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No explicit scope row means unrestricted.
			return models.OfficerProfile{UserID: officerID}, nil
		}
		return models.OfficerProfile{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer scope")
	}
	return *profile, nil
}

func (s *ClearanceRequestService) emitAudit(ctx context.Context, userID *string, role, action, resourceID string, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(details)
	log := &models.AuditLog{
		UserID:    userID,
		ActorRole: role,
		Action:    action,
		Resource:  "clearance_request",
		NewValues: payload,
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func decisionOutcome(decision models.Decision, reason string) (models.RequestStatus, *string) {
	if decision == models.DecisionReject {
		r := reason
		return models.StatusRejected, &r
	}
	return models.StatusApproved, nil
}
