package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindStudentProfile(ctx context.Context, userID string) (*models.StudentProfile, error)
	UpsertStudentProfile(ctx context.Context, profile *models.StudentProfile) error
	FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error)
	UpsertOfficerProfile(ctx context.Context, profile *models.OfficerProfile) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListAuditLogs(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
}

// CreateUserRequest registers a new account, optionally with a role profile.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	FullName string          `json:"full_name" validate:"required"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN OFFICER STUDENT"`

	Profile *StudentProfileRequest `json:"profile,omitempty"`
	Scope   *OfficerScopeRequest   `json:"scope,omitempty"`
}

// UpdateUserRequest rewrites mutable account fields.
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Active   *bool  `json:"active,omitempty"`

	Profile *StudentProfileRequest `json:"profile,omitempty"`
	Scope   *OfficerScopeRequest   `json:"scope,omitempty"`
}

// StudentProfileRequest carries the academic attributes for a student.
type StudentProfileRequest struct {
	MatricNo   string              `json:"matric_no" validate:"required"`
	Level      models.StudentLevel `json:"level" validate:"required,oneof=100 200 300 400 FINAL"`
	Faculty    string              `json:"faculty"`
	Department string              `json:"department"`
}

// OfficerScopeRequest assigns an officer's review scope. Empty values mean
// unrestricted on that axis.
type OfficerScopeRequest struct {
	AssignedType    string `json:"assigned_type"`
	AssignedFaculty string `json:"assigned_faculty"`
}

// UserService handles admin-side account management.
type UserService struct {
	users     userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(users userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, validator: validate, logger: logger}
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetStudent returns a student account with its academic profile.
func (s *UserService) GetStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	detail := &models.StudentDetail{User: *user}
	profile, err := s.users.FindStudentProfile(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	if profile != nil {
		detail.Profile = *profile
	}
	return detail, nil
}

// GetOfficer returns an officer account with its review scope.
func (s *UserService) GetOfficer(ctx context.Context, id string) (*models.OfficerDetail, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleOfficer {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "officer not found")
	}
	detail := &models.OfficerDetail{User: *user}
	profile, err := s.users.FindOfficerProfile(ctx, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer scope")
	}
	if profile != nil {
		detail.Profile = *profile
	}
	return detail, nil
}

// Create registers a new account and, for students and officers, their
// role profile.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if req.Role == models.RoleStudent && req.Profile == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student accounts require a profile")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if req.Role == models.RoleStudent && req.Profile != nil {
		profile := &models.StudentProfile{
			UserID:     user.ID,
			MatricNo:   req.Profile.MatricNo,
			Level:      req.Profile.Level,
			Faculty:    req.Profile.Faculty,
			Department: req.Profile.Department,
		}
		if err := s.users.UpsertStudentProfile(ctx, profile); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store student profile")
		}
	}
	if req.Role == models.RoleOfficer && req.Scope != nil {
		scope := &models.OfficerProfile{
			UserID:          user.ID,
			AssignedType:    req.Scope.AssignedType,
			AssignedFaculty: req.Scope.AssignedFaculty,
		}
		if err := s.users.UpsertOfficerProfile(ctx, scope); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store officer scope")
		}
	}

	s.recordAudit(ctx, actor, models.AuditActionUserCreate, user)
	return user, nil
}

// Update rewrites an account's mutable fields and role profile. Deactivated
// accounts also lose their refresh tokens.
func (s *UserService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	user.FullName = req.FullName
	deactivated := false
	if req.Active != nil {
		deactivated = user.Active && !*req.Active
		user.Active = *req.Active
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	if deactivated {
		if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	if user.Role == models.RoleStudent && req.Profile != nil {
		profile := &models.StudentProfile{
			UserID:     user.ID,
			MatricNo:   req.Profile.MatricNo,
			Level:      req.Profile.Level,
			Faculty:    req.Profile.Faculty,
			Department: req.Profile.Department,
		}
		if err := s.users.UpsertStudentProfile(ctx, profile); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store student profile")
		}
	}
	if user.Role == models.RoleOfficer && req.Scope != nil {
		scope := &models.OfficerProfile{
			UserID:          user.ID,
			AssignedType:    req.Scope.AssignedType,
			AssignedFaculty: req.Scope.AssignedFaculty,
		}
		if err := s.users.UpsertOfficerProfile(ctx, scope); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store officer scope")
		}
	}

	s.recordAudit(ctx, actor, models.AuditActionUserUpdate, user)
	return user, nil
}

// AuditTrail lists audit log entries, newest first.
func (s *UserService) AuditTrail(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.users.ListAuditLogs(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *UserService) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *UserService) recordAudit(ctx context.Context, actor *models.JWTClaims, action string, user *models.User) {
	if actor == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
		"active":    user.Active,
	})
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		ActorRole:  string(actor.Role),
		Action:     action,
		Resource:   "user",
		ResourceID: &user.ID,
		NewValues:  payload,
	}
	if err := s.users.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
