package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unihub-dev/clearance-api/internal/dto"
	"github.com/unihub-dev/clearance-api/internal/models"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
)

type statusChangeReader interface {
	RecentDecisionsByStudent(ctx context.Context, studentID string, since time.Time, limit int) ([]models.StatusChange, error)
	RecentSubmissionsForScope(ctx context.Context, typeSlug, faculty string, since time.Time, limit int) ([]models.StatusChange, error)
}

type officerScopeReader interface {
	FindOfficerProfile(ctx context.Context, userID string) (*models.OfficerProfile, error)
}

// NotificationServiceConfig tunes the pull projection window.
type NotificationServiceConfig struct {
	LookbackDays int
	MaxItems     int
}

// NotificationService derives notification feeds from request history on
// demand. Nothing is stored or pushed; clients poll.
type NotificationService struct {
	changes statusChangeReader
	scopes  officerScopeReader
	logger  *zap.Logger
	now     func() time.Time
	cfg     NotificationServiceConfig
}

// NewNotificationService constructs the service.
func NewNotificationService(changes statusChangeReader, scopes officerScopeReader, logger *zap.Logger, cfg NotificationServiceConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 14
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 20
	}
	return &NotificationService{changes: changes, scopes: scopes, logger: logger, now: time.Now, cfg: cfg}
}

// ForUser returns the notification feed for the authenticated principal.
// Students see their recent decisions, officers see recent submissions in
// their scope, admins see recent submissions system-wide.
func (s *NotificationService) ForUser(ctx context.Context, claims *models.JWTClaims) ([]dto.NotificationItem, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	since := s.now().UTC().AddDate(0, 0, -s.cfg.LookbackDays)

	switch claims.Role {
	case models.RoleStudent:
		changes, err := s.changes.RecentDecisionsByStudent(ctx, claims.UserID, since, s.cfg.MaxItems)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent decisions")
		}
		return decisionItems(changes), nil
	case models.RoleOfficer:
		scope, err := s.scopes.FindOfficerProfile(ctx, claims.UserID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load officer scope")
			}
			// Missing scope row means an unrestricted officer.
			scope = &models.OfficerProfile{UserID: claims.UserID}
		}
		changes, err := s.changes.RecentSubmissionsForScope(ctx, scope.AssignedType, scope.AssignedFaculty, since, s.cfg.MaxItems)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent submissions")
		}
		return submissionItems(changes), nil
	default:
		changes, err := s.changes.RecentSubmissionsForScope(ctx, "", "", since, s.cfg.MaxItems)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent submissions")
		}
		return submissionItems(changes), nil
	}
}

func decisionItems(changes []models.StatusChange) []dto.NotificationItem {
	items := make([]dto.NotificationItem, 0, len(changes))
	for _, c := range changes {
		message := fmt.Sprintf("Your %s clearance request %s was approved", c.Type, c.RequestID)
		if c.Status == models.StatusRejected {
			message = fmt.Sprintf("Your %s clearance request %s was rejected", c.Type, c.RequestID)
			if c.RejectionReason != nil && *c.RejectionReason != "" {
				message = fmt.Sprintf("%s: %s", message, *c.RejectionReason)
			}
		}
		items = append(items, dto.NotificationItem{
			RequestID: c.RequestID,
			Type:      c.Type,
			Status:    string(c.Status),
			Message:   message,
			At:        c.ChangedAt,
		})
	}
	return items
}

func submissionItems(changes []models.StatusChange) []dto.NotificationItem {
	items := make([]dto.NotificationItem, 0, len(changes))
	for _, c := range changes {
		items = append(items, dto.NotificationItem{
			RequestID: c.RequestID,
			Type:      c.Type,
			Status:    string(c.Status),
			Message:   fmt.Sprintf("New %s clearance request %s awaiting review", c.Type, c.RequestID),
			At:        c.ChangedAt,
		})
	}
	return items
}
