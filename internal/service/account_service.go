package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"go.uber.org/zap"
)

var ErrUserNotFound = errors.New("user not found")

// AccountService removes accounts on behalf of an admin.
type AccountService struct {
	userRepo repository.UserRepository
	appts    *AppointmentService
	audit    *AuditLogger
	logger   *zap.Logger
}

func NewAccountService(userRepo repository.UserRepository, appts *AppointmentService, audit *AuditLogger, logger *zap.Logger) *AccountService {
	return &AccountService{
		userRepo: userRepo,
		appts:    appts,
		audit:    audit,
		logger:   logger,
	}
}

// DeleteAccount runs the deletion cascade for a student or teacher and then removes the
// profile. A failed call can be repeated; steps already applied are skipped.
func (s *AccountService) DeleteAccount(ctx context.Context, actor *model.Session, userID string) (*CascadeReport, error) {
	if actor.Role != model.RoleAdmin {
		return nil, &RoleMismatchError{Want: model.RoleAdmin, Got: actor.Role}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Role == model.RoleAdmin {
		return nil, fmt.Errorf("%w: admin accounts cannot be deleted", ErrInvalidInput)
	}

	report, err := s.appts.CascadeOnAccountDeletion(ctx, user.ID, user.Role)
	if err != nil {
		return report, err
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return report, storeError("delete user", err)
	}

	role := user.Role.String()
	details := map[string]any{
		role + "Id":    user.ID,
		role + "Name":  user.Name,
		role + "Email": user.Email,
	}
	details["cancelledAppointments"] = len(report.CancelledAppointments)
	details["deletedConversations"] = len(report.DeletedConversations)
	s.audit.LogAction(ctx, actor, "admin_delete_"+role, details)

	s.logger.Info("Account deleted",
		zap.String("user_id", user.ID),
		zap.String("role", role),
		zap.String("actor_id", actor.UID),
	)
	return report, nil
}
