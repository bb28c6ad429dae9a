package service

import (
	"context"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"go.uber.org/zap"
)

// SessionGate turns an authenticated identity into a role-scoped Session.
type SessionGate struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewSessionGate(userRepo repository.UserRepository, logger *zap.Logger) *SessionGate {
	return &SessionGate{
		userRepo: userRepo,
		logger:   logger,
	}
}

// Resolve loads the profile of uid for the dashboard of the given role.
// Rejections satisfy IsSessionRejection.
func (g *SessionGate) Resolve(ctx context.Context, uid string, dashboard model.Role) (*model.Session, error) {
	user, err := g.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, storeError("get profile", err)
	}
	if user == nil {
		g.logger.Warn("Session rejected: profile missing", zap.String("uid", uid))
		return nil, ErrProfileMissing
	}

	if user.Role != dashboard {
		g.logger.Warn("Session rejected: role mismatch",
			zap.String("uid", uid),
			zap.String("dashboard", dashboard.String()),
			zap.String("role", user.Role.String()),
		)
		return nil, &RoleMismatchError{Want: dashboard, Got: user.Role}
	}

	switch user.Role {
	case model.RoleStudent, model.RoleTeacher:
		if !user.Active {
			g.logger.Warn("Session rejected: account inactive",
				zap.String("uid", uid),
				zap.String("role", user.Role.String()),
			)
			return nil, ErrAccountSuspended
		}
	case model.RoleAdmin:
	}

	return &model.Session{
		UID:    user.ID,
		Role:   user.Role,
		Name:   user.Name,
		Email:  user.Email,
		Domain: user.Domain,
	}, nil
}
