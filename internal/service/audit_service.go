package service

import (
	"context"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"go.uber.org/zap"
)

// AuditForwarder delivers audit entries outside the store, e.g. to an admin chat.
type AuditForwarder interface {
	Forward(ctx context.Context, entry *model.AuditEntry) error
}

// AuditLogger appends entries to the audit trail. Logging never fails the caller:
// write and forwarding errors are only reported in the service log.
type AuditLogger struct {
	auditRepo repository.AuditRepository
	forwarder AuditForwarder
	logger    *zap.Logger
}

// NewAuditLogger creates an audit logger. forwarder may be nil.
func NewAuditLogger(auditRepo repository.AuditRepository, forwarder AuditForwarder, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		auditRepo: auditRepo,
		forwarder: forwarder,
		logger:    logger,
	}
}

func (a *AuditLogger) LogAction(ctx context.Context, actor *model.Session, action string, details map[string]any) {
	entry := &model.AuditEntry{
		Action:  action,
		Details: details,
	}
	if actor != nil {
		entry.ActorID = actor.UID
		entry.ActorEmail = actor.Email
		entry.ActorRole = actor.Role
	}

	if err := a.auditRepo.Append(ctx, entry); err != nil {
		a.logger.Warn("Audit log failed", zap.String("action", action), zap.Error(err))
		return
	}

	if a.forwarder == nil {
		return
	}
	if err := a.forwarder.Forward(ctx, entry); err != nil {
		a.logger.Warn("Audit forward failed", zap.String("action", action), zap.Error(err))
	}
}
