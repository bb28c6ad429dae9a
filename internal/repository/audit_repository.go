package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepositoryPG struct {
	*base.Repository
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepositoryPG {
	return &AuditRepositoryPG{Repository: base.NewRepository(pool)}
}

// Append writes one entry to the append-only logs table
func (r *AuditRepositoryPG) Append(ctx context.Context, entry *model.AuditEntry) error {
	query := `
		INSERT INTO logs (id, action, details, actor_id, actor_email, actor_role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING timestamp
	`

	id := uuid.NewString()
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}

	err := r.Pool().QueryRow(ctx, query,
		id,
		entry.Action,
		details,
		nullIfEmpty(entry.ActorID),
		nullIfEmpty(entry.ActorEmail),
		nullIfEmpty(string(entry.ActorRole)),
	).Scan(&entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	entry.ID = id
	return nil
}

var (
	_ UserRepository         = (*UserRepositoryPG)(nil)
	_ AppointmentRepository  = (*AppointmentRepositoryPG)(nil)
	_ ConversationRepository = (*ConversationRepositoryPG)(nil)
	_ AuditRepository        = (*AuditRepositoryPG)(nil)
)
