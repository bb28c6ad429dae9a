package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepositoryPG struct {
	*base.Repository
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepositoryPG {
	return &ConversationRepositoryPG{Repository: base.NewRepository(pool)}
}

func (r *ConversationRepositoryPG) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	query := `
		SELECT id, student_id, student_name, teacher_id, teacher_name, created_at
		FROM conversations
		WHERE id = $1
	`

	rows, err := r.Pool().Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	convs, err := pgx.CollectRows(rows, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if len(convs) == 0 {
		return nil, nil
	}
	return convs[0], nil
}

// Put writes the conversation document. A concurrent writer of the same pair ends up
// with the same row and the original created_at.
func (r *ConversationRepositoryPG) Put(ctx context.Context, conv *model.Conversation) error {
	query := `
		INSERT INTO conversations (id, student_id, student_name, teacher_id, teacher_name, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (id) DO UPDATE
		SET student_name = EXCLUDED.student_name, teacher_name = EXCLUDED.teacher_name
		RETURNING created_at
	`

	var createdAt *time.Time
	if !conv.CreatedAt.IsZero() {
		createdAt = &conv.CreatedAt
	}

	err := r.Pool().QueryRow(ctx, query,
		conv.ID,
		conv.StudentID,
		conv.StudentName,
		conv.TeacherID,
		conv.TeacherName,
		createdAt,
	).Scan(&conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("put conversation: %w", err)
	}

	return nil
}

func (r *ConversationRepositoryPG) ListByTeacher(ctx context.Context, teacherID string) ([]*model.Conversation, error) {
	return r.list(ctx, "list conversations by teacher", `teacher_id = $1`, teacherID)
}

func (r *ConversationRepositoryPG) ListByStudent(ctx context.Context, studentID string) ([]*model.Conversation, error) {
	return r.list(ctx, "list conversations by student", `student_id = $1`, studentID)
}

// Delete removes the conversation and every message in it
func (r *ConversationRepositoryPG) Delete(ctx context.Context, id string) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	return nil
}

// AppendMessage inserts a message; created_at is the database clock
func (r *ConversationRepositoryPG) AppendMessage(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, from_id, from_name, to_id, to_name, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	id := uuid.NewString()
	err := r.Pool().QueryRow(ctx, query,
		id,
		msg.ThreadID,
		msg.FromID,
		msg.FromName,
		msg.ToID,
		msg.ToName,
		msg.Text,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	msg.ID = id
	return nil
}

func (r *ConversationRepositoryPG) ListMessages(ctx context.Context, threadID string) ([]*model.Message, error) {
	query := `
		SELECT id, conversation_id, from_id, from_name, to_id, to_name, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.Pool().Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Message, error) {
		var m model.Message
		if err := row.Scan(&m.ID, &m.ThreadID, &m.FromID, &m.FromName, &m.ToID, &m.ToName, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		return &m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (r *ConversationRepositoryPG) DeleteMessages(ctx context.Context, threadID string) (int64, error) {
	affected, err := r.ExecAffected(ctx, r.Pool(), `DELETE FROM messages WHERE conversation_id = $1`, threadID)
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return affected, nil
}

func (r *ConversationRepositoryPG) list(ctx context.Context, op, where string, args ...any) ([]*model.Conversation, error) {
	query := `
		SELECT id, student_id, student_name, teacher_id, teacher_name, created_at
		FROM conversations
		WHERE ` + where + `
		ORDER BY created_at DESC, id ASC
	`

	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	convs, err := pgx.CollectRows(rows, scanConversation)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return convs, nil
}

func scanConversation(row pgx.CollectableRow) (*model.Conversation, error) {
	var c model.Conversation
	if err := row.Scan(&c.ID, &c.StudentID, &c.StudentName, &c.TeacherID, &c.TeacherName, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}
