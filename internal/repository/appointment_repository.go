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

const appointmentColumns = `id, student_id, student_name, teacher_id, teacher_name, slot_date, slot_time, status, created_at, cancelled_reason, cancelled_at`

type AppointmentRepositoryPG struct {
	*base.Repository
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepositoryPG {
	return &AppointmentRepositoryPG{Repository: base.NewRepository(pool)}
}

// Create inserts a new appointment; created_at is assigned by the database
func (r *AppointmentRepositoryPG) Create(ctx context.Context, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (id, student_id, student_name, teacher_id, teacher_name, slot_date, slot_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	id := uuid.NewString()
	err := r.Pool().QueryRow(
		ctx, query,
		id,
		appt.StudentID,
		appt.StudentName,
		appt.TeacherID,
		appt.TeacherName,
		appt.Date,
		appt.Time,
		string(appt.Status),
	).Scan(&appt.CreatedAt)
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	appt.ID = id
	return nil
}

func (r *AppointmentRepositoryPG) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	rows, err := r.Pool().Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}

	appts, err := pgx.CollectRows(rows, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}
	if len(appts) == 0 {
		return nil, nil
	}
	return appts[0], nil
}

func (r *AppointmentRepositoryPG) FindBySlot(ctx context.Context, teacherID, date, clock string, status model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE teacher_id = $1 AND slot_date = $2 AND slot_time = $3 AND status = $4
		ORDER BY created_at DESC
	`
	return r.list(ctx, "find appointments by slot", query, teacherID, date, clock, string(status))
}

func (r *AppointmentRepositoryPG) ListByStudent(ctx context.Context, studentID string) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE student_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "list appointments by student", query, studentID)
}

func (r *AppointmentRepositoryPG) ListByTeacher(ctx context.Context, teacherID string) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE teacher_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "list appointments by teacher", query, teacherID)
}

func (r *AppointmentRepositoryPG) ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, "list appointments by status", query, string(status))
}

func (r *AppointmentRepositoryPG) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	affected, err := r.ExecAffected(ctx, r.Pool(),
		`UPDATE appointments SET status = $1 WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}

	if affected == 0 {
		return r.missOrChanged(ctx, id)
	}

	return nil
}

func (r *AppointmentRepositoryPG) Cancel(ctx context.Context, id string, from model.AppointmentStatus, reason string, at time.Time) error {
	query := `
		UPDATE appointments
		SET status = 'cancelled', cancelled_reason = $1, cancelled_at = $2
		WHERE id = $3 AND status = $4
	`

	affected, err := r.ExecAffected(ctx, r.Pool(), query, nullIfEmpty(reason), at, id, string(from))
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}

	if affected == 0 {
		return r.missOrChanged(ctx, id)
	}

	return nil
}

// missOrChanged explains a conditional update that touched no rows.
func (r *AppointmentRepositoryPG) missOrChanged(ctx context.Context, id string) error {
	var exists bool
	err := r.Pool().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check appointment: %w", err)
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrStatusChanged
}

func (r *AppointmentRepositoryPG) list(ctx context.Context, op, query string, args ...any) ([]*model.Appointment, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	appts, err := pgx.CollectRows(rows, scanAppointment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return appts, nil
}

func scanAppointment(row pgx.CollectableRow) (*model.Appointment, error) {
	var (
		a      model.Appointment
		status string
		reason *string
	)
	err := row.Scan(
		&a.ID,
		&a.StudentID,
		&a.StudentName,
		&a.TeacherID,
		&a.TeacherName,
		&a.Date,
		&a.Time,
		&status,
		&a.CreatedAt,
		&reason,
		&a.CancelledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan appointment: %w", err)
	}

	a.Status = model.AppointmentStatus(status)
	if reason != nil {
		a.CancelledReason = *reason
	}
	return &a, nil
}
