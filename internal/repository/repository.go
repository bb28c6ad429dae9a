package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/classdesk/internal/model"
)

// Lookups return (nil, nil) when the document does not exist.

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrUserNotFound        = errors.New("user not found")
	// ErrStatusChanged is returned by conditional status writes when the stored status
	// no longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

type AppointmentRepository interface {
	// Create assigns ID and CreatedAt.
	Create(ctx context.Context, appt *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	// FindBySlot returns appointments of teacherID at date/time with the given status.
	FindBySlot(ctx context.Context, teacherID, date, clock string, status model.AppointmentStatus) ([]*model.Appointment, error)
	// ListByStudent and ListByTeacher order by CreatedAt descending.
	ListByStudent(ctx context.Context, studentID string) ([]*model.Appointment, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]*model.Appointment, error)
	ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error)
	// UpdateStatus and Cancel write only while the stored status equals from.
	UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error
	Cancel(ctx context.Context, id string, from model.AppointmentStatus, reason string, at time.Time) error
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	// Put writes the conversation document, overwriting an identical one. CreatedAt is
	// assigned when zero.
	Put(ctx context.Context, conv *model.Conversation) error
	ListByTeacher(ctx context.Context, teacherID string) ([]*model.Conversation, error)
	ListByStudent(ctx context.Context, studentID string) ([]*model.Conversation, error)
	// Delete removes the conversation together with its messages.
	Delete(ctx context.Context, id string) error

	// AppendMessage assigns ID and CreatedAt.
	AppendMessage(ctx context.Context, msg *model.Message) error
	// ListMessages orders by CreatedAt ascending, ties in insertion order.
	ListMessages(ctx context.Context, threadID string) ([]*model.Message, error)
	DeleteMessages(ctx context.Context, threadID string) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry *model.AuditEntry) error
}
