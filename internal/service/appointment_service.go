package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type StatusAction string

const (
	ActionApprove StatusAction = "approve"
	ActionCancel  StatusAction = "cancel"
)

func ParseStatusAction(s string) (StatusAction, error) {
	switch StatusAction(s) {
	case ActionApprove, ActionCancel:
		return StatusAction(s), nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, s)
	}
}

func (a StatusAction) target() model.AppointmentStatus {
	if a == ActionApprove {
		return model.AppointmentStatusApproved
	}
	return model.AppointmentStatusCancelled
}

// BookingRequest carries the booking form. The teacher's display name is taken from the
// stored profile.
type BookingRequest struct {
	StudentID   string `validate:"required"`
	StudentName string
	TeacherID   string `validate:"required"`
	Date        string `validate:"required,datetime=2006-01-02"`
	Time        string `validate:"required,datetime=15:04"`
}

// CascadeReport lists what an account deletion cascade has applied so far.
type CascadeReport struct {
	UserID                string
	Role                  model.Role
	CancelledAppointments []string
	DeletedConversations  []string
}

type AppointmentOptions struct {
	// Location is the zone booking dates and times are written in. Defaults to UTC.
	Location *time.Location
	// StrictApproval re-checks the slot before approving.
	StrictApproval bool
}

type AppointmentService struct {
	userRepo repository.UserRepository
	apptRepo repository.AppointmentRepository
	convRepo repository.ConversationRepository
	broker   *feed.Broker
	validate *validator.Validate
	opts     AppointmentOptions
	now      func() time.Time
	logger   *zap.Logger
}

func NewAppointmentService(
	userRepo repository.UserRepository,
	apptRepo repository.AppointmentRepository,
	convRepo repository.ConversationRepository,
	broker *feed.Broker,
	opts AppointmentOptions,
	logger *zap.Logger,
) *AppointmentService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &AppointmentService{
		userRepo: userRepo,
		apptRepo: apptRepo,
		convRepo: convRepo,
		broker:   broker,
		validate: validator.New(),
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source used for past-date checks and expiry.
func (s *AppointmentService) SetClock(now func() time.Time) {
	s.now = now
}

// RequestBooking creates a pending appointment for a free slot of an active teacher.
//
// The conflict check and the insert are separate store calls, so two requests for the
// same open slot may both be accepted as pending. Only approval takes the slot.
func (s *AppointmentService) RequestBooking(ctx context.Context, req BookingRequest) (*model.Appointment, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	slot, err := model.SlotTime(req.Date, req.Time, s.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !slot.After(s.now()) {
		return nil, ErrPastDateTime
	}

	teacher, err := resolveCounterpart(ctx, s.userRepo, req.TeacherID, model.RoleTeacher)
	if err != nil {
		return nil, err
	}

	taken, err := s.apptRepo.FindBySlot(ctx, req.TeacherID, req.Date, req.Time, model.AppointmentStatusApproved)
	if err != nil {
		return nil, storeError("check slot", err)
	}
	if len(taken) > 0 {
		s.logger.Info("Booking rejected: slot taken",
			zap.String("teacher_id", req.TeacherID),
			zap.String("date", req.Date),
			zap.String("time", req.Time),
		)
		return nil, ErrSlotConflict
	}

	appt := &model.Appointment{
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		TeacherID:   req.TeacherID,
		TeacherName: teacher.DisplayName(),
		Date:        req.Date,
		Time:        req.Time,
		Status:      model.AppointmentStatusPending,
	}
	if err := s.apptRepo.Create(ctx, appt); err != nil {
		return nil, storeError("create appointment", err)
	}

	s.logger.Info("Appointment requested",
		zap.String("appointment_id", appt.ID),
		zap.String("student_id", appt.StudentID),
		zap.String("teacher_id", appt.TeacherID),
	)
	return appt, nil
}

func (s *AppointmentService) validateRequest(req BookingRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate booking: %w", err)
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return fmt.Errorf("%w: %s", ErrEmptyInput, fe.Field())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, verrs[0].Field())
}

// SetStatus applies a teacher decision to an appointment. Repeating a decision that is
// already in effect is a no-op. The write only lands if the status is still the one that
// was checked; a concurrent change makes the decision fail with ErrInvalidTransition.
func (s *AppointmentService) SetStatus(ctx context.Context, session *model.Session, appointmentID string, action StatusAction) (*model.Appointment, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, storeError("get appointment", err)
	}
	if appt == nil {
		return nil, ErrAppointmentNotFound
	}

	switch session.Role {
	case model.RoleAdmin:
	case model.RoleTeacher:
		if appt.TeacherID != session.UID {
			return nil, ErrNotOwner
		}
	case model.RoleStudent:
		return nil, ErrNotOwner
	}

	next := action.target()
	if appt.Status == next {
		return appt, nil
	}
	if !appt.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, appt.Status, next)
	}

	if next == model.AppointmentStatusApproved && s.opts.StrictApproval {
		taken, err := s.apptRepo.FindBySlot(ctx, appt.TeacherID, appt.Date, appt.Time, model.AppointmentStatusApproved)
		if err != nil {
			return nil, storeError("check slot", err)
		}
		for _, other := range taken {
			if other.ID != appt.ID {
				return nil, ErrSlotConflict
			}
		}
	}

	err = s.apptRepo.UpdateStatus(ctx, appt.ID, appt.Status, next)
	switch {
	case errors.Is(err, repository.ErrAppointmentNotFound):
		return nil, ErrAppointmentNotFound
	case errors.Is(err, repository.ErrStatusChanged):
		return s.afterLostRace(ctx, appt.ID, next)
	case err != nil:
		return nil, storeError("update appointment status", err)
	}
	appt.Status = next

	s.logger.Info("Appointment status changed",
		zap.String("appointment_id", appt.ID),
		zap.String("status", string(next)),
		zap.String("actor_id", session.UID),
	)
	return appt, nil
}

// afterLostRace re-reads an appointment whose status changed under a decision.
func (s *AppointmentService) afterLostRace(ctx context.Context, id string, next model.AppointmentStatus) (*model.Appointment, error) {
	current, err := s.apptRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get appointment", err)
	}
	if current == nil {
		return nil, ErrAppointmentNotFound
	}
	if current.Status == next {
		return current, nil
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, next)
}

// CascadeOnAccountDeletion cancels every live appointment of a deleted account and, for
// teachers, removes their conversations. Steps are applied one by one; on failure the
// report holds the applied prefix and running the cascade again finishes the rest.
func (s *AppointmentService) CascadeOnAccountDeletion(ctx context.Context, userID string, role model.Role) (*CascadeReport, error) {
	report := &CascadeReport{UserID: userID, Role: role}

	var (
		appts  []*model.Appointment
		reason string
		err    error
	)
	switch role {
	case model.RoleTeacher:
		appts, err = s.apptRepo.ListByTeacher(ctx, userID)
		reason = model.CancelReasonTeacherDeleted
	case model.RoleStudent:
		appts, err = s.apptRepo.ListByStudent(ctx, userID)
		reason = model.CancelReasonStudentDeleted
	case model.RoleAdmin:
		return report, nil
	}
	if err != nil {
		return report, storeError("list appointments", err)
	}

	for _, appt := range appts {
		cancelled, err := s.cancelLive(ctx, appt, reason)
		if err != nil {
			return report, err
		}
		if cancelled {
			report.CancelledAppointments = append(report.CancelledAppointments, appt.ID)
		}
	}

	if role == model.RoleTeacher {
		convs, err := s.convRepo.ListByTeacher(ctx, userID)
		if err != nil {
			return report, storeError("list conversations", err)
		}
		for _, conv := range convs {
			if err := s.convRepo.Delete(ctx, conv.ID); err != nil {
				return report, storeError("delete conversation", err)
			}
			report.DeletedConversations = append(report.DeletedConversations, conv.ID)
		}
	}

	s.logger.Info("Account cascade applied",
		zap.String("user_id", userID),
		zap.String("role", role.String()),
		zap.Int("cancelled_appointments", len(report.CancelledAppointments)),
		zap.Int("deleted_conversations", len(report.DeletedConversations)),
	)
	return report, nil
}

// cancelLive cancels appt unless it is already cancelled, following status changes made
// by concurrent writers.
func (s *AppointmentService) cancelLive(ctx context.Context, appt *model.Appointment, reason string) (bool, error) {
	from := appt.Status
	for {
		if from == model.AppointmentStatusCancelled {
			return false, nil
		}

		err := s.apptRepo.Cancel(ctx, appt.ID, from, reason, s.now().UTC())
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, repository.ErrAppointmentNotFound):
			return false, nil
		case !errors.Is(err, repository.ErrStatusChanged):
			return false, storeError("cancel appointment", err)
		}

		current, err := s.apptRepo.GetByID(ctx, appt.ID)
		if err != nil {
			return false, storeError("get appointment", err)
		}
		if current == nil {
			return false, nil
		}
		from = current.Status
	}
}

// SubscribeAppointments streams the appointments of the session owner, newest first.
func (s *AppointmentService) SubscribeAppointments(
	ctx context.Context,
	session *model.Session,
	onUpdate func([]*model.Appointment),
	onErr func(error),
) (*feed.Handle, error) {
	var load func(context.Context) ([]*model.Appointment, error)

	switch session.Role {
	case model.RoleStudent:
		load = func(ctx context.Context) ([]*model.Appointment, error) {
			return s.apptRepo.ListByStudent(ctx, session.UID)
		}
	case model.RoleTeacher:
		load = func(ctx context.Context) ([]*model.Appointment, error) {
			return s.apptRepo.ListByTeacher(ctx, session.UID)
		}
	case model.RoleAdmin:
		return nil, fmt.Errorf("appointments feed for %s: %w", session.Role, ErrRoleMismatch)
	}

	h, err := feed.Watch(ctx, s.broker, feed.TopicAppointments, load, onUpdate, onErr)
	if err != nil {
		return nil, storeError("subscribe appointments", err)
	}
	return h, nil
}

// ExpireStalePending cancels pending appointments whose slot has already started. An
// appointment decided in the meantime is left alone.
func (s *AppointmentService) ExpireStalePending(ctx context.Context) (int, error) {
	pending, err := s.apptRepo.ListByStatus(ctx, model.AppointmentStatusPending)
	if err != nil {
		return 0, storeError("list pending appointments", err)
	}

	now := s.now()
	expired := 0
	for _, appt := range pending {
		slot, err := model.SlotTime(appt.Date, appt.Time, s.opts.Location)
		if err != nil {
			s.logger.Warn("Skipping appointment with malformed slot",
				zap.String("appointment_id", appt.ID),
				zap.Error(err),
			)
			continue
		}
		if slot.After(now) {
			continue
		}
		err = s.apptRepo.Cancel(ctx, appt.ID, model.AppointmentStatusPending, model.CancelReasonExpired, now.UTC())
		switch {
		case errors.Is(err, repository.ErrStatusChanged), errors.Is(err, repository.ErrAppointmentNotFound):
			continue
		case err != nil:
			return expired, storeError("expire appointment", err)
		}
		expired++
	}
	return expired, nil
}
