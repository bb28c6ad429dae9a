package model

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"   // Waiting for the teacher
	AppointmentStatusApproved  AppointmentStatus = "approved"  // Slot taken
	AppointmentStatusCancelled AppointmentStatus = "cancelled" // Terminal
)

// Cancellation reason codes written by the account deletion cascade and the sweeper.
const (
	CancelReasonTeacherDeleted = "teacher_deleted"
	CancelReasonStudentDeleted = "student_deleted"
	CancelReasonExpired        = "expired"
)

// Date and time layouts of the appointment slot fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type Appointment struct {
	ID              string            `json:"id"`
	StudentID       string            `json:"studentId"`
	StudentName     string            `json:"studentName"`
	TeacherID       string            `json:"teacherId"`
	TeacherName     string            `json:"teacherName"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	CancelledReason string            `json:"cancelledReason,omitempty"`
	CancelledAt     *time.Time        `json:"cancelledAt,omitempty"`
}

// CanTransition reports whether status may move from s to next.
// Statuses only move forward and nothing leaves cancelled.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	switch s {
	case AppointmentStatusPending:
		return next == AppointmentStatusApproved || next == AppointmentStatusCancelled
	case AppointmentStatusApproved:
		return next == AppointmentStatusCancelled
	default:
		return false
	}
}

// SlotTime returns the start of the appointment slot in loc.
func SlotTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot %s %s: %w", date, clock, err)
	}
	return t, nil
}
