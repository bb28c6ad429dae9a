package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/classdesk/internal/model"
)

// Session resolution.
var (
	ErrProfileMissing   = errors.New("profile missing")
	ErrRoleMismatch     = errors.New("role mismatch")
	ErrAccountSuspended = errors.New("account suspended")
)

// Booking and messaging validation.
var (
	ErrSlotConflict      = errors.New("slot already taken")
	ErrPastDateTime      = errors.New("date and time must be in the future")
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotOwner          = errors.New("not allowed to act on this appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// RoleMismatchError is returned when a profile opens a dashboard of another role.
// Got lets the caller redirect to the right dashboard.
type RoleMismatchError struct {
	Want model.Role
	Got  model.Role
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("role mismatch: dashboard %s, profile %s", e.Want, e.Got)
}

func (e *RoleMismatchError) Unwrap() error {
	return ErrRoleMismatch
}

// IsSessionRejection reports whether err means the caller must be signed out.
func IsSessionRejection(err error) bool {
	return errors.Is(err, ErrProfileMissing) ||
		errors.Is(err, ErrRoleMismatch) ||
		errors.Is(err, ErrAccountSuspended)
}

// storeError marks a failed store call as ErrStoreUnavailable. Context cancellation is
// passed through unchanged.
func storeError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
