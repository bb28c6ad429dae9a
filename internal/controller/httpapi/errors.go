package httpapi

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/classdesk/internal/service"
	"github.com/gin-gonic/gin"
)

var errMissingIdentity = errors.New("missing " + HeaderUserID + " header")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errMissingIdentity), errors.Is(err, service.ErrProfileMissing):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRoleMismatch),
		errors.Is(err, service.ErrAccountSuspended),
		errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAppointmentNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCounterpartUnavailable):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSlotConflict), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyInput),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrPastDateTime):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error response. Role mismatches carry the caller's actual
// role so the client can switch dashboards.
func abortWithError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var mismatch *service.RoleMismatchError
	if errors.As(err, &mismatch) {
		body["role"] = mismatch.Got
	}
	if service.IsSessionRejection(err) || errors.Is(err, errMissingIdentity) {
		body["signOut"] = true
	}

	c.AbortWithStatusJSON(statusFor(err), body)
}
