package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
)

// ErrCounterpartUnavailable is returned when the other side of a booking or thread is not
// an active account of the expected role.
var ErrCounterpartUnavailable = errors.New("counterpart unavailable")

// resolveCounterpart loads the profile behind id and checks it can take part as role.
func resolveCounterpart(ctx context.Context, users repository.UserRepository, id string, role model.Role) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: counterpart id", ErrEmptyInput)
	}

	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get counterpart", err)
	}

	switch {
	case user == nil:
		return nil, fmt.Errorf("%w: %s not found", ErrCounterpartUnavailable, id)
	case user.Role != role:
		return nil, fmt.Errorf("%w: %s is not a %s", ErrCounterpartUnavailable, id, role)
	case !user.Active:
		return nil, fmt.Errorf("%w: %s is suspended", ErrCounterpartUnavailable, id)
	}
	return user, nil
}
