package httpapi

import (
	"context"
	"net/http"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/service"
)

type SessionResolver interface {
	Resolve(ctx context.Context, uid string, dashboard model.Role) (*model.Session, error)
}

type AppointmentScheduler interface {
	RequestBooking(ctx context.Context, req service.BookingRequest) (*model.Appointment, error)
	SetStatus(ctx context.Context, session *model.Session, appointmentID string, action service.StatusAction) (*model.Appointment, error)
}

type Messenger interface {
	Send(ctx context.Context, session *model.Session, counterpartID, text string) (*model.Message, error)
	ClearThread(ctx context.Context, threadID string) (int64, error)
	ThreadWith(session *model.Session, counterpartID string) string
}

type AccountRemover interface {
	DeleteAccount(ctx context.Context, actor *model.Session, userID string) (*service.CascadeReport, error)
}

// FeedServer streams live feeds over an upgraded connection.
type FeedServer interface {
	Serve(w http.ResponseWriter, r *http.Request, session *model.Session)
}
