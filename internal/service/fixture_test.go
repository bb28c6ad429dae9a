package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *repository.MemoryStore
	broker    *feed.Broker
	appts     *AppointmentService
	convs     *ConversationService
	gate      *SessionGate
	audit     *AuditLogger
	accounts  *AccountService
	forwarder *recordingForwarder
}

func newFixture(t *testing.T, opts AppointmentOptions) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	broker := feed.NewBroker()
	store := repository.NewMemoryStore(broker)

	appts := NewAppointmentService(store.Users(), store.Appointments(), store.Conversations(), broker, opts, logger)
	appts.SetClock(func() time.Time { return testNow })

	forwarder := &recordingForwarder{}
	audit := NewAuditLogger(store.Audit(), forwarder, logger)

	return &fixture{
		store:     store,
		broker:    broker,
		appts:     appts,
		convs:     NewConversationService(store.Users(), store.Conversations(), broker, logger),
		gate:      NewSessionGate(store.Users(), logger),
		audit:     audit,
		accounts:  NewAccountService(store.Users(), appts, audit, logger),
		forwarder: forwarder,
	}
}

func (f *fixture) addUser(t *testing.T, id string, role model.Role, active bool) *model.Session {
	t.Helper()
	u := &model.User{ID: id, Role: role, Name: "name-" + id, Email: id + "@school.test", Active: active}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return &model.Session{UID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// ensureUser registers an active account unless id is already known.
func (f *fixture) ensureUser(t *testing.T, id string, role model.Role) {
	t.Helper()
	u, err := f.store.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	if u == nil {
		f.addUser(t, id, role, true)
	}
}

func (f *fixture) book(t *testing.T, studentID, teacherID, date, clock string) *model.Appointment {
	t.Helper()
	f.ensureUser(t, teacherID, model.RoleTeacher)
	appt, err := f.appts.RequestBooking(context.Background(), BookingRequest{
		StudentID: studentID,
		TeacherID: teacherID,
		Date:      date,
		Time:      clock,
	})
	require.NoError(t, err)
	return appt
}

func (f *fixture) appointment(t *testing.T, id string) *model.Appointment {
	t.Helper()
	appt, err := f.store.Appointments().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, appt)
	return appt
}

type recordingForwarder struct {
	mu      sync.Mutex
	entries []*model.AuditEntry
}

func (r *recordingForwarder) Forward(_ context.Context, entry *model.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *recordingForwarder) Entries() []*model.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.AuditEntry(nil), r.entries...)
}

// recorder keeps the latest snapshot delivered by a feed.
type recorder[T any] struct {
	mu    sync.Mutex
	calls int
	last  T
}

func (r *recorder[T]) record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = v
}

func (r *recorder[T]) get() (T, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.calls
}

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond
