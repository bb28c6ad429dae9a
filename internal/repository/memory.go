package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/google/uuid"
)

// MemoryStore keeps every collection in process memory and publishes change topics to a
// feed.Broker after each write. It backs local development (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*model.User
	appointments  map[string]*model.Appointment
	conversations map[string]*model.Conversation
	messages      map[string][]*storedMessage
	logs          []*model.AuditEntry

	seq     int64
	lastMsg time.Time

	faultAfter int
	fault      error

	broker *feed.Broker
	now    func() time.Time
}

type storedMessage struct {
	seq int64
	msg *model.Message
}

func NewMemoryStore(broker *feed.Broker) *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		appointments:  make(map[string]*model.Appointment),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*storedMessage),
		broker:        broker,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the server timestamp source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// InjectFault lets the next `after` operations succeed and fails every later one with
// err until ClearFault is called.
func (s *MemoryStore) InjectFault(after int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faultAfter = after
	s.fault = err
}

func (s *MemoryStore) ClearFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = nil
}

// AuditLog returns a copy of the appended audit entries.
func (s *MemoryStore) AuditLog() []*model.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.AuditEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *MemoryStore) Users() *MemoryUserRepository {
	return &MemoryUserRepository{s: s}
}

func (s *MemoryStore) Appointments() *MemoryAppointmentRepository {
	return &MemoryAppointmentRepository{s: s}
}

func (s *MemoryStore) Conversations() *MemoryConversationRepository {
	return &MemoryConversationRepository{s: s}
}

func (s *MemoryStore) Audit() *MemoryAuditRepository {
	return &MemoryAuditRepository{s: s}
}

// begin must be called with s.mu held.
func (s *MemoryStore) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.fault == nil {
		return nil
	}
	if s.faultAfter > 0 {
		s.faultAfter--
		return nil
	}
	return s.fault
}

func (s *MemoryStore) publish(topics ...feed.Topic) {
	if s.broker == nil {
		return
	}
	for _, t := range topics {
		s.broker.Publish(t)
	}
}

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	if _, ok := r.s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

type MemoryAppointmentRepository struct{ s *MemoryStore }

func (r *MemoryAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	appt.ID = uuid.NewString()
	appt.CreatedAt = r.s.now()
	cp := *appt
	r.s.appointments[appt.ID] = &cp

	r.s.publish(feed.TopicAppointments)
	return nil
}

func (r *MemoryAppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, nil
	}
	return copyAppointment(a), nil
}

func (r *MemoryAppointmentRepository) FindBySlot(ctx context.Context, teacherID, date, clock string, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return r.filter(ctx, func(a *model.Appointment) bool {
		return a.TeacherID == teacherID && a.Date == date && a.Time == clock && a.Status == status
	})
}

func (r *MemoryAppointmentRepository) ListByStudent(ctx context.Context, studentID string) ([]*model.Appointment, error) {
	return r.filter(ctx, func(a *model.Appointment) bool { return a.StudentID == studentID })
}

func (r *MemoryAppointmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*model.Appointment, error) {
	return r.filter(ctx, func(a *model.Appointment) bool { return a.TeacherID == teacherID })
}

func (r *MemoryAppointmentRepository) ListByStatus(ctx context.Context, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return r.filter(ctx, func(a *model.Appointment) bool { return a.Status == status })
}

func (r *MemoryAppointmentRepository) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, err := r.lockedMatch(ctx, id, from)
	if err != nil {
		return err
	}
	a.Status = to

	r.s.publish(feed.TopicAppointments)
	return nil
}

func (r *MemoryAppointmentRepository) Cancel(ctx context.Context, id string, from model.AppointmentStatus, reason string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, err := r.lockedMatch(ctx, id, from)
	if err != nil {
		return err
	}
	a.Status = model.AppointmentStatusCancelled
	a.CancelledReason = reason
	a.CancelledAt = &at

	r.s.publish(feed.TopicAppointments)
	return nil
}

// lockedMatch must be called with s.mu held.
func (r *MemoryAppointmentRepository) lockedMatch(ctx context.Context, id string, from model.AppointmentStatus) (*model.Appointment, error) {
	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}
	return a, nil
}

// filter returns matching appointments, newest first.
func (r *MemoryAppointmentRepository) filter(ctx context.Context, match func(*model.Appointment) bool) ([]*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if match(a) {
			out = append(out, copyAppointment(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyAppointment(a *model.Appointment) *model.Appointment {
	cp := *a
	if a.CancelledAt != nil {
		at := *a.CancelledAt
		cp.CancelledAt = &at
	}
	return &cp
}

type MemoryConversationRepository struct{ s *MemoryStore }

func (r *MemoryConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryConversationRepository) Put(ctx context.Context, conv *model.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = r.s.now()
	}
	cp := *conv
	r.s.conversations[conv.ID] = &cp

	r.s.publish(feed.TopicConversations)
	return nil
}

func (r *MemoryConversationRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*model.Conversation, error) {
	return r.filter(ctx, func(c *model.Conversation) bool { return c.TeacherID == teacherID })
}

func (r *MemoryConversationRepository) ListByStudent(ctx context.Context, studentID string) ([]*model.Conversation, error) {
	return r.filter(ctx, func(c *model.Conversation) bool { return c.StudentID == studentID })
}

func (r *MemoryConversationRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	delete(r.s.conversations, id)
	delete(r.s.messages, id)

	r.s.publish(feed.TopicConversations, feed.ThreadTopic(id))
	return nil
}

func (r *MemoryConversationRepository) AppendMessage(ctx context.Context, msg *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}

	// Server timestamps never run backwards within the store.
	ts := r.s.now()
	if ts.Before(r.s.lastMsg) {
		ts = r.s.lastMsg
	}
	r.s.lastMsg = ts
	r.s.seq++

	msg.ID = uuid.NewString()
	msg.CreatedAt = ts
	cp := *msg
	r.s.messages[msg.ThreadID] = append(r.s.messages[msg.ThreadID], &storedMessage{seq: r.s.seq, msg: &cp})

	r.s.publish(feed.ThreadTopic(msg.ThreadID))
	return nil
}

func (r *MemoryConversationRepository) ListMessages(ctx context.Context, threadID string) ([]*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}

	stored := make([]*storedMessage, len(r.s.messages[threadID]))
	copy(stored, r.s.messages[threadID])
	sort.SliceStable(stored, func(i, j int) bool {
		if stored[i].msg.CreatedAt.Equal(stored[j].msg.CreatedAt) {
			return stored[i].seq < stored[j].seq
		}
		return stored[i].msg.CreatedAt.Before(stored[j].msg.CreatedAt)
	})

	out := make([]*model.Message, 0, len(stored))
	for _, m := range stored {
		cp := *m.msg
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryConversationRepository) DeleteMessages(ctx context.Context, threadID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return 0, err
	}
	n := int64(len(r.s.messages[threadID]))
	delete(r.s.messages, threadID)

	if n > 0 {
		r.s.publish(feed.ThreadTopic(threadID))
	}
	return n, nil
}

func (r *MemoryConversationRepository) filter(ctx context.Context, match func(*model.Conversation) bool) ([]*model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return nil, err
	}

	var out []*model.Conversation
	for _, c := range r.s.conversations {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type MemoryAuditRepository struct{ s *MemoryStore }

func (r *MemoryAuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.begin(ctx); err != nil {
		return err
	}
	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.s.now()
	}
	cp := *entry
	r.s.logs = append(r.s.logs, &cp)
	return nil
}

var (
	_ UserRepository         = (*MemoryUserRepository)(nil)
	_ AppointmentRepository  = (*MemoryAppointmentRepository)(nil)
	_ ConversationRepository = (*MemoryConversationRepository)(nil)
	_ AuditRepository        = (*MemoryAuditRepository)(nil)
)
