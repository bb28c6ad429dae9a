package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"go.uber.org/zap"
)

type FeedKind string

const (
	FeedAppointments FeedKind = "appointments"
	FeedThread       FeedKind = "thread"
	FeedInbox        FeedKind = "inbox"
)

var ErrSubscriptionsClosed = errors.New("subscriptions closed")

type subscription struct {
	key    string
	handle *feed.Handle
}

// SubscriptionManager holds the live feeds of one client, at most one per kind.
// Starting a feed of a kind that is already active cancels the old listener first,
// so once Subscribe returns the old handler is never called again.
//
// Feed handlers must not call back into the manager.
type SubscriptionManager struct {
	session *model.Session
	appts   *AppointmentService
	convs   *ConversationService
	logger  *zap.Logger

	mu     sync.Mutex
	active map[FeedKind]*subscription
	closed bool
}

func NewSubscriptionManager(session *model.Session, appts *AppointmentService, convs *ConversationService, logger *zap.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		session: session,
		appts:   appts,
		convs:   convs,
		logger:  logger.With(zap.String("uid", session.UID)),
		active:  make(map[FeedKind]*subscription),
	}
}

// Subscribe replaces the feed of the given kind with the one returned by start.
// If start fails the kind is left inactive.
func (m *SubscriptionManager) Subscribe(kind FeedKind, key string, start func() (*feed.Handle, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSubscriptionsClosed
	}

	if old, ok := m.active[kind]; ok {
		old.handle.Cancel()
		delete(m.active, kind)
		m.logger.Debug("Feed detached",
			zap.String("kind", string(kind)),
			zap.String("key", old.key),
		)
	}

	h, err := start()
	if err != nil {
		return err
	}
	m.active[kind] = &subscription{key: key, handle: h}

	m.logger.Debug("Feed attached",
		zap.String("kind", string(kind)),
		zap.String("key", key),
	)
	return nil
}

// Unsubscribe cancels the feed of the given kind. It reports whether one was active.
func (m *SubscriptionManager) Unsubscribe(kind FeedKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.active[kind]
	if !ok {
		return false
	}
	sub.handle.Cancel()
	delete(m.active, kind)
	return true
}

// Active returns the key of the live feed of the given kind.
func (m *SubscriptionManager) Active(kind FeedKind) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.active[kind]
	if !ok || !sub.handle.Active() {
		return "", false
	}
	return sub.key, true
}

// Close cancels every feed. Later Subscribe calls fail with ErrSubscriptionsClosed.
func (m *SubscriptionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, sub := range m.active {
		sub.handle.Cancel()
		delete(m.active, kind)
	}
	m.closed = true
}

func (m *SubscriptionManager) WatchAppointments(ctx context.Context, onUpdate func([]*model.Appointment), onErr func(error)) error {
	return m.Subscribe(FeedAppointments, m.session.UID, func() (*feed.Handle, error) {
		return m.appts.SubscribeAppointments(ctx, m.session, onUpdate, onErr)
	})
}

// WatchThread follows the conversation between the session owner and counterpartID.
func (m *SubscriptionManager) WatchThread(ctx context.Context, counterpartID string, onUpdate func([]*model.Message), onErr func(error)) error {
	threadID := m.convs.ThreadWith(m.session, counterpartID)
	return m.Subscribe(FeedThread, threadID, func() (*feed.Handle, error) {
		return m.convs.SubscribeThread(ctx, threadID, onUpdate, onErr)
	})
}

func (m *SubscriptionManager) WatchInbox(ctx context.Context, onUpdate func([]*model.Conversation), onErr func(error)) error {
	return m.Subscribe(FeedInbox, m.session.UID, func() (*feed.Handle, error) {
		return m.convs.SubscribeInbox(ctx, m.session, onUpdate, onErr)
	})
}
