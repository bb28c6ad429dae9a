package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSubscriptionManager_SwitchingThreadDetachesOld(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	teacher := f.addUser(t, "t1", model.RoleTeacher, true)
	f.addUser(t, "s1", model.RoleStudent, true)
	f.addUser(t, "s2", model.RoleStudent, true)
	m := NewSubscriptionManager(teacher, f.appts, f.convs, zaptest.NewLogger(t))
	defer m.Close()

	var feedA, feedB recorder[[]*model.Message]
	require.NoError(t, m.WatchThread(ctx, "s1", feedA.record, nil))
	require.Eventually(t, func() bool { _, n := feedA.get(); return n == 1 }, waitFor, tick)

	require.NoError(t, m.WatchThread(ctx, "s2", feedB.record, nil))
	_, callsA := feedA.get()

	key, ok := m.Active(FeedThread)
	require.True(t, ok)
	assert.Equal(t, model.ConversationKey("t1", "s2"), key)
	assert.Zero(t, f.broker.Subscribers(feed.ThreadTopic(model.ConversationKey("t1", "s1"))))

	// New activity on the old thread must not reach its handler.
	_, err := f.convs.Send(ctx, teacher, "s1", "to s1")
	require.NoError(t, err)
	_, err = f.convs.Send(ctx, teacher, "s2", "to s2")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		msgs, _ := feedB.get()
		return len(msgs) == 1
	}, waitFor, tick)

	_, after := feedA.get()
	assert.Equal(t, callsA, after)
}

func TestSubscriptionManager_SwitchWaitsForRunningHandler(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	m := NewSubscriptionManager(student, f.appts, f.convs, zaptest.NewLogger(t))
	defer m.Close()

	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, m.WatchThread(ctx, "t1", func([]*model.Message) {
		close(entered)
		<-release
	}, nil))
	<-entered

	switched := make(chan struct{})
	go func() {
		_ = m.WatchThread(ctx, "t2", func([]*model.Message) {}, nil)
		close(switched)
	}()

	select {
	case <-switched:
		t.Fatal("switch returned while the old handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-switched:
	case <-time.After(waitFor):
		t.Fatal("switch did not complete")
	}
}

func TestSubscriptionManager_SameKeyReplaces(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	m := NewSubscriptionManager(student, f.appts, f.convs, zaptest.NewLogger(t))
	defer m.Close()

	var first, second recorder[[]*model.Appointment]
	require.NoError(t, m.WatchAppointments(ctx, first.record, nil))
	require.NoError(t, m.WatchAppointments(ctx, second.record, nil))

	assert.Equal(t, 1, f.broker.Subscribers(feed.TopicAppointments))

	_, callsFirst := first.get()
	f.book(t, "s1", "t1", "2025-06-01", "10:00")

	require.Eventually(t, func() bool {
		list, _ := second.get()
		return len(list) == 1
	}, waitFor, tick)
	_, after := first.get()
	assert.Equal(t, callsFirst, after)
}

func TestSubscriptionManager_KindsAreIndependent(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	teacher := f.addUser(t, "t1", model.RoleTeacher, true)
	m := NewSubscriptionManager(teacher, f.appts, f.convs, zaptest.NewLogger(t))

	noopAppts := func([]*model.Appointment) {}
	noopMsgs := func([]*model.Message) {}
	noopConvs := func([]*model.Conversation) {}

	require.NoError(t, m.WatchAppointments(ctx, noopAppts, nil))
	require.NoError(t, m.WatchThread(ctx, "s1", noopMsgs, nil))
	require.NoError(t, m.WatchInbox(ctx, noopConvs, nil))

	for _, kind := range []FeedKind{FeedAppointments, FeedThread, FeedInbox} {
		_, ok := m.Active(kind)
		assert.True(t, ok, kind)
	}

	assert.True(t, m.Unsubscribe(FeedThread))
	assert.False(t, m.Unsubscribe(FeedThread))
	_, ok := m.Active(FeedThread)
	assert.False(t, ok)
	_, ok = m.Active(FeedInbox)
	assert.True(t, ok)

	m.Close()
	assert.Zero(t, f.broker.Subscribers(feed.TopicAppointments))
	assert.Zero(t, f.broker.Subscribers(feed.TopicConversations))

	err := m.WatchInbox(ctx, noopConvs, nil)
	assert.ErrorIs(t, err, ErrSubscriptionsClosed)
}

func TestSubscriptionManager_FailedStartLeavesKindInactive(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	m := NewSubscriptionManager(student, f.appts, f.convs, zaptest.NewLogger(t))
	defer m.Close()

	require.NoError(t, m.WatchThread(ctx, "t1", func([]*model.Message) {}, nil))

	f.store.InjectFault(0, errors.New("offline"))
	err := m.WatchThread(ctx, "t2", func([]*model.Message) {}, nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, ok := m.Active(FeedThread)
	assert.False(t, ok)
	assert.Zero(t, f.broker.Subscribers(feed.ThreadTopic(model.ConversationKey("s1", "t1"))))
}
