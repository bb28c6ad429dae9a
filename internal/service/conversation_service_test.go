package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureThread_OnePerPair(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := f.convs.EnsureThread(ctx, "s1", "t1", "Sam", "Tess")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, model.ConversationKey("t1", "s1"), id)
	}

	convs, err := f.store.Conversations().ListByTeacher(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Sam", convs[0].StudentName)
	assert.Equal(t, "Tess", convs[0].TeacherName)
}

func TestEnsureThread_KeepsExisting(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()

	id, err := f.convs.EnsureThread(ctx, "s1", "t1", "Sam", "Tess")
	require.NoError(t, err)
	first, err := f.store.Conversations().GetByID(ctx, id)
	require.NoError(t, err)

	_, err = f.convs.EnsureThread(ctx, "s1", "t1", "Samuel", "Tessa")
	require.NoError(t, err)
	again, err := f.store.Conversations().GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, first, again)
}

func TestAppendMessage_RejectsBlankBeforeWrite(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()

	// Any store call would fail, so only validation can answer.
	f.store.InjectFault(0, errors.New("store down"))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := f.convs.AppendMessage(ctx, "s1_t1", model.Participant{ID: "s1"}, model.Participant{ID: "t1"}, text)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	}

	student := &model.Session{UID: "s1", Role: model.RoleStudent}
	_, err := f.convs.Send(ctx, student, "t1", "  ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	f.store.ClearFault()
	msgs, err := f.store.Conversations().ListMessages(ctx, "s1_t1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	conv, err := f.store.Conversations().GetByID(ctx, "s1_t1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestSend_BothDirectionsShareThread(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	teacher := f.addUser(t, "t1", model.RoleTeacher, true)

	m1, err := f.convs.Send(ctx, student, "t1", " hello ")
	require.NoError(t, err)
	m2, err := f.convs.Send(ctx, teacher, "s1", "hi there")
	require.NoError(t, err)

	assert.Equal(t, m1.ThreadID, m2.ThreadID)
	assert.Equal(t, "hello", m1.Text)
	assert.Equal(t, "s1", m1.FromID)
	assert.Equal(t, "t1", m1.ToID)
	assert.Equal(t, "t1", m2.FromID)

	conv, err := f.store.Conversations().GetByID(ctx, m1.ThreadID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "s1", conv.StudentID)
	assert.Equal(t, "t1", conv.TeacherID)
	assert.Equal(t, student.Name, conv.StudentName)
	assert.Equal(t, teacher.Name, conv.TeacherName)
	assert.Equal(t, teacher.Name, m1.ToName)

	msgs, err := f.store.Conversations().ListMessages(ctx, m1.ThreadID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, m1.ID, msgs[0].ID)
	assert.Equal(t, m2.ID, msgs[1].ID)

	admin := &model.Session{UID: "a1", Role: model.RoleAdmin}
	_, err = f.convs.Send(ctx, admin, "s1", "hey")
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestSend_RecipientMustBeActiveCounterpart(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	teacher := f.addUser(t, "t1", model.RoleTeacher, true)
	f.addUser(t, "s2", model.RoleStudent, true)
	f.addUser(t, "t-off", model.RoleTeacher, false)

	tests := []struct {
		name   string
		from   *model.Session
		toID   string
		thread string
	}{
		{"student to student", student, "s2", model.ConversationKey("s1", "s2")},
		{"student to suspended teacher", student, "t-off", model.ConversationKey("s1", "t-off")},
		{"student to unknown", student, "nobody", model.ConversationKey("s1", "nobody")},
		{"teacher to teacher", teacher, "t-off", model.ConversationKey("t1", "t-off")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.convs.Send(ctx, tt.from, tt.toID, "hello")
			assert.ErrorIs(t, err, ErrCounterpartUnavailable)

			conv, err := f.store.Conversations().GetByID(ctx, tt.thread)
			require.NoError(t, err)
			assert.Nil(t, conv)
		})
	}
}

func TestSubscribeThread_OrderedAndMonotonic(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()

	threadID, err := f.convs.EnsureThread(ctx, "s1", "t1", "Sam", "Tess")
	require.NoError(t, err)

	var feed recorder[[]*model.Message]
	var mu sync.Mutex
	violations := 0
	h, err := f.convs.SubscribeThread(ctx, threadID, func(msgs []*model.Message) {
		for i := 1; i < len(msgs); i++ {
			if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
				mu.Lock()
				violations++
				mu.Unlock()
			}
		}
		feed.record(msgs)
	}, nil)
	require.NoError(t, err)
	defer h.Cancel()

	// The store clock jumps backwards between writes.
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{3 * time.Second, time.Second, 2 * time.Second, 0}
	sam := model.Participant{ID: "s1", Name: "Sam"}
	tess := model.Participant{ID: "t1", Name: "Tess"}
	for i, off := range offsets {
		at := base.Add(off)
		f.store.SetClock(func() time.Time { return at })
		_, err := f.convs.AppendMessage(ctx, threadID, sam, tess, string(rune('a'+i)))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		msgs, _ := feed.get()
		return len(msgs) == len(offsets)
	}, waitFor, tick)

	msgs, _ := feed.get()
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, texts)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, violations)
}

func TestClearThread_KeepsThreadAndNotifies(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	student := f.addUser(t, "s1", model.RoleStudent, true)
	f.addUser(t, "t1", model.RoleTeacher, true)

	for _, text := range []string{"one", "two"} {
		_, err := f.convs.Send(ctx, student, "t1", text)
		require.NoError(t, err)
	}
	threadID := model.ConversationKey("s1", "t1")

	var feed recorder[[]*model.Message]
	h, err := f.convs.SubscribeThread(ctx, threadID, feed.record, nil)
	require.NoError(t, err)
	defer h.Cancel()

	require.Eventually(t, func() bool {
		msgs, _ := feed.get()
		return len(msgs) == 2
	}, waitFor, tick)

	n, err := f.convs.ClearThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Eventually(t, func() bool {
		msgs, calls := feed.get()
		return calls >= 2 && len(msgs) == 0
	}, waitFor, tick)

	conv, err := f.store.Conversations().GetByID(ctx, threadID)
	require.NoError(t, err)
	assert.NotNil(t, conv)
}

func TestSubscribeInbox(t *testing.T) {
	f := newFixture(t, AppointmentOptions{})
	ctx := context.Background()
	teacher := f.addUser(t, "t1", model.RoleTeacher, true)

	var inbox recorder[[]*model.Conversation]
	h, err := f.convs.SubscribeInbox(ctx, teacher, inbox.record, nil)
	require.NoError(t, err)
	defer h.Cancel()

	for _, sid := range []string{"s1", "s2"} {
		_, err := f.convs.EnsureThread(ctx, sid, "t1", sid, teacher.Name)
		require.NoError(t, err)
	}
	_, err = f.convs.EnsureThread(ctx, "s3", "t2", "s3", "other")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		convs, _ := inbox.get()
		return len(convs) == 2
	}, waitFor, tick)

	convs, _ := inbox.get()
	for _, c := range convs {
		assert.Equal(t, "t1", c.TeacherID)
	}
}
