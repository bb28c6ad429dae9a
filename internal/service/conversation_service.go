package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/Freeeeeet/classdesk/internal/model"
	"github.com/Freeeeeet/classdesk/internal/repository"
	"go.uber.org/zap"
)

// ConversationService keeps one thread per student/teacher pair and its message list.
type ConversationService struct {
	userRepo repository.UserRepository
	convRepo repository.ConversationRepository
	broker   *feed.Broker
	logger   *zap.Logger
}

func NewConversationService(
	userRepo repository.UserRepository,
	convRepo repository.ConversationRepository,
	broker *feed.Broker,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		userRepo: userRepo,
		convRepo: convRepo,
		broker:   broker,
		logger:   logger,
	}
}

// EnsureThread returns the id of the pair's thread, creating the thread document when
// it does not exist. Concurrent callers write identical documents.
func (s *ConversationService) EnsureThread(ctx context.Context, studentID, teacherID, studentName, teacherName string) (string, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(teacherID) == "" {
		return "", fmt.Errorf("%w: participant id", ErrEmptyInput)
	}

	threadID := model.ConversationKey(studentID, teacherID)

	existing, err := s.convRepo.GetByID(ctx, threadID)
	if err != nil {
		return "", storeError("get conversation", err)
	}
	if existing != nil {
		return threadID, nil
	}

	conv := &model.Conversation{
		ID:          threadID,
		StudentID:   studentID,
		StudentName: studentName,
		TeacherID:   teacherID,
		TeacherName: teacherName,
	}
	if err := s.convRepo.Put(ctx, conv); err != nil {
		return "", storeError("create conversation", err)
	}

	s.logger.Info("Conversation created",
		zap.String("thread_id", threadID),
		zap.String("student_id", studentID),
		zap.String("teacher_id", teacherID),
	)
	return threadID, nil
}

// AppendMessage adds a message to a thread. Blank text is rejected before any write.
func (s *ConversationService) AppendMessage(ctx context.Context, threadID string, from, to model.Participant, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text", ErrEmptyInput)
	}

	msg := &model.Message{
		ThreadID: threadID,
		FromID:   from.ID,
		FromName: from.Name,
		ToID:     to.ID,
		ToName:   to.Name,
		Text:     text,
	}
	if err := s.convRepo.AppendMessage(ctx, msg); err != nil {
		return nil, storeError("append message", err)
	}

	s.logger.Debug("Message appended",
		zap.String("thread_id", threadID),
		zap.String("message_id", msg.ID),
		zap.String("from_id", from.ID),
	)
	return msg, nil
}

// ClearThread deletes every message of a thread and keeps the thread itself.
func (s *ConversationService) ClearThread(ctx context.Context, threadID string) (int64, error) {
	n, err := s.convRepo.DeleteMessages(ctx, threadID)
	if err != nil {
		return 0, storeError("clear thread", err)
	}

	s.logger.Info("Thread cleared",
		zap.String("thread_id", threadID),
		zap.Int64("deleted", n),
	)
	return n, nil
}

// SubscribeThread streams the thread's messages in ascending creation order.
func (s *ConversationService) SubscribeThread(
	ctx context.Context,
	threadID string,
	onUpdate func([]*model.Message),
	onErr func(error),
) (*feed.Handle, error) {
	load := func(ctx context.Context) ([]*model.Message, error) {
		return s.convRepo.ListMessages(ctx, threadID)
	}

	h, err := feed.Watch(ctx, s.broker, feed.ThreadTopic(threadID), load, onUpdate, onErr)
	if err != nil {
		return nil, storeError("subscribe thread", err)
	}
	return h, nil
}

// Send posts text from the session owner to the account counterpartID, creating the
// thread on the first message. Students write to active teachers and teachers to active
// students; the recipient's name comes from its profile.
func (s *ConversationService) Send(ctx context.Context, session *model.Session, counterpartID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text", ErrEmptyInput)
	}
	if strings.TrimSpace(counterpartID) == "" {
		return nil, fmt.Errorf("%w: recipient", ErrEmptyInput)
	}

	var want model.Role
	switch session.Role {
	case model.RoleStudent:
		want = model.RoleTeacher
	case model.RoleTeacher:
		want = model.RoleStudent
	case model.RoleAdmin:
		return nil, fmt.Errorf("send message as %s: %w", session.Role, ErrRoleMismatch)
	}

	user, err := resolveCounterpart(ctx, s.userRepo, counterpartID, want)
	if err != nil {
		return nil, err
	}

	me := session.Participant()
	to := model.Participant{ID: user.ID, Name: user.DisplayName()}

	var threadID string
	if session.Role == model.RoleStudent {
		threadID, err = s.EnsureThread(ctx, me.ID, to.ID, me.Name, to.Name)
	} else {
		threadID, err = s.EnsureThread(ctx, to.ID, me.ID, to.Name, me.Name)
	}
	if err != nil {
		return nil, err
	}

	return s.AppendMessage(ctx, threadID, me, to, text)
}

// ThreadWith returns the thread id between the session owner and counterpartID.
func (s *ConversationService) ThreadWith(session *model.Session, counterpartID string) string {
	return model.ConversationKey(session.UID, counterpartID)
}

// SubscribeInbox streams the conversations of the session owner, newest first.
func (s *ConversationService) SubscribeInbox(
	ctx context.Context,
	session *model.Session,
	onUpdate func([]*model.Conversation),
	onErr func(error),
) (*feed.Handle, error) {
	var load func(context.Context) ([]*model.Conversation, error)

	switch session.Role {
	case model.RoleStudent:
		load = func(ctx context.Context) ([]*model.Conversation, error) {
			return s.convRepo.ListByStudent(ctx, session.UID)
		}
	case model.RoleTeacher:
		load = func(ctx context.Context) ([]*model.Conversation, error) {
			return s.convRepo.ListByTeacher(ctx, session.UID)
		}
	case model.RoleAdmin:
		return nil, fmt.Errorf("inbox for %s: %w", session.Role, ErrRoleMismatch)
	}

	h, err := feed.Watch(ctx, s.broker, feed.TopicConversations, load, onUpdate, onErr)
	if err != nil {
		return nil, storeError("subscribe inbox", err)
	}
	return h, nil
}
