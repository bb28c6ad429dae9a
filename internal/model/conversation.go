package model

import (
	"strings"
	"time"
)

const conversationKeySeparator = "_"

// ConversationKey derives the thread id shared by two participants.
// ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, conversationKeySeparator)
}

type Conversation struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	TeacherID   string    `json:"teacherId"`
	TeacherName string    `json:"teacherName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	FromID    string    `json:"fromId"`
	FromName  string    `json:"fromName"`
	ToID      string    `json:"toId"`
	ToName    string    `json:"toName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant identifies one side of a conversation.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
