package model

// Session is the resolved identity of the caller. It is produced once when a dashboard
// opens and passed explicitly to every operation acting on behalf of the user.
type Session struct {
	UID    string `json:"uid"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Domain string `json:"domain,omitempty"`
}

// Participant returns the session owner as a conversation participant.
func (s *Session) Participant() Participant {
	name := s.Name
	if name == "" {
		name = s.Email
	}
	return Participant{ID: s.UID, Name: name}
}
