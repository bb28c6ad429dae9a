package model

import "time"

type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	ActorID    string         `json:"actorId"`
	ActorEmail string         `json:"actorEmail"`
	ActorRole  Role           `json:"actorRole"`
	Timestamp  time.Time      `json:"timestamp"`
}
