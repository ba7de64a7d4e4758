package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded  EventType = "login_succeeded"
	EventLoginFailed     EventType = "login_failed"
	EventRequestRejected EventType = "request_rejected"
)

// Event represents an authentication event emitted by the gate or the login flow.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LoginPayload describes a login attempt. A username that matched no
// credential is carried only as a fingerprint.
type LoginPayload struct {
	Reason              string `json:"reason,omitempty"`
	TokenID             string `json:"token_id,omitempty"`
	UsernameFingerprint string `json:"username_fp,omitempty"`
}

// RejectionPayload describes a request stopped by the gate.
type RejectionPayload struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
	IP     string `json:"ip,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, subject string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
