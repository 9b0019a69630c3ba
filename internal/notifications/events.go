package notifications

import (
	"context"
	"time"
)

// Event types pushed to browsers.
const (
	EventMVPReady               = "mvp_ready"
	EventAnalysisReady          = "analysis_ready"
	EventCreditRequestProcessed = "credit_request_processed"
	EventPong                   = "pong"
)

// Event is the JSON envelope delivered over the WebSocket.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()}
}

// Publisher is what the service layer needs to push an event to a user.
type Publisher interface {
	Notify(ctx context.Context, userID uint, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Notify(context.Context, uint, Event) error { return nil }
