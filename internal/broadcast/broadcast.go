// Package broadcast fans workflow events out to live subscribers.
package broadcast

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EventRequestCreated      = "REQUEST_CREATED"
	EventRequestUpdated      = "REQUEST_UPDATED"
	EventRequestApproved     = "REQUEST_APPROVED"
	EventRequestRejected     = "REQUEST_REJECTED"
	EventRequestCancelled    = "REQUEST_CANCELLED"
	EventRequestStateChanged = "REQUEST_STATE_CHANGED"
	EventNotificationCreated = "NOTIFICATION_CREATED"
)

// Broadcaster delivers an event to every subscriber of one channel.
// Delivery is best effort; callers log failures and move on.
type Broadcaster interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Message is the wire shape shared by every channel.
type Message struct {
	Event     string    `json:"event"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(event string, payload any) Message {
	return Message{Event: event, Payload: payload, Timestamp: time.Now().UTC()}
}

type RequestPayload struct {
	RequestID           uuid.UUID `json:"request_id"`
	RequestNumber       string    `json:"request_number"`
	Title               string    `json:"title"`
	Status              string    `json:"status"`
	DepartmentID        uuid.UUID `json:"department_id"`
	RequesterID         uuid.UUID `json:"requester_id"`
	CurrentApprovalStep int       `json:"current_approval_step"`
	TotalApprovalSteps  int       `json:"total_approval_steps"`
	ActorID             uuid.UUID `json:"actor_id"`
}

type NotificationPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	RequestID      uuid.UUID `json:"request_id"`
	RequestNumber  string    `json:"request_number"`
	DepartmentID   uuid.UUID `json:"department_id"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
}

// Fanout publishes to every wrapped broadcaster and joins their errors.
type Fanout []Broadcaster

func (f Fanout) Publish(ctx context.Context, event string, payload any) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
