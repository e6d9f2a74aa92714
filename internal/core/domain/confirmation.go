package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConfirmationKind represents the real-world event being confirmed.
type ConfirmationKind string

const (
	KindDelivery   ConfirmationKind = "delivery_confirmation"
	KindPayment    ConfirmationKind = "payment_confirmation"
	KindPickup     ConfirmationKind = "pickup_confirmation"
	KindInspection ConfirmationKind = "inspection_confirmation"
)

// ParseKind validates and converts a kind string.
func ParseKind(s string) (ConfirmationKind, error) {
	switch ConfirmationKind(s) {
	case KindDelivery, KindPayment, KindPickup, KindInspection:
		return ConfirmationKind(s), nil
	}
	return "", fmt.Errorf("unknown confirmation type %q", s)
}

// Priority is informational only and never affects transitions.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority validates and converts a priority string.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Status is the lifecycle state of a confirmation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal returns true if no further confirm transitions are legal.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusCancelled
}

// Participant is one party whose individual confirmation is required
// before the aggregate completes. Embedded in the Confirmation, not a
// separate aggregate.
type Participant struct {
	ParticipantID    string          `json:"participant_id"`
	Confirmed        bool            `json:"confirmed"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
	VerificationData json.RawMessage `json:"verification_data,omitempty"`
	Signature        *string         `json:"signature,omitempty"`
}

// Confirmation is the aggregate tracking multi-party agreement on a
// real-world event. VerificationMethods and Location are opaque
// pass-through payloads; the engine never interprets them.
type Confirmation struct {
	ID                  uuid.UUID        `json:"id"`
	Kind                ConfirmationKind `json:"confirmation_type"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	Priority            Priority         `json:"priority"`
	ShipmentID          *uuid.UUID       `json:"shipment_id,omitempty"`
	Participants        []Participant    `json:"participants"`
	VerificationMethods json.RawMessage  `json:"verification_methods"`
	Location            json.RawMessage  `json:"location,omitempty"`
	Status              Status           `json:"status"`
	SettlementReference *string          `json:"settlement_reference,omitempty"`
	// Finalizing marks a record whose participants have all confirmed but
	// whose settlement reference has not been recorded yet. Never exposed.
	Finalizing  bool       `json:"-"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ParticipantByID returns a pointer into the participant list, or nil if
// the ID is not part of this confirmation.
func (c *Confirmation) ParticipantByID(id string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].ParticipantID == id {
			return &c.Participants[i]
		}
	}
	return nil
}

// AllConfirmed reports whether every participant has confirmed.
// An empty list never counts as all-confirmed.
func (c *Confirmation) AllConfirmed() bool {
	if len(c.Participants) == 0 {
		return false
	}
	for i := range c.Participants {
		if !c.Participants[i].Confirmed {
			return false
		}
	}
	return true
}

// ExpiredAt reports whether the deadline has passed at the given instant.
// Confirmations without a deadline never expire.
func (c *Confirmation) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
