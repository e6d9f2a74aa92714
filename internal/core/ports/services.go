package ports

import (
	"context"
	"encoding/json"
	"time"

	"shipment-confirmation-service/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// SettlementRecorder records a completed confirmation on an external
// immutable ledger and returns an opaque settlement reference. The default
// implementation is simulated; a real ledger integration can be substituted
// without touching the engine. RecordCompletion must be safe to re-attempt
// for the same confirmation ID after a failure.
type SettlementRecorder interface {
	RecordCompletion(ctx context.Context, confirmationID uuid.UUID, completedAt time.Time) (string, error)
}

// ConfirmationCache caches serialized terminal confirmations (fast path for
// reads; terminal records are immutable except for permissive cancel, which
// invalidates via Del).
type ConfirmationCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// --- Service Ports (Business Logic) ---

// ConfirmationService defines the multi-party confirmation engine.
type ConfirmationService interface {
	Create(ctx context.Context, params CreateConfirmationParams) (*domain.Confirmation, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error)
	Confirm(ctx context.Context, id uuid.UUID, params ConfirmParams) (*ConfirmOutcome, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	ListPending(ctx context.Context, limit int) ([]domain.Confirmation, error)
	ListCompleted(ctx context.Context, limit int) ([]domain.Confirmation, error)
	// SweepExpired flips past-due pending/in_progress confirmations to
	// expired. Returns the number of records transitioned.
	SweepExpired(ctx context.Context) (int, error)
	// RetryFinalizing re-drives settlement recording for confirmations whose
	// participants have all confirmed but whose completion is still pending.
	RetryFinalizing(ctx context.Context) (int, error)
}

// CreateConfirmationParams holds validated input for confirmation creation.
// Kind and Priority are raw strings; the engine owns enum validation.
type CreateConfirmationParams struct {
	Kind                string
	Title               string
	Description         string
	Priority            string
	ShipmentID          *uuid.UUID
	ParticipantIDs      []string
	VerificationMethods json.RawMessage
	Location            json.RawMessage
	ExpiresInHours      *int
}

// ConfirmParams holds one participant's confirmation submission.
type ConfirmParams struct {
	ParticipantID    string
	VerificationData json.RawMessage
	Signature        *string
}

// ConfirmOutcome distinguishes a completing confirmation from a partial one.
type ConfirmOutcome struct {
	Status              domain.Status // completed or in_progress
	ConfirmedAt         time.Time
	CompletedAt         *time.Time
	SettlementReference *string
}
