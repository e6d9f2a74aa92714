package ports

import (
	"context"
	"time"

	"shipment-confirmation-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// ConfirmationRepository defines persistence operations for confirmations.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; together with GetByIDForUpdate they form the atomic
// read-modify-write primitive the engine relies on.
type ConfirmationRepository interface {
	Create(ctx context.Context, c *domain.Confirmation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Confirmation, error)
	// UpdateProgress persists the participant list and status within a transaction.
	UpdateProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID, participants []domain.Participant, status domain.Status) error
	// MarkFinalizing flags a record whose participants have all confirmed
	// but whose settlement reference is not yet recorded.
	MarkFinalizing(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// Complete records the terminal completed state together with the
	// settlement reference and clears the finalizing flag.
	Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time, settlementRef string) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status) error
	// ListByStatus returns confirmations in the given status, newest first
	// (created_at for non-completed, completed_at for completed).
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Confirmation, error)
	// ListExpireDue returns IDs of pending/in_progress confirmations whose
	// deadline has passed.
	ListExpireDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// ListFinalizing returns IDs of confirmations stuck with the finalizing flag.
	ListFinalizing(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
