package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shipment-confirmation-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const confirmationColumns = `id, type, title, description, priority, shipment_id,
	participants, verification_methods, location, status, finalizing,
	settlement_reference, expires_at, created_at, completed_at`

// ConfirmationRepo implements ports.ConfirmationRepository.
type ConfirmationRepo struct {
	pool Pool
}

// NewConfirmationRepo creates a new ConfirmationRepo.
func NewConfirmationRepo(pool Pool) *ConfirmationRepo {
	return &ConfirmationRepo{pool: pool}
}

// Create inserts a new confirmation. Participants are stored as a JSONB
// array so the participant set stays an atomic part of the row.
func (r *ConfirmationRepo) Create(ctx context.Context, c *domain.Confirmation) error {
	participants, err := json.Marshal(c.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	query := `INSERT INTO confirmations (id, type, title, description, priority, shipment_id,
			participants, verification_methods, location, status, finalizing,
			settlement_reference, expires_at, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.pool.Exec(ctx, query,
		c.ID, c.Kind, c.Title, c.Description, c.Priority, c.ShipmentID,
		participants, c.VerificationMethods, c.Location, c.Status, c.Finalizing,
		c.SettlementReference, c.ExpiresAt, c.CreatedAt, c.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert confirmation: %w", err)
	}
	return nil
}

// GetByID fetches a confirmation by its UUID (without locking).
func (r *ConfirmationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + ` FROM confirmations WHERE id = $1`
	c, err := scanConfirmation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation by id: %w", err)
	}
	return c, nil
}

// GetByIDForUpdate fetches a confirmation by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *ConfirmationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Confirmation, error) {
	query := `SELECT ` + confirmationColumns + ` FROM confirmations WHERE id = $1 FOR UPDATE`
	c, err := scanConfirmation(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get confirmation for update: %w", err)
	}
	return c, nil
}

// UpdateProgress replaces the participant set and status within a transaction.
func (r *ConfirmationRepo) UpdateProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID, participants []domain.Participant, status domain.Status) error {
	data, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	query := `UPDATE confirmations SET participants = $1, status = $2 WHERE id = $3`
	tag, err := tx.Exec(ctx, query, data, status, id)
	if err != nil {
		return fmt.Errorf("update confirmation progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirmation not found: %s", id)
	}
	return nil
}

// MarkFinalizing sets the finalizing flag within a transaction.
func (r *ConfirmationRepo) MarkFinalizing(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE confirmations SET finalizing = TRUE WHERE id = $1`
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark confirmation finalizing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirmation not found: %s", id)
	}
	return nil
}

// Complete records the settlement reference and transitions to completed
// within a transaction, clearing the finalizing flag.
func (r *ConfirmationRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time, settlementRef string) error {
	query := `UPDATE confirmations
		SET status = $1, finalizing = FALSE, completed_at = $2, settlement_reference = $3
		WHERE id = $4`
	tag, err := tx.Exec(ctx, query, domain.StatusCompleted, completedAt, settlementRef, id)
	if err != nil {
		return fmt.Errorf("complete confirmation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirmation not found: %s", id)
	}
	return nil
}

// UpdateStatus sets the status within a transaction. The finalizing flag is
// cleared: expiry and cancellation both abandon any in-flight completion.
func (r *ConfirmationRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status) error {
	query := `UPDATE confirmations SET status = $1, finalizing = FALSE WHERE id = $2`
	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update confirmation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("confirmation not found: %s", id)
	}
	return nil
}

// ListByStatus returns confirmations with the given status, newest first.
func (r *ConfirmationRepo) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Confirmation, error) {
	order := "created_at DESC"
	if status == domain.StatusCompleted {
		order = "completed_at DESC"
	}
	query := `SELECT ` + confirmationColumns + ` FROM confirmations
		WHERE status = $1 ORDER BY ` + order + ` LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list confirmations by status: %w", err)
	}
	defer rows.Close()

	var items []domain.Confirmation
	for rows.Next() {
		c, err := scanConfirmation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list confirmations by status: %w", err)
	}
	return items, nil
}

// ListExpireDue returns IDs of non-terminal, non-finalizing confirmations
// whose deadline has passed.
func (r *ConfirmationRepo) ListExpireDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM confirmations
		WHERE status IN ($1, $2) AND finalizing = FALSE
			AND expires_at IS NOT NULL AND expires_at < $3
		ORDER BY expires_at LIMIT $4`

	rows, err := r.pool.Query(ctx, query, domain.StatusPending, domain.StatusInProgress, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expire-due confirmations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListFinalizing returns IDs of confirmations stuck between all-confirmed
// and completed.
func (r *ConfirmationRepo) ListFinalizing(ctx context.Context, limit int) ([]uuid.UUID, error) {
	query := `SELECT id FROM confirmations
		WHERE status = $1 AND finalizing = TRUE
		ORDER BY created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.StatusInProgress, limit)
	if err != nil {
		return nil, fmt.Errorf("list finalizing confirmations: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan confirmation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate confirmation ids: %w", err)
	}
	return ids, nil
}

func scanConfirmation(row pgx.Row) (*domain.Confirmation, error) {
	c := &domain.Confirmation{}
	var participants []byte
	err := row.Scan(
		&c.ID, &c.Kind, &c.Title, &c.Description, &c.Priority, &c.ShipmentID,
		&participants, &c.VerificationMethods, &c.Location, &c.Status, &c.Finalizing,
		&c.SettlementReference, &c.ExpiresAt, &c.CreatedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participants, &c.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	return c, nil
}
