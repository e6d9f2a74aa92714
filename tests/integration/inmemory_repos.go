package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shipment-confirmation-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Confirmation Repo ---

type inMemoryConfirmationRepo struct {
	mu            sync.RWMutex
	confirmations map[uuid.UUID]*domain.Confirmation
}

func newInMemoryConfirmationRepo() *inMemoryConfirmationRepo {
	return &inMemoryConfirmationRepo{confirmations: make(map[uuid.UUID]*domain.Confirmation)}
}

// clone deep-copies a confirmation so callers can mutate their view
// without touching the stored record, matching database read semantics.
func clone(c *domain.Confirmation) *domain.Confirmation {
	cp := *c
	cp.Participants = append([]domain.Participant(nil), c.Participants...)
	return &cp
}

func (r *inMemoryConfirmationRepo) Create(ctx context.Context, c *domain.Confirmation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.confirmations[c.ID]; exists {
		return fmt.Errorf("confirmation already exists")
	}
	r.confirmations[c.ID] = clone(c)
	return nil
}

func (r *inMemoryConfirmationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.confirmations[id]
	if !ok {
		return nil, nil
	}
	return clone(c), nil
}

func (r *inMemoryConfirmationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Confirmation, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryConfirmationRepo) UpdateProgress(ctx context.Context, tx pgx.Tx, id uuid.UUID, participants []domain.Participant, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confirmations[id]
	if !ok {
		return fmt.Errorf("confirmation not found")
	}
	c.Participants = append([]domain.Participant(nil), participants...)
	c.Status = status
	return nil
}

func (r *inMemoryConfirmationRepo) MarkFinalizing(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confirmations[id]
	if !ok {
		return fmt.Errorf("confirmation not found")
	}
	c.Finalizing = true
	return nil
}

func (r *inMemoryConfirmationRepo) Complete(ctx context.Context, tx pgx.Tx, id uuid.UUID, completedAt time.Time, settlementRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confirmations[id]
	if !ok {
		return fmt.Errorf("confirmation not found")
	}
	c.Status = domain.StatusCompleted
	c.Finalizing = false
	c.CompletedAt = &completedAt
	c.SettlementReference = &settlementRef
	return nil
}

func (r *inMemoryConfirmationRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confirmations[id]
	if !ok {
		return fmt.Errorf("confirmation not found")
	}
	c.Status = status
	c.Finalizing = false
	return nil
}

func (r *inMemoryConfirmationRepo) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Confirmation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []domain.Confirmation
	for _, c := range r.confirmations {
		if c.Status == status {
			items = append(items, *clone(c))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *inMemoryConfirmationRepo) ListExpireDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for _, c := range r.confirmations {
		if c.Status.IsTerminal() || c.Finalizing {
			continue
		}
		if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			ids = append(ids, c.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (r *inMemoryConfirmationRepo) ListFinalizing(ctx context.Context, limit int) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uuid.UUID
	for _, c := range r.confirmations {
		if c.Status == domain.StatusInProgress && c.Finalizing {
			ids = append(ids, c.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// --- In-Memory Transactor ---

// mutexTransactor serializes all transactions behind one mutex, standing in
// for row-level locking: every Begin blocks until the previous transaction
// commits or rolls back.
type mutexTransactor struct {
	mu sync.Mutex
}

func newMutexTransactor() *mutexTransactor {
	return &mutexTransactor{}
}

func (t *mutexTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockedTx{release: &t.mu}, nil
}

// lockedTx holds the transactor mutex until Commit or Rollback.
type lockedTx struct {
	release *sync.Mutex
	once    sync.Once
}

func (t *lockedTx) done() {
	t.once.Do(t.release.Unlock)
}

func (t *lockedTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockedTx) Commit(ctx context.Context) error          { t.done(); return nil }
func (t *lockedTx) Rollback(ctx context.Context) error        { t.done(); return nil }
func (t *lockedTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockedTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockedTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockedTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockedTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockedTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockedTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockedTx) Conn() *pgx.Conn { return nil }
