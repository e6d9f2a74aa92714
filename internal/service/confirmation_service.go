package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipment-confirmation-service/internal/core/domain"
	"shipment-confirmation-service/internal/core/ports"
	"shipment-confirmation-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConfirmationServiceOptions tunes engine behavior.
type ConfirmationServiceOptions struct {
	// AllowCancelTerminal permits cancelling completed/expired confirmations,
	// overwriting their terminal status.
	AllowCancelTerminal bool
	// DefaultListLimit applies when the caller passes limit <= 0.
	DefaultListLimit int
	// MaxListLimit caps caller-supplied limits.
	MaxListLimit int
	// CacheTTL is the lifetime of cached terminal confirmations.
	CacheTTL time.Duration
	// SweepBatchSize bounds how many records one sweep run touches.
	SweepBatchSize int
}

// ConfirmationServiceImpl implements ports.ConfirmationService.
type ConfirmationServiceImpl struct {
	repo       ports.ConfirmationRepository
	transactor ports.DBTransactor
	recorder   ports.SettlementRecorder
	cache      ports.ConfirmationCache // nil = caching disabled
	opts       ConfirmationServiceOptions
	log        zerolog.Logger
}

// NewConfirmationService creates a new ConfirmationServiceImpl.
func NewConfirmationService(
	repo ports.ConfirmationRepository,
	transactor ports.DBTransactor,
	recorder ports.SettlementRecorder,
	cache ports.ConfirmationCache,
	opts ConfirmationServiceOptions,
	log zerolog.Logger,
) *ConfirmationServiceImpl {
	if opts.DefaultListLimit <= 0 {
		opts.DefaultListLimit = 50
	}
	if opts.MaxListLimit <= 0 {
		opts.MaxListLimit = 200
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 100
	}
	return &ConfirmationServiceImpl{
		repo:       repo,
		transactor: transactor,
		recorder:   recorder,
		cache:      cache,
		opts:       opts,
		log:        log,
	}
}

// Create validates the participant set and enum fields and persists a new
// pending confirmation.
func (s *ConfirmationServiceImpl) Create(ctx context.Context, params ports.CreateConfirmationParams) (*domain.Confirmation, error) {
	kind, err := domain.ParseKind(params.Kind)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	priority, err := domain.ParsePriority(params.Priority)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if len(params.ParticipantIDs) == 0 {
		return nil, apperror.Validation("at least one participant is required")
	}
	seen := make(map[string]struct{}, len(params.ParticipantIDs))
	for _, pid := range params.ParticipantIDs {
		if pid == "" {
			return nil, apperror.Validation("participant_id must not be empty")
		}
		if _, dup := seen[pid]; dup {
			return nil, apperror.Validation(fmt.Sprintf("duplicate participant_id %q", pid))
		}
		seen[pid] = struct{}{}
	}
	if params.ExpiresInHours != nil && *params.ExpiresInHours < 0 {
		return nil, apperror.Validation("expires_in_hours must not be negative")
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	if params.ExpiresInHours != nil {
		t := now.Add(time.Duration(*params.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	participants := make([]domain.Participant, 0, len(params.ParticipantIDs))
	for _, pid := range params.ParticipantIDs {
		participants = append(participants, domain.Participant{ParticipantID: pid})
	}

	c := &domain.Confirmation{
		ID:                  uuid.New(),
		Kind:                kind,
		Title:               params.Title,
		Description:         params.Description,
		Priority:            priority,
		ShipmentID:          params.ShipmentID,
		Participants:        participants,
		VerificationMethods: params.VerificationMethods,
		Location:            params.Location,
		Status:              domain.StatusPending,
		ExpiresAt:           expiresAt,
		CreatedAt:           now,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create confirmation: %w", err))
	}

	s.log.Info().
		Str("confirmation_id", c.ID.String()).
		Str("type", string(c.Kind)).
		Int("participants", len(c.Participants)).
		Msg("confirmation created")

	return c, nil
}

// Get returns a confirmation by ID. Terminal records are served from the
// cache when available. Reads never trigger the lazy expiry transition.
func (s *ConfirmationServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id.String())
		if err != nil {
			s.log.Warn().Err(err).Str("confirmation_id", id.String()).Msg("cache read failed, falling through to DB")
		}
		if cached != nil {
			c := &domain.Confirmation{}
			if err := json.Unmarshal(cached, c); err == nil {
				return c, nil
			}
			s.log.Warn().Str("confirmation_id", id.String()).Msg("corrupt cache entry ignored")
		}
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get confirmation: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrConfirmationNotFound()
	}

	if s.cache != nil && c.Status.IsTerminal() {
		if b, err := json.Marshal(c); err == nil {
			if err := s.cache.Set(ctx, id.String(), b, s.opts.CacheTTL); err != nil {
				s.log.Warn().Err(err).Str("confirmation_id", id.String()).Msg("failed to cache confirmation")
			}
		}
	}

	return c, nil
}

// Confirm records one participant's confirmation. The whole
// read-validate-mutate-persist sequence runs under a row lock so concurrent
// confirms on the same ID serialize; different IDs never contend.
func (s *ConfirmationServiceImpl) Confirm(ctx context.Context, id uuid.UUID, params ports.ConfirmParams) (*ports.ConfirmOutcome, error) {
	now := time.Now().UTC()

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock confirmation: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrConfirmationNotFound()
	}

	if c.Status != domain.StatusPending && c.Status != domain.StatusInProgress {
		return nil, apperror.ErrInvalidState(string(c.Status))
	}

	// Lazy expiry: the deadline passing is a state transition in its own
	// right, persisted even though the confirm attempt fails.
	if c.ExpiredAt(now) {
		if err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusExpired); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("expire confirmation: %w", err))
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("commit expiry: %w", err))
		}
		s.log.Info().Str("confirmation_id", id.String()).Msg("confirmation expired on confirm attempt")
		return nil, apperror.ErrConfirmationExpired()
	}

	participant := c.ParticipantByID(params.ParticipantID)
	if participant == nil {
		return nil, apperror.ErrParticipantNotFound()
	}

	confirmedAt := now
	if participant.Confirmed {
		// Re-confirmation is idempotent: keep the original evidence and
		// skip straight to the completion check.
		if participant.ConfirmedAt != nil {
			confirmedAt = *participant.ConfirmedAt
		}
	} else {
		participant.Confirmed = true
		participant.ConfirmedAt = &now
		participant.VerificationData = params.VerificationData
		participant.Signature = params.Signature

		if c.Status == domain.StatusPending {
			c.Status = domain.StatusInProgress
		}
		if err := s.repo.UpdateProgress(ctx, tx, id, c.Participants, c.Status); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("update participants: %w", err))
		}
	}

	if !c.AllConfirmed() {
		if err := tx.Commit(ctx); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("commit confirm: %w", err))
		}
		s.log.Info().
			Str("confirmation_id", id.String()).
			Str("participant_id", params.ParticipantID).
			Msg("participant confirmed, waiting for others")
		return &ports.ConfirmOutcome{Status: c.Status, ConfirmedAt: confirmedAt}, nil
	}

	// All participants agreed. Persist that fact first so a crash or a
	// recorder failure cannot lose it, then record settlement separately.
	if err := s.repo.MarkFinalizing(ctx, tx, id); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("mark finalizing: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit finalizing: %w", err))
	}

	return s.finalize(ctx, id, confirmedAt)
}

// finalize records the settlement reference and transitions the
// confirmation to completed. It re-locks the row, so concurrent callers
// serialize and at most one performs the completed transition; later
// callers observe the terminal record and return it untouched.
func (s *ConfirmationServiceImpl) finalize(ctx context.Context, id uuid.UUID, confirmedAt time.Time) (*ports.ConfirmOutcome, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin finalize tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock confirmation: %w", err))
	}
	if c == nil {
		return nil, apperror.ErrConfirmationNotFound()
	}

	if c.Status == domain.StatusCompleted {
		return &ports.ConfirmOutcome{
			Status:              domain.StatusCompleted,
			ConfirmedAt:         confirmedAt,
			CompletedAt:         c.CompletedAt,
			SettlementReference: c.SettlementReference,
		}, nil
	}
	if c.Status != domain.StatusInProgress || !c.Finalizing {
		// Cancelled (or swept) between the two transactions.
		return nil, apperror.ErrInvalidState(string(c.Status))
	}

	completedAt := time.Now().UTC()
	ref, err := s.recorder.RecordCompletion(ctx, id, completedAt)
	if err != nil {
		// The finalizing flag stays set; RetryFinalizing or the next
		// confirm call for this ID re-attempts recording.
		s.log.Error().Err(err).Str("confirmation_id", id.String()).Msg("settlement recording failed")
		return nil, apperror.ErrSettlementFailure(err)
	}

	if err := s.repo.Complete(ctx, tx, id, completedAt, ref); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("complete confirmation: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit completion: %w", err))
	}

	s.log.Info().
		Str("confirmation_id", id.String()).
		Str("settlement_reference", ref).
		Msg("confirmation completed")

	return &ports.ConfirmOutcome{
		Status:              domain.StatusCompleted,
		ConfirmedAt:         confirmedAt,
		CompletedAt:         &completedAt,
		SettlementReference: &ref,
	}, nil
}

// Cancel transitions a confirmation to cancelled. Cancelling an already
// cancelled confirmation is a no-op success. Whether terminal records may
// be cancelled is governed by AllowCancelTerminal.
func (s *ConfirmationServiceImpl) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock confirmation: %w", err))
	}
	if c == nil {
		return apperror.ErrConfirmationNotFound()
	}

	if c.Status == domain.StatusCancelled {
		return nil
	}
	if c.Status.IsTerminal() && !s.opts.AllowCancelTerminal {
		return apperror.ErrInvalidState(string(c.Status))
	}

	if err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusCancelled); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("cancel confirmation: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit cancel: %w", err))
	}

	// A cached terminal record may just have been overwritten.
	if s.cache != nil {
		if err := s.cache.Del(ctx, id.String()); err != nil {
			s.log.Warn().Err(err).Str("confirmation_id", id.String()).Msg("failed to invalidate cached confirmation")
		}
	}

	s.log.Info().Str("confirmation_id", id.String()).Msg("confirmation cancelled")
	return nil
}

// ListPending returns pending confirmations, newest first.
func (s *ConfirmationServiceImpl) ListPending(ctx context.Context, limit int) ([]domain.Confirmation, error) {
	return s.listByStatus(ctx, domain.StatusPending, limit)
}

// ListCompleted returns completed confirmations, most recently completed first.
func (s *ConfirmationServiceImpl) ListCompleted(ctx context.Context, limit int) ([]domain.Confirmation, error) {
	return s.listByStatus(ctx, domain.StatusCompleted, limit)
}

func (s *ConfirmationServiceImpl) listByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Confirmation, error) {
	if limit <= 0 {
		limit = s.opts.DefaultListLimit
	}
	if limit > s.opts.MaxListLimit {
		limit = s.opts.MaxListLimit
	}
	items, err := s.repo.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list confirmations: %w", err))
	}
	return items, nil
}

// SweepExpired transitions past-due pending/in_progress confirmations to
// expired. Each record is re-checked under its row lock, so a sweep racing
// a confirm can never expire a record that just completed.
func (s *ConfirmationServiceImpl) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	ids, err := s.repo.ListExpireDue(ctx, now, s.opts.SweepBatchSize)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("list expire-due: %w", err))
	}

	expired := 0
	for _, id := range ids {
		if err := s.expireOne(ctx, id, now); err != nil {
			s.log.Warn().Err(err).Str("confirmation_id", id.String()).Msg("expiry sweep skipped record")
			continue
		}
		expired++
	}
	if expired > 0 {
		s.log.Info().Int("count", expired).Msg("expiry sweep transitioned confirmations")
	}
	return expired, nil
}

func (s *ConfirmationServiceImpl) expireOne(ctx context.Context, id uuid.UUID, now time.Time) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	c, err := s.repo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("lock confirmation: %w", err)
	}
	if c == nil {
		return fmt.Errorf("confirmation vanished")
	}
	if c.Status.IsTerminal() || c.Finalizing || !c.ExpiredAt(now) {
		return fmt.Errorf("no longer eligible for expiry (status %s)", c.Status)
	}
	if err := s.repo.UpdateStatus(ctx, tx, id, domain.StatusExpired); err != nil {
		return fmt.Errorf("expire confirmation: %w", err)
	}
	return tx.Commit(ctx)
}

// RetryFinalizing re-drives settlement recording for confirmations stuck
// between all-confirmed and completed.
func (s *ConfirmationServiceImpl) RetryFinalizing(ctx context.Context) (int, error) {
	ids, err := s.repo.ListFinalizing(ctx, s.opts.SweepBatchSize)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("list finalizing: %w", err))
	}

	finalized := 0
	for _, id := range ids {
		if _, err := s.finalize(ctx, id, time.Now().UTC()); err != nil {
			s.log.Warn().Err(err).Str("confirmation_id", id.String()).Msg("finalization retry failed")
			continue
		}
		finalized++
	}
	return finalized, nil
}
