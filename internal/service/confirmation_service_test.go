package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shipment-confirmation-service/internal/core/domain"
	"shipment-confirmation-service/internal/core/ports"
	"shipment-confirmation-service/internal/core/ports/mocks"
	"shipment-confirmation-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type confirmationTestDeps struct {
	svc        *ConfirmationServiceImpl
	repo       *mocks.MockConfirmationRepository
	transactor *mocks.MockDBTransactor
	recorder   *mocks.MockSettlementRecorder
	cache      *mocks.MockConfirmationCache
	ctrl       *gomock.Controller
}

func setupConfirmationService(t *testing.T, opts ConfirmationServiceOptions) *confirmationTestDeps {
	ctrl := gomock.NewController(t)
	d := &confirmationTestDeps{
		repo:       mocks.NewMockConfirmationRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		recorder:   mocks.NewMockSettlementRecorder(ctrl),
		cache:      mocks.NewMockConfirmationCache(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewConfirmationService(
		d.repo, d.transactor, d.recorder, d.cache, opts, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func pendingConfirmation(participantIDs ...string) *domain.Confirmation {
	parts := make([]domain.Participant, 0, len(participantIDs))
	for _, pid := range participantIDs {
		parts = append(parts, domain.Participant{ParticipantID: pid})
	}
	return &domain.Confirmation{
		ID:           uuid.New(),
		Kind:         domain.KindDelivery,
		Title:        "Deliver pallet 7",
		Priority:     domain.PriorityHigh,
		Participants: parts,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
}

// ==================== Create Tests ====================

func TestConfirmationService_Create_Success(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	hours := 24

	d.repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.Confirmation) error {
			assert.Equal(t, domain.StatusPending, c.Status)
			assert.Len(t, c.Participants, 2)
			require.NotNil(t, c.ExpiresAt)
			assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *c.ExpiresAt, time.Minute)
			return nil
		})

	c, err := d.svc.Create(ctx, ports.CreateConfirmationParams{
		Kind:           "delivery_confirmation",
		Title:          "Deliver pallet 7",
		Priority:       "high",
		ParticipantIDs: []string{"driver-1", "receiver-1"},
		ExpiresInHours: &hours,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, domain.KindDelivery, c.Kind)
	assert.NotEqual(t, uuid.Nil, c.ID)
	for _, p := range c.Participants {
		assert.False(t, p.Confirmed)
		assert.Nil(t, p.ConfirmedAt)
	}
}

func TestConfirmationService_Create_NoExpiry(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	d.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c *domain.Confirmation) error {
			assert.Nil(t, c.ExpiresAt)
			return nil
		})

	c, err := d.svc.Create(context.Background(), ports.CreateConfirmationParams{
		Kind:           "pickup_confirmation",
		Title:          "Pickup",
		Priority:       "low",
		ParticipantIDs: []string{"driver-1"},
	})
	require.NoError(t, err)
	assert.Nil(t, c.ExpiresAt)
}

func TestConfirmationService_Create_ValidationFailures(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	negative := -1
	cases := []struct {
		name   string
		params ports.CreateConfirmationParams
	}{
		{"unknown kind", ports.CreateConfirmationParams{
			Kind: "teleport_confirmation", Title: "x", Priority: "low",
			ParticipantIDs: []string{"a"},
		}},
		{"unknown priority", ports.CreateConfirmationParams{
			Kind: "delivery_confirmation", Title: "x", Priority: "urgent",
			ParticipantIDs: []string{"a"},
		}},
		{"no participants", ports.CreateConfirmationParams{
			Kind: "delivery_confirmation", Title: "x", Priority: "low",
		}},
		{"duplicate participant", ports.CreateConfirmationParams{
			Kind: "delivery_confirmation", Title: "x", Priority: "low",
			ParticipantIDs: []string{"a", "b", "a"},
		}},
		{"empty participant id", ports.CreateConfirmationParams{
			Kind: "delivery_confirmation", Title: "x", Priority: "low",
			ParticipantIDs: []string{""},
		}},
		{"negative expiry", ports.CreateConfirmationParams{
			Kind: "delivery_confirmation", Title: "x", Priority: "low",
			ParticipantIDs: []string{"a"}, ExpiresInHours: &negative,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := d.svc.Create(context.Background(), tc.params)
			assert.Nil(t, c)
			assertAppError(t, err, "VAL_001")
		})
	}
}

// ==================== Get Tests ====================

func TestConfirmationService_Get_CacheHit(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	c.Status = domain.StatusCompleted
	cached, err := json.Marshal(c)
	require.NoError(t, err)

	d.cache.EXPECT().Get(ctx, c.ID.String()).Return(cached, nil)

	got, err := d.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestConfirmationService_Get_CacheMissNonTerminal(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")

	d.cache.EXPECT().Get(ctx, c.ID.String()).Return(nil, nil)
	d.repo.EXPECT().GetByID(ctx, c.ID).Return(c, nil)
	// No Set: pending records are mutable and never cached.

	got, err := d.svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestConfirmationService_Get_CachesTerminal(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{CacheTTL: time.Hour})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	c.Status = domain.StatusExpired

	d.cache.EXPECT().Get(ctx, c.ID.String()).Return(nil, nil)
	d.repo.EXPECT().GetByID(ctx, c.ID).Return(c, nil)
	d.cache.EXPECT().Set(ctx, c.ID.String(), gomock.Any(), time.Hour).Return(nil)

	_, err := d.svc.Get(ctx, c.ID)
	require.NoError(t, err)
}

func TestConfirmationService_Get_NotFound(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	d.cache.EXPECT().Get(ctx, id.String()).Return(nil, nil)
	d.repo.EXPECT().GetByID(ctx, id).Return(nil, nil)

	got, err := d.svc.Get(ctx, id)
	assert.Nil(t, got)
	assertAppError(t, err, "CNF_001")
}

// ==================== Confirm Tests ====================

func TestConfirmationService_Confirm_Partial(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1", "receiver-1")
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)
	d.repo.EXPECT().UpdateProgress(ctx, tx, c.ID, gomock.Any(), domain.StatusInProgress).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, _ uuid.UUID, parts []domain.Participant, _ domain.Status) error {
			require.Len(t, parts, 2)
			assert.True(t, parts[0].Confirmed)
			assert.False(t, parts[1].Confirmed)
			return nil
		})

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusInProgress, out.Status)
	assert.Nil(t, out.CompletedAt)
	assert.Nil(t, out.SettlementReference)
}

func TestConfirmationService_Confirm_LastParticipantCompletes(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1", "receiver-1")
	c.Status = domain.StatusInProgress
	now := time.Now().UTC()
	c.Participants[0].Confirmed = true
	c.Participants[0].ConfirmedAt = &now
	tx1 := &mockTx{}
	tx2 := &mockTx{}

	locked := *c
	locked.Participants = append([]domain.Participant(nil), c.Participants...)
	locked.Finalizing = true
	locked.Participants[1].Confirmed = true
	locked.Participants[1].ConfirmedAt = &now

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx1, nil),
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx1, c.ID).Return(c, nil),
		d.repo.EXPECT().UpdateProgress(ctx, tx1, c.ID, gomock.Any(), domain.StatusInProgress).Return(nil),
		d.repo.EXPECT().MarkFinalizing(ctx, tx1, c.ID).Return(nil),
		d.transactor.EXPECT().Begin(ctx).Return(tx2, nil),
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx2, c.ID).Return(&locked, nil),
		d.recorder.EXPECT().RecordCompletion(ctx, c.ID, gomock.Any()).Return("0x00000000deadbeef", nil),
		d.repo.EXPECT().Complete(ctx, tx2, c.ID, gomock.Any(), "0x00000000deadbeef").Return(nil),
	)

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "receiver-1"})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	require.NotNil(t, out.CompletedAt)
	require.NotNil(t, out.SettlementReference)
	assert.Equal(t, "0x00000000deadbeef", *out.SettlementReference)
}

func TestConfirmationService_Confirm_Idempotent(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1", "receiver-1")
	c.Status = domain.StatusInProgress
	firstConfirm := time.Now().UTC().Add(-10 * time.Minute)
	c.Participants[0].Confirmed = true
	c.Participants[0].ConfirmedAt = &firstConfirm
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)
	// No UpdateProgress: the re-confirm changes nothing.

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, out.Status)
	assert.Equal(t, firstConfirm, out.ConfirmedAt)
}

func TestConfirmationService_Confirm_NotFound(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, id).Return(nil, nil)

	out, err := d.svc.Confirm(ctx, id, ports.ConfirmParams{ParticipantID: "driver-1"})
	assert.Nil(t, out)
	assertAppError(t, err, "CNF_001")
}

func TestConfirmationService_Confirm_UnknownParticipant(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "stranger"})
	assert.Nil(t, out)
	assertAppError(t, err, "CNF_002")
}

func TestConfirmationService_Confirm_TerminalState(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	for _, status := range []domain.Status{domain.StatusCompleted, domain.StatusExpired, domain.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			ctx := context.Background()
			c := pendingConfirmation("driver-1")
			c.Status = status
			tx := &mockTx{}
			d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
			d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)

			out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
			assert.Nil(t, out)
			assertAppError(t, err, "CNF_003")
		})
	}
}

func TestConfirmationService_Confirm_LazyExpiry(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	past := time.Now().UTC().Add(-time.Minute)
	c.ExpiresAt = &past
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)
	d.repo.EXPECT().UpdateStatus(ctx, tx, c.ID, domain.StatusExpired).Return(nil)

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
	assert.Nil(t, out)
	assertAppError(t, err, "CNF_004")
}

func TestConfirmationService_Confirm_SettlementFailureKeepsFinalizing(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	tx1 := &mockTx{}
	tx2 := &mockTx{}

	locked := *c
	locked.Participants = append([]domain.Participant(nil), c.Participants...)
	now := time.Now().UTC()
	locked.Status = domain.StatusInProgress
	locked.Finalizing = true
	locked.Participants[0].Confirmed = true
	locked.Participants[0].ConfirmedAt = &now

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx1, nil),
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx1, c.ID).Return(c, nil),
		d.repo.EXPECT().UpdateProgress(ctx, tx1, c.ID, gomock.Any(), domain.StatusInProgress).Return(nil),
		d.repo.EXPECT().MarkFinalizing(ctx, tx1, c.ID).Return(nil),
		d.transactor.EXPECT().Begin(ctx).Return(tx2, nil),
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx2, c.ID).Return(&locked, nil),
		d.recorder.EXPECT().RecordCompletion(ctx, c.ID, gomock.Any()).Return("", errors.New("ledger unreachable")),
	)
	// No Complete call: the finalizing flag stays set for retry.

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
	assert.Nil(t, out)
	assertAppError(t, err, "CNF_005")
}

func TestConfirmationService_Confirm_AlreadyCompletedInFinalize(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	tx1 := &mockTx{}
	tx2 := &mockTx{}

	ref := "0x0000000000000001"
	doneAt := time.Now().UTC()
	completed := *c
	completed.Status = domain.StatusCompleted
	completed.CompletedAt = &doneAt
	completed.SettlementReference = &ref

	gomock.InOrder(
		d.transactor.EXPECT().Begin(ctx).Return(tx1, nil),
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx1, c.ID).Return(c, nil),
		d.repo.EXPECT().UpdateProgress(ctx, tx1, c.ID, gomock.Any(), domain.StatusInProgress).Return(nil),
		d.repo.EXPECT().MarkFinalizing(ctx, tx1, c.ID).Return(nil),
		d.transactor.EXPECT().Begin(ctx).Return(tx2, nil),
		// A concurrent caller finished first; no second recording happens.
		d.repo.EXPECT().GetByIDForUpdate(ctx, tx2, c.ID).Return(&completed, nil),
	)

	out, err := d.svc.Confirm(ctx, c.ID, ports.ConfirmParams{ParticipantID: "driver-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Equal(t, &ref, out.SettlementReference)
}

// ==================== Cancel Tests ====================

func TestConfirmationService_Cancel_Success(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)
	d.repo.EXPECT().UpdateStatus(ctx, tx, c.ID, domain.StatusCancelled).Return(nil)
	d.cache.EXPECT().Del(ctx, c.ID.String()).Return(nil)

	require.NoError(t, d.svc.Cancel(ctx, c.ID))
}

func TestConfirmationService_Cancel_AlreadyCancelled(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	c.Status = domain.StatusCancelled
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)

	require.NoError(t, d.svc.Cancel(ctx, c.ID))
}

func TestConfirmationService_Cancel_TerminalRejected(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{AllowCancelTerminal: false})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	c.Status = domain.StatusCompleted
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)

	assertAppError(t, d.svc.Cancel(ctx, c.ID), "CNF_003")
}

func TestConfirmationService_Cancel_TerminalAllowed(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{AllowCancelTerminal: true})
	defer d.ctrl.Finish()

	ctx := context.Background()
	c := pendingConfirmation("driver-1")
	c.Status = domain.StatusCompleted
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, c.ID).Return(c, nil)
	d.repo.EXPECT().UpdateStatus(ctx, tx, c.ID, domain.StatusCancelled).Return(nil)
	d.cache.EXPECT().Del(ctx, c.ID.String()).Return(nil)

	require.NoError(t, d.svc.Cancel(ctx, c.ID))
}

func TestConfirmationService_Cancel_NotFound(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{})
	defer d.ctrl.Finish()

	ctx := context.Background()
	id := uuid.New()
	tx := &mockTx{}
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, id).Return(nil, nil)

	assertAppError(t, d.svc.Cancel(ctx, id), "CNF_001")
}

// ==================== List Tests ====================

func TestConfirmationService_List_LimitHandling(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{DefaultListLimit: 50, MaxListLimit: 200})
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.repo.EXPECT().ListByStatus(ctx, domain.StatusPending, 50).Return(nil, nil)
	_, err := d.svc.ListPending(ctx, 0)
	require.NoError(t, err)

	d.repo.EXPECT().ListByStatus(ctx, domain.StatusPending, 200).Return(nil, nil)
	_, err = d.svc.ListPending(ctx, 9999)
	require.NoError(t, err)

	d.repo.EXPECT().ListByStatus(ctx, domain.StatusCompleted, 10).Return([]domain.Confirmation{}, nil)
	items, err := d.svc.ListCompleted(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

// ==================== Sweep Tests ====================

func TestConfirmationService_SweepExpired(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{SweepBatchSize: 100})
	defer d.ctrl.Finish()

	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)

	due := pendingConfirmation("driver-1")
	due.ExpiresAt = &past
	raced := pendingConfirmation("driver-2")
	raced.Status = domain.StatusCompleted

	tx1 := &mockTx{}
	tx2 := &mockTx{}

	d.repo.EXPECT().ListExpireDue(ctx, gomock.Any(), 100).Return([]uuid.UUID{due.ID, raced.ID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx1, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx1, due.ID).Return(due, nil)
	d.repo.EXPECT().UpdateStatus(ctx, tx1, due.ID, domain.StatusExpired).Return(nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx2, nil)
	// Completed under the lock before the sweeper got there; left untouched.
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx2, raced.ID).Return(raced, nil)

	n, err := d.svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConfirmationService_RetryFinalizing(t *testing.T) {
	d := setupConfirmationService(t, ConfirmationServiceOptions{SweepBatchSize: 100})
	defer d.ctrl.Finish()

	ctx := context.Background()
	now := time.Now().UTC()
	stuck := pendingConfirmation("driver-1")
	stuck.Status = domain.StatusInProgress
	stuck.Finalizing = true
	stuck.Participants[0].Confirmed = true
	stuck.Participants[0].ConfirmedAt = &now
	tx := &mockTx{}

	d.repo.EXPECT().ListFinalizing(ctx, 100).Return([]uuid.UUID{stuck.ID}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.repo.EXPECT().GetByIDForUpdate(ctx, tx, stuck.ID).Return(stuck, nil)
	d.recorder.EXPECT().RecordCompletion(ctx, stuck.ID, gomock.Any()).Return("0x000000000000cafe", nil)
	d.repo.EXPECT().Complete(ctx, tx, stuck.ID, gomock.Any(), "0x000000000000cafe").Return(nil)

	n, err := d.svc.RetryFinalizing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
