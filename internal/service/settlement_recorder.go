package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SimulatedSettlementRecorder stands in for an external settlement ledger.
// It fabricates a reference of the form "0x<16 hex digits>" without talking
// to anything, so the engine's completion path can be exercised end to end.
type SimulatedSettlementRecorder struct {
	log zerolog.Logger
}

// NewSimulatedSettlementRecorder creates a new SimulatedSettlementRecorder.
func NewSimulatedSettlementRecorder(log zerolog.Logger) *SimulatedSettlementRecorder {
	return &SimulatedSettlementRecorder{log: log}
}

// RecordCompletion returns a fresh random settlement reference. Re-attempts
// for the same confirmation yield a new reference, which is fine: only the
// reference persisted alongside the completed transition is authoritative.
func (r *SimulatedSettlementRecorder) RecordCompletion(ctx context.Context, confirmationID uuid.UUID, completedAt time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate settlement reference: %w", err)
	}
	ref := fmt.Sprintf("0x%016x", binary.BigEndian.Uint64(buf[:]))

	r.log.Debug().
		Str("confirmation_id", confirmationID.String()).
		Str("settlement_reference", ref).
		Time("completed_at", completedAt).
		Msg("recorded settlement")

	return ref, nil
}
