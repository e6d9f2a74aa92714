package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedSettlementRecorder_ReferenceFormat(t *testing.T) {
	r := NewSimulatedSettlementRecorder(zerolog.Nop())

	ref, err := r.RecordCompletion(context.Background(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^0x[0-9a-f]{16}$`), ref)
}

func TestSimulatedSettlementRecorder_CancelledContext(t *testing.T) {
	r := NewSimulatedSettlementRecorder(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RecordCompletion(ctx, uuid.New(), time.Now().UTC())
	assert.ErrorIs(t, err, context.Canceled)
}
