package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeStringRe(t *testing.T) {
	valid := []string{"driver-1", "warehouse_03", "acct.7", "ABC123"}
	for _, s := range valid {
		assert.True(t, safeStringRe.MatchString(s), "expected %q to be safe", s)
	}

	invalid := []string{"", "driver 1", "a;b", "<script>", "id'--", "a/b"}
	for _, s := range invalid {
		assert.False(t, safeStringRe.MatchString(s), "expected %q to be rejected", s)
	}
}

func TestSanitizeStruct(t *testing.T) {
	sig := "  <b>sig</b> "
	req := ConfirmRequest{
		ParticipantID: "  driver-1  ",
		Signature:     &sig,
	}

	SanitizeStruct(&req)

	assert.Equal(t, "driver-1", req.ParticipantID)
	assert.Equal(t, "&lt;b&gt;sig&lt;/b&gt;", *req.Signature)
}

func TestSanitizeStruct_NonStructInput(t *testing.T) {
	// Must not panic on non-pointer or non-struct input
	SanitizeStruct("plain string")
	SanitizeStruct(nil)
	s := "x"
	SanitizeStruct(&s)
}
