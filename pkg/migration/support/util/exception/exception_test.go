package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
		fatal bool
	}{
		{NewValidationError("orchestrator", "bad input", nil), IsValidation, false},
		{NewEmptyDatasetError("orchestrator", "nothing to do"), IsEmptyDataset, false},
		{NewConcurrencyError("processor", "already running"), IsConcurrency, false},
		{NewBatchExecutionError("processor", "batch 3 failed", errors.New("boom")), IsBatchExecution, false},
		{NewIntegrityError("rollback", "rows remain", nil), IsIntegrity, true},
		{NewInfrastructureError("store", "connection lost", errors.New("eof")), IsInfrastructure, true},
	}
	for _, tc := range cases {
		var me *MigrationError
		require.ErrorAs(t, tc.err, &me)
		assert.True(t, tc.check(tc.err), "%s should match its own predicate", me.Kind())
		assert.Equal(t, tc.fatal, me.IsFatal(), "IsFatal for %s", me.Kind())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NewInfrastructureError("store", "connection lost", nil)
	wrapped := fmt.Errorf("executing batch 7: %w", inner)

	assert.True(t, IsInfrastructure(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInfrastructureError("store", "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "[store]")
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Empty(t, ExtractErrorMessage(nil))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))

	me := NewValidationError("orchestrator", "subject id must not be empty", errors.New("detail"))
	assert.Equal(t, "subject id must not be empty", ExtractErrorMessage(me))
}

func TestIsKindOnForeignError(t *testing.T) {
	assert.False(t, IsInfrastructure(errors.New("not classified")))
	assert.False(t, IsInfrastructure(nil))
}

func TestStackTraceIsCaptured(t *testing.T) {
	err := Newf(KindConcurrency, "processor", "subject %s is busy", "subj-a")
	assert.NotEmpty(t, err.StackTrace)
	assert.Equal(t, "subject subj-a is busy", err.Message)
	assert.Equal(t, KindConcurrency, err.Kind())
}
