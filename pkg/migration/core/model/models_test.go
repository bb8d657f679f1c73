package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunningJob(t *testing.T) *MigrationJob {
	t.Helper()
	job := NewMigrationJob("subj-a", "cfg-1", 100, 10)
	require.NoError(t, job.MarkAsRunning())
	return job
}

func TestNewMigrationJobDerivesTotals(t *testing.T) {
	job := NewMigrationJob("subj-a", "cfg-1", 105, 10)

	assert.Equal(t, MigrationStatusPending, job.Status)
	assert.Equal(t, 11, job.TotalBatches)
	assert.NotEmpty(t, job.MigrationID)

	empty := NewMigrationJob("subj-a", "cfg-1", 0, 10)
	assert.Zero(t, empty.TotalBatches)
}

func TestMigrationLifecycleHappyPath(t *testing.T) {
	job := newRunningJob(t)
	require.NoError(t, job.TransitionTo(MigrationStatusPaused))
	require.NoError(t, job.TransitionTo(MigrationStatusRunning))
	require.NoError(t, job.MarkAsCompleted())

	assert.Equal(t, MigrationStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, job.Status.IsTerminal())
}

func TestIllegalMigrationTransitionsAreRejected(t *testing.T) {
	cases := []struct {
		name string
		from MigrationStatus
		to   MigrationStatus
	}{
		{"pending to completed", MigrationStatusPending, MigrationStatusCompleted},
		{"pending to paused", MigrationStatusPending, MigrationStatusPaused},
		{"paused to completed", MigrationStatusPaused, MigrationStatusCompleted},
		{"paused to failed", MigrationStatusPaused, MigrationStatusFailed},
		{"completed to running", MigrationStatusCompleted, MigrationStatusRunning},
		{"cancelled to running", MigrationStatusCancelled, MigrationStatusRunning},
		{"completed to rolled back", MigrationStatusCompleted, MigrationStatusRolledBack},
		{"rolled back anywhere", MigrationStatusRolledBack, MigrationStatusRunning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewMigrationJob("subj-a", "cfg-1", 100, 10)
			job.Status = tc.from
			err := job.TransitionTo(tc.to)
			require.Error(t, err)
			assert.Equal(t, tc.from, job.Status, "job must be unchanged after a rejected transition")
		})
	}
}

func TestOnlyFailedJobsCanRollBack(t *testing.T) {
	job := newRunningJob(t)
	require.NoError(t, job.MarkAsFailed(errors.New("store went away")))
	assert.Equal(t, "store went away", job.ErrorMessage)

	require.NoError(t, job.MarkAsRolledBack("rb-1"))
	assert.Equal(t, MigrationStatusRolledBack, job.Status)
	assert.Equal(t, "rb-1", job.RollbackID)
	require.NotNil(t, job.RollbackTimestamp)

	completed := newRunningJob(t)
	require.NoError(t, completed.MarkAsCompleted())
	assert.Error(t, completed.MarkAsRolledBack("rb-2"))
}

func TestAccumulateBatchSumsAndClamps(t *testing.T) {
	job := newRunningJob(t)

	job.AccumulateBatch(BatchResult{RecordsProcessed: 60, Successful: 55, Failed: 5})
	job.AccumulateBatch(BatchResult{RecordsProcessed: 60, Successful: 60})

	// Processed never exceeds the declared total.
	assert.Equal(t, 100, job.ProcessedRecords)
	assert.Equal(t, 115, job.SuccessfulRecords)
	assert.Equal(t, 5, job.FailedRecords)
}

func TestFailureListRoundTrip(t *testing.T) {
	fl := FailureList{"first", "second"}
	v, err := fl.Value()
	require.NoError(t, err)

	var back FailureList
	require.NoError(t, back.Scan(v))
	assert.Equal(t, fl, back)

	var fromNil FailureList
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)

	var empty FailureList
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestRollbackStatusProgressesStrictlyForward(t *testing.T) {
	plan := &RollbackPlan{
		PlanID:            NewID(),
		Scope:             RollbackScopeUserMigration,
		TargetMigrationID: "mig-1",
		TargetSubjectID:   "subj-a",
	}
	exec := NewRollbackExecution(plan)

	forward := []RollbackStatus{
		RollbackStatusPreparing,
		RollbackStatusBackingUp,
		RollbackStatusValidating,
		RollbackStatusExecuting,
		RollbackStatusVerifying,
		RollbackStatusCompleted,
	}
	for _, next := range forward {
		require.NoError(t, exec.TransitionTo(next))
	}
	assert.True(t, exec.Status.IsTerminal())
	assert.Error(t, exec.TransitionTo(RollbackStatusFailed), "terminal status is final")
}

func TestRollbackStatusCannotSkipPhases(t *testing.T) {
	exec := NewRollbackExecution(&RollbackPlan{Scope: RollbackScopeFullSystem})
	assert.Error(t, exec.TransitionTo(RollbackStatusExecuting))
	assert.Error(t, exec.TransitionTo(RollbackStatusBackingUp))

	// Any non-terminal phase may jump straight to a terminal status.
	require.NoError(t, exec.TransitionTo(RollbackStatusPreparing))
	require.NoError(t, exec.TransitionTo(RollbackStatusCancelled))
}

func TestRollbackStepResultDuration(t *testing.T) {
	r := RollbackStepResult{StepID: "s1", Kind: StepCreateBackup}
	assert.Zero(t, r.Duration())
}
