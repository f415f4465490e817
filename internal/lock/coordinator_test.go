package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permit-engine/internal/model"
)

var day0 = time.Date(2024, 5, 6, 8, 30, 0, 0, time.UTC)

func att(r model.Result, n int) model.Attempt {
	return model.Attempt{Result: r, Date: day0.AddDate(0, 0, 14*n)}
}

func newCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return New("case-1", NewSession(), nil)
}

func TestLoadAutoLocksTerminalData(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.Load(model.CategoryCreneaux, []model.Attempt{att(model.ResultEchoue, 0), att(model.ResultReussi, 1)}, ""))
	require.NoError(t, c.Load(model.CategoryCodeConduite, []model.Attempt{
		att(model.ResultEchoue, 0), att(model.ResultAbsent, 1), att(model.ResultEchoue, 2),
	}, ""))
	require.NoError(t, c.Load(model.CategoryTourVille, []model.Attempt{att(model.ResultAbsent, 0)}, ""))

	assert.True(t, c.FullyLocked(model.CategoryCreneaux))
	assert.True(t, c.FullyLocked(model.CategoryCodeConduite))
	assert.False(t, c.FullyLocked(model.CategoryTourVille))
	assert.Nil(t, c.Recompute(), "historical terminal data must not prompt")
	assert.Equal(t, model.LockLocked, c.LockState(model.CategoryCreneaux))
	assert.Equal(t, model.LockUnlocked, c.LockState(model.CategoryTourVille))
	assert.Equal(t, model.StatusEchoue, c.Verdict())
}

func TestLoadRejectsUnknownCategory(t *testing.T) {
	c := newCoordinator(t)
	err := c.Load("parking", nil, "")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSuccessPromptConfirm(t *testing.T) {
	c := newCoordinator(t)

	p, err := c.AddAttempt(model.CategoryCreneaux, att(model.ResultEchoue, 0))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = c.AddAttempt(model.CategoryCreneaux, att(model.ResultReussi, 1))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.Prompt{Category: model.CategoryCreneaux, Trigger: model.TriggerSuccess}, *p)
	assert.Equal(t, model.LockPendingSuccessConfirmation, c.LockState(model.CategoryCreneaux))

	p, err = c.Confirm(model.CategoryCreneaux)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, model.LockLocked, c.LockState(model.CategoryCreneaux))
	assert.True(t, c.IsLocked(model.CategoryCreneaux, 0))
	assert.True(t, c.IsLocked(model.CategoryCreneaux, 1))
}

func TestDeclineIsRememberedForTheSession(t *testing.T) {
	session := NewSession()
	c := New("case-1", session, nil)

	p, err := c.AddAttempt(model.CategoryTourVille, att(model.ResultReussi, 0))
	require.NoError(t, err)
	require.NotNil(t, p)

	p, err = c.Decline(model.CategoryTourVille)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.True(t, session.Declined("case-1", model.CategoryTourVille, model.TriggerSuccess))

	// Flip away from and back into success: still no prompt this session.
	_, err = c.EditAttempt(model.CategoryTourVille, 0, att(model.ResultEchoue, 0))
	require.NoError(t, err)
	p, err = c.EditAttempt(model.CategoryTourVille, 0, att(model.ResultReussi, 0))
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, c.Recompute())
	assert.Equal(t, model.LockUnlocked, c.LockState(model.CategoryTourVille))

	// Attempts stay editable after a decline.
	_, err = c.EditAttempt(model.CategoryTourVille, 0, model.Attempt{Result: model.ResultReussi, Date: day0, Note: "corrigé"})
	require.NoError(t, err)

	// A fresh session lets the prompt surface again on the next transition.
	c.ResetSession()
	_, err = c.EditAttempt(model.CategoryTourVille, 0, att(model.ResultAbsent, 0))
	require.NoError(t, err)
	p, err = c.EditAttempt(model.CategoryTourVille, 0, att(model.ResultReussi, 0))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.TriggerSuccess, p.Trigger)
}

func TestFailurePromptAfterThreeAttempts(t *testing.T) {
	c := newCoordinator(t)
	for i, r := range []model.Result{model.ResultEchoue, model.ResultAbsent} {
		p, err := c.AddAttempt(model.CategoryCodeConduite, att(r, i))
		require.NoError(t, err)
		assert.Nil(t, p)
	}
	p, err := c.AddAttempt(model.CategoryCodeConduite, att(model.ResultEchoue, 2))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.TriggerFailure, p.Trigger)
	assert.Equal(t, model.LockPendingFailureConfirmation, c.LockState(model.CategoryCodeConduite))
	assert.Equal(t, model.StatusEchoue, c.Status(model.CategoryCodeConduite))

	_, err = c.Decline(model.CategoryCodeConduite)
	require.NoError(t, err)
	assert.Nil(t, c.Recompute())
	assert.True(t, c.session.Declined("case-1", model.CategoryCodeConduite, model.TriggerFailure))
}

func TestAddCap(t *testing.T) {
	c := newCoordinator(t)
	for i := 0; i < model.MaxAttempts; i++ {
		_, err := c.AddAttempt(model.CategoryCreneaux, att(model.ResultAbsent, i))
		require.NoError(t, err)
	}
	_, err := c.Decline(model.CategoryCreneaux)
	require.NoError(t, err)

	_, err = c.AddAttempt(model.CategoryCreneaux, att(model.ResultReussi, 3))
	assert.ErrorIs(t, err, ErrAttemptCapReached)
	assert.Len(t, c.Attempts(model.CategoryCreneaux), model.MaxAttempts)
	assert.Equal(t, model.StatusEchoue, c.Status(model.CategoryCreneaux))
}

func TestAddInFlightGuard(t *testing.T) {
	c := newCoordinator(t)

	require.NoError(t, c.BeginAdd(model.CategoryTourVille))
	assert.ErrorIs(t, c.BeginAdd(model.CategoryTourVille), ErrAddInFlight)
	// Other categories are independent.
	require.NoError(t, c.BeginAdd(model.CategoryCreneaux))

	_, err := c.CommitAdd(model.CategoryTourVille, att(model.ResultEchoue, 0))
	require.NoError(t, err)
	_, err = c.CommitAdd(model.CategoryTourVille, att(model.ResultEchoue, 1))
	assert.ErrorIs(t, err, ErrNoAddInFlight)
	assert.Len(t, c.Attempts(model.CategoryTourVille), 1)

	c.CancelAdd(model.CategoryCreneaux)
	assert.Empty(t, c.Attempts(model.CategoryCreneaux))
	require.NoError(t, c.BeginAdd(model.CategoryCreneaux))

	// Locked between reservation and commit.
	require.NoError(t, c.BeginAdd(model.CategoryTourVille))
	_, err = c.SetAttemptLock(model.CategoryTourVille, 0, true, true)
	require.NoError(t, err)
	require.True(t, c.FullyLocked(model.CategoryTourVille))
	_, err = c.CommitAdd(model.CategoryTourVille, att(model.ResultReussi, 2))
	assert.ErrorIs(t, err, ErrAttemptLocked)
	assert.Len(t, c.Attempts(model.CategoryTourVille), 1)
	assert.ErrorIs(t, c.BeginAdd(model.CategoryTourVille), ErrAttemptLocked, "reservation released")
}

func TestCommitAddRejectsInvalidResult(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.BeginAdd(model.CategoryCreneaux))
	_, err := c.CommitAdd(model.CategoryCreneaux, model.Attempt{Result: "non_saisi", Date: day0})
	assert.ErrorIs(t, err, ErrInvalidResult)
	assert.Empty(t, c.Attempts(model.CategoryCreneaux))
	require.NoError(t, c.BeginAdd(model.CategoryCreneaux), "failed commit releases the reservation")
}

func TestLockedCategoryRejectsMutation(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.Load(model.CategoryCreneaux, []model.Attempt{att(model.ResultEchoue, 0), att(model.ResultReussi, 1)}, ""))
	require.True(t, c.FullyLocked(model.CategoryCreneaux))
	before := c.Attempts(model.CategoryCreneaux)

	for i := range before {
		_, err := c.EditAttempt(model.CategoryCreneaux, i, att(model.ResultAbsent, i))
		assert.ErrorIs(t, err, ErrAttemptLocked)
	}
	_, err := c.AddAttempt(model.CategoryCreneaux, att(model.ResultEchoue, 2))
	assert.ErrorIs(t, err, ErrAttemptLocked)
	assert.Equal(t, before, c.Attempts(model.CategoryCreneaux))

	// Privileged unlock of one attempt reopens that index only.
	_, err = c.SetAttemptLock(model.CategoryCreneaux, 0, false, true)
	require.NoError(t, err)
	assert.Equal(t, model.LockUnlocked, c.LockState(model.CategoryCreneaux))
	_, err = c.EditAttempt(model.CategoryCreneaux, 0, att(model.ResultAbsent, 0))
	require.NoError(t, err)
	_, err = c.EditAttempt(model.CategoryCreneaux, 1, att(model.ResultAbsent, 1))
	assert.ErrorIs(t, err, ErrAttemptLocked)
	assert.Equal(t, model.ResultAbsent, c.Attempts(model.CategoryCreneaux)[0].Result)
}

func TestSetAttemptLockRequiresPrivilege(t *testing.T) {
	c := newCoordinator(t)
	require.NoError(t, c.Load(model.CategoryCreneaux, []model.Attempt{att(model.ResultReussi, 0)}, ""))

	_, err := c.SetAttemptLock(model.CategoryCreneaux, 0, false, false)
	assert.ErrorIs(t, err, ErrNotPrivileged)
	assert.True(t, c.IsLocked(model.CategoryCreneaux, 0))

	_, err = c.SetAttemptLock(model.CategoryCreneaux, 4, false, true)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestPromptPrecedence(t *testing.T) {
	c := newCoordinator(t)
	three := []model.Attempt{att(model.ResultEchoue, 0), att(model.ResultEchoue, 1), att(model.ResultAbsent, 2)}
	require.NoError(t, c.Restore(model.Situation{
		CaseID: "case-1",
		Categories: []model.CategorySituation{
			{Category: model.CategoryTourVille, Attempts: three},
			{Category: model.CategoryCodeConduite, Attempts: []model.Attempt{att(model.ResultReussi, 0)}, SuccessArmed: true},
		},
	}))

	p := c.Recompute()
	require.NotNil(t, p)
	assert.Equal(t, model.Prompt{Category: model.CategoryCodeConduite, Trigger: model.TriggerSuccess}, *p)

	// Answering the wrong category is rejected and keeps the prompt open.
	p, err := c.Confirm(model.CategoryTourVille)
	assert.ErrorIs(t, err, ErrPromptMismatch)
	require.NotNil(t, p)
	assert.Equal(t, model.CategoryCodeConduite, p.Category)

	p, err = c.Confirm(model.CategoryCodeConduite)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.Prompt{Category: model.CategoryTourVille, Trigger: model.TriggerFailure}, *p)

	p, err = c.Confirm(model.CategoryTourVille)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.True(t, c.FullyLocked(model.CategoryTourVille))
}

func TestConfirmWithoutPrompt(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.Confirm(model.CategoryCreneaux)
	assert.ErrorIs(t, err, ErrNoPendingPrompt)
	_, err = c.Decline(model.CategoryCreneaux)
	assert.ErrorIs(t, err, ErrNoPendingPrompt)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.AddAttempt(model.CategoryCreneaux, att(model.ResultReussi, 0))
	require.NoError(t, err)
	_, err = c.AddAttempt(model.CategoryTourVille, att(model.ResultAbsent, 0))
	require.NoError(t, err)

	snap := c.Snapshot()
	require.NotNil(t, snap.PendingPrompt)
	assert.Equal(t, "Absent", snap.Verdict.Label)
	assert.Equal(t, model.LockPendingSuccessConfirmation, snap.Category(model.CategoryCreneaux).LockState)
	assert.Empty(t, snap.Category(model.CategoryCodeConduite).Attempts)

	restored := New("case-1", NewSession(), nil)
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, snap, restored.Snapshot())

	_, err = restored.Confirm(model.CategoryCreneaux)
	require.NoError(t, err)
	after := restored.Snapshot()
	assert.Equal(t, []int{0}, after.Category(model.CategoryCreneaux).LockedIndices)
}

func TestRestoreRejectsOverCap(t *testing.T) {
	c := newCoordinator(t)
	four := []model.Attempt{att(model.ResultEchoue, 0), att(model.ResultEchoue, 1), att(model.ResultEchoue, 2), att(model.ResultEchoue, 3)}
	err := c.Restore(model.Situation{Categories: []model.CategorySituation{{Category: model.CategoryCreneaux, Attempts: four}}})
	assert.ErrorIs(t, err, ErrAttemptCapReached)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	c := newCoordinator(t)
	_, err := c.AddAttempt(model.CategoryCreneaux, att(model.ResultReussi, 0))
	require.NoError(t, err)
	first := c.Snapshot()
	c.Recompute()
	c.Recompute()
	assert.Equal(t, first, c.Snapshot())
}
