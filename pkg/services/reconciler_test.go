package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/diff"
)

func newReconcilerFixture(t *testing.T) (*storeState, *mockVersionRepo, *mockProjection, ReconcilerService) {
	t.Helper()
	st := newStoreState()
	versions := &mockVersionRepo{st: st}
	projection := newMockProjection()
	svc := NewReconcilerService(versions, projection, zap.NewNop())
	return st, versions, projection, svc
}

func TestReconcilerBeginEdit(t *testing.T) {
	st, _, _, svc := newReconcilerFixture(t)
	prompt := st.seedPrompt("greeting", "Hello\n")
	ctx := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)

	t.Run("seeds from latest by default", func(t *testing.T) {
		view, err := svc.BeginEdit(ctx, prompt.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, StateEditing, view.State)
		assert.Equal(t, "Hello\n", view.Draft)
		assert.Equal(t, 1, view.SeedVersion)
		assert.Nil(t, view.Diff)
	})

	t.Run("seeds from a historical version without changing current", func(t *testing.T) {
		_, err := svc.Compare(ctx, prompt.ID, "Hello world\n")
		require.NoError(t, err)
		_, err = svc.Commit(ctx, prompt.ID, "expand greeting")
		require.NoError(t, err)

		view, err := svc.BeginEdit(ctx, prompt.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, "Hello\n", view.Draft)
		assert.Equal(t, 1, view.SeedVersion)
		assert.Equal(t, 2, st.prompts[prompt.ID].CurrentVersion,
			"seeding from history must not move the current pointer")
	})

	t.Run("unknown prompt", func(t *testing.T) {
		_, err := svc.BeginEdit(ctx, uuid.New(), 0)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("unknown seed version", func(t *testing.T) {
		_, err := svc.BeginEdit(ctx, prompt.ID, 99)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReconcilerCompare(t *testing.T) {
	st, _, _, svc := newReconcilerFixture(t)
	prompt := st.seedPrompt("greeting", "Hello\n")
	ctx := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)

	t.Run("diffs draft against latest and awaits message", func(t *testing.T) {
		_, err := svc.BeginEdit(ctx, prompt.ID, 0)
		require.NoError(t, err)

		view, err := svc.Compare(ctx, prompt.ID, "Hello world\n")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingMessage, view.State)
		assert.Equal(t, 1, view.BaseVersion)
		require.NotNil(t, view.Diff)
		added, removed := view.Diff.Stats()
		assert.Equal(t, 1, added)
		assert.Equal(t, 1, removed)
	})

	t.Run("implicit session when saving without begin", func(t *testing.T) {
		other := st.seedPrompt("farewell", "Bye\n")
		view, err := svc.Compare(ctx, other.ID, "Goodbye\n")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingMessage, view.State)
		assert.Equal(t, 1, view.SeedVersion)
	})

	t.Run("identical draft still produces a diff", func(t *testing.T) {
		view, err := svc.Compare(ctx, prompt.ID, "Hello\n")
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingMessage, view.State)
		require.NotNil(t, view.Diff)
		assert.True(t, view.Diff.Identical())
	})

	t.Run("base tracks latest after a concurrent commit", func(t *testing.T) {
		concurrent := st.seedPrompt("shared", "v1\n")
		otherUser := uuid.New()
		otherCtx := authedContext(t, concurrent.WorkspaceID, otherUser)

		// First user seeds from version 1, then a second user commits v2.
		_, err := svc.BeginEdit(ctx, concurrent.ID, 0)
		require.NoError(t, err)
		_, err = svc.Compare(otherCtx, concurrent.ID, "v2\n")
		require.NoError(t, err)
		_, err = svc.Commit(otherCtx, concurrent.ID, "second writer")
		require.NoError(t, err)

		view, err := svc.Compare(ctx, concurrent.ID, "v1 edited\n")
		require.NoError(t, err)
		assert.Equal(t, 1, view.SeedVersion, "seed stays where the draft came from")
		assert.Equal(t, 2, view.BaseVersion, "diff base is whatever is latest now")
		_, removed := view.Diff.Stats()
		assert.Equal(t, 1, removed, "the diff is against v2, not the seed")
	})

	t.Run("missing prompt returns to caller", func(t *testing.T) {
		_, err := svc.Compare(ctx, uuid.New(), "draft\n")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestReconcilerCommit(t *testing.T) {
	st, versions, projection, svc := newReconcilerFixture(t)
	prompt := st.seedPrompt("greeting", "Hello\n")
	ctx := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)

	t.Run("requires a prior compare", func(t *testing.T) {
		_, err := svc.BeginEdit(ctx, prompt.ID, 0)
		require.NoError(t, err)
		_, err = svc.Commit(ctx, prompt.ID, "no compare yet")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("no session at all", func(t *testing.T) {
		_, err := svc.Commit(ctx, uuid.New(), "msg")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("empty message fails and preserves the session", func(t *testing.T) {
		_, err := svc.Compare(ctx, prompt.ID, "Hello world\n")
		require.NoError(t, err)

		_, err = svc.Commit(ctx, prompt.ID, "")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Len(t, st.versions[prompt.ID], 1, "no version may be written on a rejected commit")

		// Session is still awaiting a message; a corrected commit succeeds.
		version, err := svc.Commit(ctx, prompt.ID, "expand greeting")
		require.NoError(t, err)
		assert.Equal(t, 2, version.Version)
		assert.Equal(t, "Hello world\n", version.Content)
		assert.Equal(t, prompt.CreatedBy, version.AuthorUserID)
	})

	t.Run("rebuilds the projection and reseeds to editing", func(t *testing.T) {
		assert.Equal(t, 1, projection.rebuildCalls)

		view, err := svc.Compare(ctx, prompt.ID, "Hello world again\n")
		require.NoError(t, err)
		assert.Equal(t, 2, view.BaseVersion)

		version, err := svc.Commit(ctx, prompt.ID, "another pass")
		require.NoError(t, err)
		assert.Equal(t, 3, version.Version)
		assert.Equal(t, 2, projection.rebuildCalls)

		// Follow-up compare works directly off the committed content.
		view, err = svc.Compare(ctx, prompt.ID, "Hello world again\n")
		require.NoError(t, err)
		assert.Equal(t, 3, view.SeedVersion)
		assert.True(t, view.Diff.Identical())
	})

	t.Run("append failure leaves the session awaiting", func(t *testing.T) {
		_, err := svc.Compare(ctx, prompt.ID, "Hello once more\n")
		require.NoError(t, err)

		versions.appendErr = apperrors.ErrConflict
		_, err = svc.Commit(ctx, prompt.ID, "doomed")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
		versions.appendErr = nil

		version, err := svc.Commit(ctx, prompt.ID, "recovered")
		require.NoError(t, err)
		assert.Equal(t, "Hello once more\n", version.Content)
	})
}

func TestReconcilerCancelAndAbandon(t *testing.T) {
	st, _, _, svc := newReconcilerFixture(t)
	prompt := st.seedPrompt("greeting", "Hello\n")
	ctx := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)

	t.Run("cancel returns to editing and keeps the draft", func(t *testing.T) {
		_, err := svc.Compare(ctx, prompt.ID, "Hello draft\n")
		require.NoError(t, err)

		view, err := svc.Cancel(ctx, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, StateEditing, view.State)
		assert.Equal(t, "Hello draft\n", view.Draft)
		assert.Nil(t, view.Diff)
		assert.Len(t, st.versions[prompt.ID], 1)
	})

	t.Run("cancel without a session", func(t *testing.T) {
		_, err := svc.Cancel(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("abandon drops the session entirely", func(t *testing.T) {
		require.NoError(t, svc.Abandon(ctx, prompt.ID))
		_, err := svc.Commit(ctx, prompt.ID, "msg")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("sessions are independent per user", func(t *testing.T) {
		userA := authedContext(t, prompt.WorkspaceID, uuid.New())
		userB := authedContext(t, prompt.WorkspaceID, uuid.New())

		_, err := svc.Compare(userA, prompt.ID, "A's draft\n")
		require.NoError(t, err)
		_, err = svc.Compare(userB, prompt.ID, "B's draft\n")
		require.NoError(t, err)

		require.NoError(t, svc.Abandon(userA, prompt.ID))
		view, err := svc.Cancel(userB, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, "B's draft\n", view.Draft)
	})
}

func TestReconcilerHelloWorldScenario(t *testing.T) {
	st, _, _, svc := newReconcilerFixture(t)
	prompt := st.seedPrompt("greeting", "Hello")
	ctx := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)

	view, err := svc.Compare(ctx, prompt.ID, "Hello world")
	require.NoError(t, err)
	require.NotNil(t, view.Diff)
	require.Len(t, view.Diff.Segments, 2)
	assert.Equal(t, diff.OpRemoved, view.Diff.Segments[0].Op)
	assert.Equal(t, []string{"Hello"}, view.Diff.Segments[0].Lines)
	assert.Equal(t, diff.OpAdded, view.Diff.Segments[1].Op)
	assert.Equal(t, []string{"Hello world"}, view.Diff.Segments[1].Lines)

	version, err := svc.Commit(ctx, prompt.ID, "widen the greeting")
	require.NoError(t, err)
	assert.Equal(t, 2, version.Version)
	assert.Equal(t, "Hello world", version.Content)

	latest := st.versions[prompt.ID][len(st.versions[prompt.ID])-1]
	assert.Equal(t, version, latest)
}
