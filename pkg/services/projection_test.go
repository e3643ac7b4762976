package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
)

func newProjectionFixture(t *testing.T, previewLen int) (*storeState, ProjectionService) {
	t.Helper()
	st := newStoreState()
	svc := NewProjectionService(
		&mockPromptRepo{st: st},
		&mockVersionRepo{st: st},
		nil, // cache disabled; the service must work without Redis
		previewLen,
		zap.NewNop(),
	)
	return st, svc
}

func TestProjectionRebuild(t *testing.T) {
	st, svc := newProjectionFixture(t, 10)
	ctx := context.Background()

	t.Run("reflects prompt and latest version", func(t *testing.T) {
		prompt := st.seedPrompt("greeting", "Hello\n")
		projection, err := svc.Rebuild(ctx, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, prompt.ID, projection.PromptID)
		assert.Equal(t, "greeting", projection.Name)
		assert.Equal(t, prompt.ProjectID, projection.ProjectID)
		assert.Equal(t, 1, projection.CurrentVersion)
		assert.Equal(t, "Hello\n", projection.PreviewContent)
	})

	t.Run("truncates long content", func(t *testing.T) {
		prompt := st.seedPrompt("long", strings.Repeat("a", 50))
		projection, err := svc.Rebuild(ctx, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("a", 10), projection.PreviewContent)
	})

	t.Run("truncation is rune safe", func(t *testing.T) {
		prompt := st.seedPrompt("cjk", strings.Repeat("版", 30))
		projection, err := svc.Rebuild(ctx, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("版", 10), projection.PreviewContent)
	})

	t.Run("short content is untouched", func(t *testing.T) {
		prompt := st.seedPrompt("short", "hi")
		projection, err := svc.Rebuild(ctx, prompt.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi", projection.PreviewContent)
	})

	t.Run("unknown prompt", func(t *testing.T) {
		_, err := svc.Rebuild(ctx, uuid.New())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestProjectionGetWithoutCache(t *testing.T) {
	st, svc := newProjectionFixture(t, 200)
	ctx := context.Background()

	prompt := st.seedPrompt("greeting", "Hello\n")
	projection, err := svc.Get(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", projection.PreviewContent)

	// The projection is rebuilt, never stale: a new version shows up on the
	// next Get with no invalidation step.
	versions := &mockVersionRepo{st: st}
	reconciler := NewReconcilerService(versions, newMockProjection(), zap.NewNop())
	ctxAuth := authedContext(t, prompt.WorkspaceID, prompt.CreatedBy)
	_, err = reconciler.Compare(ctxAuth, prompt.ID, "Hello world\n")
	require.NoError(t, err)
	_, err = reconciler.Commit(ctxAuth, prompt.ID, "expand")
	require.NoError(t, err)

	projection, err = svc.Get(ctx, prompt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, projection.CurrentVersion)
	assert.Equal(t, "Hello world\n", projection.PreviewContent)
}

func TestProjectionInvalidateWithoutCache(t *testing.T) {
	st, svc := newProjectionFixture(t, 200)
	prompt := st.seedPrompt("greeting", "Hello\n")

	assert.NoError(t, svc.Invalidate(context.Background(), prompt.ID))
}
