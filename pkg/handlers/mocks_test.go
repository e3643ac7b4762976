package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/pkg/diff"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockPromptServiceForHandler implements services.PromptService for handler tests.
type mockPromptServiceForHandler struct {
	prompt      *models.Prompt
	projections []*models.PromptProjection
	createErr   error
	getErr      error
	listErr     error
	updateErr   error
	deleteErr   error
}

func (m *mockPromptServiceForHandler) Create(ctx context.Context, projectID uuid.UUID, name, content string) (*models.Prompt, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.prompt, nil
}

func (m *mockPromptServiceForHandler) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.prompt, nil
}

func (m *mockPromptServiceForHandler) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PromptProjection, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.projections, nil
}

func (m *mockPromptServiceForHandler) UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.prompt, nil
}

func (m *mockPromptServiceForHandler) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteErr
}

var _ services.PromptService = (*mockPromptServiceForHandler)(nil)

// mockHistoryServiceForHandler implements services.HistoryService for handler tests.
type mockHistoryServiceForHandler struct {
	metas      []*models.VersionMeta
	content    string
	diffResult diff.Result
	listErr    error
	getErr     error
	compareErr error
}

func (m *mockHistoryServiceForHandler) ListVersions(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.metas, nil
}

func (m *mockHistoryServiceForHandler) GetVersionContent(ctx context.Context, promptID uuid.UUID, version int) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.content, nil
}

func (m *mockHistoryServiceForHandler) CompareVersions(ctx context.Context, promptID uuid.UUID, versionA, versionB int) (diff.Result, error) {
	if m.compareErr != nil {
		return diff.Result{}, m.compareErr
	}
	return m.diffResult, nil
}

var _ services.HistoryService = (*mockHistoryServiceForHandler)(nil)

// mockReconcilerServiceForHandler implements services.ReconcilerService for handler tests.
type mockReconcilerServiceForHandler struct {
	view       *services.SessionView
	version    *models.PromptVersion
	beginErr   error
	compareErr error
	commitErr  error
	cancelErr  error
	abandonErr error

	lastDraft   string
	lastMessage string
	lastSeed    int
}

func (m *mockReconcilerServiceForHandler) BeginEdit(ctx context.Context, promptID uuid.UUID, seedVersion int) (*services.SessionView, error) {
	m.lastSeed = seedVersion
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.view, nil
}

func (m *mockReconcilerServiceForHandler) Compare(ctx context.Context, promptID uuid.UUID, draft string) (*services.SessionView, error) {
	m.lastDraft = draft
	if m.compareErr != nil {
		return nil, m.compareErr
	}
	return m.view, nil
}

func (m *mockReconcilerServiceForHandler) Commit(ctx context.Context, promptID uuid.UUID, message string) (*models.PromptVersion, error) {
	m.lastMessage = message
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	return m.version, nil
}

func (m *mockReconcilerServiceForHandler) Cancel(ctx context.Context, promptID uuid.UUID) (*services.SessionView, error) {
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return m.view, nil
}

func (m *mockReconcilerServiceForHandler) Abandon(ctx context.Context, promptID uuid.UUID) error {
	return m.abandonErr
}

var _ services.ReconcilerService = (*mockReconcilerServiceForHandler)(nil)
