package services

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/repositories"
)

// ============================================================================
// Shared in-memory store mocks for service tests
// ============================================================================

// storeState backs both repository mocks so version numbering and prompt
// pointers stay consistent, the way the real tables do.
type storeState struct {
	prompts  map[uuid.UUID]*models.Prompt
	versions map[uuid.UUID][]*models.PromptVersion
}

func newStoreState() *storeState {
	return &storeState{
		prompts:  make(map[uuid.UUID]*models.Prompt),
		versions: make(map[uuid.UUID][]*models.PromptVersion),
	}
}

// seedPrompt installs a prompt with version 1, mirroring the create path.
func (st *storeState) seedPrompt(name, content string) *models.Prompt {
	p := &models.Prompt{
		ID:             uuid.New(),
		WorkspaceID:    uuid.New(),
		ProjectID:      uuid.New(),
		Name:           name,
		CurrentVersion: 1,
		CreatedBy:      uuid.New(),
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	st.prompts[p.ID] = p
	st.versions[p.ID] = []*models.PromptVersion{{
		PromptID:     p.ID,
		Version:      1,
		Content:      content,
		Message:      models.InitialVersionMessage,
		AuthorUserID: p.CreatedBy,
		CreatedAt:    p.CreatedAt,
	}}
	return p
}

type mockPromptRepo struct {
	st        *storeState
	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func (m *mockPromptRepo) Create(ctx context.Context, prompt *models.Prompt, content string) error {
	if m.createErr != nil {
		return m.createErr
	}
	if prompt.Name == "" {
		return fmt.Errorf("%w: name must not be empty", apperrors.ErrValidation)
	}
	if err := repositories.ValidateAppend(content, models.InitialVersionMessage); err != nil {
		return err
	}
	if prompt.ID == uuid.Nil {
		prompt.ID = uuid.New()
	}
	prompt.CurrentVersion = 1
	prompt.CreatedAt = time.Now()
	prompt.UpdatedAt = prompt.CreatedAt
	m.st.prompts[prompt.ID] = prompt
	m.st.versions[prompt.ID] = []*models.PromptVersion{{
		PromptID:     prompt.ID,
		Version:      1,
		Content:      content,
		Message:      models.InitialVersionMessage,
		AuthorUserID: prompt.CreatedBy,
		CreatedAt:    prompt.CreatedAt,
	}}
	return nil
}

func (m *mockPromptRepo) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.st.prompts[id]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
	}
	return p, nil
}

func (m *mockPromptRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	var out []*models.Prompt
	for _, p := range m.st.prompts {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockPromptRepo) UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	p, ok := m.st.prompts[id]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
	}
	if name == nil && projectID == nil {
		return nil, fmt.Errorf("%w: nothing to update", apperrors.ErrValidation)
	}
	if name != nil {
		if *name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", apperrors.ErrValidation)
		}
		p.Name = *name
	}
	if projectID != nil {
		p.ProjectID = *projectID
	}
	p.UpdatedAt = time.Now()
	return p, nil
}

func (m *mockPromptRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.st.prompts[id]; !ok {
		return fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
	}
	delete(m.st.prompts, id)
	delete(m.st.versions, id)
	return nil
}

type mockVersionRepo struct {
	st        *storeState
	appendErr error
	getErr    error
	latestErr error
	listErr   error

	// listFailures makes the first N ListMetadata calls fail with listErr,
	// for exercising the read-side retry.
	listFailures int
	listCalls    int
}

func (m *mockVersionRepo) Append(ctx context.Context, promptID uuid.UUID, content, message string, authorUserID uuid.UUID) (*models.PromptVersion, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	if err := repositories.ValidateAppend(content, message); err != nil {
		return nil, err
	}
	p, ok := m.st.prompts[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
	}
	v := &models.PromptVersion{
		PromptID:     promptID,
		Version:      p.CurrentVersion + 1,
		Content:      content,
		Message:      message,
		AuthorUserID: authorUserID,
		CreatedAt:    time.Now(),
	}
	m.st.versions[promptID] = append(m.st.versions[promptID], v)
	p.CurrentVersion = v.Version
	p.UpdatedAt = v.CreatedAt
	return v, nil
}

func (m *mockVersionRepo) Get(ctx context.Context, promptID uuid.UUID, version int) (*models.PromptVersion, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, v := range m.st.versions[promptID] {
		if v.Version == version {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: version %d of prompt %s", apperrors.ErrNotFound, version, promptID)
}

func (m *mockVersionRepo) ListMetadata(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error) {
	m.listCalls++
	if m.listErr != nil && m.listCalls <= m.listFailures {
		return nil, m.listErr
	}
	if m.listErr != nil && m.listFailures == 0 {
		return nil, m.listErr
	}
	vs := m.st.versions[promptID]
	if len(vs) == 0 {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
	}
	metas := make([]*models.VersionMeta, 0, len(vs))
	for i := len(vs) - 1; i >= 0; i-- {
		metas = append(metas, &models.VersionMeta{
			Version:      vs[i].Version,
			Message:      vs[i].Message,
			AuthorUserID: vs[i].AuthorUserID,
			CreatedAt:    vs[i].CreatedAt,
		})
	}
	return metas, nil
}

func (m *mockVersionRepo) Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	p, ok := m.st.prompts[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
	}
	return m.Get(ctx, promptID, p.CurrentVersion)
}

type mockProjection struct {
	rebuildCalls    int
	invalidateCalls int
	getErr          error
	rebuildErr      error
	projections     map[uuid.UUID]*models.PromptProjection
}

func newMockProjection() *mockProjection {
	return &mockProjection{projections: make(map[uuid.UUID]*models.PromptProjection)}
}

func (m *mockProjection) Get(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.projections[promptID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: projection for prompt %s", apperrors.ErrNotFound, promptID)
}

func (m *mockProjection) Rebuild(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error) {
	m.rebuildCalls++
	if m.rebuildErr != nil {
		return nil, m.rebuildErr
	}
	p := &models.PromptProjection{PromptID: promptID}
	m.projections[promptID] = p
	return p, nil
}

func (m *mockProjection) Invalidate(ctx context.Context, promptID uuid.UUID) error {
	m.invalidateCalls++
	delete(m.projections, promptID)
	return nil
}

var (
	_ repositories.PromptRepository  = (*mockPromptRepo)(nil)
	_ repositories.VersionRepository = (*mockVersionRepo)(nil)
	_ ProjectionService              = (*mockProjection)(nil)
)

// authedContext builds a context carrying JWT claims for the given workspace
// and user, the way the auth middleware would.
func authedContext(t *testing.T, workspaceID, userID uuid.UUID) context.Context {
	t.Helper()
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		WorkspaceID:      workspaceID.String(),
	}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}
