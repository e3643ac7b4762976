package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/database"
	"github.com/promptdeck/promptdeck/pkg/models"
)

// PromptRepository defines data access for prompt identity records.
type PromptRepository interface {
	// Create inserts a new prompt together with its initial version in one
	// transaction. A prompt is never observable without version 1.
	Create(ctx context.Context, prompt *models.Prompt, content string) error

	// Get retrieves a prompt by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error)

	// ListByProject returns all prompts in a project, most recently updated
	// first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error)

	// UpdateBasicInfo changes name and/or project linkage. It never touches
	// the version table. Nil fields are left unchanged.
	UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error)

	// Delete removes the prompt; versions cascade with it.
	Delete(ctx context.Context, id uuid.UUID) error
}

// promptRepository implements PromptRepository using PostgreSQL.
type promptRepository struct{}

// NewPromptRepository creates a new prompt repository.
func NewPromptRepository() PromptRepository {
	return &promptRepository{}
}

func (r *promptRepository) Create(ctx context.Context, prompt *models.Prompt, content string) error {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no workspace scope in context")
	}

	if prompt.Name == "" {
		return fmt.Errorf("%w: name must not be empty", apperrors.ErrValidation)
	}
	if err := ValidateAppend(content, models.InitialVersionMessage); err != nil {
		return err
	}

	if prompt.ID == uuid.Nil {
		prompt.ID = uuid.New()
	}
	now := time.Now()
	prompt.CreatedAt = now
	prompt.UpdatedAt = now
	prompt.CurrentVersion = 1

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO prompts (id, workspace_id, project_id, name, current_version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		prompt.ID, prompt.WorkspaceID, prompt.ProjectID, prompt.Name,
		prompt.CurrentVersion, prompt.CreatedBy, prompt.CreatedAt, prompt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create prompt: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, content, message, author_user_id, created_at)
		VALUES ($1, 1, $2, $3, $4, $5)`,
		prompt.ID, content, models.InitialVersionMessage, prompt.CreatedBy, prompt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create initial version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *promptRepository) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, workspace_id, project_id, name, current_version, created_by, created_at, updated_at
		FROM prompts
		WHERE id = $1`

	var p models.Prompt
	err := scope.Conn.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.WorkspaceID, &p.ProjectID, &p.Name,
		&p.CurrentVersion, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}

	return &p, nil
}

func (r *promptRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT id, workspace_id, project_id, name, current_version, created_by, created_at, updated_at
		FROM prompts
		WHERE project_id = $1
		ORDER BY updated_at DESC`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(
			&p.ID, &p.WorkspaceID, &p.ProjectID, &p.Name,
			&p.CurrentVersion, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}

	return prompts, nil
}

func (r *promptRepository) UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	if name == nil && projectID == nil {
		return nil, fmt.Errorf("%w: nothing to update", apperrors.ErrValidation)
	}
	if name != nil && *name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", apperrors.ErrValidation)
	}

	query := `
		UPDATE prompts
		SET name = COALESCE($2, name),
		    project_id = COALESCE($3, project_id),
		    updated_at = $4
		WHERE id = $1
		RETURNING id, workspace_id, project_id, name, current_version, created_by, created_at, updated_at`

	var p models.Prompt
	err := scope.Conn.QueryRow(ctx, query, id, name, projectID, time.Now()).Scan(
		&p.ID, &p.WorkspaceID, &p.ProjectID, &p.Name,
		&p.CurrentVersion, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}

	return &p, nil
}

func (r *promptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return fmt.Errorf("no workspace scope in context")
	}

	result, err := scope.Conn.Exec(ctx, "DELETE FROM prompts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, id)
	}

	return nil
}

// Ensure promptRepository implements PromptRepository at compile time.
var _ PromptRepository = (*promptRepository)(nil)
