package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/logging"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/repositories"
)

// PromptService manages prompt identity records. Content changes go through
// the reconciler; this service only handles creation (which implicitly writes
// version 1), basic-info updates (which never write a version), listing and
// deletion.
type PromptService interface {
	// Create makes a new prompt with version 1 recorded atomically.
	Create(ctx context.Context, projectID uuid.UUID, name, content string) (*models.Prompt, error)

	// Get returns a prompt identity record.
	Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error)

	// ListByProject returns projection views for all prompts in a project.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PromptProjection, error)

	// UpdateBasicInfo renames and/or moves a prompt. No version is created.
	UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error)

	// Delete removes a prompt and all its versions.
	Delete(ctx context.Context, id uuid.UUID) error
}

type promptService struct {
	promptRepo repositories.PromptRepository
	projection ProjectionService
	logger     *zap.Logger
}

// NewPromptService creates a new PromptService.
func NewPromptService(
	promptRepo repositories.PromptRepository,
	projection ProjectionService,
	logger *zap.Logger,
) PromptService {
	return &promptService{
		promptRepo: promptRepo,
		projection: projection,
		logger:     logger,
	}
}

func (s *promptService) Create(ctx context.Context, projectID uuid.UUID, name, content string) (*models.Prompt, error) {
	workspaceID, err := auth.RequireWorkspaceIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	prompt := &models.Prompt{
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Name:        name,
		CreatedBy:   userID,
	}

	if err := s.promptRepo.Create(ctx, prompt, content); err != nil {
		return nil, err
	}

	s.logger.Info("Created prompt",
		zap.String("prompt_id", prompt.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("name", name),
		zap.String("content_preview", logging.TruncateContent(content)))

	if _, err := s.projection.Rebuild(ctx, prompt.ID); err != nil {
		s.logger.Warn("Projection rebuild after create failed",
			zap.String("prompt_id", prompt.ID.String()),
			zap.Error(err))
	}

	return prompt, nil
}

func (s *promptService) Get(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	return s.promptRepo.Get(ctx, id)
}

func (s *promptService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PromptProjection, error) {
	prompts, err := s.promptRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	projections := make([]*models.PromptProjection, 0, len(prompts))
	for _, p := range prompts {
		projection, err := s.projection.Get(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load projection for prompt %s: %w", p.ID, err)
		}
		projections = append(projections, projection)
	}

	return projections, nil
}

func (s *promptService) UpdateBasicInfo(ctx context.Context, id uuid.UUID, name *string, projectID *uuid.UUID) (*models.Prompt, error) {
	prompt, err := s.promptRepo.UpdateBasicInfo(ctx, id, name, projectID)
	if err != nil {
		return nil, err
	}

	// Basic-info edits bypass the version store entirely, but the read view
	// still has to reflect them.
	if _, err := s.projection.Rebuild(ctx, id); err != nil {
		s.logger.Warn("Projection rebuild after basic-info update failed",
			zap.String("prompt_id", id.String()),
			zap.Error(err))
	}

	return prompt, nil
}

func (s *promptService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.promptRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.projection.Invalidate(ctx, id); err != nil {
		s.logger.Warn("Projection invalidation after delete failed",
			zap.String("prompt_id", id.String()),
			zap.Error(err))
	}

	s.logger.Info("Deleted prompt", zap.String("prompt_id", id.String()))
	return nil
}

// Ensure promptService implements PromptService at compile time.
var _ PromptService = (*promptService)(nil)
