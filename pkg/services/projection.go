package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/repositories"
)

// projectionCacheTTL bounds staleness if an invalidation is ever lost.
const projectionCacheTTL = 24 * time.Hour

// ProjectionService maintains the denormalized read view of prompts.
// The projection is always rebuilt from the authoritative prompt and version
// rows, never patched incrementally. Redis holds the rebuilt view; a nil
// Redis client degrades to rebuilding on every read.
type ProjectionService interface {
	// Get returns the projection for a prompt, from cache when possible.
	Get(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error)

	// Rebuild recomputes the projection from storage and replaces the cache
	// entry. Called after every version append and basic-info update.
	Rebuild(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error)

	// Invalidate drops the cached projection. Called on prompt delete.
	Invalidate(ctx context.Context, promptID uuid.UUID) error
}

type projectionService struct {
	promptRepo  repositories.PromptRepository
	versionRepo repositories.VersionRepository
	cache       *redis.Client
	previewLen  int
	logger      *zap.Logger
}

// NewProjectionService creates a new ProjectionService. cache may be nil.
func NewProjectionService(
	promptRepo repositories.PromptRepository,
	versionRepo repositories.VersionRepository,
	cache *redis.Client,
	previewLen int,
	logger *zap.Logger,
) ProjectionService {
	return &projectionService{
		promptRepo:  promptRepo,
		versionRepo: versionRepo,
		cache:       cache,
		previewLen:  previewLen,
		logger:      logger,
	}
}

func projectionCacheKey(promptID uuid.UUID) string {
	return "projection:" + promptID.String()
}

func (s *projectionService) Get(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error) {
	if s.cache != nil {
		data, err := s.cache.Get(ctx, projectionCacheKey(promptID)).Bytes()
		if err == nil {
			var projection models.PromptProjection
			if err := json.Unmarshal(data, &projection); err == nil {
				return &projection, nil
			}
			// Corrupt cache entry: fall through to rebuild
			s.logger.Warn("Discarding unreadable projection cache entry",
				zap.String("prompt_id", promptID.String()))
		} else if err != redis.Nil {
			s.logger.Warn("Projection cache read failed",
				zap.String("prompt_id", promptID.String()),
				zap.Error(err))
		}
	}

	return s.Rebuild(ctx, promptID)
}

func (s *projectionService) Rebuild(ctx context.Context, promptID uuid.UUID) (*models.PromptProjection, error) {
	prompt, err := s.promptRepo.Get(ctx, promptID)
	if err != nil {
		return nil, err
	}

	latest, err := s.versionRepo.Latest(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load current version for projection: %w", err)
	}

	projection := &models.PromptProjection{
		PromptID:       prompt.ID,
		Name:           prompt.Name,
		ProjectID:      prompt.ProjectID,
		CurrentVersion: prompt.CurrentVersion,
		PreviewContent: truncatePreview(latest.Content, s.previewLen),
	}

	if s.cache != nil {
		data, err := json.Marshal(projection)
		if err == nil {
			if err := s.cache.Set(ctx, projectionCacheKey(promptID), data, projectionCacheTTL).Err(); err != nil {
				s.logger.Warn("Projection cache write failed",
					zap.String("prompt_id", promptID.String()),
					zap.Error(err))
			}
		}
	}

	return projection, nil
}

func (s *projectionService) Invalidate(ctx context.Context, promptID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, projectionCacheKey(promptID)).Err(); err != nil {
		s.logger.Warn("Projection cache invalidation failed",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// truncatePreview returns a rune-safe prefix of content for list displays.
func truncatePreview(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen])
}

// Ensure projectionService implements ProjectionService at compile time.
var _ ProjectionService = (*projectionService)(nil)
