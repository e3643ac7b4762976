package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck/pkg/diff"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/repositories"
	"github.com/promptdeck/promptdeck/pkg/retry"
)

// HistoryService is the read side of the version store: metadata listings,
// per-version content, and cross-version diffs for audit review.
//
// Reads are wrapped in a bounded retry for transient storage errors. The
// write path (the reconciler) never is.
type HistoryService interface {
	// ListVersions returns version metadata newest first, without content.
	ListVersions(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error)

	// GetVersionContent returns the full content of one version.
	GetVersionContent(ctx context.Context, promptID uuid.UUID, version int) (string, error)

	// CompareVersions diffs two versions' content. Diff direction is
	// caller-determined; by convention the older version goes first.
	CompareVersions(ctx context.Context, promptID uuid.UUID, versionA, versionB int) (diff.Result, error)
}

type historyService struct {
	versionRepo repositories.VersionRepository
	retryCfg    *retry.Config
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(versionRepo repositories.VersionRepository) HistoryService {
	return &historyService{
		versionRepo: versionRepo,
		retryCfg:    retry.DefaultConfig(),
	}
}

func (s *historyService) ListVersions(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error) {
	var metas []*models.VersionMeta
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var innerErr error
		metas, innerErr = s.versionRepo.ListMetadata(ctx, promptID)
		return innerErr
	})
	return metas, err
}

func (s *historyService) GetVersionContent(ctx context.Context, promptID uuid.UUID, version int) (string, error) {
	v, err := s.getVersion(ctx, promptID, version)
	if err != nil {
		return "", err
	}
	return v.Content, nil
}

func (s *historyService) CompareVersions(ctx context.Context, promptID uuid.UUID, versionA, versionB int) (diff.Result, error) {
	a, err := s.getVersion(ctx, promptID, versionA)
	if err != nil {
		return diff.Result{}, err
	}

	b, err := s.getVersion(ctx, promptID, versionB)
	if err != nil {
		return diff.Result{}, err
	}

	return diff.Compute(a.Content, b.Content), nil
}

func (s *historyService) getVersion(ctx context.Context, promptID uuid.UUID, version int) (*models.PromptVersion, error) {
	var v *models.PromptVersion
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		var innerErr error
		v, innerErr = s.versionRepo.Get(ctx, promptID, version)
		return innerErr
	})
	return v, err
}

// Ensure historyService implements HistoryService at compile time.
var _ HistoryService = (*historyService)(nil)
