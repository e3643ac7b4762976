package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/database"
	"github.com/promptdeck/promptdeck/pkg/models"
)

// VersionRepository is the durable store of immutable prompt versions.
//
// Append is the only write path. It assigns the next sequential version
// number and advances the prompt's current-version pointer in one atomic
// unit: a reader can never observe a current version that is not durably
// stored, and concurrent appends to the same prompt serialize on the
// prompt row lock. Appends to different prompts never contend.
type VersionRepository interface {
	// Append persists a new version with the next sequential number for the
	// prompt and updates the prompt's current_version pointer atomically.
	// Returns apperrors.ErrNotFound if the prompt does not exist,
	// apperrors.ErrValidation for empty content or an empty/oversized
	// message, and apperrors.ErrConflict if the commit outcome is ambiguous.
	Append(ctx context.Context, promptID uuid.UUID, content, message string, authorUserID uuid.UUID) (*models.PromptVersion, error)

	// Get retrieves a single version with content.
	Get(ctx context.Context, promptID uuid.UUID, version int) (*models.PromptVersion, error)

	// ListMetadata returns version metadata newest first, without content.
	ListMetadata(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error)

	// Latest retrieves the version the prompt's current_version points at.
	Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error)
}

// versionRepository implements VersionRepository using PostgreSQL.
type versionRepository struct{}

// NewVersionRepository creates a new version repository.
func NewVersionRepository() VersionRepository {
	return &versionRepository{}
}

// ValidateAppend checks append inputs without touching storage. Exported so
// the reconciler can reject bad input before a commit is attempted.
func ValidateAppend(content, message string) error {
	if content == "" {
		return fmt.Errorf("%w: content must not be empty", apperrors.ErrValidation)
	}
	if message == "" {
		return fmt.Errorf("%w: message must not be empty", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(message) > models.MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrValidation, models.MaxMessageLength)
	}
	return nil
}

func (r *versionRepository) Append(ctx context.Context, promptID uuid.UUID, content, message string, authorUserID uuid.UUID) (*models.PromptVersion, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	if err := ValidateAppend(content, message); err != nil {
		return nil, err
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// The row lock on the prompt serializes version-number assignment for
	// this prompt. The pointer update below rides in the same transaction.
	var current int
	err = tx.QueryRow(ctx,
		"SELECT current_version FROM prompts WHERE id = $1 FOR UPDATE",
		promptID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
		}
		return nil, fmt.Errorf("failed to lock prompt row: %w", err)
	}

	version := &models.PromptVersion{
		PromptID:     promptID,
		Version:      current + 1,
		Content:      content,
		Message:      message,
		AuthorUserID: authorUserID,
		CreatedAt:    time.Now(),
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, content, message, author_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		version.PromptID, version.Version, version.Content, version.Message,
		version.AuthorUserID, version.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: version %d already exists for prompt %s",
				apperrors.ErrConflict, version.Version, promptID)
		}
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE prompts SET current_version = $2, updated_at = $3 WHERE id = $1",
		promptID, version.Version, version.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to advance current version: %w", err)
	}

	// A commit failure is ambiguous: the version may or may not have landed.
	// Surface it as a conflict so callers never retry blindly.
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: append outcome unknown: %v", apperrors.ErrConflict, err)
	}

	return version, nil
}

func (r *versionRepository) Get(ctx context.Context, promptID uuid.UUID, version int) (*models.PromptVersion, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT prompt_id, version, content, message, author_user_id, created_at
		FROM prompt_versions
		WHERE prompt_id = $1 AND version = $2`

	var v models.PromptVersion
	err := scope.Conn.QueryRow(ctx, query, promptID, version).Scan(
		&v.PromptID, &v.Version, &v.Content, &v.Message, &v.AuthorUserID, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: version %d of prompt %s", apperrors.ErrNotFound, version, promptID)
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &v, nil
}

func (r *versionRepository) ListMetadata(ctx context.Context, promptID uuid.UUID) ([]*models.VersionMeta, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	// Content is deliberately not selected: history lists stay cheap no
	// matter how large individual snapshots are.
	query := `
		SELECT version, message, author_user_id, created_at
		FROM prompt_versions
		WHERE prompt_id = $1
		ORDER BY version DESC`

	rows, err := scope.Conn.Query(ctx, query, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list version metadata: %w", err)
	}
	defer rows.Close()

	var metas []*models.VersionMeta
	for rows.Next() {
		var m models.VersionMeta
		if err := rows.Scan(&m.Version, &m.Message, &m.AuthorUserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version metadata: %w", err)
		}
		metas = append(metas, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version metadata: %w", err)
	}

	// A prompt always has at least one version, so an empty list means the
	// prompt itself is unknown.
	if len(metas) == 0 {
		return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
	}

	return metas, nil
}

func (r *versionRepository) Latest(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	scope, ok := database.GetWorkspaceScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no workspace scope in context")
	}

	query := `
		SELECT v.prompt_id, v.version, v.content, v.message, v.author_user_id, v.created_at
		FROM prompts p
		JOIN prompt_versions v ON v.prompt_id = p.id AND v.version = p.current_version
		WHERE p.id = $1`

	var v models.PromptVersion
	err := scope.Conn.QueryRow(ctx, query, promptID).Scan(
		&v.PromptID, &v.Version, &v.Content, &v.Message, &v.AuthorUserID, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: prompt %s", apperrors.ErrNotFound, promptID)
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	return &v, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Ensure versionRepository implements VersionRepository at compile time.
var _ VersionRepository = (*versionRepository)(nil)
