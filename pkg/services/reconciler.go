package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/diff"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/repositories"
)

// SessionState is the reconciliation protocol state for one edit session.
type SessionState string

const (
	// StateEditing: the session holds an in-memory draft; nothing persisted.
	StateEditing SessionState = "editing"
	// StateComparing: the draft is being diffed against the re-fetched
	// latest version. Transient; observable only inside Compare.
	StateComparing SessionState = "comparing"
	// StateAwaitingMessage: a diff has been presented; the commit waits for
	// a message. Cancel returns to editing.
	StateAwaitingMessage SessionState = "awaiting_message"
	// StateCommitted: the append succeeded. The session immediately re-seeds
	// to editing from the new version, so this state is reported once on the
	// commit response and never stored.
	StateCommitted SessionState = "committed"
)

// SessionView is an immutable snapshot of a reconciliation session for
// callers outside this package.
type SessionView struct {
	PromptID uuid.UUID    `json:"prompt_id"`
	State    SessionState `json:"state"`
	Draft    string       `json:"draft"`
	// SeedVersion is the version the draft was originally loaded from. It is
	// reference information only and never determines what a commit is
	// layered on.
	SeedVersion int `json:"seed_version"`
	// BaseVersion is the version the last compare actually ran against: the
	// latest committed version at compare time. The diff shown to the user
	// is advisory; the store's own serialization decides the final ordering.
	BaseVersion int          `json:"base_version,omitempty"`
	Diff        *diff.Result `json:"diff,omitempty"`
}

// session is the internal mutable state. The mutex enforces one in-flight
// transition per session; sessions for different prompts or users are fully
// independent.
type session struct {
	mu          sync.Mutex
	promptID    uuid.UUID
	userID      uuid.UUID
	state       SessionState
	draft       string
	seedVersion int
	baseVersion int
	diff        diff.Result
}

func (s *session) view() *SessionView {
	v := &SessionView{
		PromptID:    s.promptID,
		State:       s.state,
		Draft:       s.draft,
		SeedVersion: s.seedVersion,
		BaseVersion: s.baseVersion,
	}
	if s.state == StateAwaitingMessage {
		d := s.diff
		v.Diff = &d
	}
	return v
}

// ReconcilerService drives the append protocol: re-fetch latest, diff the
// draft against it, collect a commit message, append. Nothing is persisted
// before Commit succeeds; abandoning a session at any point has no effect
// on storage.
type ReconcilerService interface {
	// BeginEdit starts or resets an editing session for the acting user,
	// seeding the draft from seedVersion (0 means latest). Seeding from a
	// historical version only loads its content; it never changes which
	// version is current.
	BeginEdit(ctx context.Context, promptID uuid.UUID, seedVersion int) (*SessionView, error)

	// Compare re-fetches the latest committed version, diffs it against the
	// supplied draft, and moves the session to awaiting_message. The diff is
	// always computed, even for a byte-identical draft.
	Compare(ctx context.Context, promptID uuid.UUID, draft string) (*SessionView, error)

	// Commit appends the draft as a new version with the given message.
	// On validation or not-found errors the session stays in
	// awaiting_message with draft preserved for retry. On success the
	// session re-seeds to editing from the new version.
	Commit(ctx context.Context, promptID uuid.UUID, message string) (*models.PromptVersion, error)

	// Cancel returns an awaiting_message session to editing, keeping the
	// draft.
	Cancel(ctx context.Context, promptID uuid.UUID) (*SessionView, error)

	// Abandon discards the session entirely. No persisted effect.
	Abandon(ctx context.Context, promptID uuid.UUID) error
}

type sessionKey struct {
	promptID uuid.UUID
	userID   uuid.UUID
}

type reconcilerService struct {
	versionRepo repositories.VersionRepository
	projection  ProjectionService
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

// NewReconcilerService creates a new ReconcilerService.
func NewReconcilerService(
	versionRepo repositories.VersionRepository,
	projection ProjectionService,
	logger *zap.Logger,
) ReconcilerService {
	return &reconcilerService{
		versionRepo: versionRepo,
		projection:  projection,
		logger:      logger,
		sessions:    make(map[sessionKey]*session),
	}
}

func (r *reconcilerService) BeginEdit(ctx context.Context, promptID uuid.UUID, seedVersion int) (*SessionView, error) {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var seed *models.PromptVersion
	if seedVersion == 0 {
		seed, err = r.versionRepo.Latest(ctx, promptID)
	} else {
		seed, err = r.versionRepo.Get(ctx, promptID, seedVersion)
	}
	if err != nil {
		return nil, err
	}

	sess := &session{
		promptID:    promptID,
		userID:      userID,
		state:       StateEditing,
		draft:       seed.Content,
		seedVersion: seed.Version,
	}

	r.mu.Lock()
	r.sessions[sessionKey{promptID, userID}] = sess
	r.mu.Unlock()

	return sess.view(), nil
}

func (r *reconcilerService) Compare(ctx context.Context, promptID uuid.UUID, draft string) (*SessionView, error) {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	sess, err := r.getOrCreate(ctx, promptID, userID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.state = StateComparing
	sess.draft = draft

	// Re-fetch latest at this moment, not the version the draft was seeded
	// from: the diff is always against whatever is currently committed.
	latest, err := r.versionRepo.Latest(ctx, promptID)
	if err != nil {
		sess.state = StateEditing
		return nil, err
	}

	sess.baseVersion = latest.Version
	sess.diff = diff.Compute(latest.Content, draft)
	sess.state = StateAwaitingMessage

	if sess.diff.Identical() {
		r.logger.Debug("Draft identical to latest version; commit still allowed",
			zap.String("prompt_id", promptID.String()),
			zap.Int("base_version", latest.Version))
	}

	return sess.view(), nil
}

func (r *reconcilerService) Commit(ctx context.Context, promptID uuid.UUID, message string) (*models.PromptVersion, error) {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	sess, ok := r.get(promptID, userID)
	if !ok {
		return nil, fmt.Errorf("%w: no reconciliation in progress for prompt %s", apperrors.ErrNotFound, promptID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateAwaitingMessage {
		return nil, fmt.Errorf("%w: commit requires a prior compare (state %s)", apperrors.ErrValidation, sess.state)
	}

	version, err := r.versionRepo.Append(ctx, promptID, sess.draft, message, userID)
	if err != nil {
		// Draft and state are preserved so the user can correct the message
		// or, on conflict, inspect history before an explicit retry.
		return nil, err
	}

	if _, err := r.projection.Rebuild(ctx, promptID); err != nil {
		r.logger.Warn("Projection rebuild after commit failed",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
	}

	r.logger.Info("Committed prompt version",
		zap.String("prompt_id", promptID.String()),
		zap.Int("version", version.Version),
		zap.Int("base_version", sess.baseVersion),
		zap.String("author", userID.String()))

	// Re-seed to editing from the freshly committed version.
	sess.state = StateEditing
	sess.draft = version.Content
	sess.seedVersion = version.Version
	sess.baseVersion = 0
	sess.diff = diff.Result{}

	return version, nil
}

func (r *reconcilerService) Cancel(ctx context.Context, promptID uuid.UUID) (*SessionView, error) {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	sess, ok := r.get(promptID, userID)
	if !ok {
		return nil, fmt.Errorf("%w: no reconciliation in progress for prompt %s", apperrors.ErrNotFound, promptID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.state = StateEditing
	sess.baseVersion = 0
	sess.diff = diff.Result{}

	return sess.view(), nil
}

func (r *reconcilerService) Abandon(ctx context.Context, promptID uuid.UUID) error {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, sessionKey{promptID, userID})
	r.mu.Unlock()
	return nil
}

func (r *reconcilerService) get(promptID, userID uuid.UUID) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionKey{promptID, userID}]
	return sess, ok
}

// getOrCreate returns the user's session for the prompt, implicitly starting
// one seeded from latest when a save arrives without a prior BeginEdit.
func (r *reconcilerService) getOrCreate(ctx context.Context, promptID, userID uuid.UUID) (*session, error) {
	if sess, ok := r.get(promptID, userID); ok {
		return sess, nil
	}

	latest, err := r.versionRepo.Latest(ctx, promptID)
	if err != nil {
		return nil, err
	}

	sess := &session{
		promptID:    promptID,
		userID:      userID,
		state:       StateEditing,
		draft:       latest.Content,
		seedVersion: latest.Version,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[sessionKey{promptID, userID}]; ok {
		return existing, nil
	}
	r.sessions[sessionKey{promptID, userID}] = sess
	return sess, nil
}

// Ensure reconcilerService implements ReconcilerService at compile time.
var _ ReconcilerService = (*reconcilerService)(nil)
