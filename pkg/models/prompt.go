package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is the maximum length of a version commit message.
const MaxMessageLength = 200

// InitialVersionMessage is the canonical message recorded with version 1.
const InitialVersionMessage = "initial version"

// Prompt is the mutable identity record of a prompt. Content lives in
// PromptVersion rows; CurrentVersion always references an existing version
// and a prompt always has at least one (created atomically with the prompt).
type Prompt struct {
	ID             uuid.UUID `json:"id"`
	WorkspaceID    uuid.UUID `json:"workspace_id"`
	ProjectID      uuid.UUID `json:"project_id"`
	Name           string    `json:"name"`
	CurrentVersion int       `json:"current_version"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PromptVersion is an immutable full-content snapshot of a prompt.
// Version numbers are strictly sequential from 1, assigned by the store at
// append time. Rows are never edited or reordered once written.
type PromptVersion struct {
	PromptID     uuid.UUID `json:"prompt_id"`
	Version      int       `json:"version"`
	Content      string    `json:"content"`
	Message      string    `json:"message"`
	AuthorUserID uuid.UUID `json:"author_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// VersionMeta carries version audit metadata without content. History list
// displays use this so full snapshot text is only loaded per version on
// demand.
type VersionMeta struct {
	Version      int       `json:"version"`
	Message      string    `json:"message"`
	AuthorUserID uuid.UUID `json:"author_user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PromptProjection is the denormalized read view of a prompt for list
// displays. PreviewContent is a truncated prefix of the current version's
// content. Rebuilt, not patched, whenever a version is appended or basic
// info changes.
type PromptProjection struct {
	PromptID       uuid.UUID `json:"prompt_id"`
	Name           string    `json:"name"`
	ProjectID      uuid.UUID `json:"project_id"`
	CurrentVersion int       `json:"current_version"`
	PreviewContent string    `json:"preview_content"`
}
