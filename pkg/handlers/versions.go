package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/diff"
	"github.com/promptdeck/promptdeck/pkg/models"
	"github.com/promptdeck/promptdeck/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// VersionListResponse for GET /versions
type VersionListResponse struct {
	Versions []*models.VersionMeta `json:"versions"`
	Total    int                   `json:"total"`
}

// VersionContentResponse for GET /versions/{version}
type VersionContentResponse struct {
	Version int    `json:"version"`
	Content string `json:"content"`
}

// DiffResponse for GET /diff
type DiffResponse struct {
	From    int         `json:"from"`
	To      int         `json:"to"`
	Added   int         `json:"added"`
	Removed int         `json:"removed"`
	Diff    diff.Result `json:"diff"`
}

// BeginEditRequest for POST /reconcile/edit. SeedVersion 0 seeds from the
// latest committed version.
type BeginEditRequest struct {
	SeedVersion int `json:"seed_version,omitempty"`
}

// ReconcileRequest for POST /reconcile
type ReconcileRequest struct {
	Draft string `json:"draft"`
}

// CommitRequest for POST /reconcile/commit
type CommitRequest struct {
	Message string `json:"message"`
}

// ============================================================================
// Handler
// ============================================================================

// VersionsHandler handles version history and reconciliation HTTP requests.
type VersionsHandler struct {
	historyService    services.HistoryService
	reconcilerService services.ReconcilerService
	logger            *zap.Logger
}

// NewVersionsHandler creates a new versions handler.
func NewVersionsHandler(
	historyService services.HistoryService,
	reconcilerService services.ReconcilerService,
	logger *zap.Logger,
) *VersionsHandler {
	return &VersionsHandler{
		historyService:    historyService,
		reconcilerService: reconcilerService,
		logger:            logger,
	}
}

// RegisterRoutes registers the version handler's routes on the given mux.
func (h *VersionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/prompts/{pid}"

	mux.HandleFunc("GET "+base+"/versions",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.ListVersions)))
	mux.HandleFunc("GET "+base+"/versions/{version}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.GetVersion)))
	mux.HandleFunc("GET "+base+"/diff",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Diff)))
	mux.HandleFunc("POST "+base+"/reconcile/edit",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.BeginEdit)))
	mux.HandleFunc("POST "+base+"/reconcile",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Reconcile)))
	mux.HandleFunc("POST "+base+"/reconcile/commit",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Commit)))
	mux.HandleFunc("POST "+base+"/reconcile/cancel",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Cancel)))
	mux.HandleFunc("DELETE "+base+"/reconcile",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Abandon)))
}

// ListVersions handles GET /api/workspaces/{wid}/prompts/{pid}/versions.
// Returns metadata only; full content is fetched per version.
func (h *VersionsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	metas, err := h.historyService.ListVersions(r.Context(), promptID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "prompt_not_found", "Prompt not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list versions",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_versions_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := VersionListResponse{Versions: metas, Total: len(metas)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetVersion handles GET /api/workspaces/{wid}/prompts/{pid}/versions/{version}
func (h *VersionsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}
	version, ok := ParseVersionNumber(w, r, h.logger)
	if !ok {
		return
	}

	content, err := h.historyService.GetVersionContent(r.Context(), promptID, version)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "version_not_found", "Version not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get version content",
			zap.String("prompt_id", promptID.String()),
			zap.Int("version", version),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_version_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := VersionContentResponse{Version: version, Content: content}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Diff handles GET /api/workspaces/{wid}/prompts/{pid}/diff?from=A&to=B
func (h *VersionsHandler) Diff(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	from, err1 := strconv.Atoi(r.URL.Query().Get("from"))
	to, err2 := strconv.Atoi(r.URL.Query().Get("to"))
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_version_range", "from and to must be positive integers"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.historyService.CompareVersions(r.Context(), promptID, from, to)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "version_not_found", "Version not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to compare versions",
			zap.String("prompt_id", promptID.String()),
			zap.Int("from", from),
			zap.Int("to", to),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "diff_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	added, removed := result.Stats()
	response := DiffResponse{From: from, To: to, Added: added, Removed: removed, Diff: result}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// BeginEdit handles POST /api/workspaces/{wid}/prompts/{pid}/reconcile/edit
func (h *VersionsHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	var req BeginEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.SeedVersion < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_version", "seed_version must not be negative"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	view, err := h.reconcilerService.BeginEdit(r.Context(), promptID, req.SeedVersion)
	if err != nil {
		h.writeReconcileError(w, "begin_edit_failed", promptID.String(), err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Reconcile handles POST /api/workspaces/{wid}/prompts/{pid}/reconcile.
// Saves the draft, diffs it against the latest committed version, and moves
// the session to awaiting_message.
func (h *VersionsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	view, err := h.reconcilerService.Compare(r.Context(), promptID, req.Draft)
	if err != nil {
		h.writeReconcileError(w, "reconcile_failed", promptID.String(), err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Commit handles POST /api/workspaces/{wid}/prompts/{pid}/reconcile/commit
func (h *VersionsHandler) Commit(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	version, err := h.reconcilerService.Commit(r.Context(), promptID, req.Message)
	if err != nil {
		h.writeReconcileError(w, "commit_failed", promptID.String(), err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: version}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Cancel handles POST /api/workspaces/{wid}/prompts/{pid}/reconcile/cancel.
// Returns the session to editing, keeping the draft.
func (h *VersionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.reconcilerService.Cancel(r.Context(), promptID)
	if err != nil {
		h.writeReconcileError(w, "cancel_failed", promptID.String(), err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: view}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Abandon handles DELETE /api/workspaces/{wid}/prompts/{pid}/reconcile.
// Drops the session entirely; nothing committed is affected.
func (h *VersionsHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.reconcilerService.Abandon(r.Context(), promptID); err != nil {
		h.writeReconcileError(w, "abandon_failed", promptID.String(), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeReconcileError maps service errors to HTTP status codes. Conflicts
// include ambiguous append outcomes; clients must inspect history before
// retrying a commit.
func (h *VersionsHandler) writeReconcileError(w http.ResponseWriter, errorCode, promptID string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrValidation):
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrConflict):
		if err := ErrorResponse(w, http.StatusConflict, "conflict", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	default:
		h.logger.Error("Reconciliation request failed",
			zap.String("prompt_id", promptID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, errorCode, err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
