package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/pkg/apperrors"
	"github.com/promptdeck/promptdeck/pkg/auth"
	"github.com/promptdeck/promptdeck/pkg/services"
)

// TenantMiddleware acquires a workspace-scoped database connection for the
// request. Applied after auth middleware so claims are available.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// ============================================================================
// Request/Response Types
// ============================================================================

// CreatePromptRequest for POST /prompts
type CreatePromptRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
}

// UpdatePromptRequest for PATCH /prompts/{pid}. Omitted fields are left
// unchanged; content is never updatable here, only through reconciliation.
type UpdatePromptRequest struct {
	Name      *string    `json:"name,omitempty"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
}

// PromptListResponse for GET /prompts
type PromptListResponse struct {
	Prompts []*promptListItem `json:"prompts"`
	Total   int               `json:"total"`
}

type promptListItem struct {
	PromptID       uuid.UUID `json:"prompt_id"`
	Name           string    `json:"name"`
	ProjectID      uuid.UUID `json:"project_id"`
	CurrentVersion int       `json:"current_version"`
	PreviewContent string    `json:"preview_content"`
}

// ============================================================================
// Handler
// ============================================================================

// PromptsHandler handles prompt CRUD HTTP requests.
type PromptsHandler struct {
	promptService services.PromptService
	logger        *zap.Logger
}

// NewPromptsHandler creates a new prompts handler.
func NewPromptsHandler(promptService services.PromptService, logger *zap.Logger) *PromptsHandler {
	return &PromptsHandler{promptService: promptService, logger: logger}
}

// RegisterRoutes registers the prompt handler's routes on the given mux.
func (h *PromptsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/prompts"

	mux.HandleFunc("POST "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Create)))
	mux.HandleFunc("GET "+base,
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.List)))
	mux.HandleFunc("GET "+base+"/{pid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Get)))
	mux.HandleFunc("PATCH "+base+"/{pid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{pid}",
		authMiddleware.RequireAuthWithPathValidation("wid")(tenantMiddleware(h.Delete)))
}

// Create handles POST /api/workspaces/{wid}/prompts
func (h *PromptsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	var req CreatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.ProjectID == uuid.Nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", "project_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	prompt, err := h.promptService.Create(r.Context(), req.ProjectID, req.Name, req.Content)
	if err != nil {
		h.logger.Error("Failed to create prompt",
			zap.String("project_id", req.ProjectID.String()),
			zap.String("name", req.Name),
			zap.Error(err))
		if errors.Is(err, apperrors.ErrValidation) {
			if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusInternalServerError, "create_prompt_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/workspaces/{wid}/prompts?project_id={id}
func (h *PromptsHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("project_id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_project_id", "project_id query parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	projections, err := h.promptService.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("Failed to list prompts",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "list_prompts_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	items := make([]*promptListItem, 0, len(projections))
	for _, p := range projections {
		items = append(items, &promptListItem{
			PromptID:       p.PromptID,
			Name:           p.Name,
			ProjectID:      p.ProjectID,
			CurrentVersion: p.CurrentVersion,
			PreviewContent: p.PreviewContent,
		})
	}

	response := PromptListResponse{Prompts: items, Total: len(items)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/workspaces/{wid}/prompts/{pid}
func (h *PromptsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	prompt, err := h.promptService.Get(r.Context(), promptID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "prompt_not_found", "Prompt not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get prompt",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "get_prompt_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/workspaces/{wid}/prompts/{pid}
func (h *PromptsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	prompt, err := h.promptService.UpdateBasicInfo(r.Context(), promptID, req.Name, req.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "prompt_not_found", "Prompt not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if errors.Is(err, apperrors.ErrValidation) {
			if err := ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to update prompt",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "update_prompt_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: prompt}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/workspaces/{wid}/prompts/{pid}
func (h *PromptsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if _, ok := ParseWorkspaceID(w, r, h.logger); !ok {
		return
	}
	promptID, ok := ParsePromptID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.promptService.Delete(r.Context(), promptID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "prompt_not_found", "Prompt not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete prompt",
			zap.String("prompt_id", promptID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "delete_prompt_failed", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
