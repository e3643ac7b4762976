package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseWorkspaceID extracts and validates the workspace ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false
// on error (after writing an error response).
// Expects path parameter: wid
func ParseWorkspaceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "wid", "invalid_workspace_id", "Invalid workspace ID format", logger)
}

// ParsePromptID extracts and validates the prompt ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: pid
func ParsePromptID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_prompt_id", "Invalid prompt ID format", logger)
}

// ParseVersionNumber extracts and validates the version number from the
// request path. Versions are positive integers assigned sequentially from 1.
// Expects path parameter: version
func ParseVersionNumber(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	raw := r.PathValue("version")
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		logger.Warn("Invalid version number in path", zap.String("version", raw))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_version", "Version must be a positive integer"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return version, true
}

func parseUUID(w http.ResponseWriter, r *http.Request, param, errorCode, message string, logger *zap.Logger) (uuid.UUID, bool) {
	raw := r.PathValue(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("Invalid UUID in path",
			zap.String("param", param),
			zap.String("value", raw))
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, message); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
