package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequireUserUUIDFromContext extracts the user ID from JWT claims and parses
// it as a UUID. Version appends record the author from this value; it is
// required for any operation that writes history.
func RequireUserUUIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userIDStr := GetUserIDFromContext(ctx)
	if userIDStr == "" {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID format: %w", err)
	}

	return userID, nil
}

// GetWorkspaceIDFromContext extracts the workspace ID from JWT claims in the
// context. Returns uuid.Nil if not authenticated or claims are missing.
func GetWorkspaceIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return uuid.Nil
	}

	if claims.WorkspaceID == "" {
		return uuid.Nil
	}

	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return uuid.Nil
	}

	return workspaceID
}

// RequireWorkspaceIDFromContext extracts the workspace ID from context and
// returns an error if not found.
func RequireWorkspaceIDFromContext(ctx context.Context) (uuid.UUID, error) {
	workspaceID := GetWorkspaceIDFromContext(ctx)
	if workspaceID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("workspace ID not found in context")
	}
	return workspaceID, nil
}
