package database

import (
	"context"
)

type contextKey string

const (
	// WorkspaceScopeKey is the context key for storing the workspace-scoped
	// database connection.
	WorkspaceScopeKey contextKey = "workspaceScope"
)

// GetWorkspaceScope retrieves the workspace-scoped database connection from
// context. Returns nil and false if not present.
func GetWorkspaceScope(ctx context.Context) (*WorkspaceScope, bool) {
	scope, ok := ctx.Value(WorkspaceScopeKey).(*WorkspaceScope)
	return scope, ok
}

// SetWorkspaceScope stores the workspace-scoped database connection in context.
func SetWorkspaceScope(ctx context.Context, scope *WorkspaceScope) context.Context {
	return context.WithValue(ctx, WorkspaceScopeKey, scope)
}
