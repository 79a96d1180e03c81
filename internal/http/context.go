package http

import (
	"context"

	"github.com/example/able-marketplace/internal/application"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	workerIDContextKey  contextKey = "worker_id"
	ruleIDContextKey    contextKey = "rule_id"
	gigIDContextKey     contextKey = "gig_id"
	userIDContextKey    contextKey = "user_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithWorkerID injects the worker identifier resolved from the request path.
func ContextWithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, workerIDContextKey, workerID)
}

// WorkerIDFromContext extracts a worker identifier previously associated with the context.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(workerIDContextKey).(string)
	return id, ok
}

// ContextWithRuleID injects the availability rule identifier resolved from the request path.
func ContextWithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, ruleIDContextKey, ruleID)
}

// RuleIDFromContext extracts a rule identifier previously associated with the context.
func RuleIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ruleIDContextKey).(string)
	return id, ok
}

// ContextWithGigID injects the gig identifier resolved from the request path.
func ContextWithGigID(ctx context.Context, gigID string) context.Context {
	return context.WithValue(ctx, gigIDContextKey, gigID)
}

// GigIDFromContext extracts a gig identifier previously associated with the context.
func GigIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(gigIDContextKey).(string)
	return id, ok
}

// ContextWithUserID injects the user identifier resolved from the request path.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext extracts a user identifier previously associated with the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok
}
