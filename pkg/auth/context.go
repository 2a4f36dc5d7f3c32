package auth

import (
	"context"
)

// Context keys for authentication data
type contextKey string

const (
	// ContextKeyIdentity is the context key for the authenticated email identity
	ContextKeyIdentity contextKey = "identity"
	// ContextKeySubject is the context key for the JWT subject
	ContextKeySubject contextKey = "subject"
	// ContextKeyAdmin is the context key for the admin flag
	ContextKeyAdmin contextKey = "admin"
)

// WithIdentity adds the authenticated email identity to the context
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// IdentityFromContext retrieves the authenticated email identity from the context
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(ContextKeyIdentity).(string)
	return identity, ok
}

// WithSubject adds the JWT subject to the context
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}

// SubjectFromContext retrieves the JWT subject from the context
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(ContextKeySubject).(string)
	return sub, ok
}

// WithAdmin marks the context as belonging to an admin subject
func WithAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, ContextKeyAdmin, admin)
}

// IsAdminFromContext reports whether the context belongs to an admin subject
func IsAdminFromContext(ctx context.Context) bool {
	admin, ok := ctx.Value(ContextKeyAdmin).(bool)
	return ok && admin
}

// AuthInfo contains all authentication information for a request
type AuthInfo struct {
	Identity string
	Subject  string
	Admin    bool
}

// WithAuthInfo adds all authentication info to the context
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	ctx = WithIdentity(ctx, info.Identity)
	ctx = WithSubject(ctx, info.Subject)
	ctx = WithAdmin(ctx, info.Admin)
	return ctx
}

// AuthInfoFromContext retrieves all authentication info from the context
func AuthInfoFromContext(ctx context.Context) *AuthInfo {
	info := &AuthInfo{}
	info.Identity, _ = IdentityFromContext(ctx)
	info.Subject, _ = SubjectFromContext(ctx)
	info.Admin = IsAdminFromContext(ctx)
	return info
}
