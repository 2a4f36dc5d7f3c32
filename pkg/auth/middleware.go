package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Middleware authenticates requests using JWT bearer tokens and places the
// resulting AuthInfo on the request context.
type Middleware struct {
	validator     *JWTValidator
	adminSubjects map[string]struct{}
	logger        *zap.Logger
}

// NewMiddleware creates a new authentication middleware. adminSubjects is the
// allowlist of JWT subjects treated as admins.
func NewMiddleware(validator *JWTValidator, adminSubjects []string, logger *zap.Logger) *Middleware {
	admins := make(map[string]struct{}, len(adminSubjects))
	for _, sub := range adminSubjects {
		admins[sub] = struct{}{}
	}
	return &Middleware{
		validator:     validator,
		adminSubjects: admins,
		logger:        logger,
	}
}

// RequireAuth rejects requests without a valid bearer token. On success the
// authenticated identity (email claim) and subject are added to the context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
	})
}

// RequireAdmin rejects requests whose subject is not in the admin allowlist.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := m.authenticate(w, r)
		if !ok {
			return
		}
		if !info.Admin {
			m.logger.Warn("admin access denied", zap.String("subject", info.Subject))
			writeAuthError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
	})
}

func (m *Middleware) authenticate(w http.ResponseWriter, r *http.Request) (*AuthInfo, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
		return nil, false
	}

	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		writeAuthError(w, http.StatusUnauthorized, "invalid authorization header")
		return nil, false
	}

	claims, err := m.validator.ValidateToken(tokenString)
	if err != nil {
		m.logger.Debug("token validation failed", zap.Error(err))
		writeAuthError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if email == "" {
		writeAuthError(w, http.StatusUnauthorized, "token missing email claim")
		return nil, false
	}

	_, admin := m.adminSubjects[subject]
	return &AuthInfo{
		Identity: email,
		Subject:  subject,
		Admin:    admin,
	}, true
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
		"code":  status,
	})
}
