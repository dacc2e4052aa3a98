package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/notes-app/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package.
//
// Only this package can create a key of type contextKey, so only this package
// can read or write the identity stored in the request context.
type contextKey string

const identityKey contextKey = "identity"

// SessionValidator decides whether a bearer token opens a session.
// *service.AuthService satisfies it. Rejections are apperror values:
// ErrUnauthorized when there is no token, ErrForbidden when it is invalid.
type SessionValidator interface {
	ValidateSession(token string) (Identity, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the session token from the Authorization header
// ("Authorization: Bearer <jwt>"), validates it, and stores the Identity in
// the request context.
//
// STATUS CODES come from the error kind the validator returns:
//   - apperror.ErrUnauthorized (no token)       → 401
//   - anything else (token present but refused) → 403
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1.
func RequireAuth(sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// A missing or malformed header arrives as "" and the validator
			// reports it as Unauthorized.
			id, err := sessions.ValidateSession(bearerToken(r))
			if err != nil {
				writeSessionError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id. RequireAuth uses it; tests
// use it to call handlers directly.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated identity from the request
// context.
//
// Returns (Identity{}, false) outside RequireAuth-protected routes.
//
// Usage in handlers:
//
//	id, ok := auth.IdentityFromContext(r.Context())
//	if !ok {
//	    // not authenticated
//	}
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != ""
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively. Anything else yields "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeSessionError maps a validator rejection to 401 or 403. The message is
// the validator's own.
func writeSessionError(w http.ResponseWriter, err error) {
	status, errType := http.StatusForbidden, "forbidden"
	if errors.Is(err, apperror.ErrUnauthorized) {
		status, errType = http.StatusUnauthorized, "unauthorized"
	}

	message := http.StatusText(status)
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	writeAuthError(w, status, errType, message)
}

// writeAuthError writes the same {"error","message"} shape the handler
// package uses. This package cannot import handler (handler imports auth).
func writeAuthError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errType,
		"message": message,
	})
}
