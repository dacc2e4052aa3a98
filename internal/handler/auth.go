package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/model"
	"github.com/sakif/notes-app/internal/service"
)

// AuthService is the part of *service.AuthService the HTTP layer uses.
// Handler tests substitute a mock.
type AuthService interface {
	RequestSignupCode(ctx context.Context, name, dob, email string) (string, error)
	VerifyCode(ctx context.Context, in service.VerifyCodeInput) (*service.AuthResult, error)
	RequestLoginCode(ctx context.Context, email string) (string, error)
	ResendCode(ctx context.Context, email string) (string, error)
	GoogleTokenSignIn(ctx context.Context, idToken string) (*service.AuthResult, error)
	GoogleAuthURL() (string, error)
	GoogleCallback(ctx context.Context, code string) (*service.AuthResult, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// AuthHandler exposes the sign-in flows.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignupEmail / HandleLoginEmail / HandleResendCode → mail a code
//   - HandleVerifyCode       → trade a code for a session token
//   - HandleGoogleTokenLogin → trade a Google ID token for a session token
//   - HandleGoogleLogin / HandleGoogleCallback → the redirect flow
//   - HandleMe / HandleLogout → session holder's profile, client-side logout
//
// Handlers only decode, call the service, and encode. Every rule lives in
// the service.
type AuthHandler struct {
	svc AuthService
	// frontendURL, when set, turns the Google callback into a browser
	// redirect instead of a JSON response.
	frontendURL string
	logger      *slog.Logger
}

func NewAuthHandler(svc AuthService, frontendURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// AuthResponse is returned by every endpoint that signs the caller in.
type AuthResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	User    *model.Account `json:"user"`
}

type signupRequest struct {
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Email string `json:"email"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
	Name  string `json:"name"`
	DOB   string `json:"dob"`
}

type googleTokenRequest struct {
	IDToken string `json:"idToken"`
}

// HandleSignupEmail mails a signup code.
//
// HTTP: POST /api/auth/signup/email
// REQUEST BODY: {"name": "Ann", "dob": "1990-05-01", "email": "ann@x.com"}
func (h *AuthHandler) HandleSignupEmail(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.svc.RequestSignupCode(r.Context(), req.Name, req.DOB, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleVerifyCode verifies a code, creating the account on first use.
//
// HTTP: POST /api/auth/verify-otp
// REQUEST BODY: {"email": "...", "otp": "123456", "name": "...", "dob": "..."}
// name and dob are only required when the email has no account yet.
func (h *AuthHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.VerifyCode(r.Context(), service.VerifyCodeInput{
		Email:       req.Email,
		Code:        req.OTP,
		Name:        req.Name,
		DateOfBirth: req.DOB,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Message: "OTP verified successfully", Token: res.Token, User: res.Account})
}

// HandleResendCode replaces the pending code for an email.
//
// HTTP: POST /api/auth/resend-otp
func (h *AuthHandler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.svc.ResendCode(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleLoginEmail mails a login code to an existing email account.
//
// HTTP: POST /api/auth/login/email
func (h *AuthHandler) HandleLoginEmail(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.svc.RequestLoginCode(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// HandleGoogleTokenLogin signs in with an ID token the frontend obtained
// from Google Identity Services.
//
// HTTP: POST /api/auth/google/token-login
// REQUEST BODY: {"idToken": "eyJ..."}
func (h *AuthHandler) HandleGoogleTokenLogin(w http.ResponseWriter, r *http.Request) {
	var req googleTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.GoogleTokenSignIn(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Google login successful", Token: res.Token, User: res.Account})
}

// HandleGoogleLogin returns the consent URL; the frontend navigates to it.
//
// HTTP: GET /api/auth/google/login
// RESPONSE: {"url": "https://accounts.google.com/o/oauth2/auth?..."}
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GoogleAuthURL()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// HandleGoogleCallback completes the redirect flow.
//
// HTTP: GET /api/auth/google/callback?code=xxx
//
// With a frontend configured the browser is sent on to
// <frontend>/auth/callback?token=<jwt>, or ?error=<type> when sign-in
// failed. Without one the result is written as JSON.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		res *service.AuthResult
		err error
	)
	if denied := q.Get("error"); denied != "" {
		// The user declined on the consent screen.
		h.logger.InfoContext(r.Context(), "google consent denied", slog.String("error", denied))
		err = apperror.ValidationFailed("code", "Google sign-in was cancelled")
	} else {
		res, err = h.svc.GoogleCallback(r.Context(), q.Get("code"))
	}

	if h.frontendURL == "" {
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{Message: "Google login successful", Token: res.Token, User: res.Account})
		return
	}

	params := url.Values{}
	if err != nil {
		_, body := errorResponse(err)
		if body.Error == "internal_error" {
			h.logger.ErrorContext(r.Context(), "google callback failed", slog.String("error", err.Error()))
		}
		params.Set("error", body.Error)
	} else {
		params.Set("token", res.Token)
	}
	http.Redirect(w, r, h.frontendURL+"/auth/callback?"+params.Encode(), http.StatusFound)
}

// HandleMe returns the session holder's account.
//
// HTTP: GET /api/auth/me
// Auth: Required (RequireAuth puts the identity in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthorized("No token provided"))
		return
	}

	account, err := h.svc.GetAccount(r.Context(), id.ID)
	if err != nil {
		// A valid token for a vanished account.
		if errors.Is(err, apperror.ErrNotFound) {
			writeError(w, r, apperror.NotFoundMessage("Account not found"))
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.Account{"user": account})
}

// HandleLogout acknowledges a logout.
//
// HTTP: POST /api/auth/logout
//
// Sessions are stateless JWTs. Logging out means the client discards its
// token; it stays technically valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}
