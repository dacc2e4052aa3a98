package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/notes-app/internal/apperror"
	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/codestore"
	"github.com/sakif/notes-app/internal/email"
	"github.com/sakif/notes-app/internal/metrics"
	"github.com/sakif/notes-app/internal/model"
	"github.com/sakif/notes-app/internal/repository"
)

// DefaultCodeTTL is how long an issued code stays valid.
const DefaultCodeTTL = 5 * time.Minute

// GoogleProvider is the identity provider the auth core talks to.
// *auth.GoogleProvider implements it; tests use a fake.
type GoogleProvider interface {
	AuthURL() string
	VerifyIDToken(ctx context.Context, raw string) (*auth.GoogleIdentity, error)
	ExchangeIDToken(ctx context.Context, code string) (string, error)
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Accounts repository.AccountRepository
	Codes    codestore.Store
	Hasher   *auth.CodeHasher
	Tokens   *auth.TokenService
	Sender   email.Sender
	// Google is nil when Google sign-in is not configured.
	Google  GoogleProvider
	CodeTTL time.Duration
}

// AuthService orchestrates the four ways into the app:
//
//	email signup:  RequestSignupCode → VerifyCode (creates the account)
//	email login:   RequestLoginCode  → VerifyCode
//	Google token:  GoogleTokenSignIn
//	Google redirect: GoogleAuthURL → browser → GoogleCallback
//
// INVARIANTS IT ENFORCES:
//   - At most one live code per email; issuing replaces the previous one.
//   - A code verifies at most once (atomic compare-and-delete in the store).
//   - An account's method (email or google) never changes. Crossing methods
//     is a Conflict, in both directions.
//   - Account existence is checked before method match.
//
// AuthService holds no mutable state of its own; every guarantee above is
// delegated to the code store or the UNIQUE index on accounts.email.
type AuthService struct {
	accounts repository.AccountRepository
	codes    codestore.Store
	hasher   *auth.CodeHasher
	tokens   *auth.TokenService
	sender   email.Sender
	google   GoogleProvider
	codeTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(deps AuthDeps, logger *slog.Logger) *AuthService {
	ttl := deps.CodeTTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &AuthService{
		accounts: deps.Accounts,
		codes:    deps.Codes,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		sender:   deps.Sender,
		google:   deps.Google,
		codeTTL:  ttl,
		now:      time.Now,
		logger:   logger.With("component", "auth"),
	}
}

// AuthResult bundles the account and its fresh session token.
type AuthResult struct {
	Account *model.Account
	Token   string
}

// VerifyCodeInput is the body of a verification. Name and DateOfBirth are
// only read when the email has no account yet.
type VerifyCodeInput struct {
	Email       string
	Code        string
	Name        string
	DateOfBirth string // YYYY-MM-DD
}

// Code flows, used as the metrics label.
const (
	flowSignup = "signup"
	flowLogin  = "login"
	flowResend = "resend"

	flowGoogleToken    = "token"
	flowGoogleRedirect = "redirect"
)

// =========================================================================
// EMAIL FLOWS
// =========================================================================

// RequestSignupCode validates the signup form and mails a fresh code.
//
// Name and date of birth are validated here so the form fails fast, but
// they are not stored: the account is only created by VerifyCode, which
// receives them again.
func (s *AuthService) RequestSignupCode(ctx context.Context, name, dob, emailAddr string) (string, error) {
	if _, err := validateName(name); err != nil {
		return "", err
	}
	if _, err := parseDateOfBirth(dob, s.now()); err != nil {
		return "", err
	}
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return "", err
	}

	if err := s.issueCode(ctx, addr, flowSignup); err != nil {
		return "", err
	}
	return codeSentMessage(addr), nil
}

// RequestLoginCode mails a code to an existing email-method account.
// It never creates accounts.
func (s *AuthService) RequestLoginCode(ctx context.Context, emailAddr string) (string, error) {
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return "", err
	}

	account, err := s.accounts.GetByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.NotFoundMessage("No account found with this email, please sign up first")
		}
		return "", fmt.Errorf("service/auth: looking up account: %w", err)
	}
	if account.AuthMethod != model.AuthMethodEmail {
		return "", errWrongMethod(account.AuthMethod)
	}

	if err := s.issueCode(ctx, addr, flowLogin); err != nil {
		return "", err
	}
	return codeSentMessage(addr), nil
}

// ResendCode issues a new code for any syntactically valid email. The
// previous code, if any, stops working.
func (s *AuthService) ResendCode(ctx context.Context, emailAddr string) (string, error) {
	addr, err := normalizeEmail(emailAddr)
	if err != nil {
		return "", err
	}

	if err := s.issueCode(ctx, addr, flowResend); err != nil {
		return "", err
	}
	return codeSentMessage(addr), nil
}

// VerifyCode checks a submitted code and signs the holder in, creating the
// account on first verification.
//
// ORDER OF CHECKS:
//  1. A live code exists             → else CodeNotFound
//  2. It matches                     → else InvalidCode (code stays live)
//  3. Account resolution             → Conflict for google accounts;
//     new emails need name + dob     → else Validation (code stays live)
//  4. Consume the code atomically    → lost the race: CodeNotFound
//  5. Create the account if new, issue the token
//
// Consumption comes after every check that can fail on the caller's input,
// so a typo in the dob does not burn the code.
func (s *AuthService) VerifyCode(ctx context.Context, in VerifyCodeInput) (*AuthResult, error) {
	addr, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	code, err := validateCode(in.Code)
	if err != nil {
		return nil, err
	}

	// === 1-2. LOOK UP AND COMPARE ===
	stored, err := s.codes.Get(ctx, addr)
	if err != nil {
		if errors.Is(err, codestore.ErrNotFound) {
			metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
			return nil, apperror.CodeNotFound()
		}
		return nil, s.verifyFailed(ctx, fmt.Errorf("service/auth: reading code: %w", err))
	}

	if err := s.hasher.Verify(stored, code); err != nil {
		if errors.Is(err, auth.ErrCodeMismatch) {
			metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			s.logger.InfoContext(ctx, "code mismatch", slog.String("email", addr))
			return nil, apperror.InvalidCode()
		}
		return nil, s.verifyFailed(ctx, fmt.Errorf("service/auth: comparing code: %w", err))
	}

	// === 3. RESOLVE THE ACCOUNT ===
	account, err := s.accounts.GetByEmail(ctx, addr)
	var pending *model.Account
	switch {
	case err == nil:
		if account.AuthMethod != model.AuthMethodEmail {
			metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
			return nil, errWrongMethod(account.AuthMethod)
		}
	case errors.Is(err, apperror.ErrNotFound):
		pending, err = s.newEmailAccount(addr, in.Name, in.DateOfBirth)
		if err != nil {
			return nil, err
		}
	default:
		return nil, s.verifyFailed(ctx, fmt.Errorf("service/auth: looking up account: %w", err))
	}

	// === 4. CONSUME ===
	consumed, err := s.codes.CompareAndDelete(ctx, addr, stored)
	if err != nil {
		return nil, s.verifyFailed(ctx, fmt.Errorf("service/auth: consuming code: %w", err))
	}
	if !consumed {
		// Verified concurrently, replaced by a resend, or expired since step 1.
		metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return nil, apperror.CodeNotFound()
	}

	// === 5. MATERIALIZE AND SIGN IN ===
	if pending != nil {
		if err := s.createAccount(ctx, pending); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeConflict).Inc()
			}
			return nil, err
		}
		account = pending
	}

	result, err := s.signIn(account)
	if err != nil {
		return nil, s.verifyFailed(ctx, err)
	}

	metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "code verified",
		slog.String("account_id", account.ID),
		slog.Bool("new_account", pending != nil),
	)
	return result, nil
}

// newEmailAccount validates the signup fields a first verification must
// carry and returns the unsaved account.
func (s *AuthService) newEmailAccount(addr, name, dob string) (*model.Account, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(dob) == "" {
		return nil, apperror.ValidationFailed("name",
			"Name and date of birth are required to create a new account")
	}
	n, err := validateName(name)
	if err != nil {
		return nil, err
	}
	d, err := parseDateOfBirth(dob, s.now())
	if err != nil {
		return nil, err
	}
	return &model.Account{
		Email:       addr,
		Name:        n,
		DateOfBirth: &d,
		AuthMethod:  model.AuthMethodEmail,
	}, nil
}

// issueCode generates, stores, and mails a code for addr. The store write
// happens first: a delivery failure leaves the code live, and a retry via
// resend replaces it.
func (s *AuthService) issueCode(ctx context.Context, addr, flow string) error {
	code, err := auth.GenerateCode()
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}

	if err := s.codes.Put(ctx, addr, hash, s.codeTTL); err != nil {
		s.logger.ErrorContext(ctx, "failed to store code",
			slog.String("flow", flow),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/auth: storing code: %w", err)
	}
	metrics.CodesIssuedTotal.WithLabelValues(flow).Inc()

	if err := s.sender.SendCode(ctx, addr, code); err != nil {
		s.logger.ErrorContext(ctx, "failed to send code",
			slog.String("flow", flow),
			slog.String("email", addr),
			slog.String("error", err.Error()),
		)
		return apperror.Delivery("Failed to send OTP email, please try again", err)
	}

	s.logger.InfoContext(ctx, "code issued", slog.String("flow", flow), slog.String("email", addr))
	return nil
}

func (s *AuthService) verifyFailed(ctx context.Context, err error) error {
	metrics.CodeVerificationsTotal.WithLabelValues(metrics.OutcomeError).Inc()
	s.logger.ErrorContext(ctx, "code verification failed", slog.String("error", err.Error()))
	return err
}

// =========================================================================
// GOOGLE FLOWS
// =========================================================================

// GoogleEnabled reports whether a Google provider is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

// GoogleAuthURL returns the consent URL for the redirect flow.
func (s *AuthService) GoogleAuthURL() (string, error) {
	if s.google == nil {
		return "", errGoogleDisabled()
	}
	return s.google.AuthURL(), nil
}

// GoogleTokenSignIn signs in with an ID token obtained by the frontend.
func (s *AuthService) GoogleTokenSignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, errGoogleDisabled()
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, apperror.ValidationFailed("idToken", "Google ID token is required")
	}
	return s.googleSignIn(ctx, idToken, flowGoogleToken)
}

// GoogleCallback completes the redirect flow: it exchanges the authorization
// code for an ID token and then signs in exactly like GoogleTokenSignIn.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	if s.google == nil {
		return nil, errGoogleDisabled()
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "Authorization code is required")
	}

	raw, err := s.google.ExchangeIDToken(ctx, code)
	if err != nil {
		metrics.GoogleSignInsTotal.WithLabelValues(flowGoogleRedirect, metrics.OutcomeError).Inc()
		s.logger.ErrorContext(ctx, "google code exchange failed", slog.String("error", err.Error()))
		return nil, apperror.Upstream("Google sign-in failed, please try again", err)
	}

	return s.googleSignIn(ctx, raw, flowGoogleRedirect)
}

func (s *AuthService) googleSignIn(ctx context.Context, idToken, flow string) (*AuthResult, error) {
	identity, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		if errors.Is(err, auth.ErrGoogleUnavailable) {
			metrics.GoogleSignInsTotal.WithLabelValues(flow, metrics.OutcomeError).Inc()
			s.logger.ErrorContext(ctx, "google verification unavailable", slog.String("error", err.Error()))
			return nil, apperror.Upstream("Google sign-in is temporarily unavailable", err)
		}
		metrics.GoogleSignInsTotal.WithLabelValues(flow, metrics.OutcomeInvalid).Inc()
		s.logger.InfoContext(ctx, "google token rejected", slog.String("error", err.Error()))
		return nil, apperror.ValidationFailed("idToken", "Invalid Google token")
	}

	addr, err := normalizeEmail(identity.Email)
	if err != nil {
		metrics.GoogleSignInsTotal.WithLabelValues(flow, metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	account, err := s.resolveGoogleAccount(ctx, addr, identity.Name)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, apperror.ErrConflict) {
			outcome = metrics.OutcomeConflict
		}
		metrics.GoogleSignInsTotal.WithLabelValues(flow, outcome).Inc()
		return nil, err
	}

	result, err := s.signIn(account)
	if err != nil {
		metrics.GoogleSignInsTotal.WithLabelValues(flow, metrics.OutcomeError).Inc()
		return nil, err
	}

	metrics.GoogleSignInsTotal.WithLabelValues(flow, metrics.OutcomeSuccess).Inc()
	s.logger.InfoContext(ctx, "google sign-in", slog.String("flow", flow), slog.String("account_id", account.ID))
	return result, nil
}

// resolveGoogleAccount returns the google-method account for addr, creating
// it on first sign-in. Google accounts carry no date of birth.
//
// Two first sign-ins racing on one email both reach Create; the loser gets
// Conflict from the UNIQUE index, re-reads, and signs in to the winner's
// account.
func (s *AuthService) resolveGoogleAccount(ctx context.Context, addr, name string) (*model.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, addr)
	if err == nil {
		if account.AuthMethod != model.AuthMethodGoogle {
			return nil, errWrongMethod(account.AuthMethod)
		}
		return account, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up account: %w", err)
	}

	account = &model.Account{
		Email:      addr,
		Name:       truncateRunes(strings.TrimSpace(name), MaxNameLength),
		AuthMethod: model.AuthMethodGoogle,
	}
	err = s.createAccount(ctx, account)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return nil, err
	}

	existing, lookupErr := s.accounts.GetByEmail(ctx, addr)
	if lookupErr != nil {
		return nil, err
	}
	if existing.AuthMethod != model.AuthMethodGoogle {
		return nil, errWrongMethod(existing.AuthMethod)
	}
	return existing, nil
}

// =========================================================================
// SESSIONS
// =========================================================================

// ValidateSession checks a session token and returns the identity it was
// issued for. No store is consulted.
func (s *AuthService) ValidateSession(token string) (auth.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, apperror.Unauthorized("No token provided")
	}
	id, err := s.tokens.Validate(token)
	if err != nil {
		return auth.Identity{}, apperror.Forbidden("Invalid or expired token")
	}
	return id, nil
}

// GetAccount returns the account record of a session holder.
func (s *AuthService) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *AuthService) signIn(account *model.Account) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{ID: account.ID, Email: account.Email})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return &AuthResult{Account: account, Token: token}, nil
}

// createAccount persists a new account. A UNIQUE violation means another
// request created the same email first.
func (s *AuthService) createAccount(ctx context.Context, account *model.Account) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.ConflictMessage("An account with this email already exists")
		}
		s.logger.ErrorContext(ctx, "failed to create account",
			slog.String("method", string(account.AuthMethod)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/auth: creating account: %w", err)
	}

	metrics.AccountsCreatedTotal.WithLabelValues(string(account.AuthMethod)).Inc()
	s.logger.InfoContext(ctx, "account created",
		slog.String("account_id", account.ID),
		slog.String("method", string(account.AuthMethod)),
	)
	return nil
}

func codeSentMessage(addr string) string {
	return fmt.Sprintf("OTP sent successfully, please check your email %s", addr)
}

// errWrongMethod is the Conflict for an email registered under the other
// method. actual is the method the account really uses.
func errWrongMethod(actual model.AuthMethod) error {
	if actual == model.AuthMethodGoogle {
		return apperror.ConflictMessage("This email is registered with Google sign-in, please continue with Google")
	}
	return apperror.ConflictMessage("This email is registered with email sign-in, please log in with a one-time code")
}

func errGoogleDisabled() error {
	return apperror.Upstream("Google sign-in is not configured", nil)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
