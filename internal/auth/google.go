package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	// DefaultGoogleTimeout bounds every call we make to Google.
	DefaultGoogleTimeout = 10 * time.Second
)

// Google signs ID tokens with either form of its issuer.
var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var (
	// ErrInvalidIDToken covers every reason an ID token is rejected: bad
	// signature, wrong audience or issuer, expired, or missing claims.
	ErrInvalidIDToken = errors.New("auth: invalid Google ID token")
	// ErrGoogleUnavailable means we could not reach Google (key fetch or
	// code exchange), or Google answered without an ID token.
	ErrGoogleUnavailable = errors.New("auth: Google unavailable")
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject string // Google's stable account id ("sub")
	Email   string
	Name    string
}

// GoogleProvider verifies Google ID tokens and runs the Authorization Code
// flow against Google.
//
// TWO WAYS IN:
//   - Token-based: the frontend runs Google's JS SDK, receives an ID token,
//     and posts it to us. We only verify it.
//   - Redirect-based: we send the browser to Google (AuthURL), Google calls
//     back with a code, and we exchange the code for tokens server-to-server
//     (ExchangeIDToken). The ID token from the exchange is then verified the
//     same way.
//
// Signing keys come from Google's JWKS endpoint through a jwk.Cache, which
// refreshes them in the background.
type GoogleProvider struct {
	config  *oauth2.Config
	keys    func(ctx context.Context) (jwk.Set, error)
	timeout time.Duration
}

// NewGoogleProvider creates a GoogleProvider with the given OAuth client.
// ctx bounds the lifetime of the key cache's background refresher.
//
// Scopes we request:
//   - "openid"  so the token response carries an id_token
//   - "email"   for the email and email_verified claims
//   - "profile" for the name claim
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string, timeout time.Duration) (*GoogleProvider, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(googleJWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("auth: registering Google JWKS: %w", err)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}

	return newGoogleProvider(cfg, func(ctx context.Context) (jwk.Set, error) {
		return cache.Get(ctx, googleJWKSURL)
	}, timeout), nil
}

func newGoogleProvider(cfg *oauth2.Config, keys func(context.Context) (jwk.Set, error), timeout time.Duration) *GoogleProvider {
	if timeout <= 0 {
		timeout = DefaultGoogleTimeout
	}
	return &GoogleProvider{config: cfg, keys: keys, timeout: timeout}
}

// AuthURL returns the Google consent URL for the redirect flow.
//
// access_type=offline with prompt=consent asks Google for a refresh token on
// every consent. The state parameter is left empty, so the URL is the same
// for every caller.
func (p *GoogleProvider) AuthURL() string {
	return p.config.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeIDToken trades an authorization code for tokens and returns the raw
// ID token from the response. It does not verify it; pass the result to
// VerifyIDToken.
func (p *GoogleProvider) ExchangeIDToken(ctx context.Context, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: exchanging code: %v", ErrGoogleUnavailable, err)
	}

	// The ID token is not part of the OAuth2 core response; it rides in the
	// extra fields of the token JSON.
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: token response has no id_token", ErrGoogleUnavailable)
	}

	return raw, nil
}

// VerifyIDToken checks a Google ID token and returns the identity it asserts.
//
// CHECKS:
//   - Signature against Google's current key set (kid must match)
//   - aud equals our client id
//   - iss is one of Google's two issuer spellings
//   - exp present and in the future
//   - email present with email_verified == true, name present
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, raw string) (*GoogleIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	set, err := p.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching signing keys: %v", ErrGoogleUnavailable, err)
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithAudience(p.config.ClientID),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	if !validGoogleIssuer(tok.Issuer()) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIDToken, tok.Issuer())
	}

	email := stringClaim(tok, "email")
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidIDToken)
	}
	if !boolClaim(tok, "email_verified") {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidIDToken)
	}
	name := stringClaim(tok, "name")
	if name == "" {
		return nil, fmt.Errorf("%w: missing name claim", ErrInvalidIDToken)
	}

	return &GoogleIdentity{
		Subject: tok.Subject(),
		Email:   email,
		Name:    name,
	}, nil
}

func validGoogleIssuer(iss string) bool {
	for _, want := range googleIssuers {
		if iss == want {
			return true
		}
	}
	return false
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// boolClaim reads a boolean claim. Google has historically sent
// email_verified both as a JSON bool and as the string "true".
func boolClaim(tok jwt.Token, name string) bool {
	v, ok := tok.Get(name)
	if !ok {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
