package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingHeader = errors.New("missing authorization header")
	ErrBadHeader     = errors.New("invalid authorization header format")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotConfigured = errors.New("authentication not configured")
)

// Identity is the authenticated caller. Tenant scopes jobs and accelerator
// access.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Tenant string
}

// Authenticator tries the JWKS verifier first and falls back to HMAC
// tokens when a secret is set. Either may be absent.
type Authenticator struct {
	verifier TokenVerifier
	secret   string
}

func NewAuthenticator(verifier TokenVerifier, secret string) *Authenticator {
	return &Authenticator{verifier: verifier, secret: secret}
}

// Configured reports whether any verification method is available
func (a *Authenticator) Configured() bool {
	return a.verifier != nil || a.secret != ""
}

// FromHeader authenticates an Authorization header value
func (a *Authenticator) FromHeader(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return nil, ErrBadHeader
	}
	return a.Token(token)
}

// Token authenticates a raw bearer token
func (a *Authenticator) Token(token string) (*Identity, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}
	if a.verifier != nil {
		if claims, err := a.verifier.Validate(token); err == nil {
			return claims.Identity(), nil
		}
	}
	if a.secret != "" {
		if claims, err := ValidateLegacyToken(token, a.secret); err == nil {
			return claims.Identity(), nil
		}
	}
	return nil, ErrInvalidToken
}
