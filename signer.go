package bridge

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes. Access tokens are short-lived derived credentials;
// refresh tokens span a week.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims are the claims carried by a minted access token.
type AccessClaims struct {
	Email        string                 `json:"email,omitempty"`
	Role         string                 `json:"role,omitempty"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims carried by a minted refresh token.
type RefreshClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenSigner verifies parent-application tokens and mints AppBoost session
// tokens. Both sides use HS256 shared secrets; only the secrets differ.
type TokenSigner struct {
	parentSecret  []byte
	sessionSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenSigner creates a new TokenSigner instance.
func NewTokenSigner(parentSecret, sessionSecret, issuer string, accessTTL, refreshTTL time.Duration) *TokenSigner {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenSigner{
		parentSecret:  []byte(parentSecret),
		sessionSecret: []byte(sessionSecret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// AccessTokenTTL returns the configured access-token lifetime.
func (s *TokenSigner) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// VerifyParentToken validates an externally issued parent token and returns
// its parentId claim.
func (s *TokenSigner) VerifyParentToken(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.parentSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parent token verification failed: %w", err)
	}

	parentID, _ := claims["parentId"].(string)
	if parentID == "" {
		return "", fmt.Errorf("parent token is missing the parentId claim")
	}
	return parentID, nil
}

// MintAccessToken creates a signed access token for the given profile id.
func (s *TokenSigner) MintAccessToken(profileID, email string) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Email: email,
		Role:  "authenticated",
		AppMetadata: map[string]interface{}{
			"provider": "parent",
		},
		UserMetadata: map[string]interface{}{},
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"authenticated"},
			Issuer:    s.issuer,
			Subject:   profileID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionSecret)
}

// MintRefreshToken creates a signed refresh token for the given profile id.
func (s *TokenSigner) MintRefreshToken(profileID string) (string, error) {
	now := s.now()
	claims := RefreshClaims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.sessionSecret)
}

// VerifyAccessToken validates a minted access token and returns its claims.
func (s *TokenSigner) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.sessionSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("access token verification failed: %w", err)
	}
	return claims, nil
}

// VerifyRefreshToken validates a minted refresh token and returns its subject.
func (s *TokenSigner) VerifyRefreshToken(tokenString string) (string, error) {
	claims := &RefreshClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.sessionSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("refresh token verification failed: %w", err)
	}
	if claims.Type != "refresh" {
		return "", fmt.Errorf("token is not a refresh token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("refresh token is missing a subject")
	}
	return claims.Subject, nil
}
