package bridge

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testParentSecret  = "parent-secret-for-tests"
	testSessionSecret = "session-secret-for-tests"
	testIssuer        = "https://bridge.test"
)

func newTestSigner() *TokenSigner {
	return NewTokenSigner(testParentSecret, testSessionSecret, testIssuer, DefaultAccessTokenTTL, DefaultRefreshTokenTTL)
}

func mintParentToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyParentToken(t *testing.T) {
	signer := newTestSigner()

	token := mintParentToken(t, testParentSecret, jwt.MapClaims{
		"parentId": "parent-user-42",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	parentID, err := signer.VerifyParentToken(token)
	require.NoError(t, err)
	assert.Equal(t, "parent-user-42", parentID)
}

func TestVerifyParentToken_WrongSecret(t *testing.T) {
	signer := newTestSigner()

	token := mintParentToken(t, "some-other-secret", jwt.MapClaims{
		"parentId": "parent-user-42",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	_, err := signer.VerifyParentToken(token)
	assert.Error(t, err)
}

func TestVerifyParentToken_MissingParentID(t *testing.T) {
	signer := newTestSigner()

	token := mintParentToken(t, testParentSecret, jwt.MapClaims{
		"sub": "parent-user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := signer.VerifyParentToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parentId")
}

func TestVerifyParentToken_Expired(t *testing.T) {
	signer := newTestSigner()

	token := mintParentToken(t, testParentSecret, jwt.MapClaims{
		"parentId": "parent-user-42",
		"exp":      time.Now().Add(-time.Minute).Unix(),
	})

	_, err := signer.VerifyParentToken(token)
	assert.Error(t, err)
}

func TestMintAccessToken_Lifetime(t *testing.T) {
	signer := newTestSigner()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return fixed }

	token, err := signer.MintAccessToken("profile-1", "user@example.com")
	require.NoError(t, err)

	claims := &AccessClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSessionSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	require.NoError(t, err)

	assert.Equal(t, int64(3600), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
	assert.Equal(t, "profile-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "authenticated", claims.Role)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Contains(t, claims.Audience, "authenticated")
	assert.Equal(t, "parent", claims.AppMetadata["provider"])
}

func TestMintRefreshToken_Lifetime(t *testing.T) {
	signer := newTestSigner()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return fixed }

	token, err := signer.MintRefreshToken("profile-1")
	require.NoError(t, err)

	claims := &RefreshClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(testSessionSecret), nil
	}, jwt.WithTimeFunc(func() time.Time { return fixed }))
	require.NoError(t, err)

	assert.Equal(t, int64(604800), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
	assert.Equal(t, "refresh", claims.Type)
	assert.Equal(t, "profile-1", claims.Subject)
}

func TestVerifyAccessToken_RoundTrip(t *testing.T) {
	signer := newTestSigner()

	token, err := signer.MintAccessToken("profile-1", "user@example.com")
	require.NoError(t, err)

	claims, err := signer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "profile-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
}

func TestVerifyAccessToken_Tampered(t *testing.T) {
	signer := newTestSigner()

	token, err := signer.MintAccessToken("profile-1", "user@example.com")
	require.NoError(t, err)

	_, err = signer.VerifyAccessToken(token + "AAAA")
	assert.Error(t, err)
}

func TestVerifyRefreshToken_RejectsAccessToken(t *testing.T) {
	signer := newTestSigner()

	accessToken, err := signer.MintAccessToken("profile-1", "user@example.com")
	require.NoError(t, err)

	_, err = signer.VerifyRefreshToken(accessToken)
	assert.Error(t, err)
}

func TestVerifyRefreshToken_RoundTrip(t *testing.T) {
	signer := newTestSigner()

	token, err := signer.MintRefreshToken("profile-1")
	require.NoError(t, err)

	subject, err := signer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "profile-1", subject)
}
