// ABOUTME: Tests for JWT verification and generation
// ABOUTME: Covers round trips, expiry, wrong secrets, and signing method checks

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier(nil)
	require.Error(t, err)
}

func TestVerify_RoundTrip(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := v.Generate("client-1", time.Hour)
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", subject)
}

func TestVerify_Expired(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"))
	require.NoError(t, err)

	token, err := v.Generate("client-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	signer, err := NewVerifier([]byte("secret-a"))
	require.NoError(t, err)
	verifier, err := NewVerifier([]byte("secret-b"))
	require.NoError(t, err)

	token, err := signer.Generate("client-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v, err := NewVerifier(secret)
	require.NoError(t, err)

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerify_RejectsUnsignedToken(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"))
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": "client-1"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	v, err := NewVerifier([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
