package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims("usr_1", "volunteer", "Avery", "avery@example.com", "jti-1", time.Hour))
	require.NoError(t, err)

	claims, err := ParseToken(secret, issued)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, "volunteer", claims.Role)
	assert.Equal(t, "Avery", claims.Name)
	assert.Equal(t, "avery@example.com", claims.Email)
	assert.Equal(t, "jti-1", claims.ID)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, NewClaims("usr_1", "user", "Avery", "a@example.com", "jti-1", -time.Minute))
	require.NoError(t, err)

	_, err = ParseToken(secret, issued)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), NewClaims("usr_1", "user", "Avery", "a@example.com", "jti-1", time.Hour))
	require.NoError(t, err)

	_, err = ParseToken([]byte("other"), issued)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRequiresExpiry(t *testing.T) {
	claims := Claims{UserID: "usr_1", RegisteredClaims: jwt.RegisteredClaims{ID: "jti-1"}}
	issued, err := IssueToken([]byte("secret"), claims)
	require.NoError(t, err)

	_, err = ParseToken([]byte("secret"), issued)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken([]byte("secret"), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
