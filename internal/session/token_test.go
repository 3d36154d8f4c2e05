package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestNormalizeBearer(t *testing.T) {
	assert.Equal(t, "Bearer abc", NormalizeBearer("abc"))
	assert.Equal(t, "Bearer abc", NormalizeBearer("Bearer abc"))
	assert.Equal(t, "bearer abc", NormalizeBearer(" bearer abc "))
	assert.Empty(t, NormalizeBearer("  "))
}

func TestTokenKeyIgnoresScheme(t *testing.T) {
	assert.Equal(t, TokenKey("abc"), TokenKey("Bearer abc"))
	assert.Equal(t, TokenKey("bearer abc"), TokenKey("Bearer abc"))
	assert.NotEqual(t, TokenKey("abc"), TokenKey("abd"))
	assert.Len(t, TokenKey("abc"), 64)
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := signedToken(t, jwt.MapClaims{"sub": "alice", "exp": now.Add(-time.Minute).Unix()})
	future := signedToken(t, jwt.MapClaims{"sub": "alice", "exp": now.Add(time.Hour).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "alice"})

	assert.True(t, expired("Bearer "+past, now))
	assert.False(t, expired("Bearer "+future, now))
	assert.False(t, expired(noExp, now))
	assert.False(t, expired("opaque-token", now))
}

func TestSealRoundTrip(t *testing.T) {
	s, err := NewSealer("secret")
	require.NoError(t, err)

	sealed, err := s.Seal("Bearer abc")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "abc")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", plain)

	other, err := NewSealer("another")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.Error(t, err)

	_, err = s.Open([]byte("short"))
	assert.Error(t, err)

	_, err = NewSealer("")
	assert.Error(t, err)
}
