package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, sessionID, err := m.Issue("dana@example.com", "Dana Levi")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", claims.Email)
	assert.Equal(t, "Dana Levi", claims.Name)
	assert.Equal(t, sessionID, claims.SessionID)
}

func TestTokenUniqueSessionIDs(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	_, first, err := m.Issue("dana@example.com", "Dana")
	require.NoError(t, err)
	_, second, err := m.Issue("dana@example.com", "Dana")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenExpiry(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, _, err := m.Issue("dana@example.com", "Dana")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, _, err := issuer.Issue("dana@example.com", "Dana")
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	_, err := m.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
