package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", 0)
	assert.Error(t, err, "secrets shorter than 16 chars must be rejected")

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, ts.TTL())

	ts, err = NewTokenService("this-is-16-chars", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ts.TTL())
}

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "header.payload.signature")

	other, err := ts.Generate("user-456")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123")
	require.NoError(t, err)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc-123", got)
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	valid, err := ts.Generate("user-123")
	require.NoError(t, err)

	expired, err := ts.GenerateWithDuration("user-123", -time.Second)
	require.NoError(t, err)

	otherService, err := NewTokenService("wrong-secret-32-chars-long!!!!!!", 0)
	require.NoError(t, err)
	wrongSecret, err := otherService.Generate("user-123")
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	wrongIssuer, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	noSubject, err := ts.GenerateWithDuration("", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"tampered signature", valid[:len(valid)-3] + "xxx"},
		{"signed with another secret", wrongSecret},
		{"issued by another app", wrongIssuer},
		{"no subject", noSubject},
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}
