package helper

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestAuth() Auth {
	return SetupAuth(testSecret, 15*time.Minute, 7*24*time.Hour)
}

func TestRefreshKeepsIdentity(t *testing.T) {
	a := newTestAuth()

	refresh, err := a.GenerateRefreshToken(7, "jane.doe@student.uts.edu.au", "student")
	require.NoError(t, err)

	access, err := a.Refresh(refresh)
	require.NoError(t, err)

	user, err := a.VerifyToken(access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(7), user.UserID)
	assert.Equal(t, "jane.doe@student.uts.edu.au", user.Email)
	assert.Equal(t, "student", user.Role)
	assert.Equal(t, TokenTypeAccess, user.Type)
}

func TestAccessTokenCannotRefresh(t *testing.T) {
	a := newTestAuth()

	access, err := a.GenerateAccessToken(7, "jane.doe@uts.edu.au", "supervisor")
	require.NoError(t, err)

	_, err = a.Refresh(access)
	assert.True(t, errors.Is(err, errors.Unauthorized))
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	a := newTestAuth()

	refresh, err := a.GenerateRefreshToken(7, "jane.doe@uts.edu.au", "supervisor")
	require.NoError(t, err)

	user, err := a.VerifyToken(refresh, TokenTypeAccess)
	assert.True(t, errors.Is(err, errors.Unauthorized))
	assert.Zero(t, user)
}

func TestVerifyTokenAcceptsBearerPrefix(t *testing.T) {
	a := newTestAuth()

	access, err := a.GenerateAccessToken(3, "a.b@uts.edu.au", "supervisor")
	require.NoError(t, err)

	user, err := a.VerifyToken("Bearer "+access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(3), user.UserID)
}

func TestVerifyTokenRejects(t *testing.T) {
	a := newTestAuth()

	expired, err := SetupAuth(testSecret, -time.Minute, time.Hour).GenerateAccessToken(1, "a.b@uts.edu.au", "student")
	require.NoError(t, err)

	forged, err := SetupAuth("other-secret", time.Minute, time.Hour).GenerateAccessToken(1, "a.b@uts.edu.au", "student")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: 1,
		Role:   "student",
		Type:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a.b@uts.edu.au",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		Role:             "student",
		Type:             TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a.b@uts.edu.au"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"expired":     expired,
		"wrong key":   forged,
		"alg none":    noneAlg,
		"no expiry":   noExpiry,
		"bearer only": "Bearer ",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			user, err := a.VerifyToken(token, TokenTypeAccess)
			assert.True(t, errors.Is(err, errors.Unauthorized), "got %v", err)
			assert.Zero(t, user)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	a := newTestAuth()

	hashed, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hashed)

	assert.NoError(t, a.VerifyPassword("secret1", hashed))
	assert.True(t, errors.Is(a.VerifyPassword("wrong", hashed), errors.Unauthorized))
}
