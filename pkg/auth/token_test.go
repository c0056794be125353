package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Sign(Claims{
		UserID: "student-1",
		Role:   "STUDENT",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, "STUDENT", claims.Role)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("other").Sign(Claims{UserID: "u", Role: "ADMIN"})
	require.NoError(t, err)

	_, err = NewVerifier("secret").Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerifierRejectsExpiredAndIncomplete(t *testing.T) {
	v := NewVerifier("secret")
	expired, err := v.Sign(Claims{
		UserID: "u",
		Role:   "ADMIN",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noRole, err := v.Sign(Claims{UserID: "u"})
	require.NoError(t, err)
	_, err = v.Verify(noRole)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
