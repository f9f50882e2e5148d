package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	t.Run("returns configured user", func(t *testing.T) {
		provider := Static{User: User{ID: "ana", Name: "Ana"}}
		user, err := provider.CurrentUser()
		require.NoError(t, err)
		assert.Equal(t, "ana", user.ID)
		assert.Equal(t, "Ana", user.Name)
	})

	t.Run("empty id reports ErrNoUser", func(t *testing.T) {
		_, err := Static{}.CurrentUser()
		assert.ErrorIs(t, err, ErrNoUser)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueToken(User{ID: "ana", Name: "Ana"}, secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	provider, err := FromToken(token, secret)
	require.NoError(t, err)

	user, err := provider.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "ana", user.ID)
	assert.Equal(t, "Ana", user.Name)
}

func TestFromToken(t *testing.T) {
	secret := []byte("test-secret")

	t.Run("rejects wrong secret", func(t *testing.T) {
		token, err := IssueToken(User{ID: "ana", Name: "Ana"}, secret)
		require.NoError(t, err)

		_, err = FromToken(token, []byte("other-secret"))
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := FromToken("not.a.token", secret)
		assert.Error(t, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		claims := tokenClaims{
			Name: "Ana",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ana",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)

		_, err = FromToken(token, secret)
		assert.Error(t, err)
	})

	t.Run("rejects token without subject", func(t *testing.T) {
		token, err := IssueToken(User{Name: "Nameless"}, secret)
		require.NoError(t, err)

		_, err = FromToken(token, secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no subject")
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		claims := tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "ana"},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = FromToken(token, secret)
		assert.Error(t, err)
	})

	t.Run("name falls back to subject", func(t *testing.T) {
		token, err := IssueToken(User{ID: "ana"}, secret)
		require.NoError(t, err)

		provider, err := FromToken(token, secret)
		require.NoError(t, err)

		user, err := provider.CurrentUser()
		require.NoError(t, err)
		assert.Equal(t, "ana", user.Name)
	})
}
