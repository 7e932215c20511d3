package auth

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

func testUser() *store.User {
	return &store.User{ID: uuid.New(), Name: "Ada", Email: "ada@example.com"}
}

func TestIssueAndParse(t *testing.T) {
	m, err := NewTokenManager("secret", "edumate", 7*24*time.Hour)
	require.NoError(t, err)
	u := testUser()

	token, err := m.Issue(u)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, "edumate", claims.Issuer)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.InDelta(t, time.Now().Add(7*24*time.Hour).Unix(), claims.ExpiresAt, 5)
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "edumate", time.Hour)
	assert.Error(t, err)
}

func TestParseRejects(t *testing.T) {
	m, err := NewTokenManager("secret", "edumate", time.Hour)
	require.NoError(t, err)
	u := testUser()

	t.Run("expired", func(t *testing.T) {
		m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		defer func() { m.now = time.Now }()
		token, err := m.Issue(u)
		require.NoError(t, err)
		m.now = time.Now

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenManager("other", "edumate", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue(u)
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenManager("secret", "someone-else", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue(u)
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := &Claims{UserID: u.ID, StandardClaims: jwt.StandardClaims{Issuer: "edumate"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = m.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "hunter22"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter23"), ErrPasswordMismatch)

	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
