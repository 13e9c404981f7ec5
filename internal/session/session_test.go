package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, userID, nickname string, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:   userID,
		Nickname: nickname,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestSetCredentialsReadsClaims(t *testing.T) {
	sess := New()
	token := signedToken(t, "42", "minsu", time.Now().Add(time.Hour))

	require.NoError(t, sess.SetCredentials(Credentials{Token: token}))

	assert.True(t, sess.Valid())
	assert.Equal(t, "42", sess.CurrentUserID())
	assert.Equal(t, "minsu", sess.Nickname())

	got, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestExplicitIdentityWinsOverClaims(t *testing.T) {
	sess := New()
	token := signedToken(t, "42", "minsu", time.Now().Add(time.Hour))

	require.NoError(t, sess.SetCredentials(Credentials{Token: token, UserID: "99", Nickname: "other"}))
	assert.Equal(t, "99", sess.CurrentUserID())
	assert.Equal(t, "other", sess.Nickname())
}

func TestOpaqueTokenIsAccepted(t *testing.T) {
	sess := New()
	require.NoError(t, sess.SetCredentials(Credentials{Token: "not-a-jwt", UserID: "7"}))

	assert.True(t, sess.Valid())
	assert.Equal(t, "7", sess.CurrentUserID())
}

func TestExpiredTokenIsInvalid(t *testing.T) {
	sess := New()
	token := signedToken(t, "42", "minsu", time.Now().Add(-time.Minute))
	require.NoError(t, sess.SetCredentials(Credentials{Token: token}))

	assert.False(t, sess.Valid())
	_, err := sess.Token()
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestEmptySession(t *testing.T) {
	sess := New()

	assert.False(t, sess.Valid())
	assert.Equal(t, "", sess.CurrentUserID())

	_, err := sess.Token()
	assert.ErrorIs(t, err, ErrNoSession)

	assert.ErrorIs(t, sess.SetCredentials(Credentials{}), ErrNoSession)
}

type stubExchanger struct {
	creds Credentials
	err   error
	code  string
}

func (s *stubExchanger) ExchangeKakaoCode(_ context.Context, code string) (Credentials, error) {
	s.code = code
	return s.creds, s.err
}

func TestLoginExchangesCode(t *testing.T) {
	sess := New()
	ex := &stubExchanger{creds: Credentials{Token: "tok", UserID: "42", Nickname: "minsu"}}

	require.NoError(t, sess.Login(context.Background(), ex, "auth-code-1"))
	assert.Equal(t, "auth-code-1", ex.code)
	assert.Equal(t, "42", sess.CurrentUserID())
}

func TestLoginPropagatesExchangeFailure(t *testing.T) {
	sess := New()
	ex := &stubExchanger{err: errors.New("kakao rejected the code")}

	err := sess.Login(context.Background(), ex, "bad-code")
	require.Error(t, err)
	assert.False(t, sess.Valid())
}

func TestClear(t *testing.T) {
	sess := New()
	require.NoError(t, sess.SetCredentials(Credentials{Token: "tok", UserID: "42"}))

	sess.Clear()
	assert.False(t, sess.Valid())
	assert.Equal(t, "", sess.CurrentUserID())
}
