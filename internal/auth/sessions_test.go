package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	req := require.New(t)
	s := NewSessions([]byte("secret"), time.Hour)
	userID := uuid.New()

	token, err := s.Issue(userID)
	req.NoError(err)

	got, err := s.Validate(token)
	req.NoError(err)
	req.Equal(userID, got)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	issuer := NewSessions([]byte("secret"), time.Hour)
	verifier := NewSessions([]byte("other"), time.Hour)

	token, err := issuer.Issue(uuid.New())
	req.NoError(err)

	_, err = verifier.Validate(token)
	req.ErrorIs(err, ErrInvalidSession)
}

func TestValidateRejectsExpired(t *testing.T) {
	req := require.New(t)
	s := NewSessions([]byte("secret"), -time.Minute)

	token, err := s.Issue(uuid.New())
	req.NoError(err)

	_, err = s.Validate(token)
	req.ErrorIs(err, ErrExpiredSession)
}

func TestValidateRejectsGarbage(t *testing.T) {
	s := NewSessions([]byte("secret"), time.Hour)
	_, err := s.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestPasswordHashAndCheck(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse")
	req.NoError(err)
	req.NotEqual("correct horse", hash)

	req.True(CheckPassword("correct horse", hash))
	req.False(CheckPassword("wrong", hash))
}

func TestPasswordTooLong(t *testing.T) {
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	_, err := HashPassword(string(long))
	require.ErrorIs(t, err, ErrPasswordTooLong)
}
