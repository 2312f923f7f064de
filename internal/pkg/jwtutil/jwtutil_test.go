package jwtutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken("s3cret", time.Hour, id, "alice")
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, id.String(), claims.Subject)
}

func TestRejects(t *testing.T) {
	id := uuid.New()

	token, err := GenerateToken("s3cret", time.Hour, id, "alice")
	require.NoError(t, err)
	_, err = ParseToken("other", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("s3cret", -time.Minute, id, "alice")
	require.NoError(t, err)
	_, err = ParseToken("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("s3cret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
