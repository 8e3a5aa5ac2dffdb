package middleware

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTokens_RoundTrip(t *testing.T) {
	tokens := NewStreamTokens("secret")
	jobID := uuid.New()

	token, err := tokens.Issue(jobID)
	require.NoError(t, err)

	got, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, jobID, got)
}

func TestStreamTokens_Rejects(t *testing.T) {
	tokens := NewStreamTokens("secret")
	token, err := tokens.Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewStreamTokens("other").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidStreamToken)

	_, err = tokens.Verify("")
	assert.ErrorIs(t, err, ErrInvalidStreamToken)

	_, err = tokens.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidStreamToken)

	tokens.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	_, err = tokens.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidStreamToken)
}
