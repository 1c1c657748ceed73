package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("job-1", "seating/plan-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "job-1", claims.JobID)
	require.Equal(t, "seating/plan-1.pdf", claims.Path)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	signer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := signer.Generate("job-1", "seating/plan-1.csv")
	require.NoError(t, err)

	signer.now = time.Now
	_, err = signer.Parse(token)
	require.True(t, errors.Is(err, ErrInvalidDownloadToken))
}

func TestSignedURLSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("one", time.Hour).Generate("job-1", "a.csv")
	require.NoError(t, err)

	_, err = NewSignedURLSigner("two", time.Hour).Parse(token)
	require.True(t, errors.Is(err, ErrInvalidDownloadToken))
}

func TestSignedURLSignerRequiresInputs(t *testing.T) {
	_, _, err := NewSignedURLSigner("secret", time.Hour).Generate("", "a.csv")
	require.Error(t, err)

	_, _, err = NewSignedURLSigner("", time.Hour).Generate("job", "a.csv")
	require.Error(t, err)
}
