package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

func TestMemoryProposalStoreExpiresByItsClock(t *testing.T) {
	store := NewMemoryProposalStore(time.Hour)
	now := fixedNow
	store.(*memoryProposalStore).now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), &SeatingProposal{ID: "p1", CreatedAt: fixedNow}))

	now = fixedNow.Add(59 * time.Minute)
	got, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)

	now = fixedNow.Add(61 * time.Minute)
	_, err = store.Get(context.Background(), "p1")
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestMemoryProposalStoreUnknownID(t *testing.T) {
	store := NewMemoryProposalStore(time.Hour)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}
