package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
)

func TestCleanupExpiredTokens(t *testing.T) {
	now := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	usedAt := now.Add(-48 * time.Hour)

	store := newFakeStore()
	store.tokens["tok-live"] = model.ActionToken{Token: "tok-live", ExpiresAt: now.Add(24 * time.Hour)}
	store.tokens["tok-used"] = model.ActionToken{Token: "tok-used", ExpiresAt: now.Add(24 * time.Hour), UsedAt: &usedAt}
	store.tokens["tok-expired"] = model.ActionToken{Token: "tok-expired", ExpiresAt: now.Add(-time.Hour)}

	deleted, err := CleanupExpiredTokens(context.Background(), store, zap.NewNop(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, live := store.tokens["tok-live"]
	assert.True(t, live)
	_, used := store.tokens["tok-used"]
	assert.False(t, used)
	_, expired := store.tokens["tok-expired"]
	assert.False(t, expired)
}

func TestCleanupExpiredTokens_NothingToDelete(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.tokens["tok-live"] = model.ActionToken{Token: "tok-live", ExpiresAt: now.Add(24 * time.Hour)}

	deleted, err := CleanupExpiredTokens(context.Background(), store, zap.NewNop(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
	assert.Len(t, store.tokens, 1)
}
