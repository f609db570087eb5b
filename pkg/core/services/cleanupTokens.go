package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TokenCleanupStore defines the database operation needed to garbage-collect
// spent tokens
type TokenCleanupStore interface {
	DeleteSpentTokens(ctx context.Context, now time.Time) (int64, error)
}

// CleanupExpiredTokens deletes tokens that are used or past expiry. Spent
// tokens are dead weight: validity checks never pass them again.
func CleanupExpiredTokens(ctx context.Context, store TokenCleanupStore, logger *zap.Logger, now time.Time) (int64, error) {
	deleted, err := store.DeleteSpentTokens(ctx, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete spent tokens: %w", err)
	}

	if deleted > 0 {
		logger.Info("Cleaned up spent action tokens", zap.Int64("deleted", deleted))
	} else {
		logger.Debug("No spent tokens to clean up")
	}

	return deleted, nil
}
