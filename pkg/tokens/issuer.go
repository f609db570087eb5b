// Package tokens issues the single-use action tokens embedded in volunteer
// emails. A token ties a (shift, volunteer, action) tuple to an opaque
// 128-bit random identifier; whoever holds the link holds the capability.
package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intergroup-dev/volunteer-shifts/pkg/core/model"
	"github.com/intergroup-dev/volunteer-shifts/pkg/db"
)

const (
	tokenBytes      = 16 // 128 bits of entropy, hex-encoded to 32 URL-safe chars
	maxIssueRetries = 3
)

// Issuer creates and persists action tokens and builds their action URLs
type Issuer struct {
	store          db.TokenStore
	baseURL        string
	defaultTTLDays int
}

// NewIssuer creates an Issuer. baseURL is the externally reachable site root
// (trailing slash tolerated); defaultTTLDays applies unless an issue call
// overrides it.
func NewIssuer(store db.TokenStore, baseURL string, defaultTTLDays int) *Issuer {
	return &Issuer{
		store:          store,
		baseURL:        strings.TrimRight(baseURL, "/"),
		defaultTTLDays: defaultTTLDays,
	}
}

// Option adjusts a single token issue
type Option func(*issueOptions)

type issueOptions struct {
	ttlDays int
}

// WithTTLDays overrides the issuer's default time-to-live. Cancel tokens sent
// with 24-hour reminders use a 1-day TTL.
func WithTTLDays(days int) Option {
	return func(o *issueOptions) {
		o.ttlDays = days
	}
}

// Issue generates a token for the given shift/volunteer/action, persists it
// and returns it. A unique-constraint collision on the token string is
// retried with a fresh value; at 128 bits of entropy more than one retry
// means something is wrong with the random source.
func (i *Issuer) Issue(ctx context.Context, shiftID, volunteerID string, action model.TokenAction, now time.Time, opts ...Option) (*model.ActionToken, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("unknown token action %q", action)
	}

	options := issueOptions{ttlDays: i.defaultTTLDays}
	for _, opt := range opts {
		opt(&options)
	}

	for attempt := 0; attempt < maxIssueRetries; attempt++ {
		value, err := randomToken()
		if err != nil {
			return nil, err
		}

		token := &model.ActionToken{
			ID:          uuid.New().String(),
			Token:       value,
			ShiftID:     shiftID,
			VolunteerID: volunteerID,
			Action:      action,
			ExpiresAt:   now.UTC().Add(time.Duration(options.ttlDays) * 24 * time.Hour),
			CreatedAt:   now.UTC(),
		}

		err = i.store.InsertActionToken(ctx, token)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, db.ErrDuplicate) {
			return nil, fmt.Errorf("failed to persist action token: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to generate a unique token after %d attempts", maxIssueRetries)
}

// ActionURL builds the emailed link for a token value. Pure function of the
// configured base URL.
func (i *Issuer) ActionURL(tokenValue string) string {
	return fmt.Sprintf("%s/action/%s", i.baseURL, tokenValue)
}

func randomToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
