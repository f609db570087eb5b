package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotUnavailable is returned when the requested or approved slot was
	// taken by another actor since it was last observed
	ErrSlotUnavailable = errors.New("slot no longer available")

	// ErrDuplicateRequest is returned when the volunteer already has a
	// pending request for the same slot on the same shift
	ErrDuplicateRequest = errors.New("a pending request for this slot already exists")

	// ErrRequestNotPending is returned when resolving a request that was
	// already approved or rejected
	ErrRequestNotPending = errors.New("request has already been resolved")
)

// TokenCategory is the user-facing failure class of a token action. The token
// flow is the primary unauthenticated surface, so every failure maps to one
// of exactly four categories with distinct copy.
type TokenCategory string

const (
	CategoryInvalid  TokenCategory = "invalid_link"
	CategoryUsed     TokenCategory = "already_used"
	CategoryExpired  TokenCategory = "expired"
	CategoryConflict TokenCategory = "conflict"
)

// TokenError carries the category plus the copy shown to the volunteer
type TokenError struct {
	Category TokenCategory
	Title    string
	Detail   string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func invalidLinkError() *TokenError {
	return &TokenError{
		Category: CategoryInvalid,
		Title:    "Invalid Link",
		Detail:   "This action link is invalid or has been removed.",
	}
}

func alreadyUsedError(usedAt string) *TokenError {
	return &TokenError{
		Category: CategoryUsed,
		Title:    "Action Already Completed",
		Detail:   fmt.Sprintf("This action was completed on %s.", usedAt),
	}
}

func expiredLinkError() *TokenError {
	return &TokenError{
		Category: CategoryExpired,
		Title:    "Link Expired",
		Detail:   "This action link has expired. Please contact the office for assistance.",
	}
}

func conflictError(title, detail string) *TokenError {
	return &TokenError{Category: CategoryConflict, Title: title, Detail: detail}
}
