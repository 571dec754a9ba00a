// Package store defines the persistence capability the submission
// coordinator depends on. Implementations must provide true multi-key
// atomicity for CreateEntry: the marker reads and the entry/marker writes
// happen in one isolated unit, so two concurrent submissions for the same
// email or phone can never both commit. Backends without that guarantee are
// not valid implementations of this interface.
package store

import (
	"context"
	"fmt"

	"waitlistd/internal/waitlist/models"
	"waitlistd/pkg/platform/sentinel"
)

var (
	// ErrEmailTaken reports that the email uniqueness slot is already held.
	ErrEmailTaken = fmt.Errorf("email marker: %w", sentinel.ErrAlreadyUsed)

	// ErrPhoneTaken reports that the phone uniqueness slot is already held.
	ErrPhoneTaken = fmt.Errorf("phone marker: %w", sentinel.ErrAlreadyUsed)
)

// Store persists waitlist entries and their uniqueness markers.
type Store interface {
	// CreateEntry atomically checks both uniqueness markers and, when free,
	// writes the entry plus both markers. It assigns and returns the entry ID.
	// Email conflicts are reported before phone conflicts when both exist.
	// On any conflict or failure nothing is persisted.
	CreateEntry(ctx context.Context, entry *models.WaitlistEntry) (string, error)

	// ListEntries returns up to limit entries, newest first.
	ListEntries(ctx context.Context, limit int) ([]*models.WaitlistEntry, error)

	// CountEntries returns the number of accepted entries.
	CountEntries(ctx context.Context) (int, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error
}
