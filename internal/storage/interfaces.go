package storage

import (
	"context"
	"time"
)

// CookieStore persists per-user extractor cookies. A missing record is not
// an error: Get reports presence through its second return value.
type CookieStore interface {
	// Get returns the cookie blob for the user, or found=false when none is stored.
	Get(ctx context.Context, userID int64) (text string, found bool, err error)
	// Set stores (or overwrites) the cookie blob and stamps the update time.
	Set(ctx context.Context, userID int64, text string) error
	// Delete removes the cookie blob and its metadata.
	Delete(ctx context.Context, userID int64) error
	// UpdatedAt returns the last write time, or found=false when no record exists.
	UpdatedAt(ctx context.Context, userID int64) (at time.Time, found bool, err error)
}
