package comics

import (
	"context"
	"time"
)

// SyncReport summarizes a sync pass.
type SyncReport struct {
	ID       string        `json:"id"`
	Updated  int           `json:"updated"`
	Skipped  []int         `json:"skipped,omitempty"`
	Previous int           `json:"previous"`
	Latest   int           `json:"latest"`
	Duration time.Duration `json:"duration"`
}

// Syncer brings the local catalog up to date with the remote archive.
type Syncer interface {
	// Sync fetches every comic newer than the local latest, then persists
	// and publishes catalog and index together. On error nothing is
	// persisted or published.
	// Returns ECONFLICT if another pass is in progress and EUNAVAILABLE if
	// the remote archive could not be reached.
	Sync(ctx context.Context) (*SyncReport, error)
}
