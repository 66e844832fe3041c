package catalog

import (
	"context"
	"fmt"
)

var ErrUsageNotFound = fmt.Errorf("usage record not found")

// Repository defines read and write access to the content catalog and its rotation history.
type Repository interface {
	// ListActiveUnits returns the active units owned directly by the activity when subactivityID
	// is empty, otherwise the active units of that subactivity. Result is in canonical order.
	ListActiveUnits(ctx context.Context, activityID, subactivityID string) ([]ContentUnit, error)
	// ListActiveSubactivityUnits returns every active unit of every active subactivity of the
	// activity, in canonical order.
	ListActiveSubactivityUnits(ctx context.Context, activityID string) ([]ContentUnit, error)

	// LatestUsage returns the most recent usage for the scope key ordered by used date, then
	// creation time. Returns ErrUsageNotFound when the scope has no history.
	LatestUsage(ctx context.Context, scopeKey string) (*UsageRecord, error)

	GeneratedTextExists(ctx context.Context, hash string) (bool, error)
	// SaveUsage stores the usage record, increments the unit usage counter and stores the
	// generated text record as one transaction.
	SaveUsage(ctx context.Context, usage *UsageRecord, text *GeneratedTextRecord) error
}
