// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"bracket-trader/internal/models"
)

// OrderStore defines the interface for intent persistence.
//
// The store exclusively owns the authoritative copy of every intent; callers
// hold transient snapshots only. All mutations are atomic single-record
// updates, and the status-conditional ones (RecordExecution, MarkCancelled)
// fail rather than regress a record that has already moved on.
type OrderStore interface {
	// Intents
	CreateIntent(ctx context.Context, intent *models.Intent) (int64, error)
	GetIntent(ctx context.Context, id int64) (*models.Intent, error)
	ListPending(ctx context.Context) ([]models.Intent, error)
	ListIntents(ctx context.Context) ([]models.Intent, error)

	// Lifecycle transitions
	RecordExecution(ctx context.Context, id int64, entryOrderID, slOrderID string) error
	MarkCancelled(ctx context.Context, id int64) error
	MarkExited(ctx context.Context, id int64) error

	// Entry-run day marker, keyed by trading date. Makes the once-per-day
	// guard safe across process restarts inside the trigger window.
	EntryRunDone(ctx context.Context, day string) (bool, error)
	MarkEntryRunDone(ctx context.Context, day string, at time.Time) error

	// Lifecycle
	Close() error
}
