package repository

import (
	"context"

	"roam/internal/domain"
)

// StepStatusRepository persists derived per-step state. Writes are
// merge-by-key upserts of the full snapshot, so redundant or out-of-order
// writes resolve last-write-wins per (trip, step).
type StepStatusRepository interface {
	// Upsert writes the full status snapshot for (trip, step).
	Upsert(ctx context.Context, status *domain.StepStatus) error

	// GetByTrip retrieves all persisted statuses for a trip.
	GetByTrip(ctx context.Context, tripID string) ([]*domain.StepStatus, error)
}
