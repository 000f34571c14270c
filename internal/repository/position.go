package repository

import (
	"context"

	"roam/internal/domain"
)

// PositionRepository persists position ticks. Writes are append-only, one
// row per tick; duplicates and out-of-order writes are tolerated.
type PositionRepository interface {
	// Append stores one position record.
	Append(ctx context.Context, record *domain.PositionRecord) error

	// GetByTrip retrieves a trip's recorded positions, oldest first,
	// capped at limit.
	GetByTrip(ctx context.Context, tripID string, limit int) ([]*domain.PositionRecord, error)
}
