package repository

import (
	"context"

	"roam/internal/domain"
)

// TripRepository defines the persistence operations for tracked trips.
// Itinerary authoring lives elsewhere; the tracking service only needs the
// trip record and its extracted steps.
type TripRepository interface {
	// Create persists a new trip and its trackable steps.
	Create(ctx context.Context, trip *domain.TrackedTrip, steps []domain.Step) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.TrackedTrip, error)

	// GetSteps retrieves a trip's steps ordered by scheduled start.
	GetSteps(ctx context.Context, tripID string) ([]domain.Step, error)
}
