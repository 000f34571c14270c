package postgres

import (
	"context"
	"database/sql"
	"errors"

	"roam/internal/domain"
	"roam/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

// Create persists a trip and its steps in one transaction.
func (r *TripRepository) Create(ctx context.Context, trip *domain.TrackedTrip, steps []domain.Step) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trips (id, title, owner_id, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, trip.ID, trip.Title, trip.OwnerID, trip.StartDate, trip.EndDate, trip.CreatedAt)
	if err != nil {
		return err
	}

	for _, step := range steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps (id, trip_id, date_key, period, activity_type, place_name, place_details, lat, lng, scheduled_start, scheduled_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, step.ID, step.TripID, step.DateKey, step.Period, step.ActivityType,
			step.PlaceName, step.PlaceDetails, step.Lat, step.Lng,
			step.ScheduledStart, step.ScheduledEnd)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.TrackedTrip, error) {
	query := `
		SELECT id, title, owner_id, start_date, end_date, created_at
		FROM trips WHERE id = $1
	`

	var trip domain.TrackedTrip
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trip.ID,
		&trip.Title,
		&trip.OwnerID,
		&trip.StartDate,
		&trip.EndDate,
		&trip.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &trip, nil
}

// GetSteps retrieves a trip's steps ordered by scheduled start.
func (r *TripRepository) GetSteps(ctx context.Context, tripID string) ([]domain.Step, error) {
	query := `
		SELECT id, trip_id, date_key, period, activity_type, place_name, place_details, lat, lng, scheduled_start, scheduled_end
		FROM steps WHERE trip_id = $1 ORDER BY scheduled_start ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []domain.Step
	for rows.Next() {
		var step domain.Step
		if err := rows.Scan(
			&step.ID,
			&step.TripID,
			&step.DateKey,
			&step.Period,
			&step.ActivityType,
			&step.PlaceName,
			&step.PlaceDetails,
			&step.Lat,
			&step.Lng,
			&step.ScheduledStart,
			&step.ScheduledEnd,
		); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}
