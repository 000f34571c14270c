package postgres

import (
	"context"
	"database/sql"

	"roam/internal/domain"
)

// PositionRepository is a PostgreSQL implementation of
// repository.PositionRepository.
type PositionRepository struct {
	q Querier
}

// NewPositionRepository creates a new PostgreSQL position repository.
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{q: db}
}

// Append stores one position record. Positions are never updated or
// deleted; the table is an append-only log of ticks.
func (r *PositionRepository) Append(ctx context.Context, record *domain.PositionRecord) error {
	query := `
		INSERT INTO positions (id, trip_id, step_id, latitude, longitude, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		record.ID,
		record.TripID,
		record.StepID,
		record.Latitude,
		record.Longitude,
		record.Accuracy,
		record.RecordedAt,
	)

	return err
}

// GetByTrip retrieves a trip's recorded positions, oldest first.
func (r *PositionRepository) GetByTrip(ctx context.Context, tripID string, limit int) ([]*domain.PositionRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT id, trip_id, step_id, latitude, longitude, accuracy, recorded_at
		FROM positions WHERE trip_id = $1 ORDER BY recorded_at ASC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, tripID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.PositionRecord
	for rows.Next() {
		var record domain.PositionRecord
		if err := rows.Scan(
			&record.ID,
			&record.TripID,
			&record.StepID,
			&record.Latitude,
			&record.Longitude,
			&record.Accuracy,
			&record.RecordedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}
