package postgres

import (
	"context"
	"database/sql"

	"roam/internal/domain"
)

// StepStatusRepository is a PostgreSQL implementation of
// repository.StepStatusRepository.
type StepStatusRepository struct {
	q Querier
}

// NewStepStatusRepository creates a new PostgreSQL step status repository.
func NewStepStatusRepository(db *sql.DB) *StepStatusRepository {
	return &StepStatusRepository{q: db}
}

// Upsert writes the full status snapshot, merging by (trip_id, step_id).
// Last write wins per key, which is safe because every write carries the
// complete snapshot.
func (r *StepStatusRepository) Upsert(ctx context.Context, status *domain.StepStatus) error {
	query := `
		INSERT INTO step_statuses (trip_id, step_id, state, phase, punctuality, delta_minutes, actual_arrival_time, performing, distance_meters, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (trip_id, step_id) DO UPDATE SET
			state = EXCLUDED.state,
			phase = EXCLUDED.phase,
			punctuality = EXCLUDED.punctuality,
			delta_minutes = EXCLUDED.delta_minutes,
			actual_arrival_time = EXCLUDED.actual_arrival_time,
			performing = EXCLUDED.performing,
			distance_meters = EXCLUDED.distance_meters,
			updated_at = EXCLUDED.updated_at
	`

	var arrivalTime sql.NullTime
	if !status.ActualArrivalTime.IsZero() {
		arrivalTime = sql.NullTime{Time: status.ActualArrivalTime, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		status.TripID,
		status.StepID,
		status.State,
		status.Phase,
		status.Punctuality,
		status.DeltaMinutes,
		arrivalTime,
		status.Performing,
		status.DistanceMeters,
		status.UpdatedAt,
	)

	return err
}

// GetByTrip retrieves all persisted statuses for a trip.
func (r *StepStatusRepository) GetByTrip(ctx context.Context, tripID string) ([]*domain.StepStatus, error) {
	query := `
		SELECT trip_id, step_id, state, phase, punctuality, delta_minutes, actual_arrival_time, performing, distance_meters, updated_at
		FROM step_statuses WHERE trip_id = $1
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []*domain.StepStatus
	for rows.Next() {
		var status domain.StepStatus
		var arrivalTime sql.NullTime
		if err := rows.Scan(
			&status.TripID,
			&status.StepID,
			&status.State,
			&status.Phase,
			&status.Punctuality,
			&status.DeltaMinutes,
			&arrivalTime,
			&status.Performing,
			&status.DistanceMeters,
			&status.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if arrivalTime.Valid {
			status.ActualArrivalTime = arrivalTime.Time
		}
		statuses = append(statuses, &status)
	}

	return statuses, rows.Err()
}
