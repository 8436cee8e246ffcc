package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"waka/internal/domain"
	"waka/internal/repository"
)

// RouteRepository is a PostgreSQL implementation of
// repository.RouteRepository backed by the routes and route_legs
// tables. Routes are insert-only.
type RouteRepository struct {
	db *sql.DB
}

// NewRouteRepository creates a new PostgreSQL route repository.
func NewRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Create persists a route and its legs in one transaction.
func (r *RouteRepository) Create(ctx context.Context, route *domain.Route) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO routes (id, name, created_at) VALUES ($1, $2, $3)`,
		route.ID, route.Name, route.CreatedAt,
	)
	if err != nil {
		return err
	}

	legQuery := `
		INSERT INTO route_legs (route_id, seq, mode,
			from_lat, from_lng, from_name, to_lat, to_lng, to_name,
			distance_meters, expected_duration_seconds, fare_min, fare_max,
			transfer_required, transfer_wait_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for _, leg := range route.Legs {
		_, err = tx.ExecContext(ctx, legQuery,
			route.ID,
			leg.Seq,
			leg.Mode,
			leg.From.Lat,
			leg.From.Lng,
			leg.From.Name,
			leg.To.Lat,
			leg.To.Lng,
			leg.To.Name,
			leg.DistanceMeters,
			int64(leg.ExpectedDuration.Seconds()),
			leg.FareMin,
			leg.FareMax,
			leg.TransferRequired,
			int64(leg.TransferWait.Seconds()),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a route and its ordered legs.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	var route domain.Route

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM routes WHERE id = $1`, id,
	).Scan(&route.ID, &route.Name, &route.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	query := `
		SELECT seq, mode, from_lat, from_lng, from_name, to_lat, to_lng, to_name,
		       distance_meters, expected_duration_seconds, fare_min, fare_max,
		       transfer_required, transfer_wait_seconds
		FROM route_legs
		WHERE route_id = $1
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		leg := domain.Leg{RouteID: route.ID}
		var durationSeconds, waitSeconds int64

		if err := rows.Scan(
			&leg.Seq,
			&leg.Mode,
			&leg.From.Lat,
			&leg.From.Lng,
			&leg.From.Name,
			&leg.To.Lat,
			&leg.To.Lng,
			&leg.To.Name,
			&leg.DistanceMeters,
			&durationSeconds,
			&leg.FareMin,
			&leg.FareMax,
			&leg.TransferRequired,
			&waitSeconds,
		); err != nil {
			return nil, err
		}

		leg.ExpectedDuration = time.Duration(durationSeconds) * time.Second
		leg.TransferWait = time.Duration(waitSeconds) * time.Second
		route.Legs = append(route.Legs, leg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &route, nil
}

// Ensure RouteRepository implements the interface.
var _ repository.RouteRepository = (*RouteRepository)(nil)
