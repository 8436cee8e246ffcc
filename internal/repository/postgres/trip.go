package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"waka/internal/domain"
	"waka/internal/repository"
)

// TripSessionRepository is a PostgreSQL implementation of
// repository.TripSessionRepository backed by the journeys and
// journey_legs tables.
type TripSessionRepository struct {
	db *sql.DB
}

// NewTripSessionRepository creates a new PostgreSQL trip session repository.
func NewTripSessionRepository(db *sql.DB) *TripSessionRepository {
	return &TripSessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, route_id, status, current_leg_index,
	last_lat, last_lng, last_accuracy_m, last_fix_at,
	estimated_arrival, started_at, completed_at, end_reason, cancel_reason
`

// Create persists a new session and its leg rows in one transaction.
func (r *TripSessionRepository) Create(ctx context.Context, session *domain.TripSession) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO journeys (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	lastLat, lastLng, lastAcc, lastFixAt := positionColumns(session.LastPosition)

	_, err = tx.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.RouteID,
		session.Status,
		session.CurrentLegIndex,
		lastLat,
		lastLng,
		lastAcc,
		lastFixAt,
		session.EstimatedArrival,
		session.StartedAt,
		nullTime(session.CompletedAt),
		session.EndReason,
		session.CancelReason,
	)
	if err != nil {
		return err
	}

	for i := range session.Legs {
		if err = insertLeg(ctx, tx, session.ID, &session.Legs[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a session and its legs by trip ID.
func (r *TripSessionRepository) GetByID(ctx context.Context, id string) (*domain.TripSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM journeys WHERE id = $1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if session.Legs, err = r.loadLegs(ctx, session.ID); err != nil {
		return nil, err
	}

	return session, nil
}

// Update writes the session row and all its leg rows in one
// transaction. Rewriting identical state is harmless.
func (r *TripSessionRepository) Update(ctx context.Context, session *domain.TripSession) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE journeys
		SET status = $1, current_leg_index = $2,
		    last_lat = $3, last_lng = $4, last_accuracy_m = $5, last_fix_at = $6,
		    estimated_arrival = $7, completed_at = $8, end_reason = $9, cancel_reason = $10
		WHERE id = $11
	`

	lastLat, lastLng, lastAcc, lastFixAt := positionColumns(session.LastPosition)

	result, err := tx.ExecContext(ctx, query,
		session.Status,
		session.CurrentLegIndex,
		lastLat,
		lastLng,
		lastAcc,
		lastFixAt,
		session.EstimatedArrival,
		nullTime(session.CompletedAt),
		session.EndReason,
		session.CancelReason,
		session.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		err = repository.ErrNotFound
		return err
	}

	legQuery := `
		UPDATE journey_legs
		SET status = $1, transfer_alert_sent = $2, transfer_imminent_sent = $3,
		    destination_alert_sent = $4, started_at = $5, ended_at = $6
		WHERE journey_id = $7 AND leg_seq = $8
	`
	for i := range session.Legs {
		lp := &session.Legs[i]
		_, err = tx.ExecContext(ctx, legQuery,
			lp.Status,
			lp.TransferAlertSent,
			lp.TransferImminentSent,
			lp.DestinationAlertSent,
			nullTime(lp.StartedAt),
			nullTime(lp.EndedAt),
			session.ID,
			lp.LegSeq,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetActiveByUserID retrieves the user's IN_PROGRESS session.
// Returns nil if no active session exists.
func (r *TripSessionRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.TripSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM journeys WHERE user_id = $1 AND status = $2 LIMIT 1`

	session, err := scanSession(r.db.QueryRowContext(ctx, query, userID, domain.TripStatusInProgress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if session.Legs, err = r.loadLegs(ctx, session.ID); err != nil {
		return nil, err
	}

	return session, nil
}

// GetAllByUserID retrieves a user's sessions, newest first. Leg rows
// are not loaded for history listings.
func (r *TripSessionRepository) GetAllByUserID(ctx context.Context, userID string) ([]*domain.TripSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM journeys WHERE user_id = $1 ORDER BY started_at DESC LIMIT 100`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.TripSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (r *TripSessionRepository) loadLegs(ctx context.Context, tripID string) ([]domain.LegProgress, error) {
	query := `
		SELECT leg_seq, status, transfer_alert_sent, transfer_imminent_sent,
		       destination_alert_sent, started_at, ended_at
		FROM journey_legs
		WHERE journey_id = $1
		ORDER BY leg_seq
	`

	rows, err := r.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var legs []domain.LegProgress
	for rows.Next() {
		var lp domain.LegProgress
		var startedAt, endedAt sql.NullTime

		if err := rows.Scan(
			&lp.LegSeq,
			&lp.Status,
			&lp.TransferAlertSent,
			&lp.TransferImminentSent,
			&lp.DestinationAlertSent,
			&startedAt,
			&endedAt,
		); err != nil {
			return nil, err
		}

		if startedAt.Valid {
			lp.StartedAt = startedAt.Time
		}
		if endedAt.Valid {
			lp.EndedAt = endedAt.Time
		}

		legs = append(legs, lp)
	}

	return legs, rows.Err()
}

func insertLeg(ctx context.Context, q Querier, tripID string, lp *domain.LegProgress) error {
	query := `
		INSERT INTO journey_legs (journey_id, leg_seq, status, transfer_alert_sent,
			transfer_imminent_sent, destination_alert_sent, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.ExecContext(ctx, query,
		tripID,
		lp.LegSeq,
		lp.Status,
		lp.TransferAlertSent,
		lp.TransferImminentSent,
		lp.DestinationAlertSent,
		nullTime(lp.StartedAt),
		nullTime(lp.EndedAt),
	)
	return err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.TripSession, error) {
	var session domain.TripSession
	var lastLat, lastLng, lastAcc sql.NullFloat64
	var lastFixAt, completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RouteID,
		&session.Status,
		&session.CurrentLegIndex,
		&lastLat,
		&lastLng,
		&lastAcc,
		&lastFixAt,
		&session.EstimatedArrival,
		&session.StartedAt,
		&completedAt,
		&session.EndReason,
		&session.CancelReason,
	)
	if err != nil {
		return nil, err
	}

	if lastLat.Valid && lastLng.Valid && lastFixAt.Valid {
		session.LastPosition = &domain.Position{
			Lat:       lastLat.Float64,
			Lng:       lastLng.Float64,
			AccuracyM: lastAcc.Float64,
			Timestamp: lastFixAt.Time,
		}
	}
	if completedAt.Valid {
		session.CompletedAt = completedAt.Time
	}

	return &session, nil
}

func positionColumns(p *domain.Position) (lat, lng, acc sql.NullFloat64, at sql.NullTime) {
	if p == nil {
		return
	}
	lat = sql.NullFloat64{Float64: p.Lat, Valid: true}
	lng = sql.NullFloat64{Float64: p.Lng, Valid: true}
	acc = sql.NullFloat64{Float64: p.AccuracyM, Valid: true}
	at = sql.NullTime{Time: p.Timestamp, Valid: true}
	return
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// Ensure TripSessionRepository implements the interface.
var _ repository.TripSessionRepository = (*TripSessionRepository)(nil)
