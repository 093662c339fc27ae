package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/storepulse/internal/tracing"
)

const (
	alertColumns = `a.id, COALESCE(t.name, 'unknown'), a.message, a.created_at,
		COALESCE(c.name, 'unknown'), COALESCE(z.name, 'unknown'),
		a.status, a.severity, a.confidence, a.resolved_at`

	alertJoins = `FROM alerts a
		LEFT JOIN alert_types t ON t.id = a.alert_type_id
		LEFT JOIN cameras c ON c.id = a.camera_id
		LEFT JOIN zones z ON z.id = a.zone_id`

	listAlertsQuery = `SELECT ` + alertColumns + ` ` + alertJoins + `
		WHERE a.store_id = $1 AND ($2 = '' OR a.status = $2)
		ORDER BY a.created_at DESC, a.id
		LIMIT $3`

	updateStatusQuery = `UPDATE alerts
		SET status = $3,
		    resolved_at = CASE WHEN $3 = 'resolved' THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND store_id = $2`

	getAlertQuery = `SELECT ` + alertColumns + ` ` + alertJoins + `
		WHERE a.id = $1 AND a.store_id = $2`
)

// PostgresRepository implements Repository on the alerts table.
type PostgresRepository struct {
	db      *sql.DB
	storeID string
	logger  *slog.Logger
}

// NewPostgresRepository creates a repository scoped to one store.
func NewPostgresRepository(db *sql.DB, storeID string, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, storeID: storeID, logger: logger}
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) (alerts []Alert, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "alerts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	filter = filter.normalized()
	rows, err := r.db.QueryContext(ctx, listAlertsQuery, r.storeID, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list alerts: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	alerts = []Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan alert: %w", ErrStoreUnavailable, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list alerts: %w", ErrStoreUnavailable, err)
	}
	return alerts, nil
}

// UpdateStatus implements Repository.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) (updated *Alert, err error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrAlertNotFound
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "alerts", tracing.DBOperationUpdate)
	defer func() {
		// Not-found is a caller error, not a failed span.
		if errors.Is(err, ErrAlertNotFound) {
			endSpan(nil)
			return
		}
		endSpan(err)
	}()

	res, err := r.db.ExecContext(ctx, updateStatusQuery, id, r.storeID, string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: update alert %s: %w", ErrStoreUnavailable, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: rows affected: %w", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return nil, ErrAlertNotFound
	}

	a, err := scanAlert(r.db.QueryRowContext(ctx, getAlertQuery, id, r.storeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("%w: reload alert %s: %w", ErrStoreUnavailable, id, err)
	}

	r.logger.InfoContext(ctx, "alert status updated", "alert_id", id, "status", string(status))
	return &a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(s scanner) (Alert, error) {
	var (
		a          Alert
		status     string
		severity   string
		confidence sql.NullFloat64
		resolvedAt sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.Type, &a.Message, &a.Timestamp, &a.Camera, &a.Zone,
		&status, &severity, &confidence, &resolvedAt); err != nil {
		return Alert{}, err
	}
	a.Status = Status(status)
	a.Severity = Severity(severity)
	if confidence.Valid {
		c := confidence.Float64
		a.Confidence = &c
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}
