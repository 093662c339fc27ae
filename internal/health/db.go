// Package health provides health check implementations for the dashboard's
// dependencies.
package health

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotConfigured is returned by checkers built without a backing client.
var ErrNotConfigured = errors.New("health: dependency not configured")

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if d.db == nil {
		return ErrNotConfigured
	}
	return d.db.PingContext(ctx)
}
