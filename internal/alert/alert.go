// Package alert lists store alerts raised by the camera pipeline and records
// operator status changes. Unlike the dashboard aggregates, failures here are
// returned to the caller so the operator can retry.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors for alert operations.
var (
	ErrAlertNotFound    = errors.New("alert not found")
	ErrInvalidStatus    = errors.New("invalid alert status")
	ErrStoreUnavailable = errors.New("alert store unavailable")
)

// DefaultListLimit applies when a list request names no limit.
const DefaultListLimit = 50

// MaxListLimit caps the number of alerts one list request returns.
const MaxListLimit = 200

// Status is the operator workflow state of an alert.
type Status string

const (
	StatusNew           Status = "new"
	StatusViewed        Status = "viewed"
	StatusInProgress    Status = "in_progress"
	StatusResolved      Status = "resolved"
	StatusFalsePositive Status = "false_positive"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNew, StatusViewed, StatusInProgress, StatusResolved, StatusFalsePositive:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert is one detection surfaced to store staff.
type Alert struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	Timestamp  time.Time  `json:"timestamp"`
	Camera     string     `json:"camera"`
	Zone       string     `json:"zone"`
	Status     Status     `json:"status"`
	Severity   Severity   `json:"severity"`
	Confidence *float64   `json:"confidence,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// ListFilter narrows a list request. A zero Status matches every status.
type ListFilter struct {
	Status Status
	Limit  int
}

// normalized applies the default and maximum limit.
func (f ListFilter) normalized() ListFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	return f
}

// Repository defines the interface for alert data operations.
type Repository interface {
	// List returns alerts newest first.
	List(ctx context.Context, filter ListFilter) ([]Alert, error)

	// UpdateStatus sets an alert's status and returns the updated alert.
	// Moving to StatusResolved stamps ResolvedAt; any other status clears it.
	// Returns ErrAlertNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id string, status Status) (*Alert, error)
}

// validID reports whether id can name an alert. Alert ids are UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
