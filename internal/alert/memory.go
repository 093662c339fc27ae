package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is useful for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	now    func() time.Time
}

// NewInMemoryRepository creates an empty in-memory alert repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		alerts: make(map[string]*Alert),
		now:    time.Now,
	}
}

// Add stores an alert and returns the stored copy. A missing id is generated,
// a missing status defaults to new and a missing timestamp to now.
func (r *InMemoryRepository) Add(a Alert) (Alert, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	} else if !validID(a.ID) {
		return Alert{}, fmt.Errorf("alert id %q is not a UUID", a.ID)
	}
	if a.Status == "" {
		a.Status = StatusNew
	}
	if _, err := ParseStatus(string(a.Status)); err != nil {
		return Alert{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Timestamp.IsZero() {
		a.Timestamp = r.now()
	}
	stored := a
	r.alerts[a.ID] = &stored
	return stored, nil
}

// List implements Repository.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Alert, error) {
	filter = filter.normalized()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus implements Repository.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Alert, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, ErrAlertNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	a.Status = status
	if status == StatusResolved {
		now := r.now()
		a.ResolvedAt = &now
	} else {
		a.ResolvedAt = nil
	}

	updated := *a
	return &updated, nil
}
