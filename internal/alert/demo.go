package alert

import "time"

// SeedDemo adds five sample alerts spread over the hour before now.
// Resolved samples carry a resolution time.
func SeedDemo(r *InMemoryRepository, now time.Time) error {
	samples := []struct {
		typ, message, camera, zone string
		age                        time.Duration
		status                     Status
		severity                   Severity
	}{
		{"suspicious_behavior", "Suspicious behaviour detected in the fashion section", "cam-002", "fashion", 5 * time.Minute, StatusNew, SeverityHigh},
		{"queue_length", "Checkout queue is too long (8 people)", "cam-003", "checkout", 10 * time.Minute, StatusViewed, SeverityMedium},
		{"crowding", "Electronics section is overcrowded", "cam-004", "electronics", 15 * time.Minute, StatusResolved, SeverityLow},
		{"abandoned_item", "Abandoned item detected at the entrance", "cam-001", "entrance", 30 * time.Minute, StatusNew, SeverityMedium},
		{"unauthorized_area", "Person entered a restricted area", "cam-005", "storage", time.Hour, StatusResolved, SeverityHigh},
	}

	for _, s := range samples {
		a := Alert{
			Type:      s.typ,
			Message:   s.message,
			Timestamp: now.Add(-s.age),
			Camera:    s.camera,
			Zone:      s.zone,
			Status:    s.status,
			Severity:  s.severity,
		}
		if s.status == StatusResolved {
			resolved := a.Timestamp.Add(2 * time.Minute)
			a.ResolvedAt = &resolved
		}
		if _, err := r.Add(a); err != nil {
			return err
		}
	}
	return nil
}
