package visit

import (
	"math"
	"strings"
)

// Display labels for normalized demographic tags.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	LabelUnknown = "unknown"
)

// DemographicBucket is the share of visitors in one (age group, gender) cell.
type DemographicBucket struct {
	AgeGroup   string `json:"age_group"`
	Gender     string `json:"gender"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// NormalizeGender folds raw gender tags into the display set. Values outside the set
// pass through lower-cased as their own label instead of being dropped.
func NormalizeGender(g string) string {
	switch v := strings.ToLower(strings.TrimSpace(g)); v {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	case "":
		return LabelUnknown
	default:
		return v
	}
}

// NormalizeAgeGroup returns the age group, or "unknown" when it is blank.
func NormalizeAgeGroup(a string) string {
	if v := strings.TrimSpace(a); v != "" {
		return v
	}
	return LabelUnknown
}

// Demographics groups every event in the batch by (age group, gender). Each raw
// event counts once whatever its action, so entries and exits both contribute and
// untagged events land in the unknown bucket. Percentages are rounded per bucket
// and may not sum to exactly 100. Buckets appear in first-seen order.
func Demographics(events []Event) []DemographicBucket {
	index := make(map[[2]string]int)
	buckets := []DemographicBucket{}
	total := len(events)

	for _, e := range events {
		key := [2]string{NormalizeAgeGroup(e.AgeGroup), NormalizeGender(e.Gender)}
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, DemographicBucket{AgeGroup: key[0], Gender: key[1]})
		}
		buckets[i].Count++
	}

	for i := range buckets {
		buckets[i].Percentage = Percentage(buckets[i].Count, total)
	}
	return buckets
}

// Percentage returns round(count/total*100), or 0 when total is not positive.
func Percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
