package scoring

import "time"

// Staleness is the freshness metadata for one acceptance record, computed
// without reloading its observations.
type Staleness struct {
	ThresholdDays       int
	DaysSinceVerified   int
	DaysUntilStale      int
	ReverifyRecommended bool
}

// StalenessFor computes freshness metadata from the record's last verification
// time and the provider specialty. Day granularity, like the recency sub-score.
func StalenessFor(lastVerified *time.Time, specialty string, now time.Time) Staleness {
	s := Staleness{ThresholdDays: FreshnessThresholdDays(specialty)}
	if lastVerified == nil {
		s.ReverifyRecommended = true
		return s
	}

	s.DaysSinceVerified = int(now.Sub(*lastVerified).Hours() / 24)
	if s.DaysSinceVerified < 0 {
		s.DaysSinceVerified = 0
	}

	s.DaysUntilStale = s.ThresholdDays - s.DaysSinceVerified
	if s.DaysUntilStale < 0 {
		s.DaysUntilStale = 0
	}
	s.ReverifyRecommended = float64(s.DaysSinceVerified) >= reverifyFraction*float64(s.ThresholdDays)
	return s
}
