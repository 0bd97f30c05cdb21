package scoring

import (
	"fmt"
	"time"

	"github.com/coverpulse/coverpulse/internal/domain"
)

// Sub-score ceilings. The four terms sum to at most 100.
const (
	maxSourceScore    = 25
	maxRecencyScore   = 30
	maxVolumeScore    = 25
	maxAgreementScore = 20
)

// sourceQuality ranks data sources by trustworthiness (0-25). The
// most-authoritative contributing source wins. Unknown sources score as
// automated inference.
var sourceQuality = map[domain.DataSource]int{
	domain.SourceAuthoritativeRegistry: 25,
	domain.SourceCarrierReported:       20,
	domain.SourceProviderSelfReported:  20,
	domain.SourceCrowdReported:         15,
	domain.SourcePhoneVerified:         15,
	domain.SourceAutomatedInference:    10,
}

const unknownSourceScore = 10

// recencyLadder awards points by days-since-verified relative to the
// specialty freshness threshold T. Evaluated top-down, first match wins.
var recencyLadder = []struct {
	thresholdFraction float64 // d <= fraction * T
	points            int
}{
	{0.5, 30},
	{1.0, 20},
	{1.5, 10},
}

// Beyond 1.5*T there is a long tail: anything verified within half a year
// still beats nothing at all.
const (
	recencyTailDays   = 180
	recencyTailPoints = 5
)

// volumeLadder encodes the empirical accuracy threshold at three independent
// observations. The 15 -> 25 jump is deliberate; do not smooth it.
var volumeLadder = []struct {
	minObservations int
	points          int
}{
	{3, 25},
	{2, 15},
	{1, 10},
}

// agreementLadder awards points by upvote percentage across all votes on the
// pair's observations.
var agreementLadder = []struct {
	minPercent int
	points     int
}{
	{100, 20},
	{80, 15},
	{60, 10},
	{40, 5},
}

// levelBounds maps the numeric score to a display level, lowest bound first.
var levelBounds = []struct {
	min   int
	level domain.ConfidenceLevel
}{
	{91, domain.LevelVeryHigh},
	{76, domain.LevelHigh},
	{51, domain.LevelMedium},
	{26, domain.LevelLow},
	{0, domain.LevelVeryLow},
}

// levelCapThreshold is the observation count below which the level is
// hard-capped at MEDIUM: one enthusiastic observation plus old authoritative
// data must not read as highly trustworthy.
const levelCapThreshold = 3

// reverifyFraction triggers the re-verification recommendation once this
// share of the freshness threshold has elapsed.
const reverifyFraction = 0.8

// Result is the full output of one scoring pass, including the per-term
// breakdown required for auditability.
type Result struct {
	Score  int
	Level  domain.ConfidenceLevel
	Status domain.AcceptanceStatus

	SourceScore    int
	RecencyScore   int
	VolumeScore    int
	AgreementScore int

	ObservationCount    int
	LastVerifiedAt      *time.Time
	ThresholdDays       int
	DaysSinceVerified   int
	DaysUntilStale      int
	ReverifyRecommended bool

	Explanation string
}

// Score computes the confidence score for one (provider, plan) pair. Pure and
// deterministic: same record, observations, specialty and clock reading always
// produce the same Result. rec may be nil when the pair has no acceptance
// record yet.
func Score(rec *domain.AcceptanceRecord, observations []domain.Observation, specialty string, now time.Time) Result {
	lastVerified := lastVerifiedAt(rec, observations)
	thresholdDays := FreshnessThresholdDays(specialty)

	res := Result{
		ObservationCount: len(observations),
		LastVerifiedAt:   lastVerified,
		ThresholdDays:    thresholdDays,
	}

	res.SourceScore = scoreSource(observations)
	res.RecencyScore, res.DaysSinceVerified = scoreRecency(lastVerified, thresholdDays, now)
	res.VolumeScore = scoreVolume(len(observations))

	up, down := tallyVotes(observations)
	res.AgreementScore = scoreAgreement(up, down)

	res.Score = res.SourceScore + res.RecencyScore + res.VolumeScore + res.AgreementScore
	res.Level = levelFor(res.Score, len(observations))
	res.Status = statusFor(observations)

	res.DaysUntilStale = thresholdDays - res.DaysSinceVerified
	if lastVerified == nil || res.DaysUntilStale < 0 {
		res.DaysUntilStale = 0
	}
	res.ReverifyRecommended = lastVerified == nil ||
		float64(res.DaysSinceVerified) >= reverifyFraction*float64(thresholdDays)

	res.Explanation = explain(res, up, down)
	return res
}

func lastVerifiedAt(rec *domain.AcceptanceRecord, observations []domain.Observation) *time.Time {
	var latest *time.Time
	if rec != nil {
		latest = rec.LastVerifiedAt
	}
	for i := range observations {
		t := observations[i].CreatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

func scoreSource(observations []domain.Observation) int {
	if len(observations) == 0 {
		return 0
	}
	best := 0
	for i := range observations {
		q, ok := sourceQuality[observations[i].Source]
		if !ok {
			q = unknownSourceScore
		}
		if q > best {
			best = q
		}
	}
	return best
}

func scoreRecency(lastVerified *time.Time, thresholdDays int, now time.Time) (points, days int) {
	if lastVerified == nil {
		return 0, 0
	}

	// Day granularity keeps back-to-back decay sweeps idempotent.
	days = int(now.Sub(*lastVerified).Hours() / 24)
	if days < 0 {
		days = 0
	}

	for _, step := range recencyLadder {
		if float64(days) <= step.thresholdFraction*float64(thresholdDays) {
			return step.points, days
		}
	}
	if days <= recencyTailDays {
		return recencyTailPoints, days
	}
	return 0, days
}

func scoreVolume(count int) int {
	for _, step := range volumeLadder {
		if count >= step.minObservations {
			return step.points
		}
	}
	return 0
}

func tallyVotes(observations []domain.Observation) (up, down int) {
	for i := range observations {
		up += observations[i].Upvotes
		down += observations[i].Downvotes
	}
	return up, down
}

func scoreAgreement(up, down int) int {
	total := up + down
	if total == 0 {
		return 0
	}
	percent := up * 100 / total
	for _, step := range agreementLadder {
		if percent >= step.minPercent {
			return step.points
		}
	}
	return 0
}

func levelFor(score, observationCount int) domain.ConfidenceLevel {
	level := domain.LevelVeryLow
	for _, bound := range levelBounds {
		if score >= bound.min {
			level = bound.level
			break
		}
	}
	if observationCount < levelCapThreshold {
		if level == domain.LevelHigh || level == domain.LevelVeryHigh {
			return domain.LevelMedium
		}
	}
	return level
}

// statusFor derives the aggregated acceptance status by strict majority of
// claimed values. An exact tie is PENDING; no observations means UNKNOWN.
func statusFor(observations []domain.Observation) domain.AcceptanceStatus {
	if len(observations) == 0 {
		return domain.StatusUnknown
	}
	accepted := 0
	for i := range observations {
		if observations[i].Claimed {
			accepted++
		}
	}
	rejected := len(observations) - accepted
	switch {
	case accepted > rejected:
		return domain.StatusAccepted
	case rejected > accepted:
		return domain.StatusNotAccepted
	default:
		return domain.StatusPending
	}
}

func explain(res Result, up, down int) string {
	recency := "never verified"
	if res.LastVerifiedAt != nil {
		recency = fmt.Sprintf("verified %d days ago against a %d-day threshold", res.DaysSinceVerified, res.ThresholdDays)
	}
	agreement := "no votes yet"
	if up+down > 0 {
		agreement = fmt.Sprintf("%d%% of %d votes positive", up*100/(up+down), up+down)
	}
	return fmt.Sprintf("Score %d/100: source quality %d/%d, recency %d/%d (%s), volume %d/%d (%d observations), agreement %d/%d (%s).",
		res.Score,
		res.SourceScore, maxSourceScore,
		res.RecencyScore, maxRecencyScore, recency,
		res.VolumeScore, maxVolumeScore, res.ObservationCount,
		res.AgreementScore, maxAgreementScore, agreement,
	)
}
