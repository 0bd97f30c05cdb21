package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverpulse/coverpulse/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func makeObservation(source domain.DataSource, claimed bool, age time.Duration, up, down int) domain.Observation {
	return domain.Observation{
		ID:        uuid.New(),
		Claimed:   claimed,
		Source:    source,
		Upvotes:   up,
		Downvotes: down,
		CreatedAt: testNow.Add(-age),
		ExpiresAt: testNow.Add(24 * time.Hour * 180),
	}
}

func daysAgo(d int) time.Duration {
	return time.Duration(d) * 24 * time.Hour
}

// End-to-end example from the product team: internal medicine (60-day
// threshold), authoritative source, verified 10 days ago, 3 observations,
// 8 up / 2 down => 25+30+25+15 = 95, VERY_HIGH.
func TestScore_WorkedExample(t *testing.T) {
	obs := []domain.Observation{
		makeObservation(domain.SourceAuthoritativeRegistry, true, daysAgo(10), 8, 2),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(20), 0, 0),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(30), 0, 0),
	}

	res := Score(nil, obs, "Internal Medicine", testNow)

	assert.Equal(t, 25, res.SourceScore)
	assert.Equal(t, 30, res.RecencyScore)
	assert.Equal(t, 25, res.VolumeScore)
	assert.Equal(t, 15, res.AgreementScore)
	assert.Equal(t, 95, res.Score)
	assert.Equal(t, domain.LevelVeryHigh, res.Level)
	assert.Equal(t, domain.StatusAccepted, res.Status)
}

// Same record but only one observation: volume term drops to 10, total 80,
// which would be HIGH but is capped to MEDIUM below three observations.
func TestScore_VolumeCapAtMedium(t *testing.T) {
	obs := []domain.Observation{
		makeObservation(domain.SourceAuthoritativeRegistry, true, daysAgo(10), 8, 2),
	}

	res := Score(nil, obs, "Internal Medicine", testNow)

	assert.Equal(t, 10, res.VolumeScore)
	assert.Equal(t, 80, res.Score)
	assert.Equal(t, domain.LevelMedium, res.Level)
}

func TestScore_BoundedAndDeterministic(t *testing.T) {
	cases := [][]domain.Observation{
		nil,
		{makeObservation(domain.SourceAutomatedInference, false, daysAgo(400), 0, 9)},
		{
			makeObservation(domain.SourceAuthoritativeRegistry, true, 0, 100, 0),
			makeObservation(domain.SourceCarrierReported, true, daysAgo(1), 50, 0),
			makeObservation(domain.SourcePhoneVerified, true, daysAgo(2), 25, 0),
		},
	}

	for _, obs := range cases {
		first := Score(nil, obs, "Cardiology", testNow)
		second := Score(nil, obs, "Cardiology", testNow)
		assert.Equal(t, first, second, "same inputs must produce same output")
		assert.GreaterOrEqual(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, 100)
	}
}

// The third observation is a discontinuous step (15 -> 25), not interpolated.
func TestScore_VolumeStepAtThreeObservations(t *testing.T) {
	two := []domain.Observation{
		makeObservation(domain.SourceCrowdReported, true, daysAgo(5), 0, 0),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(5), 0, 0),
	}
	three := append(two, makeObservation(domain.SourceCrowdReported, true, daysAgo(5), 0, 0))

	resTwo := Score(nil, two, "Dermatology", testNow)
	resThree := Score(nil, three, "Dermatology", testNow)

	assert.Equal(t, 15, resTwo.VolumeScore)
	assert.Equal(t, 25, resThree.VolumeScore)
	assert.Equal(t, 10, resThree.VolumeScore-resTwo.VolumeScore)
}

func TestScore_VolumeLadder(t *testing.T) {
	assert.Equal(t, 0, scoreVolume(0))
	assert.Equal(t, 10, scoreVolume(1))
	assert.Equal(t, 15, scoreVolume(2))
	assert.Equal(t, 25, scoreVolume(3))
	assert.Equal(t, 25, scoreVolume(17))
}

func TestScore_RecencyLadder(t *testing.T) {
	threshold := 60 // specialist default

	tests := []struct {
		name string
		days int
		want int
	}{
		{"half threshold", 30, 30},
		{"at threshold", 60, 20},
		{"1.5x threshold", 90, 10},
		{"within tail", 180, 5},
		{"beyond tail", 181, 0},
		{"fresh", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verified := testNow.Add(-daysAgo(tt.days))
			points, days := scoreRecency(&verified, threshold, testNow)
			assert.Equal(t, tt.want, points)
			assert.Equal(t, tt.days, days)
		})
	}
}

func TestScore_NeverVerifiedScoresZeroRecency(t *testing.T) {
	res := Score(nil, nil, "Oncology", testNow)
	assert.Equal(t, 0, res.RecencyScore)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, domain.LevelVeryLow, res.Level)
	assert.Equal(t, domain.StatusUnknown, res.Status)
	assert.True(t, res.ReverifyRecommended)
}

func TestScore_AgreementLadder(t *testing.T) {
	tests := []struct {
		up, down, want int
	}{
		{10, 0, 20},  // 100%
		{8, 2, 15},   // 80%
		{6, 4, 10},   // 60%
		{4, 6, 5},    // 40%
		{3, 7, 0},    // 30%
		{0, 0, 0},    // no votes
		{0, 10, 0},   // 0%
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoreAgreement(tt.up, tt.down), "up=%d down=%d", tt.up, tt.down)
	}
}

func TestScore_SourceQualityUsesMostAuthoritative(t *testing.T) {
	obs := []domain.Observation{
		makeObservation(domain.SourceAutomatedInference, true, daysAgo(3), 0, 0),
		makeObservation(domain.SourceCarrierReported, true, daysAgo(3), 0, 0),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(3), 0, 0),
	}
	res := Score(nil, obs, "Cardiology", testNow)
	assert.Equal(t, 20, res.SourceScore)
}

func TestScore_UnknownSourceDefaults(t *testing.T) {
	obs := []domain.Observation{
		makeObservation(domain.DataSource("fax-blast"), true, daysAgo(3), 0, 0),
	}
	res := Score(nil, obs, "Cardiology", testNow)
	assert.Equal(t, 10, res.SourceScore)
}

func TestScore_StatusMajority(t *testing.T) {
	accepted := makeObservation(domain.SourceCrowdReported, true, daysAgo(1), 0, 0)
	rejected := makeObservation(domain.SourceCrowdReported, false, daysAgo(1), 0, 0)

	assert.Equal(t, domain.StatusAccepted, statusFor([]domain.Observation{accepted, accepted, rejected}))
	assert.Equal(t, domain.StatusNotAccepted, statusFor([]domain.Observation{rejected, rejected, accepted}))
	assert.Equal(t, domain.StatusPending, statusFor([]domain.Observation{accepted, rejected}))
	assert.Equal(t, domain.StatusUnknown, statusFor(nil))
}

func TestScore_StalenessMetadata(t *testing.T) {
	// Mental health: 30-day threshold. Verified 25 days ago => 5 days until
	// stale and past the 80% mark, so re-verification is recommended.
	obs := []domain.Observation{
		makeObservation(domain.SourceCrowdReported, true, daysAgo(25), 0, 0),
	}
	res := Score(nil, obs, "Psychiatry", testNow)

	assert.Equal(t, 30, res.ThresholdDays)
	assert.Equal(t, 5, res.DaysUntilStale)
	assert.True(t, res.ReverifyRecommended)

	// Verified 10 days ago: 20 days left, below the 80% mark.
	fresh := []domain.Observation{
		makeObservation(domain.SourceCrowdReported, true, daysAgo(10), 0, 0),
	}
	res = Score(nil, fresh, "Psychiatry", testNow)
	assert.Equal(t, 20, res.DaysUntilStale)
	assert.False(t, res.ReverifyRecommended)
}

func TestScore_ExplanationNamesAllFourTerms(t *testing.T) {
	obs := []domain.Observation{
		makeObservation(domain.SourceAuthoritativeRegistry, true, daysAgo(10), 8, 2),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(20), 0, 0),
		makeObservation(domain.SourceCrowdReported, true, daysAgo(30), 0, 0),
	}
	res := Score(nil, obs, "Internal Medicine", testNow)

	require.NotEmpty(t, res.Explanation)
	assert.Contains(t, res.Explanation, "source quality 25/25")
	assert.Contains(t, res.Explanation, "recency 30/30")
	assert.Contains(t, res.Explanation, "volume 25/25")
	assert.Contains(t, res.Explanation, "agreement 15/20")
}

func TestScore_FallsBackToRecordLastVerified(t *testing.T) {
	// Pre-seeded record with no crowd observations yet keeps its imported
	// verification timestamp for recency.
	verified := testNow.Add(-daysAgo(10))
	rec := &domain.AcceptanceRecord{LastVerifiedAt: &verified}

	res := Score(rec, nil, "Internal Medicine", testNow)
	assert.Equal(t, 30, res.RecencyScore)
	assert.Equal(t, 0, res.VolumeScore)
}
