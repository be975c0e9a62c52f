package config

import "math"

// SalienceConstants are the fixed coefficients of the memory store's
// salience function. These are algorithmic constants rather than
// operator-tunable knobs, so they are not part of MemoryConfig, but are
// kept here alongside it for discoverability.
type SalienceConstants struct {
	Lambda            float64 // decay rate, -ln(1-0.56)
	AccessBoostCap    float64
	AccessBoostWeight float64
	ImportanceWeight  float64
	TimeFactorWeight  float64
	TimeFactorScaleH  float64
}

// DefaultSalienceConstants returns the fixed salience function coefficients.
func DefaultSalienceConstants() SalienceConstants {
	return SalienceConstants{
		Lambda:            -math.Log(1 - 0.56),
		AccessBoostCap:     0.3,
		AccessBoostWeight:  0.05,
		ImportanceWeight:   0.4,
		TimeFactorWeight:   0.3,
		TimeFactorScaleH:   168,
	}
}

// ReviewIntervalsHours are the spaced-repetition intervals by review count
// (index 0 = first review). Past the table the interval is
// 720*(1+0.1*(count-6)): equal to the last entry at count 6, then growing
// linearly.
var ReviewIntervalsHours = []float64{1, 24, 72, 168, 336, 720}

// NextReviewIntervalHours returns the next review interval for a given
// review count, following the spaced-repetition schedule.
func NextReviewIntervalHours(reviewCount int) float64 {
	if reviewCount < len(ReviewIntervalsHours) {
		return ReviewIntervalsHours[reviewCount]
	}
	return 720 * (1 + 0.1*float64(reviewCount-6))
}

// ConsolidationRule holds the eligibility thresholds for promoting an
// episodic record to semantic memory.
type ConsolidationRule struct {
	MinAgeHours          float64
	MinAccessCount        int
	MaxHoursSinceAccess   float64
	PromotedImportanceMin float64
}

// DefaultConsolidationRule returns the default consolidation eligibility rule.
func DefaultConsolidationRule() ConsolidationRule {
	return ConsolidationRule{
		MinAgeHours:           24,
		MinAccessCount:        3,
		MaxHoursSinceAccess:   24,
		PromotedImportanceMin: 0.6,
	}
}
