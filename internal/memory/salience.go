package memory

import (
	"math"

	"codenerd-cognitive/internal/config"
)

// Salience computes the pure salience function over a record's current
// importance, hours since last access, access count, and derived review
// count. Result is clamped to [0,1].
func Salience(constants config.SalienceConstants, importance float64, hoursSinceAccess float64, accessCount int) float64 {
	reviewCount := accessCount / 2

	retention := math.Exp(-constants.Lambda * hoursSinceAccess / (1 + 0.5*float64(reviewCount)))
	accessBoost := math.Min(constants.AccessBoostCap, constants.AccessBoostWeight*float64(accessCount))
	importanceW := constants.ImportanceWeight * importance
	timeFactor := constants.TimeFactorWeight * math.Exp(-hoursSinceAccess/constants.TimeFactorScaleH)

	salience := 0.3*retention + accessBoost + importanceW + timeFactor
	if salience > 1 {
		salience = 1
	}
	if salience < 0 {
		salience = 0
	}
	return salience
}

// ShouldForget reports whether salience falls below threshold.
func ShouldForget(salience, threshold float64) bool {
	return salience < threshold
}

// NextReviewIntervalHours delegates to the configured spaced-repetition
// schedule.
func NextReviewIntervalHours(reviewCount int) float64 {
	return config.NextReviewIntervalHours(reviewCount)
}

// EligibleForConsolidation reports whether an episodic record meets the
// consolidation rule: created long enough ago, accessed enough times,
// and last accessed within MaxHoursSinceAccess (still in use).
func EligibleForConsolidation(rule config.ConsolidationRule, ageHours, hoursSinceAccess float64, accessCount int) bool {
	return ageHours >= rule.MinAgeHours &&
		accessCount >= rule.MinAccessCount &&
		hoursSinceAccess <= rule.MaxHoursSinceAccess
}
