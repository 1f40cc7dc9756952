package domain

import "strings"

// TrendDirection classifies the slope of a demand series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "Increasing"
	TrendDecreasing TrendDirection = "Decreasing"
	TrendStable     TrendDirection = "Stable"
)

// ModelQuality buckets the holdout MAPE of a fitted forecast.
type ModelQuality string

const (
	QualityGood ModelQuality = "Good"
	QualityFair ModelQuality = "Fair"
	QualityPoor ModelQuality = "Poor"
)

// Urgency of a reorder suggestion.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

// RiskLevel is the stockout risk of a product line given its current stock.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low Risk"
	RiskMedium RiskLevel = "Medium Risk"
	RiskHigh   RiskLevel = "High Risk"
)

// RunStatus is the completion state of an analysis run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
)

// SeasonalityMode selects how seasonal effects combine with the trend.
type SeasonalityMode string

const (
	SeasonalityAdditive       SeasonalityMode = "additive"
	SeasonalityMultiplicative SeasonalityMode = "multiplicative"
)

// MalformedPolicy decides what happens to unparseable input rows.
type MalformedPolicy string

const (
	MalformedSkip  MalformedPolicy = "skip"
	MalformedAbort MalformedPolicy = "abort"
)

var urgencyRanks = map[Urgency]int{
	UrgencyLow:    0,
	UrgencyMedium: 1,
	UrgencyHigh:   2,
}

var riskRanks = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// Rank returns 0 for Low, 1 for Medium and 2 for High.
func (u Urgency) Rank() int {
	return urgencyRanks[u]
}

// Escalate raises the urgency by one level, saturating at High.
func (u Urgency) Escalate() Urgency {
	switch u {
	case UrgencyLow:
		return UrgencyMedium
	default:
		return UrgencyHigh
	}
}

// Rank returns 0 for Low Risk, 1 for Medium Risk and 2 for High Risk.
func (r RiskLevel) Rank() int {
	return riskRanks[r]
}

// Urgency maps a risk level onto the urgency scale it mirrors.
func (r RiskLevel) Urgency() Urgency {
	switch r {
	case RiskHigh:
		return UrgencyHigh
	case RiskMedium:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ParseSeasonalityMode returns the mode for a label (case-insensitive).
func ParseSeasonalityMode(label string) (SeasonalityMode, bool) {
	switch SeasonalityMode(strings.ToLower(strings.TrimSpace(label))) {
	case SeasonalityAdditive:
		return SeasonalityAdditive, true
	case SeasonalityMultiplicative:
		return SeasonalityMultiplicative, true
	}

	return "", false
}
