// Package reorder converts demand forecasts into reorder points, safety stock and
// order quantities.
package reorder

import (
	"fmt"
	"math"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
)

// Order timing labels.
const (
	TimingToday       = "Today"
	TimingTwoDays     = "Within 2 days"
	TimingWeek        = "Within 1 week"
	TimingNotRequired = "Not required"
)

const quantityDecimals = 2

// Calculator applies the reorder policy to one product line at a time.
type Calculator struct {
	leadTime         int
	safetyFactor     float64
	z                float64
	minOrder         int
	maxOrder         int
	thresholdDays    int
	urgencyThreshold float64
}

// NewCalculator creates a calculator from a validated configuration.
func NewCalculator(cfg config.ForecastConfig) *Calculator {
	return &Calculator{
		leadTime:         cfg.LeadTimeDays,
		safetyFactor:     cfg.SafetyStockFactor,
		z:                stats.ZScore(cfg.ConfidenceLevel),
		minOrder:         cfg.MinOrderQuantity,
		maxOrder:         cfg.MaxOrderQuantity,
		thresholdDays:    cfg.ReorderThresholdDays,
		urgencyThreshold: cfg.UrgencyTrendThreshold,
	}
}

// Calculate computes the reorder suggestion for a forecast and the current stock.
// Priority fields are left for the ranker.
func (c *Calculator) Calculate(fc domain.Forecast, profile domain.VelocityProfile, currentStock int) domain.ReorderSuggestion {
	s := domain.ReorderSuggestion{
		ProductLine:    fc.ProductLine,
		CurrentStock:   currentStock,
		LeadTimeDays:   c.leadTime,
		TrendDirection: profile.TrendDirection,
		TrendMagnitude: profile.TrendMagnitude,
	}
	stock := float64(currentStock)

	// 1. Lead-time demand and its spread, assuming independent days
	lead := c.leadTime
	if lead > len(fc.Points) {
		lead = len(fc.Points)
	}
	var demand, variance float64
	for _, p := range fc.Points[:lead] {
		demand += p.Point
		if c.z > 0 {
			sd := (p.Upper - p.Lower) / (2 * c.z)
			variance += sd * sd
		}
	}
	s.LeadTimeDemand = stats.RoundFloat(demand, quantityDecimals)
	s.LeadTimeDemandStdDev = stats.RoundFloat(math.Sqrt(variance), quantityDecimals)

	// 2. Safety stock = factor × lead-time demand stddev
	safety := math.Max(0, c.safetyFactor*math.Sqrt(variance))
	s.SafetyStock = stats.RoundFloat(safety, quantityDecimals)

	// 3. Reorder point = lead-time demand + safety stock
	s.ReorderPoint = stats.RoundFloat(demand+safety, quantityDecimals)

	// 4. Order quantity covers the gap to the reorder point, within order limits
	s.SuggestedOrderQuantity = c.orderQuantity(s.ReorderPoint - stock)

	// 5. Risk from where stock sits against safety stock and reorder point
	switch {
	case stock < s.SafetyStock:
		s.RiskLevel = domain.RiskHigh
	case stock < s.ReorderPoint:
		s.RiskLevel = domain.RiskMedium
	default:
		s.RiskLevel = domain.RiskLow
	}

	// 6. Urgency mirrors risk, one level higher on a steep upward trend
	s.Urgency = s.RiskLevel.Urgency()
	if profile.TrendDirection == domain.TrendIncreasing && profile.TrendMagnitude > c.urgencyThreshold {
		s.Urgency = s.Urgency.Escalate()
	}

	// 7. Days of supply and cover at the forecast mean velocity
	velocity := fc.Summary.MeanVelocity
	if velocity > 0 {
		s.DaysOfSupply = stats.RoundFloat(float64(s.SuggestedOrderQuantity)/velocity, 1)
		s.DaysOfCover = stats.RoundFloat(stock/velocity, 1)
	}

	// 8. Timing and recommendation
	s.OptimalOrderTiming = c.timing(s, velocity)
	s.Recommendation = recommendation(s, velocity)
	return s
}

func (c *Calculator) orderQuantity(gap float64) int {
	if gap <= 0 {
		return 0
	}
	qty := int(math.Ceil(gap))
	if qty < c.minOrder {
		qty = c.minOrder
	}
	if qty > c.maxOrder {
		qty = c.maxOrder
	}
	return qty
}

func (c *Calculator) timing(s domain.ReorderSuggestion, velocity float64) string {
	switch {
	case velocity <= 0 || s.SuggestedOrderQuantity == 0:
		return TimingNotRequired
	case s.Urgency == domain.UrgencyHigh || s.DaysOfCover <= float64(c.thresholdDays):
		return TimingToday
	case s.TrendDirection == domain.TrendIncreasing:
		return TimingTwoDays
	default:
		return TimingWeek
	}
}

func recommendation(s domain.ReorderSuggestion, velocity float64) string {
	if velocity <= 0 {
		return fmt.Sprintf("Monitor %s - very low demand predicted.", s.ProductLine)
	}
	if s.SuggestedOrderQuantity == 0 {
		return fmt.Sprintf("No order needed: stock of %d units is at or above the reorder point of %.0f.", s.CurrentStock, s.ReorderPoint)
	}

	switch s.TrendDirection {
	case domain.TrendIncreasing:
		return fmt.Sprintf("Order %d units before stock reaches %.0f. Demand is increasing.", s.SuggestedOrderQuantity, s.ReorderPoint)
	case domain.TrendDecreasing:
		return fmt.Sprintf("Consider ordering %d units before stock reaches %.0f. Demand is decreasing, monitor closely.", s.SuggestedOrderQuantity, s.ReorderPoint)
	default:
		return fmt.Sprintf("Order %d units before stock reaches %.0f to maintain %.0f days of supply.", s.SuggestedOrderQuantity, s.ReorderPoint, s.DaysOfSupply)
	}
}
