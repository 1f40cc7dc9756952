package reorder

import (
	"testing"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
	"github.com/stretchr/testify/assert"
)

var start = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

// flatForecast returns a horizon where every day has the same point and a
// symmetric interval with the given daily standard deviation.
func flatForecast(days int, point, sd float64) domain.Forecast {
	z := stats.ZScore(0.95)
	fc := domain.Forecast{ProductLine: "Sports", HorizonDays: days, ConfidenceLevel: 0.95}
	for i := 0; i < days; i++ {
		fc.Points = append(fc.Points, domain.ForecastPoint{
			Date:  start.AddDate(0, 0, i),
			Point: point,
			Lower: point - z*sd,
			Upper: point + z*sd,
		})
	}
	fc.Summary.MeanVelocity = point
	return fc
}

func stable() domain.VelocityProfile {
	return domain.VelocityProfile{TrendDirection: domain.TrendStable}
}

func TestCalculateLeadTimeDemandAndSafetyStock(t *testing.T) {
	cfg := config.DefaultForecastConfig()
	c := NewCalculator(cfg)

	s := c.Calculate(flatForecast(30, 10, 2), stable(), 100)

	// 7 days × 10 units; σ_LT = 2·√7 ≈ 5.29; SS = 1.5 × 5.29 ≈ 7.94
	assert.InDelta(t, 70, s.LeadTimeDemand, 0.01)
	assert.InDelta(t, 5.29, s.LeadTimeDemandStdDev, 0.01)
	assert.InDelta(t, 7.94, s.SafetyStock, 0.01)
	assert.InDelta(t, 77.94, s.ReorderPoint, 0.01)
	assert.Zero(t, s.SuggestedOrderQuantity)
	assert.Equal(t, domain.RiskLow, s.RiskLevel)
	assert.Equal(t, domain.UrgencyLow, s.Urgency)
	assert.Equal(t, TimingNotRequired, s.OptimalOrderTiming)
	assert.Equal(t, "No order needed: stock of 100 units is at or above the reorder point of 78.", s.Recommendation)
	assert.InDelta(t, 10, s.DaysOfCover, 0.01)
}

func TestCalculateRiskAndClamping(t *testing.T) {
	tests := []struct {
		name    string
		stock   int
		min     int
		max     int
		qty     int
		risk    domain.RiskLevel
		urgency domain.Urgency
		timing  string
	}{
		{"below safety stock", 5, 10, 1000, 73, domain.RiskHigh, domain.UrgencyHigh, TimingToday},
		{"between safety stock and reorder point", 50, 10, 1000, 28, domain.RiskMedium, domain.UrgencyMedium, TimingWeek},
		{"raised to minimum order", 75, 10, 1000, 10, domain.RiskMedium, domain.UrgencyMedium, TimingWeek},
		{"capped at maximum order", 0, 10, 40, 40, domain.RiskHigh, domain.UrgencyHigh, TimingToday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultForecastConfig()
			cfg.MinOrderQuantity = tt.min
			cfg.MaxOrderQuantity = tt.max
			s := NewCalculator(cfg).Calculate(flatForecast(30, 10, 2), stable(), tt.stock)

			assert.Equal(t, tt.qty, s.SuggestedOrderQuantity)
			assert.Equal(t, tt.risk, s.RiskLevel)
			assert.Equal(t, tt.urgency, s.Urgency)
			assert.Equal(t, tt.timing, s.OptimalOrderTiming)
			assert.GreaterOrEqual(t, s.SuggestedOrderQuantity, tt.min)
			assert.LessOrEqual(t, s.SuggestedOrderQuantity, tt.max)
			assert.LessOrEqual(t, 0.0, s.SafetyStock)
			assert.LessOrEqual(t, s.SafetyStock, s.ReorderPoint)
		})
	}
}

func TestCalculateUrgencyEscalatesOnSteepTrend(t *testing.T) {
	c := NewCalculator(config.DefaultForecastConfig())
	fc := flatForecast(30, 10, 2)

	rising := domain.VelocityProfile{TrendDirection: domain.TrendIncreasing, TrendMagnitude: 1.0}
	s := c.Calculate(fc, rising, 100)
	assert.Equal(t, domain.RiskLow, s.RiskLevel)
	assert.Equal(t, domain.UrgencyMedium, s.Urgency)

	gentle := domain.VelocityProfile{TrendDirection: domain.TrendIncreasing, TrendMagnitude: 0.2}
	s = c.Calculate(fc, gentle, 100)
	assert.Equal(t, domain.UrgencyLow, s.Urgency)

	s = c.Calculate(fc, rising, 50)
	assert.Equal(t, domain.UrgencyHigh, s.Urgency)
	assert.Equal(t, TimingToday, s.OptimalOrderTiming)
	assert.Equal(t, "Order 28 units before stock reaches 78. Demand is increasing.", s.Recommendation)
}

func TestCalculateTimingFromDaysOfCover(t *testing.T) {
	cfg := config.DefaultForecastConfig()
	cfg.SafetyStockFactor = 0
	c := NewCalculator(cfg)

	// ROP = 70 with no safety stock; 25 units cover 2.5 days, under the 3-day threshold.
	s := c.Calculate(flatForecast(30, 10, 2), stable(), 25)
	assert.Equal(t, domain.RiskMedium, s.RiskLevel)
	assert.Equal(t, TimingToday, s.OptimalOrderTiming)

	decreasing := domain.VelocityProfile{TrendDirection: domain.TrendDecreasing, TrendMagnitude: -0.4}
	s = c.Calculate(flatForecast(30, 10, 2), decreasing, 60)
	assert.Equal(t, TimingWeek, s.OptimalOrderTiming)
	assert.Equal(t, "Consider ordering 10 units before stock reaches 70. Demand is decreasing, monitor closely.", s.Recommendation)
}

func TestCalculateZeroDemand(t *testing.T) {
	s := NewCalculator(config.DefaultForecastConfig()).Calculate(flatForecast(30, 0, 0), stable(), 0)

	assert.Zero(t, s.LeadTimeDemand)
	assert.Zero(t, s.SafetyStock)
	assert.Zero(t, s.ReorderPoint)
	assert.Zero(t, s.SuggestedOrderQuantity)
	assert.Equal(t, domain.RiskLow, s.RiskLevel)
	assert.Equal(t, domain.UrgencyLow, s.Urgency)
	assert.Equal(t, "Monitor Sports - very low demand predicted.", s.Recommendation)
}

func TestCalculateLeadTimeBeyondHorizon(t *testing.T) {
	cfg := config.DefaultForecastConfig()
	cfg.LeadTimeDays = 10
	s := NewCalculator(cfg).Calculate(flatForecast(5, 4, 0), stable(), 0)

	assert.InDelta(t, 20, s.LeadTimeDemand, 1e-9)
	assert.Equal(t, 20, s.SuggestedOrderQuantity)
}

func TestCalculateStableRecommendation(t *testing.T) {
	s := NewCalculator(config.DefaultForecastConfig()).Calculate(flatForecast(30, 10, 2), stable(), 50)
	assert.Equal(t, "Order 28 units before stock reaches 78 to maintain 3 days of supply.", s.Recommendation)
}
