package report

import (
	"sort"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// DefaultDashboardTopN is used when no top-N is configured.
const DefaultDashboardTopN = 5

// Dashboard reshapes a report into the dashboard projection.
func Dashboard(r *domain.AnalysisReport, topN int) domain.DashboardData {
	if topN <= 0 {
		topN = DefaultDashboardTopN
	}

	data := domain.DashboardData{
		Summary: domain.DashboardSummary{
			TotalProducts:        r.Summary.TotalProducts,
			HighPriorityAlerts:   r.Summary.HighPriorityAlerts,
			MediumPriorityAlerts: r.Summary.MediumPriorityAlerts,
			LowPriorityAlerts:    r.Summary.LowPriorityAlerts,
			DataQualityScore:     r.Summary.DataQualityScore,
			Status:               r.Status,
		},
		TopPriorityProducts: []domain.TopPriorityProduct{},
		VelocityTrends:      []domain.VelocityTrend{},
		ReorderAlerts:       []domain.ReorderAlert{},
	}

	for i, rp := range r.Ranking {
		if i == topN {
			break
		}
		data.TopPriorityProducts = append(data.TopPriorityProducts, domain.TopPriorityProduct{
			ProductLine:    rp.ProductLine,
			PriorityScore:  rp.PriorityScore,
			Urgency:        rp.Urgency,
			Recommendation: rp.Recommendation,
			Trend:          rp.TrendDirection,
		})
	}

	for _, p := range r.Products {
		if p.Velocity != nil {
			trend := domain.VelocityTrend{
				ProductLine:     p.ProductLine,
				CurrentVelocity: p.Velocity.AvgDailyVelocity,
				TrendDirection:  p.Velocity.TrendDirection,
				Next7Days:       []float64{},
			}
			if p.Forecast != nil {
				trend.Next7Days = p.Forecast.Summary.Next7Days
			}
			data.VelocityTrends = append(data.VelocityTrends, trend)
		}

		s := p.Reorder
		if s == nil || s.Urgency == domain.UrgencyLow {
			continue
		}
		data.ReorderAlerts = append(data.ReorderAlerts, domain.ReorderAlert{
			ProductLine:   s.ProductLine,
			Urgency:       s.Urgency,
			Action:        s.ActionRequired,
			Timing:        s.OptimalOrderTiming,
			Quantity:      s.SuggestedOrderQuantity,
			RiskLevel:     s.RiskLevel,
			PriorityScore: s.PriorityScore,
		})
	}

	sort.SliceStable(data.ReorderAlerts, func(i, j int) bool {
		a, b := data.ReorderAlerts[i], data.ReorderAlerts[j]
		if a.Urgency != b.Urgency {
			return a.Urgency.Rank() > b.Urgency.Rank()
		}
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		return a.ProductLine < b.ProductLine
	})

	return data
}
