package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

var suggestionHeaders = []string{
	"rank",
	"product_line",
	"current_stock",
	"lead_time_days",
	"lead_time_demand",
	"safety_stock",
	"reorder_point",
	"suggested_order_quantity",
	"days_of_supply",
	"trend_direction",
	"urgency",
	"risk_level",
	"priority_score",
	"action_required",
	"optimal_order_timing",
	"recommendation",
}

// WriteSuggestionsCSV writes one row per reorder suggestion in rank order.
func WriteSuggestionsCSV(w io.Writer, r *domain.AnalysisReport) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(suggestionHeaders); err != nil {
		return err
	}

	for _, rp := range r.Ranking {
		p, ok := r.Product(rp.ProductLine)
		if !ok || p.Reorder == nil {
			continue
		}
		s := p.Reorder
		record := []string{
			strconv.Itoa(s.Rank),
			s.ProductLine,
			strconv.Itoa(s.CurrentStock),
			strconv.Itoa(s.LeadTimeDays),
			formatFloat(s.LeadTimeDemand),
			formatFloat(s.SafetyStock),
			formatFloat(s.ReorderPoint),
			strconv.Itoa(s.SuggestedOrderQuantity),
			formatFloat(s.DaysOfSupply),
			string(s.TrendDirection),
			string(s.Urgency),
			string(s.RiskLevel),
			formatFloat(s.PriorityScore),
			s.ActionRequired,
			s.OptimalOrderTiming,
			s.Recommendation,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
