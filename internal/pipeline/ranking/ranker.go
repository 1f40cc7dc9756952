// Package ranking scores reorder suggestions and orders them by priority.
package ranking

import (
	"math"
	"sort"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/stats"
)

// Action labels shown next to ranked products.
const (
	ActionImmediate = "Immediate Order Required"
	ActionTwoDays   = "Order Within 2 Days"
	ActionThisWeek  = "Order This Week"
	ActionMonitor   = "Monitor Closely"
)

var levelScores = map[int]float64{0: 0, 1: 0.5, 2: 1}

// Ranker assigns priority scores and a deterministic total order.
type Ranker struct {
	weights config.PriorityWeights
	topN    int
}

func NewRanker(cfg config.ForecastConfig) *Ranker {
	return &Ranker{weights: cfg.Weights, topN: cfg.TopN}
}

// Rank scores every suggestion in place and returns the full ordering and the
// top-N slice. values maps product lines to their sales value in the window;
// lines without a value contribute nothing to the value component.
func (r *Ranker) Rank(suggestions []*domain.ReorderSuggestion, values map[string]float64) (ranking, top []domain.RankedProduct) {
	var maxValue float64
	for _, s := range suggestions {
		maxValue = math.Max(maxValue, values[s.ProductLine])
	}

	ordered := make([]*domain.ReorderSuggestion, len(suggestions))
	copy(ordered, suggestions)
	for _, s := range ordered {
		s.PriorityScore = r.Score(s, values[s.ProductLine], maxValue)
		s.ActionRequired = Action(s.Urgency, s.PriorityScore)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})

	ranking = make([]domain.RankedProduct, len(ordered))
	for i, s := range ordered {
		s.Rank = i + 1
		ranking[i] = domain.RankedProduct{
			Rank:           s.Rank,
			ProductLine:    s.ProductLine,
			PriorityScore:  s.PriorityScore,
			RiskLevel:      s.RiskLevel,
			Urgency:        s.Urgency,
			TrendDirection: s.TrendDirection,
			ActionRequired: s.ActionRequired,
			Recommendation: s.Recommendation,
		}
	}

	top = ranking
	if r.topN > 0 && len(top) > r.topN {
		top = top[:r.topN]
	}
	return ranking, top
}

// Score combines risk, urgency, trend and value into a 0-100 priority score.
func (r *Ranker) Score(s *domain.ReorderSuggestion, value, maxValue float64) float64 {
	total := r.weights.Sum()
	if total <= 0 {
		return 0
	}

	score := r.weights.Risk*levelScores[s.RiskLevel.Rank()] +
		r.weights.Urgency*levelScores[s.Urgency.Rank()] +
		r.weights.Trend*r.trendComponent(s) +
		r.weights.Value*valueComponent(value, maxValue)

	return stats.RoundFloat(100*score/total, 2)
}

func (r *Ranker) trendComponent(s *domain.ReorderSuggestion) float64 {
	if s.TrendDirection != domain.TrendIncreasing || s.LeadTimeDays <= 0 || r.weights.TrendSaturation <= 0 {
		return 0
	}
	mean := s.LeadTimeDemand / float64(s.LeadTimeDays)
	if mean <= 0 {
		return 0
	}
	relative := s.TrendMagnitude / mean
	return math.Min(math.Max(relative/r.weights.TrendSaturation, 0), 1)
}

func valueComponent(value, maxValue float64) float64 {
	if maxValue <= 0 || value <= 0 {
		return 0
	}
	return value / maxValue
}

// Action maps urgency and score to the action label.
func Action(urgency domain.Urgency, score float64) string {
	switch {
	case urgency == domain.UrgencyHigh:
		return ActionImmediate
	case score > 70:
		return ActionTwoDays
	case score > 40:
		return ActionThisWeek
	default:
		return ActionMonitor
	}
}

func less(a, b *domain.ReorderSuggestion) bool {
	if a.PriorityScore != b.PriorityScore {
		return a.PriorityScore > b.PriorityScore
	}
	if a.RiskLevel.Rank() != b.RiskLevel.Rank() {
		return a.RiskLevel.Rank() > b.RiskLevel.Rank()
	}
	if a.Urgency.Rank() != b.Urgency.Rank() {
		return a.Urgency.Rank() > b.Urgency.Rank()
	}
	return a.ProductLine < b.ProductLine
}
