package ranking

import (
	"testing"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func suggestion(line string, risk domain.RiskLevel, urgency domain.Urgency) *domain.ReorderSuggestion {
	return &domain.ReorderSuggestion{
		ProductLine:    line,
		LeadTimeDays:   7,
		LeadTimeDemand: 70,
		RiskLevel:      risk,
		Urgency:        urgency,
		TrendDirection: domain.TrendStable,
	}
}

func names(ranking []domain.RankedProduct) []string {
	out := make([]string, len(ranking))
	for i, r := range ranking {
		out[i] = r.ProductLine
	}
	return out
}

func TestScoreComponents(t *testing.T) {
	r := NewRanker(config.DefaultForecastConfig())

	tests := []struct {
		name  string
		s     *domain.ReorderSuggestion
		value float64
		want  float64
	}{
		{"all low", suggestion("A", domain.RiskLow, domain.UrgencyLow), 0, 0},
		{"high risk and urgency", suggestion("A", domain.RiskHigh, domain.UrgencyHigh), 0, 70},
		{"medium risk and urgency", suggestion("A", domain.RiskMedium, domain.UrgencyMedium), 0, 35},
		{"top value only", suggestion("A", domain.RiskLow, domain.UrgencyLow), 500, 10},
		{"half value", suggestion("A", domain.RiskLow, domain.UrgencyLow), 250, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Score(tt.s, tt.value, 500), 1e-9)
		})
	}
}

func TestScoreTrendSaturates(t *testing.T) {
	r := NewRanker(config.DefaultForecastConfig())

	s := suggestion("A", domain.RiskLow, domain.UrgencyLow)
	s.TrendDirection = domain.TrendIncreasing

	// mean lead-time velocity is 10/day; saturation at 5% of it is 0.5/day
	s.TrendMagnitude = 0.25
	assert.InDelta(t, 10, r.Score(s, 0, 0), 1e-9)

	s.TrendMagnitude = 3
	assert.InDelta(t, 20, r.Score(s, 0, 0), 1e-9)

	s.TrendDirection = domain.TrendDecreasing
	s.TrendMagnitude = -3
	assert.Zero(t, r.Score(s, 0, 0))
}

func TestRankOrderAndTieBreaks(t *testing.T) {
	cfg := config.DefaultForecastConfig()
	cfg.Weights = config.PriorityWeights{Risk: 1, Urgency: 0, Trend: 0, Value: 0, TrendSaturation: 0.05}
	r := NewRanker(cfg)

	build := func() []*domain.ReorderSuggestion {
		return []*domain.ReorderSuggestion{
			suggestion("Toys", domain.RiskMedium, domain.UrgencyMedium),
			suggestion("Books", domain.RiskMedium, domain.UrgencyHigh),
			suggestion("Apparel", domain.RiskMedium, domain.UrgencyMedium),
			suggestion("Garden", domain.RiskHigh, domain.UrgencyLow),
			suggestion("Beauty", domain.RiskLow, domain.UrgencyLow),
		}
	}

	forward := build()
	ranking, top := r.Rank(forward, nil)
	want := []string{"Garden", "Books", "Apparel", "Toys", "Beauty"}
	assert.Equal(t, want, names(ranking))
	assert.Equal(t, ranking, top)
	for i, rp := range ranking {
		assert.Equal(t, i+1, rp.Rank)
	}
	assert.Equal(t, 1, forward[3].Rank)
	assert.Equal(t, ActionImmediate, forward[1].ActionRequired)

	reversed := build()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	reRanked, _ := r.Rank(reversed, nil)
	assert.Equal(t, ranking, reRanked)
}

func TestRankTopN(t *testing.T) {
	cfg := config.DefaultForecastConfig()
	cfg.TopN = 2
	r := NewRanker(cfg)

	ranking, top := r.Rank([]*domain.ReorderSuggestion{
		suggestion("A", domain.RiskLow, domain.UrgencyLow),
		suggestion("B", domain.RiskHigh, domain.UrgencyHigh),
		suggestion("C", domain.RiskMedium, domain.UrgencyMedium),
	}, map[string]float64{"A": 100, "B": 50, "C": 10})

	require.Len(t, ranking, 3)
	assert.Equal(t, []string{"B", "C"}, names(top))
	assert.InDelta(t, 75, ranking[0].PriorityScore, 1e-9)
	assert.InDelta(t, 10, ranking[2].PriorityScore, 1e-9)
}

func TestAction(t *testing.T) {
	assert.Equal(t, ActionImmediate, Action(domain.UrgencyHigh, 10))
	assert.Equal(t, ActionTwoDays, Action(domain.UrgencyMedium, 71))
	assert.Equal(t, ActionThisWeek, Action(domain.UrgencyMedium, 45))
	assert.Equal(t, ActionMonitor, Action(domain.UrgencyLow, 40))
}

func TestRankEmpty(t *testing.T) {
	ranking, top := NewRanker(config.DefaultForecastConfig()).Rank(nil, nil)
	assert.Empty(t, ranking)
	assert.Empty(t, top)
}
