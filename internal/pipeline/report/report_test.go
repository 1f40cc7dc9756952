package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modeled(line string, urgency domain.Urgency, score float64, rank int) domain.ProductAnalysis {
	return domain.ProductAnalysis{
		ProductLine: line,
		Velocity:    &domain.VelocityProfile{ProductLine: line, AvgDailyVelocity: 12, TrendDirection: domain.TrendStable},
		Forecast: &domain.Forecast{
			ProductLine: line,
			Summary:     domain.ForecastSummary{Next7Days: []float64{1, 2, 3, 4, 5, 6, 7}},
		},
		Reorder: &domain.ReorderSuggestion{
			ProductLine:            line,
			CurrentStock:           4,
			SuggestedOrderQuantity: 20,
			Urgency:                urgency,
			RiskLevel:              domain.RiskMedium,
			PriorityScore:          score,
			Rank:                   rank,
			ActionRequired:         "Order This Week",
			OptimalOrderTiming:     "Within 1 week",
			Recommendation:         "Order 20 units, before stock reaches 24",
		},
	}
}

func sampleInput() Input {
	return Input{
		Products: []domain.ProductAnalysis{
			modeled("Toys", domain.UrgencyMedium, 45, 2),
			{ProductLine: "Books", Excluded: true, Velocity: &domain.VelocityProfile{ProductLine: "Books", AvgDailyVelocity: 1}},
			modeled("Apparel", domain.UrgencyHigh, 80, 1),
			modeled("Garden", domain.UrgencyLow, 10, 3),
		},
		Ranking: []domain.RankedProduct{
			{Rank: 1, ProductLine: "Apparel", PriorityScore: 80, Urgency: domain.UrgencyHigh},
			{Rank: 2, ProductLine: "Toys", PriorityScore: 45, Urgency: domain.UrgencyMedium},
			{Rank: 3, ProductLine: "Garden", PriorityScore: 10, Urgency: domain.UrgencyLow},
		},
		Warnings: []domain.Warning{
			{ProductLine: "Toys", Reason: domain.WarnPoorModelQuality},
			{ProductLine: "Books", Reason: domain.WarnInsufficientHistory},
		},
		TotalRecords: 120,
	}
}

func TestAssemble(t *testing.T) {
	r := Assemble(sampleInput())

	assert.Equal(t, domain.RunCompleted, r.Status)
	assert.Equal(t, []string{"Apparel", "Books", "Garden", "Toys"}, []string{
		r.Products[0].ProductLine, r.Products[1].ProductLine, r.Products[2].ProductLine, r.Products[3].ProductLine,
	})
	assert.Equal(t, domain.ReportSummary{
		TotalProducts:        4,
		ModeledProducts:      3,
		ExcludedProducts:     1,
		HighPriorityAlerts:   1,
		MediumPriorityAlerts: 1,
		LowPriorityAlerts:    1,
		TotalRecords:         120,
	}, r.Summary)
	assert.Equal(t, "Books", r.Warnings[0].ProductLine)
	assert.NotNil(t, r.TopPriority)

	p, ok := r.Product("Garden")
	require.True(t, ok)
	assert.Equal(t, 3, p.Reorder.Rank)
	_, ok = r.Product("Missing")
	assert.False(t, ok)
}

func TestAssemblePartial(t *testing.T) {
	in := sampleInput()
	in.Products = append(in.Products, domain.ProductAnalysis{ProductLine: "Outdoor", Unprocessed: true})
	in.UnprocessedLines = []string{"Outdoor"}

	r := Assemble(in)
	assert.Equal(t, domain.RunPartial, r.Status)
	assert.Equal(t, 1, r.Summary.UnprocessedProducts)
	assert.Equal(t, 5, r.Summary.TotalProducts)
}

func TestAssembleDoesNotMutateInput(t *testing.T) {
	in := sampleInput()
	Assemble(in)
	assert.Equal(t, "Toys", in.Products[0].ProductLine)
	assert.Equal(t, "Toys", in.Warnings[0].ProductLine)
}

func TestDashboard(t *testing.T) {
	d := Dashboard(Assemble(sampleInput()), 2)

	assert.Equal(t, 4, d.Summary.TotalProducts)
	require.Len(t, d.TopPriorityProducts, 2)
	assert.Equal(t, "Apparel", d.TopPriorityProducts[0].ProductLine)
	assert.Equal(t, "Toys", d.TopPriorityProducts[1].ProductLine)

	require.Len(t, d.VelocityTrends, 4)
	assert.Equal(t, "Books", d.VelocityTrends[1].ProductLine)
	assert.Empty(t, d.VelocityTrends[1].Next7Days)
	assert.Len(t, d.VelocityTrends[0].Next7Days, 7)

	require.Len(t, d.ReorderAlerts, 2)
	assert.Equal(t, domain.UrgencyHigh, d.ReorderAlerts[0].Urgency)
	assert.Equal(t, "Toys", d.ReorderAlerts[1].ProductLine)
	assert.Nil(t, d.GeneratedAt)
}

func TestDashboardDefaultTopN(t *testing.T) {
	d := Dashboard(Assemble(sampleInput()), 0)
	assert.Len(t, d.TopPriorityProducts, 3)
}

func TestWriteSuggestionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSuggestionsCSV(&buf, Assemble(sampleInput())))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, suggestionHeaders, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Apparel", rows[1][1])
	assert.Equal(t, "80.00", rows[1][12])
	assert.Equal(t, "Order 20 units, before stock reaches 24", rows[1][15])
	assert.Equal(t, "Garden", rows[3][1])
}
