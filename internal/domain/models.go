package domain

import (
	"sort"
	"time"
)

// TransactionRecord is one raw row of the historical transaction feed.
// Timestamp is kept unparsed so data preparation owns date validation.
type TransactionRecord struct {
	Row         int     `json:"row" db:"-"`
	ProductLine string  `json:"product_line" db:"product_line"`
	Timestamp   string  `json:"timestamp" db:"sold_at"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	Value       float64 `json:"value" db:"value"`
}

// DemandObservation is the total quantity sold for a product line on one calendar day.
type DemandObservation struct {
	ProductLine string    `json:"product_line"`
	Date        time.Time `json:"date"`
	Quantity    float64   `json:"quantity_sold"`
}

// DataQuality summarizes how trustworthy a product line's history is.
type DataQuality struct {
	TotalRecords     int         `json:"total_records"`
	ObservedDays     int         `json:"observed_days"`
	TotalDays        int         `json:"total_days"`
	MissingDays      int         `json:"missing_days"`
	CompletenessPct  float64     `json:"completeness_pct"`
	CoveragePct      float64     `json:"coverage_pct"`
	OutlierCount     int         `json:"outlier_count"`
	OutlierThreshold float64     `json:"outlier_threshold"`
	OutlierDates     []time.Time `json:"outlier_dates,omitempty"`
	OutliersClipped  bool        `json:"outliers_clipped"`
	Score            float64     `json:"score"`
}

// ProductSeries is the gap-filled daily demand history of one product line.
type ProductSeries struct {
	ProductLine         string              `json:"product_line"`
	Observations        []DemandObservation `json:"observations"`
	Quality             DataQuality         `json:"data_quality"`
	TotalValue          float64             `json:"total_value"`
	InsufficientHistory bool                `json:"insufficient_history"`
}

// Len returns the number of days in the series.
func (s ProductSeries) Len() int {
	return len(s.Observations)
}

// Values returns the daily quantities in chronological order.
func (s ProductSeries) Values() []float64 {
	values := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		values[i] = o.Quantity
	}
	return values
}

// Dates returns the calendar days of the series in chronological order.
func (s ProductSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Observations))
	for i, o := range s.Observations {
		dates[i] = o.Date
	}
	return dates
}

// LastDate returns the final day of the series, or the zero time for an empty series.
func (s ProductSeries) LastDate() time.Time {
	if len(s.Observations) == 0 {
		return time.Time{}
	}
	return s.Observations[len(s.Observations)-1].Date
}

// SeasonalFactors maps day-of-week and month names to demand multipliers.
type SeasonalFactors struct {
	DayOfWeek map[string]float64 `json:"day_of_week"`
	Month     map[string]float64 `json:"month,omitempty"`
}

// ForWeekday returns the multiplier for a weekday, 1.0 when unknown.
func (f SeasonalFactors) ForWeekday(d time.Weekday) float64 {
	if v, ok := f.DayOfWeek[d.String()]; ok {
		return v
	}
	return 1.0
}

// ForMonth returns the multiplier for a month, 1.0 when unknown.
func (f SeasonalFactors) ForMonth(m time.Month) float64 {
	if v, ok := f.Month[m.String()]; ok {
		return v
	}
	return 1.0
}

// VelocityProfile describes historical demand velocity for a product line.
type VelocityProfile struct {
	ProductLine        string          `json:"product_line"`
	AvgDailyVelocity   float64         `json:"avg_daily_velocity"`
	VelocityVolatility float64         `json:"velocity_volatility"`
	PeakDailyVelocity  float64         `json:"peak_day_velocity"`
	MinDailyVelocity   float64         `json:"min_day_velocity"`
	TrendDirection     TrendDirection  `json:"trend_direction"`
	TrendMagnitude     float64         `json:"trend_magnitude"`
	SeasonalFactors    SeasonalFactors `json:"seasonal_factors"`
}

// ForecastPoint is a single forecast day.
type ForecastPoint struct {
	Date  time.Time `json:"date"`
	Point float64   `json:"point_estimate"`
	Lower float64   `json:"lower_bound"`
	Upper float64   `json:"upper_bound"`
}

// ForecastSummary condenses a forecast into velocity figures for dashboards.
type ForecastSummary struct {
	MeanVelocity    float64   `json:"avg_daily_velocity"`
	PeakVelocity    float64   `json:"peak_day_velocity"`
	MinVelocity     float64   `json:"min_day_velocity"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	Next7Days       []float64 `json:"next_7_days"`
	Next30Days      []float64 `json:"next_30_days"`
}

// Forecast is the horizon forecast for one product line.
type Forecast struct {
	ProductLine     string          `json:"product_line"`
	HorizonDays     int             `json:"horizon_days"`
	ConfidenceLevel float64         `json:"confidence_level"`
	Points          []ForecastPoint `json:"points"`
	ModelQuality    ModelQuality    `json:"model_quality"`
	Model           string          `json:"model"`
	MAPE            *float64        `json:"mape,omitempty"`
	HoldoutDays     int             `json:"holdout_days"`
	Fallback        bool            `json:"fallback"`
	FallbackReason  string          `json:"fallback_reason,omitempty"`
	Summary         ForecastSummary `json:"summary"`
}

// ReorderSuggestion translates a forecast into an ordering decision.
type ReorderSuggestion struct {
	ProductLine            string         `json:"product_line"`
	CurrentStock           int            `json:"current_stock"`
	LeadTimeDays           int            `json:"lead_time_days"`
	LeadTimeDemand         float64        `json:"lead_time_demand"`
	LeadTimeDemandStdDev   float64        `json:"lead_time_demand_stddev"`
	SafetyStock            float64        `json:"safety_stock"`
	ReorderPoint           float64        `json:"reorder_point"`
	SuggestedOrderQuantity int            `json:"suggested_order_quantity"`
	DaysOfSupply           float64        `json:"days_of_supply"`
	DaysOfCover            float64        `json:"days_of_cover"`
	TrendDirection         TrendDirection `json:"trend_direction"`
	TrendMagnitude         float64        `json:"trend_magnitude"`
	Urgency                Urgency        `json:"urgency"`
	RiskLevel              RiskLevel      `json:"risk_level"`
	PriorityScore          float64        `json:"priority_score"`
	Rank                   int            `json:"rank"`
	ActionRequired         string         `json:"action_required"`
	OptimalOrderTiming     string         `json:"optimal_order_timing"`
	Recommendation         string         `json:"recommendation"`
}

// ProductAnalysis groups every artifact produced for one product line.
type ProductAnalysis struct {
	ProductLine string             `json:"product_line"`
	Series      ProductSeries      `json:"series"`
	Velocity    *VelocityProfile   `json:"velocity,omitempty"`
	Forecast    *Forecast          `json:"forecast,omitempty"`
	Reorder     *ReorderSuggestion `json:"reorder,omitempty"`
	Excluded    bool               `json:"excluded"`
	Unprocessed bool               `json:"unprocessed"`
}

// RankedProduct is one entry of the priority ordering.
type RankedProduct struct {
	Rank           int            `json:"rank"`
	ProductLine    string         `json:"product_line"`
	PriorityScore  float64        `json:"priority_score"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Urgency        Urgency        `json:"urgency"`
	TrendDirection TrendDirection `json:"trend_direction"`
	ActionRequired string         `json:"action_required"`
	Recommendation string         `json:"recommendation"`
}

// ReportSettings records the configuration a report was produced with.
type ReportSettings struct {
	HorizonDays       int             `json:"forecast_horizon_days"`
	LeadTimeDays      int             `json:"lead_time_days"`
	SafetyStockFactor float64         `json:"safety_stock_factor"`
	ConfidenceLevel   float64         `json:"confidence_level"`
	MinOrderQuantity  int             `json:"min_order_quantity"`
	MaxOrderQuantity  int             `json:"max_order_quantity"`
	SeasonalityMode   SeasonalityMode `json:"seasonality_mode"`
	MinHistoryDays    int             `json:"min_history_days"`
}

// ReportSummary holds the run-level counts.
type ReportSummary struct {
	TotalProducts        int     `json:"total_products"`
	ModeledProducts      int     `json:"modeled_products"`
	ExcludedProducts     int     `json:"excluded_products"`
	UnprocessedProducts  int     `json:"unprocessed_products"`
	HighPriorityAlerts   int     `json:"high_priority_alerts"`
	MediumPriorityAlerts int     `json:"medium_priority_alerts"`
	LowPriorityAlerts    int     `json:"low_priority_alerts"`
	TotalRecords         int     `json:"total_records"`
	SkippedRecords       int     `json:"skipped_records"`
	DataQualityScore     float64 `json:"data_quality_score"`
}

// AnalysisReport is the complete result of one analysis run.
type AnalysisReport struct {
	Status           RunStatus         `json:"status"`
	WindowStart      time.Time         `json:"window_start"`
	WindowEnd        time.Time         `json:"window_end"`
	Settings         ReportSettings    `json:"settings"`
	Summary          ReportSummary     `json:"summary"`
	Products         []ProductAnalysis `json:"products"`
	Ranking          []RankedProduct   `json:"ranking"`
	TopPriority      []RankedProduct   `json:"top_priority_products"`
	Warnings         []Warning         `json:"warnings"`
	UnprocessedLines []string          `json:"unprocessed_lines,omitempty"`
}

// Product returns the analysis for a product line.
func (r *AnalysisReport) Product(line string) (ProductAnalysis, bool) {
	i := sort.Search(len(r.Products), func(i int) bool { return r.Products[i].ProductLine >= line })
	if i < len(r.Products) && r.Products[i].ProductLine == line {
		return r.Products[i], true
	}
	return ProductAnalysis{}, false
}

// Suggestions returns the reorder suggestions in ranking order.
func (r *AnalysisReport) Suggestions() []ReorderSuggestion {
	out := make([]ReorderSuggestion, 0, len(r.Ranking))
	for _, ranked := range r.Ranking {
		if p, ok := r.Product(ranked.ProductLine); ok && p.Reorder != nil {
			out = append(out, *p.Reorder)
		}
	}
	return out
}

// ReportEnvelope wraps a report with run metadata for persistence.
type ReportEnvelope struct {
	RunID       string          `json:"run_id" db:"run_id"`
	GeneratedAt time.Time       `json:"generated_at" db:"generated_at"`
	Source      string          `json:"source" db:"source"`
	Report      *AnalysisReport `json:"report" db:"-"`
}

// StockLevel is the on-hand quantity of a product line.
type StockLevel struct {
	ProductLine string    `json:"product_line"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockoutEvent records that a product line ran out of stock.
type StockoutEvent struct {
	ProductLine string    `json:"product_line"`
	OccurredAt  time.Time `json:"occurred_at"`
	Note        string    `json:"note,omitempty"`
}
