package domain

import "time"

// DashboardSummary is the headline block of the dashboard.
type DashboardSummary struct {
	TotalProducts        int       `json:"total_products"`
	HighPriorityAlerts   int       `json:"high_priority_alerts"`
	MediumPriorityAlerts int       `json:"medium_priority_alerts"`
	LowPriorityAlerts    int       `json:"low_priority_alerts"`
	DataQualityScore     float64   `json:"data_quality_score"`
	Status               RunStatus `json:"status"`
}

// TopPriorityProduct is a row of the top priority products table.
type TopPriorityProduct struct {
	ProductLine    string         `json:"product"`
	PriorityScore  float64        `json:"priority_score"`
	Urgency        Urgency        `json:"urgency"`
	Recommendation string         `json:"recommendation"`
	Trend          TrendDirection `json:"trend"`
}

// VelocityTrend is the per-line velocity card.
type VelocityTrend struct {
	ProductLine     string         `json:"product"`
	CurrentVelocity float64        `json:"current_velocity"`
	TrendDirection  TrendDirection `json:"trend_direction"`
	Next7Days       []float64      `json:"next_7_days"`
}

// ReorderAlert is a line that needs ordering attention.
type ReorderAlert struct {
	ProductLine   string    `json:"product"`
	Urgency       Urgency   `json:"urgency"`
	Action        string    `json:"action"`
	Timing        string    `json:"timing"`
	Quantity      int       `json:"quantity"`
	RiskLevel     RiskLevel `json:"risk_level"`
	PriorityScore float64   `json:"priority_score"`
}

// DashboardData is the reduced projection of an AnalysisReport.
type DashboardData struct {
	RunID               string               `json:"run_id,omitempty"`
	GeneratedAt         *time.Time           `json:"generated_at,omitempty"`
	Summary             DashboardSummary     `json:"summary"`
	TopPriorityProducts []TopPriorityProduct `json:"top_priority_products"`
	VelocityTrends      []VelocityTrend      `json:"velocity_trends"`
	ReorderAlerts       []ReorderAlert       `json:"reorder_alerts"`
}
