package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// layoutSeparator splits FORECAST_DATE_LAYOUTS; layouts may themselves contain spaces.
const layoutSeparator = "|"

// ForecastConfig drives one analysis run.
type ForecastConfig struct {
	HorizonDays           int             `validate:"gte=1,lte=730"`
	LeadTimeDays          int             `validate:"gte=0,ltefield=HorizonDays"`
	SafetyStockFactor     float64         `validate:"gte=0"`
	ReorderThresholdDays  int             `validate:"gte=0"`
	ConfidenceLevel       float64         `validate:"gt=0,lt=1"`
	MinOrderQuantity      int             `validate:"gte=0"`
	MaxOrderQuantity      int             `validate:"gtefield=MinOrderQuantity"`
	SeasonalityMode       string          `validate:"oneof=additive multiplicative"`
	EnableHolidayEffects  bool
	HolidaysFile          string
	MinHistoryDays        int             `validate:"gte=2"`
	TrendEpsilon          float64         `validate:"gte=0"`
	UrgencyTrendThreshold float64         `validate:"gte=0"`
	MalformedPolicy       string          `validate:"oneof=skip abort"`
	ClipOutliers          bool
	FitTimeout            time.Duration   `validate:"gte=0"`
	Workers               int             `validate:"gte=1,lte=256"`
	TopN                  int             `validate:"gte=0"`
	DashboardTopN         int             `validate:"gte=0"`
	DateLayouts           []string        `validate:"min=1,dive,required"`
	Weights               PriorityWeights
}

// PriorityWeights are the relative weights of the priority score components.
type PriorityWeights struct {
	Risk    float64 `validate:"gte=0"`
	Urgency float64 `validate:"gte=0"`
	Trend   float64 `validate:"gte=0"`
	Value   float64 `validate:"gte=0"`
	// TrendSaturation is the relative daily slope (slope / mean) that earns the full trend component.
	TrendSaturation float64 `validate:"gt=0"`
}

// Sum returns the total weight.
func (w PriorityWeights) Sum() float64 {
	return w.Risk + w.Urgency + w.Trend + w.Value
}

var defaultDateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02 15:04",
}

// DefaultForecastConfig returns the documented defaults.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		HorizonDays:           30,
		LeadTimeDays:          7,
		SafetyStockFactor:     1.5,
		ReorderThresholdDays:  3,
		ConfidenceLevel:       0.95,
		MinOrderQuantity:      10,
		MaxOrderQuantity:      1000,
		SeasonalityMode:       string(domain.SeasonalityAdditive),
		EnableHolidayEffects:  true,
		MinHistoryDays:        14,
		TrendEpsilon:          0.01,
		UrgencyTrendThreshold: 0.5,
		MalformedPolicy:       string(domain.MalformedSkip),
		FitTimeout:            5 * time.Second,
		Workers:               4,
		DashboardTopN:         5,
		DateLayouts:           append([]string(nil), defaultDateLayouts...),
		Weights: PriorityWeights{
			Risk:            0.4,
			Urgency:         0.3,
			Trend:           0.2,
			Value:           0.1,
			TrendSaturation: 0.05,
		},
	}
}

func setForecastDefaults(v *viper.Viper) {
	d := DefaultForecastConfig()
	v.SetDefault("FORECAST_HORIZON_DAYS", d.HorizonDays)
	v.SetDefault("FORECAST_LEAD_TIME_DAYS", d.LeadTimeDays)
	v.SetDefault("FORECAST_SAFETY_STOCK_FACTOR", d.SafetyStockFactor)
	v.SetDefault("FORECAST_REORDER_THRESHOLD_DAYS", d.ReorderThresholdDays)
	v.SetDefault("FORECAST_CONFIDENCE_LEVEL", d.ConfidenceLevel)
	v.SetDefault("FORECAST_MIN_ORDER_QUANTITY", d.MinOrderQuantity)
	v.SetDefault("FORECAST_MAX_ORDER_QUANTITY", d.MaxOrderQuantity)
	v.SetDefault("FORECAST_SEASONALITY_MODE", d.SeasonalityMode)
	v.SetDefault("FORECAST_ENABLE_HOLIDAY_EFFECTS", d.EnableHolidayEffects)
	v.SetDefault("FORECAST_HOLIDAYS_FILE", "")
	v.SetDefault("FORECAST_MIN_HISTORY_DAYS", d.MinHistoryDays)
	v.SetDefault("FORECAST_TREND_EPSILON", d.TrendEpsilon)
	v.SetDefault("FORECAST_URGENCY_TREND_THRESHOLD", d.UrgencyTrendThreshold)
	v.SetDefault("FORECAST_MALFORMED_POLICY", d.MalformedPolicy)
	v.SetDefault("FORECAST_CLIP_OUTLIERS", d.ClipOutliers)
	v.SetDefault("FORECAST_FIT_TIMEOUT", d.FitTimeout)
	v.SetDefault("FORECAST_WORKERS", d.Workers)
	v.SetDefault("FORECAST_TOP_N", d.TopN)
	v.SetDefault("FORECAST_DASHBOARD_TOP_N", d.DashboardTopN)
	v.SetDefault("FORECAST_DATE_LAYOUTS", strings.Join(d.DateLayouts, layoutSeparator))
	v.SetDefault("FORECAST_WEIGHT_RISK", d.Weights.Risk)
	v.SetDefault("FORECAST_WEIGHT_URGENCY", d.Weights.Urgency)
	v.SetDefault("FORECAST_WEIGHT_TREND", d.Weights.Trend)
	v.SetDefault("FORECAST_WEIGHT_VALUE", d.Weights.Value)
	v.SetDefault("FORECAST_TREND_SATURATION", d.Weights.TrendSaturation)
}

func forecastFromViper(v *viper.Viper) ForecastConfig {
	return ForecastConfig{
		HorizonDays:           v.GetInt("FORECAST_HORIZON_DAYS"),
		LeadTimeDays:          v.GetInt("FORECAST_LEAD_TIME_DAYS"),
		SafetyStockFactor:     v.GetFloat64("FORECAST_SAFETY_STOCK_FACTOR"),
		ReorderThresholdDays:  v.GetInt("FORECAST_REORDER_THRESHOLD_DAYS"),
		ConfidenceLevel:       v.GetFloat64("FORECAST_CONFIDENCE_LEVEL"),
		MinOrderQuantity:      v.GetInt("FORECAST_MIN_ORDER_QUANTITY"),
		MaxOrderQuantity:      v.GetInt("FORECAST_MAX_ORDER_QUANTITY"),
		SeasonalityMode:       strings.ToLower(strings.TrimSpace(v.GetString("FORECAST_SEASONALITY_MODE"))),
		EnableHolidayEffects:  v.GetBool("FORECAST_ENABLE_HOLIDAY_EFFECTS"),
		HolidaysFile:          v.GetString("FORECAST_HOLIDAYS_FILE"),
		MinHistoryDays:        v.GetInt("FORECAST_MIN_HISTORY_DAYS"),
		TrendEpsilon:          v.GetFloat64("FORECAST_TREND_EPSILON"),
		UrgencyTrendThreshold: v.GetFloat64("FORECAST_URGENCY_TREND_THRESHOLD"),
		MalformedPolicy:       strings.ToLower(strings.TrimSpace(v.GetString("FORECAST_MALFORMED_POLICY"))),
		ClipOutliers:          v.GetBool("FORECAST_CLIP_OUTLIERS"),
		FitTimeout:            v.GetDuration("FORECAST_FIT_TIMEOUT"),
		Workers:               v.GetInt("FORECAST_WORKERS"),
		TopN:                  v.GetInt("FORECAST_TOP_N"),
		DashboardTopN:         v.GetInt("FORECAST_DASHBOARD_TOP_N"),
		DateLayouts:           splitLayouts(v.GetString("FORECAST_DATE_LAYOUTS")),
		Weights: PriorityWeights{
			Risk:            v.GetFloat64("FORECAST_WEIGHT_RISK"),
			Urgency:         v.GetFloat64("FORECAST_WEIGHT_URGENCY"),
			Trend:           v.GetFloat64("FORECAST_WEIGHT_TREND"),
			Value:           v.GetFloat64("FORECAST_WEIGHT_VALUE"),
			TrendSaturation: v.GetFloat64("FORECAST_TREND_SATURATION"),
		},
	}
}

func splitLayouts(raw string) []string {
	var layouts []string
	for _, part := range strings.Split(raw, layoutSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			layouts = append(layouts, part)
		}
	}
	return layouts
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and returns a *domain.InvalidConfigurationError listing all problems.
func (c ForecastConfig) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &domain.InvalidConfigurationError{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	for name, value := range map[string]float64{
		"SafetyStockFactor":     c.SafetyStockFactor,
		"ConfidenceLevel":       c.ConfidenceLevel,
		"TrendEpsilon":          c.TrendEpsilon,
		"UrgencyTrendThreshold": c.UrgencyTrendThreshold,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			problems = append(problems, fmt.Sprintf("%s must be a finite number", name))
		}
	}

	if c.Weights.Sum() <= 0 {
		problems = append(problems, "Weights must have a positive sum")
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &domain.InvalidConfigurationError{Problems: problems}
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "ForecastConfig.")
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be >= %s (got %v)", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be > %s (got %v)", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be <= %s (got %v)", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be < %s (got %v)", field, fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s (got %v)", field, fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must be at least %s (got %v)", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", field, fe.Param(), fe.Value())
	case "min", "required":
		return fmt.Sprintf("%s must not be empty", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// Settings returns the part of the configuration recorded in reports.
func (c ForecastConfig) Settings() domain.ReportSettings {
	mode, _ := domain.ParseSeasonalityMode(c.SeasonalityMode)
	return domain.ReportSettings{
		HorizonDays:       c.HorizonDays,
		LeadTimeDays:      c.LeadTimeDays,
		SafetyStockFactor: c.SafetyStockFactor,
		ConfidenceLevel:   c.ConfidenceLevel,
		MinOrderQuantity:  c.MinOrderQuantity,
		MaxOrderQuantity:  c.MaxOrderQuantity,
		SeasonalityMode:   mode,
		MinHistoryDays:    c.MinHistoryDays,
	}
}
