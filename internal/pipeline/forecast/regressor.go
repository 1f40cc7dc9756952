package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

// Regressor supplies an external signal that enters the model as an additive term.
type Regressor interface {
	Name() string
	Value(date time.Time) float64
}

// WeekendRegressor is 1 on Saturdays and Sundays.
type WeekendRegressor struct{}

func (WeekendRegressor) Name() string { return "is_weekend" }

func (WeekendRegressor) Value(date time.Time) float64 {
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return 1
	}
	return 0
}

// HolidayRegressor is 1 on configured holiday dates.
type HolidayRegressor struct {
	dates map[string]struct{}
}

// NewHolidayRegressor builds a regressor from YYYY-MM-DD dates.
func NewHolidayRegressor(dates ...string) *HolidayRegressor {
	r := &HolidayRegressor{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		r.dates[d] = struct{}{}
	}
	return r
}

func (r *HolidayRegressor) Name() string { return "holiday" }

func (r *HolidayRegressor) Value(date time.Time) float64 {
	if _, ok := r.dates[date.Format("2006-01-02")]; ok {
		return 1
	}
	return 0
}

// Len returns the number of holiday dates.
func (r *HolidayRegressor) Len() int {
	return len(r.dates)
}

// LoadHolidays reads {"holidays": [{"date": "2025-01-01", "name": "New Year"}, ...]}.
// An empty path yields no regressor; a configured path that does not exist is an error.
func LoadHolidays(path string) (*HolidayRegressor, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holidays file: %w", err)
	}

	var file struct {
		Holidays []struct {
			Date string `json:"date"`
			Name string `json:"name"`
		} `json:"holidays"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode holidays file: %w", err)
	}

	dates := make([]string, 0, len(file.Holidays))
	for _, h := range file.Holidays {
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q (%s): %w", h.Date, h.Name, err)
		}
		dates = append(dates, h.Date)
	}

	return NewHolidayRegressor(dates...), nil
}

// RegressorsFromConfig returns the regressors enabled by the configuration.
func RegressorsFromConfig(cfg config.ForecastConfig) ([]Regressor, error) {
	if !cfg.EnableHolidayEffects {
		return nil, nil
	}

	regressors := []Regressor{WeekendRegressor{}}
	holidays, err := LoadHolidays(cfg.HolidaysFile)
	if err != nil {
		return nil, err
	}
	if holidays != nil && holidays.Len() > 0 {
		regressors = append(regressors, holidays)
	}
	return regressors, nil
}
