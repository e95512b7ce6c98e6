// Package continuity analyzes canonical daily timelines for delivery gaps,
// statistical anomalies, and whole-window delivery patterns.
package continuity

import (
	"time"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	appconfig "github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// Intensity buckets a day's delivery volume.
type Intensity string

const (
	IntensityNone     Intensity = "none"
	IntensityVeryLow  Intensity = "very_low"
	IntensityLow      Intensity = "low"
	IntensityMedium   Intensity = "medium"
	IntensityHigh     Intensity = "high"
	IntensityVeryHigh Intensity = "very_high"
)

// DayStatus is the per-day view derived from the canonical record. Days
// absent from the input records appear with zeroed metrics.
type DayStatus struct {
	Day         time.Time
	HasDelivery bool
	Intensity   Intensity

	Impressions int64
	Clicks      int64
	Spend       float64
	Reach       int64
	CTR         float64
	CPM         float64
	Frequency   float64

	// Percentage change of impressions versus the prior day, the same
	// weekday one week back, and the trailing rolling baseline. Nil when
	// the reference value is zero or out of window.
	VsPriorDay  *float64
	VsPriorWeek *float64
	VsBaseline  *float64
}

// Config carries every analysis threshold. Defaults match the standard
// policy; all values surface in the application config.
type Config struct {
	MinGapDays      int
	GapMinorDays    int
	GapMajorDays    int
	GapCriticalDays int
	LookbackDays    int

	IntensityVeryLowMax int64
	IntensityLowMax     int64
	IntensityMediumMax  int64
	IntensityHighMax    int64

	FrequencyCeiling     float64
	CTRDropMultiplier    float64
	SpendSpikeMultiplier float64
	ConsecutiveDays      int

	IntermittentWindowDays int
	IntermittentMinActive  int
	IntermittentMaxActive  int

	// BaselineDays is the trailing window used for rolling baselines.
	BaselineDays int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinGapDays:             1,
		GapMinorDays:           1,
		GapMajorDays:           3,
		GapCriticalDays:        7,
		LookbackDays:           7,
		IntensityVeryLowMax:    100,
		IntensityLowMax:        1000,
		IntensityMediumMax:     10000,
		IntensityHighMax:       100000,
		FrequencyCeiling:       3.5,
		CTRDropMultiplier:      0.5,
		SpendSpikeMultiplier:   2.0,
		ConsecutiveDays:        2,
		IntermittentWindowDays: 7,
		IntermittentMinActive:  2,
		IntermittentMaxActive:  5,
		BaselineDays:           7,
	}
}

// FromAppConfig maps the application configuration onto analysis thresholds.
func FromAppConfig(cfg *appconfig.Config) Config {
	return Config{
		MinGapDays:             cfg.MinGapDays,
		GapMinorDays:           cfg.GapMinorDays,
		GapMajorDays:           cfg.GapMajorDays,
		GapCriticalDays:        cfg.GapCriticalDays,
		LookbackDays:           cfg.GapLookbackDays,
		IntensityVeryLowMax:    cfg.IntensityVeryLowMax,
		IntensityLowMax:        cfg.IntensityLowMax,
		IntensityMediumMax:     cfg.IntensityMediumMax,
		IntensityHighMax:       cfg.IntensityHighMax,
		FrequencyCeiling:       cfg.FrequencyCeiling,
		CTRDropMultiplier:      cfg.CTRDropMultiplier,
		SpendSpikeMultiplier:   cfg.SpendSpikeMultiplier,
		ConsecutiveDays:        cfg.AnomalyConsecutiveDays,
		IntermittentWindowDays: cfg.IntermittentWindowDays,
		IntermittentMinActive:  cfg.IntermittentMinActive,
		IntermittentMaxActive:  cfg.IntermittentMaxActive,
		BaselineDays:           cfg.GapLookbackDays,
	}
}

// bucket classifies impressions volume.
func (c Config) bucket(impressions int64) Intensity {
	switch {
	case impressions <= 0:
		return IntensityNone
	case impressions < c.IntensityVeryLowMax:
		return IntensityVeryLow
	case impressions < c.IntensityLowMax:
		return IntensityLow
	case impressions < c.IntensityMediumMax:
		return IntensityMedium
	case impressions < c.IntensityHighMax:
		return IntensityHigh
	default:
		return IntensityVeryHigh
	}
}

// buildSeries produces one DayStatus per calendar day in the window,
// zero-filling days without records and computing comparison fields.
func buildSeries(cfg Config, records []aggregate.CanonicalDailyRecord, window timeframe.DateRange) []DayStatus {
	byDay := make(map[string]aggregate.CanonicalDailyRecord, len(records))
	for _, record := range records {
		byDay[record.Day.Format(timeframe.DayFormat)] = record
	}

	series := make([]DayStatus, 0, window.Days())
	window.EachDay(func(day time.Time) {
		status := DayStatus{Day: day, Intensity: IntensityNone}
		if record, ok := byDay[day.Format(timeframe.DayFormat)]; ok {
			status.Impressions = record.Impressions
			status.Clicks = record.Clicks
			status.Spend = record.SpendFloat()
			status.Reach = record.Reach
			status.CTR = record.CTR
			status.CPM = record.CPM
			status.Frequency = record.Frequency
		}
		status.HasDelivery = status.Impressions > 0
		status.Intensity = cfg.bucket(status.Impressions)
		series = append(series, status)
	})

	for i := range series {
		if i >= 1 {
			series[i].VsPriorDay = percentageChange(float64(series[i].Impressions), float64(series[i-1].Impressions))
		}
		if i >= 7 {
			series[i].VsPriorWeek = percentageChange(float64(series[i].Impressions), float64(series[i-7].Impressions))
		}
		if baseline := trailingAverage(series, i, cfg.BaselineDays, func(s DayStatus) float64 {
			return float64(s.Impressions)
		}); baseline > 0 {
			series[i].VsBaseline = percentageChange(float64(series[i].Impressions), baseline)
		}
	}
	return series
}

// percentageChange returns the percent delta versus previous, or nil when
// previous is zero.
func percentageChange(current, previous float64) *float64 {
	if previous <= 0 {
		return nil
	}
	change := ((current - previous) / previous) * 100
	return &change
}

// trailingAverage averages fn over up to n days strictly before index i.
func trailingAverage(series []DayStatus, i, n int, fn func(DayStatus) float64) float64 {
	start := i - n
	if start < 0 {
		start = 0
	}
	if start >= i {
		return 0
	}
	sum := 0.0
	for j := start; j < i; j++ {
		sum += fn(series[j])
	}
	return sum / float64(i-start)
}

// trailingActiveAverage averages fn over delivery days among up to n days
// strictly before index i, skipping zero-delivery days so gaps do not drag
// baselines to zero.
func trailingActiveAverage(series []DayStatus, i, n int, fn func(DayStatus) float64) float64 {
	start := i - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	count := 0
	for j := start; j < i; j++ {
		if !series[j].HasDelivery {
			continue
		}
		sum += fn(series[j])
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
