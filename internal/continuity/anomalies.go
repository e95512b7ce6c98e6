package continuity

import (
	"time"
)

// AnomalyType names a deviation pattern.
type AnomalyType string

const (
	AnomalySuddenStop   AnomalyType = "sudden_stop"
	AnomalyHighFreq     AnomalyType = "high_frequency"
	AnomalyCTRDrop      AnomalyType = "ctr_drop"
	AnomalyCPMSpike     AnomalyType = "cpm_spike"
	AnomalySpendSpike   AnomalyType = "spend_spike"
	AnomalyIntermittent AnomalyType = "intermittent_delivery"
)

// AnomalySeverity grades an anomaly.
type AnomalySeverity string

const (
	AnomalyLow    AnomalySeverity = "low"
	AnomalyMedium AnomalySeverity = "medium"
	AnomalyHigh   AnomalySeverity = "high"
)

// Anomaly is a single-day or windowed deviation. Anomalies and gaps are
// computed independently from the same series; a day may contribute to both.
type Anomaly struct {
	Type     AnomalyType
	Severity AnomalySeverity
	Start    time.Time
	End      time.Time
	// Metrics holds the triggering values, keyed by metric name.
	Metrics map[string]float64
}

// detectAnomalies evaluates every anomaly type independently over the series.
func detectAnomalies(cfg Config, series []DayStatus) []Anomaly {
	var anomalies []Anomaly
	anomalies = append(anomalies, detectSuddenStops(cfg, series)...)
	anomalies = append(anomalies, detectHighFrequency(cfg, series)...)
	anomalies = append(anomalies, detectCTRDrops(cfg, series)...)
	anomalies = append(anomalies, detectBaselineSpikes(cfg, series, AnomalyCPMSpike, func(s DayStatus) float64 { return s.CPM })...)
	anomalies = append(anomalies, detectBaselineSpikes(cfg, series, AnomalySpendSpike, func(s DayStatus) float64 { return s.Spend })...)
	anomalies = append(anomalies, detectIntermittent(cfg, series)...)
	return anomalies
}

// detectSuddenStops finds impressions dropping to zero for at least
// ConsecutiveDays after nonzero delivery.
func detectSuddenStops(cfg Config, series []DayStatus) []Anomaly {
	var anomalies []Anomaly
	for i := 1; i < len(series); i++ {
		if series[i].HasDelivery || !series[i-1].HasDelivery {
			continue
		}
		end := i
		for end < len(series) && !series[end].HasDelivery {
			end++
		}
		if end-i >= cfg.ConsecutiveDays {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalySuddenStop,
				Severity: AnomalyHigh,
				Start:    series[i].Day,
				End:      series[end-1].Day,
				Metrics: map[string]float64{
					"prior_impressions": float64(series[i-1].Impressions),
					"stopped_days":      float64(end - i),
				},
			})
		}
		i = end
	}
	return anomalies
}

// detectHighFrequency flags runs of days with frequency past the ceiling.
// Frequency saturation is immediately actionable, so a single day triggers.
func detectHighFrequency(cfg Config, series []DayStatus) []Anomaly {
	var anomalies []Anomaly
	i := 0
	for i < len(series) {
		if series[i].Frequency <= cfg.FrequencyCeiling {
			i++
			continue
		}
		start := i
		peak := series[i].Frequency
		for i < len(series) && series[i].Frequency > cfg.FrequencyCeiling {
			if series[i].Frequency > peak {
				peak = series[i].Frequency
			}
			i++
		}
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyHighFreq,
			Severity: AnomalyHigh,
			Start:    series[start].Day,
			End:      series[i-1].Day,
			Metrics: map[string]float64{
				"peak_frequency": peak,
				"ceiling":        cfg.FrequencyCeiling,
			},
		})
	}
	return anomalies
}

// detectCTRDrops flags runs where CTR stays below the configured multiple of
// its trailing baseline for at least ConsecutiveDays.
func detectCTRDrops(cfg Config, series []DayStatus) []Anomaly {
	below := make([]bool, len(series))
	baselines := make([]float64, len(series))
	for i := range series {
		if !series[i].HasDelivery {
			continue
		}
		baseline := trailingActiveAverage(series, i, cfg.BaselineDays, func(s DayStatus) float64 { return s.CTR })
		if baseline <= 0 {
			continue
		}
		baselines[i] = baseline
		below[i] = series[i].CTR < baseline*cfg.CTRDropMultiplier
	}

	var anomalies []Anomaly
	i := 0
	for i < len(series) {
		if !below[i] {
			i++
			continue
		}
		start := i
		for i < len(series) && below[i] {
			i++
		}
		if i-start >= cfg.ConsecutiveDays {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalyCTRDrop,
				Severity: AnomalyMedium,
				Start:    series[start].Day,
				End:      series[i-1].Day,
				Metrics: map[string]float64{
					"ctr":          series[start].CTR,
					"baseline_ctr": baselines[start],
					"multiplier":   cfg.CTRDropMultiplier,
				},
			})
		}
	}
	return anomalies
}

// detectBaselineSpikes flags days where a metric reaches the configured
// multiple of its trailing baseline.
func detectBaselineSpikes(cfg Config, series []DayStatus, kind AnomalyType, metric func(DayStatus) float64) []Anomaly {
	var anomalies []Anomaly
	for i := range series {
		if !series[i].HasDelivery {
			continue
		}
		baseline := trailingActiveAverage(series, i, cfg.BaselineDays, metric)
		if baseline <= 0 {
			continue
		}
		value := metric(series[i])
		if value >= baseline*cfg.SpendSpikeMultiplier {
			anomalies = append(anomalies, Anomaly{
				Type:     kind,
				Severity: AnomalyMedium,
				Start:    series[i].Day,
				End:      series[i].Day,
				Metrics: map[string]float64{
					"value":      value,
					"baseline":   baseline,
					"multiplier": cfg.SpendSpikeMultiplier,
				},
			})
		}
	}
	return anomalies
}

// detectIntermittent flags stretches where a rolling window holds an active
// day count that is neither continuous nor absent.
func detectIntermittent(cfg Config, series []DayStatus) []Anomaly {
	w := cfg.IntermittentWindowDays
	if len(series) < w {
		return nil
	}

	flagged := make([]bool, len(series))
	for i := w - 1; i < len(series); i++ {
		active := 0
		for j := i - w + 1; j <= i; j++ {
			if series[j].HasDelivery {
				active++
			}
		}
		if active >= cfg.IntermittentMinActive && active <= cfg.IntermittentMaxActive {
			flagged[i] = true
		}
	}

	var anomalies []Anomaly
	i := 0
	for i < len(series) {
		if !flagged[i] {
			i++
			continue
		}
		start := i
		for i < len(series) && flagged[i] {
			i++
		}
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyIntermittent,
			Severity: AnomalyLow,
			Start:    series[start].Day.AddDate(0, 0, -(w - 1)),
			End:      series[i-1].Day,
			Metrics: map[string]float64{
				"window_days": float64(w),
				"min_active":  float64(cfg.IntermittentMinActive),
				"max_active":  float64(cfg.IntermittentMaxActive),
			},
		})
	}
	return anomalies
}
