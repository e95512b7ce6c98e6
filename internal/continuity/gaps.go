package continuity

import (
	"time"
)

// GapSeverity grades a gap by duration.
type GapSeverity string

const (
	SeverityMinor    GapSeverity = "minor"
	SeverityMajor    GapSeverity = "major"
	SeverityCritical GapSeverity = "critical"
)

// GapCause is the inferred reason delivery stopped.
type GapCause string

const (
	CauseBudgetExhausted   GapCause = "budget_exhausted"
	CauseManualPause       GapCause = "manual_pause"
	CauseScheduledPattern  GapCause = "scheduled_pattern"
	CauseBidTooLow         GapCause = "bid_too_low"
	CauseAudienceExhausted GapCause = "audience_exhausted"
	CauseUnknown           GapCause = "unknown"
)

// MetricsSnapshot averages the key metrics over a short window adjacent to
// a gap.
type MetricsSnapshot struct {
	Days           int
	AvgImpressions float64
	AvgClicks      float64
	AvgSpend       float64
	AvgCTR         float64
	AvgFrequency   float64
}

// Gap is a maximal run of consecutive zero-delivery days.
type Gap struct {
	Start        time.Time
	End          time.Time
	DurationDays int
	Severity     GapSeverity
	Cause        GapCause
	Before       MetricsSnapshot
	After        MetricsSnapshot
	// EstimatedLostImpressions is directional only: pre-gap average daily
	// impressions times the gap duration.
	EstimatedLostImpressions int64
}

// detectGaps scans the series for zero-delivery runs of at least MinGapDays
// and grades, snapshots, and classifies each one.
func detectGaps(cfg Config, series []DayStatus) []Gap {
	type run struct{ start, end int }
	var runs []run

	i := 0
	for i < len(series) {
		if series[i].HasDelivery {
			i++
			continue
		}
		start := i
		for i < len(series) && !series[i].HasDelivery {
			i++
		}
		if i-start >= cfg.MinGapDays {
			runs = append(runs, run{start: start, end: i - 1})
		}
	}

	gaps := make([]Gap, 0, len(runs))
	for _, r := range runs {
		duration := r.end - r.start + 1
		gap := Gap{
			Start:        series[r.start].Day,
			End:          series[r.end].Day,
			DurationDays: duration,
			Severity:     cfg.severity(duration),
			Before:       snapshot(series, r.start-cfg.LookbackDays, r.start-1),
			After:        snapshot(series, r.end+1, r.end+cfg.LookbackDays),
		}
		gap.EstimatedLostImpressions = int64(gap.Before.AvgImpressions * float64(duration))
		gaps = append(gaps, gap)
	}

	// Cause classification needs the full gap list for the recurring-cadence
	// heuristic, so it runs after collection.
	for idx := range gaps {
		startIdx := indexOfDay(series, gaps[idx].Start)
		gaps[idx].Cause = classifyCause(cfg, series, gaps, startIdx, gaps[idx])
	}
	return gaps
}

func (c Config) severity(durationDays int) GapSeverity {
	switch {
	case durationDays >= c.GapCriticalDays:
		return SeverityCritical
	case durationDays >= c.GapMajorDays:
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// snapshot averages metrics over series[from..to], clamped to the window.
func snapshot(series []DayStatus, from, to int) MetricsSnapshot {
	if from < 0 {
		from = 0
	}
	if to >= len(series) {
		to = len(series) - 1
	}
	snap := MetricsSnapshot{}
	if from > to {
		return snap
	}
	for i := from; i <= to; i++ {
		snap.Days++
		snap.AvgImpressions += float64(series[i].Impressions)
		snap.AvgClicks += float64(series[i].Clicks)
		snap.AvgSpend += series[i].Spend
		snap.AvgCTR += series[i].CTR
		snap.AvgFrequency += series[i].Frequency
	}
	n := float64(snap.Days)
	snap.AvgImpressions /= n
	snap.AvgClicks /= n
	snap.AvgSpend /= n
	snap.AvgCTR /= n
	snap.AvgFrequency /= n
	return snap
}

// classifyCause applies the ordered heuristics; only the first match wins.
// The order is policy, not principle - thresholds are configurable but the
// precedence is fixed.
func classifyCause(cfg Config, series []DayStatus, gaps []Gap, startIdx int, gap Gap) GapCause {
	// (a) Spend collapsed >=90% across the 2 days before the gap.
	if spendCollapsed(cfg, series, startIdx) {
		return CauseBudgetExhausted
	}
	// (b) Sudden stop with no preceding performance decline.
	if suddenStop(series, startIdx, gap.Before) {
		return CauseManualPause
	}
	// (c) Recurring weekly cadence across the window.
	if recursWeekly(gaps, gap) {
		return CauseScheduledPattern
	}
	// (d) Impressions declined >=50% over the 3 days before the gap.
	if impressionsDeclined(series, startIdx) {
		return CauseBidTooLow
	}
	// (e) Frequency spiked past the ceiling with reach plateaued.
	if audienceSaturated(cfg, series, startIdx) {
		return CauseAudienceExhausted
	}
	return CauseUnknown
}

func spendCollapsed(cfg Config, series []DayStatus, startIdx int) bool {
	if startIdx < 3 {
		return false
	}
	base := snapshot(series, startIdx-cfg.LookbackDays, startIdx-3).AvgSpend
	recent := snapshot(series, startIdx-2, startIdx-1).AvgSpend
	return base > 0 && recent <= base*0.1
}

func suddenStop(series []DayStatus, startIdx int, before MetricsSnapshot) bool {
	if startIdx < 1 || before.AvgImpressions <= 0 {
		return false
	}
	lastDay := float64(series[startIdx-1].Impressions)
	// Still running at >=80% of the pre-gap average right up to the stop.
	return lastDay >= before.AvgImpressions*0.8
}

func recursWeekly(gaps []Gap, gap Gap) bool {
	matches := 0
	for _, other := range gaps {
		if other.Start.Equal(gap.Start) {
			continue
		}
		sameWeekday := other.Start.Weekday() == gap.Start.Weekday()
		similarLength := abs(other.DurationDays-gap.DurationDays) <= 1
		if sameWeekday && similarLength {
			matches++
		}
	}
	return matches >= 1
}

func impressionsDeclined(series []DayStatus, startIdx int) bool {
	if startIdx < 3 {
		return false
	}
	earlier := float64(series[startIdx-3].Impressions)
	last := float64(series[startIdx-1].Impressions)
	return earlier > 0 && last <= earlier*0.5
}

func audienceSaturated(cfg Config, series []DayStatus, startIdx int) bool {
	if startIdx < 2 {
		return false
	}
	prev := series[startIdx-1]
	prior := series[startIdx-2]
	if prev.Frequency <= cfg.FrequencyCeiling {
		return false
	}
	// Reach plateau: within 5% of the prior day.
	if prior.Reach <= 0 {
		return false
	}
	growth := float64(prev.Reach-prior.Reach) / float64(prior.Reach)
	return growth <= 0.05
}

func indexOfDay(series []DayStatus, day time.Time) int {
	for i := range series {
		if series[i].Day.Equal(day) {
			return i
		}
	}
	return -1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
