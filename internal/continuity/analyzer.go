package continuity

import (
	"log/slog"
	"math"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// Pattern labels the whole window's delivery shape.
type Pattern string

const (
	PatternContinuous   Pattern = "continuous"
	PatternPartial      Pattern = "partial"
	PatternIntermittent Pattern = "intermittent"
	PatternSingle       Pattern = "single"
	PatternNone         Pattern = "none"
)

// Report is the full continuity analysis for one entity over one window.
type Report struct {
	Window          timeframe.DateRange
	Days            []DayStatus
	Gaps            []Gap
	Anomalies       []Anomaly
	Pattern         Pattern
	ContinuityScore int
	TotalGapDays    int
	ActiveDays      int
}

// Analyzer runs the continuity analysis with a fixed threshold set.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer. A zero ConsecutiveDays falls back to the
// defaults wholesale.
func NewAnalyzer(cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.ConsecutiveDays == 0 {
		cfg = DefaultConfig()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Analyze builds the complete daily series for the window (absent days count
// as zero delivery) and derives gaps, anomalies, the delivery pattern, and
// the continuity score.
func (a *Analyzer) Analyze(records []aggregate.CanonicalDailyRecord, window timeframe.DateRange) *Report {
	series := buildSeries(a.cfg, records, window)
	gaps := detectGaps(a.cfg, series)
	anomalies := detectAnomalies(a.cfg, series)

	report := &Report{
		Window:    window,
		Days:      series,
		Gaps:      gaps,
		Anomalies: anomalies,
	}
	for _, day := range series {
		if day.HasDelivery {
			report.ActiveDays++
		}
	}
	for _, gap := range gaps {
		report.TotalGapDays += gap.DurationDays
	}

	report.Pattern = classifyPattern(a.cfg, series, gaps, report.ActiveDays)
	report.ContinuityScore = continuityScore(report.TotalGapDays, len(series))

	a.logger.Debug("continuity analysis complete",
		slog.Int("days", len(series)),
		slog.Int("gaps", len(gaps)),
		slog.Int("anomalies", len(anomalies)),
		slog.String("pattern", string(report.Pattern)),
		slog.Int("score", report.ContinuityScore))
	return report
}

// classifyPattern assigns the whole-window label.
func classifyPattern(cfg Config, series []DayStatus, gaps []Gap, activeDays int) Pattern {
	totalDays := len(series)
	if totalDays == 0 || activeDays == 0 {
		return PatternNone
	}
	if activeDays == 1 {
		return PatternSingle
	}
	if len(gaps) == 0 {
		return PatternContinuous
	}

	longest := 0
	for _, gap := range gaps {
		if gap.DurationDays > longest {
			longest = gap.DurationDays
		}
	}
	// Many short gaps with no long outage reads as alternation.
	if len(gaps) >= 3 && longest < cfg.GapMajorDays {
		return PatternIntermittent
	}
	if activeDays*2 > totalDays {
		return PatternPartial
	}
	return PatternIntermittent
}

// continuityScore maps the gap-day fraction onto [0,100]: no gap days is
// 100, a fully gapped window is 0, monotone in between.
func continuityScore(gapDays, totalDays int) int {
	if totalDays <= 0 {
		return 0
	}
	score := 100 * (1 - float64(gapDays)/float64(totalDays))
	return int(math.Round(math.Max(0, math.Min(100, score))))
}
