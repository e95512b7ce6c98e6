package continuity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	"github.com/fortunefaded/marketing-tool-sub003/internal/continuity"
)

func TestSeriesZeroFill(t *testing.T) {
	w := window("2026-08-01", "2026-08-07")
	records := []aggregate.CanonicalDailyRecord{
		record(day("2026-08-02"), 1000, 20, 50, 600),
		record(day("2026-08-05"), 2000, 40, 100, 900),
	}

	report := newAnalyzer().Analyze(records, w)
	require.Len(t, report.Days, 7)

	// Every calendar day appears, in order, with absent days zeroed.
	assert.Equal(t, day("2026-08-01"), report.Days[0].Day)
	assert.False(t, report.Days[0].HasDelivery)
	assert.Equal(t, continuity.IntensityNone, report.Days[0].Intensity)

	assert.True(t, report.Days[1].HasDelivery)
	assert.Equal(t, int64(1000), report.Days[1].Impressions)
	assert.InDelta(t, 50, report.Days[1].Spend, 0.001)

	assert.False(t, report.Days[2].HasDelivery)
	assert.True(t, report.Days[4].HasDelivery)
	assert.Equal(t, int64(2000), report.Days[4].Impressions)
}

func TestIntensityBuckets(t *testing.T) {
	w := window("2026-08-01", "2026-08-06")
	records := []aggregate.CanonicalDailyRecord{
		record(day("2026-08-02"), 50, 1, 1, 40),
		record(day("2026-08-03"), 500, 10, 5, 300),
		record(day("2026-08-04"), 5000, 100, 50, 3000),
		record(day("2026-08-05"), 50000, 1000, 500, 30000),
		record(day("2026-08-06"), 500000, 10000, 5000, 300000),
	}

	report := newAnalyzer().Analyze(records, w)
	require.Len(t, report.Days, 6)
	assert.Equal(t, continuity.IntensityNone, report.Days[0].Intensity)
	assert.Equal(t, continuity.IntensityVeryLow, report.Days[1].Intensity)
	assert.Equal(t, continuity.IntensityLow, report.Days[2].Intensity)
	assert.Equal(t, continuity.IntensityMedium, report.Days[3].Intensity)
	assert.Equal(t, continuity.IntensityHigh, report.Days[4].Intensity)
	assert.Equal(t, continuity.IntensityVeryHigh, report.Days[5].Intensity)
}

func TestDayComparisons(t *testing.T) {
	w := window("2026-08-01", "2026-08-10")
	var records []aggregate.CanonicalDailyRecord
	// 100 impressions on day 1, then doubling day over day up to day 3,
	// steady 400 afterwards.
	impressions := []int64{100, 200, 400, 400, 400, 400, 400, 400, 800, 400}
	for i, imp := range impressions {
		records = append(records, record(w.From.AddDate(0, 0, i), imp, imp/50, float64(imp)/20, imp/2))
	}

	report := newAnalyzer().Analyze(records, w)
	days := report.Days

	t.Run("first day has no prior-day reference", func(t *testing.T) {
		assert.Nil(t, days[0].VsPriorDay)
	})

	t.Run("day over day percent change", func(t *testing.T) {
		require.NotNil(t, days[1].VsPriorDay)
		assert.InDelta(t, 100, *days[1].VsPriorDay, 0.001)

		require.NotNil(t, days[3].VsPriorDay)
		assert.InDelta(t, 0, *days[3].VsPriorDay, 0.001)
	})

	t.Run("week over week needs seven prior days", func(t *testing.T) {
		assert.Nil(t, days[6].VsPriorWeek)
		require.NotNil(t, days[7].VsPriorWeek)
		// Day 8 (400) versus day 1 (100).
		assert.InDelta(t, 300, *days[7].VsPriorWeek, 0.001)
	})

	t.Run("baseline compares against the trailing average", func(t *testing.T) {
		// Day 9 is 800 against a trailing 7-day average of
		// (200+400*6)/7 = 371.43.
		require.NotNil(t, days[8].VsBaseline)
		assert.InDelta(t, 115.38, *days[8].VsBaseline, 0.01)
	})
}

func TestComparisonsSkipZeroReference(t *testing.T) {
	w := window("2026-08-01", "2026-08-03")
	records := []aggregate.CanonicalDailyRecord{
		record(day("2026-08-02"), 1000, 20, 50, 600),
		record(day("2026-08-03"), 1500, 30, 75, 800),
	}

	report := newAnalyzer().Analyze(records, w)

	// Day 2 follows a zero-delivery day: no percentage is meaningful.
	assert.Nil(t, report.Days[1].VsPriorDay)
	require.NotNil(t, report.Days[2].VsPriorDay)
	assert.InDelta(t, 50, *report.Days[2].VsPriorDay, 0.001)
}
