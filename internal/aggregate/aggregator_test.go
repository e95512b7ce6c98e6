package aggregate_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func platformRow(entityID, platform string, impressions, clicks int64, spend string, reach int64) insights.RawInsightRow {
	return insights.RawInsightRow{
		EntityID:    entityID,
		EntityName:  "Ad " + entityID,
		Day:         day("2026-08-01"),
		Platform:    platform,
		Impressions: impressions,
		Clicks:      clicks,
		Spend:       decimal.RequireFromString(spend),
		Reach:       reach,
	}
}

func TestMergeRecomputesRatiosFromAbsolutes(t *testing.T) {
	// facebook: 100 impressions, 2 clicks (2% CTR)
	// instagram: 50 impressions, 10 clicks (20% CTR)
	// Averaging the per-platform CTRs would give 11%; the merged truth is
	// 12 clicks over 150 impressions = 8%.
	rows := []insights.RawInsightRow{
		platformRow("ad1", "facebook", 100, 2, "10.00", 80),
		platformRow("ad1", "instagram", 50, 10, "5.00", 40),
	}
	rows[0].CTR = 2.0
	rows[1].CTR = 20.0

	records := aggregate.Merge(rows)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, int64(150), record.Impressions)
	assert.Equal(t, int64(12), record.Clicks)
	assert.InDelta(t, 8.0, record.CTR, 0.0001)
	assert.Equal(t, "15", record.Spend.String())
	assert.InDelta(t, 1.25, record.CPC, 0.0001)
	assert.InDelta(t, 100.0, record.CPM, 0.0001)
	assert.ElementsMatch(t, []string{"facebook", "instagram"}, record.Platforms)
}

func TestMergeReachUsesMax(t *testing.T) {
	rows := []insights.RawInsightRow{
		platformRow("ad1", "facebook", 100, 1, "1.00", 80),
		platformRow("ad1", "instagram", 100, 1, "1.00", 60),
	}
	records := aggregate.Merge(rows)
	require.Len(t, records, 1)

	// Unique users overlap across platforms, so reach is the dominant
	// platform's figure rather than the sum.
	assert.Equal(t, int64(80), records[0].Reach)
	assert.InDelta(t, 2.5, records[0].Frequency, 0.0001)
}

func TestMergeSumsActions(t *testing.T) {
	a := platformRow("ad1", "facebook", 10, 1, "1.00", 10)
	a.Actions = []insights.ActionStat{{Type: "purchase", Value: 3}, {Type: "link_click", Value: 8}}
	b := platformRow("ad1", "instagram", 10, 1, "1.00", 10)
	b.Actions = []insights.ActionStat{{Type: "purchase", Value: 2}}

	records := aggregate.Merge([]insights.RawInsightRow{a, b})
	require.Len(t, records, 1)
	assert.Equal(t, 5.0, records[0].Actions["purchase"])
	assert.Equal(t, 8.0, records[0].Actions["link_click"])
}

func TestMergeZeroDenominators(t *testing.T) {
	rows := []insights.RawInsightRow{
		platformRow("ad1", "facebook", 0, 0, "0", 0),
	}
	records := aggregate.Merge(rows)
	require.Len(t, records, 1)

	record := records[0]
	assert.Zero(t, record.CTR)
	assert.Zero(t, record.CPC)
	assert.Zero(t, record.CPM)
	assert.Zero(t, record.Frequency)
}

func TestMergeKeepsDistinctDaysAndEntities(t *testing.T) {
	r1 := platformRow("ad2", "facebook", 10, 1, "1.00", 10)
	r2 := platformRow("ad1", "facebook", 10, 1, "1.00", 10)
	r3 := platformRow("ad1", "facebook", 20, 2, "2.00", 20)
	r3.Day = day("2026-08-02")

	records := aggregate.Merge([]insights.RawInsightRow{r1, r2, r3})
	require.Len(t, records, 3)

	// Sorted by entity then day.
	assert.Equal(t, "ad1", records[0].EntityID)
	assert.Equal(t, day("2026-08-01"), records[0].Day)
	assert.Equal(t, "ad1", records[1].EntityID)
	assert.Equal(t, day("2026-08-02"), records[1].Day)
	assert.Equal(t, "ad2", records[2].EntityID)
}

func TestMergeSpendIsExact(t *testing.T) {
	// 0.1 + 0.2 style drift must not appear in money.
	rows := []insights.RawInsightRow{
		platformRow("ad1", "facebook", 1, 0, "0.10", 0),
		platformRow("ad1", "instagram", 1, 0, "0.20", 0),
	}
	records := aggregate.Merge(rows)
	require.Len(t, records, 1)
	assert.Equal(t, "0.3", records[0].Spend.String())
}

func TestMergeEmptyInput(t *testing.T) {
	assert.Empty(t, aggregate.Merge(nil))
}
