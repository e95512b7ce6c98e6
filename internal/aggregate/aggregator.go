// Package aggregate merges platform-partitioned insight rows into canonical
// per-entity-per-day records.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// CanonicalDailyRecord is one entity on one calendar day after the platform
// merge. Ratio metrics are always recomputed from the merged absolutes;
// per-platform ratios are never summed or averaged, because averaging
// silently corrupts the aggregate whenever platform volumes differ.
type CanonicalDailyRecord struct {
	EntityID   string
	EntityName string
	CampaignID string
	AdsetID    string
	Day        time.Time

	Impressions int64
	Clicks      int64
	Spend       decimal.Decimal
	// Reach is the max across platform partitions, not the sum: distinct
	// platforms' unique-user counts are not additive, so the dominant
	// platform's figure stands as the lower-bound estimate.
	Reach       int64
	Conversions int64

	CTR       float64
	CPC       float64
	CPM       float64
	Frequency float64

	// Actions sums the per-action-type breakdown across platforms.
	Actions map[string]float64

	// Platforms lists the partitions merged into this record.
	Platforms []string
}

// SpendFloat returns spend as a float for analysis math.
func (r CanonicalDailyRecord) SpendFloat() float64 {
	return r.Spend.InexactFloat64()
}

// Merge groups rows by (entity id, day) and collapses each group into one
// canonical record, sorted by entity then day.
func Merge(rows []insights.RawInsightRow) []CanonicalDailyRecord {
	type groupKey struct {
		entityID string
		day      string
	}

	groups := make(map[groupKey]*CanonicalDailyRecord)
	order := make([]groupKey, 0)

	for _, row := range rows {
		key := groupKey{entityID: row.EntityID, day: row.Day.Format(timeframe.DayFormat)}
		record, ok := groups[key]
		if !ok {
			record = &CanonicalDailyRecord{
				EntityID:   row.EntityID,
				EntityName: row.EntityName,
				CampaignID: row.CampaignID,
				AdsetID:    row.AdsetID,
				Day:        row.Day,
				Actions:    make(map[string]float64),
			}
			groups[key] = record
			order = append(order, key)
		}

		record.Impressions += row.Impressions
		record.Clicks += row.Clicks
		record.Spend = record.Spend.Add(row.Spend)
		record.Conversions += row.Conversions
		if row.Reach > record.Reach {
			record.Reach = row.Reach
		}
		for _, action := range row.Actions {
			record.Actions[action.Type] += action.Value
		}
		if row.Platform != "" {
			record.Platforms = append(record.Platforms, row.Platform)
		}
	}

	records := make([]CanonicalDailyRecord, 0, len(order))
	for _, key := range order {
		record := groups[key]
		record.recomputeRatios()
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].EntityID != records[j].EntityID {
			return records[i].EntityID < records[j].EntityID
		}
		return records[i].Day.Before(records[j].Day)
	})
	return records
}

// recomputeRatios derives every ratio metric from the merged absolutes.
func (r *CanonicalDailyRecord) recomputeRatios() {
	spend := r.Spend.InexactFloat64()

	if r.Impressions > 0 {
		r.CTR = float64(r.Clicks) / float64(r.Impressions) * 100
		r.CPM = spend / float64(r.Impressions) * 1000
	} else {
		r.CTR = 0
		r.CPM = 0
	}
	if r.Clicks > 0 {
		r.CPC = spend / float64(r.Clicks)
	} else {
		r.CPC = 0
	}
	if r.Reach > 0 {
		r.Frequency = float64(r.Impressions) / float64(r.Reach)
	} else {
		r.Frequency = 0
	}
}
