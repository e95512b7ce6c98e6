// Package store persists canonical daily records and analysis reports. It
// is the external persistence collaborator: the ingestion and analysis core
// returns values and never touches this package.
package store

import (
	"time"
)

// DailyRecord is the persisted form of one canonical entity-day record.
type DailyRecord struct {
	ID         uint      `gorm:"primarykey"`
	EntityID   string    `gorm:"index:idx_entity_day,unique;size:64"`
	Day        time.Time `gorm:"index:idx_entity_day,unique"`
	EntityName string
	CampaignID string `gorm:"size:64;index"`
	AdsetID    string `gorm:"size:64"`

	Impressions int64
	Clicks      int64
	// Spend is stored as its decimal string to avoid float drift.
	Spend       string
	Reach       int64
	Conversions int64

	CTR       float64
	CPC       float64
	CPM       float64
	Frequency float64

	// PlatformsCSV lists the merged platform partitions.
	PlatformsCSV string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AnalysisReport is the persisted summary of one continuity analysis run.
type AnalysisReport struct {
	ID         uint      `gorm:"primarykey"`
	EntityID   string    `gorm:"size:64;index"`
	WindowFrom time.Time
	WindowTo   time.Time

	Pattern         string
	ContinuityScore int
	GapCount        int
	AnomalyCount    int
	TotalGapDays    int

	// Detail holds the full report serialized as JSON.
	Detail string

	CreatedAt time.Time
}
