package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/continuity"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// Store wraps the sqlite database holding canonical records and reports.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured sqlite database and runs migrations.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.GetDatabasePath()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := NewWithDB(db, logger)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection; used by tests with an in-memory
// database.
func NewWithDB(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&DailyRecord{},
			&AnalysisReport{},
		)
	})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// UpsertDailyRecords writes canonical records, replacing rows that already
// exist for the same (entity, day).
func (s *Store) UpsertDailyRecords(records []aggregate.CanonicalDailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]DailyRecord, 0, len(records))
	for _, r := range records {
		rows = append(rows, DailyRecord{
			EntityID:     r.EntityID,
			Day:          r.Day,
			EntityName:   r.EntityName,
			CampaignID:   r.CampaignID,
			AdsetID:      r.AdsetID,
			Impressions:  r.Impressions,
			Clicks:       r.Clicks,
			Spend:        r.Spend.String(),
			Reach:        r.Reach,
			Conversions:  r.Conversions,
			CTR:          r.CTR,
			CPC:          r.CPC,
			CPM:          r.CPM,
			Frequency:    r.Frequency,
			PlatformsCSV: strings.Join(r.Platforms, ","),
		})
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"entity_name", "campaign_id", "adset_id",
			"impressions", "clicks", "spend", "reach", "conversions",
			"ctr", "cpc", "cpm", "frequency", "platforms_csv", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert daily records: %w", err)
	}

	s.logger.Debug("persisted daily records", slog.Int("count", len(rows)))
	return nil
}

// RecordsInRange loads an entity's canonical records for a window, ordered
// by day.
func (s *Store) RecordsInRange(entityID string, window timeframe.DateRange) ([]aggregate.CanonicalDailyRecord, error) {
	var rows []DailyRecord
	err := s.db.
		Where("entity_id = ? AND day BETWEEN ? AND ?", entityID, window.From, window.To).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily records: %w", err)
	}

	records := make([]aggregate.CanonicalDailyRecord, 0, len(rows))
	for _, row := range rows {
		spend, err := decimal.NewFromString(row.Spend)
		if err != nil {
			spend = decimal.Zero
		}
		record := aggregate.CanonicalDailyRecord{
			EntityID:    row.EntityID,
			EntityName:  row.EntityName,
			CampaignID:  row.CampaignID,
			AdsetID:     row.AdsetID,
			Day:         timeframe.Day(row.Day),
			Impressions: row.Impressions,
			Clicks:      row.Clicks,
			Spend:       spend,
			Reach:       row.Reach,
			Conversions: row.Conversions,
			CTR:         row.CTR,
			CPC:         row.CPC,
			CPM:         row.CPM,
			Frequency:   row.Frequency,
		}
		if row.PlatformsCSV != "" {
			record.Platforms = strings.Split(row.PlatformsCSV, ",")
		}
		records = append(records, record)
	}
	return records, nil
}

// SaveReport persists a continuity analysis summary with its full detail.
func (s *Store) SaveReport(entityID string, report *continuity.Report) error {
	detail, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	row := AnalysisReport{
		EntityID:        entityID,
		WindowFrom:      report.Window.From,
		WindowTo:        report.Window.To,
		Pattern:         string(report.Pattern),
		ContinuityScore: report.ContinuityScore,
		GapCount:        len(report.Gaps),
		AnomalyCount:    len(report.Anomalies),
		TotalGapDays:    report.TotalGapDays,
		Detail:          string(detail),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save analysis report: %w", err)
	}
	return nil
}

// LatestReport returns the most recent persisted report for an entity.
func (s *Store) LatestReport(entityID string) (*AnalysisReport, error) {
	var row AnalysisReport
	err := s.db.
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis report: %w", err)
	}
	return &row, nil
}
