// main.go - one-shot insights sync: fetch, aggregate, analyze, persist
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fortunefaded/marketing-tool-sub003/internal/aggregate"
	"github.com/fortunefaded/marketing-tool-sub003/internal/breaker"
	"github.com/fortunefaded/marketing-tool-sub003/internal/client"
	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/continuity"
	"github.com/fortunefaded/marketing-tool-sub003/internal/logging"
	"github.com/fortunefaded/marketing-tool-sub003/internal/metrics"
	"github.com/fortunefaded/marketing-tool-sub003/internal/ratelimit"
	"github.com/fortunefaded/marketing-tool-sub003/internal/respcache"
	"github.com/fortunefaded/marketing-tool-sub003/internal/retry"
	"github.com/fortunefaded/marketing-tool-sub003/internal/store"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
	"github.com/fortunefaded/marketing-tool-sub003/internal/tokens"
)

func main() {
	accountID := flag.String("account", "", "ad account id (required)")
	preset := flag.String("range", string(timeframe.RangeLabelLast30Days), "named date range")
	level := flag.String("level", client.LevelAd, "query level: account, campaign, adset, ad")
	byPlatform := flag.Bool("platforms", true, "request the platform breakdown")
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		os.Exit(2)
	}
	token := os.Getenv("ADINSIGHTS_ACCESS_TOKEN")
	if token == "" {
		log.Fatal("ADINSIGHTS_ACCESS_TOKEN is required")
	}

	cfg := config.GetConfig()
	logger := logging.NewLogger(cfg)

	window, err := timeframe.FromLabel(timeframe.RangeLabel(*preset), timeframe.SystemClock{})
	if err != nil {
		log.Fatalf("Invalid range: %v", err)
	}

	db, err := store.Open(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	// One budget and one breaker per downstream dependency, shared by every
	// query in this process.
	clock := timeframe.SystemClock{}
	apiClient := client.New(client.Options{
		Config:  cfg,
		Tokens:  tokens.NewStaticProvider(map[string]tokens.AccessToken{*accountID: tokens.AccessToken(token)}),
		Budget:  ratelimit.NewBudget(cfg.HourlyCallCeiling, cfg.DailyCallCeiling, clock),
		Breaker: breaker.New(cfg.BreakerFailureThreshold, cfg.BreakerCooldown(), clock),
		Cache:   respcache.New(cfg.CacheTTL(), clock),
		Policy:  retry.FromConfig(cfg),
		Logger:  logger,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
	})
	engine := client.NewEngine(apiClient, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := engine.FetchAll(ctx, client.Query{
		AccountID:         *accountID,
		Level:             *level,
		Range:             window,
		PlatformBreakdown: *byPlatform,
		DailyIncrement:    !*byPlatform,
	}, client.FetchOptions{
		Progress: func(e client.ProgressEvent) {
			logger.Info("sync progress",
				slog.Int("items", e.ItemsSoFar),
				slog.Int("page", e.CurrentPage),
				slog.Int("budget_remaining", e.RemainingHourlyBudget))
		},
	})
	if err != nil {
		log.Fatalf("Fetch failed: %v", err)
	}

	records := aggregate.Merge(result.Rows)
	if err := db.UpsertDailyRecords(records); err != nil {
		log.Fatalf("Failed to persist records: %v", err)
	}

	analyzer := continuity.NewAnalyzer(continuity.FromAppConfig(cfg), logger)
	for _, entityID := range entityIDs(records) {
		report := analyzer.Analyze(recordsFor(records, entityID), window)
		if err := db.SaveReport(entityID, report); err != nil {
			log.Fatalf("Failed to save report for %s: %v", entityID, err)
		}
	}

	fmt.Printf("Synced %d rows (%d pages, %d duplicates removed, complete=%v) across %d entities\n",
		len(result.Rows), result.PagesFetched, result.DuplicatesRemoved,
		result.IsComplete, len(entityIDs(records)))
	if len(result.ValidationErrors) > 0 {
		fmt.Printf("Validation warnings: %s\n", strings.Join(result.ValidationErrors, "; "))
	}
}

func entityIDs(records []aggregate.CanonicalDailyRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range records {
		if !seen[r.EntityID] {
			seen[r.EntityID] = true
			ids = append(ids, r.EntityID)
		}
	}
	return ids
}

func recordsFor(records []aggregate.CanonicalDailyRecord, entityID string) []aggregate.CanonicalDailyRecord {
	var out []aggregate.CanonicalDailyRecord
	for _, r := range records {
		if r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}
