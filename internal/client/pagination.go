package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

// ProgressEvent is emitted after each fetched page.
type ProgressEvent struct {
	RunID        string
	ItemsSoFar   int
	CurrentPage  int
	// EstimatedTotalPages is a lower-bound estimate: the current page count
	// plus one while a next cursor exists.
	EstimatedTotalPages   int
	RemainingHourlyBudget int
}

// ProgressFunc receives progress events. It runs on the fetch goroutine and
// must return promptly.
type ProgressFunc func(ProgressEvent)

// FetchOptions tunes one FetchAll run.
type FetchOptions struct {
	// MaxPages caps the cursor walk; 0 uses the configured default.
	MaxPages int
	// Progress, when set, is invoked once per page.
	Progress ProgressFunc
	// MustComplete turns cancellation into an error instead of a partial
	// result.
	MustComplete bool
}

// FetchResult is the outcome of one logical query.
type FetchResult struct {
	Rows              []insights.RawInsightRow
	IsComplete        bool
	PagesFetched      int
	DuplicatesRemoved int
	ValidationErrors  []string
}

// Engine walks an insights query's page cursor sequentially. Each page's
// cursor depends on the prior response, so pages of one query are never
// parallelized; independent queries may run concurrently through the same
// shared Client.
type Engine struct {
	client         *Client
	logger         *slog.Logger
	maxPages       int
	interPageDelay time.Duration
	pageSize       int
	enrichBatch    int
	enrichDelay    time.Duration
}

// NewEngine creates a pagination engine on top of the shared client.
func NewEngine(c *Client, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		client:         c,
		logger:         logger,
		maxPages:       cfg.MaxPages,
		interPageDelay: cfg.InterPageDelay(),
		pageSize:       cfg.PageSize,
		enrichBatch:    cfg.EnrichBatchSize,
		enrichDelay:    cfg.EnrichBatchDelay(),
	}
}

// FetchAll retrieves every page for the query, deduplicating and validating
// rows as they arrive. Partial progress survives rate-limit and transport
// failures: once at least one page has been accumulated those errors yield
// an incomplete result instead of discarding the rows.
func (e *Engine) FetchAll(ctx context.Context, q Query, opts FetchOptions) (*FetchResult, error) {
	runID := uuid.NewString()
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = e.maxPages
	}

	pageURL, err := e.client.FirstPageURL(q, e.pageSize)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{}
	seen := make(map[string]bool)

	e.logger.Info("starting insights fetch",
		slog.String("run_id", runID),
		slog.String("account_id", q.AccountID),
		slog.String("level", q.Level))

	for pageURL != "" {
		// Cancellation is cooperative: checked between suspension points.
		if err := ctx.Err(); err != nil {
			if opts.MustComplete {
				return nil, insights.CancelledError(err)
			}
			e.logger.Info("fetch cancelled, returning accumulated rows",
				slog.String("run_id", runID),
				slog.Int("rows", len(result.Rows)))
			return result, nil
		}

		if result.PagesFetched >= maxPages {
			// Cursor still present: the caller may resume later.
			e.logger.Warn("page cap reached with cursor remaining",
				slog.String("run_id", runID),
				slog.Int("pages", result.PagesFetched))
			return result, nil
		}

		page, fromCache, err := e.client.FetchPage(ctx, pageURL)
		if err != nil {
			if partialSalvageable(err) && len(result.Rows) > 0 {
				e.client.metrics.PartialResults.Inc()
				e.logger.Warn("fetch failed after partial progress, keeping rows",
					slog.String("run_id", runID),
					slog.Int("rows", len(result.Rows)),
					slog.Any("error", err))
				return result, nil
			}
			return nil, err
		}

		result.PagesFetched++
		e.client.metrics.PagesFetched.Inc()
		e.ingestPage(page, seen, result)

		if opts.Progress != nil {
			estimate := result.PagesFetched
			if page.Next != "" {
				estimate++
			}
			opts.Progress(ProgressEvent{
				RunID:                 runID,
				ItemsSoFar:            len(result.Rows),
				CurrentPage:           result.PagesFetched,
				EstimatedTotalPages:   estimate,
				RemainingHourlyBudget: e.client.Budget().HourlyRemaining(),
			})
		}

		if fromCache {
			// Cached fallback during an open circuit; the cursor cannot be
			// trusted to advance, so stop here.
			return result, nil
		}

		pageURL = page.Next
		if pageURL == "" {
			result.IsComplete = true
			break
		}

		// Fixed courtesy delay between pages, independent of the budget.
		if err := e.client.sleep(ctx, e.interPageDelay); err != nil {
			if opts.MustComplete {
				return nil, insights.CancelledError(err)
			}
			return result, nil
		}
	}

	e.logger.Info("insights fetch finished",
		slog.String("run_id", runID),
		slog.Int("rows", len(result.Rows)),
		slog.Int("pages", result.PagesFetched),
		slog.Int("duplicates", result.DuplicatesRemoved),
		slog.Bool("complete", result.IsComplete))
	return result, nil
}

// ingestPage deduplicates and validates one page of rows into the result.
func (e *Engine) ingestPage(page *insights.Page, seen map[string]bool, result *FetchResult) {
	rowsBefore := len(result.Rows)
	dupesBefore := result.DuplicatesRemoved
	// Rows discarded at the parse boundary still count as validation errors.
	result.ValidationErrors = append(result.ValidationErrors, page.ParseWarnings...)
	for _, row := range page.Rows {
		key := row.DedupKey()
		if seen[key] {
			result.DuplicatesRemoved++
			continue
		}

		warnings, err := row.Validate()
		if err != nil {
			// Rows without an entity id cannot be keyed downstream.
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		result.ValidationErrors = append(result.ValidationErrors, warnings...)

		seen[key] = true
		result.Rows = append(result.Rows, row)
	}
	e.client.metrics.RowsIngested.Add(float64(len(result.Rows) - rowsBefore))
	e.client.metrics.RowsDeduped.Add(float64(result.DuplicatesRemoved - dupesBefore))
}

// partialSalvageable reports whether an error class allows returning
// already-accumulated rows.
func partialSalvageable(err error) bool {
	return insights.IsKind(err, insights.KindRateLimit) ||
		insights.IsKind(err, insights.KindNetwork) ||
		insights.IsKind(err, insights.KindTimeout)
}
