package client

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

// EnrichCreatives fetches creative details for a set of ads. Lookups are
// independent of each other, so this is the one place true parallel fan-out
// happens: bounded batches share the one Client (and thus the global budget
// and breaker), with a fixed pause between batches. Individual lookup
// failures are logged and skipped; only cancellation aborts the fan-out.
func (e *Engine) EnrichCreatives(ctx context.Context, accountID string, adIDs []string) (map[string]*insights.Creative, error) {
	creatives := make(map[string]*insights.Creative, len(adIDs))
	var mu sync.Mutex

	for start := 0; start < len(adIDs); start += e.enrichBatch {
		if err := ctx.Err(); err != nil {
			return creatives, insights.CancelledError(err)
		}

		end := start + e.enrichBatch
		if end > len(adIDs) {
			end = len(adIDs)
		}
		batch := adIDs[start:end]

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(e.enrichBatch)
		for _, adID := range batch {
			adID := adID
			group.Go(func() error {
				creative, err := e.client.FetchCreative(groupCtx, accountID, adID)
				if err != nil {
					if insights.IsKind(err, insights.KindCancelled) {
						return err
					}
					e.logger.Warn("creative lookup failed",
						slog.String("ad_id", adID),
						slog.Any("error", err))
					return nil
				}
				mu.Lock()
				creatives[adID] = creative
				mu.Unlock()
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return creatives, err
		}

		if end < len(adIDs) {
			if err := e.client.sleep(ctx, e.enrichDelay); err != nil {
				return creatives, insights.CancelledError(err)
			}
		}
	}
	return creatives, nil
}
