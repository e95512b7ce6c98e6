package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fortunefaded/marketing-tool-sub003/internal/breaker"
	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
	"github.com/fortunefaded/marketing-tool-sub003/internal/metrics"
	"github.com/fortunefaded/marketing-tool-sub003/internal/ratelimit"
	"github.com/fortunefaded/marketing-tool-sub003/internal/respcache"
	"github.com/fortunefaded/marketing-tool-sub003/internal/retry"
	"github.com/fortunefaded/marketing-tool-sub003/internal/tokens"
)

// Client wraps the upstream insights API with the shared resilience
// machinery. One Client (and therefore one budget and one breaker) exists
// per downstream dependency; independent queries go through the same
// instance so the rate budget is respected globally.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string

	tokens  tokens.Provider
	budget  *ratelimit.Budget
	breaker *breaker.Breaker
	cache   *respcache.Cache
	policy  *retry.Policy
	logger  *slog.Logger
	metrics *metrics.Metrics

	// sleep is injectable so tests run without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options carries the collaborators a Client is built from.
type Options struct {
	Config   *config.Config
	Tokens   tokens.Provider
	Budget   *ratelimit.Budget
	Breaker  *breaker.Breaker
	Cache    *respcache.Cache
	Policy   *retry.Policy
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	HTTPDoer *http.Client
}

// New creates a Client. Budget, breaker, cache and policy must be the
// process-wide instances for this dependency.
func New(opts Options) *Client {
	httpClient := opts.HTTPDoer
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Config.RequestTimeout()}
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    opts.Config.APIBaseURL,
		version:    opts.Config.APIVersion,
		tokens:     opts.Tokens,
		budget:     opts.Budget,
		breaker:    opts.Breaker,
		cache:      opts.Cache,
		policy:     opts.Policy,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		sleep:      sleepContext,
	}
	c.breaker.OnStateChange(func(_, to breaker.State) {
		c.metrics.CircuitState.Set(stateValue(to))
	})
	return c
}

// SetSleeper replaces the delay function; intended for tests.
func (c *Client) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	c.sleep = fn
}

// Budget exposes the shared rate budget for progress reporting.
func (c *Client) Budget() *ratelimit.Budget {
	return c.budget
}

// Breaker exposes the shared circuit breaker.
func (c *Client) Breaker() *breaker.Breaker {
	return c.breaker
}

// FetchPage retrieves one insights page. When the circuit is open it falls
// back to the response cache; fromCache reports that path so the caller can
// mark the result incomplete.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (page *insights.Page, fromCache bool, err error) {
	key := respcache.Key(rawURL)

	if !c.breaker.CanAttempt() {
		if cached, ok := c.cache.Get(key); ok {
			c.metrics.CacheHits.Inc()
			c.logger.Warn("circuit open, serving cached response", slog.String("key", key))
			return cached, true, nil
		}
		c.metrics.CacheMisses.Inc()
		c.metrics.RequestsTotal.WithLabelValues(string(insights.KindCircuitOpen)).Inc()
		return nil, false, insights.CircuitOpenError("insights-api")
	}

	if err := c.awaitBudget(ctx); err != nil {
		c.breaker.AbandonProbe()
		return nil, false, err
	}

	page, shared, err := c.cache.Fetch(key, func() (*insights.Page, error) {
		return c.fetchWithRetry(ctx, rawURL)
	})
	if shared {
		c.metrics.CoalescedCalls.Inc()
	}
	if err != nil {
		return nil, false, err
	}
	return page, false, nil
}

// FetchCreative retrieves the creative detail for one ad through the same
// budget, breaker, and retry machinery as page fetches.
func (c *Client) FetchCreative(ctx context.Context, accountID, adID string) (*insights.Creative, error) {
	token, err := c.tokens.GetToken(accountID)
	if err != nil {
		return nil, &insights.APIError{Kind: insights.KindAuth, Message: err.Error()}
	}
	rawURL := c.baseURL + "/" + c.version + "/" + adID +
		"?fields=creative%7Bid,name,title,body,thumbnail_url,image_url,video_id%7D" +
		"&access_token=" + string(token)

	if !c.breaker.CanAttempt() {
		c.metrics.RequestsTotal.WithLabelValues(string(insights.KindCircuitOpen)).Inc()
		return nil, insights.CircuitOpenError("insights-api")
	}
	if err := c.awaitBudget(ctx); err != nil {
		c.breaker.AbandonProbe()
		return nil, err
	}

	var creative *insights.Creative
	err = c.withRetry(ctx, func() error {
		status, _, body, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		parsed, err := insights.ParseCreative(status, body)
		if err != nil {
			return err
		}
		creative = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return creative, nil
}

// FirstPageURL resolves the query's token and builds its first page URL.
func (c *Client) FirstPageURL(q Query, pageSize int) (string, error) {
	if err := q.Validate(); err != nil {
		return "", &insights.APIError{Kind: insights.KindValidation, Message: err.Error()}
	}
	token, err := c.tokens.GetToken(q.AccountID)
	if err != nil {
		return "", &insights.APIError{Kind: insights.KindAuth, Message: err.Error()}
	}
	return q.firstPageURL(c.baseURL, c.version, pageSize, token), nil
}

// awaitBudget blocks (cooperatively) until the rate budget admits a call.
func (c *Client) awaitBudget(ctx context.Context) error {
	for !c.budget.CanProceed() {
		wait := c.budget.WaitTime()
		c.metrics.RateLimitWaits.Inc()
		c.logger.Info("rate budget exhausted, waiting",
			slog.Duration("wait", wait),
			slog.Int("hourly_used", c.budget.CurrentUsage().Hourly))
		if err := c.sleep(ctx, wait); err != nil {
			return insights.CancelledError(err)
		}
	}
	return nil
}

// fetchWithRetry performs one page request under the retry policy.
func (c *Client) fetchWithRetry(ctx context.Context, rawURL string) (*insights.Page, error) {
	var page *insights.Page
	err := c.withRetry(ctx, func() error {
		status, header, body, err := c.doRequest(ctx, rawURL)
		if err != nil {
			return err
		}
		parsed, warnings, err := insights.ParseResponse(status, header, body)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			c.logger.Warn("dropped unparseable row", slog.String("reason", w))
		}
		page = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// withRetry runs fn under the retry policy and keeps the budget and breaker
// informed. Success records a budget call and a breaker success; retry
// exhaustion or a non-retryable failure records a breaker failure.
// Cancellation records neither, but releases any half-open probe the
// attempt claimed so the breaker stays live for the next caller.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	attempt := 0
	for {
		err := fn()
		if err == nil {
			c.budget.RecordCall()
			c.breaker.OnSuccess()
			c.publishBudget()
			c.metrics.RequestsTotal.WithLabelValues("success").Inc()
			return nil
		}

		if insights.IsKind(err, insights.KindCancelled) {
			c.breaker.AbandonProbe()
			return err
		}

		c.metrics.RequestsTotal.WithLabelValues(errorLabel(err)).Inc()

		if !c.policy.ShouldRetry(err, attempt) {
			c.breaker.OnFailure()
			return err
		}

		delay := c.policy.NextDelay(err, attempt)
		c.metrics.RetriesTotal.Inc()
		c.logger.Warn("retrying request",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			c.breaker.AbandonProbe()
			return insights.CancelledError(sleepErr)
		}
		attempt++
	}
}

// doRequest issues one HTTP GET. The http.Client timeout enforces the
// request deadline.
func (c *Client) doRequest(ctx context.Context, rawURL string) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, nil, &insights.APIError{Kind: insights.KindValidation, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, insights.ClassifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, insights.ClassifyTransport(err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

func (c *Client) publishBudget() {
	usage := c.budget.CurrentUsage()
	c.metrics.RateBudgetHourly.Set(float64(usage.Hourly))
	c.metrics.RateBudgetDaily.Set(float64(usage.Daily))
}

func errorLabel(err error) string {
	for _, kind := range []insights.Kind{
		insights.KindNetwork, insights.KindTimeout, insights.KindAuth,
		insights.KindRateLimit, insights.KindValidation, insights.KindAPI,
	} {
		if insights.IsKind(err, kind) {
			return string(kind)
		}
	}
	return "unknown"
}

func stateValue(s breaker.State) float64 {
	switch s {
	case breaker.StateClosed:
		return 0
	case breaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
