// Package client fetches ads-insights time-series from the upstream API,
// coordinating the rate budget, circuit breaker, retry policy, and response
// cache around a strictly sequential page cursor walk.
package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
	"github.com/fortunefaded/marketing-tool-sub003/internal/tokens"
)

// Entity levels accepted by the insights endpoint.
const (
	LevelAccount  = "account"
	LevelCampaign = "campaign"
	LevelAdset    = "adset"
	LevelAd       = "ad"
)

// DefaultFields is the field list requested when a query specifies none.
var DefaultFields = []string{
	"ad_id", "ad_name", "campaign_id", "adset_id",
	"impressions", "clicks", "spend", "reach", "frequency",
	"ctr", "cpc", "cpm", "actions",
	"date_start", "date_stop",
}

// Query describes one logical insights fetch.
type Query struct {
	// AccountID is the ad account the token is resolved for.
	AccountID string
	// ObjectID is the API object queried, e.g. "act_123" or an ad id.
	// Defaults to "act_<AccountID>".
	ObjectID string
	Level    string
	Fields   []string
	Range    timeframe.DateRange

	// PlatformBreakdown partitions rows by delivery platform.
	// DailyIncrement returns one row per day. The upstream API rejects
	// requests combining both, so Validate refuses the combination.
	PlatformBreakdown bool
	DailyIncrement    bool

	// Limit is the page size; 0 uses the configured default.
	Limit int
}

// Validate checks the query for upstream-contract violations.
func (q Query) Validate() error {
	if q.AccountID == "" {
		return fmt.Errorf("query missing account id")
	}
	if q.PlatformBreakdown && q.DailyIncrement {
		return fmt.Errorf("platform breakdown and daily time increment cannot be combined in one request")
	}
	switch q.Level {
	case "", LevelAccount, LevelCampaign, LevelAdset, LevelAd:
	default:
		return fmt.Errorf("invalid query level %q", q.Level)
	}
	return nil
}

// object returns the queried API object id.
func (q Query) object() string {
	if q.ObjectID != "" {
		return q.ObjectID
	}
	return "act_" + q.AccountID
}

// firstPageURL builds the URL for the first page of the query.
func (q Query) firstPageURL(baseURL, version string, pageSize int, token tokens.AccessToken) string {
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultFields
	}
	limit := q.Limit
	if limit <= 0 {
		limit = pageSize
	}

	values := url.Values{}
	values.Set("fields", strings.Join(fields, ","))
	values.Set("limit", strconv.Itoa(limit))
	values.Set("access_token", string(token))
	if q.Level != "" {
		values.Set("level", q.Level)
	}
	if q.Range.IsPreset() {
		values.Set("date_preset", q.Range.Preset())
	} else {
		timeRange := fmt.Sprintf(`{"since":"%s","until":"%s"}`,
			q.Range.From.Format(timeframe.DayFormat),
			q.Range.To.Format(timeframe.DayFormat))
		values.Set("time_range", timeRange)
	}
	if q.PlatformBreakdown {
		values.Set("breakdowns", "publisher_platform")
	}
	if q.DailyIncrement {
		values.Set("time_increment", "1")
	}

	return fmt.Sprintf("%s/%s/%s/insights?%s", baseURL, version, q.object(), values.Encode())
}
