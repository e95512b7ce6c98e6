package insights_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

func TestParseResponseRows(t *testing.T) {
	t.Run("normalizes string-encoded numerics", func(t *testing.T) {
		body := `{"data":[{
			"ad_id":"ad1","ad_name":"Summer Sale","campaign_id":"c1","adset_id":"s1",
			"date_start":"2026-08-01","date_stop":"2026-08-01",
			"publisher_platform":"facebook",
			"impressions":"1500","clicks":"45","spend":"123.45","reach":"900",
			"frequency":"1.67","ctr":"3.0","cpc":"2.74","cpm":"82.30",
			"actions":[{"action_type":"purchase","value":"7"},{"action_type":"link_click","value":"41"}]
		}]}`

		page, warnings, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, page.Rows, 1)

		row := page.Rows[0]
		assert.Equal(t, "ad1", row.EntityID)
		assert.Equal(t, "Summer Sale", row.EntityName)
		assert.Equal(t, "facebook", row.Platform)
		assert.Equal(t, int64(1500), row.Impressions)
		assert.Equal(t, int64(45), row.Clicks)
		assert.Equal(t, "123.45", row.Spend.String())
		assert.Equal(t, int64(900), row.Reach)
		assert.InDelta(t, 1.67, row.Frequency, 0.001)
		require.Len(t, row.Actions, 2)
		assert.Equal(t, "purchase", row.Actions[0].Type)
		assert.Equal(t, 7.0, row.Actions[0].Value)
	})

	t.Run("falls back to generic id and name keys", func(t *testing.T) {
		body := `{"data":[{"id":"camp9","name":"Brand","date_start":"2026-08-02","impressions":"10"}]}`
		page, _, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		require.Len(t, page.Rows, 1)
		assert.Equal(t, "camp9", page.Rows[0].EntityID)
		assert.Equal(t, "Brand", page.Rows[0].EntityName)
	})

	t.Run("missing optional fields default to zero", func(t *testing.T) {
		body := `{"data":[{"ad_id":"ad1","date_start":"2026-08-02"}]}`
		page, warnings, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		assert.Empty(t, warnings)
		require.Len(t, page.Rows, 1)
		assert.Zero(t, page.Rows[0].Impressions)
		assert.True(t, page.Rows[0].Spend.IsZero())
	})

	t.Run("unparseable rows are dropped with a warning", func(t *testing.T) {
		body := `{"data":[
			{"ad_id":"bad","date_start":"2026-08-01","spend":"not-money"},
			{"ad_id":"good","date_start":"2026-08-01","spend":"1.00"}
		]}`
		page, warnings, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		require.Len(t, page.Rows, 1)
		assert.Equal(t, "good", page.Rows[0].EntityID)
		assert.Len(t, warnings, 1)
		// The page carries the warnings so callers downstream of a cache
		// see the dropped rows too.
		assert.Equal(t, warnings, page.ParseWarnings)
	})
}

func TestParseResponsePaging(t *testing.T) {
	t.Run("carries the next cursor", func(t *testing.T) {
		body := `{"data":[],"paging":{"cursors":{"before":"a","after":"b"},"next":"https://api.example.com/next"}}`
		page, _, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/next", page.Next)
	})

	t.Run("absent paging means exhausted cursor", func(t *testing.T) {
		body := `{"data":[]}`
		page, _, err := insights.ParseResponse(200, nil, []byte(body))
		require.NoError(t, err)
		assert.Empty(t, page.Next)
	})
}

func TestParseResponseErrors(t *testing.T) {
	t.Run("auth code maps to auth kind", func(t *testing.T) {
		body := `{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190,"fbtrace_id":"Az1"}}`
		_, _, err := insights.ParseResponse(400, nil, []byte(body))
		require.Error(t, err)
		assert.True(t, insights.IsKind(err, insights.KindAuth))

		var apiErr *insights.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 190, apiErr.Code)
		assert.Equal(t, "Az1", apiErr.TraceID)
		assert.False(t, apiErr.Retryable())
	})

	t.Run("rate limit codes map to rate_limit with a default wait", func(t *testing.T) {
		for _, code := range []int{4, 17, 32} {
			body := fmt.Sprintf(`{"error":{"message":"limit reached","code":%d}}`, code)
			_, _, err := insights.ParseResponse(400, nil, []byte(body))
			require.Error(t, err)

			var apiErr *insights.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, insights.KindRateLimit, apiErr.Kind)
			assert.Equal(t, insights.DefaultRateLimitWait, apiErr.RetryAfter)
			assert.True(t, apiErr.Retryable())
		}
	})

	t.Run("rate limit message matching", func(t *testing.T) {
		body := `{"error":{"message":"Application request limit reached: too many calls","code":613}}`
		_, _, err := insights.ParseResponse(400, nil, []byte(body))
		assert.True(t, insights.IsKind(err, insights.KindRateLimit))
	})

	t.Run("status 429 is rate limited without an envelope code", func(t *testing.T) {
		_, _, err := insights.ParseResponse(429, nil, []byte(`{"error":{"message":"slow down","code":613}}`))
		assert.True(t, insights.IsKind(err, insights.KindRateLimit))
	})

	t.Run("usage header overrides the default wait", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-Business-Use-Case-Usage", `{"act_123":[{"call_count":98,"total_time":20,"total_cputime":10,"estimated_time_to_regain_access":120}]}`)

		_, _, err := insights.ParseResponse(429, header, []byte(`{"error":{"message":"rate limit","code":17}}`))
		var apiErr *insights.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 120*time.Second, apiErr.RetryAfter)
	})

	t.Run("app usage header is honored too", func(t *testing.T) {
		header := http.Header{}
		header.Set("X-App-Usage", `{"call_count":100,"total_time":90,"total_cputime":80,"estimated_time_to_regain_access":45}`)

		_, _, err := insights.ParseResponse(429, header, []byte(`{"error":{"message":"rate limit","code":4}}`))
		var apiErr *insights.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 45*time.Second, apiErr.RetryAfter)
	})

	t.Run("plain 400 is a validation error", func(t *testing.T) {
		body := `{"error":{"message":"Unsupported get request","code":100}}`
		_, _, err := insights.ParseResponse(400, nil, []byte(body))
		assert.True(t, insights.IsKind(err, insights.KindValidation))
	})

	t.Run("server errors are retryable api errors", func(t *testing.T) {
		_, _, err := insights.ParseResponse(500, nil, []byte(`{"error":{"message":"unknown","code":1}}`))
		require.Error(t, err)
		assert.True(t, insights.IsKind(err, insights.KindAPI))

		var apiErr *insights.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.Retryable())
	})

	t.Run("unparseable error body still classifies by status", func(t *testing.T) {
		_, _, err := insights.ParseResponse(503, nil, []byte(`<html>bad gateway</html>`))
		assert.True(t, insights.IsKind(err, insights.KindAPI))
	})
}
