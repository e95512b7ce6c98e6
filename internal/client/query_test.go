package client_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/client"
	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

func TestQueryValidate(t *testing.T) {
	base := client.Query{AccountID: "123", Level: client.LevelAd}

	t.Run("accepts a plain query", func(t *testing.T) {
		assert.NoError(t, base.Validate())
	})

	t.Run("requires an account id", func(t *testing.T) {
		q := base
		q.AccountID = ""
		assert.Error(t, q.Validate())
	})

	t.Run("rejects breakdown combined with daily increment", func(t *testing.T) {
		q := base
		q.PlatformBreakdown = true
		q.DailyIncrement = true
		assert.Error(t, q.Validate())
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		q := base
		q.Level = "creative"
		assert.Error(t, q.Validate())
	})

	t.Run("empty level is allowed", func(t *testing.T) {
		q := base
		q.Level = ""
		assert.NoError(t, q.Validate())
	})
}

func TestFirstPageURL(t *testing.T) {
	f := newFixture(t, "https://graph.example.com")

	t.Run("named range uses date_preset", func(t *testing.T) {
		raw := f.firstPageURL(t)
		u, err := url.Parse(raw)
		require.NoError(t, err)

		assert.Contains(t, u.Path, "/v23.0/act_123/insights")
		values := u.Query()
		assert.Equal(t, "last_7d", values.Get("date_preset"))
		assert.Empty(t, values.Get("time_range"))
		assert.Equal(t, "publisher_platform", values.Get("breakdowns"))
		assert.Equal(t, "test-token", values.Get("access_token"))
		assert.Equal(t, "ad", values.Get("level"))
		assert.Equal(t, "500", values.Get("limit"))
		assert.Contains(t, values.Get("fields"), "impressions")
	})

	t.Run("custom range uses a time_range payload", func(t *testing.T) {
		window, err := timeframe.NewDateRange(
			time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)

		q := f.query()
		q.Range = window
		q.PlatformBreakdown = false
		q.DailyIncrement = true

		raw, err := f.client.FirstPageURL(q, 100)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)

		values := u.Query()
		assert.Empty(t, values.Get("date_preset"))
		assert.Equal(t, `{"since":"2026-08-01","until":"2026-08-15"}`, values.Get("time_range"))
		assert.Equal(t, "1", values.Get("time_increment"))
		assert.Empty(t, values.Get("breakdowns"))
		assert.Equal(t, "100", values.Get("limit"))
	})

	t.Run("explicit object id overrides the account default", func(t *testing.T) {
		q := f.query()
		q.ObjectID = "120212345"

		raw, err := f.client.FirstPageURL(q, 50)
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Contains(t, u.Path, "/120212345/insights")
	})

	t.Run("invalid query surfaces a validation error", func(t *testing.T) {
		q := f.query()
		q.DailyIncrement = true

		_, err := f.client.FirstPageURL(q, 50)
		require.Error(t, err)
		assert.True(t, insights.IsKind(err, insights.KindValidation))
	})

	t.Run("missing token surfaces an auth error", func(t *testing.T) {
		q := f.query()
		q.AccountID = "999"

		_, err := f.client.FirstPageURL(q, 50)
		require.Error(t, err)
		assert.True(t, insights.IsKind(err, insights.KindAuth))
	})
}
