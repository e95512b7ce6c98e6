// Package insights defines the upstream ads-insights API surface: raw row
// and response envelope types, field normalization, and the typed error
// taxonomy shared by the client and its callers.
package insights

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fortunefaded/marketing-tool-sub003/internal/timeframe"
)

// ActionStat is one entry of the per-action-type conversion breakdown.
type ActionStat struct {
	Type  string  `json:"action_type"`
	Value float64 `json:"value"`
}

// RawInsightRow is one normalized API result row: a single entity on a
// single calendar day, optionally partitioned by delivery platform.
// Immutable once parsed.
type RawInsightRow struct {
	EntityID   string
	EntityName string
	CampaignID string
	AdsetID    string
	Day        time.Time
	// Platform is the delivery platform tag when the query requested a
	// platform breakdown; empty otherwise.
	Platform string

	Impressions int64
	Clicks      int64
	Spend       decimal.Decimal
	Reach       int64
	Conversions int64

	// Ratio metrics as reported by the API. Kept for reference only;
	// aggregation recomputes them from merged absolutes.
	CTR       float64
	CPC       float64
	CPM       float64
	Frequency float64

	Actions []ActionStat
}

// DedupKey identifies a logical row across paginated responses.
func (r RawInsightRow) DedupKey() string {
	return r.EntityID + "|" + r.Day.Format(timeframe.DayFormat) + "|" + r.Platform
}

// Validate checks required fields and numeric ranges. A missing entity id is
// a hard error; out-of-range numerics produce warnings and the row is kept.
func (r RawInsightRow) Validate() (warnings []string, err error) {
	if r.EntityID == "" {
		return nil, fmt.Errorf("row missing entity id (day=%s)", r.Day.Format(timeframe.DayFormat))
	}
	if r.Day.IsZero() {
		return nil, fmt.Errorf("row %s missing calendar day", r.EntityID)
	}
	if r.Impressions < 0 {
		warnings = append(warnings, fmt.Sprintf("row %s: negative impressions %d", r.EntityID, r.Impressions))
	}
	if r.Clicks < 0 {
		warnings = append(warnings, fmt.Sprintf("row %s: negative clicks %d", r.EntityID, r.Clicks))
	}
	if r.Spend.IsNegative() {
		warnings = append(warnings, fmt.Sprintf("row %s: negative spend %s", r.EntityID, r.Spend))
	}
	if r.Clicks > r.Impressions && r.Impressions > 0 {
		warnings = append(warnings, fmt.Sprintf("row %s: clicks %d exceed impressions %d", r.EntityID, r.Clicks, r.Impressions))
	}
	if r.Frequency < 0 || r.Frequency > 100 {
		warnings = append(warnings, fmt.Sprintf("row %s: frequency %.2f out of range", r.EntityID, r.Frequency))
	}
	return warnings, nil
}

// wireRow mirrors the loosely-typed upstream JSON. The API reports numeric
// metrics as strings and uses different id/name keys depending on the
// queried entity level, so normalization happens here and nowhere else.
type wireRow struct {
	AdID       string `json:"ad_id"`
	ID         string `json:"id"`
	AdName     string `json:"ad_name"`
	Name       string `json:"name"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`

	DateStart string `json:"date_start"`
	DateStop  string `json:"date_stop"`

	PublisherPlatform string `json:"publisher_platform"`
	Platform          string `json:"platform"`

	Impressions string `json:"impressions"`
	Clicks      string `json:"clicks"`
	Spend       string `json:"spend"`
	Reach       string `json:"reach"`
	Frequency   string `json:"frequency"`
	CTR         string `json:"ctr"`
	CPC         string `json:"cpc"`
	CPM         string `json:"cpm"`
	Conversions string `json:"conversions"`

	Actions []wireAction `json:"actions"`
}

type wireAction struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// normalize converts a wire row into a RawInsightRow, resolving the API's
// alternative field names and string-encoded numerics.
func (w wireRow) normalize() (RawInsightRow, error) {
	row := RawInsightRow{
		EntityID:   firstNonEmpty(w.AdID, w.ID),
		EntityName: firstNonEmpty(w.AdName, w.Name),
		CampaignID: w.CampaignID,
		AdsetID:    w.AdsetID,
		Platform:   firstNonEmpty(w.PublisherPlatform, w.Platform),
	}

	if w.DateStart != "" {
		day, err := timeframe.ParseDay(w.DateStart)
		if err != nil {
			return RawInsightRow{}, err
		}
		row.Day = day
	}

	row.Impressions = parseCount(w.Impressions)
	row.Clicks = parseCount(w.Clicks)
	row.Reach = parseCount(w.Reach)
	row.Conversions = parseCount(w.Conversions)
	row.Frequency = parseRatio(w.Frequency)
	row.CTR = parseRatio(w.CTR)
	row.CPC = parseRatio(w.CPC)
	row.CPM = parseRatio(w.CPM)

	// Spend is money; parse exactly rather than through float.
	if w.Spend != "" {
		spend, err := decimal.NewFromString(w.Spend)
		if err != nil {
			return RawInsightRow{}, fmt.Errorf("row %s: invalid spend %q: %w", row.EntityID, w.Spend, err)
		}
		row.Spend = spend
	}

	for _, a := range w.Actions {
		row.Actions = append(row.Actions, ActionStat{
			Type:  a.ActionType,
			Value: parseRatio(a.Value),
		})
	}

	return row, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Some deployments report counts with a decimal point.
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return n
}

func parseRatio(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// MarshalJSON keeps spend as a plain decimal string in serialized rows.
func (r RawInsightRow) MarshalJSON() ([]byte, error) {
	type alias struct {
		EntityID    string       `json:"entity_id"`
		EntityName  string       `json:"entity_name"`
		CampaignID  string       `json:"campaign_id,omitempty"`
		AdsetID     string       `json:"adset_id,omitempty"`
		Day         string       `json:"day"`
		Platform    string       `json:"platform,omitempty"`
		Impressions int64        `json:"impressions"`
		Clicks      int64        `json:"clicks"`
		Spend       string       `json:"spend"`
		Reach       int64        `json:"reach"`
		Conversions int64        `json:"conversions"`
		CTR         float64      `json:"ctr"`
		CPC         float64      `json:"cpc"`
		CPM         float64      `json:"cpm"`
		Frequency   float64      `json:"frequency"`
		Actions     []ActionStat `json:"actions,omitempty"`
	}
	return json.Marshal(alias{
		EntityID:    r.EntityID,
		EntityName:  r.EntityName,
		CampaignID:  r.CampaignID,
		AdsetID:     r.AdsetID,
		Day:         r.Day.Format(timeframe.DayFormat),
		Platform:    r.Platform,
		Impressions: r.Impressions,
		Clicks:      r.Clicks,
		Spend:       r.Spend.String(),
		Reach:       r.Reach,
		Conversions: r.Conversions,
		CTR:         r.CTR,
		CPC:         r.CPC,
		CPM:         r.CPM,
		Frequency:   r.Frequency,
		Actions:     r.Actions,
	})
}
