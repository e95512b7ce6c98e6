// Package testsupport provides shared helpers for package tests: a manual
// clock, a scripted insights API server, row fixtures, and an in-memory
// test database.
package testsupport

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fortunefaded/marketing-tool-sub003/internal/config"
	"github.com/fortunefaded/marketing-tool-sub003/internal/store"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ManualClock is an injectable clock advanced explicitly by tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock starts a clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ScriptedResponse is one canned upstream response.
type ScriptedResponse struct {
	Status int
	Header map[string]string
	Body   string
}

// SequenceServer serves scripted responses in order and counts requests.
// Responses are pushed after construction so bodies can reference the
// server's own URL for next-page cursors.
type SequenceServer struct {
	Server *httptest.Server

	mu        sync.Mutex
	responses []ScriptedResponse
	calls     int
}

// NewSequenceServer starts the server; callers must Close it.
func NewSequenceServer() *SequenceServer {
	s := &SequenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls++
		if len(s.responses) == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"no scripted response","code":1}}`)
			return
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]
		for k, v := range resp.Header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.Status)
		fmt.Fprint(w, resp.Body)
	}))
	return s
}

// Push appends responses to the script.
func (s *SequenceServer) Push(responses ...ScriptedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, responses...)
}

// Calls returns how many requests the server has received.
func (s *SequenceServer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Close shuts the server down.
func (s *SequenceServer) Close() {
	s.Server.Close()
}

// URL returns the server's base URL.
func (s *SequenceServer) URL() string {
	return s.Server.URL
}

// InsightsRow builds one wire-format insights row.
func InsightsRow(adID, name, day, platform string, impressions, clicks int, spend string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`{"ad_id":%q,"ad_name":%q,"date_start":%q,"date_stop":%q`, adID, name, day, day))
	if platform != "" {
		sb.WriteString(fmt.Sprintf(`,"publisher_platform":%q`, platform))
	}
	sb.WriteString(fmt.Sprintf(`,"impressions":"%d","clicks":"%d","spend":%q}`, impressions, clicks, spend))
	return sb.String()
}

// InsightsPage builds a wire-format page envelope. An empty next omits the
// paging cursor.
func InsightsPage(next string, rows ...string) string {
	body := fmt.Sprintf(`{"data":[%s]`, strings.Join(rows, ","))
	if next != "" {
		body += fmt.Sprintf(`,"paging":{"next":%q}`, next)
	}
	return body + "}"
}

// RateLimitBody is a canned upstream rate-limit error envelope.
const RateLimitBody = `{"error":{"message":"(#17) User request limit reached","type":"OAuthException","code":17,"fbtrace_id":"AbCdEf"}}`

// TestConfig returns a config tuned for fast tests: no real delays, small
// page caps.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:                 "adinsights",
		Environment:             config.Test,
		LogLevel:                config.LogLevelError,
		APIVersion:              "v23.0",
		RequestTimeoutSec:       5,
		HourlyCallCeiling:       200,
		DailyCallCeiling:        1000,
		RetryMaxAttempts:        3,
		RetryBaseDelayMs:        1,
		RetryMultiplier:         2.0,
		RetryMaxDelayMs:         10,
		BreakerFailureThreshold: 5,
		BreakerCooldownSec:      60,
		CacheTTLSec:             300,
		MaxPages:                100,
		PageSize:                500,
		InterPageDelayMs:        0,
		EnrichBatchSize:         25,
		EnrichBatchDelayMs:      0,
		GapMinorDays:            1,
		GapMajorDays:            3,
		GapCriticalDays:         7,
		GapLookbackDays:         7,
		MinGapDays:              1,
		IntensityVeryLowMax:     100,
		IntensityLowMax:         1000,
		IntensityMediumMax:      10000,
		IntensityHighMax:        100000,
		FrequencyCeiling:        3.5,
		CTRDropMultiplier:       0.5,
		SpendSpikeMultiplier:    2.0,
		AnomalyConsecutiveDays:  2,
		IntermittentWindowDays:  7,
		IntermittentMinActive:   2,
		IntermittentMaxActive:   5,
	}
}

// testDBCache shares one in-memory database per root test name, mirroring
// the named cache=shared DSN approach used for sqlite in tests.
var (
	testDBCache   = make(map[string]*gorm.DB)
	testDBCacheMu sync.Mutex
)

// SetupTestDB creates (or reuses) an in-memory sqlite database with the
// store schema migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	defer testDBCacheMu.Unlock()
	if db, ok := testDBCache[rootName]; ok {
		return db
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", sanitizeDBName(rootName))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := store.NewWithDB(db, NewTestLogger())
	require.NoError(t, s.Migrate())

	testDBCache[rootName] = db
	return db
}

func sanitizeDBName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}
