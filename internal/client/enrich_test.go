package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
)

// creativeServer answers creative lookups by ad id taken from the URL path;
// ids listed in failing get an upstream error instead.
func creativeServer(failing ...string) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	fails := make(map[string]bool, len(failing))
	for _, id := range failing {
		fails[id] = true
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		adID := parts[len(parts)-1]
		if fails[adID] {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"lookup failed","code":1}}`)
			return
		}
		fmt.Fprintf(w, `{"id":%q,"creative":{"id":"cr-%s","title":"Creative for %s"}}`, adID, adID, adID)
	}))
	return server, &calls
}

func TestEnrichCreatives(t *testing.T) {
	server, _ := creativeServer()
	defer server.Close()

	f := newFixture(t, server.URL)
	creatives, err := f.engine.EnrichCreatives(context.Background(), testAccount,
		[]string{"ad1", "ad2", "ad3"})
	require.NoError(t, err)

	require.Len(t, creatives, 3)
	assert.Equal(t, "cr-ad2", creatives["ad2"].ID)
	assert.Equal(t, "Creative for ad2", creatives["ad2"].Title)
}

func TestEnrichCreativesSkipsFailedLookups(t *testing.T) {
	server, _ := creativeServer("ad2")
	defer server.Close()

	f := newFixture(t, server.URL)
	creatives, err := f.engine.EnrichCreatives(context.Background(), testAccount,
		[]string{"ad1", "ad2", "ad3"})
	require.NoError(t, err)

	// The failing lookup is logged and dropped; the rest survive.
	require.Len(t, creatives, 2)
	assert.Contains(t, creatives, "ad1")
	assert.Contains(t, creatives, "ad3")
	assert.NotContains(t, creatives, "ad2")
}

func TestEnrichCreativesBatching(t *testing.T) {
	server, calls := creativeServer()
	defer server.Close()

	f := newFixture(t, server.URL)
	ids := make([]string, 60)
	for i := range ids {
		ids[i] = fmt.Sprintf("ad%d", i)
	}

	creatives, err := f.engine.EnrichCreatives(context.Background(), testAccount, ids)
	require.NoError(t, err)
	assert.Len(t, creatives, 60)
	assert.Equal(t, int32(60), calls.Load())

	// Batch size 25 over 60 ids means two inter-batch pauses.
	assert.Len(t, f.recordedSleeps(), 2)
}

func TestEnrichCreativesCancellation(t *testing.T) {
	server, _ := creativeServer()
	defer server.Close()

	f := newFixture(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.EnrichCreatives(ctx, testAccount, []string{"ad1", "ad2"})
	require.Error(t, err)
	assert.True(t, insights.IsKind(err, insights.KindCancelled))
}

func TestEnrichCreativesEmptyInput(t *testing.T) {
	server, calls := creativeServer()
	defer server.Close()

	f := newFixture(t, server.URL)
	creatives, err := f.engine.EnrichCreatives(context.Background(), testAccount, nil)
	require.NoError(t, err)
	assert.Empty(t, creatives)
	assert.Zero(t, calls.Load())
}
