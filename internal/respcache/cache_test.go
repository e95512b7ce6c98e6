package respcache_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortunefaded/marketing-tool-sub003/internal/insights"
	"github.com/fortunefaded/marketing-tool-sub003/internal/respcache"
	"github.com/fortunefaded/marketing-tool-sub003/internal/testsupport"
)

func TestKey(t *testing.T) {
	t.Run("strips credential parameters", func(t *testing.T) {
		key := respcache.Key("https://api.example.com/v23.0/act_123/insights?fields=impressions&access_token=SECRET&limit=500")
		assert.NotContains(t, key, "SECRET")
		assert.NotContains(t, key, "access_token")
		assert.Contains(t, key, "fields=impressions")
	})

	t.Run("parameter order does not matter", func(t *testing.T) {
		a := respcache.Key("https://api.example.com/insights?a=1&b=2&access_token=x")
		b := respcache.Key("https://api.example.com/insights?b=2&access_token=y&a=1")
		assert.Equal(t, a, b)
	})

	t.Run("different queries get different keys", func(t *testing.T) {
		a := respcache.Key("https://api.example.com/insights?date_preset=last_7d")
		b := respcache.Key("https://api.example.com/insights?date_preset=last_30d")
		assert.NotEqual(t, a, b)
	})
}

func TestCacheTTL(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	cache := respcache.New(5*time.Minute, clock)

	page := &insights.Page{Rows: []insights.RawInsightRow{{EntityID: "ad1"}}}
	cache.Set("k1", page)

	got, ok := cache.Get("k1")
	require.True(t, ok)
	assert.Equal(t, page, got)

	clock.Advance(4 * time.Minute)
	_, ok = cache.Get("k1")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = cache.Get("k1")
	assert.False(t, ok)
	assert.Zero(t, cache.Len())
}

func TestCacheSweepOnSet(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	cache := respcache.New(time.Minute, clock)

	cache.Set("old", &insights.Page{})
	clock.Advance(2 * time.Minute)
	cache.Set("fresh", &insights.Page{})

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("old")
	assert.False(t, ok)
}

func TestFetchCoalescing(t *testing.T) {
	cache := respcache.New(time.Minute, nil)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fn := func() (*insights.Page, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return &insights.Page{Next: "cursor"}, nil
	}

	const workers = 8
	var wg sync.WaitGroup
	pages := make([]*insights.Page, workers)
	errs := make([]error, workers)
	run := func(i int) {
		defer wg.Done()
		pages[i], _, errs[i] = cache.Fetch("same-key", fn)
	}

	// Leader first, then followers while it blocks in flight.
	wg.Add(1)
	go run(0)
	<-started
	for i := 1; i < workers; i++ {
		wg.Add(1)
		go run(i)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), calls.Load())
	for _, page := range pages {
		require.NotNil(t, page)
		assert.Equal(t, "cursor", page.Next)
	}

	// The leader's success is cached for later direct reads.
	cached, ok := cache.Get("same-key")
	require.True(t, ok)
	assert.Equal(t, "cursor", cached.Next)
}

func TestFetchErrorNotCached(t *testing.T) {
	cache := respcache.New(time.Minute, nil)

	boom := errors.New("upstream down")
	_, _, err := cache.Fetch("k", func() (*insights.Page, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := cache.Get("k")
	assert.False(t, ok)

	// A later call runs fn again and caches its success.
	page, _, err := cache.Fetch("k", func() (*insights.Page, error) {
		return &insights.Page{}, nil
	})
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Equal(t, 1, cache.Len())
}
