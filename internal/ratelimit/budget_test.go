package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fortunefaded/marketing-tool-sub003/internal/ratelimit"
	"github.com/fortunefaded/marketing-tool-sub003/internal/testsupport"
)

func TestBudgetHourlyCeiling(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	budget := ratelimit.NewBudget(3, 100, clock)

	for i := 0; i < 3; i++ {
		assert.True(t, budget.CanProceed())
		budget.RecordCall()
		clock.Advance(time.Minute)
	}

	assert.False(t, budget.CanProceed())
	usage := budget.CurrentUsage()
	assert.Equal(t, 3, usage.Hourly)
	assert.Equal(t, 3, usage.Daily)
	assert.Equal(t, 0, budget.HourlyRemaining())
}

func TestBudgetWaitTime(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	budget := ratelimit.NewBudget(2, 100, clock)

	budget.RecordCall()
	clock.Advance(10 * time.Minute)
	budget.RecordCall()

	// Saturated: the oldest call frees its slot 50 minutes from now.
	assert.False(t, budget.CanProceed())
	assert.Equal(t, 50*time.Minute, budget.WaitTime())

	clock.Advance(50 * time.Minute)
	assert.True(t, budget.CanProceed())
	assert.Zero(t, budget.WaitTime())
}

func TestBudgetRollingWindowFreesSlots(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	budget := ratelimit.NewBudget(2, 100, clock)

	budget.RecordCall()
	budget.RecordCall()
	assert.False(t, budget.CanProceed())

	clock.Advance(61 * time.Minute)
	assert.True(t, budget.CanProceed())
	assert.Equal(t, 0, budget.CurrentUsage().Hourly)
	// Calls still count against the daily window.
	assert.Equal(t, 2, budget.CurrentUsage().Daily)
}

func TestBudgetDailyCeiling(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC))
	budget := ratelimit.NewBudget(100, 4, clock)

	for i := 0; i < 4; i++ {
		budget.RecordCall()
		clock.Advance(2 * time.Hour)
	}

	// Hourly window is clear but the daily ceiling blocks.
	assert.Equal(t, 0, budget.CurrentUsage().Hourly)
	assert.False(t, budget.CanProceed())
	assert.Positive(t, budget.WaitTime())

	// The first call ages out of the 24h window.
	clock.Advance(17 * time.Hour)
	assert.True(t, budget.CanProceed())
	assert.Equal(t, 3, budget.CurrentUsage().Daily)
}

func TestBudgetHourlyRemaining(t *testing.T) {
	clock := testsupport.NewManualClock(time.Date(2026, 8, 19, 12, 0, 0, 0, time.UTC))
	budget := ratelimit.NewBudget(10, 100, clock)

	assert.Equal(t, 10, budget.HourlyRemaining())
	budget.RecordCall()
	budget.RecordCall()
	assert.Equal(t, 8, budget.HourlyRemaining())
}
