package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/config"
)

func TestBidderBudget(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		description string
		shared      time.Time
		factor      float64
		deduction   time.Duration
		expected    time.Duration
	}{
		{
			description: "full share, no deduction",
			shared:      now.Add(500 * time.Millisecond),
			factor:      1,
			expected:    500 * time.Millisecond,
		},
		{
			description: "factor applied before deduction",
			shared:      now.Add(1000 * time.Millisecond),
			factor:      0.8,
			deduction:   100 * time.Millisecond,
			expected:    700 * time.Millisecond,
		},
		{
			description: "deduction larger than the share clamps to zero",
			shared:      now.Add(100 * time.Millisecond),
			factor:      0.9,
			deduction:   200 * time.Millisecond,
			expected:    0,
		},
		{
			description: "shared deadline already passed",
			shared:      now.Add(-time.Millisecond),
			factor:      1,
			expected:    0,
		},
		{
			description: "factor above one never outlives the shared deadline",
			shared:      now.Add(100 * time.Millisecond),
			factor:      1.5,
			expected:    100 * time.Millisecond,
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, bidderBudget(now, test.shared, test.factor, test.deduction), test.description)
	}
}

func TestBidderBudgetNeverPassesSharedDeadline(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for remainingMs := -50; remainingMs <= 2000; remainingMs += 37 {
		shared := now.Add(time.Duration(remainingMs) * time.Millisecond)
		for _, factor := range []float64{0.1, 0.5, 0.99, 1} {
			for _, deduction := range []time.Duration{0, 10 * time.Millisecond, time.Second} {
				budget := bidderBudget(now, shared, factor, deduction)
				assert.GreaterOrEqual(t, budget, time.Duration(0))
				assert.False(t, now.Add(budget).After(shared) && budget > 0, "budget %v passes shared deadline %v", budget, shared)
			}
		}
	}
}

func TestAuctionContextDeductsCacheTime(t *testing.T) {
	mockClock := clock.NewMock()
	d := newDeadlines(mockClock, &config.AuctionTimeouts{ExpectedCacheTime: 20, AdjustmentFactor: 1})

	parentDeadline := mockClock.Now().Add(500 * time.Millisecond)
	parent, cancelParent := mockClock.WithDeadline(context.Background(), parentDeadline)
	defer cancelParent()

	ctx, cancel := d.auctionContext(parent, true)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, parentDeadline.Add(-20*time.Millisecond), deadline)

	ctx, cancel = d.auctionContext(parent, false)
	defer cancel()
	deadline, _ = ctx.Deadline()
	assert.Equal(t, parentDeadline, deadline, "no deduction when nothing is cached")
}

func TestBidderContext(t *testing.T) {
	mockClock := clock.NewMock()
	d := newDeadlines(mockClock, &config.AuctionTimeouts{
		AdjustmentFactor:           0.5,
		BidderNetworkLatencyBuffer: 10,
		BidderLatencyBuffers:       map[string]uint64{"slowbidder": 300},
	})

	shared := mockClock.Now().Add(400 * time.Millisecond)
	parent, cancelParent := mockClock.WithDeadline(context.Background(), shared)
	defer cancelParent()

	ctx, cancel, budget, ok := d.bidderContext(parent, "appnexus")
	defer cancel()
	require.True(t, ok)
	assert.Equal(t, 190*time.Millisecond, budget)
	deadline, _ := ctx.Deadline()
	assert.False(t, deadline.After(shared))

	_, _, budget, ok = d.bidderContext(parent, "slowbidder")
	assert.False(t, ok, "a spent budget must fail fast")
	assert.Zero(t, budget)
}

func TestBidderContextWithoutDeadline(t *testing.T) {
	d := newDeadlines(clock.NewMock(), &config.AuctionTimeouts{AdjustmentFactor: 1})

	ctx, cancel, _, ok := d.bidderContext(context.Background(), "appnexus")
	defer cancel()

	assert.True(t, ok)
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
}
