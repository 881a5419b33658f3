package exchange

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// deadlines shares the time left in an auction out among its bidders.
type deadlines struct {
	clock             clock.Clock
	factor            float64
	expectedCacheTime time.Duration
	timeouts          *config.AuctionTimeouts
}

func newDeadlines(c clock.Clock, timeouts *config.AuctionTimeouts) *deadlines {
	factor := timeouts.AdjustmentFactor
	if factor <= 0 || factor > 1 {
		factor = 1
	}
	return &deadlines{
		clock:             c,
		factor:            factor,
		expectedCacheTime: time.Duration(timeouts.ExpectedCacheTime) * time.Millisecond,
		timeouts:          timeouts,
	}
}

// auctionContext holds back the expected cache latency from the bidders when bids will be cached.
// The deduction is taken once per auction.
func (d *deadlines) auctionContext(ctx context.Context, needsCache bool) (context.Context, context.CancelFunc) {
	if needsCache && d.expectedCacheTime > 0 {
		if deadline, ok := ctx.Deadline(); ok {
			return d.clock.WithDeadline(ctx, deadline.Add(-d.expectedCacheTime))
		}
	}
	return ctx, func() {}
}

// bidderContext derives the context a bidder's call runs under. The returned bool is false when
// the bidder's budget is already spent, in which case the call must not be made.
func (d *deadlines) bidderContext(ctx context.Context, bidder openrtb_ext.BidderName) (context.Context, context.CancelFunc, time.Duration, bool) {
	shared, ok := ctx.Deadline()
	if !ok {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, 0, true
	}
	budget := bidderBudget(d.clock.Now(), shared, d.factor, d.timeouts.BidderDeduction(bidder))
	if budget <= 0 {
		return ctx, func() {}, 0, false
	}
	bidderCtx, cancel := d.clock.WithTimeout(ctx, budget)
	return bidderCtx, cancel, budget, true
}

// bidderBudget is the time a bidder gets: its share of what is left before the shared deadline,
// less the bidder's fixed deduction. It is never negative and never reaches past the shared deadline.
func bidderBudget(now, shared time.Time, factor float64, deduction time.Duration) time.Duration {
	remaining := shared.Sub(now)
	if remaining <= 0 {
		return 0
	}
	budget := time.Duration(float64(remaining)*factor) - deduction
	if budget <= 0 {
		return 0
	}
	if budget > remaining {
		return remaining
	}
	return budget
}
