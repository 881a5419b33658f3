package exchange

import (
	"fmt"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/metrics"
)

// bidOutcome is the verdict of one normalization stage on one bid. A bid is kept when reason is empty.
type bidOutcome struct {
	bid    *entities.PbsOrtbBid
	reason RejectionReason
	err    error
}

func (o bidOutcome) ok() bool {
	return o.reason == ""
}

func accepted(bid *entities.PbsOrtbBid) bidOutcome {
	return bidOutcome{bid: bid}
}

func rejected(bid *entities.PbsOrtbBid, reason RejectionReason, err error) bidOutcome {
	return bidOutcome{bid: bid, reason: reason, err: err}
}

type bidStage func(bid *entities.PbsOrtbBid) bidOutcome

// normalizer turns what a bidder sent back into bids the auction can compare. One normalizer
// serves a whole auction, so it holds nothing bidder specific.
type normalizer struct {
	validator         ResponseValidator
	request           *openrtb2.BidRequest
	conversions       currency.Conversions
	requestCurrencies []string
	adServerCurrency  string
	me                metrics.MetricsEngine
}

// normalize returns a new result holding only bids with a usable price in the ad server currency.
// result is left untouched. Every bid dropped on the way is recorded on tracker.
func (n *normalizer) normalize(result *BidderResult, adjustmentFactor float64, tracker *BidRejectionTracker) *BidderResult {
	if len(n.requestCurrencies) > 1 {
		result = result.withErrors(&errortypes.Warning{
			WarningCode: errortypes.MultiCurrencyWarningCode,
			Message:     fmt.Sprintf("a single currency (%s) has been chosen for the request. ORTB 2.6 requires that all responses are in the same currency.", n.adServerCurrency),
		})
	}
	return n.normalizeBids(result, adjustmentFactor, tracker)
}

// normalizeBids runs the per-bid stages of normalize. Stored responses go through it on their own.
func (n *normalizer) normalizeBids(result *BidderResult, adjustmentFactor float64, tracker *BidRejectionTracker) *BidderResult {
	if len(result.Bids()) == 0 {
		return result
	}

	result = n.apply(result, tracker, n.validate)
	result = n.convert(result, tracker)
	if adjustmentFactor != 1 {
		result = n.apply(result, tracker, adjustPrice(adjustmentFactor))
	}
	return n.apply(result, tracker, n.dropUnpriced)
}

func (n *normalizer) apply(result *BidderResult, tracker *BidRejectionTracker, stage bidStage) *BidderResult {
	bids := result.Bids()
	if len(bids) == 0 {
		return result
	}

	kept := make([]*entities.PbsOrtbBid, 0, len(bids))
	var errs []error
	for _, bid := range bids {
		outcome := stage(bid)
		if outcome.ok() {
			kept = append(kept, outcome.bid)
			continue
		}
		tracker.RejectBid(bid, outcome.reason)
		n.me.RecordRejectedBid(result.Bidder, string(outcome.reason))
		if outcome.err != nil {
			errs = append(errs, outcome.err)
		}
	}
	return result.withBids(kept).withErrors(errs...)
}

func (n *normalizer) validate(bid *entities.PbsOrtbBid) bidOutcome {
	violations := n.validator.Validate(bid, n.request)
	if len(violations) == 0 {
		return accepted(bid)
	}
	var id string
	if bid != nil && bid.Bid != nil {
		id = bid.Bid.ID
	}
	return rejected(bid, RejectionInvalidBid, &errortypes.InvalidBid{
		Message: fmt.Sprintf("Bid \"%s\" rejected: %s", id, strings.Join(violations, "; ")),
	})
}

// convert moves every bid into the ad server currency. A seat bids in a single currency, so a
// missing rate drops all of its bids with one error.
func (n *normalizer) convert(result *BidderResult, tracker *BidRejectionTracker) *BidderResult {
	if len(result.Bids()) == 0 {
		return result
	}

	from := result.Currency()
	rate, err := n.conversions.GetRate(from, n.adServerCurrency)
	if err != nil {
		n.me.RecordCurrencyConversionFailure(result.Bidder)
		conversionErr := &errortypes.NoConversionRate{
			Message: fmt.Sprintf("Unable to convert from currency %s to desired ad server currency %s: %v", from, n.adServerCurrency, err),
		}
		result = n.apply(result, tracker, func(bid *entities.PbsOrtbBid) bidOutcome {
			return rejected(bid, RejectionGeneric, nil)
		})
		return result.withErrors(conversionErr)
	}

	result = n.apply(result, tracker, func(bid *entities.PbsOrtbBid) bidOutcome {
		converted, _ := decimal.NewFromFloat(bid.Bid.Price).Mul(rate).Float64()
		out := bid.WithPrice(converted)
		out.OriginalBidCPM = bid.Bid.Price
		out.OriginalBidCur = from
		return accepted(out)
	})
	return result.withCurrency(n.adServerCurrency)
}

func adjustPrice(factor float64) bidStage {
	return func(bid *entities.PbsOrtbBid) bidOutcome {
		return accepted(bid.WithPrice(bid.Bid.Price * factor))
	}
}

func (n *normalizer) dropUnpriced(bid *entities.PbsOrtbBid) bidOutcome {
	price := bid.Bid.Price
	if price > 0 || (price == 0 && bid.HasDeal()) {
		return accepted(bid)
	}
	return rejected(bid, RejectionInvalidBid, &errortypes.DebugWarning{
		WarningCode: errortypes.ZeroPriceBidWarningCode,
		Message:     fmt.Sprintf("Dropped bid '%s': price %g is only allowed as zero on deal bids", bid.Bid.ID, price),
	})
}
