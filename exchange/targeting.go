package exchange

import (
	"strconv"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/randomutil"
)

const trueValue = "true"

// targetData tracks how the ad server targeting keys of an auction are rendered.
//
// All functions on this struct are nil-safe. If the targetData struct is nil, then no
// targeting is rendered at all.
type targetData struct {
	priceGranularity  openrtb_ext.PriceGranularity
	roundingMode      openrtb_ext.PriceRoundingMode
	rand              randomutil.BooleanGenerator
	includeWinners    bool
	includeBidderKeys bool
	lengthMax         int
	// buckets remembers each price's bucket, since random rounding must render a bid the same way twice.
	buckets map[*openrtb2.Bid]string
}

func (t *targetData) priceBucket(bid *openrtb2.Bid) string {
	if bucket, ok := t.buckets[bid]; ok {
		return bucket
	}
	bucket := GetPriceBucket(bid.Price, t.priceGranularity, t.roundingMode, t.rand)
	if t.buckets == nil {
		t.buckets = make(map[*openrtb2.Bid]string)
	}
	t.buckets[bid] = bucket
	return bucket
}

// bidTargets holds the rendered keys of every bid which gets any.
type bidTargets map[*entities.PbsOrtbBid]map[string]string

// makeTargets renders the keys of every bid the auction kept. A bidder's extra bids only get keys
// when multibid gave them a target bidder code, and only the overall winner gets unsuffixed keys.
// categoryKeys holds the hb_pb_cat_dur value of the bids which have one.
func (t *targetData) makeTargets(auc *auction, categoryKeys bidCategories) bidTargets {
	if t == nil || auc == nil {
		return nil
	}

	targets := make(bidTargets)
	auc.forEachKeptBid(func(impID string, bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, rank int) {
		if rank > 0 && bid.TargetBidderCode == "" {
			return
		}
		name := bidder
		if bid.TargetBidderCode != "" {
			name = openrtb_ext.BidderName(bid.TargetBidderCode)
		}
		values := t.targetValues(auc, bid, name, categoryKeys[bidKey{bidder, bid.Bid.ID}])
		isWinner := rank == 0 && auc.winningBids[impID] == bid

		kvs := make(map[string]string)
		if t.includeBidderKeys {
			for key, value := range values {
				kvs[key.BidderKey(name, t.lengthMax)] = value
			}
		}
		if isWinner && t.includeWinners {
			for key, value := range values {
				kvs[openrtb_ext.TruncateKey(string(key), t.lengthMax)] = value
			}
			kvs[openrtb_ext.TruncateKey(string(openrtb_ext.HbWinningKey), t.lengthMax)] = trueValue
		}
		if len(kvs) > 0 {
			targets[bid] = kvs
		}
	})
	return targets
}

func (t *targetData) targetValues(auc *auction, bid *entities.PbsOrtbBid, name openrtb_ext.BidderName, categoryKey string) map[openrtb_ext.TargetingKey]string {
	values := map[openrtb_ext.TargetingKey]string{
		openrtb_ext.HbpbConstantKey:     t.priceBucket(bid.Bid),
		openrtb_ext.HbBidderConstantKey: string(name),
	}
	if bid.Bid.W != 0 && bid.Bid.H != 0 {
		values[openrtb_ext.HbSizeConstantKey] = strconv.FormatInt(bid.Bid.W, 10) + "x" + strconv.FormatInt(bid.Bid.H, 10)
	}
	if bid.Bid.DealID != "" {
		values[openrtb_ext.HbDealIDConstantKey] = bid.Bid.DealID
	}
	if cacheID, ok := auc.cacheId(bid.Bid); ok {
		values[openrtb_ext.HbCacheKey] = cacheID
	}
	if vastID, ok := auc.vastCacheId(bid.Bid); ok {
		values[openrtb_ext.HbVastCacheKey] = vastID
	}
	if categoryKey != "" {
		values[openrtb_ext.HbCategoryDurationKey] = categoryKey
	}
	return values
}
