package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/randomutil"
)

// categoryBid is what the deduplicator learns about one bid before deciding whether it stays.
type categoryBid struct {
	bidder      openrtb_ext.BidderName
	bid         *entities.PbsOrtbBid
	priceBucket string
	// key becomes the hb_pb_cat_dur value of the bid.
	key     string
	dupeKey string
}

// bidKey names one bid of one bidder. Bid ids are only unique within a seat.
type bidKey struct {
	bidder openrtb_ext.BidderName
	bidID  string
}

// bidCategories holds the hb_pb_cat_dur value of every bid which kept its category.
type bidCategories map[bidKey]string

// categoryDeduplicator removes the bids an ad server would show back to back: same category, or
// same price and duration, depending on the request.
type categoryDeduplicator struct {
	fetcher  CategoryFetcher
	rand     randomutil.BooleanGenerator
	trackers rejectionTrackers
	me       metrics.MetricsEngine
}

// applyCategoryMapping returns the hb_pb_cat_dur value of every surviving bid, the
// seat bids without the removed bids, and a message per removal. The error is only set when the
// primary ad server is unknown, which request validation rules out before any bidder is called.
func (d *categoryDeduplicator) applyCategoryMapping(ctx context.Context, targeting openrtb_ext.ExtRequestTargeting, bidders []openrtb_ext.BidderName, seatBids map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, targData *targetData) (bidCategories, map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, []string, error) {
	res := make(bidCategories)
	brandCatExt := targeting.IncludeBrandCategory
	if brandCatExt == nil {
		return res, seatBids, nil, nil
	}

	var primaryAdServer, publisher string
	translateCategories := brandCatExt.ShouldTranslate()
	if brandCatExt.WithCategory && translateCategories {
		var err error
		if primaryAdServer, err = getPrimaryAdServer(brandCatExt.PrimaryAdServer); err != nil {
			return res, seatBids, nil, err
		}
		publisher = brandCatExt.Publisher
	}

	var rejections []string
	removed := make(map[*entities.PbsOrtbBid]struct{})
	reject := func(bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, reason RejectionReason, message string) {
		removed[bid] = struct{}{}
		rejections = updateRejections(rejections, bid.Bid.ID, message)
		d.trackers.forBidder(bidder).RejectBid(bid, reason)
		d.me.RecordRejectedBid(bidder, string(reason))
	}

	dedupe := make(map[string]categoryBid)
	for _, bidderName := range bidders {
		seatBid, ok := seatBids[bidderName]
		if !ok || seatBid == nil {
			continue
		}
		for _, bid := range seatBid.Bids {
			var duration int
			var category string
			if bid.BidVideo != nil {
				duration = bid.BidVideo.Duration
				category = bid.BidVideo.PrimaryCategory
			}

			if brandCatExt.WithCategory && category == "" {
				bidIabCat := bid.Bid.Cat
				if len(bidIabCat) != 1 {
					reject(bidderName, bid, RejectionCategoryMapping, "Bid did not contain a category")
					continue
				}
				if translateCategories {
					mapped, err := d.fetcher.FetchCategories(ctx, primaryAdServer, publisher, bidIabCat[0])
					if err != nil || mapped == "" {
						reject(bidderName, bid, RejectionCategoryMapping, fmt.Sprintf("Category mapping file for primary ad server: '%s', publisher: '%s' not found", primaryAdServer, publisher))
						continue
					}
					category = mapped
				} else {
					category = bidIabCat[0]
				}
			}

			newDur, err := findDurationRange(duration, targeting.DurationRangeSec)
			if err != nil {
				reject(bidderName, bid, RejectionGeneric, err.Error())
				continue
			}

			candidate := categoryBid{bidder: bidderName, bid: bid, priceBucket: targData.priceBucket(bid.Bid)}
			if brandCatExt.WithCategory {
				candidate.key = fmt.Sprintf("%s_%s_%ds", candidate.priceBucket, category, newDur)
				candidate.dupeKey = category
			} else {
				candidate.key = fmt.Sprintf("%s_%ds", candidate.priceBucket, newDur)
				candidate.dupeKey = candidate.key
			}
			if targeting.AppendBidderNames {
				candidate.key = fmt.Sprintf("%s_%s", candidate.key, bidderName)
			}

			if dupe, ok := dedupe[candidate.dupeKey]; ok {
				if !d.replaces(candidate, dupe) {
					reject(bidderName, bid, RejectionDeduplicated, "Bid was deduplicated")
					continue
				}
				reject(dupe.bidder, dupe.bid, RejectionDeduplicated, "Bid was deduplicated")
				delete(res, bidKey{dupe.bidder, dupe.bid.Bid.ID})
			}
			res[bidKey{bidderName, bid.Bid.ID}] = candidate.key
			dedupe[candidate.dupeKey] = candidate
		}
	}

	if len(removed) == 0 {
		return res, seatBids, rejections, nil
	}
	kept := make(map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, len(seatBids))
	for bidderName, seatBid := range seatBids {
		bids := make([]*entities.PbsOrtbBid, 0, len(seatBid.Bids))
		for _, bid := range seatBid.Bids {
			if _, gone := removed[bid]; !gone {
				bids = append(bids, bid)
			}
		}
		kept[bidderName] = seatBid.WithBids(bids)
	}
	return res, kept, rejections, nil
}

// replaces decides whether candidate pushes out the bid already holding its dedupe key. The higher
// price bucket stays; equal buckets are a coin toss.
func (d *categoryDeduplicator) replaces(candidate, dupe categoryBid) bool {
	currBidPrice := bucketValue(candidate.priceBucket)
	dupeBidPrice := bucketValue(dupe.priceBucket)
	if dupeBidPrice == currBidPrice {
		return d.rand.Generate()
	}
	return currBidPrice > dupeBidPrice
}

func bucketValue(bucket string) float64 {
	value, err := strconv.ParseFloat(bucket, 64)
	if err != nil {
		return 0
	}
	return value
}

// findDurationRange returns the element in the array 'durationRanges' that is both greater than 'dur' and closest
// in value to 'dur' unless a value equal to 'dur' is found. Returns an error if all elements in 'durationRanges'
// are less than 'dur'.
func findDurationRange(dur int, durationRanges []int) (int, error) {
	newDur := dur
	madeSelection := false
	var err error

	for i := range durationRanges {
		if dur > durationRanges[i] {
			continue
		}
		if dur == durationRanges[i] {
			return durationRanges[i], nil
		}
		// dur < durationRanges[i]
		if durationRanges[i] < newDur || !madeSelection {
			newDur = durationRanges[i]
			madeSelection = true
		}
	}
	if !madeSelection && len(durationRanges) > 0 {
		err = errors.New("bid duration exceeds maximum allowed")
	}
	return newDur, err
}

func updateRejections(rejections []string, bidID string, reason string) []string {
	message := fmt.Sprintf("bid rejected [bid ID: %s] reason: %s", bidID, reason)
	return append(rejections, message)
}

func getPrimaryAdServer(adServerId int) (string, error) {
	switch adServerId {
	case 1:
		return "freewheel", nil
	case 2:
		return "dfp", nil
	default:
		return "", fmt.Errorf("Primary ad server %d not recognized", adServerId)
	}
}

// getDealTiers creates map of impression to bidder deal tier configuration
func getDealTiers(bidRequest *openrtb2.BidRequest) map[string]openrtb_ext.DealTierBidderMap {
	impDealMap := make(map[string]openrtb_ext.DealTierBidderMap)

	for _, imp := range bidRequest.Imp {
		dealTierBidderMap, err := openrtb_ext.ReadDealTiersFromImp(imp)
		if err != nil {
			continue
		}
		impDealMap[imp.ID] = dealTierBidderMap
	}

	return impDealMap
}

// applyDealTiers rewrites the price segment of the category keys of bids whose deal priority
// meets their bidder's tier on the imp. Those bids are replaced by copies flagged as satisfying the tier.
func applyDealTiers(bidRequest *openrtb2.BidRequest, bidders []openrtb_ext.BidderName, seatBids map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, bidCategory bidCategories) (map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, []error) {
	var errs []error
	impDealMap := getDealTiers(bidRequest)
	out := make(map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, len(seatBids))
	for bidder, seatBid := range seatBids {
		out[bidder] = seatBid
	}

	for _, bidder := range bidders {
		seatBid, ok := seatBids[bidder]
		if !ok || seatBid == nil {
			continue
		}
		replaced := make(map[*entities.PbsOrtbBid]*entities.PbsOrtbBid)
		for _, bid := range seatBid.Bids {
			if bid.DealPriority <= 0 {
				continue
			}
			dealTier, found := impDealMap[bid.Bid.ImpID][bidder]
			if !found {
				continue
			}
			if !dealTier.Valid() {
				errs = append(errs, &errortypes.Warning{
					WarningCode: errortypes.DealTierWarningCode,
					Message:     fmt.Sprintf("dealTier configuration invalid for bidder '%s', imp ID '%s'", bidder, bid.Bid.ImpID),
				})
				continue
			}
			if bid.DealPriority < dealTier.MinDealTier {
				continue
			}
			clone := *bid
			clone.DealTierSatisfied = true
			replaced[bid] = &clone
			if oldCatDur, ok := bidCategory[bidKey{bidder, bid.Bid.ID}]; ok {
				bidCategory[bidKey{bidder, bid.Bid.ID}] = withDealTierPrefix(oldCatDur, dealTier.Prefix, bid.DealPriority)
			}
		}
		if len(replaced) > 0 {
			out[bidder] = seatBid.WithBids(substitute(seatBid.Bids, replaced))
		}
	}
	return out, errs
}

func withDealTierPrefix(catDur string, prefix string, priority int) string {
	oldCatDurSplit := strings.SplitAfterN(catDur, "_", 2)
	oldCatDurSplit[0] = fmt.Sprintf("%s%d_", prefix, priority)
	return strings.Join(oldCatDurSplit, "")
}
