package exchange

import (
	"sort"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// dealPreference says, per imp, whether deal bids outrank bids with a better price.
type dealPreference struct {
	fallback bool
	byImp    map[string]bool
}

// newDealPreference reads imp.ext.prebid.preferdeals, falling back to the request or account setting.
func newDealPreference(imps []openrtb2.Imp, fallback bool) dealPreference {
	pref := dealPreference{fallback: fallback, byImp: make(map[string]bool)}
	for _, imp := range imps {
		if value, err := jsonparser.GetBoolean(imp.Ext, "prebid", "preferdeals"); err == nil {
			pref.byImp[imp.ID] = value
		}
	}
	return pref
}

func (p dealPreference) forImp(impID string) bool {
	if value, ok := p.byImp[impID]; ok {
		return value
	}
	return p.fallback
}

// auction stores the outcome of resolving the bids of a single call to Exchange.HoldAuction().
// Construct these with resolve().
type auction struct {
	// winningBids is a map from imp.id to the best bid across all bidders.
	winningBids map[string]*entities.PbsOrtbBid
	// winningBidsByBidder stores the best bid each bidder made on each imp.
	winningBidsByBidder map[string]map[openrtb_ext.BidderName]*entities.PbsOrtbBid
	// allBidsByBidder stores the bids each bidder keeps on each imp, best first and no more than
	// its multibid limit.
	allBidsByBidder map[string]map[openrtb_ext.BidderName][]*entities.PbsOrtbBid
	// cacheIds and vastCacheIds are set by cacheBids() in cache.go, and are nil beforehand.
	cacheIds     map[*openrtb2.Bid]string
	vastCacheIds map[*openrtb2.Bid]string
}

// resolve picks the winning bids of every imp. bidders fixes the order in which bidders are
// visited and so settles ties between bidders; within a bidder, equal bids keep the order the
// bidder sent them in. Neither order is meaningful.
//
// The returned seat bids replace seatBids. They only hold the bids within each bidder's multibid
// limit, and every bid past the limit is recorded on the bidder's tracker. Multibid extras are
// copied to carry their target bidder code. Resolving the returned seat bids again gives the same
// auction.
func resolve(bidders []openrtb_ext.BidderName, seatBids map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, prefs dealPreference, limits openrtb_ext.MultiBidLimits, trackers rejectionTrackers) (*auction, map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid) {
	auc := &auction{
		winningBids:         make(map[string]*entities.PbsOrtbBid),
		winningBidsByBidder: make(map[string]map[openrtb_ext.BidderName]*entities.PbsOrtbBid),
		allBidsByBidder:     make(map[string]map[openrtb_ext.BidderName][]*entities.PbsOrtbBid),
	}
	resolved := make(map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, len(seatBids))

	for _, bidder := range bidders {
		seatBid, ok := seatBids[bidder]
		if !ok || seatBid == nil {
			continue
		}
		limit := limits.For(string(bidder))
		// kept maps every bid within the limit to the bid which stands in for it in the seat.
		kept := make(map[*entities.PbsOrtbBid]*entities.PbsOrtbBid, len(seatBid.Bids))

		for impID, bids := range groupByImp(seatBid.Bids) {
			preferDeals := prefs.forImp(impID)
			sort.SliceStable(bids, func(i, j int) bool {
				return outranks(bids[i], bids[j], preferDeals)
			})
			if len(bids) > limit.MaxBids {
				bids = bids[:limit.MaxBids]
			}
			for i, bid := range bids {
				kept[bid] = bid
				if i == 0 || limit.TargetBidderCodePrefix == "" {
					continue
				}
				if code := limit.TargetBidderCodePrefix + strconv.Itoa(i+1); bid.TargetBidderCode != code {
					clone := *bid
					clone.TargetBidderCode = code
					kept[bid] = &clone
					bids[i] = &clone
				}
			}
			auc.addBids(impID, bidder, bids, preferDeals)
		}

		resolved[bidder] = seatBid.WithBids(withinLimit(seatBid.Bids, kept, trackers.forBidder(bidder)))
	}
	return auc, resolved
}

// withinLimit keeps the seat order of the bids in kept, swapping in their stand-ins. Every other
// bid is rejected on tracker.
func withinLimit(bids []*entities.PbsOrtbBid, kept map[*entities.PbsOrtbBid]*entities.PbsOrtbBid, tracker *BidRejectionTracker) []*entities.PbsOrtbBid {
	out := make([]*entities.PbsOrtbBid, 0, len(kept))
	for _, bid := range bids {
		if standIn, ok := kept[bid]; ok {
			out = append(out, standIn)
		} else if bid != nil {
			tracker.RejectBid(bid, RejectionMultiBidLimit)
		}
	}
	return out
}

func groupByImp(bids []*entities.PbsOrtbBid) map[string][]*entities.PbsOrtbBid {
	grouped := make(map[string][]*entities.PbsOrtbBid)
	for _, bid := range bids {
		if bid == nil || bid.Bid == nil {
			continue
		}
		grouped[bid.Bid.ImpID] = append(grouped[bid.Bid.ImpID], bid)
	}
	return grouped
}

func substitute(bids []*entities.PbsOrtbBid, replaced map[*entities.PbsOrtbBid]*entities.PbsOrtbBid) []*entities.PbsOrtbBid {
	if len(replaced) == 0 {
		return bids
	}
	out := make([]*entities.PbsOrtbBid, len(bids))
	for i, bid := range bids {
		if clone, ok := replaced[bid]; ok {
			out[i] = clone
		} else {
			out[i] = bid
		}
	}
	return out
}

// outranks orders bids by deal presence, when deals are preferred, then by price.
func outranks(bid, other *entities.PbsOrtbBid, preferDeals bool) bool {
	if preferDeals && bid.HasDeal() != other.HasDeal() {
		return bid.HasDeal()
	}
	return bid.Bid.Price > other.Bid.Price
}

// addBids takes the ranked bids of one bidder on one imp. Only the best of them competes across bidders.
func (a *auction) addBids(impID string, bidder openrtb_ext.BidderName, ranked []*entities.PbsOrtbBid, preferDeals bool) {
	if len(ranked) == 0 {
		return
	}
	if a.allBidsByBidder[impID] == nil {
		a.allBidsByBidder[impID] = make(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid)
		a.winningBidsByBidder[impID] = make(map[openrtb_ext.BidderName]*entities.PbsOrtbBid)
	}
	a.allBidsByBidder[impID][bidder] = ranked
	best := ranked[0]
	a.winningBidsByBidder[impID][bidder] = best

	if current, ok := a.winningBids[impID]; !ok || outranks(best, current, preferDeals) {
		a.winningBids[impID] = best
	}
}

func (a *auction) cacheId(bid *openrtb2.Bid) (id string, exists bool) {
	id, exists = a.cacheIds[bid]
	return
}

func (a *auction) vastCacheId(bid *openrtb2.Bid) (id string, exists bool) {
	id, exists = a.vastCacheIds[bid]
	return
}

// forEachBestBid runs the callback on every bid which is the best one of a bidder on an imp.
func (a *auction) forEachBestBid(callback func(impID string, bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, winner bool)) {
	for impID, bidderMap := range a.winningBidsByBidder {
		overallWinner := a.winningBids[impID]
		for bidder, bid := range bidderMap {
			callback(impID, bidder, bid, bid == overallWinner)
		}
	}
}

// forEachKeptBid runs the callback on every bid a bidder keeps within its multibid limit.
// rank is 0 for the bidder's best bid on the imp.
func (a *auction) forEachKeptBid(callback func(impID string, bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, rank int)) {
	for impID, bidderMap := range a.allBidsByBidder {
		for bidder, bids := range bidderMap {
			for rank, bid := range bids {
				callback(impID, bidder, bid, rank)
			}
		}
	}
}
