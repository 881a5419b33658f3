package exchange

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange/entities"
)

// storedBidderResults builds, per imp answered by a stored response, the result the bidder would
// have returned. Every bid is moved onto the imp its stored response was registered for. Stored
// responses may each use their own currency, so they are kept apart until normalized.
func storedBidderResults(bidderRequest BidderRequest, request *openrtb2.BidRequest) []*BidderResult {
	impIDs := make([]string, 0, len(bidderRequest.BidderStoredResponses))
	for impID := range bidderRequest.BidderStoredResponses {
		impIDs = append(impIDs, impID)
	}
	sort.Strings(impIDs)

	results := make([]*BidderResult, 0, len(impIDs))
	for _, impID := range impIDs {
		result := &BidderResult{Bidder: bidderRequest.BidderName}
		var response openrtb2.BidResponse
		if err := json.Unmarshal(bidderRequest.BidderStoredResponses[impID], &response); err != nil {
			results = append(results, result.withErrors(&errortypes.BadServerResponse{
				Message: fmt.Sprintf("Stored bid response of bidder %s for imp %s is invalid: %v", bidderRequest.BidderName, impID, err),
			}))
			continue
		}
		for i := range response.SeatBid {
			for j := range response.SeatBid[i].Bid {
				response.SeatBid[i].Bid[j].ImpID = impID
			}
		}
		bids, errs := bidsFromResponse(&response, request)
		results = append(results, result.withBids(bids).withCurrency(response.Cur).withErrors(errs...))
	}
	return results
}

// mergeStoredResult appends the normalized stored bids of a bidder to its normalized live result.
// Both are already in the ad server currency.
func mergeStoredResult(live, stored *BidderResult) *BidderResult {
	if live == nil {
		return stored
	}
	if stored == nil {
		return live
	}
	merged := live.withErrors(stored.Errors...)
	if len(stored.Bids()) == 0 {
		return merged
	}
	bids := make([]*entities.PbsOrtbBid, 0, len(live.Bids())+len(stored.Bids()))
	bids = append(bids, live.Bids()...)
	bids = append(bids, stored.Bids()...)
	merged = merged.withBids(bids)
	if live.SeatBid == nil || live.SeatBid.Currency == "" {
		merged = merged.withCurrency(stored.Currency())
	}
	return merged
}
