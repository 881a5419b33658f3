package exchange

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// BidderRequest is the unit of fan-out: one bidder bound to the request derived for it.
type BidderRequest struct {
	// BidRequest is nil when stored responses stand in for every imp of the bidder.
	BidRequest     *openrtb2.BidRequest
	BidderName     openrtb_ext.BidderName
	BidderCoreName openrtb_ext.BidderName
	BidderLabels   metrics.AdapterLabels
	// BidderStoredResponses maps imp ids to the stored response replacing the bidder's call for that imp.
	BidderStoredResponses map[string]json.RawMessage
}

// impsByBidder splits the imps of the request by the bidders named in imp.ext.prebid.bidder. Each
// copy carries only the params of its own bidder, at imp.ext.bidder, next to the rest of imp.ext.
func impsByBidder(imps []openrtb2.Imp) (map[string][]openrtb2.Imp, error) {
	split := make(map[string][]openrtb2.Imp)
	for _, imp := range imps {
		impExt, err := openrtb_ext.ReadExtImp(imp.Ext)
		if err != nil {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%s].ext is invalid: %v", imp.ID, err)}
		}
		if impExt.Prebid == nil {
			continue
		}
		shared, err := sharedImpExt(imp.Ext)
		if err != nil {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%s].ext is invalid: %v", imp.ID, err)}
		}
		for bidder, params := range impExt.Prebid.Bidder {
			if openrtb_ext.IsBidderNameReserved(bidder) {
				continue
			}
			impCopy := imp
			if impCopy.Ext, err = withBidderParams(shared, params); err != nil {
				return nil, err
			}
			split[bidder] = append(split[bidder], impCopy)
		}
	}
	return split, nil
}

// sharedImpExt returns imp.ext without the params of any bidder or the stored responses. An
// imp.ext.prebid left empty is dropped.
func sharedImpExt(ext json.RawMessage) (map[string]json.RawMessage, error) {
	var shared map[string]json.RawMessage
	if err := json.Unmarshal(ext, &shared); err != nil {
		return nil, err
	}
	delete(shared, "bidder")

	rawPrebid, ok := shared[openrtb_ext.PrebidExtKey]
	if !ok {
		return shared, nil
	}
	var prebid map[string]json.RawMessage
	if err := json.Unmarshal(rawPrebid, &prebid); err != nil {
		return nil, err
	}
	delete(prebid, "bidder")
	delete(prebid, "storedbidresponse")
	if len(prebid) == 0 {
		delete(shared, openrtb_ext.PrebidExtKey)
		return shared, nil
	}
	rawPrebid, err := json.Marshal(prebid)
	if err != nil {
		return nil, err
	}
	shared[openrtb_ext.PrebidExtKey] = rawPrebid
	return shared, nil
}

// withBidderParams writes one bidder's params to imp.ext.bidder. shared is not modified.
func withBidderParams(shared map[string]json.RawMessage, params json.RawMessage) (json.RawMessage, error) {
	ext := make(map[string]json.RawMessage, len(shared)+1)
	for key, value := range shared {
		ext[key] = value
	}
	ext["bidder"] = params
	return json.Marshal(ext)
}

// bidderRequestExt rewrites request.ext so that ext.prebid.bidderparams only holds the bidder's own entry.
func bidderRequestExt(ext json.RawMessage, bidderParams json.RawMessage) (json.RawMessage, error) {
	if len(ext) == 0 {
		return ext, nil
	}
	stripped, err := jsonpatch.MergePatch(ext, []byte(`{"prebid":{"bidderparams":null}}`))
	if err != nil {
		return nil, err
	}
	if len(bidderParams) == 0 {
		return stripped, nil
	}
	patch, err := json.Marshal(map[string]interface{}{
		"prebid": map[string]interface{}{"bidderparams": bidderParams},
	})
	if err != nil {
		return nil, err
	}
	return jsonpatch.MergePatch(stripped, patch)
}

// makeBidderRequests derives the request of every bidder taking part. Bidders which may not be
// called are dropped here with a warning; those which cannot bid in any of the request currencies
// come back as failed results instead, so the caller can report them.
func (e *exchange) makeBidderRequests(r *AuctionRequest, requestExt *openrtb_ext.ExtRequest, conversions currency.Conversions, trackers rejectionTrackers) ([]BidderRequest, []*BidderResult, []error, error) {
	request := r.BidRequest
	split, err := impsByBidder(request.Imp)
	if err != nil {
		return nil, nil, nil, err
	}

	names := make([]string, 0, len(split))
	for bidder := range split {
		names = append(names, bidder)
	}
	sort.Strings(names)

	requestCurrencies := request.Cur
	if len(requestCurrencies) == 0 {
		requestCurrencies = []string{e.adServerCurrency(request)}
	}

	var bidderRequests []BidderRequest
	var failed []*BidderResult
	var warnings []error
	for _, name := range names {
		bidder := openrtb_ext.BidderName(name)
		coreBidder := bidder
		if alias, ok := requestExt.Prebid.Aliases[name]; ok {
			coreBidder = openrtb_ext.BidderName(alias)
		} else if core, ok := e.hostAliases[bidder]; ok {
			coreBidder = core
		}
		if !e.accessControl.IsCallAllowed(coreBidder, request) {
			warnings = append(warnings, &errortypes.BidderTemporarilyDisabled{
				Message: fmt.Sprintf("The bidder '%s' has been disabled.", bidder),
			})
			continue
		}

		imps := split[name]
		if !e.bidderInfo.AcceptsAnyOf(coreBidder, requestCurrencies) {
			impIDs := make([]string, 0, len(imps))
			for _, imp := range imps {
				impIDs = append(impIDs, imp.ID)
			}
			trackers.forBidder(bidder).RejectImps(impIDs, RejectionUnacceptableCurrency)
			e.me.RecordRejectedBid(bidder, string(RejectionUnacceptableCurrency))
			failed = append(failed, failedResult(bidder, &errortypes.UnacceptableCurrency{
				Message: fmt.Sprintf("Bidder %s cannot bid in any of the request currencies %v", bidder, requestCurrencies),
			}))
			continue
		}

		user, device, blocked := e.privacy.Mask(coreBidder, request.User, request.Device)
		if blocked {
			e.me.RecordAdapterPrivacyBlocked(bidder)
			continue
		}

		stored := make(map[string]json.RawMessage)
		live := make([]openrtb2.Imp, 0, len(imps))
		for _, imp := range imps {
			if resp, ok := r.StoredBidResponses[imp.ID][name]; ok {
				stored[imp.ID] = resp
				continue
			}
			imp.BidFloor, imp.BidFloorCur = e.floors.Adjust(imp, coreBidder, conversions)
			live = append(live, imp)
		}
		if len(stored) > 0 {
			e.me.RecordStoredBidResponse(bidder)
		}

		bidderRequest := BidderRequest{
			BidderName:            bidder,
			BidderCoreName:        coreBidder,
			BidderLabels:          metrics.AdapterLabels{Adapter: coreBidder},
			BidderStoredResponses: stored,
		}
		if len(live) > 0 {
			bidderParams, err := requestExt.Prebid.GetBidderParams(name)
			if err != nil {
				return nil, nil, nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext.prebid.bidderparams is invalid: %v", err)}
			}
			ext, err := bidderRequestExt(request.Ext, bidderParams)
			if err != nil {
				return nil, nil, nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext is invalid: %v", err)}
			}
			derived := *request
			derived.Imp = live
			derived.User = user
			derived.Device = device
			derived.Ext = ext
			bidderRequest.BidRequest = &derived
		}
		bidderRequests = append(bidderRequests, bidderRequest)
	}

	randomizeList(bidderRequests)
	return bidderRequests, failed, warnings, nil
}

// randomizeList shuffles the bidders so that no bidder is always called first.
func randomizeList(list []BidderRequest) {
	rand.Shuffle(len(list), func(i, j int) {
		list[i], list[j] = list[j], list[i]
	})
}
