package exchange

import (
	"github.com/prebid/auction-orchestrator/errortypes"
)

// NonBidReason lists the reasons a bid did not result in a positive bid. It is reported as
// the status code of bidresponse.ext.prebid.seatnonbid[].nonbid[].
// Reference: https://github.com/InteractiveAdvertisingBureau/openrtb/blob/master/extensions/community_extensions/seat-non-bid.md#list-non-bid-status-codes
type NonBidReason int

const (
	NoBidUnknownError                      NonBidReason = 0   // No Bid - General
	ErrorGeneral                           NonBidReason = 100 // Error - General
	ErrorTimeout                           NonBidReason = 101 // Error - Timeout
	ErrorBidderUnreachable                 NonBidReason = 103 // Error - Bidder Unreachable
	RequestBlockedGeneral                  NonBidReason = 200 // Request Blocked - General
	ResponseRejectedGeneral                NonBidReason = 300
	ResponseRejectedCategoryMappingInvalid NonBidReason = 303 // Response Rejected - Category Mapping Invalid
)

// RejectionReason is why a bidder's imp or bid was taken out of the auction.
type RejectionReason string

// Outcomes of a bidder's own call graph.
const (
	RejectionBadInput             RejectionReason = "bad_input"
	RejectionBadServerResponse    RejectionReason = "bad_server_response"
	RejectionFailedToRequestBids  RejectionReason = "failed_to_request_bids"
	RejectionTimeout              RejectionReason = "timeout"
	RejectionInvalidBid           RejectionReason = "invalid_bid"
	RejectionUnacceptableCurrency RejectionReason = "unacceptable_currency"
	RejectionGeneric              RejectionReason = "generic"
)

// Removals made by the auction itself once all bidders are in.
const (
	RejectionCategoryMapping RejectionReason = "category_mapping"
	RejectionDeduplicated    RejectionReason = "deduplicated"
	RejectionMultiBidLimit   RejectionReason = "multibid_limit"
)

// NonBidReason is the seat non-bid status code a rejection is reported with.
func (r RejectionReason) NonBidReason() NonBidReason {
	switch r {
	case RejectionTimeout:
		return ErrorTimeout
	case RejectionFailedToRequestBids:
		return ErrorBidderUnreachable
	case RejectionBadInput, RejectionBadServerResponse:
		return ErrorGeneral
	case RejectionUnacceptableCurrency:
		return RequestBlockedGeneral
	case RejectionCategoryMapping:
		return ResponseRejectedCategoryMappingInvalid
	case RejectionInvalidBid, RejectionGeneric, RejectionDeduplicated, RejectionMultiBidLimit:
		return ResponseRejectedGeneral
	}
	return NoBidUnknownError
}

// errorToRejectionReason classifies the error which ended a bidder's call.
func errorToRejectionReason(err error) RejectionReason {
	switch errortypes.ReadCode(err) {
	case errortypes.TimeoutErrorCode:
		return RejectionTimeout
	case errortypes.BadInputErrorCode:
		return RejectionBadInput
	case errortypes.BadServerResponseErrorCode:
		return RejectionBadServerResponse
	case errortypes.FailedToRequestBidsErrorCode:
		return RejectionFailedToRequestBids
	case errortypes.InvalidBidErrorCode:
		return RejectionInvalidBid
	case errortypes.UnacceptableCurrencyErrorCode:
		return RejectionUnacceptableCurrency
	}
	return RejectionGeneric
}
