package exchange

import (
	"context"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Transport sends the request derived for one bidder and reports what came back.
//
// Implementations must never return failures any other way than through BidderResult.Errors,
// and must give up once ctx is done.
type Transport interface {
	RequestBids(ctx context.Context, bidder openrtb_ext.BidderName, request *openrtb2.BidRequest, debug bool) *BidderResult
}

// PrivacyMasking returns the user and device a bidder may see. A blocked bidder is never called.
// The inputs must not be modified; masked values are returned as copies.
type PrivacyMasking interface {
	Mask(bidder openrtb_ext.BidderName, user *openrtb2.User, device *openrtb2.Device) (*openrtb2.User, *openrtb2.Device, bool)
}

// BidderAccessControl is consulted once per bidder before anything is built for it.
type BidderAccessControl interface {
	IsCallAllowed(bidder openrtb_ext.BidderName, request *openrtb2.BidRequest) bool
}

// ResponseValidator lists what is wrong with a bid. An empty list means the bid is valid.
type ResponseValidator interface {
	Validate(bid *entities.PbsOrtbBid, request *openrtb2.BidRequest) []string
}

// PriceFloorAdjuster returns the floor, and its currency, an imp carries to one bidder.
type PriceFloorAdjuster interface {
	Adjust(imp openrtb2.Imp, bidder openrtb_ext.BidderName, conversions currency.Conversions) (float64, string)
}

// CategoryFetcher translates an IAB category into the vocabulary of the primary ad server.
type CategoryFetcher interface {
	FetchCategories(ctx context.Context, primaryAdServer, publisherId, iabCategory string) (string, error)
}

// BidderInfoProvider describes the currencies a bidder can answer in.
type BidderInfoProvider interface {
	AcceptsAnyOf(bidder openrtb_ext.BidderName, currencies []string) bool
}

type passThroughPrivacy struct{}

func (passThroughPrivacy) Mask(bidder openrtb_ext.BidderName, user *openrtb2.User, device *openrtb2.Device) (*openrtb2.User, *openrtb2.Device, bool) {
	return user, device, false
}

type allowAllBidders struct{}

func (allowAllBidders) IsCallAllowed(bidder openrtb_ext.BidderName, request *openrtb2.BidRequest) bool {
	return true
}

type unchangedFloors struct{}

func (unchangedFloors) Adjust(imp openrtb2.Imp, bidder openrtb_ext.BidderName, conversions currency.Conversions) (float64, string) {
	return imp.BidFloor, imp.BidFloorCur
}

type anyCurrency struct{}

func (anyCurrency) AcceptsAnyOf(bidder openrtb_ext.BidderName, currencies []string) bool {
	return true
}
