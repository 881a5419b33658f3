package entities

import (
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// PbsOrtbSeatBid is a SeatBid returned by a bidder, in the form the auction works with it.
type PbsOrtbSeatBid struct {
	// Bids is the list of bids which this bidder wishes to make.
	Bids []*PbsOrtbBid
	// Currency is the currency in which the bids are made.
	// Should be a valid currency ISO code.
	Currency string
	// HttpCalls is the list of debugging info. It should only be populated if the request.test == 1.
	// This will become response.ext.debug.httpcalls.{bidder} on the final Response.
	HttpCalls []*openrtb_ext.ExtHttpCall
	// Seat defines whom these extra Bids belong to.
	Seat string
}

// WithBids returns a copy of the seat bid holding bids instead of the original list.
func (sb *PbsOrtbSeatBid) WithBids(bids []*PbsOrtbBid) *PbsOrtbSeatBid {
	clone := *sb
	clone.Bids = bids
	return &clone
}

// PbsOrtbBid is a Bid returned by a bidder, along with the data the auction learns about it.
//
// BidTargets does not need to be filled out by the bidder; the auction sets it once winners are known.
type PbsOrtbBid struct {
	Bid               *openrtb2.Bid
	BidTargets        map[string]string
	BidType           openrtb_ext.BidType
	BidVideo          *openrtb_ext.ExtBidPrebidVideo
	DealPriority      int
	DealTierSatisfied bool
	GeneratedBidID    string
	OriginalBidCPM    float64
	OriginalBidCur    string
	TargetBidderCode  string
}

// WithPrice returns a copy of the bid, including its openrtb2.Bid, carrying a new price.
func (b *PbsOrtbBid) WithPrice(price float64) *PbsOrtbBid {
	clone := *b
	if b.Bid != nil {
		ortbBid := *b.Bid
		ortbBid.Price = price
		clone.Bid = &ortbBid
	}
	return &clone
}

// HasDeal reports whether the bid carries a non-blank deal id.
func (b *PbsOrtbBid) HasDeal() bool {
	return b != nil && b.Bid != nil && b.Bid.DealID != ""
}
