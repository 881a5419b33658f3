package exchange

import (
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// AuctionResponse is the outcome of HoldAuction. ExtBidResponse is kept unmarshalled so
// callers can inspect it before it is folded into BidResponse.Ext.
type AuctionResponse struct {
	*openrtb2.BidResponse
	ExtBidResponse *openrtb_ext.ExtBidResponse
}

// GetSeatNonBid returns the rejected imps per seat, or nil when none were recorded.
func (ar *AuctionResponse) GetSeatNonBid() []openrtb_ext.SeatNonBid {
	if ar == nil || ar.ExtBidResponse == nil || ar.ExtBidResponse.Prebid == nil {
		return nil
	}
	return ar.ExtBidResponse.Prebid.SeatNonBid
}
