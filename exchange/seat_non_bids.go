package exchange

import (
	"sort"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// SeatNonBidBuilder groups the non-bids of an auction by seat. A nil builder ignores writes.
type SeatNonBidBuilder map[string][]openrtb_ext.NonBid

// rejectBid records a bid that was dropped, keeping enough of it for the publisher to see what was lost.
func (b SeatNonBidBuilder) rejectBid(bid *entities.PbsOrtbBid, reason NonBidReason, seat string) {
	if b == nil || bid == nil || bid.Bid == nil {
		return
	}
	b[seat] = append(b[seat], openrtb_ext.NonBid{
		ImpId:      bid.Bid.ImpID,
		StatusCode: int(reason),
		Ext:        &openrtb_ext.NonBidExt{Prebid: openrtb_ext.ExtResponseNonBidPrebid{Bid: nonBidObject(bid)}},
	})
}

// rejectImps records imps the seat never bid on, such as after a timeout.
func (b SeatNonBidBuilder) rejectImps(impIDs []string, reason NonBidReason, seat string) {
	if b == nil || len(impIDs) == 0 {
		return
	}
	for _, impID := range impIDs {
		b[seat] = append(b[seat], openrtb_ext.NonBid{ImpId: impID, StatusCode: int(reason)})
	}
}

// Slice flattens the builder into the response shape, ordered by seat.
func (b SeatNonBidBuilder) Slice() []openrtb_ext.SeatNonBid {
	seats := make([]string, 0, len(b))
	for seat := range b {
		seats = append(seats, seat)
	}
	sort.Strings(seats)

	out := make([]openrtb_ext.SeatNonBid, 0, len(seats))
	for _, seat := range seats {
		out = append(out, openrtb_ext.SeatNonBid{Seat: seat, NonBid: b[seat]})
	}
	return out
}

func nonBidObject(bid *entities.PbsOrtbBid) openrtb_ext.NonBidObject {
	return openrtb_ext.NonBidObject{
		Price:          bid.Bid.Price,
		ADomain:        bid.Bid.ADomain,
		CatTax:         bid.Bid.CatTax,
		Cat:            bid.Bid.Cat,
		DealID:         bid.Bid.DealID,
		W:              bid.Bid.W,
		H:              bid.Bid.H,
		Dur:            bid.Bid.Dur,
		MType:          bid.Bid.MType,
		OriginalBidCPM: bid.OriginalBidCPM,
		OriginalBidCur: bid.OriginalBidCur,
	}
}
