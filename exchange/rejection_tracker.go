package exchange

import (
	"sync"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Rejection records one imp, or one bid on an imp, which a bidder lost and why.
type Rejection struct {
	ImpID  string
	Reason RejectionReason
	// Bid is nil when the bidder never got to bid on the imp.
	Bid *entities.PbsOrtbBid
}

// BidRejectionTracker collects the rejections of a single bidder across every pipeline stage.
// Entries are only ever appended.
type BidRejectionTracker struct {
	bidder openrtb_ext.BidderName

	mu         sync.Mutex
	rejections []Rejection
}

func newBidRejectionTracker(bidder openrtb_ext.BidderName) *BidRejectionTracker {
	return &BidRejectionTracker{bidder: bidder}
}

// RejectImps records that the bidder lost every one of impIDs before it could bid.
func (t *BidRejectionTracker) RejectImps(impIDs []string, reason RejectionReason) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, impID := range impIDs {
		t.rejections = append(t.rejections, Rejection{ImpID: impID, Reason: reason})
	}
}

// RejectBid records that bid was removed from the auction.
func (t *BidRejectionTracker) RejectBid(bid *entities.PbsOrtbBid, reason RejectionReason) {
	if t == nil || bid == nil || bid.Bid == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejections = append(t.rejections, Rejection{ImpID: bid.Bid.ImpID, Reason: reason, Bid: bid})
}

// Rejections returns a copy of everything recorded so far.
func (t *BidRejectionTracker) Rejections() []Rejection {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Rejection, len(t.rejections))
	copy(out, t.rejections)
	return out
}

// rejectionTrackers holds one tracker per bidder. It is filled before fan-out and only read
// afterwards, so the map itself needs no lock.
type rejectionTrackers map[openrtb_ext.BidderName]*BidRejectionTracker

// forBidder returns the bidder's tracker, adding one if needed. A nil set hands out nil trackers,
// which ignore everything.
func (rt rejectionTrackers) forBidder(bidder openrtb_ext.BidderName) *BidRejectionTracker {
	if rt == nil {
		return nil
	}
	if tracker, ok := rt[bidder]; ok {
		return tracker
	}
	tracker := newBidRejectionTracker(bidder)
	rt[bidder] = tracker
	return tracker
}

// seatNonBids folds every tracker into the response's seat non-bid list.
func (rt rejectionTrackers) seatNonBids() SeatNonBidBuilder {
	builder := SeatNonBidBuilder{}
	for bidder, tracker := range rt {
		for _, rejection := range tracker.Rejections() {
			if rejection.Bid != nil {
				builder.rejectBid(rejection.Bid, rejection.Reason.NonBidReason(), string(bidder))
			} else {
				builder.rejectImps([]string{rejection.ImpID}, rejection.Reason.NonBidReason(), string(bidder))
			}
		}
	}
	return builder
}
