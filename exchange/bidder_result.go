package exchange

import (
	"time"

	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// BidderResult is the outcome of one bidder's participation. Values are never modified once
// built; every pipeline stage returns a replacement.
type BidderResult struct {
	Bidder openrtb_ext.BidderName
	// SeatBid is nil when the bidder made no bids at all.
	SeatBid      *entities.PbsOrtbSeatBid
	Errors       []error
	ResponseTime time.Duration
}

// Bids is nil-safe.
func (r *BidderResult) Bids() []*entities.PbsOrtbBid {
	if r == nil || r.SeatBid == nil {
		return nil
	}
	return r.SeatBid.Bids
}

// Currency returns the currency of the bids. Bidders which don't say are taken to bid in USD.
func (r *BidderResult) Currency() string {
	if r == nil || r.SeatBid == nil || r.SeatBid.Currency == "" {
		return currency.DefaultBidCurrency
	}
	return r.SeatBid.Currency
}

func (r *BidderResult) withBids(bids []*entities.PbsOrtbBid) *BidderResult {
	clone := *r
	if r.SeatBid == nil {
		clone.SeatBid = &entities.PbsOrtbSeatBid{Bids: bids, Seat: string(r.Bidder)}
	} else {
		clone.SeatBid = r.SeatBid.WithBids(bids)
	}
	return &clone
}

func (r *BidderResult) withCurrency(cur string) *BidderResult {
	clone := *r
	if r.SeatBid != nil {
		seatBid := *r.SeatBid
		seatBid.Currency = cur
		clone.SeatBid = &seatBid
	}
	return &clone
}

func (r *BidderResult) withErrors(errs ...error) *BidderResult {
	if len(errs) == 0 {
		return r
	}
	clone := *r
	clone.Errors = make([]error, 0, len(r.Errors)+len(errs))
	clone.Errors = append(clone.Errors, r.Errors...)
	clone.Errors = append(clone.Errors, errs...)
	return &clone
}

// withBidder files the result under the name the request used for the bidder, which differs from
// the name the transport knows it by when the request uses an alias. r is not modified.
func (r *BidderResult) withBidder(bidder openrtb_ext.BidderName) *BidderResult {
	clone := *r
	clone.Bidder = bidder
	if r.SeatBid != nil {
		seatBid := *r.SeatBid
		seatBid.Seat = string(bidder)
		clone.SeatBid = &seatBid
	}
	return &clone
}

func (r *BidderResult) httpCalls() []*openrtb_ext.ExtHttpCall {
	if r == nil || r.SeatBid == nil {
		return nil
	}
	return r.SeatBid.HttpCalls
}

// failedResult is what a bidder which never got to bid reports.
func failedResult(bidder openrtb_ext.BidderName, err error) *BidderResult {
	return &BidderResult{
		Bidder: bidder,
		Errors: []error{err},
	}
}
