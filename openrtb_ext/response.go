package openrtb_ext

import (
	"encoding/json"

	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// ExtBidResponse is bidresponse.ext. Errors and warnings are keyed by bidder, with
// request level messages filed under BidderReservedGeneral.
type ExtBidResponse struct {
	Debug              *ExtResponseDebug                 `json:"debug,omitempty"`
	Errors             map[BidderName][]ExtBidderMessage `json:"errors,omitempty"`
	Warnings           map[BidderName][]ExtBidderMessage `json:"warnings,omitempty"`
	ResponseTimeMillis map[BidderName]int                `json:"responsetimemillis,omitempty"`
	// RequestTimeoutMillis echoes the tmax the auction ran under.
	RequestTimeoutMillis int64              `json:"tmaxrequest,omitempty"`
	Prebid               *ExtResponsePrebid `json:"prebid,omitempty"`
}

type ExtResponseDebug struct {
	HttpCalls map[BidderName][]*ExtHttpCall `json:"httpcalls,omitempty"`
	// ResolvedRequest is the incoming request after defaults were applied, before the per-bidder split.
	ResolvedRequest json.RawMessage `json:"resolvedrequest,omitempty"`
}

type ExtResponsePrebid struct {
	AuctionTimestamp int64        `json:"auctiontimestamp,omitempty"`
	SeatNonBid       []SeatNonBid `json:"seatnonbid,omitempty"`
}

// ExtBidderMessage pairs a machine readable code with a human readable message.
type ExtBidderMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ExtHttpCall records one exchange with a bidder for debug output.
type ExtHttpCall struct {
	Uri            string              `json:"uri"`
	RequestBody    string              `json:"requestbody"`
	RequestHeaders map[string][]string `json:"requestheaders"`
	ResponseBody   string              `json:"responsebody"`
	Status         int                 `json:"status"`
}

// SeatNonBid lists, for one seat, the imps it did not win and why.
type SeatNonBid struct {
	NonBid []NonBid        `json:"nonbid"`
	Seat   string          `json:"seat"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// NonBid carries the rejection status code of an imp. Ext is set when a bid existed.
type NonBid struct {
	ImpId      string     `json:"impid"`
	StatusCode int        `json:"statuscode"`
	Ext        *NonBidExt `json:"ext,omitempty"`
}

type NonBidExt struct {
	Prebid ExtResponseNonBidPrebid `json:"prebid"`
}

type ExtResponseNonBidPrebid struct {
	Bid NonBidObject `json:"bid"`
}

// NonBidObject is the part of a rejected bid worth reporting back, plus its price before conversion.
type NonBidObject struct {
	Price   float64                 `json:"price,omitempty"`
	ADomain []string                `json:"adomain,omitempty"`
	CatTax  adcom1.CategoryTaxonomy `json:"cattax,omitempty"`
	Cat     []string                `json:"cat,omitempty"`
	DealID  string                  `json:"dealid,omitempty"`
	W       int64                   `json:"w,omitempty"`
	H       int64                   `json:"h,omitempty"`
	Dur     int64                   `json:"dur,omitempty"`
	MType   openrtb2.MarkupType     `json:"mtype,omitempty"`

	OriginalBidCPM float64 `json:"origbidcpm,omitempty"`
	OriginalBidCur string  `json:"origbidcur,omitempty"`
}
