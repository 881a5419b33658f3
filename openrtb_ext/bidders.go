package openrtb_ext

import (
	"strings"
)

// BidderName refers to a demand source configured under adapters.<name>. Bidders aren't
// compiled in; any name present in the host configuration may take part in an auction.
type BidderName string

func (name BidderName) String() string {
	return string(name)
}

// Names for imp.ext.prebid and imp.ext keys which can never be bidders.
const (
	PrebidExtKey       = "prebid"
	PrebidExtBidderKey = "bidder"
)

// BidderReservedGeneral keys the response messages which concern the request rather than a bidder.
const BidderReservedGeneral BidderName = "general"

var reservedBidderNames = map[string]struct{}{
	"all":        {},
	"context":    {},
	"data":       {},
	"general":    {},
	"gpid":       {},
	PrebidExtKey: {},
	"skadn":      {},
	"tid":        {},
}

// IsBidderNameReserved returns true for imp.ext keys that can't be bidder names.
func IsBidderNameReserved(name string) bool {
	_, isReserved := reservedBidderNames[strings.ToLower(name)]
	return isReserved
}
