package openrtb_ext

import (
	"encoding/json"
)

// ExtImp defines the contract for bidrequest.imp[i].ext
type ExtImp struct {
	Prebid *ExtImpPrebid `json:"prebid,omitempty"`
}

// ExtImpPrebid defines the contract for bidrequest.imp[i].ext.prebid
type ExtImpPrebid struct {
	// Bidder holds the parameters of every bidder invited to bid on this imp. Only bidders named
	// here take part.
	Bidder map[string]json.RawMessage `json:"bidder,omitempty"`

	// StoredBidResponse substitutes a pre-supplied response for the live call of one bidder.
	StoredBidResponse []ExtStoredBidResponse `json:"storedbidresponse,omitempty"`

	// PreferDeals overrides the request and account default for this imp only.
	PreferDeals *bool `json:"preferdeals,omitempty"`
}

// ExtStoredBidResponse defines the contract for bidrequest.imp[i].ext.prebid.storedbidresponse[j]
type ExtStoredBidResponse struct {
	Bidder string `json:"bidder"`
	ID     string `json:"id"`
}

// ExtImpBidder is the shape of imp.ext after the request has been split for a single bidder.
type ExtImpBidder struct {
	Prebid *ExtImpPrebid   `json:"prebid,omitempty"`
	Bidder json.RawMessage `json:"bidder"`
}

// ReadExtImp decodes imp.ext. An empty ext yields an empty value.
func ReadExtImp(ext json.RawMessage) (ExtImp, error) {
	var impExt ExtImp
	if len(ext) == 0 {
		return impExt, nil
	}
	err := json.Unmarshal(ext, &impExt)
	return impExt, err
}
