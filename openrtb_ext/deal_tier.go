package openrtb_ext

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// DealTier lets a publisher swap the price bucket of a qualifying deal bid for a fixed prefix
// in the category duration key. It lives at imp.ext.prebid.bidder.{bidder}.dealTier.
type DealTier struct {
	// Prefix replaces the price segment of hb_pb_cat_dur.
	Prefix string `json:"prefix"`
	// MinDealTier is the lowest deal priority, inclusive, that earns the prefix.
	MinDealTier int `json:"minDealTier"`
}

func (dt DealTier) Valid() bool {
	return dt.Prefix != "" && dt.MinDealTier > 0
}

type DealTierBidderMap map[BidderName]DealTier

// ReadDealTiersFromImp collects the deal tiers of every bidder on the original imp. Bidders
// without a dealTier object are absent from the map.
func ReadDealTiersFromImp(imp openrtb2.Imp) (DealTierBidderMap, error) {
	dealTiers := make(DealTierBidderMap)
	if len(imp.Ext) == 0 {
		return dealTiers, nil
	}

	bidders, dataType, _, err := jsonparser.Get(imp.Ext, "prebid", "bidder")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return dealTiers, nil
	}
	if err != nil {
		return nil, err
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("imp %s: ext.prebid.bidder must be an object", imp.ID)
	}

	err = jsonparser.ObjectEach(bidders, func(key []byte, params []byte, _ jsonparser.ValueType, _ int) error {
		raw, _, _, err := jsonparser.Get(params, "dealTier")
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil
		}
		if err != nil {
			return err
		}
		var tier DealTier
		if err := json.Unmarshal(raw, &tier); err != nil {
			return fmt.Errorf("imp %s: invalid dealTier for bidder %s: %v", imp.ID, key, err)
		}
		dealTiers[BidderName(key)] = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dealTiers, nil
}
