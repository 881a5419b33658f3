package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/prebid/openrtb/v20/openrtb2"
	"golang.org/x/text/currency"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/randomutil"
)

// parseRequestExt reads request.ext and rejects requests the auction cannot run. Every failure is
// a BadInput, raised before any bidder is called.
func parseRequestExt(request *openrtb2.BidRequest) (*openrtb_ext.ExtRequest, error) {
	if len(request.Imp) == 0 {
		return nil, &errortypes.BadInput{Message: "request.imp must contain at least one element."}
	}
	seen := make(map[string]struct{}, len(request.Imp))
	for i, imp := range request.Imp {
		if imp.ID == "" {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d] missing required field: \"id\"", i)}
		}
		if _, dup := seen[imp.ID]; dup {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d].id and request.imp[%d].id are both \"%s\". Imp IDs must be unique.", indexOfImp(request.Imp, imp.ID), i, imp.ID)}
		}
		seen[imp.ID] = struct{}{}
	}

	for _, cur := range request.Cur {
		if _, err := currency.ParseISO(cur); err != nil {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.cur: %s is not a valid ISO-4217 currency code", cur)}
		}
	}

	requestExt := &openrtb_ext.ExtRequest{}
	if len(request.Ext) > 0 {
		if err := json.Unmarshal(request.Ext, requestExt); err != nil {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext is invalid: %v", err)}
		}
	}

	if rates := requestExt.Prebid.Currency; rates != nil {
		for from, row := range rates.ConversionRates {
			if _, err := currency.ParseISO(from); err != nil {
				return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext.prebid.currency.rates: %s is not a valid ISO-4217 currency code", from)}
			}
			for to := range row {
				if _, err := currency.ParseISO(to); err != nil {
					return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext.prebid.currency.rates.%s: %s is not a valid ISO-4217 currency code", from, to)}
				}
			}
		}
	}

	if targeting := requestExt.Prebid.Targeting; targeting != nil {
		if targeting.PriceGranularity != nil {
			if err := targeting.PriceGranularity.Validate(); err != nil {
				return nil, &errortypes.BadInput{Message: err.Error()}
			}
		}
		if brandCat := targeting.IncludeBrandCategory; brandCat != nil && brandCat.WithCategory && brandCat.ShouldTranslate() {
			if _, err := getPrimaryAdServer(brandCat.PrimaryAdServer); err != nil {
				return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext.prebid.targeting.includebrandcategory: %v", err)}
			}
		}
		for _, dur := range targeting.DurationRangeSec {
			if dur <= 0 {
				return nil, &errortypes.BadInput{Message: fmt.Sprintf("request.ext.prebid.targeting.durationrangesec must only hold positive durations. Got %d", dur)}
			}
		}
		if targeting.MaxLength < 0 {
			return nil, &errortypes.BadInput{Message: "request.ext.prebid.targeting.lengthmax must not be negative"}
		}
	}
	return requestExt, nil
}

func indexOfImp(imps []openrtb2.Imp, id string) int {
	for i := range imps {
		if imps[i].ID == id {
			return i
		}
	}
	return -1
}

// newTargetData returns nil when the request asks for no targeting keys.
func newTargetData(targeting *openrtb_ext.ExtRequestTargeting, auction config.Auction, rand randomutil.BooleanGenerator) *targetData {
	if targeting == nil {
		return nil
	}
	granularity := openrtb_ext.NewPriceGranularityDefault()
	if targeting.PriceGranularity != nil {
		granularity = *targeting.PriceGranularity
	}
	roundingMode, err := openrtb_ext.ParsePriceRoundingMode(auction.PriceRounding)
	if err != nil {
		roundingMode = openrtb_ext.RoundingModeFloor
	}
	return &targetData{
		priceGranularity:  granularity,
		roundingMode:      roundingMode,
		rand:              rand,
		includeWinners:    targeting.IncludeWinners == nil || *targeting.IncludeWinners,
		includeBidderKeys: targeting.IncludeBidderKeys == nil || *targeting.IncludeBidderKeys,
		lengthMax:         targeting.MaxLength,
	}
}

// preferDeals resolves the request default of deal preference. Imps may still override it.
func preferDeals(targeting *openrtb_ext.ExtRequestTargeting, auction config.Auction) bool {
	if targeting != nil && targeting.PreferDeals != nil {
		return *targeting.PreferDeals
	}
	return auction.PreferDeals
}
