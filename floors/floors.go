package floors

import (
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/sliceutil"
)

// floorPrecision is the number of decimals a converted floor keeps. Converted floors are rounded
// up so they never undercut the floor the publisher asked for.
const floorPrecision = 4

// Adjuster restates imp floors in a currency the receiving bidder bids in.
type Adjuster struct {
	infos config.BidderInfos
}

func NewAdjuster(infos config.BidderInfos) *Adjuster {
	return &Adjuster{infos: infos}
}

// Adjust returns the floor, and its currency, the imp carries to bidder. The floor is left alone
// when the bidder accepts its currency, or when no rate into any currency the bidder accepts is known.
func (a *Adjuster) Adjust(imp openrtb2.Imp, bidder openrtb_ext.BidderName, conversions currency.Conversions) (float64, string) {
	if imp.BidFloor <= 0 {
		return imp.BidFloor, imp.BidFloorCur
	}
	floorCur := imp.BidFloorCur
	if floorCur == "" {
		floorCur = currency.DefaultBidCurrency
	}

	accepted := a.infos[string(bidder)].Currencies
	if len(accepted) == 0 || sliceutil.ContainsStringIgnoreCase(accepted, floorCur) {
		return imp.BidFloor, imp.BidFloorCur
	}

	for _, bidderCur := range accepted {
		rate, err := getCurrencyConversionRate(floorCur, bidderCur, conversions)
		if err != nil {
			continue
		}
		converted, _ := decimal.NewFromFloat(imp.BidFloor).Mul(rate).RoundCeil(floorPrecision).Float64()
		return converted, bidderCur
	}
	return imp.BidFloor, imp.BidFloorCur
}

// getCurrencyConversionRate gets conversion rate in case floor currency and bidder currency are not same
func getCurrencyConversionRate(floorCur, bidderCur string, conversions currency.Conversions) (decimal.Decimal, error) {
	if strings.EqualFold(floorCur, bidderCur) {
		return decimal.NewFromInt(1), nil
	}
	return conversions.GetRate(floorCur, bidderCur)
}
