package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/randomutil"
)

// GetPriceBucket snaps cpm onto the granularity table and renders it with the table's precision.
// Prices above the top of the table are clamped to it. The empty string means cpm fits no range.
func GetPriceBucket(cpm float64, pg openrtb_ext.PriceGranularity, mode openrtb_ext.PriceRoundingMode, rand randomutil.BooleanGenerator) string {
	precision := openrtb_ext.DefaultPriceGranularityPrecision
	if pg.Precision != nil {
		precision = *pg.Precision
	}

	bucketMax := 0.0
	for _, gr := range pg.Ranges {
		if gr.Max > bucketMax {
			bucketMax = gr.Max
		}
	}
	if len(pg.Ranges) > 0 && cpm > bucketMax {
		return decimal.NewFromFloat(bucketMax).StringFixed(int32(precision))
	}

	for _, gr := range pg.Ranges {
		if cpm < gr.Min || cpm > gr.Max {
			continue
		}
		min := decimal.NewFromFloat(gr.Min)
		increment := decimal.NewFromFloat(gr.Increment)
		steps := roundSteps(decimal.NewFromFloat(cpm).Sub(min).Div(increment), mode, rand)
		bucket := steps.Mul(increment).Add(min)
		if max := decimal.NewFromFloat(gr.Max); bucket.GreaterThan(max) {
			bucket = max
		}
		return bucket.StringFixed(int32(precision))
	}
	return ""
}

func roundSteps(steps decimal.Decimal, mode openrtb_ext.PriceRoundingMode, rand randomutil.BooleanGenerator) decimal.Decimal {
	switch mode {
	case openrtb_ext.RoundingModeCeil:
		return steps.Ceil()
	case openrtb_ext.RoundingModeRoundHalfUp:
		return steps.Round(0)
	case openrtb_ext.RoundingModeRandom:
		if rand != nil && rand.Generate() {
			return steps.Ceil()
		}
		return steps.Floor()
	}
	return steps.Floor()
}
