package currency

import (
	"time"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/shopspring/decimal"
)

// DefaultBidCurrency is assumed for bids which don't declare a currency.
const DefaultBidCurrency = "USD"

// Conversions allows to get a conversion rate between two currencies.
// if one of the currency string is not a currency or if there is not conversion between those
// currencies, then an err is returned and rate is 0.
type Conversions interface {
	GetRate(from string, to string) (decimal.Decimal, error)
	GetRates() *map[string]map[string]float64
}

// RateTableProvider supplies the server-wide "latest known rates". Each call returns an
// immutable snapshot which the caller keeps for the lifetime of one auction.
type RateTableProvider interface {
	Rates() Conversions
}

// GetAuctionCurrencyRates builds the conversions used by a single auction out of the request
// supplied rates and a snapshot of the provider's latest rates.
func GetAuctionCurrencyRates(provider RateTableProvider, requestRates *openrtb_ext.ExtRequestCurrency) Conversions {
	if provider == nil && requestRates == nil {
		return NewConstantRates()
	}

	if requestRates == nil {
		return provider.Rates()
	}

	if provider == nil {
		return NewRates(time.Time{}, requestRates.ConversionRates)
	}

	// usepbsrates is true unless explicitly set to false
	useServerRates := requestRates.UsePBSRates == nil || *requestRates.UsePBSRates

	if !useServerRates {
		return NewRates(time.Time{}, requestRates.ConversionRates)
	}

	if len(requestRates.ConversionRates) == 0 {
		return provider.Rates()
	}

	return NewAggregateConversions(NewRates(time.Time{}, requestRates.ConversionRates), provider.Rates())
}

// Convert returns amount expressed in the to currency.
func Convert(conversions Conversions, amount float64, from, to string) (float64, error) {
	if from == "" {
		from = DefaultBidCurrency
	}
	rate, err := conversions.GetRate(from, to)
	if err != nil {
		return 0, err
	}
	converted, _ := decimal.NewFromFloat(amount).Mul(rate).Float64()
	return converted, nil
}
