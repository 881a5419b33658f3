package currency

import "github.com/shopspring/decimal"

// AggregateConversions contains both the request-defined currency rate
// map found in request.ext.prebid.currency and the latest rates snapshot
// taken from the RateConverter for this auction.
// It implements the Conversions interface.
type AggregateConversions struct {
	customRates, serverRates Conversions
}

// NewAggregateConversions expects both customRates and serverRates to not be nil
func NewAggregateConversions(customRates, serverRates Conversions) *AggregateConversions {
	return &AggregateConversions{
		customRates: customRates,
		serverRates: serverRates,
	}
}

// GetRate returns the conversion rate between two currencies prioritizing
// the customRates currency rate over that of the server rates.
// It returns an error if both Conversions objects return error.
func (re *AggregateConversions) GetRate(from string, to string) (decimal.Decimal, error) {
	rate, err := re.customRates.GetRate(from, to)
	if err == nil {
		return rate, nil
	} else if _, isMissingRateErr := err.(ConversionNotFoundError); !isMissingRateErr {
		// other error, return the error
		return decimal.Zero, err
	}

	// the custom rates only lacked this pair; the codes themselves are fine
	return re.serverRates.GetRate(from, to)
}

// GetRates is not implemented for AggregateConversions. There is no need to call
// this function for this scenario.
func (re *AggregateConversions) GetRates() *map[string]map[string]float64 {
	return nil
}
