package currency

import (
	"testing"
	"time"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/util/ptrutil"
	"github.com/stretchr/testify/assert"
)

type fakeRatesProvider struct {
	rates Conversions
}

func (p fakeRatesProvider) Rates() Conversions {
	return p.rates
}

func TestGetAuctionCurrencyRates(t *testing.T) {
	serverRates := NewRates(time.Time{}, map[string]map[string]float64{"USD": {"EUR": 0.9}})
	provider := fakeRatesProvider{rates: serverRates}
	requestConversions := map[string]map[string]float64{"USD": {"GBP": 0.8}}

	testCases := []struct {
		desc         string
		provider     RateTableProvider
		requestRates *openrtb_ext.ExtRequestCurrency
		expected     Conversions
	}{
		{
			desc:     "nothing configured",
			expected: NewConstantRates(),
		},
		{
			desc:     "server rates only",
			provider: provider,
			expected: serverRates,
		},
		{
			desc:         "request rates without provider",
			requestRates: &openrtb_ext.ExtRequestCurrency{ConversionRates: requestConversions},
			expected:     NewRates(time.Time{}, requestConversions),
		},
		{
			desc:         "usepbsrates false",
			provider:     provider,
			requestRates: &openrtb_ext.ExtRequestCurrency{ConversionRates: requestConversions, UsePBSRates: ptrutil.ToPtr(false)},
			expected:     NewRates(time.Time{}, requestConversions),
		},
		{
			desc:         "empty request rates",
			provider:     provider,
			requestRates: &openrtb_ext.ExtRequestCurrency{},
			expected:     serverRates,
		},
		{
			desc:         "both",
			provider:     provider,
			requestRates: &openrtb_ext.ExtRequestCurrency{ConversionRates: requestConversions},
			expected:     NewAggregateConversions(NewRates(time.Time{}, requestConversions), serverRates),
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, GetAuctionCurrencyRates(tc.provider, tc.requestRates), tc.desc)
	}
}

func TestConvert(t *testing.T) {
	rates := NewRates(time.Time{}, map[string]map[string]float64{"EUR": {"USD": 1.1}})

	price, err := Convert(rates, 2.5, "EUR", "USD")
	assert.NoError(t, err)
	assert.Equal(t, 2.75, price)

	price, err = Convert(rates, 2.5, "", "USD")
	assert.NoError(t, err, "bids without a currency are assumed to be in USD")
	assert.Equal(t, 2.5, price)

	_, err = Convert(rates, 2.5, "XYZ", "USD")
	assert.Error(t, err)
}
