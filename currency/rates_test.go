package currency

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnMarshallRates(t *testing.T) {
	testCases := []struct {
		desc          string
		ratesJSON     string
		expectedRates Rates
		expectsError  bool
	}{
		{
			desc: "valid rates with date",
			ratesJSON: `{
				"dataAsOf":"2018-09-12",
				"conversions":{"USD":{"GBP":0.7662523901},"GBP":{"USD":1.3050530256}}
			}`,
			expectedRates: Rates{
				DataAsOf: time.Date(2018, time.September, 12, 0, 0, 0, 0, time.UTC),
				Conversions: map[string]map[string]float64{
					"USD": {"GBP": 0.7662523901},
					"GBP": {"USD": 1.3050530256},
				},
			},
		},
		{
			desc:      "unparseable date is ignored",
			ratesJSON: `{"dataAsOf":"not-a-date","conversions":{"USD":{"GBP":0.5}}}`,
			expectedRates: Rates{
				Conversions: map[string]map[string]float64{"USD": {"GBP": 0.5}},
			},
		},
		{
			desc:         "malformed json",
			ratesJSON:    `{"conversions":`,
			expectsError: true,
		},
	}

	for _, tc := range testCases {
		var rates Rates
		err := json.Unmarshal([]byte(tc.ratesJSON), &rates)

		if tc.expectsError {
			assert.Error(t, err, tc.desc)
			continue
		}
		assert.NoError(t, err, tc.desc)
		assert.Equal(t, tc.expectedRates, rates, tc.desc)
	}
}

func TestGetRate(t *testing.T) {
	rates := NewRates(time.Now(), map[string]map[string]float64{
		"USD": {
			"GBP": 0.77208,
			"EUR": 0.8,
		},
		"GBP": {
			"JPY": 150.5,
		},
	})

	testCases := []struct {
		desc         string
		from         string
		to           string
		expectedRate string
		expectsError bool
	}{
		{desc: "same currency", from: "USD", to: "USD", expectedRate: "1"},
		{desc: "direct", from: "USD", to: "GBP", expectedRate: "0.77208"},
		{desc: "reverse is floored at 5 digits", from: "GBP", to: "USD", expectedRate: "1.29520"},
		{desc: "row containing both", from: "GBP", to: "EUR", expectedRate: "1.03616"},
		{desc: "lowercase codes", from: "usd", to: "eur", expectedRate: "0.8"},
		{desc: "unknown pair", from: "USD", to: "MXN", expectsError: true},
		{desc: "malformed code", from: "XX", to: "USD", expectsError: true},
	}

	for _, tc := range testCases {
		rate, err := rates.GetRate(tc.from, tc.to)
		if tc.expectsError {
			assert.Error(t, err, tc.desc)
			continue
		}
		require.NoError(t, err, tc.desc)
		assert.True(t, decimal.RequireFromString(tc.expectedRate).Equal(rate), "%s: got %s", tc.desc, rate)
	}
}

func TestGetRateNotFoundError(t *testing.T) {
	rates := NewRates(time.Time{}, map[string]map[string]float64{"USD": {"EUR": 0.8}})

	_, err := rates.GetRate("USD", "MXN")

	assert.Equal(t, ConversionNotFoundError{FromCur: "USD", ToCur: "MXN"}, err)
	assert.Equal(t, "Currency conversion rate not found: 'USD' => 'MXN'", err.Error())
}

func TestGetRateNilRates(t *testing.T) {
	var rates *Rates
	_, err := rates.GetRate("USD", "EUR")
	assert.EqualError(t, err, "rates are nil")

	sameRate, err := rates.GetRate("USD", "USD")
	assert.NoError(t, err)
	assert.True(t, sameRate.Equal(decimal.NewFromInt(1)))
}

func TestRoundTripRates(t *testing.T) {
	rates := NewRates(time.Time{}, map[string]map[string]float64{
		"USD": {"EUR": 0.91345, "GBP": 0.77208, "JPY": 149.87},
	})
	tolerance := decimal.RequireFromString("0.0005")

	for _, to := range []string{"EUR", "GBP", "JPY"} {
		forward, err := rates.GetRate("USD", to)
		require.NoError(t, err)
		backward, err := rates.GetRate(to, "USD")
		require.NoError(t, err)

		product := forward.Mul(backward)
		assert.True(t, product.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(tolerance), "USD <=> %s gave %s", to, product)
	}
}

func TestBridgeRate(t *testing.T) {
	// only A->C and B->C edges exist
	rates := NewRates(time.Time{}, map[string]map[string]float64{
		"EUR": {"USD": 1.09},
		"GBP": {"USD": 1.27},
	})

	rate, err := rates.GetRate("EUR", "GBP")
	require.NoError(t, err)

	eurUsd, _ := rates.GetRate("EUR", "USD")
	gbpUsd, _ := rates.GetRate("GBP", "USD")
	expected := eurUsd.Mul(decimal.NewFromInt(1).Div(gbpUsd))

	assert.True(t, rate.Sub(expected).Abs().LessThanOrEqual(decimal.RequireFromString("0.00001")), "got %s, expected %s", rate, expected)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.85826")), "got %s", rate)
}

func TestBridgeRateIsStable(t *testing.T) {
	rates := NewRates(time.Time{}, map[string]map[string]float64{
		"EUR": {"USD": 1.09, "CHF": 0.96},
		"GBP": {"USD": 1.27, "CHF": 1.12},
	})

	first, err := rates.GetRate("EUR", "GBP")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := rates.GetRate("EUR", "GBP")
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
}
