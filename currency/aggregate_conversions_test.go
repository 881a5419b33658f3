package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAggregateConversionsGetRate(t *testing.T) {
	customRates := NewRates(time.Time{}, map[string]map[string]float64{
		"USD": {
			"GBP": 0.77208,
			"EUR": 0.80,
		},
	})
	serverRates := NewRates(time.Time{}, map[string]map[string]float64{
		"USD": {
			"GBP": 0.50,
			"MXN": 10.31,
		},
	})
	aggregate := NewAggregateConversions(customRates, serverRates)

	testCases := []struct {
		desc         string
		from         string
		to           string
		expectedRate string
		expectsError bool
	}{
		{desc: "request rates take priority", from: "USD", to: "GBP", expectedRate: "0.77208"},
		{desc: "only in request rates", from: "USD", to: "EUR", expectedRate: "0.8"},
		{desc: "falls back to server rates", from: "USD", to: "MXN", expectedRate: "10.31"},
		{desc: "reverse from server rates", from: "MXN", to: "USD", expectedRate: "0.09699"},
		{desc: "missing everywhere", from: "USD", to: "JPY", expectsError: true},
		{desc: "malformed code is not retried", from: "FOO", to: "USD", expectsError: true},
	}

	for _, tc := range testCases {
		rate, err := aggregate.GetRate(tc.from, tc.to)
		if tc.expectsError {
			assert.Error(t, err, tc.desc)
			continue
		}
		assert.NoError(t, err, tc.desc)
		assert.True(t, decimal.RequireFromString(tc.expectedRate).Equal(rate), "%s: got %s", tc.desc, rate)
	}
	assert.Nil(t, aggregate.GetRates())
}
