package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGetRate_ConstantRates(t *testing.T) {
	rates := NewConstantRates()

	testCases := []struct {
		from         string
		to           string
		expectedRate decimal.Decimal
		hasError     bool
	}{
		{from: "USD", to: "GBP", expectedRate: decimal.Zero, hasError: true},
		{from: "GBP", to: "USD", expectedRate: decimal.Zero, hasError: true},
		{from: "CNY", to: "EUR", expectedRate: decimal.Zero, hasError: true},
		{from: "", to: "EUR", expectedRate: decimal.Zero, hasError: true},
		{from: "CNY", to: "", expectedRate: decimal.Zero, hasError: true},
		{from: "foo", to: "foo", expectedRate: decimal.Zero, hasError: true},
		{from: "USD", to: "USD", expectedRate: decimal.NewFromInt(1), hasError: false},
		{from: "eur", to: "EUR", expectedRate: decimal.NewFromInt(1), hasError: false},
	}

	for _, tc := range testCases {
		rate, err := rates.GetRate(tc.from, tc.to)

		if tc.hasError {
			assert.Error(t, err, "%s => %s", tc.from, tc.to)
		} else {
			assert.NoError(t, err, "%s => %s", tc.from, tc.to)
		}
		assert.True(t, tc.expectedRate.Equal(rate), "%s => %s: got %s", tc.from, tc.to, rate)
	}
	assert.Nil(t, rates.GetRates())
}
