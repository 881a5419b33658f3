package currency

import (
	"github.com/shopspring/decimal"
)

// ConstantRates doesn't do any currency conversions and accepts only conversions where
// both currencies (from and to) are the same. Parity between two different currencies is
// never assumed.
type ConstantRates struct{}

// NewConstantRates creates a new ConstantRates object holding currencies rates
func NewConstantRates() *ConstantRates {
	return &ConstantRates{}
}

// GetRate returns 1 if both currencies are the same.
// If not, it will return an error.
func (r *ConstantRates) GetRate(from string, to string) (decimal.Decimal, error) {
	fromUnit, toUnit, err := parseUnits(from, to)
	if err != nil {
		return decimal.Zero, err
	}

	if fromUnit != toUnit {
		return decimal.Zero, ConversionNotFoundError{FromCur: fromUnit, ToCur: toUnit}
	}

	return one, nil
}

// GetRates returns current rates
func (r *ConstantRates) GetRates() *map[string]map[string]float64 {
	return nil
}
