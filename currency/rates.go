package currency

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// RateScale is the number of fractional digits kept on every resolved conversion rate.
// Rates are truncated toward negative infinity to that scale.
const RateScale = 5

var one = decimal.NewFromInt(1)

// Rates holds data as represented on https://cdn.jsdelivr.net/gh/prebid/currency-file@1/latest.json
// Conversions is keyed by the source currency first: Conversions["USD"]["EUR"] is the
// number of euros one dollar buys.
type Rates struct {
	DataAsOf    time.Time                     `json:"dataAsOf"`
	Conversions map[string]map[string]float64 `json:"conversions"`
}

// NewRates creates a new Rates object holding currencies rates
func NewRates(dataAsOf time.Time, conversions map[string]map[string]float64) *Rates {
	return &Rates{
		DataAsOf:    dataAsOf,
		Conversions: conversions,
	}
}

// UnmarshalJSON unmarshal raw JSON bytes to Rates object. The remote file formats dataAsOf
// as a plain date, which time.Time can't parse on its own.
func (r *Rates) UnmarshalJSON(b []byte) error {
	c := &struct {
		DataAsOf    string                        `json:"dataAsOf"`
		Conversions map[string]map[string]float64 `json:"conversions"`
	}{}
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}

	r.Conversions = c.Conversions

	layout := "2006-01-02"
	if date, err := time.Parse(layout, c.DataAsOf); err == nil {
		r.DataAsOf = date
	}

	return nil
}

// GetRate returns the conversion rate between two currencies or:
//   - An error if one of the currency strings is not well-formed
//   - An error if any of the currency strings is not a recognized currency code.
//   - A ConversionNotFoundError in case the conversion rate between the two
//     given currencies can't be derived from the rates table
//
// Lookups try the direct entry, then the reciprocal of the reverse entry, then a bridge
// through a third currency.
func (r *Rates) GetRate(from string, to string) (decimal.Decimal, error) {
	fromUnit, toUnit, err := parseUnits(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if fromUnit == toUnit {
		return one, nil
	}
	if r == nil || r.Conversions == nil {
		return decimal.Zero, errors.New("rates are nil")
	}

	if conversion, present := r.Conversions[fromUnit][toUnit]; present && conversion > 0 {
		return scale(decimal.NewFromFloat(conversion)), nil
	}
	if conversion, present := r.Conversions[toUnit][fromUnit]; present && conversion > 0 {
		return scale(one.Div(decimal.NewFromFloat(conversion))), nil
	}

	return FindIntermediateConversionRate(r, fromUnit, toUnit)
}

// GetRates returns current rates
func (r *Rates) GetRates() *map[string]map[string]float64 {
	return &r.Conversions
}

// FindIntermediateConversionRate derives a rate through a third currency. Two shapes are
// recognized:
//   - a row X quoting both currencies, giving X[to] / X[from]
//   - a currency B quoted in both the from and to rows, giving from[B] / to[B]
//
// Candidates are visited in code order so repeated lookups against the same table agree.
func FindIntermediateConversionRate(r *Rates, from, to string) (decimal.Decimal, error) {
	for _, base := range sortedKeys(r.Conversions) {
		conversions := r.Conversions[base]
		toRate, hasToRate := conversions[to]
		fromRate, hasFromRate := conversions[from]

		if hasToRate && hasFromRate && fromRate > 0 {
			return scale(decimal.NewFromFloat(toRate).Div(decimal.NewFromFloat(fromRate))), nil
		}
	}

	fromRow, toRow := r.Conversions[from], r.Conversions[to]
	for _, bridge := range sortedKeys(fromRow) {
		toBridge, ok := toRow[bridge]
		if !ok || toBridge <= 0 {
			continue
		}
		fromBridge := decimal.NewFromFloat(fromRow[bridge])
		return scale(fromBridge.Mul(one.Div(decimal.NewFromFloat(toBridge)))), nil
	}

	return decimal.Zero, ConversionNotFoundError{FromCur: from, ToCur: to}
}

func parseUnits(from, to string) (string, string, error) {
	fromUnit, err := currency.ParseISO(from)
	if err != nil {
		return "", "", err
	}
	toUnit, err := currency.ParseISO(to)
	if err != nil {
		return "", "", err
	}
	return fromUnit.String(), toUnit.String(), nil
}

func scale(rate decimal.Decimal) decimal.Decimal {
	return rate.RoundFloor(RateScale)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
