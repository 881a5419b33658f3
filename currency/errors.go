package currency

import "fmt"

// ConversionNotFoundError is returned by the Conversions GetRate(from string, to string) method
// when the conversion rate between the two currencies can't be derived: no direct entry,
// no reciprocal, and no bridge currency.
type ConversionNotFoundError struct {
	FromCur, ToCur string
}

func (err ConversionNotFoundError) Error() string {
	return fmt.Sprintf("Currency conversion rate not found: '%s' => '%s'", err.FromCur, err.ToCur)
}
