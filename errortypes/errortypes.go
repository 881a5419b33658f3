package errortypes

// Timeout means a bidder's share of the auction deadline ran out, either during the call or before it.
// Hosts can't act on these, so they stay out of the app log.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput blames the caller's request. Failures on our side or a bidder's use another type.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse means a bidder answered, but with a non-2xx status or a body we can't use.
// Connection failures are FailedToRequestBids.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// FailedToRequestBids covers the case where a bidder call could not be made at all, or the transport
// failed for a reason other than the deadline.
type FailedToRequestBids struct {
	Message string
}

func (err *FailedToRequestBids) Error() string {
	return err.Message
}

func (err *FailedToRequestBids) Code() int {
	return FailedToRequestBidsErrorCode
}

func (err *FailedToRequestBids) Severity() Severity {
	return SeverityFatal
}

// BidderTemporarilyDisabled drops a bidder the host switched off. The auction continues without it.
type BidderTemporarilyDisabled struct {
	Message string
}

func (err *BidderTemporarilyDisabled) Error() string {
	return err.Message
}

func (err *BidderTemporarilyDisabled) Code() int {
	return BidderTemporarilyDisabledErrorCode
}

func (err *BidderTemporarilyDisabled) Severity() Severity {
	return SeverityWarning
}

// NoConversionRate is reported when a bid could not be converted into the auction currency.
// The bid is dropped but the auction carries on.
type NoConversionRate struct {
	Message string
}

func (err *NoConversionRate) Error() string {
	return err.Message
}

func (err *NoConversionRate) Code() int {
	return NoConversionRateErrorCode
}

func (err *NoConversionRate) Severity() Severity {
	return SeverityFatal
}

// InvalidBid is reported when a bid fails structural validation.
type InvalidBid struct {
	Message string
}

func (err *InvalidBid) Error() string {
	return err.Message
}

func (err *InvalidBid) Code() int {
	return InvalidBidErrorCode
}

func (err *InvalidBid) Severity() Severity {
	return SeverityFatal
}

// UnacceptableCurrency is reported when none of the currencies a bidder can bid in appear in
// the request. No call is made to such a bidder.
type UnacceptableCurrency struct {
	Message string
}

func (err *UnacceptableCurrency) Error() string {
	return err.Message
}

func (err *UnacceptableCurrency) Code() int {
	return UnacceptableCurrencyErrorCode
}

func (err *UnacceptableCurrency) Severity() Severity {
	return SeverityFatal
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}

// DebugWarning is a non-fatal error which is only surfaced when the request asked for debug output.
type DebugWarning struct {
	Message     string
	WarningCode int
}

func (err *DebugWarning) Error() string {
	return err.Message
}

func (err *DebugWarning) Code() int {
	return err.WarningCode
}

func (err *DebugWarning) Severity() Severity {
	return SeverityWarning
}

func (err *DebugWarning) Scope() Scope {
	return ScopeDebug
}

// FailedToUnmarshal wraps a JSON decoding failure.
type FailedToUnmarshal struct {
	Message string
}

func (err *FailedToUnmarshal) Error() string {
	return err.Message
}

func (err *FailedToUnmarshal) Code() int {
	return FailedToUnmarshalErrorCode
}

func (err *FailedToUnmarshal) Severity() Severity {
	return SeverityFatal
}
