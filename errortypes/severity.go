package errortypes

// Severity decides whether an error ends a bidder's contribution or only annotates it.
type Severity int

const (
	SeverityUnknown Severity = iota
	// SeverityFatal errors cost the bidder its bids for the affected imps.
	SeverityFatal
	// SeverityWarning errors are surfaced in the response ext and nothing else.
	SeverityWarning
)

// Errors without a Coder are treated as fatal.
func isFatal(err error) bool {
	c, ok := err.(Coder)
	return !ok || c.Severity() == SeverityFatal
}

// IsWarning reports whether err carries SeverityWarning.
func IsWarning(err error) bool {
	c, ok := err.(Coder)
	return ok && c.Severity() == SeverityWarning
}

// FatalOnly keeps the fatal errors of errs, preserving order.
func FatalOnly(errs []error) []error {
	return filter(errs, isFatal)
}

// WarningOnly keeps the warnings of errs, preserving order.
func WarningOnly(errs []error) []error {
	return filter(errs, IsWarning)
}

func filter(errs []error, keep func(error) bool) []error {
	kept := make([]error, 0, len(errs))
	for _, err := range errs {
		if keep(err) {
			kept = append(kept, err)
		}
	}
	return kept
}
