package errortypes

import (
	"fmt"
	"strings"
)

// AggregateErrors reports every problem found in one pass, such as configuration validation.
type AggregateErrors struct {
	Message string
	Errors  []error
}

func NewAggregateErrors(msg string, errs []error) AggregateErrors {
	return AggregateErrors{Message: msg, Errors: errs}
}

func (e AggregateErrors) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Errors) == 1 {
		b.WriteString(" (1 error):\n")
	} else {
		fmt.Fprintf(&b, " (%d errors):\n", len(e.Errors))
	}
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d: %s\n", i+1, err.Error())
	}
	return b.String()
}
