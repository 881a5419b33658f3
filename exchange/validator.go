package exchange

import (
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/exchange/entities"
)

// requiredFieldsValidator makes sure the bids which reach the auction are ones the request can
// actually use.
type requiredFieldsValidator struct{}

// NewResponseValidator returns the validator used when the caller doesn't supply one.
func NewResponseValidator() ResponseValidator {
	return requiredFieldsValidator{}
}

func (requiredFieldsValidator) Validate(bid *entities.PbsOrtbBid, request *openrtb2.BidRequest) []string {
	if bid == nil || bid.Bid == nil {
		return []string{"Empty bid object submitted."}
	}

	var violations []string
	if bid.Bid.ID == "" {
		violations = append(violations, "missing required field 'id'")
	}
	if bid.Bid.ImpID == "" {
		violations = append(violations, "missing required field 'impid'")
	} else if request != nil && !hasImp(request, bid.Bid.ImpID) {
		violations = append(violations, "'impid' does not match any imp in the request")
	}
	if bid.Bid.Price < 0 {
		violations = append(violations, "does not contain a positive (or zero if there is a deal) 'price'")
	}
	return violations
}

func hasImp(request *openrtb2.BidRequest, impID string) bool {
	for i := range request.Imp {
		if request.Imp[i].ID == impID {
			return true
		}
	}
	return false
}
