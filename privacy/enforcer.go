package privacy

import (
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/privacy/lmt"
)

// Enforcer decides what each bidder may see of the user and device of an auction. Policies which
// need the regulatory tables are decided upstream; the host can still block bidders outright and
// honor device.lmt.
type Enforcer struct {
	blocked    map[string]struct{}
	enforceLMT bool
}

// NewEnforcer builds an Enforcer from the host privacy config.
func NewEnforcer(cfg config.Privacy) *Enforcer {
	blocked := make(map[string]struct{}, len(cfg.BlockedBidders))
	for _, bidder := range cfg.BlockedBidders {
		blocked[strings.ToLower(bidder)] = struct{}{}
	}
	return &Enforcer{
		blocked:    blocked,
		enforceLMT: cfg.EnforceLMT,
	}
}

// Mask returns the user and device bidder may see, or true when it may not take part at all.
// Masked values are copies.
func (e *Enforcer) Mask(bidder openrtb_ext.BidderName, user *openrtb2.User, device *openrtb2.Device) (*openrtb2.User, *openrtb2.Device, bool) {
	if _, blocked := e.blocked[strings.ToLower(string(bidder))]; blocked {
		return nil, nil, true
	}
	if e.enforceLMT && lmt.ReadFromDevice(device).ShouldEnforce() {
		return scrubUser(user), scrubDevice(device), false
	}
	return user, device, false
}
