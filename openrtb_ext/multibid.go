package openrtb_ext

import (
	"fmt"

	"github.com/prebid/auction-orchestrator/errortypes"
)

const DefaultBidLimit = 1
const MaxBidLimit = 9

// ExtMultiBid defines the contract for bidrequest.ext.prebid.multibid[i]
type ExtMultiBid struct {
	Bidder                 string   `json:"bidder,omitempty"`
	Bidders                []string `json:"bidders,omitempty"`
	MaxBids                *int     `json:"maxbids,omitempty"`
	TargetBidderCodePrefix string   `json:"targetbiddercodeprefix,omitempty"`
}

func (mb ExtMultiBid) String() string {
	maxBids := "<nil>"
	if mb.MaxBids != nil {
		maxBids = fmt.Sprint(*mb.MaxBids)
	}
	return fmt.Sprintf("{Bidder:%s, Bidders:%v, MaxBids:%s, TargetBidderCodePrefix:%s}", mb.Bidder, mb.Bidders, maxBids, mb.TargetBidderCodePrefix)
}

// MultiBidLimit is the resolved multibid setting of a single bidder.
type MultiBidLimit struct {
	MaxBids                int
	TargetBidderCodePrefix string
}

// MultiBidLimits indexes resolved multibid settings by bidder name.
type MultiBidLimits map[string]MultiBidLimit

// For returns the limit of bidder, which is a single bid when the request says nothing.
func (l MultiBidLimits) For(bidder string) MultiBidLimit {
	if limit, ok := l[bidder]; ok {
		return limit
	}
	return MultiBidLimit{MaxBids: DefaultBidLimit}
}

// BuildMultiBidLimits validates bidrequest.ext.prebid.multibid. Entries that can be repaired
// are clamped and reported as warnings; entries that cannot are dropped with a warning.
//
// A prefix is only honored on single-bidder entries, since the generated codes would collide
// across bidders otherwise.
func BuildMultiBidLimits(entries []*ExtMultiBid) (MultiBidLimits, []error) {
	if len(entries) == 0 {
		return nil, nil
	}

	limits := make(MultiBidLimits)
	var warnings []error
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, &errortypes.Warning{
			WarningCode: errortypes.MultiBidWarningCode,
			Message:     fmt.Sprintf(format, args...),
		})
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if entry.MaxBids == nil {
			warn("maxBids not defined for %v", *entry)
			continue
		}

		maxBids := *entry.MaxBids
		if maxBids < DefaultBidLimit {
			warn("invalid maxBids value, using minimum %d limit for %v", DefaultBidLimit, *entry)
			maxBids = DefaultBidLimit
		} else if maxBids > MaxBidLimit {
			warn("invalid maxBids value, using maximum %d limit for %v", MaxBidLimit, *entry)
			maxBids = MaxBidLimit
		}

		switch {
		case entry.Bidder != "":
			if _, dup := limits[entry.Bidder]; dup {
				warn("multiBid already defined for %s, ignoring this instance %v", entry.Bidder, *entry)
				continue
			}
			if len(entry.Bidders) > 0 {
				warn("ignoring bidders from %v", *entry)
			}
			limits[entry.Bidder] = MultiBidLimit{MaxBids: maxBids, TargetBidderCodePrefix: entry.TargetBidderCodePrefix}

		case len(entry.Bidders) > 0:
			if entry.TargetBidderCodePrefix != "" {
				warn("ignoring targetbiddercodeprefix for %v", *entry)
			}
			for _, bidder := range entry.Bidders {
				if _, dup := limits[bidder]; dup {
					warn("multiBid already defined for %s, ignoring this instance %v", bidder, *entry)
					continue
				}
				limits[bidder] = MultiBidLimit{MaxBids: maxBids}
			}

		default:
			warn("bidder(s) not specified for %v", *entry)
		}
	}

	return limits, warnings
}
