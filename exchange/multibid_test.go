package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

func TestResolveMultiBid(t *testing.T) {
	tests := []struct {
		name          string
		limits        openrtb_ext.MultiBidLimits
		expectedKept  []string
		expectedCodes []string
	}{
		{
			name:          "no multibid keeps the best bid only",
			expectedKept:  []string{"b4"},
			expectedCodes: []string{""},
		},
		{
			name:          "extras get numbered codes",
			limits:        openrtb_ext.MultiBidLimits{"appnexus": {MaxBids: 3, TargetBidderCodePrefix: "apn"}},
			expectedKept:  []string{"b4", "b3", "b2"},
			expectedCodes: []string{"", "apn2", "apn3"},
		},
		{
			name:          "no prefix leaves extras without a code",
			limits:        openrtb_ext.MultiBidLimits{"appnexus": {MaxBids: 2}},
			expectedKept:  []string{"b4", "b3"},
			expectedCodes: []string{"", ""},
		},
		{
			name:          "limit above the bid count keeps everything",
			limits:        openrtb_ext.MultiBidLimits{"appnexus": {MaxBids: 9, TargetBidderCodePrefix: "apn"}},
			expectedKept:  []string{"b4", "b3", "b2", "b1"},
			expectedCodes: []string{"", "apn2", "apn3", "apn4"},
		},
		{
			name:          "another bidder's limit does not apply",
			limits:        openrtb_ext.MultiBidLimits{"rubicon": {MaxBids: 3, TargetBidderCodePrefix: "rub"}},
			expectedKept:  []string{"b4"},
			expectedCodes: []string{""},
		},
	}

	for _, test := range tests {
		original := []*entities.PbsOrtbBid{
			testBid("b1", "imp-1", 1, ""),
			testBid("b2", "imp-1", 2, ""),
			testBid("b3", "imp-1", 3, ""),
			testBid("b4", "imp-1", 4, ""),
		}
		bidders, seatBids := seatBidsOf(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid{"appnexus": original})

		trackers := make(rejectionTrackers)

		auc, resolved := resolve(bidders, seatBids, dealPreference{}, test.limits, trackers)

		kept := auc.allBidsByBidder["imp-1"]["appnexus"]
		require.Len(t, kept, len(test.expectedKept), test.name)
		for i, bid := range kept {
			assert.Equal(t, test.expectedKept[i], bid.Bid.ID, test.name)
			assert.Equal(t, test.expectedCodes[i], bid.TargetBidderCode, test.name)
		}
		assert.Equal(t, "b4", auc.winningBids["imp-1"].Bid.ID, test.name)
		assert.ElementsMatch(t, test.expectedKept, bidIDs(resolved["appnexus"]), "%s: the seat only holds bids within the limit", test.name)
		rejected := trackers["appnexus"].Rejections()
		assert.Len(t, rejected, len(original)-len(test.expectedKept), test.name)
		for _, rejection := range rejected {
			assert.Equal(t, RejectionMultiBidLimit, rejection.Reason, test.name)
			assert.NotContains(t, test.expectedKept, rejection.Bid.Bid.ID, test.name)
		}
		for _, bid := range original {
			assert.Empty(t, bid.TargetBidderCode, "%s: input bids are never modified", test.name)
		}
	}
}

func TestForEachKeptBidRanks(t *testing.T) {
	bidders, seatBids := seatBidsOf(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid{
		"appnexus": {testBid("b1", "imp-1", 1, ""), testBid("b2", "imp-1", 2, "")},
	})
	auc, _ := resolve(bidders, seatBids, dealPreference{}, openrtb_ext.MultiBidLimits{"appnexus": {MaxBids: 2}}, nil)

	ranks := make(map[string]int)
	auc.forEachKeptBid(func(impID string, bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, rank int) {
		ranks[bid.Bid.ID] = rank
	})

	assert.Equal(t, map[string]int{"b2": 0, "b1": 1}, ranks)
}
