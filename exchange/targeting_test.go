package exchange

import (
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

const maxKeyLength = 20

func targetingAuction(t *testing.T, limits openrtb_ext.MultiBidLimits) (*auction, map[string]*entities.PbsOrtbBid) {
	t.Helper()
	winner := &entities.PbsOrtbBid{Bid: &openrtb2.Bid{ID: "winning-bid", ImpID: "some-imp", Price: 0.7, W: 300, H: 250, DealID: "deal-1"}}
	loser := testBid("losing-bid", "some-imp", 0.5, "")
	contender := testBid("contending-bid", "some-imp", 0.6, "")
	bidders, seatBids := seatBidsOf(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid{
		"appnexus": {loser, winner},
		"rubicon":  {contender},
	})
	auc, resolved := resolve(bidders, seatBids, dealPreference{}, limits, nil)

	// Bids past the multibid limit are only found among the originals.
	byID := map[string]*entities.PbsOrtbBid{"losing-bid": loser}
	for _, seatBid := range resolved {
		for _, bid := range seatBid.Bids {
			byID[bid.Bid.ID] = bid
		}
	}
	return auc, byID
}

func TestTargeting(t *testing.T) {
	auc, bids := targetingAuction(t, nil)
	auc.cacheIds = map[*openrtb2.Bid]string{bids["winning-bid"].Bid: "cache-uuid"}
	targData := &targetData{
		priceGranularity:  openrtb_ext.NewPriceGranularityDefault(),
		includeWinners:    true,
		includeBidderKeys: true,
		lengthMax:         maxKeyLength,
	}

	targets := targData.makeTargets(auc, nil)

	winner := targets[bids["winning-bid"]]
	assert.Equal(t, "0.70", winner["hb_pb"])
	assert.Equal(t, "0.70", winner["hb_pb_appnexus"])
	assert.Equal(t, "appnexus", winner["hb_bidder"])
	assert.Equal(t, "300x250", winner["hb_size_appnexus"])
	assert.Equal(t, "deal-1", winner["hb_deal"])
	assert.Equal(t, "cache-uuid", winner["hb_cache_id"])
	assert.Equal(t, "cache-uuid", winner["hb_cache_id_appnexus"])
	assert.Equal(t, "true", winner["hb_winning"])

	contender := targets[bids["contending-bid"]]
	assert.Equal(t, "0.60", contender["hb_pb_rubicon"])
	assert.NotContains(t, contender, "hb_pb")
	assert.NotContains(t, contender, "hb_winning")
	assert.NotContains(t, contender, "hb_size_rubicon")

	assert.NotContains(t, targets, bids["losing-bid"], "bids which lost within their bidder get no keys")
}

func TestTargetingSwitches(t *testing.T) {
	tests := []struct {
		description       string
		includeWinners    bool
		includeBidderKeys bool
		expectedWinner    []string
		expectedContender []string
	}{
		{
			description:       "winners only",
			includeWinners:    true,
			expectedWinner:    []string{"hb_bidder", "hb_deal", "hb_pb", "hb_size", "hb_winning"},
			expectedContender: nil,
		},
		{
			description:       "bidder keys only",
			includeBidderKeys: true,
			expectedWinner:    []string{"hb_bidder_appnexus", "hb_deal_appnexus", "hb_pb_appnexus", "hb_size_appnexus"},
			expectedContender: []string{"hb_bidder_rubicon", "hb_pb_rubicon"},
		},
		{
			description: "neither",
		},
	}

	for _, test := range tests {
		auc, bids := targetingAuction(t, nil)
		targData := &targetData{
			priceGranularity:  openrtb_ext.NewPriceGranularityDefault(),
			includeWinners:    test.includeWinners,
			includeBidderKeys: test.includeBidderKeys,
		}

		targets := targData.makeTargets(auc, nil)

		assert.ElementsMatch(t, test.expectedWinner, keysOf(targets[bids["winning-bid"]]), test.description)
		assert.ElementsMatch(t, test.expectedContender, keysOf(targets[bids["contending-bid"]]), test.description)
	}
}

func TestTargetingTruncatesKeys(t *testing.T) {
	auc, bids := targetingAuction(t, nil)
	targData := &targetData{
		priceGranularity:  openrtb_ext.NewPriceGranularityDefault(),
		includeBidderKeys: true,
		lengthMax:         10,
	}

	targets := targData.makeTargets(auc, nil)

	for key := range targets[bids["winning-bid"]] {
		assert.LessOrEqual(t, len(key), 10, key)
	}
	assert.Equal(t, "appnexus", targets[bids["winning-bid"]]["hb_bidder_"])
}

func TestTargetingMultiBidExtras(t *testing.T) {
	auc, bids := targetingAuction(t, openrtb_ext.MultiBidLimits{"appnexus": {MaxBids: 2, TargetBidderCodePrefix: "apn"}})
	targData := &targetData{
		priceGranularity:  openrtb_ext.NewPriceGranularityDefault(),
		includeWinners:    true,
		includeBidderKeys: true,
	}

	targets := targData.makeTargets(auc, bidCategories{{"appnexus", "losing-bid"}: "0.50_IAB1-1_30s"})

	extra := targets[bids["losing-bid"]]
	require.NotNil(t, extra)
	assert.Equal(t, "0.50", extra["hb_pb_apn2"])
	assert.Equal(t, "apn2", extra["hb_bidder_apn2"])
	assert.Equal(t, "0.50_IAB1-1_30s", extra["hb_pb_cat_dur_apn2"])
	assert.NotContains(t, extra, "hb_pb", "an extra bid never gets winner keys")
}

func TestNilTargetData(t *testing.T) {
	var targData *targetData
	auc, _ := targetingAuction(t, nil)

	assert.Nil(t, targData.makeTargets(auc, nil))
}

func TestTargetingCategoryKeysPerSeat(t *testing.T) {
	appnexusBid := testBid("1", "imp-1", 5, "")
	rubiconBid := testBid("1", "imp-1", 2, "")
	bidders, seatBids := seatBidsOf(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid{
		"appnexus": {appnexusBid},
		"rubicon":  {rubiconBid},
	})
	auc, _ := resolve(bidders, seatBids, dealPreference{}, nil, nil)
	targData := &targetData{
		priceGranularity:  openrtb_ext.NewPriceGranularityDefault(),
		includeBidderKeys: true,
	}

	targets := targData.makeTargets(auc, bidCategories{{"appnexus", "1"}: "5.00_15s", {"rubicon", "1"}: "2.00_30s"})

	assert.Equal(t, "5.00_15s", targets[appnexusBid]["hb_pb_cat_dur_appnexus"])
	assert.Equal(t, "2.00_30s", targets[rubiconBid]["hb_pb_cat_dur_rubicon"])
}

func keysOf(m map[string]string) []string {
	var keys []string
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

func TestPriceBucketIsStableUnderRandomRounding(t *testing.T) {
	targData := &targetData{
		priceGranularity: openrtb_ext.NewPriceGranularityDefault(),
		roundingMode:     openrtb_ext.RoundingModeRandom,
		rand:             &alternatingGenerator{},
	}
	bid := &openrtb2.Bid{Price: 2.35}

	first := targData.priceBucket(bid)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, targData.priceBucket(bid))
	}
	assert.NotEqual(t, first, targData.priceBucket(&openrtb2.Bid{Price: 2.35}), "a different bid rounds again")
}

type alternatingGenerator struct {
	next bool
}

func (g *alternatingGenerator) Generate() bool {
	g.next = !g.next
	return g.next
}
