package openrtb_ext

import (
	"encoding/json"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
)

func TestReadDealTiersFromImp(t *testing.T) {
	testCases := []struct {
		desc     string
		impExt   string
		expected DealTierBidderMap
		isErr    bool
	}{
		{
			desc:     "no ext",
			expected: DealTierBidderMap{},
		},
		{
			desc:     "no bidders",
			impExt:   `{"prebid":{}}`,
			expected: DealTierBidderMap{},
		},
		{
			desc:     "one bidder with a tier",
			impExt:   `{"prebid":{"bidder":{"appnexus":{"placementId":1,"dealTier":{"prefix":"anxa","minDealTier":5}},"rubicon":{"zoneId":2}}}}`,
			expected: DealTierBidderMap{"appnexus": {Prefix: "anxa", MinDealTier: 5}},
		},
		{
			desc:     "invalid tiers are still read",
			impExt:   `{"prebid":{"bidder":{"appnexus":{"dealTier":{"prefix":"","minDealTier":0}}}}}`,
			expected: DealTierBidderMap{"appnexus": {}},
		},
		{
			desc:   "malformed tier",
			impExt: `{"prebid":{"bidder":{"appnexus":{"dealTier":{"minDealTier":"five"}}}}}`,
			isErr:  true,
		},
		{
			desc:   "bidder is not an object",
			impExt: `{"prebid":{"bidder":[]}}`,
			isErr:  true,
		},
	}

	for _, test := range testCases {
		imp := openrtb2.Imp{ID: "imp-1"}
		if test.impExt != "" {
			imp.Ext = json.RawMessage(test.impExt)
		}

		tiers, err := ReadDealTiersFromImp(imp)
		if test.isErr {
			assert.Error(t, err, test.desc)
			continue
		}
		assert.NoError(t, err, test.desc)
		assert.Equal(t, test.expected, tiers, test.desc)
	}
}

func TestDealTierValid(t *testing.T) {
	assert.True(t, DealTier{Prefix: "anxa", MinDealTier: 1}.Valid())
	assert.False(t, DealTier{Prefix: "", MinDealTier: 1}.Valid())
	assert.False(t, DealTier{Prefix: "anxa", MinDealTier: 0}.Valid())
}
