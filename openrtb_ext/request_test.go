package openrtb_ext

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/util/ptrutil"
)

func TestTargetingPriceGranularity(t *testing.T) {
	testCases := []struct {
		desc     string
		ext      string
		expected PriceGranularity
	}{
		{
			desc:     "preset name",
			ext:      `{"prebid":{"targeting":{"pricegranularity":"dense"}}}`,
			expected: mustLegacyGranularity(t, "dense"),
		},
		{
			desc:     "med is medium",
			ext:      `{"prebid":{"targeting":{"pricegranularity":"med"}}}`,
			expected: NewPriceGranularityDefault(),
		},
		{
			desc: "explicit table gets default precision and chained minimums",
			ext:  `{"prebid":{"targeting":{"pricegranularity":{"ranges":[{"max":5,"increment":0.05},{"min":99,"max":10,"increment":0.25}]}}}}`,
			expected: PriceGranularity{
				Precision: ptrutil.ToPtr(DefaultPriceGranularityPrecision),
				Ranges: []GranularityRange{
					{Min: 0, Max: 5, Increment: 0.05},
					{Min: 5, Max: 10, Increment: 0.25},
				},
			},
		},
		{
			desc: "explicit precision kept",
			ext:  `{"prebid":{"targeting":{"pricegranularity":{"precision":0,"ranges":[{"max":20,"increment":1}]}}}}`,
			expected: PriceGranularity{
				Precision: ptrutil.ToPtr(0),
				Ranges:    []GranularityRange{{Min: 0, Max: 20, Increment: 1}},
			},
		},
	}

	for _, test := range testCases {
		var ext ExtRequest
		require.NoError(t, json.Unmarshal([]byte(test.ext), &ext), test.desc)
		require.NotNil(t, ext.Prebid.Targeting, test.desc)
		require.NotNil(t, ext.Prebid.Targeting.PriceGranularity, test.desc)
		assert.Equal(t, test.expected, *ext.Prebid.Targeting.PriceGranularity, test.desc)
	}
}

func TestTargetingPriceGranularityUnknownPreset(t *testing.T) {
	var ext ExtRequest
	err := json.Unmarshal([]byte(`{"prebid":{"targeting":{"pricegranularity":"precise"}}}`), &ext)
	assert.ErrorContains(t, err, "invalid granularity")
}

func TestPriceGranularityValidate(t *testing.T) {
	testCases := []struct {
		desc        string
		granularity PriceGranularity
		expectedErr string
	}{
		{desc: "presets are valid", granularity: mustLegacyGranularity(t, "auto")},
		{desc: "missing precision", granularity: PriceGranularity{Ranges: []GranularityRange{{Max: 1, Increment: 0.1}}}, expectedErr: "precision is required"},
		{desc: "negative precision", granularity: PriceGranularity{Precision: ptrutil.ToPtr(-1), Ranges: []GranularityRange{{Max: 1, Increment: 0.1}}}, expectedErr: "non-negative"},
		{desc: "precision too large", granularity: PriceGranularity{Precision: ptrutil.ToPtr(16), Ranges: []GranularityRange{{Max: 1, Increment: 0.1}}}, expectedErr: "significant figures"},
		{desc: "no ranges", granularity: PriceGranularity{Precision: ptrutil.ToPtr(2)}, expectedErr: "empty granularity"},
		{desc: "ranges out of order", granularity: PriceGranularity{Precision: ptrutil.ToPtr(2), Ranges: []GranularityRange{{Max: 5, Increment: 0.1}, {Max: 3, Increment: 0.1}}}, expectedErr: "increasing"},
		{desc: "zero increment", granularity: PriceGranularity{Precision: ptrutil.ToPtr(2), Ranges: []GranularityRange{{Max: 5}}}, expectedErr: "increment"},
	}

	for _, test := range testCases {
		err := test.granularity.Validate()
		if test.expectedErr == "" {
			assert.NoError(t, err, test.desc)
		} else {
			assert.ErrorContains(t, err, test.expectedErr, test.desc)
		}
	}
}

func TestParsePriceRoundingMode(t *testing.T) {
	testCases := []struct {
		in       string
		expected PriceRoundingMode
		isErr    bool
	}{
		{in: "", expected: RoundingModeFloor},
		{in: "floor", expected: RoundingModeFloor},
		{in: "ceil", expected: RoundingModeCeil},
		{in: "roundhalfup", expected: RoundingModeRoundHalfUp},
		{in: "random", expected: RoundingModeRandom},
		{in: "truncate", isErr: true},
	}

	for _, test := range testCases {
		mode, err := ParsePriceRoundingMode(test.in)
		if test.isErr {
			assert.Error(t, err, test.in)
			continue
		}
		assert.NoError(t, err, test.in)
		assert.Equal(t, test.expected, mode, test.in)
	}
}

func TestCacheRequiresBidsOrVAST(t *testing.T) {
	testCases := []struct {
		desc  string
		ext   string
		isErr bool
	}{
		{desc: "bids", ext: `{"prebid":{"cache":{"bids":{}}}}`},
		{desc: "vastxml", ext: `{"prebid":{"cache":{"vastxml":{"returnCreative":false}}}}`},
		{desc: "empty cache object", ext: `{"prebid":{"cache":{}}}`, isErr: true},
	}

	for _, test := range testCases {
		var ext ExtRequest
		err := json.Unmarshal([]byte(test.ext), &ext)
		if test.isErr {
			assert.Error(t, err, test.desc)
		} else {
			assert.NoError(t, err, test.desc)
			assert.NotNil(t, ext.Prebid.Cache, test.desc)
		}
	}
}

func TestGetBidderParams(t *testing.T) {
	prebid := ExtRequestPrebid{BidderParams: json.RawMessage(`{"appnexus":{"member":"123"}}`)}

	params, err := prebid.GetBidderParams("appnexus")
	require.NoError(t, err)
	assert.JSONEq(t, `{"member":"123"}`, string(params))

	params, err = prebid.GetBidderParams("rubicon")
	assert.NoError(t, err)
	assert.Nil(t, params)

	params, err = (&ExtRequestPrebid{}).GetBidderParams("appnexus")
	assert.NoError(t, err)
	assert.Nil(t, params)

	_, err = (&ExtRequestPrebid{BidderParams: json.RawMessage(`[1]`)}).GetBidderParams("appnexus")
	assert.Error(t, err)
}

func TestAdjustmentFactor(t *testing.T) {
	prebid := ExtRequestPrebid{BidAdjustmentFactors: map[string]float64{"appnexus": 0.9, "rubicon": 0, "pubmatic": -1}}

	assert.Equal(t, 0.9, prebid.AdjustmentFactor("appnexus"))
	assert.Equal(t, 1.0, prebid.AdjustmentFactor("rubicon"), "zero factors are ignored")
	assert.Equal(t, 1.0, prebid.AdjustmentFactor("pubmatic"), "negative factors are ignored")
	assert.Equal(t, 1.0, prebid.AdjustmentFactor("openx"))
}

func TestShouldTranslate(t *testing.T) {
	assert.True(t, (&ExtIncludeBrandCategory{}).ShouldTranslate())
	assert.True(t, (&ExtIncludeBrandCategory{TranslateCategories: ptrutil.ToPtr(true)}).ShouldTranslate())
	assert.False(t, (&ExtIncludeBrandCategory{TranslateCategories: ptrutil.ToPtr(false)}).ShouldTranslate())
}

func mustLegacyGranularity(t *testing.T, name string) PriceGranularity {
	t.Helper()
	pg, ok := NewPriceGranularityFromLegacyID(name)
	require.True(t, ok, name)
	return pg
}
