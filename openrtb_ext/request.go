package openrtb_ext

import (
	"encoding/json"
	"errors"
)

// ExtRequest defines the contract for bidrequest.ext
type ExtRequest struct {
	Prebid ExtRequestPrebid `json:"prebid"`
}

// ExtRequestPrebid defines the contract for bidrequest.ext.prebid
type ExtRequestPrebid struct {
	Aliases              map[string]string      `json:"aliases,omitempty"`
	BidAdjustmentFactors map[string]float64     `json:"bidadjustmentfactors,omitempty"`
	BidderParams         json.RawMessage        `json:"bidderparams,omitempty"`
	Cache                *ExtRequestPrebidCache `json:"cache,omitempty"`
	Currency             *ExtRequestCurrency    `json:"currency,omitempty"`
	Debug                bool                   `json:"debug,omitempty"`
	MultiBid             []*ExtMultiBid         `json:"multibid,omitempty"`
	ReturnAllBidStatus   bool                   `json:"returnallbidstatus,omitempty"`
	Targeting            *ExtRequestTargeting   `json:"targeting,omitempty"`
}

// ExtRequestCurrency defines the contract for bidrequest.ext.prebid.currency
type ExtRequestCurrency struct {
	// ConversionRates is keyed by source currency, then target currency.
	ConversionRates map[string]map[string]float64 `json:"rates"`
	// UsePBSRates allows the server-wide rates to be consulted after the request rates.
	// Defaults to true when absent.
	UsePBSRates *bool `json:"usepbsrates"`
}

// ExtRequestPrebidCache defines the contract for bidrequest.ext.prebid.cache
type ExtRequestPrebidCache struct {
	Bids    *ExtRequestPrebidCacheBids `json:"bids,omitempty"`
	VastXML *ExtRequestPrebidCacheVAST `json:"vastxml,omitempty"`
}

// UnmarshalJSON prevents an empty cache object, which would ask for caching without saying what to cache.
func (ert *ExtRequestPrebidCache) UnmarshalJSON(b []byte) error {
	type typesAlias ExtRequestPrebidCache
	var proxy typesAlias
	if err := json.Unmarshal(b, &proxy); err != nil {
		return err
	}

	if proxy.Bids == nil && proxy.VastXML == nil {
		return errors.New(`request.ext.prebid.cache requires one of the "bids" or "vastxml" properties`)
	}

	*ert = ExtRequestPrebidCache(proxy)
	return nil
}

// ExtRequestPrebidCacheBids defines the contract for bidrequest.ext.prebid.cache.bids
type ExtRequestPrebidCacheBids struct {
	ReturnCreative *bool `json:"returnCreative,omitempty"`
}

// ExtRequestPrebidCacheVAST defines the contract for bidrequest.ext.prebid.cache.vastxml
type ExtRequestPrebidCacheVAST struct {
	ReturnCreative *bool `json:"returnCreative,omitempty"`
}

// ExtRequestTargeting defines the contract for bidrequest.ext.prebid.targeting
type ExtRequestTargeting struct {
	PriceGranularity     *PriceGranularity        `json:"pricegranularity,omitempty"`
	IncludeWinners       *bool                    `json:"includewinners,omitempty"`
	IncludeBidderKeys    *bool                    `json:"includebidderkeys,omitempty"`
	IncludeBrandCategory *ExtIncludeBrandCategory `json:"includebrandcategory,omitempty"`
	DurationRangeSec     []int                    `json:"durationrangesec,omitempty"`
	AppendBidderNames    bool                     `json:"appendbiddernames,omitempty"`
	PreferDeals          *bool                    `json:"preferdeals,omitempty"`
	MaxLength            int                      `json:"lengthmax,omitempty"`
}

// ExtIncludeBrandCategory defines the contract for bidrequest.ext.prebid.targeting.includebrandcategory
type ExtIncludeBrandCategory struct {
	PrimaryAdServer     int    `json:"primaryadserver"`
	Publisher           string `json:"publisher"`
	WithCategory        bool   `json:"withcategory"`
	TranslateCategories *bool  `json:"translatecategories,omitempty"`
}

// ShouldTranslate reports whether IAB categories go through the ad server mapping. Defaults to true.
func (e *ExtIncludeBrandCategory) ShouldTranslate() bool {
	return e.TranslateCategories == nil || *e.TranslateCategories
}

// ExtRequestPrebidBidderParams is bidrequest.ext.prebid.bidderparams, keyed by bidder name.
type ExtRequestPrebidBidderParams map[string]json.RawMessage

// GetBidderParams returns the request level params addressed to one bidder, or nil.
func (e *ExtRequestPrebid) GetBidderParams(bidder string) (json.RawMessage, error) {
	if len(e.BidderParams) == 0 {
		return nil, nil
	}
	var params ExtRequestPrebidBidderParams
	if err := json.Unmarshal(e.BidderParams, &params); err != nil {
		return nil, err
	}
	return params[bidder], nil
}

// AdjustmentFactor returns the adjustment factor for bidder, or 1 when none is configured.
func (e *ExtRequestPrebid) AdjustmentFactor(bidder string) float64 {
	if factor, ok := e.BidAdjustmentFactors[bidder]; ok && factor > 0 {
		return factor
	}
	return 1.0
}
