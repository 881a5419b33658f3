package openrtb_ext

import (
	"encoding/json"
	"fmt"
)

// ExtBid defines the contract for bidresponse.seatbid.bid[i].ext
type ExtBid struct {
	Prebid *ExtBidPrebid   `json:"prebid,omitempty"`
	Bidder json.RawMessage `json:"bidder,omitempty"`
}

// ExtBidPrebid defines the contract for bidresponse.seatbid.bid[i].ext.prebid
type ExtBidPrebid struct {
	BidId             string             `json:"bidid,omitempty"`
	Cache             *ExtBidPrebidCache `json:"cache,omitempty"`
	DealPriority      int                `json:"dealpriority,omitempty"`
	DealTierSatisfied bool               `json:"dealtiersatisfied,omitempty"`
	Targeting         map[string]string  `json:"targeting,omitempty"`
	TargetBidderCode  string             `json:"targetbiddercode,omitempty"`
	Type              BidType            `json:"type"`
	Video             *ExtBidPrebidVideo `json:"video,omitempty"`
}

// ExtBidPrebidCache defines the contract for  bidresponse.seatbid.bid[i].ext.prebid.cache
type ExtBidPrebidCache struct {
	Bids *ExtBidPrebidCacheBids `json:"bids,omitempty"`
}

// ExtBidPrebidCacheBids defines the contract for bidresponse.seatbid.bid[i].ext.prebid.cache.bids
type ExtBidPrebidCacheBids struct {
	Url     string `json:"url"`
	CacheId string `json:"cacheId"`
}

// ExtBidPrebidVideo defines the contract for bidresponse.seatbid.bid[i].ext.prebid.video
type ExtBidPrebidVideo struct {
	Duration        int    `json:"duration"`
	PrimaryCategory string `json:"primary_category"`
}

// Keys of bidresponse.seatbid.bid[i].ext holding the price a bid arrived with, before
// conversion and adjustment.
const (
	OriginalBidCpmKey = "origbidcpm"
	OriginalBidCurKey = "origbidcur"
)

// BidType describes the allowed values for bidresponse.seatbid.bid[i].ext.prebid.type
type BidType string

const (
	BidTypeBanner BidType = "banner"
	BidTypeVideo  BidType = "video"
	BidTypeAudio  BidType = "audio"
	BidTypeNative BidType = "native"
)

func BidTypes() []BidType {
	return []BidType{
		BidTypeBanner,
		BidTypeVideo,
		BidTypeAudio,
		BidTypeNative,
	}
}

func ParseBidType(bidType string) (BidType, error) {
	switch bidType {
	case "banner":
		return BidTypeBanner, nil
	case "video":
		return BidTypeVideo, nil
	case "audio":
		return BidTypeAudio, nil
	case "native":
		return BidTypeNative, nil
	default:
		return "", fmt.Errorf("invalid BidType: %s", bidType)
	}
}

// TargetingKeys are used throughout Prebid as keys which can be used in an ad server like DFP.
// Clients set the values we assign on the request to the ad server, where they can be substituted like macros into
// Creatives.
//
// Removing one of these, or changing the semantics of what we store there, will probably break the
// line item setups for many publishers.
type TargetingKey string

const (
	HbpbConstantKey TargetingKey = "hb_pb"

	// HbBidderConstantKey is the name of the Bidder. For example, "appnexus" or "rubicon".
	HbBidderConstantKey TargetingKey = "hb_bidder"
	HbSizeConstantKey   TargetingKey = "hb_size"
	HbDealIDConstantKey TargetingKey = "hb_deal"

	// HbWinningKey marks the overall winner of an imp. Only set when winning keys are included.
	HbWinningKey TargetingKey = "hb_winning"

	// HbCacheKey and HbVastCacheKey store UUIDs which can be used to fetch things from prebid cache.
	// Callers should *never* assume that either of these exist, since the call to the cache may always fail.
	HbCacheKey     TargetingKey = "hb_cache_id"
	HbVastCacheKey TargetingKey = "hb_uuid"

	HbCategoryDurationKey TargetingKey = "hb_pb_cat_dur"
)

// BidderKey returns the per-bidder spelling of key, cut to maxLength when that is set.
func (key TargetingKey) BidderKey(bidder BidderName, maxLength int) string {
	s := string(key) + "_" + string(bidder)
	return TruncateKey(s, maxLength)
}

// TruncateKey cuts key to maxLength characters. A maxLength of zero means no limit.
func TruncateKey(key string, maxLength int) string {
	if maxLength > 0 && len(key) > maxLength {
		return key[:maxLength]
	}
	return key
}
