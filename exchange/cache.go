package exchange

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/prebid_cache_client"
)

// cacheTTLBuffer is added to the expiry a bidder asks for, so a creative outlives its bid.
const cacheTTLBuffer = 60

type cacheInstructions struct {
	cacheBids bool
	cacheVAST bool
}

func newCacheInstructions(cache *openrtb_ext.ExtRequestPrebidCache) cacheInstructions {
	if cache == nil {
		return cacheInstructions{}
	}
	return cacheInstructions{cacheBids: cache.Bids != nil, cacheVAST: cache.VastXML != nil}
}

func (c cacheInstructions) any() bool {
	return c.cacheBids || c.cacheVAST
}

// doCache stores the bids which will get targeting keys and records the uuids on the auction.
// A bid whose put fails is still returned, without a cache id.
func (a *auction) doCache(ctx context.Context, cache prebid_cache_client.Client, instructions cacheInstructions, categoryKeys bidCategories) []error {
	if cache == nil || !instructions.any() {
		return nil
	}

	type cachedBid struct {
		bidder openrtb_ext.BidderName
		*entities.PbsOrtbBid
	}
	var toCache []cachedBid
	a.forEachKeptBid(func(impID string, bidder openrtb_ext.BidderName, bid *entities.PbsOrtbBid, rank int) {
		if rank == 0 || bid.TargetBidderCode != "" {
			toCache = append(toCache, cachedBid{bidder, bid})
		}
	})
	if len(toCache) == 0 {
		return nil
	}

	var errs []error
	values := make([]prebid_cache_client.Cacheable, 0, 2*len(toCache))
	type slot struct {
		bid  *openrtb2.Bid
		vast bool
	}
	slots := make([]slot, 0, cap(values))
	for _, bid := range toCache {
		ttl := cacheTTL(bid.Bid)
		if instructions.cacheBids {
			data, err := json.Marshal(bid.Bid)
			if err != nil {
				glog.Errorf("Error marshalling OpenRTB Bid for Prebid Cache: %v", err)
				errs = append(errs, err)
				continue
			}
			values = append(values, prebid_cache_client.Cacheable{Type: prebid_cache_client.TypeJSON, Data: data, TTLSeconds: ttl})
			slots = append(slots, slot{bid: bid.Bid})
		}
		if instructions.cacheVAST && bid.BidType == openrtb_ext.BidTypeVideo {
			data, err := json.Marshal(makeVAST(bid.Bid))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			value := prebid_cache_client.Cacheable{Type: prebid_cache_client.TypeXML, Data: data, TTLSeconds: ttl}
			if catDur, ok := categoryKeys[bidKey{bid.bidder, bid.Bid.ID}]; ok {
				key, err := uuid.NewV4()
				if err != nil {
					errs = append(errs, fmt.Errorf("failed to generate a cache key for bid %s: %v", bid.Bid.ID, err))
					continue
				}
				value.Key = catDur + "_" + key.String()
			}
			values = append(values, value)
			slots = append(slots, slot{bid: bid.Bid, vast: true})
		}
	}

	ids, putErrs := cache.PutJson(ctx, values)
	errs = append(errs, putErrs...)

	a.cacheIds = make(map[*openrtb2.Bid]string)
	a.vastCacheIds = make(map[*openrtb2.Bid]string)
	for i, s := range slots {
		if i >= len(ids) || ids[i] == "" {
			continue
		}
		if s.vast {
			a.vastCacheIds[s.bid] = ids[i]
		} else {
			a.cacheIds[s.bid] = ids[i]
		}
	}
	return errs
}

func cacheTTL(bid *openrtb2.Bid) int64 {
	if bid.Exp > 0 {
		return bid.Exp + cacheTTLBuffer
	}
	return 0
}

// makeVAST returns some VAST XML for the given bid. If AdM is defined,
// it takes precedence. Otherwise the Nurl will be wrapped in a redirect tag.
func makeVAST(bid *openrtb2.Bid) string {
	if bid.AdM == "" {
		return `<VAST version="3.0"><Ad><Wrapper>` +
			`<AdSystem>prebid.org wrapper</AdSystem>` +
			`<VASTAdTagURI><![CDATA[` + bid.NURL + `]]></VASTAdTagURI>` +
			`<Impression></Impression><Creatives></Creatives>` +
			`</Wrapper></Ad></VAST>`
	}
	return bid.AdM
}
