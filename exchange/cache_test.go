package exchange

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/prebid_cache_client"
)

type fakeCacheClient struct {
	puts []prebid_cache_client.Cacheable
	fail bool
}

func (c *fakeCacheClient) PutJson(ctx context.Context, values []prebid_cache_client.Cacheable) ([]string, []error) {
	c.puts = values
	ids := make([]string, len(values))
	if c.fail {
		return ids, []error{errors.New("cache is down")}
	}
	for i := range values {
		ids[i] = "uuid-" + strconv.Itoa(i)
	}
	return ids, nil
}

func cachedAuction() (*auction, *entities.PbsOrtbBid, *entities.PbsOrtbBid) {
	banner := testBid("banner", "imp-1", 2, "")
	video := &entities.PbsOrtbBid{
		Bid:     &openrtb2.Bid{ID: "video", ImpID: "imp-2", Price: 3, NURL: "http://nurl.test", Exp: 100},
		BidType: openrtb_ext.BidTypeVideo,
	}
	extra := testBid("extra", "imp-1", 1, "")
	bidders, seatBids := seatBidsOf(map[openrtb_ext.BidderName][]*entities.PbsOrtbBid{
		"appnexus": {banner, extra},
		"rubicon":  {video},
	})
	auc, _ := resolve(bidders, seatBids, dealPreference{}, openrtb_ext.MultiBidLimits{
		"appnexus": {MaxBids: 2},
	}, nil)
	return auc, banner, video
}

func TestDoCache(t *testing.T) {
	auc, banner, video := cachedAuction()
	cache := &fakeCacheClient{}

	errs := auc.doCache(context.Background(), cache, cacheInstructions{cacheBids: true, cacheVAST: true}, bidCategories{{"rubicon", "video"}: "10.00_IAB1_30s"})

	assert.Empty(t, errs)
	require.Len(t, cache.puts, 3, "both winners as json, the video one as vast too; the extra without a code is skipped")

	bannerID, ok := auc.cacheId(banner.Bid)
	assert.True(t, ok)
	assert.NotEmpty(t, bannerID)
	_, ok = auc.vastCacheId(banner.Bid)
	assert.False(t, ok, "banner bids have no vast")

	vastID, ok := auc.vastCacheId(video.Bid)
	assert.True(t, ok)
	assert.NotEmpty(t, vastID)

	for _, put := range cache.puts {
		if put.Type != prebid_cache_client.TypeXML {
			continue
		}
		assert.True(t, strings.HasPrefix(put.Key, "10.00_IAB1_30s_"), "category keyed vast gets a category prefixed key")
		assert.Equal(t, int64(100+cacheTTLBuffer), put.TTLSeconds)
		assert.Contains(t, string(put.Data), "http://nurl.test")
	}
}

func TestDoCacheOnlyWhatWasAskedFor(t *testing.T) {
	auc, banner, video := cachedAuction()
	cache := &fakeCacheClient{}

	auc.doCache(context.Background(), cache, cacheInstructions{cacheVAST: true}, nil)

	require.Len(t, cache.puts, 1)
	assert.Equal(t, prebid_cache_client.TypeXML, cache.puts[0].Type)
	assert.Empty(t, cache.puts[0].Key)
	_, ok := auc.cacheId(banner.Bid)
	assert.False(t, ok)
	_, ok = auc.vastCacheId(video.Bid)
	assert.True(t, ok)
}

func TestDoCacheFailureKeepsBids(t *testing.T) {
	auc, banner, _ := cachedAuction()

	errs := auc.doCache(context.Background(), &fakeCacheClient{fail: true}, cacheInstructions{cacheBids: true}, nil)

	assert.Len(t, errs, 1)
	_, ok := auc.cacheId(banner.Bid)
	assert.False(t, ok)
	assert.Equal(t, banner, auc.winningBids["imp-1"])
}

func TestDoCacheNotRequested(t *testing.T) {
	auc, _, _ := cachedAuction()
	cache := &fakeCacheClient{}

	assert.Nil(t, auc.doCache(context.Background(), cache, cacheInstructions{}, nil))
	assert.Nil(t, auc.doCache(context.Background(), nil, cacheInstructions{cacheBids: true}, nil))
	assert.Nil(t, cache.puts)
}

func TestMakeVAST(t *testing.T) {
	assert.Equal(t, "<VAST/>", makeVAST(&openrtb2.Bid{AdM: "<VAST/>", NURL: "http://ignored"}))

	wrapper := makeVAST(&openrtb2.Bid{NURL: "http://domain.com/winning-url"})
	assert.Contains(t, wrapper, "<VASTAdTagURI><![CDATA[http://domain.com/winning-url]]></VASTAdTagURI>")
	assert.True(t, strings.HasPrefix(wrapper, `<VAST version="3.0">`))
}
