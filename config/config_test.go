package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/auction-orchestrator/errortypes"
)

var fullConfig = []byte(`
host: 127.0.0.1
port: 1234
admin_port: 5678
enable_gzip: true
auction_timeouts_ms:
  default: 500
  max: 1000
  expected_cache_time_ms: 40
  adjustment_factor: 0.8
  bidder_network_latency_buffer_ms: 15
  bidder_latency_buffers_ms:
    slowbidder: 60
auction:
  prefer_deals: true
  price_rounding: roundhalfup
cache:
  scheme: https
  host: prebidcache.net
  query: uuid=%PBS_CACHE_UUID%
currency_converter:
  fetch_url: https://rates.example.com/latest.json
  fetch_interval_seconds: 60
  stale_rates_seconds: 600
metrics:
  influxdb:
    host: upstream:8232
    database: metricsdb
    username: admin
    password: admin1324
    metric_send_interval: 30
adapters:
  AppNexus:
    endpoint: http://ib.adnxs.com/some/endpoint
    bid_adjustment: 0.9
  rubicon:
    disabled: true
`)

func newConfigFromYAML(t *testing.T, yaml []byte) (*Configuration, error) {
	t.Helper()
	v := viper.New()
	SetupViper(v, "")
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yaml)))
	return New(v)
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetupViper(v, "")
	cfg, err := New(v)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 6060, cfg.AdminPort)
	assert.Equal(t, 1.0, cfg.AuctionTimeouts.AdjustmentFactor)
	assert.Equal(t, "floor", cfg.Auction.PriceRounding)
	assert.Equal(t, "USD", cfg.Auction.DefaultCurrency)
	assert.Equal(t, 1800, cfg.CurrencyConverter.FetchIntervalSeconds)
	assert.Equal(t, 10, cfg.CacheURL.ExpectedTimeMillis)
	assert.Equal(t, 10*time.Second, cfg.Metrics.Prometheus.Timeout())
	assert.False(t, cfg.EnableGzip)
}

func TestFullConfig(t *testing.T) {
	cfg, err := newConfigFromYAML(t, fullConfig)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 1234, cfg.Port)
	assert.True(t, cfg.EnableGzip)
	assert.Equal(t, uint64(40), cfg.AuctionTimeouts.ExpectedCacheTime)
	assert.Equal(t, 0.8, cfg.AuctionTimeouts.AdjustmentFactor)
	assert.True(t, cfg.Auction.PreferDeals)
	assert.Equal(t, "https://prebidcache.net", cfg.CacheURL.GetBaseURL())
	assert.Equal(t, "https://prebidcache.net/cache?uuid=abc", cfg.CacheURL.GetCachedAssetURL("abc"))
	assert.Equal(t, "metricsdb", cfg.Metrics.Influxdb.Database)
	assert.Equal(t, 30, cfg.Metrics.Influxdb.MetricSendInterval)

	require.Contains(t, cfg.Adapters, "appnexus", "adapter names are lower cased")
	assert.Equal(t, 0.9, cfg.Adapters["appnexus"].BidAdjustment)
	assert.True(t, cfg.Adapters["rubicon"].Disabled)
}

func TestBidderDeduction(t *testing.T) {
	cfg, err := newConfigFromYAML(t, fullConfig)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Millisecond, cfg.AuctionTimeouts.BidderDeduction("slowbidder"))
	assert.Equal(t, 15*time.Millisecond, cfg.AuctionTimeouts.BidderDeduction("appnexus"))
}

func TestLimitTimeout(t *testing.T) {
	testCases := []struct {
		desc      string
		cfg       AuctionTimeouts
		requested time.Duration
		expected  time.Duration
	}{
		{
			desc:      "Requested is used when no default or max",
			requested: 300 * time.Millisecond,
			expected:  300 * time.Millisecond,
		},
		{
			desc:      "Default applies when nothing is requested",
			cfg:       AuctionTimeouts{Default: 200, Max: 500},
			requested: 0,
			expected:  200 * time.Millisecond,
		},
		{
			desc:      "Max caps a larger request",
			cfg:       AuctionTimeouts{Max: 500},
			requested: 800 * time.Millisecond,
			expected:  500 * time.Millisecond,
		},
		{
			desc:      "Max applies to a missing request without default",
			cfg:       AuctionTimeouts{Max: 500},
			requested: 0,
			expected:  500 * time.Millisecond,
		},
	}

	for _, test := range testCases {
		assert.Equal(t, test.expected, test.cfg.LimitAuctionTimeout(test.requested), test.desc)
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		desc        string
		yaml        string
		expectedErr string
	}{
		{
			desc:        "Adjustment factor above one",
			yaml:        "auction_timeouts_ms:\n  adjustment_factor: 1.5\n",
			expectedErr: "adjustment_factor must be in the range (0, 1]",
		},
		{
			desc:        "Adjustment factor of zero",
			yaml:        "auction_timeouts_ms:\n  adjustment_factor: 0\n",
			expectedErr: "adjustment_factor must be in the range (0, 1]",
		},
		{
			desc:        "Default above max",
			yaml:        "auction_timeouts_ms:\n  default: 900\n  max: 100\n",
			expectedErr: "max cannot be less than auction_timeouts_ms.default",
		},
		{
			desc:        "Unknown rounding mode",
			yaml:        "auction:\n  price_rounding: sideways\n",
			expectedErr: "auction.price_rounding",
		},
		{
			desc:        "Adapter without endpoint",
			yaml:        "adapters:\n  somebidder:\n    disabled: false\n",
			expectedErr: "There's no default endpoint available for somebidder",
		},
		{
			desc:        "Adapter with relative endpoint",
			yaml:        "adapters:\n  somebidder:\n    endpoint: abcd.com\n",
			expectedErr: "The endpoint: abcd.com for somebidder is not a valid URL",
		},
		{
			desc:        "Negative currency fetch interval",
			yaml:        "currency_converter:\n  fetch_interval_seconds: -1\n",
			expectedErr: "currency_converter.fetch_interval_seconds",
		},
		{
			desc:        "Influx without send interval",
			yaml:        "metrics:\n  influxdb:\n    host: localhost\n    metric_send_interval: 0\n",
			expectedErr: "metric_send_interval must be positive",
		},
	}

	for _, test := range testCases {
		_, err := newConfigFromYAML(t, []byte(test.yaml))
		require.Error(t, err, test.desc)
		assert.IsType(t, errortypes.AggregateErrors{}, err, test.desc)
		assert.Contains(t, err.Error(), test.expectedErr, test.desc)
	}
}

func TestDisabledAdapterSkipsEndpointValidation(t *testing.T) {
	_, err := newConfigFromYAML(t, []byte("adapters:\n  somebidder:\n    disabled: true\n"))
	assert.NoError(t, err)
}
