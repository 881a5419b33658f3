package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/asaskevich/govalidator"
	"github.com/spf13/viper"

	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Configuration specifies the static application config.
type Configuration struct {
	ExternalURL string `mapstructure:"external_url"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	EnableGzip  bool   `mapstructure:"enable_gzip"`
	// StatusResponse is the string which will be returned by the /status endpoint when things are OK.
	// If empty, it will return a 204 with no content.
	StatusResponse string `mapstructure:"status_response"`
	// MaxRequestSize is the largest auction body, in bytes, the server accepts.
	MaxRequestSize int64 `mapstructure:"max_request_size"`

	AuctionTimeouts   AuctionTimeouts   `mapstructure:"auction_timeouts_ms"`
	Auction           Auction           `mapstructure:"auction"`
	CacheURL          Cache             `mapstructure:"cache"`
	CurrencyConverter CurrencyConverter `mapstructure:"currency_converter"`
	CategoryMapping   CategoryMapping   `mapstructure:"category_mapping"`
	StoredResponses   StoredResponses   `mapstructure:"stored_responses"`
	RateLimit         RateLimit         `mapstructure:"rate_limit"`
	// RequestTimeoutHeaders name the headers a fronting queue uses to report how long a request waited.
	RequestTimeoutHeaders RequestTimeoutHeaders `mapstructure:"request_timeout_headers"`
	Client                HTTPClient            `mapstructure:"http_client"`
	CacheClient           HTTPClient            `mapstructure:"http_client_cache"`
	Privacy               Privacy               `mapstructure:"privacy"`
	Metrics               Metrics               `mapstructure:"metrics"`
	Adapters              map[string]Adapter    `mapstructure:"adapters"`
	// BidderInfoPath is the directory holding one <bidder>.yaml per configured adapter.
	BidderInfoPath string `mapstructure:"bidder_info_path"`
	// BidderParamsPath is the directory holding one <bidder>.json params schema per bidder.
	BidderParamsPath string `mapstructure:"bidder_params_path"`
}

// AuctionTimeouts bounds the time an auction may take, and how that time is shared out.
type AuctionTimeouts struct {
	// The default timeout is used if the user's request didn't define one. Use 0 if there's no default.
	Default uint64 `mapstructure:"default"`
	// The max timeout is used as an absolute cap, to prevent excessively long ones. Use 0 for no cap
	Max uint64 `mapstructure:"max"`
	// ExpectedCacheTime is subtracted from the auction deadline when the request asks for bids to be cached.
	ExpectedCacheTime uint64 `mapstructure:"expected_cache_time_ms"`
	// AdjustmentFactor is the share, in (0, 1], of the remaining time handed to each bidder.
	AdjustmentFactor float64 `mapstructure:"adjustment_factor"`
	// BidderNetworkLatencyBuffer is deducted from a bidder's budget to account for the round trip.
	BidderNetworkLatencyBuffer uint64 `mapstructure:"bidder_network_latency_buffer_ms"`
	// BidderLatencyBuffers overrides BidderNetworkLatencyBuffer per bidder.
	BidderLatencyBuffers map[string]uint64 `mapstructure:"bidder_latency_buffers_ms"`
}

// LimitAuctionTimeout returns the min of requested or cfg.MaxAuctionTimeout.
// Both values treat "0" as "infinite".
func (cfg *AuctionTimeouts) LimitAuctionTimeout(requested time.Duration) time.Duration {
	if requested == 0 && cfg.Default != 0 {
		return time.Duration(cfg.Default) * time.Millisecond
	}
	if cfg.Max > 0 {
		maxTimeout := time.Duration(cfg.Max) * time.Millisecond
		if requested == 0 || requested > maxTimeout {
			return maxTimeout
		}
	}
	return requested
}

// BidderDeduction is the latency buffer taken off the budget of bidder.
func (cfg *AuctionTimeouts) BidderDeduction(bidder openrtb_ext.BidderName) time.Duration {
	if ms, ok := cfg.BidderLatencyBuffers[string(bidder)]; ok {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Duration(cfg.BidderNetworkLatencyBuffer) * time.Millisecond
}

func (cfg *AuctionTimeouts) validate(errs []error) []error {
	if cfg.Max > 0 && cfg.Default > cfg.Max {
		errs = append(errs, fmt.Errorf("auction_timeouts_ms.max cannot be less than auction_timeouts_ms.default. max=%d, default=%d", cfg.Max, cfg.Default))
	}
	if cfg.AdjustmentFactor <= 0 || cfg.AdjustmentFactor > 1 {
		errs = append(errs, fmt.Errorf("auction_timeouts_ms.adjustment_factor must be in the range (0, 1]. Got %f", cfg.AdjustmentFactor))
	}
	return errs
}

// Auction holds the account-wide defaults of the auction itself.
type Auction struct {
	// PreferDeals ranks deal bids above non-deal bids unless the request says otherwise.
	PreferDeals bool `mapstructure:"prefer_deals"`
	// PriceRounding is one of floor, ceil, roundhalfup or random.
	PriceRounding string `mapstructure:"price_rounding"`
	// GenerateBidID assigns every returned bid a fresh ext.prebid.bidid.
	GenerateBidID bool `mapstructure:"generate_bid_id"`
	// DefaultCurrency is the ad server currency used when the request names none.
	DefaultCurrency string `mapstructure:"default_currency"`
}

func (cfg *Auction) validate(errs []error) []error {
	if _, err := openrtb_ext.ParsePriceRoundingMode(cfg.PriceRounding); err != nil {
		errs = append(errs, fmt.Errorf("auction.price_rounding: %v", err))
	}
	return errs
}

// CurrencyConverter configures the server-wide rate table.
type CurrencyConverter struct {
	FetchURL             string `mapstructure:"fetch_url"`
	FetchIntervalSeconds int    `mapstructure:"fetch_interval_seconds"`
	StaleRatesSeconds    int    `mapstructure:"stale_rates_seconds"`
}

func (cfg *CurrencyConverter) validate(errs []error) []error {
	if cfg.FetchIntervalSeconds < 0 {
		errs = append(errs, fmt.Errorf("currency_converter.fetch_interval_seconds must be in the range [0, %d]. Got %d", 0xffff, cfg.FetchIntervalSeconds))
	}
	if cfg.FetchURL != "" && !validator.IsURL(cfg.FetchURL) {
		errs = append(errs, fmt.Errorf("currency_converter.fetch_url: %s is not a valid URL", cfg.FetchURL))
	}
	return errs
}

// CategoryMapping points at the directory of ad server category translation tables.
type CategoryMapping struct {
	// Path is laid out as <path>/<primaryadserver>/<publisher>.json
	Path string `mapstructure:"path"`
	// URL, when set, serves lookups from a remote category service instead of Path.
	URL            string `mapstructure:"url"`
	CacheSizeBytes int    `mapstructure:"cache_size_bytes"`
	TTLSeconds     int    `mapstructure:"ttl_seconds"`
}

// StoredResponses points at the directory of stored bid responses.
type StoredResponses struct {
	Path                   string `mapstructure:"path"`
	CacheExpirySeconds     int    `mapstructure:"cache_expiry_seconds"`
	CacheCleanupIntSeconds int    `mapstructure:"cache_cleanup_interval_seconds"`
}

// Privacy holds the masking decisions the host makes itself.
type Privacy struct {
	// BlockedBidders are never sent a request.
	BlockedBidders []string `mapstructure:"blocked_bidders"`
	// EnforceLMT strips user and device ids from requests whose device sets lmt=1.
	EnforceLMT bool `mapstructure:"enforce_lmt"`
}

// RequestTimeoutHeaders are both empty when no queue fronts the server.
type RequestTimeoutHeaders struct {
	RequestTimeInQueue    string `mapstructure:"request_time_in_queue"`
	RequestTimeoutInQueue string `mapstructure:"request_timeout_in_queue"`
}

// HTTPClient tunes the connection pool of an outbound client.
type HTTPClient struct {
	MaxConnsPerHost     int `mapstructure:"max_connections_per_host"`
	MaxIdleConns        int `mapstructure:"max_idle_connections"`
	MaxIdleConnsPerHost int `mapstructure:"max_idle_connections_per_host"`
	IdleConnTimeout     int `mapstructure:"idle_connection_timeout_seconds"`
}

// RateLimit caps the auction endpoint. A zero MaxRequestsPerSecond disables it.
type RateLimit struct {
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`
}

// Metrics selects and configures the metrics engines.
type Metrics struct {
	Influxdb   InfluxMetrics     `mapstructure:"influxdb"`
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
}

type InfluxMetrics struct {
	Host     string `mapstructure:"host"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// MetricSendInterval is the number of seconds between pushes.
	MetricSendInterval int `mapstructure:"metric_send_interval"`
}

func (cfg *InfluxMetrics) validate(errs []error) []error {
	if cfg.Host != "" && cfg.MetricSendInterval <= 0 {
		errs = append(errs, fmt.Errorf("metrics.influxdb.metric_send_interval must be positive. Got %d", cfg.MetricSendInterval))
	}
	return errs
}

type PrometheusMetrics struct {
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Subsystem string `mapstructure:"subsystem"`
	// TimeoutMillisRaw bounds the time a scrape may take.
	TimeoutMillisRaw int `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) validate(errs []error) []error {
	if cfg.Port > 0 && cfg.TimeoutMillisRaw <= 0 {
		errs = append(errs, errors.New("metrics.prometheus.timeout_ms must be positive"))
	}
	return errs
}

func (cfg *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMillisRaw) * time.Millisecond
}

func (cfg *Configuration) validate() []error {
	var errs []error
	errs = cfg.AuctionTimeouts.validate(errs)
	errs = cfg.Auction.validate(errs)
	errs = cfg.CurrencyConverter.validate(errs)
	errs = cfg.CacheURL.validate(errs)
	errs = cfg.Metrics.Influxdb.validate(errs)
	errs = cfg.Metrics.Prometheus.validate(errs)
	errs = validateAdapters(cfg.Adapters, errs)
	if cfg.MaxRequestSize < 0 {
		errs = append(errs, fmt.Errorf("cfg.max_request_size must be >= 0. Got %d", cfg.MaxRequestSize))
	}
	if cfg.RateLimit.MaxRequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.max_requests_per_second must be >= 0. Got %f", cfg.RateLimit.MaxRequestsPerSecond))
	}
	return errs
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	// Adapter names are case insensitive in viper, so normalize them here.
	adapters := make(map[string]Adapter, len(c.Adapters))
	for name, adapter := range c.Adapters {
		adapters[strings.ToLower(name)] = adapter
	}
	c.Adapters = adapters

	if errs := c.validate(); len(errs) > 0 {
		return &c, errortypes.NewAggregateErrors("validation errors", errs)
	}
	return &c, nil
}

// SetupViper registers every default, binds PBS_ prefixed environment variables, and reads
// the config file named filename when one exists.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("external_url", "http://localhost:8000")
	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("status_response", "")
	v.SetDefault("max_request_size", 1024*256)
	v.SetDefault("bidder_info_path", "./static/bidder-info")
	v.SetDefault("bidder_params_path", "./static/bidder-params")

	v.SetDefault("auction_timeouts_ms.default", 0)
	v.SetDefault("auction_timeouts_ms.max", 0)
	v.SetDefault("auction_timeouts_ms.expected_cache_time_ms", 0)
	v.SetDefault("auction_timeouts_ms.adjustment_factor", 1.0)
	v.SetDefault("auction_timeouts_ms.bidder_network_latency_buffer_ms", 0)

	v.SetDefault("auction.prefer_deals", false)
	v.SetDefault("auction.price_rounding", "floor")
	v.SetDefault("auction.generate_bid_id", false)
	v.SetDefault("auction.default_currency", "USD")

	v.SetDefault("cache.scheme", "")
	v.SetDefault("cache.host", "")
	v.SetDefault("cache.query", "")
	v.SetDefault("cache.expected_millis", 10)

	v.SetDefault("currency_converter.fetch_url", "https://cdn.jsdelivr.net/gh/prebid/currency-file@1/latest.json")
	v.SetDefault("currency_converter.fetch_interval_seconds", 1800) // fetch currency rates every 30 minutes
	v.SetDefault("currency_converter.stale_rates_seconds", 0)

	v.SetDefault("category_mapping.path", "./static/category-mapping")
	v.SetDefault("category_mapping.url", "")
	v.SetDefault("category_mapping.cache_size_bytes", 10*1024*1024)
	v.SetDefault("category_mapping.ttl_seconds", 300)

	v.SetDefault("stored_responses.path", "./stored_responses/data/by_id")
	v.SetDefault("stored_responses.cache_expiry_seconds", 300)
	v.SetDefault("stored_responses.cache_cleanup_interval_seconds", 600)

	v.SetDefault("rate_limit.max_requests_per_second", 0)

	v.SetDefault("request_timeout_headers.request_time_in_queue", "")
	v.SetDefault("request_timeout_headers.request_timeout_in_queue", "")

	v.SetDefault("http_client.max_connections_per_host", 0) // unlimited
	v.SetDefault("http_client.max_idle_connections", 400)
	v.SetDefault("http_client.max_idle_connections_per_host", 10)
	v.SetDefault("http_client.idle_connection_timeout_seconds", 60)
	v.SetDefault("http_client_cache.max_connections_per_host", 0) // unlimited
	v.SetDefault("http_client_cache.max_idle_connections", 10)
	v.SetDefault("http_client_cache.max_idle_connections_per_host", 2)
	v.SetDefault("http_client_cache.idle_connection_timeout_seconds", 60)

	v.SetDefault("privacy.blocked_bidders", []string{})
	v.SetDefault("privacy.enforce_lmt", true)

	v.SetDefault("metrics.influxdb.host", "")
	v.SetDefault("metrics.influxdb.database", "")
	v.SetDefault("metrics.influxdb.username", "")
	v.SetDefault("metrics.influxdb.password", "")
	v.SetDefault("metrics.influxdb.metric_send_interval", 20)
	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PBS")
	v.AutomaticEnv()

	if filename != "" {
		v.ReadInConfig()
	}
}
