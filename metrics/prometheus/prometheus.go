package prometheusmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registerer prometheus.Registerer
	Gatherer   *prometheus.Registry

	// General Metrics
	impressions      *prometheus.CounterVec
	requests         *prometheus.CounterVec
	requestsTimer    *prometheus.HistogramVec
	categoryLookups  *prometheus.CounterVec
	prebidCacheTimer *prometheus.HistogramVec
	connections      *prometheus.CounterVec

	// Adapter Metrics
	adapterBids               *prometheus.CounterVec
	adapterErrors             *prometheus.CounterVec
	adapterPanics             *prometheus.CounterVec
	adapterPrices             *prometheus.HistogramVec
	adapterRequests           *prometheus.CounterVec
	adapterRequestsTimer      *prometheus.HistogramVec
	adapterRejectedBids       *prometheus.CounterVec
	adapterConversionFailures *prometheus.CounterVec
	adapterPrivacyBlocked     *prometheus.CounterVec
	adapterStoredBidResponses *prometheus.CounterVec
}

const (
	adapterErrorLabel     = "adapter_error"
	adapterLabel          = "adapter"
	cacheResultLabel      = "cache_result"
	connectionActionLabel = "action"
	hasBidsLabel          = "has_bids"
	isAudioLabel          = "audio"
	isBannerLabel         = "banner"
	isNativeLabel         = "native"
	isVideoLabel          = "video"
	markupDeliveryLabel   = "delivery"
	rejectReasonLabel     = "reason"
	requestStatusLabel    = "request_status"
	requestTypeLabel      = "request_type"
	successLabel          = "success"
)

const (
	markupDeliveryAdm  = "adm"
	markupDeliveryNurl = "nurl"
)

// NewMetrics initializes a new Prometheus metrics instance with preloaded label values.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	standardTimeBuckets := []float64{0.05, 0.1, 0.15, 0.20, 0.25, 0.3, 0.4, 0.5, 0.75, 1}
	cacheWriteTimeBuckets := []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1}
	priceBuckets := []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 50}

	reg := prometheus.NewRegistry()
	metrics := Metrics{}
	metrics.Registerer = prometheus.WrapRegistererWithPrefix("", reg)
	metrics.Gatherer = reg

	metrics.impressions = newCounter(cfg, reg,
		"impressions_requests",
		"Count of requested impressions to Prebid Server labeled by type.",
		[]string{isBannerLabel, isVideoLabel, isAudioLabel, isNativeLabel})

	metrics.requests = newCounter(cfg, reg,
		"requests",
		"Count of total requests to Prebid Server labeled by type and status.",
		[]string{requestTypeLabel, requestStatusLabel})

	metrics.requestsTimer = newHistogramVec(cfg, reg,
		"request_time_seconds",
		"Seconds to resolve successful Prebid Server requests labeled by type.",
		[]string{requestTypeLabel},
		standardTimeBuckets)

	metrics.categoryLookups = newCounter(cfg, reg,
		"category_lookups",
		"Count of category translations served from cache, labeled by hit or miss.",
		[]string{cacheResultLabel})

	metrics.prebidCacheTimer = newHistogramVec(cfg, reg,
		"prebid_cache_write_time_seconds",
		"Seconds to write to Prebid Cache labeled by success or failure.",
		[]string{successLabel},
		cacheWriteTimeBuckets)

	metrics.connections = newCounter(cfg, reg,
		"connections",
		"Count of accepted and closed connections, labeled by outcome.",
		[]string{connectionActionLabel, successLabel})

	metrics.adapterBids = newCounter(cfg, reg,
		"adapter_bids",
		"Count of bids labeled by adapter and markup delivery type (adm or nurl).",
		[]string{adapterLabel, markupDeliveryLabel})

	metrics.adapterErrors = newCounter(cfg, reg,
		"adapter_errors",
		"Count of errors labeled by adapter and error type.",
		[]string{adapterLabel, adapterErrorLabel})

	metrics.adapterPanics = newCounter(cfg, reg,
		"adapter_panics",
		"Count of panics labeled by adapter.",
		[]string{adapterLabel})

	metrics.adapterPrices = newHistogramVec(cfg, reg,
		"adapter_prices",
		"Monetary value of the bids labeled by adapter.",
		[]string{adapterLabel},
		priceBuckets)

	metrics.adapterRequests = newCounter(cfg, reg,
		"adapter_requests",
		"Count of requests labeled by adapter and whether they returned bids.",
		[]string{adapterLabel, hasBidsLabel})

	metrics.adapterRequestsTimer = newHistogramVec(cfg, reg,
		"adapter_request_time_seconds",
		"Seconds to resolve each successful request labeled by adapter.",
		[]string{adapterLabel},
		standardTimeBuckets)

	metrics.adapterRejectedBids = newCounter(cfg, reg,
		"adapter_rejected_bids",
		"Count of bids and imps rejected labeled by adapter and reason.",
		[]string{adapterLabel, rejectReasonLabel})

	metrics.adapterConversionFailures = newCounter(cfg, reg,
		"adapter_currency_conversion_failures",
		"Count of bids dropped for lack of a conversion rate, labeled by adapter.",
		[]string{adapterLabel})

	metrics.adapterPrivacyBlocked = newCounter(cfg, reg,
		"adapter_privacy_blocked",
		"Count of auctions an adapter was left out of by privacy enforcement.",
		[]string{adapterLabel})

	metrics.adapterStoredBidResponses = newCounter(cfg, reg,
		"adapter_stored_bid_responses",
		"Count of auctions an adapter was answered by a stored bid response.",
		[]string{adapterLabel})

	preloadLabelValues(&metrics)

	return &metrics
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newHistogramVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	histogram := prometheus.NewHistogramVec(opts, labels)
	registry.MustRegister(histogram)
	return histogram
}

func (m *Metrics) RecordRequest(labels metrics.Labels) {
	m.requests.With(prometheus.Labels{
		requestTypeLabel:   string(labels.RType),
		requestStatusLabel: string(labels.RequestStatus),
	}).Inc()
}

func (m *Metrics) RecordImps(labels metrics.ImpLabels) {
	m.impressions.With(prometheus.Labels{
		isBannerLabel: strconv.FormatBool(labels.BannerImps),
		isVideoLabel:  strconv.FormatBool(labels.VideoImps),
		isAudioLabel:  strconv.FormatBool(labels.AudioImps),
		isNativeLabel: strconv.FormatBool(labels.NativeImps),
	}).Inc()
}

func (m *Metrics) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	if labels.RequestStatus == metrics.RequestStatusOK {
		m.requestsTimer.With(prometheus.Labels{
			requestTypeLabel: string(labels.RType),
		}).Observe(length.Seconds())
	}
}

func (m *Metrics) RecordAdapterRequest(labels metrics.AdapterLabels) {
	m.adapterRequests.With(prometheus.Labels{
		adapterLabel: string(labels.Adapter),
		hasBidsLabel: strconv.FormatBool(labels.AdapterBids == metrics.AdapterBidPresent),
	}).Inc()

	for err := range labels.AdapterErrors {
		m.adapterErrors.With(prometheus.Labels{
			adapterLabel:      string(labels.Adapter),
			adapterErrorLabel: string(err),
		}).Inc()
	}
}

func (m *Metrics) RecordAdapterPanic(labels metrics.AdapterLabels) {
	m.adapterPanics.With(prometheus.Labels{
		adapterLabel: string(labels.Adapter),
	}).Inc()
}

func (m *Metrics) RecordAdapterBidReceived(labels metrics.AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool) {
	markupDelivery := markupDeliveryNurl
	if hasAdm {
		markupDelivery = markupDeliveryAdm
	}

	m.adapterBids.With(prometheus.Labels{
		adapterLabel:        string(labels.Adapter),
		markupDeliveryLabel: markupDelivery,
	}).Inc()
}

func (m *Metrics) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {
	m.adapterPrices.With(prometheus.Labels{
		adapterLabel: string(labels.Adapter),
	}).Observe(cpm)
}

func (m *Metrics) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
	if len(labels.AdapterErrors) == 0 {
		m.adapterRequestsTimer.With(prometheus.Labels{
			adapterLabel: string(labels.Adapter),
		}).Observe(length.Seconds())
	}
}

func (m *Metrics) RecordRejectedBid(bidder openrtb_ext.BidderName, reason string) {
	m.adapterRejectedBids.With(prometheus.Labels{
		adapterLabel:      string(bidder),
		rejectReasonLabel: reason,
	}).Inc()
}

func (m *Metrics) RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName) {
	m.adapterConversionFailures.With(prometheus.Labels{
		adapterLabel: string(bidder),
	}).Inc()
}

func (m *Metrics) RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName) {
	m.adapterPrivacyBlocked.With(prometheus.Labels{
		adapterLabel: string(bidder),
	}).Inc()
}

func (m *Metrics) RecordStoredBidResponse(bidder openrtb_ext.BidderName) {
	m.adapterStoredBidResponses.With(prometheus.Labels{
		adapterLabel: string(bidder),
	}).Inc()
}

func (m *Metrics) RecordCategoryLookup(result metrics.CacheResult) {
	m.categoryLookups.With(prometheus.Labels{
		cacheResultLabel: string(result),
	}).Inc()
}

func (m *Metrics) RecordPrebidCacheRequestTime(success bool, length time.Duration) {
	m.prebidCacheTimer.With(prometheus.Labels{
		successLabel: strconv.FormatBool(success),
	}).Observe(length.Seconds())
}

func (m *Metrics) RecordConnectionAccept(success bool) {
	m.connections.With(prometheus.Labels{
		connectionActionLabel: "accept",
		successLabel:          strconv.FormatBool(success),
	}).Inc()
}

func (m *Metrics) RecordConnectionClose(success bool) {
	m.connections.With(prometheus.Labels{
		connectionActionLabel: "close",
		successLabel:          strconv.FormatBool(success),
	}).Inc()
}
