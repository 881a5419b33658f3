package config

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	influxdb "github.com/vrischmann/go-metrics-influxdb"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/metrics"
	prometheusmetrics "github.com/prebid/auction-orchestrator/metrics/prometheus"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// influxRegistryPrefix namespaces every go-metrics name pushed to InfluxDB.
const influxRegistryPrefix = "auction."

// NewMetricsEngine builds one engine per configured backend. A single backend is returned as is,
// several are fanned out through a MultiMetricsEngine and none yields a NilMetricsEngine.
func NewMetricsEngine(cfg *config.Configuration, adapterList []openrtb_ext.BidderName) *DetailedMetricsEngine {
	detailed := &DetailedMetricsEngine{}
	var engines MultiMetricsEngine

	if influx := cfg.Metrics.Influxdb; influx.Host != "" {
		detailed.GoMetrics = metrics.NewMetrics(gometrics.NewPrefixedRegistry(influxRegistryPrefix), adapterList)
		engines = append(engines, detailed.GoMetrics)
		// The reporter reads the go-metrics registry, so it is not an engine of its own.
		go influxdb.InfluxDB(detailed.GoMetrics.MetricsRegistry,
			time.Duration(influx.MetricSendInterval)*time.Second,
			influx.Host, influx.Database, influx.Username, influx.Password)
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		detailed.PrometheusMetrics = prometheusmetrics.NewMetrics(cfg.Metrics.Prometheus)
		engines = append(engines, detailed.PrometheusMetrics)
	}

	switch len(engines) {
	case 0:
		detailed.MetricsEngine = &NilMetricsEngine{}
	case 1:
		detailed.MetricsEngine = engines[0]
	default:
		detailed.MetricsEngine = &engines
	}
	return detailed
}

// DetailedMetricsEngine keeps typed handles on the backends behind MetricsEngine. The server
// needs the Prometheus one to expose its gatherer.
type DetailedMetricsEngine struct {
	metrics.MetricsEngine
	GoMetrics         *metrics.Metrics
	PrometheusMetrics *prometheusmetrics.Metrics
}

// MultiMetricsEngine forwards every event to each engine in order.
type MultiMetricsEngine []metrics.MetricsEngine

// RecordRequest fans out.
func (me *MultiMetricsEngine) RecordRequest(labels metrics.Labels) {
	for _, engine := range *me {
		engine.RecordRequest(labels)
	}
}

// RecordImps fans out.
func (me *MultiMetricsEngine) RecordImps(implabels metrics.ImpLabels) {
	for _, engine := range *me {
		engine.RecordImps(implabels)
	}
}

// RecordRequestTime fans out.
func (me *MultiMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	for _, engine := range *me {
		engine.RecordRequestTime(labels, length)
	}
}

// RecordAdapterRequest fans out.
func (me *MultiMetricsEngine) RecordAdapterRequest(labels metrics.AdapterLabels) {
	for _, engine := range *me {
		engine.RecordAdapterRequest(labels)
	}
}

// RecordAdapterPanic fans out.
func (me *MultiMetricsEngine) RecordAdapterPanic(labels metrics.AdapterLabels) {
	for _, engine := range *me {
		engine.RecordAdapterPanic(labels)
	}
}

// RecordAdapterBidReceived fans out.
func (me *MultiMetricsEngine) RecordAdapterBidReceived(labels metrics.AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool) {
	for _, engine := range *me {
		engine.RecordAdapterBidReceived(labels, bidType, hasAdm)
	}
}

// RecordAdapterPrice fans out.
func (me *MultiMetricsEngine) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {
	for _, engine := range *me {
		engine.RecordAdapterPrice(labels, cpm)
	}
}

// RecordAdapterTime fans out.
func (me *MultiMetricsEngine) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
	for _, engine := range *me {
		engine.RecordAdapterTime(labels, length)
	}
}

// RecordRejectedBid fans out.
func (me *MultiMetricsEngine) RecordRejectedBid(bidder openrtb_ext.BidderName, reason string) {
	for _, engine := range *me {
		engine.RecordRejectedBid(bidder, reason)
	}
}

// RecordCurrencyConversionFailure fans out.
func (me *MultiMetricsEngine) RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName) {
	for _, engine := range *me {
		engine.RecordCurrencyConversionFailure(bidder)
	}
}

// RecordAdapterPrivacyBlocked fans out.
func (me *MultiMetricsEngine) RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName) {
	for _, engine := range *me {
		engine.RecordAdapterPrivacyBlocked(bidder)
	}
}

// RecordStoredBidResponse fans out.
func (me *MultiMetricsEngine) RecordStoredBidResponse(bidder openrtb_ext.BidderName) {
	for _, engine := range *me {
		engine.RecordStoredBidResponse(bidder)
	}
}

// RecordCategoryLookup fans out.
func (me *MultiMetricsEngine) RecordCategoryLookup(result metrics.CacheResult) {
	for _, engine := range *me {
		engine.RecordCategoryLookup(result)
	}
}

// RecordPrebidCacheRequestTime fans out.
func (me *MultiMetricsEngine) RecordPrebidCacheRequestTime(success bool, length time.Duration) {
	for _, engine := range *me {
		engine.RecordPrebidCacheRequestTime(success, length)
	}
}

// RecordConnectionAccept fans out.
func (me *MultiMetricsEngine) RecordConnectionAccept(success bool) {
	for _, engine := range *me {
		engine.RecordConnectionAccept(success)
	}
}

// RecordConnectionClose fans out.
func (me *MultiMetricsEngine) RecordConnectionClose(success bool) {
	for _, engine := range *me {
		engine.RecordConnectionClose(success)
	}
}

// NilMetricsEngine discards everything. It stands in when no backend is configured.
type NilMetricsEngine struct{}

func (me *NilMetricsEngine) RecordRequest(labels metrics.Labels) {
}

func (me *NilMetricsEngine) RecordImps(implabels metrics.ImpLabels) {
}

func (me *NilMetricsEngine) RecordRequestTime(labels metrics.Labels, length time.Duration) {
}

func (me *NilMetricsEngine) RecordAdapterRequest(labels metrics.AdapterLabels) {
}

func (me *NilMetricsEngine) RecordAdapterPanic(labels metrics.AdapterLabels) {
}

func (me *NilMetricsEngine) RecordAdapterBidReceived(labels metrics.AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool) {
}

func (me *NilMetricsEngine) RecordAdapterPrice(labels metrics.AdapterLabels, cpm float64) {
}

func (me *NilMetricsEngine) RecordAdapterTime(labels metrics.AdapterLabels, length time.Duration) {
}

func (me *NilMetricsEngine) RecordRejectedBid(bidder openrtb_ext.BidderName, reason string) {
}

func (me *NilMetricsEngine) RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName) {
}

func (me *NilMetricsEngine) RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName) {
}

func (me *NilMetricsEngine) RecordStoredBidResponse(bidder openrtb_ext.BidderName) {
}

func (me *NilMetricsEngine) RecordCategoryLookup(result metrics.CacheResult) {
}

func (me *NilMetricsEngine) RecordPrebidCacheRequestTime(success bool, length time.Duration) {
}

func (me *NilMetricsEngine) RecordConnectionAccept(success bool) {
}

func (me *NilMetricsEngine) RecordConnectionClose(success bool) {
}
