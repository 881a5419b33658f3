package metrics

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/rcrowley/go-metrics"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Metrics is the go-metrics implementation of MetricsEngine.
type Metrics struct {
	MetricsRegistry metrics.Registry
	ImpMeter        metrics.Meter
	AppRequestMeter metrics.Meter
	RequestTimer    metrics.Timer
	RequestStatuses map[RequestType]map[RequestStatus]metrics.Meter
	ImpsTypeBanner  metrics.Meter
	ImpsTypeVideo   metrics.Meter
	ImpsTypeAudio   metrics.Meter
	ImpsTypeNative  metrics.Meter

	ConnectionCounter          metrics.Counter
	ConnectionAcceptErrorMeter metrics.Meter
	ConnectionCloseErrorMeter  metrics.Meter

	CategoryLookups                map[CacheResult]metrics.Meter
	PrebidCacheRequestTimerSuccess metrics.Timer
	PrebidCacheRequestTimerError   metrics.Timer

	AdapterMetrics map[openrtb_ext.BidderName]*AdapterMetrics

	exchanges []openrtb_ext.BidderName
}

// AdapterMetrics houses the metrics for a particular adapter
type AdapterMetrics struct {
	RequestMeter         metrics.Meter
	NoBidMeter           metrics.Meter
	GotBidsMeter         metrics.Meter
	ErrorMeters          map[AdapterError]metrics.Meter
	PanicMeter           metrics.Meter
	PrivacyBlockedMeter  metrics.Meter
	StoredResponseMeter  metrics.Meter
	ConversionErrorMeter metrics.Meter
	RejectedBidMeters    map[string]metrics.Meter
	RequestTimer         metrics.Timer
	PriceHistogram       metrics.Histogram
	BidsReceivedMeter    metrics.Meter
	MarkupMetrics        map[openrtb_ext.BidType]*MarkupDeliveryMetrics
}

type MarkupDeliveryMetrics struct {
	AdmMeter  metrics.Meter
	NurlMeter metrics.Meter
}

// NewBlankMetrics creates a new Metrics object with all blank metrics object. This may also be useful for
// testing routines to ensure that no metrics are written anywhere.
func NewBlankMetrics(registry metrics.Registry, exchanges []openrtb_ext.BidderName) *Metrics {
	blankMeter := &metrics.NilMeter{}
	newMetrics := &Metrics{
		MetricsRegistry: registry,
		RequestStatuses: make(map[RequestType]map[RequestStatus]metrics.Meter),
		ImpMeter:        blankMeter,
		AppRequestMeter: blankMeter,
		RequestTimer:    &metrics.NilTimer{},
		ImpsTypeBanner:  blankMeter,
		ImpsTypeVideo:   blankMeter,
		ImpsTypeAudio:   blankMeter,
		ImpsTypeNative:  blankMeter,

		ConnectionCounter:          metrics.NilCounter{},
		ConnectionAcceptErrorMeter: blankMeter,
		ConnectionCloseErrorMeter:  blankMeter,

		CategoryLookups:                make(map[CacheResult]metrics.Meter),
		PrebidCacheRequestTimerSuccess: &metrics.NilTimer{},
		PrebidCacheRequestTimerError:   &metrics.NilTimer{},

		AdapterMetrics: make(map[openrtb_ext.BidderName]*AdapterMetrics, len(exchanges)),

		exchanges: exchanges,
	}
	for _, a := range exchanges {
		newMetrics.AdapterMetrics[a] = makeBlankAdapterMetrics()
	}

	for _, t := range RequestTypes() {
		newMetrics.RequestStatuses[t] = make(map[RequestStatus]metrics.Meter)
		for _, s := range RequestStatuses() {
			newMetrics.RequestStatuses[t][s] = blankMeter
		}
	}
	for _, r := range CacheResults() {
		newMetrics.CategoryLookups[r] = blankMeter
	}

	return newMetrics
}

// NewMetrics creates a new Metrics object with needed metrics defined, registered under the
// go-metrics registry so a reporter can push them.
func NewMetrics(registry metrics.Registry, exchanges []openrtb_ext.BidderName) *Metrics {
	newMetrics := NewBlankMetrics(registry, exchanges)
	newMetrics.ImpMeter = metrics.GetOrRegisterMeter("imps_requested", registry)
	newMetrics.AppRequestMeter = metrics.GetOrRegisterMeter("app_requests", registry)
	newMetrics.RequestTimer = metrics.GetOrRegisterTimer("request_time", registry)
	newMetrics.ImpsTypeBanner = metrics.GetOrRegisterMeter("imp_banner", registry)
	newMetrics.ImpsTypeVideo = metrics.GetOrRegisterMeter("imp_video", registry)
	newMetrics.ImpsTypeAudio = metrics.GetOrRegisterMeter("imp_audio", registry)
	newMetrics.ImpsTypeNative = metrics.GetOrRegisterMeter("imp_native", registry)
	newMetrics.ConnectionCounter = metrics.GetOrRegisterCounter("active_connections", registry)
	newMetrics.ConnectionAcceptErrorMeter = metrics.GetOrRegisterMeter("connection_accept_errors", registry)
	newMetrics.ConnectionCloseErrorMeter = metrics.GetOrRegisterMeter("connection_close_errors", registry)
	newMetrics.PrebidCacheRequestTimerSuccess = metrics.GetOrRegisterTimer("prebid_cache_request_time.ok", registry)
	newMetrics.PrebidCacheRequestTimerError = metrics.GetOrRegisterTimer("prebid_cache_request_time.err", registry)

	for _, a := range exchanges {
		registerAdapterMetrics(registry, "adapter", string(a), newMetrics.AdapterMetrics[a])
	}
	for typ, statusMap := range newMetrics.RequestStatuses {
		for stat := range statusMap {
			statusMap[stat] = metrics.GetOrRegisterMeter("requests."+string(stat)+"."+string(typ), registry)
		}
	}
	for result := range newMetrics.CategoryLookups {
		newMetrics.CategoryLookups[result] = metrics.GetOrRegisterMeter("category_lookups."+string(result), registry)
	}
	return newMetrics
}

// Part of setting up blank metrics, the adapter metrics.
func makeBlankAdapterMetrics() *AdapterMetrics {
	blankMeter := &metrics.NilMeter{}
	newAdapter := &AdapterMetrics{
		RequestMeter:         blankMeter,
		NoBidMeter:           blankMeter,
		GotBidsMeter:         blankMeter,
		ErrorMeters:          make(map[AdapterError]metrics.Meter),
		PanicMeter:           blankMeter,
		PrivacyBlockedMeter:  blankMeter,
		StoredResponseMeter:  blankMeter,
		ConversionErrorMeter: blankMeter,
		RejectedBidMeters:    make(map[string]metrics.Meter),
		RequestTimer:         &metrics.NilTimer{},
		PriceHistogram:       &metrics.NilHistogram{},
		BidsReceivedMeter:    blankMeter,
		MarkupMetrics:        make(map[openrtb_ext.BidType]*MarkupDeliveryMetrics),
	}
	for _, err := range AdapterErrors() {
		newAdapter.ErrorMeters[err] = blankMeter
	}
	for _, reason := range RejectionReasons() {
		newAdapter.RejectedBidMeters[reason] = blankMeter
	}
	for _, bidType := range openrtb_ext.BidTypes() {
		newAdapter.MarkupMetrics[bidType] = &MarkupDeliveryMetrics{
			AdmMeter:  blankMeter,
			NurlMeter: blankMeter,
		}
	}
	return newAdapter
}

func registerAdapterMetrics(registry metrics.Registry, adapterOrAccount string, exchange string, am *AdapterMetrics) {
	prefix := adapterOrAccount + "." + exchange
	am.RequestMeter = metrics.GetOrRegisterMeter(prefix+".requests", registry)
	am.NoBidMeter = metrics.GetOrRegisterMeter(prefix+".requests.nobid", registry)
	am.GotBidsMeter = metrics.GetOrRegisterMeter(prefix+".requests.gotbids", registry)
	am.PanicMeter = metrics.GetOrRegisterMeter(prefix+".requests.panic", registry)
	am.PrivacyBlockedMeter = metrics.GetOrRegisterMeter(prefix+".requests.privacy_blocked", registry)
	am.StoredResponseMeter = metrics.GetOrRegisterMeter(prefix+".requests.stored_response", registry)
	am.ConversionErrorMeter = metrics.GetOrRegisterMeter(prefix+".currency_conversion_errors", registry)
	am.RequestTimer = metrics.GetOrRegisterTimer(prefix+".request_time", registry)
	am.PriceHistogram = metrics.GetOrRegisterHistogram(prefix+".prices", registry, metrics.NewExpDecaySample(1028, 0.015))
	am.BidsReceivedMeter = metrics.GetOrRegisterMeter(prefix+".bids_received", registry)
	for err := range am.ErrorMeters {
		am.ErrorMeters[err] = metrics.GetOrRegisterMeter(fmt.Sprintf("%s.requests.%s", prefix, err), registry)
	}
	for reason := range am.RejectedBidMeters {
		am.RejectedBidMeters[reason] = metrics.GetOrRegisterMeter(fmt.Sprintf("%s.rejected_bids.%s", prefix, reason), registry)
	}
	for bidType, mdm := range am.MarkupMetrics {
		mdm.AdmMeter = metrics.GetOrRegisterMeter(prefix+"."+string(bidType)+".adm_bids_received", registry)
		mdm.NurlMeter = metrics.GetOrRegisterMeter(prefix+"."+string(bidType)+".nurl_bids_received", registry)
	}
}

func (me *Metrics) adapterMetrics(adapter openrtb_ext.BidderName, what string) (*AdapterMetrics, bool) {
	am, ok := me.AdapterMetrics[adapter]
	if !ok {
		glog.Errorf("Trying to run adapter %s metrics on %s: adapter metrics not found", what, string(adapter))
	}
	return am, ok
}

// RecordRequest implements a part of the MetricsEngine interface
func (me *Metrics) RecordRequest(labels Labels) {
	if statuses, ok := me.RequestStatuses[labels.RType]; ok {
		if meter, ok := statuses[labels.RequestStatus]; ok {
			meter.Mark(1)
		}
	}
	if labels.RType == ReqTypeORTB2App {
		me.AppRequestMeter.Mark(1)
	}
}

// RecordImps implements a part of the MetricsEngine interface
func (me *Metrics) RecordImps(labels ImpLabels) {
	me.ImpMeter.Mark(1)
	if labels.BannerImps {
		me.ImpsTypeBanner.Mark(1)
	}
	if labels.VideoImps {
		me.ImpsTypeVideo.Mark(1)
	}
	if labels.AudioImps {
		me.ImpsTypeAudio.Mark(1)
	}
	if labels.NativeImps {
		me.ImpsTypeNative.Mark(1)
	}
}

// RecordRequestTime implements a part of the MetricsEngine interface. The calling code is responsible
// for determining the call duration.
func (me *Metrics) RecordRequestTime(labels Labels, length time.Duration) {
	// Only record times for successful requests, as we don't have labels to screen out bad requests.
	if labels.RequestStatus == RequestStatusOK {
		me.RequestTimer.Update(length)
	}
}

// RecordAdapterRequest implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdapterRequest(labels AdapterLabels) {
	am, ok := me.adapterMetrics(labels.Adapter, "request")
	if !ok {
		return
	}

	am.RequestMeter.Mark(1)
	switch labels.AdapterBids {
	case AdapterBidNone:
		am.NoBidMeter.Mark(1)
	case AdapterBidPresent:
		am.GotBidsMeter.Mark(1)
	}
	for err := range labels.AdapterErrors {
		if meter, ok := am.ErrorMeters[err]; ok {
			meter.Mark(1)
		}
	}
}

// RecordAdapterPanic implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdapterPanic(labels AdapterLabels) {
	if am, ok := me.adapterMetrics(labels.Adapter, "panic"); ok {
		am.PanicMeter.Mark(1)
	}
}

// RecordAdapterBidReceived implements a part of the MetricsEngine interface.
// This tracks how many bids from each Bidder use `adm` vs. `nurl.
func (me *Metrics) RecordAdapterBidReceived(labels AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool) {
	am, ok := me.adapterMetrics(labels.Adapter, "bid")
	if !ok {
		return
	}

	am.BidsReceivedMeter.Mark(1)
	if metricsForType, ok := am.MarkupMetrics[bidType]; ok {
		if hasAdm {
			metricsForType.AdmMeter.Mark(1)
		} else {
			metricsForType.NurlMeter.Mark(1)
		}
	} else {
		glog.Errorf("bid/adm metrics map entry does not exist for type %s. This is a bug, and should be reported.", bidType)
	}
}

// RecordAdapterPrice implements a part of the MetricsEngine interface. Generates a histogram of winning bid prices
func (me *Metrics) RecordAdapterPrice(labels AdapterLabels, cpm float64) {
	if am, ok := me.adapterMetrics(labels.Adapter, "price"); ok {
		am.PriceHistogram.Update(int64(cpm))
	}
}

// RecordAdapterTime implements a part of the MetricsEngine interface. Records the adapter response time
func (me *Metrics) RecordAdapterTime(labels AdapterLabels, length time.Duration) {
	if am, ok := me.adapterMetrics(labels.Adapter, "latency"); ok {
		am.RequestTimer.Update(length)
	}
}

// RecordRejectedBid implements a part of the MetricsEngine interface
func (me *Metrics) RecordRejectedBid(bidder openrtb_ext.BidderName, reason string) {
	am, ok := me.adapterMetrics(bidder, "rejection")
	if !ok {
		return
	}
	if meter, ok := am.RejectedBidMeters[reason]; ok {
		meter.Mark(1)
	}
}

// RecordCurrencyConversionFailure implements a part of the MetricsEngine interface
func (me *Metrics) RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName) {
	if am, ok := me.adapterMetrics(bidder, "currency"); ok {
		am.ConversionErrorMeter.Mark(1)
	}
}

// RecordAdapterPrivacyBlocked implements a part of the MetricsEngine interface
func (me *Metrics) RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName) {
	if am, ok := me.adapterMetrics(bidder, "privacy"); ok {
		am.PrivacyBlockedMeter.Mark(1)
	}
}

// RecordStoredBidResponse implements a part of the MetricsEngine interface
func (me *Metrics) RecordStoredBidResponse(bidder openrtb_ext.BidderName) {
	if am, ok := me.adapterMetrics(bidder, "stored response"); ok {
		am.StoredResponseMeter.Mark(1)
	}
}

// RecordCategoryLookup implements a part of the MetricsEngine interface
func (me *Metrics) RecordCategoryLookup(result CacheResult) {
	if meter, ok := me.CategoryLookups[result]; ok {
		meter.Mark(1)
	}
}

// RecordPrebidCacheRequestTime implements a part of the MetricsEngine interface
func (me *Metrics) RecordPrebidCacheRequestTime(success bool, length time.Duration) {
	if success {
		me.PrebidCacheRequestTimerSuccess.Update(length)
	} else {
		me.PrebidCacheRequestTimerError.Update(length)
	}
}

// RecordConnectionAccept implements a part of the MetricsEngine interface
func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.ConnectionCounter.Inc(1)
	} else {
		me.ConnectionAcceptErrorMeter.Mark(1)
	}
}

// RecordConnectionClose implements a part of the MetricsEngine interface
func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.ConnectionCounter.Dec(1)
	} else {
		me.ConnectionCloseErrorMeter.Mark(1)
	}
}
