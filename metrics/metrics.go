package metrics

import (
	"time"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// Labels defines the labels that can be attached to the metrics.
type Labels struct {
	RType         RequestType
	PubID         string // exchange specific ID, so we cannot compile in values
	RequestStatus RequestStatus
}

// AdapterLabels defines the labels that can be attached to the adapter metrics.
type AdapterLabels struct {
	Adapter       openrtb_ext.BidderName
	AdapterBids   AdapterBid
	AdapterErrors map[AdapterError]struct{}
}

// ImpLabels defines metric labels describing the impression type.
type ImpLabels struct {
	BannerImps bool
	VideoImps  bool
	AudioImps  bool
	NativeImps bool
}

// RequestType : Request type enumeration
type RequestType string

// RequestStatus : The request return status
type RequestStatus string

// AdapterBid : Whether or not the adapter returned bids
type AdapterBid string

// AdapterError : Errors which may have occurred during the adapter's execution
type AdapterError string

// CacheResult : Cache hit/miss
type CacheResult string

// PublisherUnknown : Default value for Labels.PubID
const PublisherUnknown = "unknown"

// The request types (endpoints)
const (
	ReqTypeORTB2Web RequestType = "openrtb2-web"
	ReqTypeORTB2App RequestType = "openrtb2-app"
)

func RequestTypes() []RequestType {
	return []RequestType{
		ReqTypeORTB2Web,
		ReqTypeORTB2App,
	}
}

// Request/return status
const (
	RequestStatusOK       RequestStatus = "ok"
	RequestStatusBadInput RequestStatus = "badinput"
	RequestStatusErr      RequestStatus = "err"
	RequestStatusTimeout  RequestStatus = "timeout"
)

func RequestStatuses() []RequestStatus {
	return []RequestStatus{
		RequestStatusOK,
		RequestStatusBadInput,
		RequestStatusErr,
		RequestStatusTimeout,
	}
}

// Adapter bid response status.
const (
	AdapterBidPresent AdapterBid = "bid"
	AdapterBidNone    AdapterBid = "nobid"
)

func AdapterBids() []AdapterBid {
	return []AdapterBid{
		AdapterBidPresent,
		AdapterBidNone,
	}
}

// Adapter execution status
const (
	AdapterErrorBadInput             AdapterError = "badinput"
	AdapterErrorBadServerResponse    AdapterError = "badserverresponse"
	AdapterErrorTimeout              AdapterError = "timeout"
	AdapterErrorFailedToRequestBids  AdapterError = "failedtorequestbid"
	AdapterErrorInvalidBid           AdapterError = "invalidbid"
	AdapterErrorUnacceptableCurrency AdapterError = "unacceptablecurrency"
	AdapterErrorUnknown              AdapterError = "unknown_error"
)

func AdapterErrors() []AdapterError {
	return []AdapterError{
		AdapterErrorBadInput,
		AdapterErrorBadServerResponse,
		AdapterErrorTimeout,
		AdapterErrorFailedToRequestBids,
		AdapterErrorInvalidBid,
		AdapterErrorUnacceptableCurrency,
		AdapterErrorUnknown,
	}
}

const (
	// CacheHit represents a cache hit i.e the key was found in cache
	CacheHit CacheResult = "hit"
	// CacheMiss represents a cache miss i.e that key wasn't found in cache
	// and had to be fetched from the backend
	CacheMiss CacheResult = "miss"
)

// CacheResults returns possible cache results i.e. cache hit or miss
func CacheResults() []CacheResult {
	return []CacheResult{
		CacheHit,
		CacheMiss,
	}
}

// RejectionReasons lists the label values of RecordRejectedBid. They mirror the auction's
// rejection taxonomy plus the auction-stage removals.
func RejectionReasons() []string {
	return []string{
		"bad_input",
		"bad_server_response",
		"failed_to_request_bids",
		"timeout",
		"invalid_bid",
		"unacceptable_currency",
		"generic",
		"category_mapping",
		"deduplicated",
	}
}

// MetricsEngine is a generic interface to record auction metrics into the desired backend.
// The request metrics fire once per incoming auction. The adapter metrics fire once per
// bidder taking part, so the two groups should not be compared with each other.
type MetricsEngine interface {
	RecordRequest(labels Labels)
	RecordImps(labels ImpLabels)
	RecordRequestTime(labels Labels, length time.Duration)
	RecordAdapterRequest(labels AdapterLabels)
	RecordAdapterPanic(labels AdapterLabels)
	// This records whether or not a bid of a particular type uses `adm` or `nurl`.
	RecordAdapterBidReceived(labels AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool)
	RecordAdapterPrice(labels AdapterLabels, cpm float64)
	RecordAdapterTime(labels AdapterLabels, length time.Duration)
	RecordRejectedBid(bidder openrtb_ext.BidderName, reason string)
	RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName)
	RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName)
	RecordStoredBidResponse(bidder openrtb_ext.BidderName)
	RecordCategoryLookup(result CacheResult)
	RecordPrebidCacheRequestTime(success bool, length time.Duration)
	RecordConnectionAccept(success bool)
	RecordConnectionClose(success bool)
}
