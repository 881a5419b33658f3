package metrics

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

// MetricsEngineMock is mock for the MetricsEngine interface
type MetricsEngineMock struct {
	mock.Mock
}

// RecordRequest mock
func (me *MetricsEngineMock) RecordRequest(labels Labels) {
	me.Called(labels)
}

// RecordImps mock
func (me *MetricsEngineMock) RecordImps(labels ImpLabels) {
	me.Called(labels)
}

// RecordRequestTime mock
func (me *MetricsEngineMock) RecordRequestTime(labels Labels, length time.Duration) {
	me.Called(labels, length)
}

// RecordAdapterRequest mock
func (me *MetricsEngineMock) RecordAdapterRequest(labels AdapterLabels) {
	me.Called(labels)
}

// RecordAdapterPanic mock
func (me *MetricsEngineMock) RecordAdapterPanic(labels AdapterLabels) {
	me.Called(labels)
}

// RecordAdapterBidReceived mock
func (me *MetricsEngineMock) RecordAdapterBidReceived(labels AdapterLabels, bidType openrtb_ext.BidType, hasAdm bool) {
	me.Called(labels, bidType, hasAdm)
}

// RecordAdapterPrice mock
func (me *MetricsEngineMock) RecordAdapterPrice(labels AdapterLabels, cpm float64) {
	me.Called(labels, cpm)
}

// RecordAdapterTime mock
func (me *MetricsEngineMock) RecordAdapterTime(labels AdapterLabels, length time.Duration) {
	me.Called(labels, length)
}

// RecordRejectedBid mock
func (me *MetricsEngineMock) RecordRejectedBid(bidder openrtb_ext.BidderName, reason string) {
	me.Called(bidder, reason)
}

// RecordCurrencyConversionFailure mock
func (me *MetricsEngineMock) RecordCurrencyConversionFailure(bidder openrtb_ext.BidderName) {
	me.Called(bidder)
}

// RecordAdapterPrivacyBlocked mock
func (me *MetricsEngineMock) RecordAdapterPrivacyBlocked(bidder openrtb_ext.BidderName) {
	me.Called(bidder)
}

// RecordStoredBidResponse mock
func (me *MetricsEngineMock) RecordStoredBidResponse(bidder openrtb_ext.BidderName) {
	me.Called(bidder)
}

// RecordCategoryLookup mock
func (me *MetricsEngineMock) RecordCategoryLookup(result CacheResult) {
	me.Called(result)
}

// RecordPrebidCacheRequestTime mock
func (me *MetricsEngineMock) RecordPrebidCacheRequestTime(success bool, length time.Duration) {
	me.Called(success, length)
}

// RecordConnectionAccept mock
func (me *MetricsEngineMock) RecordConnectionAccept(success bool) {
	me.Called(success)
}

// RecordConnectionClose mock
func (me *MetricsEngineMock) RecordConnectionClose(success bool) {
	me.Called(success)
}
