package openrtb2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/stored_responses"
)

const validRequest = `{
	"id": "some-request-id",
	"site": {"page": "prebid.org", "publisher": {"id": "pub-1"}},
	"imp": [{
		"id": "imp-1",
		"banner": {"format": [{"w": 300, "h": 250}]},
		"ext": {"prebid": {"bidder": {"appnexus": {"placementId": 12883451}}}}
	}],
	"tmax": 500
}`

func TestGoodRequest(t *testing.T) {
	ex := &recordingExchange{}
	endpoint := newTestEndpoint(t, ex, &bidderParamValidator{}, nil)

	recorder := httptest.NewRecorder()
	endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction", strings.NewReader(validRequest)), nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var response openrtb2.BidResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "some-request-id", response.ID)

	require.NotNil(t, ex.request)
	assert.Equal(t, "pub-1", ex.request.PubID)
	assert.True(t, ex.hadDeadline, "tmax should bound the auction context")
	assert.False(t, ex.debug)
}

func TestResponseBody(t *testing.T) {
	ex := &recordingExchange{response: &openrtb2.BidResponse{
		ID:  "some-request-id",
		Cur: "USD",
		SeatBid: []openrtb2.SeatBid{{
			Seat: "appnexus",
			Bid:  []openrtb2.Bid{{ID: "bid-1", ImpID: "imp-1", Price: 1.25, CrID: "creative-1"}},
		}},
	}}
	endpoint := newTestEndpoint(t, ex, &bidderParamValidator{}, nil)

	recorder := httptest.NewRecorder()
	endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction", strings.NewReader(validRequest)), nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	diffJson(t, "auction response", recorder.Body.Bytes(), []byte(`{
		"id": "some-request-id",
		"cur": "USD",
		"seatbid": [{
			"seat": "appnexus",
			"bid": [{"id": "bid-1", "impid": "imp-1", "price": 1.25, "crid": "creative-1"}]
		}]
	}`))
}

func TestDebugQueryParam(t *testing.T) {
	ex := &recordingExchange{}
	endpoint := newTestEndpoint(t, ex, &bidderParamValidator{}, nil)

	recorder := httptest.NewRecorder()
	endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction?debug=1", strings.NewReader(validRequest)), nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, ex.debug)
}

func TestBadRequests(t *testing.T) {
	testCases := []struct {
		desc    string
		request string
	}{
		{desc: "malformed json", request: `{"id":`},
		{desc: "missing id", request: `{"imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "negative tmax", request: `{"id":"r","tmax":-1,"imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "no imps", request: `{"id":"r","imp":[]}`},
		{desc: "site and app", request: `{"id":"r","site":{},"app":{},"imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "imp without media", request: `{"id":"r","imp":[{"id":"1","ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "duplicate imp ids", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}},{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "format mixing sizes and ratios", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1,"wmin":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "banner without sizes", request: `{"id":"r","imp":[{"id":"1","banner":{},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "video without mimes", request: `{"id":"r","imp":[{"id":"1","video":{},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "deal without id", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"pmp":{"deals":[{}]},"ext":{"prebid":{"bidder":{"appnexus":{}}}}}]}`},
		{desc: "no bidders", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{}}}]}`},
		{desc: "reserved bidder name", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"context":{}}}}}]}`},
		{desc: "bidder params rejected", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"rejected":{}}}}}]}`},
		{desc: "unknown stored response", request: `{"id":"r","imp":[{"id":"1","banner":{"format":[{"w":1,"h":1}]},"ext":{"prebid":{"bidder":{"appnexus":{}},"storedbidresponse":[{"bidder":"appnexus","id":"missing"}]}}}]}`},
	}

	for _, test := range testCases {
		ex := &recordingExchange{}
		endpoint := newTestEndpoint(t, ex, &bidderParamValidator{}, nil)

		recorder := httptest.NewRecorder()
		endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction", strings.NewReader(test.request)), nil)

		assert.Equal(t, http.StatusBadRequest, recorder.Code, "%s: %s", test.desc, recorder.Body.String())
		assert.Nil(t, ex.request, "%s: the auction should not run", test.desc)
	}
}

func TestOversizedRequest(t *testing.T) {
	me := &metrics.MetricsEngineMock{}
	me.On("RecordRequest", mock.Anything).Return()
	me.On("RecordRequestTime", mock.Anything, mock.Anything).Return()
	cfg := &config.Configuration{MaxRequestSize: 10}
	endpoint, err := NewEndpoint(&recordingExchange{}, &bidderParamValidator{}, nil, cfg, me)
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction", strings.NewReader(validRequest)), nil)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "max size of 10 bytes")
}

func TestAuctionErrorStatus(t *testing.T) {
	testCases := []struct {
		desc           string
		err            error
		expectedStatus int
		expectedLabel  metrics.RequestStatus
	}{
		{desc: "bad input", err: &errortypes.BadInput{Message: "bad"}, expectedStatus: http.StatusBadRequest, expectedLabel: metrics.RequestStatusBadInput},
		{desc: "timeout", err: &errortypes.Timeout{Message: "late"}, expectedStatus: http.StatusInternalServerError, expectedLabel: metrics.RequestStatusTimeout},
		{desc: "other", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedLabel: metrics.RequestStatusErr},
	}

	for _, test := range testCases {
		me := &metrics.MetricsEngineMock{}
		me.On("RecordRequest", mock.Anything).Return()
		me.On("RecordRequestTime", mock.Anything, mock.Anything).Return()

		endpoint, err := NewEndpoint(&recordingExchange{err: test.err}, &bidderParamValidator{}, nil, &config.Configuration{}, me)
		require.NoError(t, err)

		recorder := httptest.NewRecorder()
		endpoint(recorder, httptest.NewRequest("POST", "/openrtb2/auction", strings.NewReader(validRequest)), nil)

		assert.Equal(t, test.expectedStatus, recorder.Code, test.desc)
		me.AssertCalled(t, "RecordRequest", metrics.Labels{
			RType:         metrics.ReqTypeORTB2Web,
			PubID:         "pub-1",
			RequestStatus: test.expectedLabel,
		})
	}
}

func TestNewEndpointRequiresDependencies(t *testing.T) {
	_, err := NewEndpoint(nil, &bidderParamValidator{}, nil, &config.Configuration{}, &metrics.MetricsEngineMock{})
	assert.Error(t, err)
}

func TestPublisherID(t *testing.T) {
	assert.Equal(t, "site-pub", publisherID(&openrtb2.BidRequest{Site: &openrtb2.Site{Publisher: &openrtb2.Publisher{ID: "site-pub"}}}))
	assert.Equal(t, "app-pub", publisherID(&openrtb2.BidRequest{App: &openrtb2.App{Publisher: &openrtb2.Publisher{ID: "app-pub"}}}))
	assert.Equal(t, metrics.PublisherUnknown, publisherID(&openrtb2.BidRequest{}))
}

func newTestEndpoint(t *testing.T, ex exchange.Exchange, validator openrtb_ext.BidderParamValidator, fetcher stored_responses.Fetcher) httprouter.Handle {
	t.Helper()
	me := &metrics.MetricsEngineMock{}
	me.On("RecordRequest", mock.Anything).Return()
	me.On("RecordRequestTime", mock.Anything, mock.Anything).Return()
	if fetcher == nil {
		fetcher = emptyFetcher{}
	}
	cfg := &config.Configuration{MaxRequestSize: 1 << 16, AuctionTimeouts: config.AuctionTimeouts{Default: 1000, Max: 2000}}
	endpoint, err := NewEndpoint(ex, validator, fetcher, cfg, me)
	require.NoError(t, err)
	return endpoint
}

// recordingExchange answers every auction with an empty response, or err when set.
type recordingExchange struct {
	err         error
	request     *exchange.AuctionRequest
	hadDeadline bool
	debug       bool
	response    *openrtb2.BidResponse
}

func (e *recordingExchange) HoldAuction(ctx context.Context, r *exchange.AuctionRequest, debugLog *exchange.DebugLog) (*exchange.AuctionResponse, error) {
	e.request = r
	_, e.hadDeadline = ctx.Deadline()
	e.debug = debugLog.Enabled
	if e.err != nil {
		return nil, e.err
	}
	if e.response != nil {
		return &exchange.AuctionResponse{BidResponse: e.response}, nil
	}
	return &exchange.AuctionResponse{BidResponse: &openrtb2.BidResponse{ID: r.BidRequest.ID}}, nil
}

// bidderParamValidator rejects the bidder named "rejected" and accepts everything else.
type bidderParamValidator struct{}

func (v *bidderParamValidator) Validate(name openrtb_ext.BidderName, ext json.RawMessage) error {
	if name == "rejected" {
		return errors.New("params rejected")
	}
	return nil
}

func (v *bidderParamValidator) Schema(name openrtb_ext.BidderName) string {
	return "{}"
}

type emptyFetcher struct{}

func (emptyFetcher) FetchResponses(ctx context.Context, ids []string) (stored_responses.StoredResponseIdToStoredResponse, []error) {
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, stored_responses.NotFoundError{ID: id})
	}
	return nil, errs
}

// diffJson fails the test with a readable diff when actual and expected hold different JSON.
func diffJson(t *testing.T, description string, actual []byte, expected []byte) {
	t.Helper()
	diff, err := gojsondiff.New().Compare(actual, expected)
	if err != nil {
		t.Fatalf("%s json diff failed: %v", description, err)
	}
	if !diff.Modified() {
		return
	}

	var left interface{}
	if err := json.Unmarshal(actual, &left); err != nil {
		t.Fatalf("%s is not valid JSON: %v", description, err)
	}
	printer := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	output, err := printer.Format(diff)
	if err != nil {
		t.Fatalf("%s diff could not be printed: %v", description, err)
	}
	t.Errorf("%s does not match expected:\n%s", description, output)
}
