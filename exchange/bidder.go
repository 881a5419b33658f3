package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"
	"golang.org/x/net/context/ctxhttp"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

var authorizationHeader = http.CanonicalHeaderKey("authorization")

// httpTransport posts the derived OpenRTB request of a bidder to its configured endpoint.
type httpTransport struct {
	client    *http.Client
	endpoints map[openrtb_ext.BidderName]string
}

// NewHTTPTransport returns a Transport calling the endpoints of every enabled adapter.
func NewHTTPTransport(client *http.Client, adapters map[string]config.Adapter) Transport {
	endpoints := make(map[openrtb_ext.BidderName]string, len(adapters))
	for name, adapter := range adapters {
		if !adapter.Disabled {
			endpoints[openrtb_ext.BidderName(name)] = adapter.Endpoint
		}
	}
	return &httpTransport{client: client, endpoints: endpoints}
}

type httpCallInfo struct {
	uri          string
	requestBody  []byte
	headers      http.Header
	statusCode   int
	responseBody []byte
	err          error
}

func (t *httpTransport) RequestBids(ctx context.Context, bidder openrtb_ext.BidderName, request *openrtb2.BidRequest, debug bool) *BidderResult {
	endpoint, ok := t.endpoints[bidder]
	if !ok {
		return failedResult(bidder, &errortypes.BadInput{Message: fmt.Sprintf("No endpoint is configured for bidder %s", bidder)})
	}
	body, err := json.Marshal(request)
	if err != nil {
		return failedResult(bidder, &errortypes.BadInput{Message: fmt.Sprintf("Failed to marshal the request of bidder %s: %v", bidder, err)})
	}

	call := t.doRequest(ctx, endpoint, body)
	result := &BidderResult{Bidder: bidder}
	if debug {
		result.SeatBid = &entities.PbsOrtbSeatBid{Seat: string(bidder), HttpCalls: []*openrtb_ext.ExtHttpCall{makeExt(call)}}
	}
	if call.err != nil {
		return result.withErrors(call.err)
	}
	if call.statusCode == http.StatusNoContent {
		return result
	}

	var response openrtb2.BidResponse
	if err := json.Unmarshal(call.responseBody, &response); err != nil {
		return result.withErrors(&errortypes.BadServerResponse{Message: fmt.Sprintf("Failed to parse the response of bidder %s: %v", bidder, err)})
	}
	bids, errs := bidsFromResponse(&response, request)
	return result.withBids(bids).withCurrency(response.Cur).withErrors(errs...)
}

func (t *httpTransport) doRequest(ctx context.Context, uri string, body []byte) *httpCallInfo {
	call := &httpCallInfo{uri: uri, requestBody: body}
	httpReq, err := http.NewRequest(http.MethodPost, uri, bytes.NewReader(body))
	if err != nil {
		call.err = &errortypes.FailedToRequestBids{Message: err.Error()}
		return call
	}
	httpReq.Header.Set("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Openrtb-Version", "2.6")
	call.headers = httpReq.Header

	httpResp, err := ctxhttp.Do(ctx, t.client, httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			call.err = &errortypes.Timeout{Message: err.Error()}
		} else {
			call.err = &errortypes.FailedToRequestBids{Message: err.Error()}
		}
		return call
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			call.err = &errortypes.Timeout{Message: err.Error()}
		} else {
			call.err = &errortypes.BadServerResponse{Message: err.Error()}
		}
		return call
	}
	call.statusCode = httpResp.StatusCode
	call.responseBody = respBody

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 400 {
		call.err = &errortypes.BadServerResponse{
			Message: fmt.Sprintf("Server responded with failure status: %d. Set request.test = 1 for debugging info.", httpResp.StatusCode),
		}
	}
	return call
}

// bidsFromResponse reads the bids out of an OpenRTB response, along with the media type and video
// metadata the auction needs from each.
func bidsFromResponse(response *openrtb2.BidResponse, request *openrtb2.BidRequest) ([]*entities.PbsOrtbBid, []error) {
	var bids []*entities.PbsOrtbBid
	var errs []error
	for _, seatBid := range response.SeatBid {
		for i := range seatBid.Bid {
			bid := seatBid.Bid[i]
			bidType, err := bidTypeOf(&bid, request)
			if err != nil {
				errs = append(errs, &errortypes.BadServerResponse{Message: fmt.Sprintf("Bid \"%s\": %v", bid.ID, err)})
				continue
			}
			pbsBid := &entities.PbsOrtbBid{Bid: &bid, BidType: bidType}
			if priority, err := jsonparser.GetInt(bid.Ext, "prebid", "dealpriority"); err == nil {
				pbsBid.DealPriority = int(priority)
			}
			if bidType == openrtb_ext.BidTypeVideo {
				pbsBid.BidVideo = videoOf(bid.Ext)
			}
			bids = append(bids, pbsBid)
		}
	}
	return bids, errs
}

// bidTypeOf trusts, in order: the bid's mtype, its ext.prebid.type, and the only format offered by its imp.
func bidTypeOf(bid *openrtb2.Bid, request *openrtb2.BidRequest) (openrtb_ext.BidType, error) {
	switch bid.MType {
	case openrtb2.MarkupBanner:
		return openrtb_ext.BidTypeBanner, nil
	case openrtb2.MarkupVideo:
		return openrtb_ext.BidTypeVideo, nil
	case openrtb2.MarkupAudio:
		return openrtb_ext.BidTypeAudio, nil
	case openrtb2.MarkupNative:
		return openrtb_ext.BidTypeNative, nil
	}
	if bidType, err := jsonparser.GetString(bid.Ext, "prebid", "type"); err == nil {
		return openrtb_ext.ParseBidType(bidType)
	}
	if request != nil {
		for _, imp := range request.Imp {
			if imp.ID != bid.ImpID {
				continue
			}
			switch {
			case imp.Banner != nil:
				return openrtb_ext.BidTypeBanner, nil
			case imp.Video != nil:
				return openrtb_ext.BidTypeVideo, nil
			case imp.Audio != nil:
				return openrtb_ext.BidTypeAudio, nil
			case imp.Native != nil:
				return openrtb_ext.BidTypeNative, nil
			}
		}
	}
	return openrtb_ext.BidTypeBanner, nil
}

func videoOf(ext json.RawMessage) *openrtb_ext.ExtBidPrebidVideo {
	video := &openrtb_ext.ExtBidPrebidVideo{}
	if duration, err := jsonparser.GetInt(ext, "prebid", "video", "duration"); err == nil {
		video.Duration = int(duration)
	}
	if category, err := jsonparser.GetString(ext, "prebid", "video", "primary_category"); err == nil {
		video.PrimaryCategory = category
	}
	return video
}

func filterHeader(h http.Header) http.Header {
	clone := h.Clone()
	clone.Del(authorizationHeader)
	return clone
}

// makeExt transforms information about the HTTP call into the contract class for the response.
func makeExt(httpInfo *httpCallInfo) *openrtb_ext.ExtHttpCall {
	ext := &openrtb_ext.ExtHttpCall{
		Uri:            httpInfo.uri,
		RequestBody:    string(httpInfo.requestBody),
		RequestHeaders: filterHeader(httpInfo.headers),
	}
	if httpInfo.statusCode != 0 {
		ext.ResponseBody = string(httpInfo.responseBody)
		ext.Status = httpInfo.statusCode
	}
	return ext
}
