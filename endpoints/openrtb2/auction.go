package openrtb2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/stored_responses"
)

func NewEndpoint(ex exchange.Exchange, validator openrtb_ext.BidderParamValidator, storedRespFetcher stored_responses.Fetcher, cfg *config.Configuration, metricsEngine metrics.MetricsEngine) (httprouter.Handle, error) {
	if ex == nil || validator == nil || cfg == nil || metricsEngine == nil {
		return nil, errors.New("NewEndpoint requires non-nil arguments.")
	}

	return httprouter.Handle((&endpointDeps{
		ex:                ex,
		paramsValidator:   validator,
		storedRespFetcher: storedRespFetcher,
		cfg:               cfg,
		metricsEngine:     metricsEngine,
	}).Auction), nil
}

type endpointDeps struct {
	ex                exchange.Exchange
	paramsValidator   openrtb_ext.BidderParamValidator
	storedRespFetcher stored_responses.Fetcher
	cfg               *config.Configuration
	metricsEngine     metrics.MetricsEngine
}

func (deps *endpointDeps) Auction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start := time.Now()
	labels := metrics.Labels{
		RType:         metrics.ReqTypeORTB2Web,
		PubID:         metrics.PublisherUnknown,
		RequestStatus: metrics.RequestStatusOK,
	}
	defer func() {
		deps.metricsEngine.RecordRequest(labels)
		deps.metricsEngine.RecordRequestTime(labels, time.Since(start))
	}()

	req, errL := deps.parseRequest(r)
	if len(errL) > 0 {
		labels.RequestStatus = metrics.RequestStatusBadInput
		writeErrors(w, http.StatusBadRequest, "Invalid request format", errL)
		return
	}
	labels.PubID = publisherID(req)
	if req.App != nil {
		labels.RType = metrics.ReqTypeORTB2App
	}

	timeout := deps.cfg.AuctionTimeouts.LimitAuctionTimeout(time.Duration(req.TMax) * time.Millisecond)
	ctx, cancel := context.Background(), func() {}
	if timeout > 0 {
		ctx, cancel = context.WithDeadline(ctx, start.Add(timeout))
	}
	defer cancel()

	storedResponses, errL := stored_responses.ProcessStoredResponses(ctx, req, deps.storedRespFetcher)
	if len(errL) > 0 {
		labels.RequestStatus = metrics.RequestStatusBadInput
		writeErrors(w, http.StatusBadRequest, "Invalid request format", errL)
		return
	}

	auctionRequest := &exchange.AuctionRequest{
		BidRequest:         req,
		StartTime:          start,
		StoredBidResponses: storedResponses,
		PubID:              labels.PubID,
	}
	debugLog := &exchange.DebugLog{Enabled: debugRequested(r, req)}

	response, err := deps.ex.HoldAuction(ctx, auctionRequest, debugLog)
	if err != nil {
		status := http.StatusInternalServerError
		switch errortypes.ReadCode(err) {
		case errortypes.BadInputErrorCode:
			labels.RequestStatus = metrics.RequestStatusBadInput
			status = http.StatusBadRequest
		case errortypes.TimeoutErrorCode:
			labels.RequestStatus = metrics.RequestStatusTimeout
		default:
			labels.RequestStatus = metrics.RequestStatusErr
		}
		glog.Errorf("/openrtb2/auction error for request %s: %v", req.ID, err)
		writeErrors(w, status, "Critical error while running the auction", []error{err})
		return
	}
	if debugLog.Enabled && len(debugLog.Rejections) > 0 {
		glog.Infof("/openrtb2/auction request %s rejections: %v", req.ID, debugLog.Rejections)
	}

	responseBytes, err := json.Marshal(response.BidResponse)
	if err != nil {
		labels.RequestStatus = metrics.RequestStatusErr
		writeErrors(w, http.StatusInternalServerError, "Failed to marshal auction response", []error{err})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(responseBytes)
}

func (deps *endpointDeps) parseRequest(httpRequest *http.Request) (*openrtb2.BidRequest, []error) {
	body, err := readBody(httpRequest.Body, deps.cfg.MaxRequestSize)
	if err != nil {
		return nil, []error{err}
	}

	req := &openrtb2.BidRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, []error{err}
	}

	if err := deps.validateRequest(req); err != nil {
		return nil, []error{err}
	}
	return req, nil
}

// readBody reads at most maxSize bytes. A zero maxSize leaves the body unbounded.
func readBody(body io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(body)
	}
	data, err := io.ReadAll(io.LimitReader(body, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("request size exceeded max size of %d bytes.", maxSize)
	}
	return data, nil
}

func (deps *endpointDeps) validateRequest(req *openrtb2.BidRequest) error {
	if req.ID == "" {
		return errors.New("request missing required field: \"id\"")
	}

	if req.TMax < 0 {
		return fmt.Errorf("request.tmax must be nonnegative. Got %d", req.TMax)
	}

	if len(req.Imp) < 1 {
		return errors.New("request.imp must contain at least one element.")
	}

	if req.Site != nil && req.App != nil {
		return errors.New("request.site or request.app must be defined, but not both.")
	}

	seen := make(map[string]struct{}, len(req.Imp))
	for index := range req.Imp {
		if err := deps.validateImp(&req.Imp[index], index); err != nil {
			return err
		}
		if _, dup := seen[req.Imp[index].ID]; dup {
			return fmt.Errorf("request.imp[%d].id %q is not unique", index, req.Imp[index].ID)
		}
		seen[req.Imp[index].ID] = struct{}{}
	}
	return nil
}

func (deps *endpointDeps) validateImp(imp *openrtb2.Imp, index int) error {
	if imp.ID == "" {
		return fmt.Errorf("request.imp[%d] missing required field: \"id\"", index)
	}

	if imp.Banner == nil && imp.Video == nil && imp.Audio == nil && imp.Native == nil {
		return fmt.Errorf("request.imp[%d] must contain at least one of \"banner\", \"video\", \"audio\", or \"native\"", index)
	}

	if err := validateBanner(imp.Banner, index); err != nil {
		return err
	}

	if imp.Video != nil && len(imp.Video.MIMEs) < 1 {
		return fmt.Errorf("request.imp[%d].video.mimes must contain at least one supported MIME type", index)
	}

	if imp.Audio != nil && len(imp.Audio.MIMEs) < 1 {
		return fmt.Errorf("request.imp[%d].audio.mimes must contain at least one supported MIME type", index)
	}

	if imp.Native != nil && imp.Native.Request == "" {
		return fmt.Errorf("request.imp[%d].native.request must be a JSON encoded string conforming to the openrtb 1.2 Native spec", index)
	}

	if err := validatePmp(imp.PMP, index); err != nil {
		return err
	}

	return deps.validateImpExt(imp.Ext, index)
}

func validateBanner(banner *openrtb2.Banner, impIndex int) error {
	if banner == nil {
		return nil
	}

	for fmtIndex := range banner.Format {
		if err := validateFormat(&banner.Format[fmtIndex], impIndex, fmtIndex); err != nil {
			return err
		}
	}

	if len(banner.Format) == 0 && (banner.W == nil || banner.H == nil || *banner.W == 0 || *banner.H == 0) {
		return fmt.Errorf("request.imp[%d].banner has no sizes. Define \"w\" and \"h\", or include \"format\" elements.", impIndex)
	}
	return nil
}

func validateFormat(format *openrtb2.Format, impIndex int, formatIndex int) error {
	usesHW := format.W != 0 || format.H != 0
	usesRatios := format.WMin != 0 || format.WRatio != 0 || format.HRatio != 0
	if usesHW && usesRatios {
		return fmt.Errorf("Request imp[%d].banner.format[%d] should define *either* {w, h} *or* {wmin, wratio, hratio}, but not both. If both are valid, send two \"format\" objects in the request.", impIndex, formatIndex)
	}
	if !usesHW && !usesRatios {
		return fmt.Errorf("Request imp[%d].banner.format[%d] should define *either* {w, h} (for static size requirements) *or* {wmin, wratio, hratio} (for flexible sizes) to be non-zero.", impIndex, formatIndex)
	}
	if usesHW && (format.W == 0 || format.H == 0) {
		return fmt.Errorf("Request imp[%d].banner.format[%d] must define non-zero \"h\" and \"w\" properties.", impIndex, formatIndex)
	}
	if usesRatios && (format.WMin == 0 || format.WRatio == 0 || format.HRatio == 0) {
		return fmt.Errorf("Request imp[%d].banner.format[%d] must define non-zero \"wmin\", \"wratio\", and \"hratio\" properties.", impIndex, formatIndex)
	}
	return nil
}

func validatePmp(pmp *openrtb2.PMP, impIndex int) error {
	if pmp == nil {
		return nil
	}

	for dealIndex, deal := range pmp.Deals {
		if deal.ID == "" {
			return fmt.Errorf("request.imp[%d].pmp.deals[%d] missing required field: \"id\"", impIndex, dealIndex)
		}
	}
	return nil
}

// validateImpExt checks the params of every bidder named in imp.ext.prebid.bidder.
func (deps *endpointDeps) validateImpExt(ext json.RawMessage, impIndex int) error {
	impExt, err := openrtb_ext.ReadExtImp(ext)
	if err != nil {
		return fmt.Errorf("request.imp[%d].ext is invalid: %v", impIndex, err)
	}

	if impExt.Prebid == nil || len(impExt.Prebid.Bidder) < 1 {
		return fmt.Errorf("request.imp[%d].ext.prebid.bidder must contain at least one bidder", impIndex)
	}

	for bidder, params := range impExt.Prebid.Bidder {
		if openrtb_ext.IsBidderNameReserved(bidder) {
			return fmt.Errorf("request.imp[%d].ext.prebid.bidder contains reserved name: %s", impIndex, bidder)
		}
		if err := deps.paramsValidator.Validate(openrtb_ext.BidderName(bidder), params); err != nil {
			return fmt.Errorf("request.imp[%d].ext.prebid.bidder.%s failed validation.\n%v", impIndex, bidder, err)
		}
	}
	return nil
}

func publisherID(req *openrtb2.BidRequest) string {
	switch {
	case req.Site != nil && req.Site.Publisher != nil && req.Site.Publisher.ID != "":
		return req.Site.Publisher.ID
	case req.App != nil && req.App.Publisher != nil && req.App.Publisher.ID != "":
		return req.App.Publisher.ID
	}
	return metrics.PublisherUnknown
}

// debugRequested is true for ?debug=1 or ext.prebid.debug.
func debugRequested(httpRequest *http.Request, req *openrtb2.BidRequest) bool {
	if httpRequest.URL.Query().Get("debug") == "1" {
		return true
	}
	if len(req.Ext) == 0 {
		return false
	}
	var ext openrtb_ext.ExtRequest
	if err := json.Unmarshal(req.Ext, &ext); err != nil {
		return false
	}
	return ext.Prebid.Debug
}

func writeErrors(w http.ResponseWriter, status int, prefix string, errs []error) {
	w.WriteHeader(status)
	for _, err := range errs {
		fmt.Fprintf(w, "%s: %s\n", prefix, err.Error())
	}
}
