package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/prebid/openrtb/v20/openrtb3"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/errortypes"
	"github.com/prebid/auction-orchestrator/exchange/entities"
	"github.com/prebid/auction-orchestrator/metrics"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	"github.com/prebid/auction-orchestrator/prebid_cache_client"
	"github.com/prebid/auction-orchestrator/util/randomutil"
)

// Exchange runs Auctions. Implementations must be threadsafe, and will be shared across many goroutines.
type Exchange interface {
	// HoldAuction executes an OpenRTB v2.6 Auction.
	HoldAuction(ctx context.Context, r *AuctionRequest, debugLog *DebugLog) (*AuctionResponse, error)
}

// AuctionRequest holds the bid request and the context the caller resolved for it.
type AuctionRequest struct {
	BidRequest *openrtb2.BidRequest
	StartTime  time.Time
	// StoredBidResponses maps imp ids, then bidder names, to a response which replaces that bidder's call.
	StoredBidResponses map[string]map[string]json.RawMessage
	PubID              string
	// Warnings raised by the caller while preparing the request. They are reported under "general".
	Warnings []error
}

// DebugLog collects what an auction did for callers which log it.
type DebugLog struct {
	// Enabled also turns on the debug sections of the response.
	Enabled bool
	// Rejections has one message per bid the category stage removed.
	Rejections []string
	// Response is the encoded bidresponse.ext.
	Response string
}

func (d *DebugLog) enabled() bool {
	return d != nil && d.Enabled
}

// Collaborators are the outside decisions an auction defers to. Nil members fall back to letting
// everything through untouched.
type Collaborators struct {
	Privacy       PrivacyMasking
	AccessControl BidderAccessControl
	Validator     ResponseValidator
	Floors        PriceFloorAdjuster
}

type exchange struct {
	me                metrics.MetricsEngine
	transport         Transport
	privacy           PrivacyMasking
	accessControl     BidderAccessControl
	validator         ResponseValidator
	floors            PriceFloorAdjuster
	categoriesFetcher CategoryFetcher
	bidderInfo        BidderInfoProvider
	currencyConverter currency.RateTableProvider
	cache             prebid_cache_client.Client
	cacheURL          config.Cache
	deadlines         *deadlines
	clock             clock.Clock
	rand              randomutil.BooleanGenerator
	bidIDGenerator    BidIDGenerator
	adapters          map[string]config.Adapter
	hostAliases       map[openrtb_ext.BidderName]openrtb_ext.BidderName
	auction           config.Auction
}

type BidIDGenerator interface {
	New(bidder string) (string, error)
	Enabled() bool
}

type bidIDGenerator struct {
	enabled bool
}

func (big *bidIDGenerator) Enabled() bool {
	return big.enabled
}

func (big *bidIDGenerator) New(bidder string) (string, error) {
	rawUuid, err := uuid.NewV4()
	return rawUuid.String(), err
}

// NewExchange wires an auction runner. currencyConverter and cache may be nil, in which case only
// request supplied rates are used and nothing is cached.
func NewExchange(transport Transport, cache prebid_cache_client.Client, cfg *config.Configuration, metricsEngine metrics.MetricsEngine, infos BidderInfoProvider, currencyConverter currency.RateTableProvider, categoriesFetcher CategoryFetcher, collaborators Collaborators) Exchange {
	return newExchange(transport, cache, cfg, metricsEngine, infos, currencyConverter, categoriesFetcher, collaborators, clock.New(), randomutil.RandomNumberGenerator{})
}

func newExchange(transport Transport, cache prebid_cache_client.Client, cfg *config.Configuration, metricsEngine metrics.MetricsEngine, infos BidderInfoProvider, currencyConverter currency.RateTableProvider, categoriesFetcher CategoryFetcher, collaborators Collaborators, c clock.Clock, rand randomutil.BooleanGenerator) *exchange {
	e := &exchange{
		me:                metricsEngine,
		transport:         transport,
		privacy:           collaborators.Privacy,
		accessControl:     collaborators.AccessControl,
		validator:         collaborators.Validator,
		floors:            collaborators.Floors,
		categoriesFetcher: categoriesFetcher,
		bidderInfo:        infos,
		currencyConverter: currencyConverter,
		cache:             cache,
		cacheURL:          cfg.CacheURL,
		deadlines:         newDeadlines(c, &cfg.AuctionTimeouts),
		clock:             c,
		rand:              rand,
		bidIDGenerator:    &bidIDGenerator{enabled: cfg.Auction.GenerateBidID},
		adapters:          cfg.Adapters,
		hostAliases:       make(map[openrtb_ext.BidderName]openrtb_ext.BidderName),
		auction:           cfg.Auction,
	}
	for name, adapter := range cfg.Adapters {
		for _, alias := range adapter.Aliases {
			e.hostAliases[openrtb_ext.BidderName(alias)] = openrtb_ext.BidderName(name)
		}
	}
	if e.privacy == nil {
		e.privacy = passThroughPrivacy{}
	}
	if e.accessControl == nil {
		e.accessControl = allowAllBidders{}
	}
	if e.validator == nil {
		e.validator = NewResponseValidator()
	}
	if e.floors == nil {
		e.floors = unchangedFloors{}
	}
	if e.bidderInfo == nil {
		e.bidderInfo = anyCurrency{}
	}
	return e
}

// adServerCurrency is the single currency the auction is held in.
func (e *exchange) adServerCurrency(request *openrtb2.BidRequest) string {
	if len(request.Cur) > 0 {
		return request.Cur[0]
	}
	if e.auction.DefaultCurrency != "" {
		return e.auction.DefaultCurrency
	}
	return currency.DefaultBidCurrency
}

func (e *exchange) HoldAuction(ctx context.Context, r *AuctionRequest, debugLog *DebugLog) (*AuctionResponse, error) {
	if r == nil || r.BidRequest == nil {
		return nil, &errortypes.BadInput{Message: "an auction needs a bid request"}
	}
	request := r.BidRequest

	requestExt, err := parseRequestExt(request)
	if err != nil {
		return nil, err
	}
	requestExtPrebid := &requestExt.Prebid
	responseDebugAllow := request.Test == 1 || requestExtPrebid.Debug || debugLog.enabled()

	conversions := currency.GetAuctionCurrencyRates(e.currencyConverter, requestExtPrebid.Currency)
	adServerCurrency := e.adServerCurrency(request)
	cacheInstructions := newCacheInstructions(requestExtPrebid.Cache)
	targData := newTargetData(requestExtPrebid.Targeting, e.auction, e.rand)
	multiBidLimits, errs := openrtb_ext.BuildMultiBidLimits(requestExtPrebid.MultiBid)

	recordImpMetrics(request, e.me)

	trackers := make(rejectionTrackers)
	bidderRequests, failed, participationWarnings, err := e.makeBidderRequests(r, requestExt, conversions, trackers)
	if err != nil {
		return nil, err
	}
	errs = append(errs, participationWarnings...)
	for _, bidderRequest := range bidderRequests {
		trackers.forBidder(bidderRequest.BidderName)
	}

	// If we need to cache bids, then it will take some time to call prebid cache.
	// We should reduce the amount of time the bidders have, to compensate.
	auctionCtx, cancel := e.deadlines.auctionContext(ctx, cacheInstructions.any())
	defer cancel()

	outcomes := e.getAllBids(auctionCtx, bidderRequests, request, responseDebugAllow)

	n := &normalizer{
		validator:         e.validator,
		request:           request,
		conversions:       conversions,
		requestCurrencies: request.Cur,
		adServerCurrency:  adServerCurrency,
		me:                e.me,
	}

	liveAdapters := make([]openrtb_ext.BidderName, 0, len(bidderRequests))
	results := make(map[openrtb_ext.BidderName]*BidderResult, len(bidderRequests)+len(failed))
	for _, bidderRequest := range bidderRequests {
		name := bidderRequest.BidderName
		outcome := outcomes[name]
		tracker := trackers.forBidder(name)
		rejectFailedCall(bidderRequest, outcome.live, tracker, e.me)

		factor := e.adjustmentFactor(requestExtPrebid, bidderRequest)
		result := n.normalize(outcome.live, factor, tracker)
		for _, stored := range outcome.stored {
			result = mergeStoredResult(result, n.normalizeBids(stored, factor, tracker))
		}
		results[name] = result
		liveAdapters = append(liveAdapters, name)
	}
	for _, result := range failed {
		results[result.Bidder] = result
	}

	adapterBids := make(map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, len(results))
	for _, name := range liveAdapters {
		if result := results[name]; len(result.Bids()) > 0 {
			adapterBids[name] = result.SeatBid
		}
	}

	if e.bidIDGenerator.Enabled() {
		var idErrs []error
		adapterBids, idErrs = e.generateBidIDs(liveAdapters, adapterBids)
		errs = append(errs, idErrs...)
	}

	prefs := newDealPreference(request.Imp, preferDeals(requestExtPrebid.Targeting, e.auction))
	auc, adapterBids := resolve(liveAdapters, adapterBids, prefs, multiBidLimits, trackers)

	var bidCategory bidCategories
	if targData != nil {
		//If includebrandcategory is present in ext then CE feature is on.
		if requestExtPrebid.Targeting.IncludeBrandCategory != nil {
			deduplicator := &categoryDeduplicator{fetcher: e.categoriesFetcher, rand: e.rand, trackers: trackers, me: e.me}
			var rejections []string
			bidCategory, adapterBids, rejections, err = deduplicator.applyCategoryMapping(ctx, *requestExtPrebid.Targeting, liveAdapters, adapterBids, targData)
			if err != nil {
				return nil, fmt.Errorf("Error in category mapping : %s", err.Error())
			}
			for _, message := range rejections {
				errs = append(errs, &errortypes.Warning{WarningCode: errortypes.CategoryMappingWarningCode, Message: message})
			}
			if debugLog.enabled() {
				debugLog.Rejections = append(debugLog.Rejections, rejections...)
			}
		} else {
			bidCategory = make(bidCategories)
		}

		var dealErrs []error
		adapterBids, dealErrs = applyDealTiers(request, liveAdapters, adapterBids, bidCategory)
		errs = append(errs, dealErrs...)
		auc, adapterBids = resolve(liveAdapters, adapterBids, prefs, multiBidLimits, trackers)
	}

	if cacheErrs := auc.doCache(ctx, e.cache, cacheInstructions, bidCategory); len(cacheErrs) > 0 {
		errs = append(errs, cacheErrs...)
	}

	targets := targData.makeTargets(auc, bidCategory)

	bidResponseExt := e.makeExtBidResponse(results, r, responseDebugAllow, errs)
	if requestExtPrebid.ReturnAllBidStatus || responseDebugAllow {
		bidResponseExt = setSeatNonBid(bidResponseExt, trackers.seatNonBids())
	}

	// Build the response
	bidResponse := e.buildBidResponse(liveAdapters, adapterBids, request, results, auc, targets, bidResponseExt)
	if len(bidResponse.SeatBid) > 0 {
		bidResponse.Cur = adServerCurrency
	}

	bidResponse.Ext, err = encodeBidResponseExt(bidResponseExt)
	if err != nil {
		return nil, err
	}
	if debugLog.enabled() {
		debugLog.Response = string(bidResponse.Ext)
	}

	return &AuctionResponse{
		BidResponse:    bidResponse,
		ExtBidResponse: bidResponseExt,
	}, nil
}

// adjustmentFactor picks the price multiplier of a bidder: the request's, else the host's, else none.
func (e *exchange) adjustmentFactor(prebid *openrtb_ext.ExtRequestPrebid, bidderRequest BidderRequest) float64 {
	if factor, ok := prebid.BidAdjustmentFactors[string(bidderRequest.BidderName)]; ok && factor > 0 {
		return factor
	}
	if adapter, ok := e.adapters[string(bidderRequest.BidderCoreName)]; ok && adapter.BidAdjustment > 0 {
		return adapter.BidAdjustment
	}
	return 1.0
}

// generateBidIDs gives every bid a fresh ext.prebid.bidid. Bids are copied, never changed in place.
func (e *exchange) generateBidIDs(bidders []openrtb_ext.BidderName, adapterBids map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid) (map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, []error) {
	var errs []error
	out := make(map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, len(adapterBids))
	for _, bidder := range bidders {
		seatBid, ok := adapterBids[bidder]
		if !ok {
			continue
		}
		bids := make([]*entities.PbsOrtbBid, len(seatBid.Bids))
		for i, bid := range seatBid.Bids {
			bids[i] = bid
			bidID, err := e.bidIDGenerator.New(bidder.String())
			if err != nil {
				errs = append(errs, errors.New("Error generating bid.ext.prebid.bidid"))
				continue
			}
			clone := *bid
			clone.GeneratedBidID = bidID
			bids[i] = &clone
		}
		out[bidder] = seatBid.WithBids(bids)
	}
	return out, errs
}

// bidderOutcome is what one bidder's goroutine hands back: the result of the live call, if one
// was made, and one result per stored response.
type bidderOutcome struct {
	bidder       openrtb_ext.BidderName
	live         *BidderResult
	stored       []*BidderResult
	responseTime time.Duration
}

func (e *exchange) getAllBids(ctx context.Context, bidderRequests []BidderRequest, request *openrtb2.BidRequest, debugInfo bool) map[openrtb_ext.BidderName]*bidderOutcome {
	outcomes := make(map[openrtb_ext.BidderName]*bidderOutcome, len(bidderRequests))
	chBids := make(chan *bidderOutcome, len(bidderRequests))

	for _, bidder := range bidderRequests {
		// Here we actually call the adapters and collect the bids.
		bidderRunner := e.recoverSafely(bidderRequests, func(bidderRequest BidderRequest) {
			outcome := &bidderOutcome{bidder: bidderRequest.BidderName}
			// Defer basic metrics to insure we capture them after all the values have been set
			defer func() {
				e.me.RecordAdapterRequest(bidderRequest.BidderLabels)
			}()
			start := e.clock.Now()

			if bidderRequest.BidRequest != nil {
				outcome.live = e.callBidder(ctx, bidderRequest, debugInfo)
			} else {
				outcome.live = &BidderResult{Bidder: bidderRequest.BidderName}
			}
			outcome.stored = storedBidderResults(bidderRequest, request)

			// Add in time reporting
			elapsed := e.clock.Since(start)
			outcome.responseTime = elapsed
			live := *outcome.live
			live.ResponseTime = elapsed
			outcome.live = &live
			e.me.RecordAdapterTime(bidderRequest.BidderLabels, elapsed)

			received := append([]*BidderResult{outcome.live}, outcome.stored...)
			bidderRequest.BidderLabels.AdapterBids = bidsToMetric(received)
			bidderRequest.BidderLabels.AdapterErrors = errorsToMetric(outcome.live.Errors)
			for _, result := range received {
				for _, bid := range result.Bids() {
					var cpm = float64(bid.Bid.Price * 1000)
					e.me.RecordAdapterPrice(bidderRequest.BidderLabels, cpm)
					e.me.RecordAdapterBidReceived(bidderRequest.BidderLabels, bid.BidType, bid.Bid.AdM != "")
				}
			}
			chBids <- outcome
		}, chBids)
		go bidderRunner(bidder)
	}

	// Wait for the bidders to do their thing
	for i := 0; i < len(bidderRequests); i++ {
		outcome := <-chBids
		outcomes[outcome.bidder] = outcome
	}
	return outcomes
}

// callBidder makes the live call of one bidder within its own share of the deadline. A bidder
// whose share is already spent is never called.
func (e *exchange) callBidder(ctx context.Context, bidderRequest BidderRequest, debugInfo bool) *BidderResult {
	bidderCtx, cancel, budget, ok := e.deadlines.bidderContext(ctx, bidderRequest.BidderName)
	defer cancel()
	if !ok {
		return failedResult(bidderRequest.BidderName, &errortypes.Timeout{
			Message: fmt.Sprintf("No time left to call bidder %s", bidderRequest.BidderName),
		})
	}

	request := bidderRequest.BidRequest
	if budget > 0 {
		withTmax := *request
		withTmax.TMax = budget.Milliseconds()
		request = &withTmax
	}

	result := e.transport.RequestBids(bidderCtx, bidderRequest.BidderCoreName, request, debugInfo)
	if result == nil {
		return &BidderResult{Bidder: bidderRequest.BidderName}
	}
	return result.withBidder(bidderRequest.BidderName)
}

func (e *exchange) recoverSafely(bidderRequests []BidderRequest,
	inner func(BidderRequest),
	chBids chan *bidderOutcome) func(BidderRequest) {
	return func(bidderRequest BidderRequest) {
		defer func() {
			if r := recover(); r != nil {

				allBidders := ""
				sb := strings.Builder{}
				for _, bidder := range bidderRequests {
					sb.WriteString(bidder.BidderName.String())
					sb.WriteString(",")
				}
				if sb.Len() > 0 {
					allBidders = sb.String()[:sb.Len()-1]
				}

				glog.Errorf("OpenRTB auction recovered panic from Bidder %s: %v. "+
					"All Bidders: %s, Stack trace is: %v",
					bidderRequest.BidderCoreName, r, allBidders, string(debug.Stack()))
				e.me.RecordAdapterPanic(bidderRequest.BidderLabels)
				// Let the master request know that there is no data here
				chBids <- &bidderOutcome{
					bidder: bidderRequest.BidderName,
					live:   failedResult(bidderRequest.BidderName, fmt.Errorf("bidder %s failed unexpectedly", bidderRequest.BidderName)),
				}
			}
		}()
		inner(bidderRequest)
	}
}

// rejectFailedCall records every imp of a live call which ended without bids because of a fatal error.
func rejectFailedCall(bidderRequest BidderRequest, live *BidderResult, tracker *BidRejectionTracker, me metrics.MetricsEngine) {
	if bidderRequest.BidRequest == nil || len(live.Bids()) > 0 {
		return
	}
	fatal := errortypes.FatalOnly(live.Errors)
	if len(fatal) == 0 {
		return
	}
	reason := errorToRejectionReason(fatal[0])
	impIDs := make([]string, 0, len(bidderRequest.BidRequest.Imp))
	for _, imp := range bidderRequest.BidRequest.Imp {
		impIDs = append(impIDs, imp.ID)
	}
	tracker.RejectImps(impIDs, reason)
	me.RecordRejectedBid(bidderRequest.BidderName, string(reason))
}

func recordImpMetrics(request *openrtb2.BidRequest, metricsEngine metrics.MetricsEngine) {
	for _, imp := range request.Imp {
		var impLabels metrics.ImpLabels = metrics.ImpLabels{
			BannerImps: imp.Banner != nil,
			VideoImps:  imp.Video != nil,
			AudioImps:  imp.Audio != nil,
			NativeImps: imp.Native != nil,
		}
		metricsEngine.RecordImps(impLabels)
	}
}

func bidsToMetric(results []*BidderResult) metrics.AdapterBid {
	for _, result := range results {
		if len(result.Bids()) != 0 {
			return metrics.AdapterBidPresent
		}
	}
	return metrics.AdapterBidNone
}

func errorsToMetric(errs []error) map[metrics.AdapterError]struct{} {
	if len(errs) == 0 {
		return nil
	}
	ret := make(map[metrics.AdapterError]struct{}, len(errs))
	var s struct{}
	for _, err := range errs {
		switch errortypes.ReadCode(err) {
		case errortypes.TimeoutErrorCode:
			ret[metrics.AdapterErrorTimeout] = s
		case errortypes.BadInputErrorCode:
			ret[metrics.AdapterErrorBadInput] = s
		case errortypes.BadServerResponseErrorCode:
			ret[metrics.AdapterErrorBadServerResponse] = s
		case errortypes.FailedToRequestBidsErrorCode:
			ret[metrics.AdapterErrorFailedToRequestBids] = s
		case errortypes.InvalidBidErrorCode:
			ret[metrics.AdapterErrorInvalidBid] = s
		case errortypes.UnacceptableCurrencyErrorCode:
			ret[metrics.AdapterErrorUnacceptableCurrency] = s
		default:
			ret[metrics.AdapterErrorUnknown] = s
		}
	}
	return ret
}

// errsToBidderErrors and errsToBidderWarnings drop messages scoped to debug output unless debugInfo is set.
func errsToBidderErrors(errs []error, debugInfo bool) []openrtb_ext.ExtBidderMessage {
	sErr := make([]openrtb_ext.ExtBidderMessage, 0)
	for _, err := range errortypes.FatalOnly(errs) {
		if errortypes.ReadScope(err) == errortypes.ScopeDebug && !debugInfo {
			continue
		}
		sErr = append(sErr, openrtb_ext.ExtBidderMessage{
			Code:    errortypes.ReadCode(err),
			Message: err.Error(),
		})
	}
	return sErr
}

func errsToBidderWarnings(errs []error, debugInfo bool) []openrtb_ext.ExtBidderMessage {
	sWarn := make([]openrtb_ext.ExtBidderMessage, 0)
	for _, warn := range errortypes.WarningOnly(errs) {
		if errortypes.ReadScope(warn) == errortypes.ScopeDebug && !debugInfo {
			continue
		}
		sWarn = append(sWarn, openrtb_ext.ExtBidderMessage{
			Code:    errortypes.ReadCode(warn),
			Message: warn.Error(),
		})
	}
	return sWarn
}

func (e *exchange) makeExtBidResponse(results map[openrtb_ext.BidderName]*BidderResult, r *AuctionRequest, debugInfo bool, errList []error) *openrtb_ext.ExtBidResponse {
	bidResponseExt := &openrtb_ext.ExtBidResponse{
		Errors:               make(map[openrtb_ext.BidderName][]openrtb_ext.ExtBidderMessage, len(results)),
		Warnings:             make(map[openrtb_ext.BidderName][]openrtb_ext.ExtBidderMessage, len(results)),
		ResponseTimeMillis:   make(map[openrtb_ext.BidderName]int, len(results)),
		RequestTimeoutMillis: r.BidRequest.TMax,
	}
	if debugInfo {
		bidResponseExt.Debug = &openrtb_ext.ExtResponseDebug{
			HttpCalls: make(map[openrtb_ext.BidderName][]*openrtb_ext.ExtHttpCall),
		}
		if resolved, err := json.Marshal(r.BidRequest); err == nil {
			bidResponseExt.Debug.ResolvedRequest = resolved
		}
	}

	if !r.StartTime.IsZero() {
		bidResponseExt.Prebid = &openrtb_ext.ExtResponsePrebid{AuctionTimestamp: r.StartTime.UnixMilli()}
	}

	// Per-bidder detail is only surfaced to debug requests.
	for bidderName, result := range results {
		if !debugInfo {
			break
		}
		if len(result.httpCalls()) > 0 {
			bidResponseExt.Debug.HttpCalls[bidderName] = result.httpCalls()
		}
		// Only make an entry for bidder errors if the bidder reported any.
		if bidderErrs := errsToBidderErrors(result.Errors, debugInfo); len(bidderErrs) > 0 {
			bidResponseExt.Errors[bidderName] = bidderErrs
		}
		if bidderWarns := errsToBidderWarnings(result.Errors, debugInfo); len(bidderWarns) > 0 {
			bidResponseExt.Warnings[bidderName] = bidderWarns
		}
		bidResponseExt.ResponseTimeMillis[bidderName] = int(result.ResponseTime / time.Millisecond)
	}

	if prebidErrs := errsToBidderErrors(errList, debugInfo); len(prebidErrs) > 0 {
		bidResponseExt.Errors[openrtb_ext.PrebidExtKey] = prebidErrs
	}
	if prebidWarns := errsToBidderWarnings(errList, debugInfo); len(prebidWarns) > 0 {
		bidResponseExt.Warnings[openrtb_ext.PrebidExtKey] = prebidWarns
	}
	for _, warning := range r.Warnings {
		if errortypes.ReadScope(warning) == errortypes.ScopeDebug && !debugInfo {
			continue
		}
		generalWarning := openrtb_ext.ExtBidderMessage{
			Code:    errortypes.ReadCode(warning),
			Message: warning.Error(),
		}
		bidResponseExt.Warnings[openrtb_ext.BidderReservedGeneral] = append(bidResponseExt.Warnings[openrtb_ext.BidderReservedGeneral], generalWarning)
	}
	return bidResponseExt
}

// This piece takes all the bids supplied by the adapters and crafts an openRTB response to send back to the requester
func (e *exchange) buildBidResponse(liveAdapters []openrtb_ext.BidderName, adapterSeatBids map[openrtb_ext.BidderName]*entities.PbsOrtbSeatBid, bidRequest *openrtb2.BidRequest, results map[openrtb_ext.BidderName]*BidderResult, auc *auction, targets bidTargets, bidResponseExt *openrtb_ext.ExtBidResponse) *openrtb2.BidResponse {
	bidResponse := new(openrtb2.BidResponse)

	bidResponse.ID = bidRequest.ID
	if len(liveAdapters) == 0 {
		// signal "Invalid Request" if no valid bidders.
		bidResponse.NBR = openrtb3.NoBidInvalidRequest.Ptr()
	}

	// Create the SeatBids. We use a zero sized slice so that we can append non-zero seat bids, and not include seatBid
	// objects for seatBids without any bids.
	seatBids := make([]openrtb2.SeatBid, 0, len(liveAdapters))
	for _, adapter := range liveAdapters {
		adapterSeatBid, ok := adapterSeatBids[adapter]
		if !ok || adapterSeatBid == nil || len(adapterSeatBid.Bids) == 0 {
			continue
		}
		seatBid := openrtb2.SeatBid{
			Seat:  adapter.String(),
			Group: 0, // Prebid cannot support roadblocking
		}
		var errList []error
		seatBid.Bid, errList = e.makeBid(adapterSeatBid.Bids, auc, targets)
		if len(errList) > 0 && bidResponseExt.Debug != nil {
			bidResponseExt.Errors[adapter] = append(bidResponseExt.Errors[adapter], errsToBidderErrors(errList, true)...)
		}
		if len(seatBid.Bid) > 0 {
			seatBids = append(seatBids, seatBid)
		}
	}
	bidResponse.SeatBid = seatBids

	return bidResponse
}

func (e *exchange) makeBid(bids []*entities.PbsOrtbBid, auc *auction, targets bidTargets) ([]openrtb2.Bid, []error) {
	result := make([]openrtb2.Bid, 0, len(bids))
	errs := make([]error, 0, 1)

	for _, bid := range bids {
		bidExtPrebid := &openrtb_ext.ExtBidPrebid{
			BidId:             bid.GeneratedBidID,
			DealPriority:      bid.DealPriority,
			DealTierSatisfied: bid.DealTierSatisfied,
			Targeting:         targets[bid],
			TargetBidderCode:  bid.TargetBidderCode,
			Type:              bid.BidType,
			Video:             bid.BidVideo,
		}

		if cacheInfo, found := e.getBidCacheInfo(bid, auc); found {
			bidExtPrebid.Cache = &openrtb_ext.ExtBidPrebidCache{
				Bids: &cacheInfo,
			}
		}

		if bidExtJSON, err := makeBidExtJSON(bid.Bid.Ext, bidExtPrebid, bid.OriginalBidCPM, bid.OriginalBidCur); err != nil {
			errs = append(errs, &errortypes.FailedToUnmarshal{Message: fmt.Sprintf("bid %s has an unreadable ext: %v", bid.Bid.ID, err)})
		} else {
			result = append(result, *bid.Bid)
			resultBid := &result[len(result)-1]
			resultBid.Ext = bidExtJSON
		}
	}
	return result, errs
}

func makeBidExtJSON(ext json.RawMessage, prebid *openrtb_ext.ExtBidPrebid, originalBidCpm float64, originalBidCur string) (json.RawMessage, error) {
	var extMap map[string]interface{}

	if len(ext) != 0 {
		if err := json.Unmarshal(ext, &extMap); err != nil {
			return nil, err
		}
	}
	if extMap == nil {
		extMap = make(map[string]interface{})
	}

	//ext.origbidcpm
	if originalBidCur != "" {
		extMap[openrtb_ext.OriginalBidCpmKey] = originalBidCpm
		extMap[openrtb_ext.OriginalBidCurKey] = originalBidCur
	}

	extMap[openrtb_ext.PrebidExtKey] = prebid
	return json.Marshal(extMap)
}

// If bid got cached inside doCache, a UUID should be found inside `a.cacheIds` or `a.vastCacheIds`.
// This function returns the UUID along with the URL it can be fetched from.
func (e *exchange) getBidCacheInfo(bid *entities.PbsOrtbBid, auction *auction) (cacheInfo openrtb_ext.ExtBidPrebidCacheBids, found bool) {
	uuid, found := findCacheID(bid, auction)

	if found {
		cacheInfo.CacheId = uuid
		cacheInfo.Url = buildCacheURL(&e.cacheURL, uuid)
	}

	return
}

func findCacheID(bid *entities.PbsOrtbBid, auction *auction) (string, bool) {
	if bid != nil && bid.Bid != nil && auction != nil {
		if id, found := auction.cacheIds[bid.Bid]; found {
			return id, true
		}

		if id, found := auction.vastCacheIds[bid.Bid]; found {
			return id, true
		}
	}

	return "", false
}

func buildCacheURL(cache *config.Cache, uuid string) string {
	if cache.Host == "" {
		return ""
	}
	// URLs without a scheme will begin with //, in which case we
	// want to trim it off to keep compatbile with current behavior.
	return strings.TrimPrefix(cache.GetCachedAssetURL(uuid), "//")
}

func encodeBidResponseExt(bidResponseExt *openrtb_ext.ExtBidResponse) ([]byte, error) {
	buffer := &bytes.Buffer{}
	enc := json.NewEncoder(buffer)

	enc.SetEscapeHTML(false)
	err := enc.Encode(bidResponseExt)

	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), err
}

// setSeatNonBid adds SeatNonBids within bidResponse.Ext.Prebid.SeatNonBid
func setSeatNonBid(bidResponseExt *openrtb_ext.ExtBidResponse, seatNonBidBuilder SeatNonBidBuilder) *openrtb_ext.ExtBidResponse {
	if len(seatNonBidBuilder) == 0 {
		return bidResponseExt
	}
	if bidResponseExt == nil {
		bidResponseExt = &openrtb_ext.ExtBidResponse{}
	}
	if bidResponseExt.Prebid == nil {
		bidResponseExt.Prebid = &openrtb_ext.ExtResponsePrebid{}
	}

	bidResponseExt.Prebid.SeatNonBid = seatNonBidBuilder.Slice()
	return bidResponseExt
}
