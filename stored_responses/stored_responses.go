package stored_responses

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/auction-orchestrator/openrtb_ext"
)

type StoredResponseIDs []string
type StoredResponseIdToStoredResponse map[string]json.RawMessage
type ImpBiddersWithBidResponseIDs map[string]map[string]string

// ImpBidderStoredResp maps imp ids, then bidder names, to the stored response standing in for that bidder.
type ImpBidderStoredResp map[string]map[string]json.RawMessage

// Fetcher loads stored responses by id. Ids it cannot find are reported as errors.
type Fetcher interface {
	FetchResponses(ctx context.Context, ids []string) (StoredResponseIdToStoredResponse, []error)
}

// NotFoundError is returned for ids no stored response exists for.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("No stored response found for id: %s", e.ID)
}

// NewFileFetcher _immediately_ loads every stored response under directory. Each is expected in
// its own "{id}.json" file.
func NewFileFetcher(directory string) (Fetcher, error) {
	files, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	data := make(StoredResponseIdToStoredResponse, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") { // Skip the .gitignore
			continue
		}
		fileData, err := os.ReadFile(filepath.Join(directory, file.Name()))
		if err != nil {
			return nil, err
		}
		if !json.Valid(fileData) {
			return nil, fmt.Errorf("stored response %s is not valid json", file.Name())
		}
		data[strings.TrimSuffix(file.Name(), ".json")] = json.RawMessage(fileData)
	}
	return &eagerFetcher{data: data}, nil
}

type eagerFetcher struct {
	data StoredResponseIdToStoredResponse
}

func (fetcher *eagerFetcher) FetchResponses(ctx context.Context, ids []string) (StoredResponseIdToStoredResponse, []error) {
	var errs []error
	found := make(StoredResponseIdToStoredResponse, len(ids))
	for _, id := range ids {
		if resp, ok := fetcher.data[id]; ok {
			found[id] = resp
		} else {
			errs = append(errs, NotFoundError{ID: id})
		}
	}
	return found, errs
}

// cachedFetcher remembers what its backend returned for a while, so repeated auctions for the same
// stored responses don't go back to it.
type cachedFetcher struct {
	fetcher Fetcher
	cache   *cache.Cache
}

func NewCachedFetcher(fetcher Fetcher, expiry time.Duration, cleanupInterval time.Duration) Fetcher {
	return &cachedFetcher{
		fetcher: fetcher,
		cache:   cache.New(expiry, cleanupInterval),
	}
}

func (f *cachedFetcher) FetchResponses(ctx context.Context, ids []string) (StoredResponseIdToStoredResponse, []error) {
	found := make(StoredResponseIdToStoredResponse, len(ids))
	var missing []string
	for _, id := range ids {
		if resp, ok := f.cache.Get(id); ok {
			found[id] = resp.(json.RawMessage)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return found, nil
	}

	fetched, errs := f.fetcher.FetchResponses(ctx, missing)
	for id, resp := range fetched {
		f.cache.SetDefault(id, resp)
		found[id] = resp
	}
	return found, errs
}

// extractStoredResponseIDs reads imp.ext.prebid.storedbidresponse of every imp. A stored response
// is only kept for bidders the imp actually names; bidder names match case-insensitively.
func extractStoredResponseIDs(imps []openrtb2.Imp) (StoredResponseIDs, ImpBiddersWithBidResponseIDs, error) {
	allStoredResponseIDs := StoredResponseIDs{}
	impBiddersWithBidResponseIDs := ImpBiddersWithBidResponseIDs{}

	for index, imp := range imps {
		impExt, err := openrtb_ext.ReadExtImp(imp.Ext)
		if err != nil {
			return nil, nil, fmt.Errorf("request.imp[%d].ext is invalid: %v", index, err)
		}
		if impExt.Prebid == nil || len(impExt.Prebid.StoredBidResponse) == 0 {
			continue
		}

		bidderStoredRespId := make(map[string]string)
		for _, bidderResp := range impExt.Prebid.StoredBidResponse {
			if len(bidderResp.ID) == 0 || len(bidderResp.Bidder) == 0 {
				return nil, nil, fmt.Errorf("request.imp[%d] has ext.prebid.storedbidresponse specified, but \"id\" or/and \"bidder\" fields are missing ", index)
			}
			for bidderName := range impExt.Prebid.Bidder {
				if _, found := bidderStoredRespId[bidderName]; !found && strings.EqualFold(bidderName, bidderResp.Bidder) {
					bidderStoredRespId[bidderName] = bidderResp.ID
					//storedBidResponse ids are not unique, but fetch will return single data for repeated ids
					allStoredResponseIDs = append(allStoredResponseIDs, bidderResp.ID)
				}
			}
		}
		if len(bidderStoredRespId) > 0 {
			impBiddersWithBidResponseIDs[imp.ID] = bidderStoredRespId
		}
	}
	return allStoredResponseIDs, impBiddersWithBidResponseIDs, nil
}

// ProcessStoredResponses finds the stored bid responses the request refers to and loads them. The
// result is keyed by imp id, then by bidder name as the imp spells it.
func ProcessStoredResponses(ctx context.Context, request *openrtb2.BidRequest, fetcher Fetcher) (ImpBidderStoredResp, []error) {
	ids, impBidderToStoredBidResponseId, err := extractStoredResponseIDs(request.Imp)
	if err != nil {
		return nil, []error{err}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if fetcher == nil {
		return nil, []error{fmt.Errorf("request refers to stored bid responses, but none are configured")}
	}

	storedResponses, errs := fetcher.FetchResponses(ctx, ids)
	if len(errs) > 0 {
		return nil, errs
	}

	impBidderToStoredBidResponse := ImpBidderStoredResp{}
	for impId, bidderStoredResp := range impBidderToStoredBidResponseId {
		bidderStoredResponses := make(map[string]json.RawMessage, len(bidderStoredResp))
		for bidderName, id := range bidderStoredResp {
			if len(storedResponses[id]) == 0 {
				errs = append(errs, fmt.Errorf("failed to fetch stored bid response for impId = %s, bidder = %s and storedBidResponse id = %s", impId, bidderName, id))
			} else {
				bidderStoredResponses[bidderName] = storedResponses[id]
			}
		}
		impBidderToStoredBidResponse[impId] = bidderStoredResponses
	}
	return impBidderToStoredBidResponse, errs
}
