package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/didip/tollbooth"
	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/prebid/auction-orchestrator/categories"
	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/endpoints"
	"github.com/prebid/auction-orchestrator/endpoints/openrtb2"
	"github.com/prebid/auction-orchestrator/exchange"
	"github.com/prebid/auction-orchestrator/floors"
	metricsConf "github.com/prebid/auction-orchestrator/metrics/config"
	"github.com/prebid/auction-orchestrator/openrtb_ext"
	pbc "github.com/prebid/auction-orchestrator/prebid_cache_client"
	"github.com/prebid/auction-orchestrator/privacy"
	"github.com/prebid/auction-orchestrator/router/aspects"
	"github.com/prebid/auction-orchestrator/stored_responses"
)

// NewJsonDirectoryServer is used to serve .json files from a directory as a single blob. For example,
// given a directory containing the files "a.json" and "b.json", this returns a Handle which serves JSON like:
//
//	{
//	  "a": { ... content from the file a.json ... },
//	  "b": { ... content from the file b.json ... }
//	}
//
// Aliases are served the schema of the bidder they stand for. The directory is read once.
func NewJsonDirectoryServer(schemaDirectory string, validator openrtb_ext.BidderParamValidator, aliases map[string]string) (httprouter.Handle, error) {
	files, err := os.ReadDir(schemaDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %v", schemaDirectory, err)
	}

	data := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		bidder := strings.TrimSuffix(file.Name(), ".json")
		data[bidder] = json.RawMessage(validator.Schema(openrtb_ext.BidderName(bidder)))
	}

	for aliasName, bidderName := range aliases {
		bidderData, ok := data[bidderName]
		if !ok {
			return nil, fmt.Errorf("alias %s references bidder %s, which has no params schema", aliasName, bidderName)
		}
		data[aliasName] = bidderData
	}

	response, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bidder param JSON-schema: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Add("Content-Type", "application/json")
		w.Write(response)
	}, nil
}

type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

type Router struct {
	*httprouter.Router
	MetricsEngine   *metricsConf.DetailedMetricsEngine
	ParamsValidator openrtb_ext.BidderParamValidator
	Shutdown        func()
}

func newHTTPClient(cfg config.HTTPClient) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     time.Duration(cfg.IdleConnTimeout) * time.Second,
		},
	}
}

// New wires every dependency of an auction together and registers the public endpoints.
func New(cfg *config.Configuration, rateConvertor *currency.RateConverter) (r *Router, err error) {
	r = &Router{
		Router:   httprouter.New(),
		Shutdown: func() {},
	}

	generalHttpClient := newHTTPClient(cfg.Client)
	cacheHttpClient := newHTTPClient(cfg.CacheClient)

	bidderInfos, err := config.LoadBidderInfoFromDisk(cfg.BidderInfoPath, cfg.Adapters, configuredBidders(cfg.Adapters))
	if err != nil {
		return nil, err
	}

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg, bidderInfos.EnabledBidders())

	r.ParamsValidator, err = openrtb_ext.NewBidderParamsValidator(cfg.BidderParamsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create the bidder params validator: %v", err)
	}

	categoriesFetcher, err := newCategoriesFetcher(cfg.CategoryMapping, generalHttpClient, r.MetricsEngine)
	if err != nil {
		return nil, err
	}

	storedRespFetcher, err := newStoredResponsesFetcher(cfg.StoredResponses)
	if err != nil {
		return nil, err
	}

	cacheClient := pbc.NewClient(cacheHttpClient, &cfg.CacheURL, r.MetricsEngine)
	transport := exchange.NewHTTPTransport(generalHttpClient, cfg.Adapters)

	theExchange := exchange.NewExchange(transport, cacheClient, cfg, r.MetricsEngine, bidderInfos, rateConvertor, categoriesFetcher, exchange.Collaborators{
		Privacy:       privacy.NewEnforcer(cfg.Privacy),
		AccessControl: bidderInfos,
		Validator:     exchange.NewResponseValidator(),
		Floors:        floors.NewAdjuster(bidderInfos),
	})

	openrtbEndpoint, err := openrtb2.NewEndpoint(theExchange, r.ParamsValidator, storedRespFetcher, cfg, r.MetricsEngine)
	if err != nil {
		return nil, fmt.Errorf("failed to create the openrtb2 endpoint handler: %v", err)
	}
	if cfg.RequestTimeoutHeaders != (config.RequestTimeoutHeaders{}) {
		openrtbEndpoint = aspects.QueuedRequestTimeout(openrtbEndpoint, cfg.RequestTimeoutHeaders)
	}
	openrtbEndpoint = rateLimited(openrtbEndpoint, cfg.RateLimit.MaxRequestsPerSecond)

	paramsEndpoint, err := NewJsonDirectoryServer(cfg.BidderParamsPath, r.ParamsValidator, aliasesOf(cfg.Adapters))
	if err != nil {
		return nil, err
	}

	r.POST("/openrtb2/auction", openrtbEndpoint)
	r.GET("/bidders/params", paramsEndpoint)
	r.GET("/status", endpoints.NewStatusEndpoint(cfg.StatusResponse))

	glog.Infof("Auction endpoint ready with %d enabled bidders", len(bidderInfos.EnabledBidders()))
	return r, nil
}

// Admin serves the endpoints meant for operators only.
func Admin(revision string, rateConverter *currency.RateConverter, rateConverterFetchingInterval time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/currency/rates", endpoints.NewCurrencyRatesEndpoint(rateConverter, rateConverterFetchingInterval))
	mux.Handle("/version", endpoints.NewVersionEndpoint(Version, revision))
	return mux
}

// Version is set at build time with -ldflags "-X github.com/prebid/auction-orchestrator/router.Version=..."
var Version string

func newCategoriesFetcher(cfg config.CategoryMapping, client *http.Client, me *metricsConf.DetailedMetricsEngine) (categories.Fetcher, error) {
	var fetcher categories.Fetcher
	if cfg.URL != "" {
		fetcher = categories.NewHttpFetcher(client, cfg.URL)
	} else {
		tables, err := categories.NewCategoriesFromDir(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load category mappings from %s: %v", cfg.Path, err)
		}
		fetcher = tables
	}
	return categories.NewCachedFetcher(fetcher, cfg.CacheSizeBytes, cfg.TTLSeconds, me), nil
}

// newStoredResponsesFetcher returns nil when no directory is configured. Requests which name a stored
// response are then rejected.
func newStoredResponsesFetcher(cfg config.StoredResponses) (stored_responses.Fetcher, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	fetcher, err := stored_responses.NewFileFetcher(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored responses from %s: %v", cfg.Path, err)
	}
	return stored_responses.NewCachedFetcher(fetcher,
		time.Duration(cfg.CacheExpirySeconds)*time.Second,
		time.Duration(cfg.CacheCleanupIntSeconds)*time.Second), nil
}

// rateLimited caps handle at maxPerSecond requests per second and client. A zero cap leaves it alone.
func rateLimited(handle httprouter.Handle, maxPerSecond float64) httprouter.Handle {
	if maxPerSecond <= 0 {
		return handle
	}
	limiter := tollbooth.NewLimiter(maxPerSecond, nil)
	limiter.SetMessage("Too many auction requests. Slow down.")
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if httpErr := tollbooth.LimitByRequest(limiter, w, r); httpErr != nil {
			w.WriteHeader(httpErr.StatusCode)
			w.Write([]byte(httpErr.Message))
			return
		}
		handle(w, r, params)
	}
}

func configuredBidders(adapters map[string]config.Adapter) []string {
	bidders := make([]string, 0, len(adapters))
	for name := range adapters {
		bidders = append(bidders, name)
	}
	sort.Strings(bidders)
	return bidders
}

func aliasesOf(adapters map[string]config.Adapter) map[string]string {
	aliases := make(map[string]string)
	for name, adapter := range adapters {
		for _, alias := range adapter.Aliases {
			aliases[alias] = name
		}
	}
	return aliases
}

// SupportCORS wraps handler so that browsers on any origin may call it with credentials.
//
// For more info, see:
//
// - https://github.com/rs/cors/issues/55
// - https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS/Errors/CORSNotSupportingCredentials
// - https://portswigger.net/blog/exploiting-cors-misconfigurations-for-bitcoins-and-bounties
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
