package categories

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"
)

// HttpFetcher pulls translation tables from an endpoint the first time they are needed and keeps
// them for the life of the process.
//
// This expects the endpoint to serve
//
//	GET {endpoint}/{adserver}.json
//	GET {endpoint}/{adserver}/{publisher}.json
//
// each returning a table such as {"IAB1-1": {"id": "1", "name": "Arts"}}.
type HttpFetcher struct {
	client   *http.Client
	endpoint string

	mu     sync.RWMutex
	tables map[string]map[string]string
}

func NewHttpFetcher(client *http.Client, endpoint string) *HttpFetcher {
	if _, err := url.Parse(endpoint); err != nil {
		glog.Fatalf(`Invalid endpoint "%s": %v`, endpoint, err)
	}
	glog.Infof("Making category http fetcher for endpoint %v", endpoint)

	return &HttpFetcher{
		client:   client,
		endpoint: strings.TrimSuffix(endpoint, "/"),
		tables:   make(map[string]map[string]string),
	}
}

func (fetcher *HttpFetcher) FetchCategories(ctx context.Context, primaryAdServer, publisherId, iabCategory string) (string, error) {
	name := tableName(primaryAdServer, publisherId)

	fetcher.mu.RLock()
	table, ok := fetcher.tables[name]
	fetcher.mu.RUnlock()

	if !ok {
		var err error
		if table, err = fetcher.fetchTable(ctx, primaryAdServer, publisherId); err != nil {
			return "", err
		}
		fetcher.mu.Lock()
		fetcher.tables[name] = table
		fetcher.mu.Unlock()
	}

	if category := table[iabCategory]; category != "" {
		return category, nil
	}
	return "", fmt.Errorf("Unable to find category mapping for adserver: '%s', publisherId: '%s'", primaryAdServer, publisherId)
}

func (fetcher *HttpFetcher) fetchTable(ctx context.Context, primaryAdServer, publisherId string) (map[string]string, error) {
	uri := fmt.Sprintf("%s/%s.json", fetcher.endpoint, primaryAdServer)
	if publisherId != "" {
		uri = fmt.Sprintf("%s/%s/%s.json", fetcher.endpoint, primaryAdServer, publisherId)
	}

	httpReq, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := ctxhttp.Do(ctx, fetcher.client, httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Unable to fetch categories for adserver: '%s', publisherId: '%s'. Status %d", primaryAdServer, publisherId, httpResp.StatusCode)
	}
	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	table, err := parseTable(respBytes)
	if err != nil {
		return nil, fmt.Errorf("Unable to unmarshal categories for adserver: '%s', publisherId: '%s'", primaryAdServer, publisherId)
	}
	return table, nil
}
