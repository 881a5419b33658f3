// Package prebid_cache_client stores winning bids and VAST documents in Prebid Cache so that
// responses can carry a short cache id instead of the full creative.
package prebid_cache_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/metrics"
)

// Client stores values in Prebid Cache. See https://github.com/prebid/prebid-cache
type Client interface {
	// PutJson stores values and returns one cache id per value, in order. Values that could not
	// be stored get an empty id. Failures are also logged.
	PutJson(ctx context.Context, values []Cacheable) ([]string, []error)
}

type PayloadType string

const (
	TypeJSON PayloadType = "json"
	TypeXML  PayloadType = "xml"
)

// Cacheable is one value to store. Key is optional; the cache picks a uuid when it is empty.
type Cacheable struct {
	Type       PayloadType
	Data       json.RawMessage
	TTLSeconds int64
	Key        string
}

// putValue is the wire shape of one element of the "puts" array.
type putValue struct {
	Type       PayloadType     `json:"type"`
	TTLSeconds int64           `json:"ttlseconds,omitempty"`
	Value      json.RawMessage `json:"value"`
	Key        string          `json:"key,omitempty"`
}

func NewClient(httpClient *http.Client, conf *config.Cache, metrics metrics.MetricsEngine) Client {
	return &clientImpl{
		httpClient: httpClient,
		putUrl:     conf.GetBaseURL() + "/cache",
		metrics:    metrics,
	}
}

type clientImpl struct {
	httpClient *http.Client
	putUrl     string
	metrics    metrics.MetricsEngine
}

func (c *clientImpl) PutJson(ctx context.Context, values []Cacheable) ([]string, []error) {
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]string, len(values))

	body, err := encodeValues(values)
	if err != nil {
		return ids, []error{c.fail("failed to encode the cache request: %v", err)}
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.putUrl, bytes.NewReader(body))
	if err != nil {
		return ids, []error{c.fail("failed to build the cache request: %v", err)}
	}
	httpReq.Header.Add("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Add("Accept", "application/json")

	start := time.Now()
	httpResp, err := ctxhttp.Do(ctx, c.httpClient, httpReq)
	elapsed := time.Since(start)
	c.metrics.RecordPrebidCacheRequestTime(err == nil, elapsed)
	if err != nil {
		return ids, []error{c.fail("error sending the request to Prebid Cache: %v; Duration=%v", err, elapsed)}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return ids, []error{c.fail("error reading the Prebid Cache response: %v", err)}
	}
	if httpResp.StatusCode != http.StatusOK {
		return ids, []error{c.fail("Prebid Cache call to %s returned %d: %s", c.putUrl, httpResp.StatusCode, respBody)}
	}

	return ids, readIDs(respBody, ids)
}

// readIDs fills ids from the "responses" array in order. Extra entries are ignored and missing
// ones leave their id empty.
func readIDs(respBody []byte, ids []string) []error {
	var errs []error
	index := 0
	_, err := jsonparser.ArrayEach(respBody, func(entry []byte, _ jsonparser.ValueType, _ int, _ error) {
		defer func() { index++ }()
		if index >= len(ids) {
			return
		}
		uuid, valueType, _, err := jsonparser.Get(entry, "uuid")
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("Prebid Cache response %d has no uuid: %v", index, err))
		case valueType != jsonparser.String:
			errs = append(errs, fmt.Errorf("Prebid Cache response %d has a %v uuid", index, valueType))
		default:
			if ids[index], err = jsonparser.ParseString(uuid); err != nil {
				errs = append(errs, fmt.Errorf("Prebid Cache response %d uuid is unreadable: %v", index, err))
			}
		}
	}, "responses")
	if err != nil {
		glog.Errorf("unreadable Prebid Cache response %s: %v", respBody, err)
		errs = append(errs, fmt.Errorf("error interpreting Prebid Cache response: %v", err))
	}
	return errs
}

func (c *clientImpl) fail(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	glog.Error(err)
	return err
}

func encodeValues(values []Cacheable) ([]byte, error) {
	puts := make([]putValue, len(values))
	for i, v := range values {
		puts[i] = putValue{Type: v.Type, Value: v.Data, Key: v.Key}
		if v.TTLSeconds > 0 {
			puts[i].TTLSeconds = v.TTLSeconds
		}
	}
	return json.Marshal(struct {
		Puts []putValue `json:"puts"`
	}{puts})
}
