package currency

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateConverter is the server-wide rates provider. Run refreshes it from syncSourceURL and Rates
// hands out the latest snapshot. Until the first fetch succeeds, or once the last good fetch is
// older than staleRatesThreshold, it falls back to constant rates.
type RateConverter struct {
	httpClient          httpClient
	syncSourceURL       string
	staleRatesThreshold time.Duration
	clock               clock.Clock

	// current is replaced whole on every good fetch and never modified in place.
	current       atomic.Pointer[Rates]
	lastFetchedAt atomic.Pointer[time.Time]
	constantRates Conversions
}

func NewRateConverter(httpClient httpClient, syncSourceURL string, staleRatesThreshold time.Duration) *RateConverter {
	return NewRateConverterWithClock(httpClient, syncSourceURL, staleRatesThreshold, clock.New())
}

// NewRateConverterWithClock is NewRateConverter with an explicit time source.
func NewRateConverterWithClock(httpClient httpClient, syncSourceURL string, staleRatesThreshold time.Duration, c clock.Clock) *RateConverter {
	return &RateConverter{
		httpClient:          httpClient,
		syncSourceURL:       syncSourceURL,
		staleRatesThreshold: staleRatesThreshold,
		clock:               c,
		constantRates:       NewConstantRates(),
	}
}

// Run refreshes the rates, so a task.TickerTask can schedule the converter directly.
func (rc *RateConverter) Run() error {
	if rc.syncSourceURL == "" {
		return nil
	}

	rates, err := rc.fetch()
	if err != nil {
		if rc.isStale() {
			rc.current.Store(nil)
			glog.Errorf("Error updating conversion rates, falling back to constant rates: %v", err)
		} else {
			glog.Errorf("Error updating conversion rates: %v", err)
		}
		return err
	}

	now := rc.clock.Now()
	rc.current.Store(rates)
	rc.lastFetchedAt.Store(&now)
	return nil
}

func (rc *RateConverter) fetch() (*Rates, error) {
	request, err := http.NewRequest(http.MethodGet, rc.syncSourceURL, nil)
	if err != nil {
		return nil, err
	}
	response, err := rc.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("currency rates source responded with status %d", response.StatusCode)
	}

	rates := &Rates{}
	if err := json.NewDecoder(response.Body).Decode(rates); err != nil {
		return nil, err
	}
	return rates, nil
}

// isStale is true when the last good fetch is older than the threshold. A zero threshold never goes stale.
func (rc *RateConverter) isStale() bool {
	if rc.staleRatesThreshold <= 0 {
		return false
	}
	last := rc.lastFetchedAt.Load()
	return last != nil && rc.clock.Now().Sub(*last) > rc.staleRatesThreshold
}

// LastUpdated is the time of the last successful fetch, kept even after stale rates are dropped.
func (rc *RateConverter) LastUpdated() time.Time {
	if last := rc.lastFetchedAt.Load(); last != nil {
		return *last
	}
	return time.Time{}
}

func (rc *RateConverter) Rates() Conversions {
	if rates := rc.current.Load(); rates != nil {
		return rates
	}
	return rc.constantRates
}

func (rc *RateConverter) GetInfo() ConverterInfo {
	return converterInfo{
		source:      rc.syncSourceURL,
		lastUpdated: rc.LastUpdated(),
		rates:       rc.Rates().GetRates(),
	}
}
