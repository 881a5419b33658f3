package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/prebid/auction-orchestrator/currency"
)

type rateConverter interface {
	GetInfo() currency.ConverterInfo
}

// ratesSnapshot is the body of /currency/rates. Everything but Active is omitted until the
// converter has something to report.
type ratesSnapshot struct {
	Active           bool                           `json:"active"`
	Source           *string                        `json:"source,omitempty"`
	FetchingInterval *time.Duration                 `json:"fetchingIntervalNs,omitempty"`
	LastUpdated      *time.Time                     `json:"lastUpdated,omitempty"`
	Rates            *map[string]map[string]float64 `json:"rates,omitempty"`
}

func takeRatesSnapshot(converter rateConverter, fetchingInterval time.Duration) ratesSnapshot {
	if converter == nil {
		return ratesSnapshot{}
	}
	info := converter.GetInfo()
	if info == nil {
		return ratesSnapshot{Active: true}
	}

	source, lastUpdated := info.Source(), info.LastUpdated()
	return ratesSnapshot{
		Active:           true,
		Source:           &source,
		FetchingInterval: &fetchingInterval,
		LastUpdated:      &lastUpdated,
		Rates:            info.Rates(),
	}
}

// NewCurrencyRatesEndpoint serves the rates auctions are converting with at the moment of the call.
func NewCurrencyRatesEndpoint(converter rateConverter, fetchingInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body, err := json.Marshal(takeRatesSnapshot(converter, fetchingInterval))
		if err != nil {
			glog.Errorf("/currency/rates failed to marshal the rates snapshot: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
