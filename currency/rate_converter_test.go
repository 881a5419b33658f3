package currency

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRatesServer(t *testing.T, status *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(body))
	}))
}

func TestRateConverterRun(t *testing.T) {
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	server := newRatesServer(t, status, `{"dataAsOf":"2024-03-01","conversions":{"USD":{"EUR":0.92}}}`)
	defer server.Close()

	mockClock := clock.NewMock()
	converter := NewRateConverterWithClock(&http.Client{}, server.URL, 0, mockClock)

	require.NoError(t, converter.Run())

	rate, err := converter.Rates().GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.92").Equal(rate))
	assert.Equal(t, mockClock.Now(), converter.LastUpdated())

	info := converter.GetInfo()
	assert.Equal(t, server.URL, info.Source())
	assert.Equal(t, map[string]map[string]float64{"USD": {"EUR": 0.92}}, *info.Rates())
}

func TestRateConverterSnapshotIsolation(t *testing.T) {
	body := `{"conversions":{"USD":{"EUR":0.92}}}`
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	server := newRatesServer(t, status, body)
	defer server.Close()

	converter := NewRateConverterWithClock(&http.Client{}, server.URL, 0, clock.NewMock())
	require.NoError(t, converter.Run())
	snapshot := converter.Rates()

	require.NoError(t, converter.Run())

	assert.NotSame(t, snapshot, converter.Rates(), "each refresh stores a new snapshot")
	rate, err := snapshot.GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.92").Equal(rate))
}

func TestRateConverterStaleRates(t *testing.T) {
	status := &atomic.Int32{}
	status.Store(http.StatusOK)
	server := newRatesServer(t, status, `{"conversions":{"USD":{"EUR":0.92}}}`)
	defer server.Close()

	mockClock := clock.NewMock()
	converter := NewRateConverterWithClock(&http.Client{}, server.URL, time.Hour, mockClock)
	require.NoError(t, converter.Run())

	status.Store(http.StatusInternalServerError)

	mockClock.Add(30 * time.Minute)
	assert.Error(t, converter.Run())
	_, isRates := converter.Rates().(*Rates)
	assert.True(t, isRates, "rates are kept while still fresh")

	mockClock.Add(time.Hour)
	assert.Error(t, converter.Run())
	assert.Equal(t, NewConstantRates(), converter.Rates(), "stale rates fall back to constant rates")
}

func TestRateConverterWithoutSource(t *testing.T) {
	converter := NewRateConverter(&http.Client{}, "", 0)

	assert.NoError(t, converter.Run())
	assert.Equal(t, NewConstantRates(), converter.Rates())
	assert.True(t, converter.LastUpdated().IsZero())
}
