package server

import (
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prebid/auction-orchestrator/config"
	metricsconfig "github.com/prebid/auction-orchestrator/metrics/config"
)

// maxScrapesInFlight caps concurrent scrapes of the Prometheus listener.
const maxScrapesInFlight = 5

func newPrometheusServer(cfg *config.Configuration, engine *metricsconfig.DetailedMetricsEngine) *http.Server {
	if engine == nil || engine.PrometheusMetrics == nil {
		glog.Fatal("metrics.prometheus.port is set but no Prometheus engine was built; refusing to start the scrape listener.")
	}

	handler := promhttp.HandlerFor(engine.PrometheusMetrics.Gatherer, promhttp.HandlerOpts{
		ErrorLog:            scrapeErrorLog{},
		MaxRequestsInFlight: maxScrapesInFlight,
		Timeout:             cfg.Metrics.Prometheus.Timeout(),
	})
	return &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.Metrics.Prometheus.Port),
		Handler: handler,
	}
}

// scrapeErrorLog routes promhttp errors to glog.
type scrapeErrorLog struct{}

func (scrapeErrorLog) Println(v ...interface{}) {
	glog.Warningln(v...)
}
