package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/currency"
	"github.com/prebid/auction-orchestrator/router"
	"github.com/prebid/auction-orchestrator/server"
	"github.com/prebid/auction-orchestrator/util/task"
)

// Rev is the commit the binary was built from, stamped with
//
//	go build -ldflags "-X main.Rev=`git rev-parse --short HEAD`"
var Rev string

// configName is looked up as pbs.yaml (or any format viper reads) in the working directory and /etc/config.
const configName = "pbs"

func main() {
	flag.Parse() // glog reads its flags from the command line

	v := viper.New()
	config.SetupViper(v, configName)
	cfg, err := config.New(v)
	if err != nil {
		glog.Exitf("Configuration could not be loaded or did not pass validation: %v", err)
	}

	if err := serve(Rev, cfg); err != nil {
		glog.Exitf("auction server failed: %v", err)
	}
}

func serve(revision string, cfg *config.Configuration) error {
	fetchInterval := time.Duration(cfg.CurrencyConverter.FetchIntervalSeconds) * time.Second
	staleAfter := time.Duration(cfg.CurrencyConverter.StaleRatesSeconds) * time.Second
	rates := currency.NewRateConverter(&http.Client{}, cfg.CurrencyConverter.FetchURL, staleAfter)

	ratesRefresh := task.NewTickerTask(fetchInterval, rates)
	ratesRefresh.Start()
	defer ratesRefresh.Stop()

	r, err := router.New(cfg, rates)
	if err != nil {
		return err
	}
	defer r.Shutdown()

	server.Listen(cfg, router.NoCache{Handler: router.SupportCORS(r)}, router.Admin(revision, rates, fetchInterval), r.MetricsEngine)
	return nil
}
