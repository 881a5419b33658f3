package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/golang/glog"

	"github.com/prebid/auction-orchestrator/config"
	"github.com/prebid/auction-orchestrator/metrics"
	metricsconfig "github.com/prebid/auction-orchestrator/metrics/config"
)

const (
	mainServerIOTimeout = 15 * time.Second
	shutdownGracePeriod = 10 * time.Second
)

// Listen serves auctions on the main port and the admin endpoints on the admin port, plus the
// Prometheus scrape endpoint when one is configured. It blocks until SIGTERM or SIGINT, then shuts
// every server down gracefully.
func Listen(cfg *config.Configuration, handler http.Handler, adminHandler http.Handler, engine *metricsconfig.DetailedMetricsEngine) {
	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGTERM, syscall.SIGINT)

	servers := []namedServer{
		{name: "Main", server: newMainServer(cfg, handler), monitored: true},
		{name: "Admin", server: newAdminServer(cfg, adminHandler)},
	}
	if cfg.Metrics.Prometheus.Port != 0 {
		servers = append(servers, namedServer{name: "Prometheus", server: newPrometheusServer(cfg, engine)})
	}

	listeners := make([]net.Listener, len(servers))
	for i, s := range servers {
		var connMetrics metrics.MetricsEngine
		if s.monitored && engine != nil {
			connMetrics = engine
		}
		ln, err := newListener(s.server.Addr, connMetrics)
		if err != nil {
			glog.Errorf("%s server: %v", s.name, err)
			closeAll(listeners[:i])
			return
		}
		listeners[i] = ln
	}

	done := make(chan struct{})
	stoppers := make([]chan<- os.Signal, len(servers))
	for i, s := range servers {
		stop := make(chan os.Signal)
		stoppers[i] = stop
		go shutdownAfterSignals(s.server, stop, done)
		go runServer(s.server, s.name, listeners[i])
	}
	wait(stopSignals, done, stoppers...)
}

type namedServer struct {
	name   string
	server *http.Server
	// monitored servers report their connections to the metrics engine.
	monitored bool
}

func closeAll(listeners []net.Listener) {
	for _, ln := range listeners {
		ln.Close()
	}
}

func newAdminServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    cfg.Host + ":" + strconv.Itoa(cfg.AdminPort),
		Handler: handler,
	}
}

func newMainServer(cfg *config.Configuration, handler http.Handler) *http.Server {
	if cfg.EnableGzip {
		handler = gziphandler.GzipHandler(handler)
	}
	return &http.Server{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  mainServerIOTimeout,
		WriteTimeout: mainServerIOTimeout,
	}
}

func runServer(server *http.Server, name string, listener net.Listener) {
	glog.Infof("%s server starting on: %s", name, server.Addr)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		glog.Errorf("%s server quit with error: %v", name, err)
		return
	}
	glog.Infof("%s server stopped", name)
}

func newListener(address string, metricsEngine metrics.MetricsEngine) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("error listening for TCP connections on %s: %v", address, err)
	}

	if tcp, ok := ln.(*net.TCPListener); ok {
		ln = &tcpKeepAliveListener{tcp}
	} else {
		glog.Warningf("listener on %s is not TCP; connections will not use keep-alives", address)
	}

	if metricsEngine != nil {
		ln = &monitorableListener{ln, metricsEngine}
	}

	return ln, nil
}

// wait fans the first inbound signal out to every server and returns once all of them are down.
func wait(inbound <-chan os.Signal, done <-chan struct{}, outbound ...chan<- os.Signal) {
	sig := <-inbound
	for _, to := range outbound {
		go func(to chan<- os.Signal) { to <- sig }(to)
	}
	for range outbound {
		<-done
	}
}

func shutdownAfterSignals(server *http.Server, stopper <-chan os.Signal, done chan<- struct{}) {
	sig := <-stopper

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	glog.Infof("Stopping %s because of signal: %s", server.Addr, sig.String())
	if err := server.Shutdown(ctx); err != nil {
		glog.Errorf("Failed to shutdown %s: %v", server.Addr, err)
	}
	done <- struct{}{}
}
