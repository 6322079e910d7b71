package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/fes.go/pkg/control"
	"github.com/robotalks/fes.go/pkg/env"
	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

const metricsNamespace = "fes"

func init() {
	env.SetupFlags()
}

func serveHTTP(addr string, h http.Handler) fx.Runnable {
	return fx.RunFunc(func(ctx context.Context) error {
		srv := &http.Server{Addr: addr, Handler: h}
		glog.Infof("Listening on %s", addr)
		return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
	})
}

func main() {
	flag.Parse()
	conf := env.Default()

	sync, err := conf.SyncByte()
	if err != nil {
		glog.Exit(err)
	}
	interval, err := control.Interval(conf.Frequency)
	if err != nil {
		glog.Exit(err)
	}

	metrics := fes.NewMetrics(metricsNamespace)
	stim := conf.MustNewStimulator(fes.WithMetrics(metrics))
	if err := control.Start(stim, sync, conf.Frequency); err != nil {
		stim.Close()
		glog.Exitf("Start stimulation: %v", err)
	}
	defer stim.Close()

	loop := fx.NewLoop(interval)
	runner := fx.NewRunner().HandleSignals()
	var sinks []control.StatusSink

	link, err := conf.NewLink(stim.Name())
	if err != nil {
		glog.Errorf("MQTT disabled: %v", err)
	}
	if link != nil {
		defer link.Queue.Close()
		link.OnCommand = func(cmd telemetry.Command) {
			loop.PostMessage(cmd)
		}
		loop.AddRunnable(fx.NamedRun("mqtt", link))
		sinks = append(sinks, link)
	}

	if conf.WSAddr != "" {
		hub := telemetry.NewHub()
		mux := http.NewServeMux()
		mux.Handle("/ws", hub.Handler())
		runner.Go(fx.NamedRun("ws", serveHTTP(conf.WSAddr, mux)))
		sinks = append(sinks, hub)
	}

	if conf.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics, fes.NewStatusCollector(metricsNamespace, stim))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		runner.Go(fx.NamedRun("metrics", serveHTTP(conf.MetricsAddr, mux)))
	}

	reportEvery := uint64(time.Second / interval)
	if reportEvery == 0 {
		reportEvery = 1
	}
	control.AddToLoop(loop, stim, reportEvery, sinks...)
	runner.Go(fx.NamedRun("loop", loop))

	glog.Infof("Stimulating at %vHz, period %v", conf.Frequency, interval)
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
