package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/wirepulse/wirepulse-agent/config"
	"github.com/wirepulse/wirepulse-agent/jobs"
)

const VERSION = "0.4.2"

const (
	defaultListen     = ":8000"
	defaultConfigPath = "/etc/wirepulse/config.yml"
)

func main() {
	if err := loadEnv(".env"); err != nil {
		log.Warnf("could not load .env: %v", err)
	}

	listen := flag.String("listen", envOr("LISTEN_ADDR", defaultListen),
		"address to expose prometheus metrics on")
	configPath := flag.String("config", envOr("CONFIG_PATH", defaultConfigPath),
		"path to the YAML configuration file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Infof("starting wirepulse agent v%s", VERSION)

	cfg, err := config.Load(*configPath)
	if err != nil {
		// schema errors are fatal before any job starts
		log.Fatalf("load config %s: %v", *configPath, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := jobs.NewMetrics(registry)
	jobList := jobs.FromConfig(cfg, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: *listen, Handler: mux}

	go func() {
		log.Infof("prometheus metrics exposed on %s/metrics", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()

	scheduler := jobs.NewScheduler(jobList)
	if err := scheduler.Run(ctx); err != nil {
		log.Error(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("metrics server shutdown: %v", err)
	}

	fmt.Println("wirepulse agent stopped")
}
