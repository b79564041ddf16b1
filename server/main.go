package main

import (
	"context"
	"errors"
	"flag"
	nhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/config"
	"go-exchange-rate-updater/http"
	"go-exchange-rate-updater/metrics"
	"go-exchange-rate-updater/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("RATES_CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.NewLogfmtLogger(os.Stderr).Log("msg", "loading config", "err", err)
		os.Exit(1)
	}

	logger := pipeline.NewLogger(os.Stderr, cfg.Log.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, logger, m)
	if err != nil {
		level.Error(logger).Log("msg", "building pipeline", "err", err)
		os.Exit(1)
	}
	defer p.Close()

	srv := &nhttp.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newHandler(cfg, p, reg, m, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		level.Info(logger).Log("msg", "listening", "addr", cfg.HTTP.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nhttp.ErrServerClosed) {
			level.Error(logger).Log("msg", "http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// newHandler serves the pipeline with health checks and request metrics
func newHandler(cfg *config.Config, p *pipeline.Pipeline, reg *prometheus.Registry, m *metrics.Metrics, logger log.Logger) *http.Server {
	options := []http.Option{
		http.WithLogger(log.With(logger, "component", "http")),
		http.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		http.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		http.WithInstrumentation(m.InstrumentHandler),
	}
	for _, check := range p.Checks() {
		options = append(options, http.WithHealthCheck(check.Name, check.Run, check.Critical))
	}
	return http.NewServer(p.Service, updater.MustCurrency(cfg.TargetCurrency), options...)
}
