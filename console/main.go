package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/config"
	"go-exchange-rate-updater/exchange"
	"go-exchange-rate-updater/metrics"
	"go-exchange-rate-updater/pipeline"
)

func main() {
	configPath := flag.String("config", os.Getenv("RATES_CONFIG_PATH"), "path to the YAML config file")
	codes := flag.String("currencies", "", "comma separated currency codes, overrides console.currencies")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.NewLogfmtLogger(os.Stderr).Log("msg", "loading config", "err", err)
		os.Exit(1)
	}
	if *codes != "" {
		cfg.Console.Currencies = strings.Split(*codes, ",")
	}

	logger := pipeline.NewLogger(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, logger, metrics.New(prometheus.NewRegistry()))
	if err != nil {
		level.Error(logger).Log("msg", "building pipeline", "err", err)
		os.Exit(1)
	}
	defer p.Close()

	if err := run(ctx, os.Stdout, p.Service, cfg.Console.Currencies, cfg.TargetCurrency); err != nil {
		level.Error(logger).Log("msg", "retrieving exchange rates", "err", err)
		p.Close()
		os.Exit(1)
	}
}

// run prints one SRC/TGT=value line per rate the feed knows
func run(ctx context.Context, w io.Writer, s exchange.Service, codes []string, target string) error {
	currencies, err := updater.ParseCurrencies(strings.Join(codes, ","))
	if err != nil {
		return err
	}
	to, err := updater.NewCurrency(target)
	if err != nil {
		return err
	}

	rates, err := s.GetRates(ctx, currencies, to)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Successfully retrieved %d exchange rates:\n", len(rates))
	for _, r := range rates {
		fmt.Fprintln(w, r)
	}
	return nil
}
