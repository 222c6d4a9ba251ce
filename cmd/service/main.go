package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/portfolio-service/internal"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := internal.LoadConfig()
	if err != nil {
		fallback := internal.NewLogger(internal.LoggerConfig{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	// flags override env; validation waits until both are applied
	flag.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "store driver (postgres or sqlite)")
	flag.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "store DSN")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP listen address")
	flag.BoolVar(&cfg.CacheWarmup, "warmup", cfg.CacheWarmup, "load every portfolio into the cache at startup")
	flag.BoolVar(&cfg.NATS.Enabled, "nats-enabled", cfg.NATS.Enabled, "run the NATS Streaming ingest consumer")
	flag.StringVar(&cfg.NATS.URL, "nats", cfg.NATS.URL, "NATS URL")
	flag.StringVar(&cfg.NATS.ClusterID, "cluster", cfg.NATS.ClusterID, "NATS Streaming cluster ID")
	flag.StringVar(&cfg.NATS.ClientID, "client", cfg.NATS.ClientID, "NATS client ID")
	flag.StringVar(&cfg.NATS.Channel, "channel", cfg.NATS.Channel, "NATS channel to subscribe")
	flag.StringVar(&cfg.NATS.Durable, "durable", cfg.NATS.Durable, "NATS durable name")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	log := internal.NewLogger(internal.LoggerConfig{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := internal.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open store")
	}
	defer store.Close()

	cache := internal.NewCache()
	defer cache.Close()
	if cfg.CacheWarmup {
		warmCache(ctx, store, cache, log)
	}

	service := internal.NewPortfolioService(store, cache, log)

	if cfg.NATS.Enabled {
		natsCons, err := internal.NewNatsConsumer(cfg.NATS, store, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start nats consumer")
		}
		defer natsCons.Close()

		go func() {
			if err := natsCons.Start(ctx); err != nil {
				log.Error().Err(err).Msg("nats consumer stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      internal.NewServer(service, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	cancel() // stop consumer

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	log.Info().Msg("bye")
}

func warmCache(ctx context.Context, store internal.Store, cache *internal.Cache, log zerolog.Logger) {
	log.Info().Msg("warming cache from store")
	all, err := store.LoadAllPortfolios(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load initial portfolios")
		return
	}
	cache.LoadAll(all)
	log.Info().Int("count", len(all)).Msg("loaded portfolios into cache")
}
