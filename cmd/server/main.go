package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ingot/internal/engine/handler"
	"ingot/internal/engine/metrics"
	"ingot/internal/engine/service"
	"ingot/internal/engine/store/ledger"
	"ingot/internal/events"
	"ingot/internal/oracle"
	"ingot/internal/platform/config"
	"ingot/internal/platform/httpserver"
	"ingot/internal/platform/logger"
	platformredis "ingot/internal/platform/redis"
	"ingot/internal/protocol"
	"ingot/internal/token"
	id "ingot/pkg/domain"
	"ingot/pkg/platform/middleware/auth"
	"ingot/pkg/platform/middleware/requestid"
)

// custodyAddress is the engine's account on the external ledgers. It only
// needs to be distinct from every caller address; deposits accumulate here
// and the synthetic ledger's burn debits it.
const custodyAddress = "0x0000000000000000000000000000000000011907"

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	custody, err := id.ParseAccountID(custodyAddress)
	if err != nil {
		return fmt.Errorf("custody address: %w", err)
	}

	assets, feeds, err := supportedAssets(cfg)
	if err != nil {
		return err
	}

	// Ledger store: postgres when configured, in-memory otherwise.
	var store ledger.Store = ledger.NewMemory()
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		pgStore := ledger.NewPostgres(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
		store = pgStore
		log.Info("ledger store ready", "backend", "postgres")
	} else {
		log.Info("ledger store ready", "backend", "memory")
	}

	// Price feed: in-memory rounds seeded from config, optionally behind
	// the redis read-through cache.
	memoryFeed := oracle.NewMemoryFeed()
	if err := seedDevPrices(memoryFeed, cfg); err != nil {
		return err
	}
	var priceFeed oracle.PriceFeed = memoryFeed

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cached, err := oracle.NewCachedFeed(memoryFeed, redisClient, cfg.OracleMaxAge, log)
		if err != nil {
			return fmt.Errorf("build cached price feed: %w", err)
		}
		priceFeed = cached
		log.Info("price cache ready")
	}

	// Protocol event sink: kafka when brokers are configured.
	var publisher events.Publisher = events.NewMemoryPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("event stream ready", "topic", cfg.Kafka.Topic)
	}

	collateralLedger := token.NewMemoryCollateralLedger(custody)
	syntheticLedger := token.NewMemorySyntheticLedger(custody)

	engine, err := service.New(service.Config{
		Assets:      assets,
		Feeds:       feeds,
		MaxPriceAge: cfg.OracleMaxAge,
		Custody:     custody,
		Store:       store,
		PriceFeed:   priceFeed,
		Collateral:  collateralLedger,
		Synthetic:   syntheticLedger,
	},
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	router := chi.NewRouter()
	router.Use(requestid.Middleware)

	requireCaller := auth.RequireCaller(auth.NewValidator(cfg.JWTSigningKey), log)
	router.Route("/v1", func(r chi.Router) {
		handler.New(engine, log).Register(r, requireCaller)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting ingot engine", "addr", cfg.Addr, "assets", len(assets))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// supportedAssets parses the configured asset:feed pairs, falling back to a
// weth/wbtc development pair when none are configured.
func supportedAssets(cfg config.Server) ([]id.AssetID, []id.FeedID, error) {
	pairs := cfg.Assets
	if len(pairs) == 0 {
		pairs = []config.AssetPair{
			{Asset: "weth", Feed: "weth-usd"},
			{Asset: "wbtc", Feed: "wbtc-usd"},
		}
	}

	assets := make([]id.AssetID, 0, len(pairs))
	feeds := make([]id.FeedID, 0, len(pairs))
	for _, pair := range pairs {
		asset, err := id.ParseAssetID(pair.Asset)
		if err != nil {
			return nil, nil, fmt.Errorf("asset %q: %w", pair.Asset, err)
		}
		assets = append(assets, asset)
		feeds = append(feeds, id.FeedID(pair.Feed))
	}
	return assets, feeds, nil
}

// seedDevPrices loads the configured development prices into the memory
// feed. Prices are given in the feed's own decimals, default 8.
func seedDevPrices(feed *oracle.MemoryFeed, cfg config.Server) error {
	for feedID, raw := range cfg.DevPrices {
		price, err := uint256.FromDecimal(raw)
		if err != nil {
			return fmt.Errorf("dev price for %s: %w", feedID, err)
		}
		feed.SetRound(id.FeedID(feedID), price, protocol.DefaultFeedDecimals, time.Now().UTC())
	}
	return nil
}
