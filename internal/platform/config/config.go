package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// OracleMaxAge is the staleness cutoff for price feed readings; anything
	// older is rejected rather than used.
	OracleMaxAge time.Duration

	// Assets lists the supported collateral assets as "asset:feed" pairs in
	// construction order. The list is immutable once the engine is built.
	Assets []AssetPair

	// DevPrices seeds the in-memory price feed when no external oracle is
	// wired, as "feed=price" pairs with prices in the feed's own decimals.
	DevPrices map[string]string
}

// AssetPair binds a collateral asset to its price feed.
type AssetPair struct {
	Asset string
	Feed  string
}

// RedisConfig captures connection settings for the price cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures settings for the protocol event stream.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("INGOT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("INGOT_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	maxAge := 3 * time.Hour
	if raw := os.Getenv("INGOT_ORACLE_MAX_AGE"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			maxAge = parsed
		}
	}

	topic := os.Getenv("INGOT_KAFKA_TOPIC")
	if topic == "" {
		topic = "ingot.protocol.events"
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresURL:   os.Getenv("INGOT_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("INGOT_REDIS_URL"),
			PoolSize:     envInt("INGOT_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("INGOT_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("INGOT_KAFKA_BROKERS")),
			Topic:   topic,
		},
		OracleMaxAge: maxAge,
		Assets:       parseAssets(os.Getenv("INGOT_ASSETS")),
		DevPrices:    parseDevPrices(os.Getenv("INGOT_DEV_PRICES")),
	}
}

// parseAssets parses "weth:weth-usd,wbtc:wbtc-usd" preserving order.
func parseAssets(raw string) []AssetPair {
	var pairs []AssetPair
	for _, entry := range splitNonEmpty(raw) {
		asset, feed, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		pairs = append(pairs, AssetPair{Asset: strings.TrimSpace(asset), Feed: strings.TrimSpace(feed)})
	}
	return pairs
}

// parseDevPrices parses "weth-usd=200000000000,wbtc-usd=3000000000000".
func parseDevPrices(raw string) map[string]string {
	prices := make(map[string]string)
	for _, entry := range splitNonEmpty(raw) {
		feed, price, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		prices[strings.TrimSpace(feed)] = strings.TrimSpace(price)
	}
	return prices
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}
