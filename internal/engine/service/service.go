// Package service implements the collateral engine: deposit/redeem and
// mint/burn accounting, the health-factor gate on every risky transition,
// and the liquidation protocol. Transitions execute as atomic, serialized
// units: each stages its ledger deltas on a detached snapshot, runs every
// check against the staged state, performs the external transfers, and only
// then commits - so a failed operation leaves no partial effect behind.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"ingot/internal/engine/metrics"
	"ingot/internal/engine/models"
	"ingot/internal/engine/risk"
	"ingot/internal/engine/store/ledger"
	"ingot/internal/events"
	"ingot/internal/oracle"
	"ingot/internal/token"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
)

// Config carries the engine's construction-time dependencies. Assets and
// Feeds are parallel lists: Assets[i] is priced by Feeds[i]. The supported
// asset list is immutable for the engine's lifetime.
type Config struct {
	Assets []id.AssetID
	Feeds  []id.FeedID

	// MaxPriceAge is the oracle staleness cutoff.
	MaxPriceAge time.Duration

	// Custody is the engine's own account on the external ledgers:
	// deposits land there and the synthetic ledger's burn debits it.
	Custody id.AccountID

	Store      ledger.Store
	PriceFeed  oracle.PriceFeed
	Collateral token.CollateralLedger
	Synthetic  token.SyntheticLedger
}

// Engine is the collateral engine service. All mutating entry points
// serialize on one mutex and reject nested re-entry, so the account book
// only ever changes inside a single in-flight transition.
type Engine struct {
	mu sync.Mutex

	assets   []models.SupportedAsset
	assetSet map[id.AssetID]struct{}
	custody  id.AccountID

	store      ledger.Store
	resolver   *oracle.Resolver
	evaluator  *risk.Evaluator
	collateral token.CollateralLedger
	synth      token.SyntheticLedger

	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher

	resolverPassThrough []oracle.ResolverOption
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithResolverOption forwards an option to the internally built price
// resolver; tests use it to pin the staleness clock.
func WithResolverOption(opt oracle.ResolverOption) Option {
	return func(e *Engine) {
		e.resolverPassThrough = append(e.resolverPassThrough, opt)
	}
}

// New validates the configuration and builds the engine. Mismatched asset
// and feed list lengths fail here, before any state is established.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("at least one supported asset is required")
	}
	if len(cfg.Assets) != len(cfg.Feeds) {
		return nil, fmt.Errorf("asset and feed lists must have equal length: %d assets, %d feeds", len(cfg.Assets), len(cfg.Feeds))
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if cfg.PriceFeed == nil {
		return nil, fmt.Errorf("price feed is required")
	}
	if cfg.Collateral == nil {
		return nil, fmt.Errorf("collateral ledger is required")
	}
	if cfg.Synthetic == nil {
		return nil, fmt.Errorf("synthetic ledger is required")
	}
	if cfg.Custody.IsZero() {
		return nil, fmt.Errorf("custody account is required")
	}

	e := &Engine{
		assetSet:   make(map[id.AssetID]struct{}, len(cfg.Assets)),
		custody:    cfg.Custody,
		store:      cfg.Store,
		collateral: cfg.Collateral,
		synth:      cfg.Synthetic,
	}

	feeds := make(map[id.AssetID]id.FeedID, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		if asset.IsZero() || cfg.Feeds[i].IsZero() {
			return nil, fmt.Errorf("asset and feed ids must be non-empty")
		}
		if _, dup := e.assetSet[asset]; dup {
			return nil, fmt.Errorf("duplicate supported asset %s", asset)
		}
		e.assetSet[asset] = struct{}{}
		e.assets = append(e.assets, models.SupportedAsset{Asset: asset, Feed: cfg.Feeds[i]})
		feeds[asset] = cfg.Feeds[i]
	}

	for _, opt := range opts {
		opt(e)
	}

	resolver, err := oracle.NewResolver(feeds, cfg.PriceFeed, cfg.MaxPriceAge, e.resolverPassThrough...)
	if err != nil {
		return nil, fmt.Errorf("build price resolver: %w", err)
	}
	e.resolver = resolver

	evaluator, err := risk.New(e.assets, resolver)
	if err != nil {
		return nil, fmt.Errorf("build risk evaluator: %w", err)
	}
	e.evaluator = evaluator

	return e, nil
}

// inFlightKey marks a context as executing inside the engine's critical
// section. Any nested call into a public entry point with a marked context
// is rejected before touching state.
type inFlightKey struct{}

// enter serializes the caller and marks the context. The returned context
// must be used for all work inside the critical section, and release must
// run on every exit path.
func (e *Engine) enter(ctx context.Context) (context.Context, func(), error) {
	if ctx.Value(inFlightKey{}) != nil {
		return nil, nil, dErrors.Wrap(ErrReentrantCall, dErrors.CodeConflict, "engine operation already in flight")
	}
	e.mu.Lock()
	return context.WithValue(ctx, inFlightKey{}, struct{}{}), e.mu.Unlock, nil
}

// loadOrCreate returns a detached snapshot, creating the account implicitly
// on first use.
func (e *Engine) loadOrCreate(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}
	if account == nil {
		account = models.NewAccount(accountID)
	}
	return account, nil
}

func (e *Engine) isSupported(asset id.AssetID) bool {
	_, ok := e.assetSet[asset]
	return ok
}

// validateAmount enforces the zero-amount rejection shared by every
// transition.
func validateAmount(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return dErrors.Wrap(ErrZeroAmount, dErrors.CodeInvalidInput, "amount must be positive")
	}
	return nil
}

func (e *Engine) validateAsset(asset id.AssetID) error {
	if !e.isSupported(asset) {
		return dErrors.Wrap(fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset), dErrors.CodeInvalidInput, "unsupported collateral asset")
	}
	return nil
}

// checkHealth evaluates the staged account and translates failures: oracle
// trouble becomes an unavailability error, a broken health factor becomes a
// HealthFactorError carrying the computed value.
func (e *Engine) checkHealth(ctx context.Context, staged *models.Account) error {
	healthFactor, err := e.evaluator.HealthFactor(ctx, staged)
	if err != nil {
		if e.metrics != nil {
			e.metrics.OracleFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "collateral cannot be valued")
	}
	if !risk.IsSafe(healthFactor) {
		if e.metrics != nil {
			e.metrics.HealthFactorDenials.Inc()
		}
		return dErrors.Wrap(&HealthFactorError{HealthFactor: healthFactor}, dErrors.CodeUnprocessable, "operation would break health factor")
	}
	return nil
}
