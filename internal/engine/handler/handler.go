package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"ingot/internal/engine/models"
	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
	"ingot/pkg/platform/httputil"
	"ingot/pkg/requestcontext"
)

// Service defines the interface for engine operations.
type Service interface {
	DepositCollateral(ctx context.Context, caller id.AccountID, asset id.AssetID, amount *uint256.Int) error
	RedeemCollateral(ctx context.Context, caller id.AccountID, asset id.AssetID, amount *uint256.Int) error
	DepositAndMint(ctx context.Context, caller id.AccountID, asset id.AssetID, collateralAmount, mintAmount *uint256.Int) error
	BurnAndRedeem(ctx context.Context, caller id.AccountID, asset id.AssetID, collateralAmount, burnAmount *uint256.Int) error
	Mint(ctx context.Context, caller id.AccountID, amount *uint256.Int) error
	Burn(ctx context.Context, caller id.AccountID, amount *uint256.Int) error
	Liquidate(ctx context.Context, liquidator, target id.AccountID, asset id.AssetID, debtToCover *uint256.Int) error

	SupportedAssets() []models.SupportedAsset
	FeedFor(asset id.AssetID) (id.FeedID, error)
	CollateralBalance(ctx context.Context, account id.AccountID, asset id.AssetID) (*uint256.Int, error)
	HealthFactor(ctx context.Context, account id.AccountID) (*uint256.Int, error)
	AccountSummary(ctx context.Context, account id.AccountID) (*models.Summary, error)
}

// Handler wires engine endpoints to the engine service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an engine handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts engine endpoints on the router. The transition routes go
// behind requireCaller; the read-only routes are public.
func (h *Handler) Register(r chi.Router, requireCaller func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireCaller)
		r.Post("/collateral/deposit", h.HandleDeposit)
		r.Post("/collateral/redeem", h.HandleRedeem)
		r.Post("/collateral/deposit-and-mint", h.HandleDepositAndMint)
		r.Post("/collateral/redeem-for-synth", h.HandleBurnAndRedeem)
		r.Post("/synth/mint", h.HandleMint)
		r.Post("/synth/burn", h.HandleBurn)
		r.Post("/liquidations", h.HandleLiquidate)
	})

	r.Get("/assets", h.HandleListAssets)
	r.Get("/assets/{asset}/feed", h.HandleAssetFeed)
	r.Get("/accounts/{account}", h.HandleAccountSummary)
	r.Get("/accounts/{account}/health-factor", h.HandleHealthFactor)
	r.Get("/accounts/{account}/collateral/{asset}", h.HandleCollateralBalance)
}

// HandleDeposit handles POST /collateral/deposit requests.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "collateral deposited", func(ctx context.Context, caller id.AccountID, req *TransitionRequest) error {
		return h.service.DepositCollateral(ctx, caller, req.ParsedAsset(), req.ParsedAmount())
	})
}

// HandleRedeem handles POST /collateral/redeem requests.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "collateral redeemed", func(ctx context.Context, caller id.AccountID, req *TransitionRequest) error {
		return h.service.RedeemCollateral(ctx, caller, req.ParsedAsset(), req.ParsedAmount())
	})
}

// HandleMint handles POST /synth/mint requests.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "synthetic minted", func(ctx context.Context, caller id.AccountID, req *TransitionRequest) error {
		return h.service.Mint(ctx, caller, req.ParsedAmount())
	})
}

// HandleBurn handles POST /synth/burn requests.
func (h *Handler) HandleBurn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "synthetic burned", func(ctx context.Context, caller id.AccountID, req *TransitionRequest) error {
		return h.service.Burn(ctx, caller, req.ParsedAmount())
	})
}

// HandleDepositAndMint handles POST /collateral/deposit-and-mint requests.
func (h *Handler) HandleDepositAndMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ComboRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.DepositAndMint(ctx, caller, req.ParsedAsset(), req.ParsedCollateralAmount(), req.ParsedMintAmount())
	if err != nil {
		h.fail(ctx, w, "deposit and mint failed", requestID, caller, err)
		return
	}

	h.logger.InfoContext(ctx, "collateral deposited and synthetic minted",
		"request_id", requestID,
		"account", caller,
		"asset", req.Asset,
	)
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandleBurnAndRedeem handles POST /collateral/redeem-for-synth requests.
func (h *Handler) HandleBurnAndRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RedeemForSynthRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.BurnAndRedeem(ctx, caller, req.ParsedAsset(), req.ParsedCollateralAmount(), req.ParsedBurnAmount())
	if err != nil {
		h.fail(ctx, w, "redeem for synth failed", requestID, caller, err)
		return
	}

	h.logger.InfoContext(ctx, "synthetic burned and collateral redeemed",
		"request_id", requestID,
		"account", caller,
		"asset", req.Asset,
	)
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandleLiquidate handles POST /liquidations requests.
func (h *Handler) HandleLiquidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LiquidateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	err := h.service.Liquidate(ctx, caller, req.ParsedAccount(), req.ParsedAsset(), req.ParsedDebtToCover())
	if err != nil {
		h.fail(ctx, w, "liquidation failed", requestID, caller, err)
		return
	}

	h.logger.InfoContext(ctx, "liquidation executed",
		"request_id", requestID,
		"liquidator", caller,
		"account", req.Account,
		"asset", req.Asset,
		"debt_to_cover", req.DebtToCover,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandleListAssets handles GET /assets requests.
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromSupportedAssets(h.service.SupportedAssets()))
}

// HandleAssetFeed handles GET /assets/{asset}/feed requests.
func (h *Handler) HandleAssetFeed(w http.ResponseWriter, r *http.Request) {
	asset, err := id.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	feed, err := h.service.FeedFor(asset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AssetFeedResponse{Asset: string(asset), Feed: string(feed)})
}

// HandleAccountSummary handles GET /accounts/{account} requests.
func (h *Handler) HandleAccountSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.service.AccountSummary(ctx, account)
	if err != nil {
		h.fail(ctx, w, "account summary failed", requestcontext.RequestID(ctx), account, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleHealthFactor handles GET /accounts/{account}/health-factor requests.
func (h *Handler) HandleHealthFactor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	healthFactor, err := h.service.HealthFactor(ctx, account)
	if err != nil {
		h.fail(ctx, w, "health factor read failed", requestcontext.RequestID(ctx), account, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HealthFactorResponse{
		Account:      string(account),
		HealthFactor: healthFactor.Dec(),
	})
}

// HandleCollateralBalance handles GET /accounts/{account}/collateral/{asset}
// requests.
func (h *Handler) HandleCollateralBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, err := id.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := id.ParseAssetID(chi.URLParam(r, "asset"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	balance, err := h.service.CollateralBalance(ctx, account, asset)
	if err != nil {
		h.fail(ctx, w, "collateral balance read failed", requestcontext.RequestID(ctx), account, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CollateralBalanceResponse{
		Account: string(account),
		Asset:   string(asset),
		Balance: balance.Dec(),
	})
}

// transition factors the shared shape of the single-request transition
// endpoints: authenticate, decode, call, log, respond.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, logMsg string, call func(ctx context.Context, caller id.AccountID, req *TransitionRequest) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := call(ctx, caller, req); err != nil {
		h.fail(ctx, w, logMsg+" failed", requestID, caller, err)
		return
	}

	h.logger.InfoContext(ctx, logMsg,
		"request_id", requestID,
		"account", caller,
		"asset", req.Asset,
		"amount", req.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context) (id.AccountID, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, requestID string, account id.AccountID, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestID,
		"account", account,
		"error", err,
	)
	httputil.WriteError(w, err)
}
