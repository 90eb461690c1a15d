package handler

import (
	"ingot/internal/engine/models"
)

// AcceptedResponse acknowledges a committed transition.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// AssetResponse is one entry of GET /assets.
type AssetResponse struct {
	Asset string `json:"asset"`
	Feed  string `json:"feed"`
}

// AssetListResponse is the HTTP response for GET /assets.
type AssetListResponse struct {
	Assets []AssetResponse `json:"assets"`
}

// FromSupportedAssets converts the supported asset list to an HTTP response,
// preserving order.
func FromSupportedAssets(assets []models.SupportedAsset) *AssetListResponse {
	out := &AssetListResponse{Assets: make([]AssetResponse, 0, len(assets))}
	for _, a := range assets {
		out.Assets = append(out.Assets, AssetResponse{
			Asset: string(a.Asset),
			Feed:  string(a.Feed),
		})
	}
	return out
}

// AssetFeedResponse is the HTTP response for GET /assets/{asset}/feed.
type AssetFeedResponse struct {
	Asset string `json:"asset"`
	Feed  string `json:"feed"`
}

// SummaryResponse is the HTTP response for GET /accounts/{account}. Amounts
// are decimal strings.
type SummaryResponse struct {
	Account            string `json:"account"`
	DebtMinted         string `json:"debt_minted"`
	CollateralValueUSD string `json:"collateral_value_usd"`
}

// FromSummary converts a domain Summary to an HTTP response.
func FromSummary(summary *models.Summary) *SummaryResponse {
	return &SummaryResponse{
		Account:            string(summary.Account),
		DebtMinted:         summary.DebtMinted.Dec(),
		CollateralValueUSD: summary.CollateralValueUSD.Dec(),
	}
}

// HealthFactorResponse is the HTTP response for
// GET /accounts/{account}/health-factor.
type HealthFactorResponse struct {
	Account      string `json:"account"`
	HealthFactor string `json:"health_factor"`
}

// CollateralBalanceResponse is the HTTP response for
// GET /accounts/{account}/collateral/{asset}.
type CollateralBalanceResponse struct {
	Account string `json:"account"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}
