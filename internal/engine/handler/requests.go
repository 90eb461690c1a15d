package handler

import (
	"strings"

	"github.com/holiman/uint256"

	id "ingot/pkg/domain"
	dErrors "ingot/pkg/domain-errors"
)

// parseAmount validates a decimal-string amount field. Amounts travel as
// strings because the 256-bit range exceeds JSON numbers.
func parseAmount(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", field)
	}
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a decimal integer", field)
	}
	if amount.IsZero() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be positive", field)
	}
	return amount, nil
}

// TransitionRequest is the HTTP request body shared by the single-amount
// transition endpoints. The asset field is ignored by the synthetic
// endpoints, which operate on the one synthetic asset.
type TransitionRequest struct {
	Asset  string `json:"asset,omitempty"`
	Amount string `json:"amount"`

	// Parsed values (populated by Validate)
	parsedAsset  id.AssetID
	parsedAmount *uint256.Int
}

// Validate validates and parses the request.
func (r *TransitionRequest) Validate() error {
	if r.Asset != "" {
		asset, err := id.ParseAssetID(r.Asset)
		if err != nil {
			return err
		}
		r.parsedAsset = asset
	}

	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return err
	}
	r.parsedAmount = amount
	return nil
}

// ParsedAsset returns the validated asset ID; zero when absent.
func (r *TransitionRequest) ParsedAsset() id.AssetID {
	return r.parsedAsset
}

// ParsedAmount returns the validated amount.
func (r *TransitionRequest) ParsedAmount() *uint256.Int {
	return r.parsedAmount
}

// ComboRequest is the HTTP request body for
// POST /collateral/deposit-and-mint.
type ComboRequest struct {
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateral_amount"`
	MintAmount       string `json:"mint_amount"`

	parsedAsset            id.AssetID
	parsedCollateralAmount *uint256.Int
	parsedMintAmount       *uint256.Int
}

// Validate validates and parses the request.
func (r *ComboRequest) Validate() error {
	asset, err := id.ParseAssetID(r.Asset)
	if err != nil {
		return err
	}
	r.parsedAsset = asset

	if r.parsedCollateralAmount, err = parseAmount("collateral_amount", r.CollateralAmount); err != nil {
		return err
	}
	if r.parsedMintAmount, err = parseAmount("mint_amount", r.MintAmount); err != nil {
		return err
	}
	return nil
}

func (r *ComboRequest) ParsedAsset() id.AssetID              { return r.parsedAsset }
func (r *ComboRequest) ParsedCollateralAmount() *uint256.Int { return r.parsedCollateralAmount }
func (r *ComboRequest) ParsedMintAmount() *uint256.Int       { return r.parsedMintAmount }

// RedeemForSynthRequest is the HTTP request body for
// POST /collateral/redeem-for-synth.
type RedeemForSynthRequest struct {
	Asset            string `json:"asset"`
	CollateralAmount string `json:"collateral_amount"`
	BurnAmount       string `json:"burn_amount"`

	parsedAsset            id.AssetID
	parsedCollateralAmount *uint256.Int
	parsedBurnAmount       *uint256.Int
}

// Validate validates and parses the request.
func (r *RedeemForSynthRequest) Validate() error {
	asset, err := id.ParseAssetID(r.Asset)
	if err != nil {
		return err
	}
	r.parsedAsset = asset

	if r.parsedCollateralAmount, err = parseAmount("collateral_amount", r.CollateralAmount); err != nil {
		return err
	}
	if r.parsedBurnAmount, err = parseAmount("burn_amount", r.BurnAmount); err != nil {
		return err
	}
	return nil
}

func (r *RedeemForSynthRequest) ParsedAsset() id.AssetID              { return r.parsedAsset }
func (r *RedeemForSynthRequest) ParsedCollateralAmount() *uint256.Int { return r.parsedCollateralAmount }
func (r *RedeemForSynthRequest) ParsedBurnAmount() *uint256.Int       { return r.parsedBurnAmount }

// LiquidateRequest is the HTTP request body for POST /liquidations. The
// authenticated caller is the liquidator; the body names the target.
type LiquidateRequest struct {
	Account     string `json:"account"`
	Asset       string `json:"asset"`
	DebtToCover string `json:"debt_to_cover"`

	parsedAccount     id.AccountID
	parsedAsset       id.AssetID
	parsedDebtToCover *uint256.Int
}

// Validate validates and parses the request.
func (r *LiquidateRequest) Validate() error {
	account, err := id.ParseAccountID(r.Account)
	if err != nil {
		return err
	}
	r.parsedAccount = account

	asset, err := id.ParseAssetID(r.Asset)
	if err != nil {
		return err
	}
	r.parsedAsset = asset

	if r.parsedDebtToCover, err = parseAmount("debt_to_cover", r.DebtToCover); err != nil {
		return err
	}
	return nil
}

func (r *LiquidateRequest) ParsedAccount() id.AccountID     { return r.parsedAccount }
func (r *LiquidateRequest) ParsedAsset() id.AssetID         { return r.parsedAsset }
func (r *LiquidateRequest) ParsedDebtToCover() *uint256.Int { return r.parsedDebtToCover }
