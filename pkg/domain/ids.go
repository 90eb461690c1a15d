// Package domain defines the identifier types shared across the engine.
// Construct them via the Parse functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"regexp"
	"strings"

	dErrors "ingot/pkg/domain-errors"
)

// AccountID identifies a depositor, minter, or liquidator. It is an
// address-like identifier: 0x followed by 40 hex characters, stored
// lowercase so map keys compare consistently.
type AccountID string

var accountIDPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// ParseAccountID constructs an AccountID from external input.
//
// Errors: CodeInvalidInput when the value is empty or not an address.
func ParseAccountID(s string) (AccountID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id cannot be empty")
	}
	normalized := strings.ToLower(s)
	if !accountIDPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "account id must be a 0x-prefixed 40-hex-char address")
	}
	return AccountID(normalized), nil
}

// IsZero reports whether the ID is unset.
func (a AccountID) IsZero() bool {
	return a == ""
}

// String returns the string representation.
func (a AccountID) String() string {
	return string(a)
}

// AssetID identifies a supported collateral asset (e.g. "weth", "wbtc").
type AssetID string

var assetIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// ParseAssetID constructs an AssetID from external input.
//
// Errors: CodeInvalidInput when the value is empty or malformed.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset id cannot be empty")
	}
	normalized := strings.ToLower(s)
	if !assetIDPattern.MatchString(normalized) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "asset id must be lowercase alphanumeric")
	}
	return AssetID(normalized), nil
}

// IsZero reports whether the ID is unset.
func (a AssetID) IsZero() bool {
	return a == ""
}

// String returns the string representation.
func (a AssetID) String() string {
	return string(a)
}

// FeedID identifies the price feed backing a collateral asset. The format is
// oracle-specific, so only non-emptiness is enforced here.
type FeedID string

// IsZero reports whether the ID is unset.
func (f FeedID) IsZero() bool {
	return f == ""
}

// String returns the string representation.
func (f FeedID) String() string {
	return string(f)
}
