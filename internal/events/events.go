// Package events captures the engine's protocol events: every committed
// transition emits one. Events are observational - they are published after
// commit and never fail the transition that produced them - so sinks can
// fan out to stream processors, dashboards, and liquidation bots.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	id "ingot/pkg/domain"
)

// Action names a protocol event.
type Action string

const (
	ActionCollateralDeposited Action = "collateral_deposited"
	ActionCollateralRedeemed  Action = "collateral_redeemed"
	ActionSynthMinted         Action = "synth_minted"
	ActionSynthBurned         Action = "synth_burned"
	ActionLiquidation         Action = "liquidation"
)

// Event is emitted from the engine to capture a committed transition. Keep
// it transport-agnostic so publishers can fan out. Amounts travel as decimal
// strings: their range exceeds JSON numbers.
type Event struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Account   id.AccountID `json:"account"`
	Asset     id.AssetID   `json:"asset,omitempty"`
	Amount    string       `json:"amount,omitempty"`

	// Liquidation enrichment.
	Liquidator         id.AccountID `json:"liquidator,omitempty"`
	DebtCovered        string       `json:"debt_covered,omitempty"`
	CollateralSeized   string       `json:"collateral_seized,omitempty"`
	HealthFactorBefore string       `json:"health_factor_before,omitempty"`
	HealthFactorAfter  string       `json:"health_factor_after,omitempty"`

	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string `json:"request_id,omitempty"`
}

// Publisher delivers protocol events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Emit assigns the event's ID and timestamp, publishes it, and logs delivery
// failures. Publishing is best-effort: the transition has already committed,
// so a sink outage must not surface to the caller.
func Emit(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event) {
	if publisher == nil {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := publisher.Publish(ctx, event); err != nil && logger != nil {
		logger.ErrorContext(ctx, "protocol event publish failed",
			"action", event.Action,
			"account", event.Account,
			"error", err,
		)
	}
}
