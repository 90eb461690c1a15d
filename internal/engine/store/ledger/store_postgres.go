package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ingot/internal/engine/models"
	id "ingot/pkg/domain"
	txcontext "ingot/pkg/platform/tx"
)

// PostgresStore persists the account book in PostgreSQL. Amounts are stored
// as NUMERIC(78,0) so the full uint256 range survives round trips.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a store over an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the ledger schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_accounts (
			account_id TEXT PRIMARY KEY,
			debt       NUMERIC(78,0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS ledger_collateral (
			account_id TEXT NOT NULL REFERENCES ledger_accounts(account_id),
			asset_id   TEXT NOT NULL,
			amount     NUMERIC(78,0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (account_id, asset_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	var debtText string
	err := s.pool.QueryRow(ctx,
		`SELECT debt::text FROM ledger_accounts WHERE account_id = $1`,
		accountID.String(),
	).Scan(&debtText)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}

	account := models.NewAccount(accountID)
	if account.Debt, err = uint256.FromDecimal(debtText); err != nil {
		return nil, fmt.Errorf("decode debt for %s: %w", accountID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT asset_id, amount::text FROM ledger_collateral WHERE account_id = $1`,
		accountID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load collateral for %s: %w", accountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var assetText, amountText string
		if err := rows.Scan(&assetText, &amountText); err != nil {
			return nil, fmt.Errorf("scan collateral row for %s: %w", accountID, err)
		}
		amount, err := uint256.FromDecimal(amountText)
		if err != nil {
			return nil, fmt.Errorf("decode collateral for %s: %w", accountID, err)
		}
		account.Collateral[id.AssetID(assetText)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collateral for %s: %w", accountID, err)
	}
	return account, nil
}

func (s *PostgresStore) SaveAccount(ctx context.Context, account *models.Account) error {
	if tx, ok := txcontext.From(ctx); ok {
		return s.saveAccountTx(ctx, tx, account)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save for %s: %w", account.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.saveAccountTx(ctx, tx, account); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save for %s: %w", account.ID, err)
	}
	return nil
}

func (s *PostgresStore) saveAccountTx(ctx context.Context, tx pgx.Tx, account *models.Account) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_accounts (account_id, debt, updated_at)
		VALUES ($1, $2::numeric, now())
		ON CONFLICT (account_id)
		DO UPDATE SET debt = EXCLUDED.debt, updated_at = now()`,
		account.ID.String(), account.Debt.Dec(),
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}

	for asset, amount := range account.Collateral {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_collateral (account_id, asset_id, amount, updated_at)
			VALUES ($1, $2, $3::numeric, now())
			ON CONFLICT (account_id, asset_id)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()`,
			account.ID.String(), asset.String(), amount.Dec(),
		)
		if err != nil {
			return fmt.Errorf("upsert collateral %s/%s: %w", account.ID, asset, err)
		}
	}
	return nil
}

func (s *PostgresStore) TotalDebt(ctx context.Context) (*uint256.Int, error) {
	var totalText string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(debt), 0)::numeric(78,0)::text FROM ledger_accounts`,
	).Scan(&totalText)
	if err != nil {
		return nil, fmt.Errorf("sum debt: %w", err)
	}
	total, err := uint256.FromDecimal(totalText)
	if err != nil {
		return nil, fmt.Errorf("decode debt sum: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) TotalCollateral(ctx context.Context, asset id.AssetID) (*uint256.Int, error) {
	var totalText string
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::numeric(78,0)::text FROM ledger_collateral WHERE asset_id = $1`,
		asset.String(),
	).Scan(&totalText)
	if err != nil {
		return nil, fmt.Errorf("sum collateral for %s: %w", asset, err)
	}
	total, err := uint256.FromDecimal(totalText)
	if err != nil {
		return nil, fmt.Errorf("decode collateral sum for %s: %w", asset, err)
	}
	return total, nil
}
