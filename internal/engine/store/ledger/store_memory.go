package ledger

import (
	"context"
	"sync"

	"github.com/holiman/uint256"

	"ingot/internal/engine/models"
	id "ingot/pkg/domain"
)

// InMemoryStore keeps the account book in a process-local map. Snapshots are
// cloned on the way in and out so callers can stage mutations freely.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*models.Account
}

// NewMemory creates an empty in-memory ledger store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		accounts: make(map[id.AccountID]*models.Account),
	}
}

func (s *InMemoryStore) GetAccount(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if account, ok := s.accounts[accountID]; ok {
		return account.Clone(), nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemoryStore) TotalDebt(_ context.Context) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := uint256.NewInt(0)
	for _, account := range s.accounts {
		total.Add(total, account.Debt)
	}
	return total, nil
}

func (s *InMemoryStore) TotalCollateral(_ context.Context, asset id.AssetID) (*uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := uint256.NewInt(0)
	for _, account := range s.accounts {
		if balance, ok := account.Collateral[asset]; ok {
			total.Add(total, balance)
		}
	}
	return total, nil
}
