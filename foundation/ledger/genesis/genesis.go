// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/updates"
)

// Account declares an account that exists from the start of the chain
// together with the keys allowed to sign for it.
type Account struct {
	AccountID string   `json:"account_id" validate:"required"`
	Keys      []string `json:"keys" validate:"required,min=1,max=255"`
	Threshold uint8    `json:"threshold" validate:"required,min=1"`
}

// Genesis represents the genesis file.
type Genesis struct {
	Date              time.Time                  `json:"date"`
	ChainID           uint16                     `json:"chain_id"`         // The chain id represents an unique id for this running instance.
	TransPerBlock     uint16                     `json:"trans_per_block"`  // The maximum number of transactions selected into a candidate block.
	MaxBlockEnergy    uint64                     `json:"max_block_energy"` // The maximum total energy of a candidate block.
	Accounts          []Account                  `json:"accounts" validate:"required,min=1"`
	GovernanceKeys    updates.KeyCollection      `json:"governance_keys"`
	Parameters        updates.ChainParameters    `json:"chain_parameters"`
	AnonymityRevokers []updates.AnonymityRevoker `json:"anonymity_revokers,omitempty"`
	IdentityProviders []updates.IdentityProvider `json:"identity_providers,omitempty"`
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load() (Genesis, error) {
	return LoadFromFile("zblock/genesis.json")
}

// LoadFromFile opens and consumes the genesis file at the specified path.
func LoadFromFile(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.validateAccounts(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// =============================================================================

// validateAccounts checks every declared account parses into the forms the
// ledger works with. The governance keys and chain parameters are validated
// deeper when the governance state is constructed from them.
func (g Genesis) validateAccounts() error {
	seen := make(map[transaction.AccountID]bool)

	for _, account := range g.Accounts {
		accountID, err := transaction.ToAccountID(account.AccountID)
		if err != nil {
			return fmt.Errorf("genesis account: %w", err)
		}

		if seen[accountID] {
			return fmt.Errorf("genesis account %s declared twice", accountID)
		}
		seen[accountID] = true

		if len(account.Keys) < transaction.MinSignatures || len(account.Keys) > transaction.MaxSignatures {
			return fmt.Errorf("genesis account %s declares %d keys, want %d to %d", accountID, len(account.Keys), transaction.MinSignatures, transaction.MaxSignatures)
		}

		if account.Threshold == 0 || int(account.Threshold) > len(account.Keys) {
			return fmt.Errorf("genesis account %s threshold %d does not fit %d keys", accountID, account.Threshold, len(account.Keys))
		}

		for i, key := range account.Keys {
			if _, err := signature.DecodePublicKey(key); err != nil {
				return fmt.Errorf("genesis account %s key %d: %w", accountID, i, err)
			}
		}
	}

	return nil
}
