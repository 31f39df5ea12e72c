package database

import (
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/genesis"
	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// firstNonce is the nonce the chain expects from an account's first
// transaction.
const firstNonce = 1

// Account tracks what the finalized chain knows about one account: the keys
// allowed to sign for it, how many of them must sign, and the next nonce the
// chain will finalize for it.
type Account struct {
	AccountID transaction.AccountID
	Keys      [][]byte
	Threshold uint8
	Nonce     uint64
}

// newAccount converts a genesis account declaration into the runtime form.
func newAccount(ga genesis.Account) (Account, error) {
	accountID, err := transaction.ToAccountID(ga.AccountID)
	if err != nil {
		return Account{}, err
	}

	keys := make([][]byte, len(ga.Keys))
	for i, hexKey := range ga.Keys {
		key, err := signature.DecodePublicKey(hexKey)
		if err != nil {
			return Account{}, fmt.Errorf("account %s key %d: %w", accountID, i, err)
		}
		keys[i] = key
	}

	return Account{
		AccountID: accountID,
		Keys:      keys,
		Threshold: ga.Threshold,
		Nonce:     firstNonce,
	}, nil
}
