package selector

import (
	"sort"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// fairSelect walks the accounts in rows, taking the next transaction from
// every account in turn so no single account can fill a block on its own.
// Accounts are visited in id order so the selection is deterministic.
func fairSelect(candidates map[transaction.AccountID][]*transaction.Transaction, howMany int) []*transaction.Transaction {
	accounts := make([]transaction.AccountID, 0, len(candidates))
	for account := range candidates {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	var selected []*transaction.Transaction
	for row := 0; ; row++ {
		taken := false
		for _, account := range accounts {
			txs := candidates[account]
			if row >= len(txs) {
				continue
			}

			taken = true
			selected = append(selected, txs[row])

			if howMany > 0 && len(selected) == howMany {
				return selected
			}
		}

		if !taken {
			break
		}
	}

	return selected
}
