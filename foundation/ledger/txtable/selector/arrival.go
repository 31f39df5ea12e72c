package selector

import (
	"sort"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// arrivalSelect picks the transaction that has waited longest among the
// heads of every account's list, so the selection favors age while the per
// account nonce order stays intact. Ties break on the account id.
func arrivalSelect(candidates map[transaction.AccountID][]*transaction.Transaction, howMany int) []*transaction.Transaction {
	accounts := make([]transaction.AccountID, 0, len(candidates))
	remaining := make(map[transaction.AccountID][]*transaction.Transaction, len(candidates))
	for account, txs := range candidates {
		if len(txs) == 0 {
			continue
		}
		accounts = append(accounts, account)
		remaining[account] = txs
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i] < accounts[j] })

	var selected []*transaction.Transaction
	for len(remaining) > 0 {
		var pickAccount transaction.AccountID
		var pick *transaction.Transaction

		for _, account := range accounts {
			txs, alive := remaining[account]
			if !alive {
				continue
			}

			head := txs[0]
			if pick == nil || head.Arrival() < pick.Arrival() {
				pick = head
				pickAccount = account
			}
		}

		selected = append(selected, pick)
		if howMany > 0 && len(selected) == howMany {
			return selected
		}

		rest := remaining[pickAccount][1:]
		if len(rest) == 0 {
			delete(remaining, pickAccount)
		} else {
			remaining[pickAccount] = rest
		}
	}

	return selected
}
