// Package selector provides the different transaction selection strategies
// that can be used to pick candidate transactions for the next block.
package selector

import (
	"fmt"
	"strings"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// List of the different select strategies.
const (
	StrategyFair    = "fair"
	StrategyArrival = "arrival"
)

// Func defines a function that takes candidate transactions grouped by
// account and selects howMany of them in an order based on the function's
// strategy. Every slice is expected in nonce order and all selector
// functions MUST keep the per account order intact. Receiving 0 for howMany
// must return all the transactions in the strategy's ordering.
type Func func(candidates map[transaction.AccountID][]*transaction.Transaction, howMany int) []*transaction.Transaction

// strategies is the map of implemented strategies.
var strategies = map[string]Func{
	StrategyFair:    fairSelect,
	StrategyArrival: arrivalSelect,
}

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strings.ToLower(strategy)]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}

	return fn, nil
}
