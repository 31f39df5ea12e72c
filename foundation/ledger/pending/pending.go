// Package pending tracks, per account, the nonce range of transactions the
// node still expects a block builder to pick up on the branch it follows.
// The table is a pure view over the transaction table: it owns no
// transactions, only nonce bounds.
//
// The table is not safe for concurrent use. The state layer serializes every
// call together with the rest of the bookkeeping.
//
// Moving the followed branch forward and backward are exact inverses:
// reversing the transactions of a block undoes what forwarding them did. A
// call that violates the table's preconditions means the node itself is
// broken, those fail hard rather than return an error.
package pending

import (
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// Range bounds the nonces of an account's outstanding transactions. Every
// nonce in [NextNonce, HighNonce] is considered outstanding.
type Range struct {
	NextNonce uint64 `json:"nextNonce"`
	HighNonce uint64 `json:"highNonce"`
}

// Table maps accounts to their outstanding nonce range. Accounts with
// nothing outstanding are absent.
type Table struct {
	ranges map[transaction.AccountID]Range
}

// New constructs an empty pending table.
func New() *Table {
	return &Table{
		ranges: make(map[transaction.AccountID]Range),
	}
}

// =============================================================================

// Extend records the transaction as outstanding. The nextNonce is the
// account's next nonce on the followed branch and must not exceed the
// transaction nonce.
func (t *Table) Extend(nextNonce uint64, tx *transaction.Transaction) {
	if nextNonce > tx.Nonce() {
		panic(fmt.Sprintf("pending: extend: nonce %d below next nonce %d for account %s", tx.Nonce(), nextNonce, tx.SenderID()))
	}

	r, exists := t.ranges[tx.SenderID()]
	if !exists {
		t.ranges[tx.SenderID()] = Range{NextNonce: nextNonce, HighNonce: tx.Nonce()}
		return
	}

	if tx.Nonce() > r.HighNonce {
		r.HighNonce = tx.Nonce()
		t.ranges[tx.SenderID()] = r
	}
}

// CheckedExtend is Extend for callers that cannot trust the transaction to
// still be relevant. A transaction whose nonce fell below the account's next
// nonce is skipped silently. Reports whether the table changed.
func (t *Table) CheckedExtend(nextNonce uint64, tx *transaction.Transaction) bool {
	if tx.Nonce() < nextNonce {
		return false
	}

	t.Extend(nextNonce, tx)
	return true
}

// =============================================================================

// Forward walks the transactions of a block that moved the followed branch
// one step ahead, consuming each one from its account's range. The
// transactions must come in block order.
func (t *Table) Forward(txs []*transaction.Transaction) {
	for _, tx := range txs {
		t.forwardOne(tx)
	}
}

func (t *Table) forwardOne(tx *transaction.Transaction) {
	r, exists := t.ranges[tx.SenderID()]
	if !exists {
		panic(fmt.Sprintf("pending: forward: account %s has no outstanding range", tx.SenderID()))
	}

	if r.NextNonce > r.HighNonce {
		panic(fmt.Sprintf("pending: forward: account %s holds empty range [%d, %d]", tx.SenderID(), r.NextNonce, r.HighNonce))
	}

	if tx.Nonce() != r.NextNonce {
		panic(fmt.Sprintf("pending: forward: account %s expected nonce %d, block carries %d", tx.SenderID(), r.NextNonce, tx.Nonce()))
	}

	r.NextNonce++
	if r.NextNonce > r.HighNonce {
		delete(t.ranges, tx.SenderID())
		return
	}

	t.ranges[tx.SenderID()] = r
}

// Reverse undoes Forward for the transactions of a block the followed branch
// stepped back over. The same slice Forward consumed is walked in reverse
// order, restoring each account's range. Reverse after Forward leaves the
// table exactly as it was.
func (t *Table) Reverse(txs []*transaction.Transaction) {
	for i := len(txs) - 1; i >= 0; i-- {
		t.reverseOne(txs[i])
	}
}

func (t *Table) reverseOne(tx *transaction.Transaction) {
	r, exists := t.ranges[tx.SenderID()]
	if !exists {
		t.ranges[tx.SenderID()] = Range{NextNonce: tx.Nonce(), HighNonce: tx.Nonce()}
		return
	}

	if r.NextNonce != tx.Nonce()+1 {
		panic(fmt.Sprintf("pending: reverse: account %s at next nonce %d cannot give back nonce %d", tx.SenderID(), r.NextNonce, tx.Nonce()))
	}

	r.NextNonce = tx.Nonce()
	t.ranges[tx.SenderID()] = r
}

// =============================================================================

// Shrink caps the account's range after transactions above high disappeared
// from the node. With alive false the account has nothing tracked anymore
// and its range is dropped entirely.
func (t *Table) Shrink(account transaction.AccountID, high uint64, alive bool) {
	r, exists := t.ranges[account]
	if !exists {
		return
	}

	if !alive {
		delete(t.ranges, account)
		return
	}

	if high < r.HighNonce {
		r.HighNonce = high
	}

	if r.HighNonce < r.NextNonce {
		delete(t.ranges, account)
		return
	}

	t.ranges[account] = r
}

// =============================================================================

// Range returns the account's outstanding nonce range.
func (t *Table) Range(account transaction.AccountID) (Range, bool) {
	r, exists := t.ranges[account]
	return r, exists
}

// Ranges returns a copy of every outstanding range keyed by account.
func (t *Table) Ranges() map[transaction.AccountID]Range {
	ranges := make(map[transaction.AccountID]Range, len(t.ranges))
	for account, r := range t.ranges {
		ranges[account] = r
	}

	return ranges
}

// Len returns the number of accounts with something outstanding.
func (t *Table) Len() int {
	return len(t.ranges)
}
