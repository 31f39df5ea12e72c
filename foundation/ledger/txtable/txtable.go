// Package txtable maintains the authoritative registry of transactions the
// node knows about and the chain has not finalized yet. The table owns the
// transaction instances, every other bookkeeping structure holds references
// into it. Alongside the hash index the table keeps, per account, the
// transactions ordered by nonce and the smallest nonce not yet finalized.
package txtable

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

var (
	// ErrUnknownTransaction indicates a status transition referenced a hash
	// the table does not track. Callers treat this as a contract violation,
	// not a routine condition.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrNonceTooLow indicates the transaction claims a nonce the account
	// has already finalized past.
	ErrNonceTooLow = errors.New("nonce below account floor")
)

// =============================================================================

// record pairs a shared transaction instance with its status.
type record struct {
	tx     *transaction.Transaction
	status *Status
}

// accountTxs orders the live transactions of one account by nonce. Several
// transactions can compete for the same nonce until one of them finalizes.
// Every nonce present is at or above nextNonce.
type accountTxs struct {
	nextNonce uint64
	byNonce   map[uint64]map[transaction.TxHash]*transaction.Transaction
}

// Table is the hash index over every tracked transaction together with the
// per account nonce bookkeeping.
type Table struct {
	mu       sync.RWMutex
	txs      map[transaction.TxHash]*record
	accounts map[transaction.AccountID]*accountTxs
}

// New constructs an empty transaction table.
func New() *Table {
	return &Table{
		txs:      make(map[transaction.TxHash]*record),
		accounts: make(map[transaction.AccountID]*accountTxs),
	}
}

// =============================================================================

// Upsert records a verified transaction. Inserting a content hash the table
// already tracks is a no-op that returns the tracked instance. The floor
// seeds the account's next nonce the first time the account shows up, and
// the slot is what a fresh status starts at.
func (t *Table) Upsert(tx *transaction.Transaction, floor uint64, slot uint64) (*transaction.Transaction, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, exists := t.txs[tx.Hash()]; exists {
		return rec.tx, false, nil
	}

	acct, exists := t.accounts[tx.SenderID()]

	// Check the floor before the account record exists so a rejected
	// transaction never leaves an empty entry behind.
	nextNonce := floor
	if exists {
		nextNonce = acct.nextNonce
	}
	if tx.Nonce() < nextNonce {
		return nil, false, fmt.Errorf("nonce %d below floor %d for account %s: %w", tx.Nonce(), nextNonce, tx.SenderID(), ErrNonceTooLow)
	}

	if !exists {
		acct = &accountTxs{
			nextNonce: floor,
			byNonce:   make(map[uint64]map[transaction.TxHash]*transaction.Transaction),
		}
		t.accounts[tx.SenderID()] = acct
	}

	set, exists := acct.byNonce[tx.Nonce()]
	if !exists {
		set = make(map[transaction.TxHash]*transaction.Transaction)
		acct.byNonce[tx.Nonce()] = set
	}
	set[tx.Hash()] = tx

	t.txs[tx.Hash()] = &record{
		tx:     tx,
		status: NewStatus(slot),
	}

	return tx, true, nil
}

// Get returns the tracked transaction and a snapshot of its status.
func (t *Table) Get(hash transaction.TxHash) (*transaction.Transaction, View, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, exists := t.txs[hash]
	if !exists {
		return nil, View{}, false
	}

	return rec.tx, rec.status.View(), true
}

// =============================================================================

// AddResult applies the commit transform to the transaction's status.
func (t *Table) AddResult(hash transaction.TxHash, block transaction.BlockHash, slot uint64, index uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.txs[hash]
	if !exists {
		return fmt.Errorf("add result for %s: %w", hash, ErrUnknownTransaction)
	}

	rec.status.AddResult(block, slot, index)
	return nil
}

// MarkDead removes the block from the transaction's committed outcomes.
func (t *Table) MarkDead(hash transaction.TxHash, block transaction.BlockHash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.txs[hash]
	if !exists {
		return fmt.Errorf("mark dead for %s: %w", hash, ErrUnknownTransaction)
	}

	rec.status.MarkDead(block)
	return nil
}

// Finalize pins the transaction to the finalizing block, drops every
// competitor at the same nonce and advances the account floor past it. The
// dropped competitors are returned so the caller can report them.
func (t *Table) Finalize(hash transaction.TxHash, block transaction.BlockHash) ([]*transaction.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.txs[hash]
	if !exists {
		return nil, fmt.Errorf("finalize for %s: %w", hash, ErrUnknownTransaction)
	}

	if err := rec.status.Finalize(block); err != nil {
		return nil, fmt.Errorf("finalize for %s: %w", hash, err)
	}

	tx := rec.tx
	acct, exists := t.accounts[tx.SenderID()]
	if !exists {
		return nil, fmt.Errorf("finalize for %s: account %s is not tracked", hash, tx.SenderID())
	}

	var dropped []*transaction.Transaction
	for competitorHash := range acct.byNonce[tx.Nonce()] {
		if competitorHash == hash {
			continue
		}
		dropped = append(dropped, acct.byNonce[tx.Nonce()][competitorHash])
		delete(t.txs, competitorHash)
	}
	delete(acct.byNonce, tx.Nonce())

	if tx.Nonce()+1 > acct.nextNonce {
		acct.nextNonce = tx.Nonce() + 1
	}

	if len(acct.byNonce) == 0 {
		delete(t.accounts, tx.SenderID())
	}

	sortByHash(dropped)
	return dropped, nil
}

// =============================================================================

// NextNonce returns the smallest non finalized nonce the table tracks for
// the account. The second return reports whether the account is tracked.
func (t *Table) NextNonce(account transaction.AccountID) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	acct, exists := t.accounts[account]
	if !exists {
		return 0, false
	}

	return acct.nextNonce, true
}

// MaxNonce returns the highest nonce the table tracks for the account.
func (t *Table) MaxNonce(account transaction.AccountID) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	acct, exists := t.accounts[account]
	if !exists {
		return 0, false
	}

	var max uint64
	var found bool
	for nonce := range acct.byNonce {
		if !found || nonce > max {
			max = nonce
			found = true
		}
	}

	return max, found
}

// AccountTransactions returns the account's tracked transactions in nonce
// order, hash order within a nonce.
func (t *Table) AccountTransactions(account transaction.AccountID) []*transaction.Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	acct, exists := t.accounts[account]
	if !exists {
		return nil
	}

	nonces := make([]uint64, 0, len(acct.byNonce))
	for nonce := range acct.byNonce {
		nonces = append(nonces, nonce)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })

	var txs []*transaction.Transaction
	for _, nonce := range nonces {
		group := make([]*transaction.Transaction, 0, len(acct.byNonce[nonce]))
		for _, tx := range acct.byNonce[nonce] {
			group = append(group, tx)
		}
		sortByHash(group)
		txs = append(txs, group...)
	}

	return txs
}

// Run returns one transaction per nonce for the contiguous range from..to,
// stopping early at the first gap. Within a nonce the earliest arrival wins
// and ties break on the lower hash, so every caller sees the same run.
func (t *Table) Run(account transaction.AccountID, from uint64, to uint64) []*transaction.Transaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	acct, exists := t.accounts[account]
	if !exists {
		return nil
	}

	var run []*transaction.Transaction
	for nonce := from; nonce <= to; nonce++ {
		set, exists := acct.byNonce[nonce]
		if !exists {
			break
		}

		var pick *transaction.Transaction
		for _, tx := range set {
			if pick == nil {
				pick = tx
				continue
			}
			if tx.Arrival() < pick.Arrival() {
				pick = tx
				continue
			}
			if tx.Arrival() == pick.Arrival() && lessHash(tx, pick) {
				pick = tx
			}
		}
		run = append(run, pick)
	}

	return run
}

// Counts returns the number of tracked transactions and accounts.
func (t *Table) Counts() (txs int, accounts int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.txs), len(t.accounts)
}

// =============================================================================

// PurgeExpired removes received transactions whose expiry has passed.
// Committed transactions are never purged here, a block still references
// them; once pruned back to received a later sweep picks them up. Removed
// transactions are returned in hash order.
func (t *Table) PurgeExpired(now uint64) []*transaction.Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var purged []*transaction.Transaction
	for hash, rec := range t.txs {
		if rec.status.Kind() != Received || !rec.tx.Expired(now) {
			continue
		}

		purged = append(purged, rec.tx)
		delete(t.txs, hash)

		acct, exists := t.accounts[rec.tx.SenderID()]
		if !exists {
			continue
		}

		set := acct.byNonce[rec.tx.Nonce()]
		delete(set, hash)
		if len(set) == 0 {
			delete(acct.byNonce, rec.tx.Nonce())
		}
		if len(acct.byNonce) == 0 {
			delete(t.accounts, rec.tx.SenderID())
		}
	}

	sortByHash(purged)
	return purged
}

// =============================================================================

// sortByHash orders transactions by their content hash for deterministic
// output.
func sortByHash(txs []*transaction.Transaction) {
	sort.Slice(txs, func(i, j int) bool { return lessHash(txs[i], txs[j]) })
}

// lessHash compares two transactions by content hash.
func lessHash(a *transaction.Transaction, b *transaction.Transaction) bool {
	ah, bh := a.Hash(), b.Hash()
	return bytes.Compare(ah[:], bh[:]) < 0
}
