package state

import (
	"fmt"
	"time"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// SubmitTransaction verifies a transaction against its account rules and
// places it into the bookkeeping as received. Submitting a transaction the
// table already tracks is a no-op.
func (s *State) SubmitTransaction(tx *transaction.Transaction) error {
	s.evHandler("state: SubmitTransaction: started: tx[%s]", tx.Hash())
	defer s.evHandler("state: SubmitTransaction: completed: tx[%s]", tx.Hash())

	if now := uint64(time.Now().Unix()); tx.Expired(now) {
		return fmt.Errorf("transaction expired at %d, the time is %d", tx.Expiry(), now)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.db.Account(tx.SenderID())
	if err != nil {
		return err
	}

	if err := tx.Verify(account.Keys, account.Threshold); err != nil {
		return err
	}

	_, inserted, err := s.table.Upsert(tx, account.Nonce, 0)
	if err != nil {
		return err
	}
	if !inserted {
		s.evHandler("state: SubmitTransaction: tx[%s] already tracked", tx.Hash())
		return nil
	}

	// Make the transaction visible to the block builder. A nonce the branch
	// has already executed past is left out silently, the transaction stays
	// tracked and becomes relevant again if those blocks roll back.
	if s.ptable.CheckedExtend(s.branchNext(tx.SenderID()), tx) {
		s.evHandler("state: SubmitTransaction: tx[%s] pending for account %s", tx.Hash(), tx.SenderID())
	}

	return nil
}

// CandidateTransactions returns up to howMany transactions the block builder
// can execute next, one per account nonce in contiguous runs, ordered by the
// configured selection strategy. Passing 0 returns every candidate.
func (s *State) CandidateTransactions(howMany int) []*transaction.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make(map[transaction.AccountID][]*transaction.Transaction)
	for accountID, r := range s.ptable.Ranges() {
		run := s.table.Run(accountID, r.NextNonce, r.HighNonce)
		if len(run) > 0 {
			candidates[accountID] = run
		}
	}

	return s.selectFn(candidates, howMany)
}

// PurgeExpired drops every received transaction whose expiry has passed and
// tightens the pending ranges the removals leave behind. The purged
// transactions are returned for reporting.
func (s *State) PurgeExpired(now uint64) []*transaction.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := s.table.PurgeExpired(now)
	if len(purged) == 0 {
		return nil
	}

	accounts := make(map[transaction.AccountID]bool)
	for _, tx := range purged {
		s.evHandler("state: PurgeExpired: tx[%s] expired at %d", tx.Hash(), tx.Expiry())
		accounts[tx.SenderID()] = true
	}

	for accountID := range accounts {
		s.shrinkPending(accountID)
	}

	return purged
}
