package state

import (
	"github.com/tallychain/tally/foundation/ledger/database"
	"github.com/tallychain/tally/foundation/ledger/genesis"
	"github.com/tallychain/tally/foundation/ledger/pending"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// AccountDetail is everything the ledger tracks about one account at a
// point in time.
type AccountDetail struct {
	Account    database.Account
	Pending    pending.Range
	HasPending bool
	Txs        []*transaction.Transaction
}

// QueryAccount returns the registry entry, pending nonce range and tracked
// transactions of the account.
func (s *State) QueryAccount(accountID transaction.AccountID) (AccountDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, err := s.db.Account(accountID)
	if err != nil {
		return AccountDetail{}, err
	}

	r, hasPending := s.ptable.Range(accountID)

	return AccountDetail{
		Account:    account,
		Pending:    r,
		HasPending: hasPending,
		Txs:        s.table.AccountTransactions(accountID),
	}, nil
}

// QueryTransaction returns the tracked transaction and a snapshot of its
// status.
func (s *State) QueryTransaction(hash transaction.TxHash) (*transaction.Transaction, txtable.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.table.Get(hash)
}

// QueryBlocksByNumber returns the finalized blocks in the specified range.
// Pass QueryLatest for both bounds to get just the latest block.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.LatestBlock().Header.Number
	}
	if to == QueryLatest {
		to = s.db.LatestBlock().Header.Number
	}

	var blocks []database.Block
	for num := from; num <= to; num++ {
		block, err := s.db.GetBlock(num)
		if err != nil {
			break
		}
		blocks = append(blocks, block)
	}

	return blocks
}

// =============================================================================

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns the latest finalized block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveAccounts returns a copy of the account registry.
func (s *State) RetrieveAccounts() map[transaction.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// RetrievePendingRanges returns the outstanding nonce range per account.
func (s *State) RetrievePendingRanges() map[transaction.AccountID]pending.Range {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ptable.Ranges()
}

// Counts reports how many transactions, transacting accounts and live
// blocks the ledger is tracking.
func (s *State) Counts() (txs int, accounts int, liveBlocks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, accounts = s.table.Counts()
	return txs, accounts, len(s.live)
}
