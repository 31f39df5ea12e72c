// Package database maintains the account registry the finalized chain has
// produced and access to the finalized block store. The registry carries,
// per account, the verification keys and the next nonce the chain will
// finalize; both are rebuilt from genesis and the stored blocks at startup.
package database

import (
	"fmt"
	"sync"

	"github.com/tallychain/tally/foundation/ledger/genesis"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// Storage interface represents the behavior required to be implemented by
// any package providing support for storing and reading the finalized
// blocks.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by
// any package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// =============================================================================

// DatabaseIterator provides block iteration over the configured storage.
type DatabaseIterator struct {
	iterator Iterator
}

// Next retrieves the next block from storage.
func (di *DatabaseIterator) Next() (Block, error) {
	blockData, err := di.iterator.Next()
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// Done returns the end of chain value.
func (di *DatabaseIterator) Done() bool {
	return di.iterator.Done()
}

// =============================================================================

// Database manages data related to accounts that transacted on the chain and
// the blocks the chain finalized.
type Database struct {
	mu sync.RWMutex

	genesis     genesis.Genesis
	latestBlock Block
	accounts    map[transaction.AccountID]Account

	storage Storage
}

// New constructs a new database, seeds the accounts from genesis and replays
// any blocks already in storage to recover the finalized nonces.
func New(genesis genesis.Genesis, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	db := Database{
		genesis:  genesis,
		accounts: make(map[transaction.AccountID]Account),
		storage:  storage,
	}

	if err := db.seedAccounts(); err != nil {
		return nil, err
	}

	var latestBlock Block

	iter := db.storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, err
		}

		block, err := ToBlock(blockData)
		if err != nil {
			return nil, err
		}

		if err := block.ValidateChainLink(latestBlock, evHandler); err != nil {
			return nil, err
		}

		txs, err := block.Transactions()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", block.Header.Number, err)
		}
		for _, tx := range txs {
			if err := db.applyFinalizedNonce(tx.SenderID(), tx.Nonce()); err != nil {
				return nil, fmt.Errorf("block %d: %w", block.Header.Number, err)
			}
		}

		latestBlock = block
	}

	db.latestBlock = latestBlock

	return &db, nil
}

// Close closes the open block storage.
func (db *Database) Close() {
	db.storage.Close()
}

// Reset re-initializes the database back to the genesis state.
func (db *Database) Reset() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.storage.Reset(); err != nil {
		return err
	}

	db.latestBlock = Block{}
	db.accounts = make(map[transaction.AccountID]Account)

	return db.seedAccounts()
}

// seedAccounts loads the declared genesis accounts into the registry.
func (db *Database) seedAccounts() error {
	for _, ga := range db.genesis.Accounts {
		account, err := newAccount(ga)
		if err != nil {
			return err
		}
		db.accounts[account.AccountID] = account
	}

	return nil
}

// =============================================================================

// Account returns a copy of the specified account.
func (db *Database) Account(accountID transaction.AccountID) (Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	if !exists {
		return Account{}, fmt.Errorf("account %s is not declared", accountID)
	}

	return account, nil
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[transaction.AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[transaction.AccountID]Account, len(db.accounts))
	for accountID, account := range db.accounts {
		accounts[accountID] = account
	}

	return accounts
}

// ApplyFinalizedNonce records that the chain finalized the specified nonce
// for the account, moving the account's next nonce past it.
func (db *Database) ApplyFinalizedNonce(accountID transaction.AccountID, nonce uint64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.applyFinalizedNonce(accountID, nonce)
}

func (db *Database) applyFinalizedNonce(accountID transaction.AccountID, nonce uint64) error {
	account, exists := db.accounts[accountID]
	if !exists {
		return fmt.Errorf("account %s is not declared", accountID)
	}

	if nonce+1 > account.Nonce {
		account.Nonce = nonce + 1
		db.accounts[accountID] = account
	}

	return nil
}

// =============================================================================

// UpdateLatestBlock provides safe access to update the latest block.
func (db *Database) UpdateLatestBlock(block Block) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.latestBlock = block
}

// LatestBlock returns the latest finalized block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.latestBlock
}

// Write adds a new block to the store.
func (db *Database) Write(block Block) error {
	return db.storage.Write(NewBlockData(block))
}

// GetBlock searches the block store to locate and return the contents of the
// specified block by number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	blockData, err := db.storage.GetBlock(num)
	if err != nil {
		return Block{}, err
	}

	return ToBlock(blockData)
}

// ForEach returns an iterator to walk through all the blocks starting with
// block number 1.
func (db *Database) ForEach() DatabaseIterator {
	return DatabaseIterator{iterator: db.storage.ForEach()}
}
