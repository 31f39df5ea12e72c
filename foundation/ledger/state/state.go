// Package state is the core API for the ledger and implements the
// bookkeeping rules the node follows as the consensus layer applies,
// abandons and finalizes blocks. All mutation happens under a single writer
// lock so every cross structure invariant (nonce ranges, status outcomes,
// queue ordering) is observed whole or not at all.
package state

import (
	"fmt"
	"sync"

	"github.com/tallychain/tally/foundation/ledger/database"
	"github.com/tallychain/tally/foundation/ledger/genesis"
	"github.com/tallychain/tally/foundation/ledger/pending"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
	"github.com/tallychain/tally/foundation/ledger/txtable/selector"
	"github.com/tallychain/tally/foundation/ledger/updates"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background maintenance of the ledger.
type Worker interface {
	Shutdown()
	SignalPurge()
}

// =============================================================================

// liveBlock records what the ledger needs to remember about a candidate
// block that has been applied: the transactions it executed, in order, and
// the governance snapshot from just before the block so a rollback can step
// back over it.
type liveBlock struct {
	slot      uint64
	timeStamp uint64
	txs       []*transaction.Transaction
	prevGov   *updates.Updates
	govRoot   [32]byte
	onBranch  bool
}

// =============================================================================

// Config represents the configuration required to start the ledger node.
type Config struct {
	Genesis        genesis.Genesis
	Storage        database.Storage
	SelectStrategy string
	EvHandler      EventHandler
}

// State manages the ledger bookkeeping.
type State struct {
	mu sync.RWMutex

	genesis   genesis.Genesis
	evHandler EventHandler
	selectFn  selector.Func

	db     *database.Database
	table  *txtable.Table
	ptable *pending.Table
	gov    *updates.Updates

	live   map[transaction.BlockHash]*liveBlock
	branch []transaction.BlockHash

	Worker Worker
}

// New constructs a new ledger state for block and transaction bookkeeping.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the finalized chain and replay any blocks
	// already written to recover the finalized nonces.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	// The governance state starts from the genesis keys and parameters.
	gov, err := updates.New(cfg.Genesis.GovernanceKeys, cfg.Genesis.Parameters, cfg.Genesis.AnonymityRevokers, cfg.Genesis.IdentityProviders)
	if err != nil {
		return nil, err
	}

	// Resolve the candidate selection strategy up front so a bad
	// configuration fails at startup and not at block building time.
	selectFn, err := selector.Retrieve(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	state := State{
		genesis:   cfg.Genesis,
		evHandler: ev,
		selectFn:  selectFn,

		db:     db,
		table:  txtable.New(),
		ptable: pending.New(),
		gov:    gov,

		live: make(map[transaction.BlockHash]*liveBlock),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database storage is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all ledger maintenance activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// =============================================================================

// branchNext returns the account's next expected nonce on the followed
// branch: the finalized floor advanced past every nonce a branch block has
// already executed. Call only with the lock held.
func (s *State) branchNext(accountID transaction.AccountID) uint64 {
	var next uint64
	if account, err := s.db.Account(accountID); err == nil {
		next = account.Nonce
	}

	for _, hash := range s.branch {
		for _, tx := range s.live[hash].txs {
			if tx.SenderID() == accountID && tx.Nonce()+1 > next {
				next = tx.Nonce() + 1
			}
		}
	}

	return next
}

// shrinkPending re-derives the pending range bound for the account after
// transactions disappeared from the table. Call only with the lock held.
func (s *State) shrinkPending(accountID transaction.AccountID) {
	high, alive := s.table.MaxNonce(accountID)
	s.ptable.Shrink(accountID, high, alive)
}

// =============================================================================

// Reset wipes the ledger back to genesis: storage, account registry,
// transaction bookkeeping and governance state.
func (s *State) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("state: Reset: started")
	defer s.evHandler("state: Reset: completed")

	if err := s.db.Reset(); err != nil {
		return err
	}

	gov, err := updates.New(s.genesis.GovernanceKeys, s.genesis.Parameters, s.genesis.AnonymityRevokers, s.genesis.IdentityProviders)
	if err != nil {
		return fmt.Errorf("rebuilding governance state: %w", err)
	}

	s.table = txtable.New()
	s.ptable = pending.New()
	s.gov = gov
	s.live = make(map[transaction.BlockHash]*liveBlock)
	s.branch = nil

	return nil
}
