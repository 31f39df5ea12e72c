package state

import (
	"errors"
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/database"
	"github.com/tallychain/tally/foundation/ledger/pending"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
	"github.com/tallychain/tally/foundation/ledger/updates"
)

var (
	// ErrUnknownBlock is returned when a block operation references a hash
	// the ledger is not tracking as live.
	ErrUnknownBlock = errors.New("unknown block")

	// ErrBlockOrder is returned when the consensus layer applies, rolls
	// back or finalizes blocks in an order the followed branch cannot
	// support.
	ErrBlockOrder = errors.New("block order violation")
)

// BlockContext is what the consensus layer supplies about a candidate block
// it executed: the block identity, its slot, the timestamp governing which
// scheduled updates come due, and the transactions in execution order.
type BlockContext struct {
	Hash      transaction.BlockHash `json:"hash"`
	Slot      uint64                `json:"slot"`
	TimeStamp uint64                `json:"timestamp"`
	TxHashes  []transaction.TxHash  `json:"txs"`
}

// =============================================================================

// ApplyBlock records the effects of an executed candidate block: every
// transaction gains an outcome in the block, the pending ranges advance over
// the executed nonces, and governance updates due at the block time fold
// into the live parameters. Either every effect commits or none do.
func (s *State) ApplyBlock(ctx BlockContext) ([]updates.AppliedUpdate, error) {
	s.evHandler("state: ApplyBlock: started: blk[%s] slot[%d] txs[%d]", ctx.Hash, ctx.Slot, len(ctx.TxHashes))
	defer s.evHandler("state: ApplyBlock: completed: blk[%s]", ctx.Hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	if lb, exists := s.live[ctx.Hash]; exists && lb.onBranch {
		return nil, fmt.Errorf("block %s is already applied: %w", ctx.Hash, ErrBlockOrder)
	}

	// Resolve every transaction before touching anything. The consensus
	// layer only executes transactions this node has seen, an unknown hash
	// here is a node bug.
	txs := make([]*transaction.Transaction, len(ctx.TxHashes))
	for i, hash := range ctx.TxHashes {
		tx, _, exists := s.table.Get(hash)
		if !exists {
			return nil, fmt.Errorf("block %s carries untracked transaction %s", ctx.Hash, hash)
		}
		txs[i] = tx
	}

	// Walk the block over a simulation of the pending ranges first so the
	// real forward move below cannot fault halfway through.
	if err := simulateForward(txs, s.ptable.Ranges()); err != nil {
		return nil, fmt.Errorf("block %s: %w", ctx.Hash, err)
	}

	// Fold the due governance updates on a copy, the live state swaps over
	// only once the whole block commits.
	gov := s.gov.Copy()
	applied := gov.ApplyDue(ctx.TimeStamp)
	govRoot, err := gov.CommitmentHash()
	if err != nil {
		return nil, fmt.Errorf("block %s: governance commitment: %w", ctx.Hash, err)
	}

	// Commit. Nothing below can fail.
	for i, tx := range txs {
		if err := s.table.AddResult(tx.Hash(), ctx.Hash, ctx.Slot, uint64(i)); err != nil {
			panic(fmt.Sprintf("state: apply: resolved transaction vanished: %s", err))
		}
	}
	s.ptable.Forward(txs)

	prevGov := s.gov
	s.gov = gov
	s.live[ctx.Hash] = &liveBlock{
		slot:      ctx.Slot,
		timeStamp: ctx.TimeStamp,
		txs:       txs,
		prevGov:   prevGov,
		govRoot:   govRoot,
		onBranch:  true,
	}
	s.branch = append(s.branch, ctx.Hash)

	for _, au := range applied {
		s.evHandler("state: ApplyBlock: blk[%s]: applied %s update effective at %d", ctx.Hash, au.Queue, au.EffectiveTime)
	}

	return applied, nil
}

// simulateForward checks that the block's transactions walk each account's
// pending range exactly one nonce at a time.
func simulateForward(txs []*transaction.Transaction, ranges map[transaction.AccountID]pending.Range) error {
	for _, tx := range txs {
		r, exists := ranges[tx.SenderID()]
		if !exists {
			return fmt.Errorf("account %s has no pending range", tx.SenderID())
		}
		if tx.Nonce() != r.NextNonce {
			return fmt.Errorf("account %s expected nonce %d, block carries %d", tx.SenderID(), r.NextNonce, tx.Nonce())
		}

		r.NextNonce++
		if r.NextNonce > r.HighNonce {
			delete(ranges, tx.SenderID())
			continue
		}
		ranges[tx.SenderID()] = r
	}

	return nil
}

// =============================================================================

// RollbackBlock un-executes the most recently applied block on the followed
// branch: pending ranges step back over its transactions and the governance
// state returns to its pre-block snapshot. The block stays live, its
// transaction outcomes remain until the block is pruned or finalized.
func (s *State) RollbackBlock(hash transaction.BlockHash) error {
	s.evHandler("state: RollbackBlock: started: blk[%s]", hash)
	defer s.evHandler("state: RollbackBlock: completed: blk[%s]", hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	lb, exists := s.live[hash]
	if !exists {
		return fmt.Errorf("rollback of %s: %w", hash, ErrUnknownBlock)
	}
	if !lb.onBranch {
		return fmt.Errorf("block %s is not on the followed branch: %w", hash, ErrBlockOrder)
	}
	if top := s.branch[len(s.branch)-1]; top != hash {
		return fmt.Errorf("block %s is not the branch tip %s: %w", hash, top, ErrBlockOrder)
	}

	s.ptable.Reverse(lb.txs)
	s.gov = lb.prevGov
	lb.onBranch = false
	s.branch = s.branch[:len(s.branch)-1]

	return nil
}

// PruneBlock drops a live block that consensus decided can never be
// finalized. Every outcome the block held is removed from its transactions,
// degrading a transaction back to received when this was its last live
// block. A block on the followed branch must be rolled back first.
func (s *State) PruneBlock(hash transaction.BlockHash) error {
	s.evHandler("state: PruneBlock: started: blk[%s]", hash)
	defer s.evHandler("state: PruneBlock: completed: blk[%s]", hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	lb, exists := s.live[hash]
	if !exists {
		return fmt.Errorf("prune of %s: %w", hash, ErrUnknownBlock)
	}
	if lb.onBranch {
		return fmt.Errorf("block %s is on the followed branch, roll it back first: %w", hash, ErrBlockOrder)
	}

	// A transaction the table no longer tracks was retired when a rival at
	// the same nonce finalized while this block was still live. Its outcome
	// died with the record, there is nothing left to remove.
	for _, tx := range lb.txs {
		if err := s.table.MarkDead(tx.Hash(), hash); err != nil {
			if errors.Is(err, txtable.ErrUnknownTransaction) {
				continue
			}
			return fmt.Errorf("prune of %s: %w", hash, err)
		}
	}
	delete(s.live, hash)

	return nil
}

// =============================================================================

// FinalizeBlock records that consensus made the oldest applied branch block
// irreversible. Every transaction it executed pins to the block, competing
// transactions at the consumed nonces drop away, the finalized nonces move
// into the account registry and the block persists to storage.
func (s *State) FinalizeBlock(hash transaction.BlockHash) (database.Block, error) {
	s.evHandler("state: FinalizeBlock: started: blk[%s]", hash)
	defer s.evHandler("state: FinalizeBlock: completed: blk[%s]", hash)

	s.mu.Lock()
	defer s.mu.Unlock()

	lb, exists := s.live[hash]
	if !exists {
		return database.Block{}, fmt.Errorf("finalize of %s: %w", hash, ErrUnknownBlock)
	}
	if !lb.onBranch {
		return database.Block{}, fmt.Errorf("block %s is not on the followed branch: %w", hash, ErrBlockOrder)
	}
	if first := s.branch[0]; first != hash {
		return database.Block{}, fmt.Errorf("block %s is not the oldest applied block %s: %w", hash, first, ErrBlockOrder)
	}

	// Every transaction must still hold its outcome in this block before
	// any of them finalizes, a failed check halfway through must not leave
	// a partially finalized block behind.
	for _, tx := range lb.txs {
		_, view, exists := s.table.Get(tx.Hash())
		if !exists {
			return database.Block{}, fmt.Errorf("finalize of %s: transaction %s vanished", hash, tx.Hash())
		}
		if _, holds := view.Outcomes[hash]; !holds {
			return database.Block{}, fmt.Errorf("finalize of %s: transaction %s holds no outcome in the block", hash, tx.Hash())
		}
	}

	block, err := database.NewBlock(hash, s.db.LatestBlock(), lb.slot, lb.timeStamp, lb.govRoot, lb.txs)
	if err != nil {
		return database.Block{}, fmt.Errorf("finalize of %s: %w", hash, err)
	}

	accounts := make(map[transaction.AccountID]bool)
	for _, tx := range lb.txs {
		dropped, err := s.table.Finalize(tx.Hash(), hash)
		if err != nil {
			panic(fmt.Sprintf("state: finalize: validated transaction failed: %s", err))
		}
		for _, d := range dropped {
			s.evHandler("state: FinalizeBlock: blk[%s]: dropped competing tx[%s] at nonce %d", hash, d.Hash(), d.Nonce())
		}

		if err := s.db.ApplyFinalizedNonce(tx.SenderID(), tx.Nonce()); err != nil {
			panic(fmt.Sprintf("state: finalize: account registry out of sync: %s", err))
		}
		accounts[tx.SenderID()] = true
	}

	for accountID := range accounts {
		s.shrinkPending(accountID)
	}

	delete(s.live, hash)
	s.branch = s.branch[1:]

	// Persistence happens after the in-memory commit. A write failure is
	// surfaced for the operator but the bookkeeping above stands.
	if err := s.db.Write(block); err != nil {
		return database.Block{}, fmt.Errorf("finalize of %s: writing block: %w", hash, err)
	}
	s.db.UpdateLatestBlock(block)

	return block, nil
}
