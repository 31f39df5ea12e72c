package txtable

import (
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// Kind enumerates the lifecycle states a tracked transaction moves through.
type Kind int

// A transaction starts Received, is Committed while at least one live block
// holds it, and ends Finalized exactly once.
const (
	Received Kind = iota
	Committed
	Finalized
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case Received:
		return "received"
	case Committed:
		return "committed"
	case Finalized:
		return "finalized"
	}

	return "unknown"
}

// =============================================================================

// Status tracks where one transaction stands across the competing blocks the
// consensus layer is still deciding between. While committed it carries one
// outcome per live block naming the position the transaction holds there.
// Finalized is terminal, no transform changes it.
type Status struct {
	kind     Kind
	slot     uint64
	outcomes map[transaction.BlockHash]uint64
	block    transaction.BlockHash
	index    uint64
}

// NewStatus returns the status a transaction carries when it first arrives.
func NewStatus(slot uint64) *Status {
	return &Status{
		kind: Received,
		slot: slot,
	}
}

// Kind returns the current lifecycle state.
func (s *Status) Kind() Kind {
	return s.kind
}

// Slot returns the highest slot the transaction has been observed at.
func (s *Status) Slot() uint64 {
	return s.slot
}

// =============================================================================

// AddResult records that the block holds the transaction at the given index.
// A received status becomes committed, a committed status gains the outcome,
// and the stored slot only ever raises. A finalized status does not change.
func (s *Status) AddResult(block transaction.BlockHash, slot uint64, index uint64) {
	switch s.kind {
	case Received:
		s.kind = Committed
		s.outcomes = map[transaction.BlockHash]uint64{block: index}

	case Committed:
		s.outcomes[block] = index

	case Finalized:
		return
	}

	if slot > s.slot {
		s.slot = slot
	}
}

// MarkDead removes the block from the committed outcomes. When the last
// outcome disappears the status degrades to received, keeping its slot.
// Received and finalized statuses do not change.
func (s *Status) MarkDead(block transaction.BlockHash) {
	if s.kind != Committed {
		return
	}

	delete(s.outcomes, block)

	if len(s.outcomes) == 0 {
		s.kind = Received
		s.outcomes = nil
	}
}

// Finalize pins the status to the block the transaction was finalized in.
// The status must be committed with an outcome in exactly that block.
func (s *Status) Finalize(block transaction.BlockHash) error {
	if s.kind != Committed {
		return fmt.Errorf("cannot finalize a %s transaction", s.kind)
	}

	index, exists := s.outcomes[block]
	if !exists {
		return fmt.Errorf("transaction holds no outcome in block %s", block)
	}

	s.kind = Finalized
	s.block = block
	s.index = index
	s.outcomes = nil

	return nil
}

// TransactionIndex reports the position the transaction holds inside the
// given block. finalized reports whether that position can still change.
func (s *Status) TransactionIndex(block transaction.BlockHash) (index uint64, finalized bool, ok bool) {
	switch s.kind {
	case Committed:
		index, exists := s.outcomes[block]
		return index, false, exists

	case Finalized:
		if s.block == block {
			return s.index, true, true
		}
	}

	return 0, false, false
}

// =============================================================================

// View is the JSON friendly snapshot of a status.
type View struct {
	Status   string                           `json:"status"`
	Slot     uint64                           `json:"slot"`
	Outcomes map[transaction.BlockHash]uint64 `json:"outcomes,omitempty"`
	Block    string                           `json:"blockHash,omitempty"`
	Index    *uint64                          `json:"transactionIndex,omitempty"`
}

// View returns a deep copy snapshot safe to hold outside the table lock.
func (s *Status) View() View {
	v := View{
		Status: s.kind.String(),
		Slot:   s.slot,
	}

	switch s.kind {
	case Committed:
		v.Outcomes = make(map[transaction.BlockHash]uint64, len(s.outcomes))
		for block, index := range s.outcomes {
			v.Outcomes[block] = index
		}

	case Finalized:
		index := s.index
		v.Block = s.block.String()
		v.Index = &index
	}

	return v
}
