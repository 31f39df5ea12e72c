package state

import (
	"time"

	"github.com/tallychain/tally/foundation/ledger/updates"
)

// SubmitUpdateInstruction verifies a signed governance instruction against
// the live authority keys and schedules its payload. The instruction must
// carry the exact sequence number its queue expects.
func (s *State) SubmitUpdateInstruction(ins *updates.Instruction) error {
	s.evHandler("state: SubmitUpdateInstruction: started: kind[%s] seq[%d]", ins.Payload().Kind(), ins.Header().SequenceNumber)
	defer s.evHandler("state: SubmitUpdateInstruction: completed: kind[%s]", ins.Payload().Kind())

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gov.Accept(ins, uint64(time.Now().Unix()))
}

// =============================================================================

// ProtocolStatus reports whether a protocol update has taken effect and
// which ones are still scheduled.
type ProtocolStatus struct {
	Current   *updates.ProtocolUpdate                 `json:"current,omitempty"`
	Scheduled []updates.Timed[updates.ProtocolUpdate] `json:"scheduled"`
}

// RetrieveGovernance returns a deep copy of the complete governance state.
func (s *State) RetrieveGovernance() *updates.Updates {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gov.Copy()
}

// RetrieveChainParameters returns the live chain parameters.
func (s *State) RetrieveChainParameters() updates.ChainParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gov.Parameters
}

// RetrieveProtocolStatus returns the terminal protocol update if one took
// effect, and the scheduled protocol updates otherwise.
func (s *State) RetrieveProtocolStatus() ProtocolStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var status ProtocolStatus

	if s.gov.Protocol != nil {
		p := *s.gov.Protocol
		status.Current = &p
	}

	for _, e := range s.gov.Pending.Protocol.Entries {
		status.Scheduled = append(status.Scheduled, e)
	}

	return status
}
