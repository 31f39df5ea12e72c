package updates

import (
	"fmt"
	"io"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/wire"
)

// PendingUpdates carries one queue per governable concern. The field order
// is the wire and JSON order and never changes.
type PendingUpdates struct {
	RootKeys                   *Queue[HigherLevelKeys]            `json:"rootKeys"`
	Level1Keys                 *Queue[HigherLevelKeys]            `json:"level1Keys"`
	Level2Keys                 *Queue[Authorizations]             `json:"level2Keys"`
	Protocol                   *Queue[ProtocolUpdate]             `json:"protocol"`
	ElectionDifficulty         *Queue[ElectionDifficulty]         `json:"electionDifficulty"`
	EuroPerEnergy              *Queue[ExchangeRate]               `json:"euroPerEnergy"`
	MicroUnitPerEuro           *Queue[ExchangeRate]               `json:"microUnitPerEuro"`
	FoundationAccount          *Queue[transaction.AccountID]      `json:"foundationAccount"`
	MintDistribution           *Queue[MintDistribution]           `json:"mintDistribution"`
	TransactionFeeDistribution *Queue[TransactionFeeDistribution] `json:"transactionFeeDistribution"`
	GASRewards                 *Queue[GASRewards]                 `json:"gasRewards"`
	BakerStakeThreshold        *Queue[BakerStakeThreshold]        `json:"bakerStakeThreshold"`
	AddAnonymityRevoker        *Queue[AnonymityRevoker]           `json:"addAnonymityRevoker"`
	AddIdentityProvider        *Queue[IdentityProvider]           `json:"addIdentityProvider"`
}

// NewPendingUpdates constructs the empty queue set. Every queue starts its
// sequence numbering at one.
func NewPendingUpdates() *PendingUpdates {
	return &PendingUpdates{
		RootKeys:                   NewQueue[HigherLevelKeys](1),
		Level1Keys:                 NewQueue[HigherLevelKeys](1),
		Level2Keys:                 NewQueue[Authorizations](1),
		Protocol:                   NewQueue[ProtocolUpdate](1),
		ElectionDifficulty:         NewQueue[ElectionDifficulty](1),
		EuroPerEnergy:              NewQueue[ExchangeRate](1),
		MicroUnitPerEuro:           NewQueue[ExchangeRate](1),
		FoundationAccount:          NewQueue[transaction.AccountID](1),
		MintDistribution:           NewQueue[MintDistribution](1),
		TransactionFeeDistribution: NewQueue[TransactionFeeDistribution](1),
		GASRewards:                 NewQueue[GASRewards](1),
		BakerStakeThreshold:        NewQueue[BakerStakeThreshold](1),
		AddAnonymityRevoker:        NewQueue[AnonymityRevoker](1),
		AddIdentityProvider:        NewQueue[IdentityProvider](1),
	}
}

// =============================================================================

// NextSequence returns the sequence number the next accepted instruction of
// the given kind must carry.
func (p *PendingUpdates) NextSequence(kind PayloadKind) (uint64, error) {
	switch kind {
	case KindRootKeys:
		return p.RootKeys.NextSequence, nil
	case KindLevel1Keys:
		return p.Level1Keys.NextSequence, nil
	case KindLevel2Keys:
		return p.Level2Keys.NextSequence, nil
	case KindProtocol:
		return p.Protocol.NextSequence, nil
	case KindElectionDifficulty:
		return p.ElectionDifficulty.NextSequence, nil
	case KindEuroPerEnergy:
		return p.EuroPerEnergy.NextSequence, nil
	case KindMicroUnitPerEuro:
		return p.MicroUnitPerEuro.NextSequence, nil
	case KindFoundationAccount:
		return p.FoundationAccount.NextSequence, nil
	case KindMintDistribution:
		return p.MintDistribution.NextSequence, nil
	case KindTransactionFeeDistribution:
		return p.TransactionFeeDistribution.NextSequence, nil
	case KindGASRewards:
		return p.GASRewards.NextSequence, nil
	case KindBakerStakeThreshold:
		return p.BakerStakeThreshold.NextSequence, nil
	case KindAddAnonymityRevoker:
		return p.AddAnonymityRevoker.NextSequence, nil
	case KindAddIdentityProvider:
		return p.AddIdentityProvider.NextSequence, nil
	}

	return 0, fmt.Errorf("no queue exists for payload kind %d", kind)
}

// enqueue routes an accepted payload into its queue.
func (p *PendingUpdates) enqueue(effectiveTime uint64, payload Payload) {
	switch v := payload.(type) {
	case RootKeysUpdate:
		p.RootKeys.Enqueue(effectiveTime, v.Keys)
	case Level1KeysUpdate:
		p.Level1Keys.Enqueue(effectiveTime, v.Keys)
	case Level2KeysUpdate:
		p.Level2Keys.Enqueue(effectiveTime, v.Authorizations)
	case ProtocolUpdate:
		p.Protocol.Enqueue(effectiveTime, v)
	case ElectionDifficulty:
		p.ElectionDifficulty.Enqueue(effectiveTime, v)
	case EuroPerEnergyUpdate:
		p.EuroPerEnergy.Enqueue(effectiveTime, v.Rate)
	case MicroUnitPerEuroUpdate:
		p.MicroUnitPerEuro.Enqueue(effectiveTime, v.Rate)
	case FoundationAccountUpdate:
		p.FoundationAccount.Enqueue(effectiveTime, v.Account)
	case MintDistribution:
		p.MintDistribution.Enqueue(effectiveTime, v)
	case TransactionFeeDistribution:
		p.TransactionFeeDistribution.Enqueue(effectiveTime, v)
	case GASRewards:
		p.GASRewards.Enqueue(effectiveTime, v)
	case BakerStakeThreshold:
		p.BakerStakeThreshold.Enqueue(effectiveTime, v)
	case AnonymityRevoker:
		p.AddAnonymityRevoker.Enqueue(effectiveTime, v)
	case IdentityProvider:
		p.AddIdentityProvider.Enqueue(effectiveTime, v)
	}
}

// Len returns the scheduled entry count across all queues.
func (p *PendingUpdates) Len() int {
	return p.RootKeys.Len() + p.Level1Keys.Len() + p.Level2Keys.Len() +
		p.Protocol.Len() + p.ElectionDifficulty.Len() + p.EuroPerEnergy.Len() +
		p.MicroUnitPerEuro.Len() + p.FoundationAccount.Len() + p.MintDistribution.Len() +
		p.TransactionFeeDistribution.Len() + p.GASRewards.Len() + p.BakerStakeThreshold.Len() +
		p.AddAnonymityRevoker.Len() + p.AddIdentityProvider.Len()
}

// =============================================================================

// writeEvent serializes any event that knows its own wire form.
func writeEvent[E interface{ encodeTo(io.Writer) error }](w io.Writer, e E) error {
	return e.encodeTo(w)
}

func writeAccountEvent(w io.Writer, a transaction.AccountID) error {
	return wire.WriteBytes(w, a.Bytes())
}

func readAccountEvent(r io.Reader) (transaction.AccountID, error) {
	raw, err := wire.ReadBytes(r, transaction.AddressLength)
	if err != nil {
		return "", err
	}

	return transaction.BytesToAccountID(raw), nil
}

// EncodeTo writes all fourteen queues in their fixed order.
func (p *PendingUpdates) EncodeTo(w io.Writer) error {
	if err := p.RootKeys.EncodeTo(w, writeEvent[HigherLevelKeys]); err != nil {
		return fmt.Errorf("root keys queue: %w", err)
	}
	if err := p.Level1Keys.EncodeTo(w, writeEvent[HigherLevelKeys]); err != nil {
		return fmt.Errorf("level 1 keys queue: %w", err)
	}
	if err := p.Level2Keys.EncodeTo(w, func(w io.Writer, a Authorizations) error { return a.encodeTo(w) }); err != nil {
		return fmt.Errorf("level 2 keys queue: %w", err)
	}
	if err := p.Protocol.EncodeTo(w, writeEvent[ProtocolUpdate]); err != nil {
		return fmt.Errorf("protocol queue: %w", err)
	}
	if err := p.ElectionDifficulty.EncodeTo(w, writeEvent[ElectionDifficulty]); err != nil {
		return fmt.Errorf("election difficulty queue: %w", err)
	}
	if err := p.EuroPerEnergy.EncodeTo(w, writeEvent[ExchangeRate]); err != nil {
		return fmt.Errorf("euro per energy queue: %w", err)
	}
	if err := p.MicroUnitPerEuro.EncodeTo(w, writeEvent[ExchangeRate]); err != nil {
		return fmt.Errorf("micro unit per euro queue: %w", err)
	}
	if err := p.FoundationAccount.EncodeTo(w, writeAccountEvent); err != nil {
		return fmt.Errorf("foundation account queue: %w", err)
	}
	if err := p.MintDistribution.EncodeTo(w, writeEvent[MintDistribution]); err != nil {
		return fmt.Errorf("mint distribution queue: %w", err)
	}
	if err := p.TransactionFeeDistribution.EncodeTo(w, writeEvent[TransactionFeeDistribution]); err != nil {
		return fmt.Errorf("transaction fee distribution queue: %w", err)
	}
	if err := p.GASRewards.EncodeTo(w, writeEvent[GASRewards]); err != nil {
		return fmt.Errorf("gas rewards queue: %w", err)
	}
	if err := p.BakerStakeThreshold.EncodeTo(w, writeEvent[BakerStakeThreshold]); err != nil {
		return fmt.Errorf("baker stake threshold queue: %w", err)
	}
	if err := p.AddAnonymityRevoker.EncodeTo(w, writeEvent[AnonymityRevoker]); err != nil {
		return fmt.Errorf("anonymity revoker queue: %w", err)
	}
	if err := p.AddIdentityProvider.EncodeTo(w, writeEvent[IdentityProvider]); err != nil {
		return fmt.Errorf("identity provider queue: %w", err)
	}

	return nil
}

// DecodePendingUpdates parses the queue set written by EncodeTo.
func DecodePendingUpdates(r io.Reader) (*PendingUpdates, error) {
	var p PendingUpdates
	var err error

	if p.RootKeys, err = DecodeQueue(r, decodeHigherLevelKeys); err != nil {
		return nil, fmt.Errorf("root keys queue: %w", err)
	}
	if p.Level1Keys, err = DecodeQueue(r, decodeHigherLevelKeys); err != nil {
		return nil, fmt.Errorf("level 1 keys queue: %w", err)
	}
	if p.Level2Keys, err = DecodeQueue(r, decodeAuthorizations); err != nil {
		return nil, fmt.Errorf("level 2 keys queue: %w", err)
	}
	if p.Protocol, err = DecodeQueue(r, decodeProtocolUpdate); err != nil {
		return nil, fmt.Errorf("protocol queue: %w", err)
	}
	if p.ElectionDifficulty, err = DecodeQueue(r, decodeElectionDifficulty); err != nil {
		return nil, fmt.Errorf("election difficulty queue: %w", err)
	}
	if p.EuroPerEnergy, err = DecodeQueue(r, decodeExchangeRate); err != nil {
		return nil, fmt.Errorf("euro per energy queue: %w", err)
	}
	if p.MicroUnitPerEuro, err = DecodeQueue(r, decodeExchangeRate); err != nil {
		return nil, fmt.Errorf("micro unit per euro queue: %w", err)
	}
	if p.FoundationAccount, err = DecodeQueue(r, readAccountEvent); err != nil {
		return nil, fmt.Errorf("foundation account queue: %w", err)
	}
	if p.MintDistribution, err = DecodeQueue(r, decodeMintDistribution); err != nil {
		return nil, fmt.Errorf("mint distribution queue: %w", err)
	}
	if p.TransactionFeeDistribution, err = DecodeQueue(r, decodeTransactionFeeDistribution); err != nil {
		return nil, fmt.Errorf("transaction fee distribution queue: %w", err)
	}
	if p.GASRewards, err = DecodeQueue(r, decodeGASRewards); err != nil {
		return nil, fmt.Errorf("gas rewards queue: %w", err)
	}
	if p.BakerStakeThreshold, err = DecodeQueue(r, decodeBakerStakeThreshold); err != nil {
		return nil, fmt.Errorf("baker stake threshold queue: %w", err)
	}
	if p.AddAnonymityRevoker, err = DecodeQueue(r, decodeAnonymityRevoker); err != nil {
		return nil, fmt.Errorf("anonymity revoker queue: %w", err)
	}
	if p.AddIdentityProvider, err = DecodeQueue(r, decodeIdentityProvider); err != nil {
		return nil, fmt.Errorf("identity provider queue: %w", err)
	}

	return &p, nil
}

// =============================================================================

// Copy returns an independent deep copy of the queue set.
func (p *PendingUpdates) Copy() *PendingUpdates {
	return &PendingUpdates{
		RootKeys:                   copyQueue(p.RootKeys, HigherLevelKeys.copy),
		Level1Keys:                 copyQueue(p.Level1Keys, HigherLevelKeys.copy),
		Level2Keys:                 copyQueue(p.Level2Keys, func(a Authorizations) Authorizations { return a.copy() }),
		Protocol:                   copyQueue(p.Protocol, ProtocolUpdate.copy),
		ElectionDifficulty:         copyQueue(p.ElectionDifficulty, copyValue[ElectionDifficulty]),
		EuroPerEnergy:              copyQueue(p.EuroPerEnergy, copyValue[ExchangeRate]),
		MicroUnitPerEuro:           copyQueue(p.MicroUnitPerEuro, copyValue[ExchangeRate]),
		FoundationAccount:          copyQueue(p.FoundationAccount, copyValue[transaction.AccountID]),
		MintDistribution:           copyQueue(p.MintDistribution, copyValue[MintDistribution]),
		TransactionFeeDistribution: copyQueue(p.TransactionFeeDistribution, copyValue[TransactionFeeDistribution]),
		GASRewards:                 copyQueue(p.GASRewards, copyValue[GASRewards]),
		BakerStakeThreshold:        copyQueue(p.BakerStakeThreshold, copyValue[BakerStakeThreshold]),
		AddAnonymityRevoker:        copyQueue(p.AddAnonymityRevoker, AnonymityRevoker.copy),
		AddIdentityProvider:        copyQueue(p.AddIdentityProvider, IdentityProvider.copy),
	}
}

// copyValue copies events that carry no reference types.
func copyValue[E any](e E) E {
	return e
}
