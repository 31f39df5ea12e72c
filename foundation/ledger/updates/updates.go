// Package updates maintains the governance side of the ledger: the live
// chain parameters and authority keys, the per concern queues of scheduled
// changes, and the signed instructions that feed them. Every queue carries
// its own sequence number for replay protection and a newly accepted change
// supersedes any queued change that would take effect at or after it.
package updates

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/wire"
)

var (
	// ErrChainHalted is returned when an instruction arrives after a
	// protocol update took effect.
	ErrChainHalted = errors.New("a protocol update has taken effect, the chain accepts no further updates")

	// ErrBadSequence is returned when an instruction does not carry the
	// sequence number its queue expects.
	ErrBadSequence = errors.New("wrong update sequence number")
)

// =============================================================================

// KeyCollection holds the three governance authority levels. Root keys
// govern themselves and the level below, level 1 keys govern themselves and
// level 2, and the level 2 access structures govern the chain parameters.
type KeyCollection struct {
	Root   HigherLevelKeys `json:"rootKeys"`
	Level1 HigherLevelKeys `json:"level1Keys"`
	Level2 Authorizations  `json:"level2Keys"`
}

func (k *KeyCollection) validate() error {
	if err := k.Root.validate(); err != nil {
		return fmt.Errorf("root keys: %w", err)
	}
	if err := k.Level1.validate(); err != nil {
		return fmt.Errorf("level 1 keys: %w", err)
	}
	if err := k.Level2.validate(); err != nil {
		return fmt.Errorf("level 2 keys: %w", err)
	}

	return nil
}

func (k *KeyCollection) encodeTo(w io.Writer) error {
	if err := k.Root.encodeTo(w); err != nil {
		return err
	}
	if err := k.Level1.encodeTo(w); err != nil {
		return err
	}

	return k.Level2.encodeTo(w)
}

// =============================================================================

// ChainParameters is the live parameter set consensus and scheduling read.
type ChainParameters struct {
	ElectionDifficulty         ElectionDifficulty         `json:"electionDifficulty"`
	EuroPerEnergy              ExchangeRate               `json:"euroPerEnergy"`
	MicroUnitPerEuro           ExchangeRate               `json:"microUnitPerEuro"`
	FoundationAccount          transaction.AccountID      `json:"foundationAccount"`
	MintDistribution           MintDistribution           `json:"mintDistribution"`
	TransactionFeeDistribution TransactionFeeDistribution `json:"transactionFeeDistribution"`
	GASRewards                 GASRewards                 `json:"gasRewards"`
	BakerStakeThreshold        BakerStakeThreshold        `json:"bakerStakeThreshold"`
}

func (p *ChainParameters) validate() error {
	if err := p.ElectionDifficulty.validate(); err != nil {
		return err
	}
	if err := p.EuroPerEnergy.validate(); err != nil {
		return fmt.Errorf("euro per energy: %w", err)
	}
	if err := p.MicroUnitPerEuro.validate(); err != nil {
		return fmt.Errorf("micro unit per euro: %w", err)
	}
	if p.FoundationAccount.IsZero() {
		return errors.New("foundation account is not set")
	}
	if err := p.MintDistribution.validate(); err != nil {
		return err
	}
	if err := p.TransactionFeeDistribution.validate(); err != nil {
		return err
	}

	return p.GASRewards.validate()
}

func (p *ChainParameters) encodeTo(w io.Writer) error {
	if err := p.ElectionDifficulty.encodeTo(w); err != nil {
		return err
	}
	if err := p.EuroPerEnergy.encodeTo(w); err != nil {
		return err
	}
	if err := p.MicroUnitPerEuro.encodeTo(w); err != nil {
		return err
	}
	if err := wire.WriteBytes(w, p.FoundationAccount.Bytes()); err != nil {
		return err
	}
	if err := p.MintDistribution.encodeTo(w); err != nil {
		return err
	}
	if err := p.TransactionFeeDistribution.encodeTo(w); err != nil {
		return err
	}
	if err := p.GASRewards.encodeTo(w); err != nil {
		return err
	}

	return p.BakerStakeThreshold.encodeTo(w)
}

// =============================================================================

// Updates is the full governance state: the live keys and parameters, the
// identity registries, the queues of scheduled changes, and the terminal
// protocol update once one has taken effect.
type Updates struct {
	Keys              KeyCollection      `json:"keys"`
	Protocol          *ProtocolUpdate    `json:"protocolUpdate,omitempty"`
	Parameters        ChainParameters    `json:"chainParameters"`
	AnonymityRevokers []AnonymityRevoker `json:"anonymityRevokers"`
	IdentityProviders []IdentityProvider `json:"identityProviders"`
	Pending           *PendingUpdates    `json:"updateQueues"`
}

// New constructs the governance state from its genesis values.
func New(keys KeyCollection, params ChainParameters, revokers []AnonymityRevoker, providers []IdentityProvider) (*Updates, error) {
	if err := keys.validate(); err != nil {
		return nil, fmt.Errorf("genesis keys: %w", err)
	}
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("genesis parameters: %w", err)
	}

	u := Updates{
		Keys:       keys,
		Parameters: params,
		Pending:    NewPendingUpdates(),
	}

	for _, ar := range revokers {
		u.AnonymityRevokers = append(u.AnonymityRevokers, ar.copy())
	}
	for _, ip := range providers {
		u.IdentityProviders = append(u.IdentityProviders, ip.copy())
	}

	return &u, nil
}

// Halted reports whether a protocol update has taken effect.
func (u *Updates) Halted() bool {
	return u.Protocol != nil
}

// =============================================================================

// Accept verifies an update instruction end to end and schedules its
// payload. The instruction must not have timed out, must carry the exact
// sequence number its queue expects, must take effect after its timeout,
// and its signatures must satisfy the keys governing the payload kind.
func (u *Updates) Accept(ins *Instruction, now uint64) error {
	if u.Halted() {
		return ErrChainHalted
	}

	header := ins.Header()
	kind := ins.Payload().Kind()

	if header.Timeout < now {
		return fmt.Errorf("instruction timed out at %d, the time is %d", header.Timeout, now)
	}
	if header.EffectiveTime == 0 {
		return errors.New("effective time is not set")
	}
	if header.Timeout > header.EffectiveTime {
		return fmt.Errorf("timeout %d reaches past the effective time %d", header.Timeout, header.EffectiveTime)
	}

	next, err := u.Pending.NextSequence(kind)
	if err != nil {
		return err
	}
	if header.SequenceNumber != next {
		return fmt.Errorf("sequence number %d for %s, expected %d: %w", header.SequenceNumber, kind, next, ErrBadSequence)
	}

	if err := validatePayload(ins.Payload()); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if err := u.checkRegistry(ins.Payload()); err != nil {
		return err
	}

	if err := u.Authorize(ins); err != nil {
		return err
	}

	u.Pending.enqueue(header.EffectiveTime, ins.Payload())

	return nil
}

// Authorize checks the instruction signatures against the keys governing
// its payload kind. Root key changes answer to the root keys alone, key
// changes below root answer to either higher level, and every parameter
// change answers to its level 2 access structure.
func (u *Updates) Authorize(ins *Instruction) error {
	digest := ins.Digest()
	sigs := ins.Signatures()

	switch ins.Payload().Kind() {
	case KindRootKeys:
		return authorizeKeys(digest, sigs, u.Keys.Root)

	case KindLevel1Keys, KindLevel2Keys:
		if err := authorizeKeys(digest, sigs, u.Keys.Level1); err == nil {
			return nil
		}
		return authorizeKeys(digest, sigs, u.Keys.Root)

	default:
		structure, err := u.Keys.Level2.structureFor(ins.Payload().Kind())
		if err != nil {
			return err
		}
		return authorizeStructure(digest, sigs, u.Keys.Level2.Keys, structure)
	}
}

// checkRegistry rejects identity registrations whose id is already live.
func (u *Updates) checkRegistry(payload Payload) error {
	switch v := payload.(type) {
	case AnonymityRevoker:
		for _, ar := range u.AnonymityRevokers {
			if ar.ID == v.ID {
				return fmt.Errorf("anonymity revoker id %d is already registered", v.ID)
			}
		}
	case IdentityProvider:
		for _, ip := range u.IdentityProviders {
			if ip.ID == v.ID {
				return fmt.Errorf("identity provider id %d is already registered", v.ID)
			}
		}
	}

	return nil
}

// validatePayload applies the semantic checks of each payload type. Locally
// constructed payloads skip the decode path, so acceptance re-checks them.
func validatePayload(p Payload) error {
	switch v := p.(type) {
	case ProtocolUpdate:
		return v.validate()
	case ElectionDifficulty:
		return v.validate()
	case EuroPerEnergyUpdate:
		return v.Rate.validate()
	case MicroUnitPerEuroUpdate:
		return v.Rate.validate()
	case FoundationAccountUpdate:
		if v.Account.IsZero() {
			return errors.New("foundation account is empty")
		}
		return nil
	case MintDistribution:
		return v.validate()
	case TransactionFeeDistribution:
		return v.validate()
	case GASRewards:
		return v.validate()
	case RootKeysUpdate:
		return v.Keys.validate()
	case Level1KeysUpdate:
		return v.Keys.validate()
	case Level2KeysUpdate:
		return v.Authorizations.validate()
	case BakerStakeThreshold, AnonymityRevoker, IdentityProvider:
		return nil
	}

	return fmt.Errorf("payload kind %d is not defined", p.Kind())
}

// =============================================================================

// AppliedUpdate reports one update folded into the live state.
type AppliedUpdate struct {
	Queue         string `json:"queue"`
	EffectiveTime uint64 `json:"effectiveTime"`
}

// dueEntry pairs a popped update with its application. order is the fixed
// queue position used to break time ties.
type dueEntry struct {
	at    uint64
	order int
	kind  PayloadKind
	apply func(u *Updates)
}

// ApplyDue folds every update due at the given time into the live state in
// ascending effective time order across all queues, ties resolved by the
// fixed queue order. A protocol update takes effect at most once, anything
// popped for that queue afterward changes nothing.
func (u *Updates) ApplyDue(now uint64) []AppliedUpdate {
	var due []dueEntry

	for _, e := range u.Pending.RootKeys.PopDue(now) {
		keys := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 0, kind: KindRootKeys, apply: func(u *Updates) {
			u.Keys.Root = keys
		}})
	}
	for _, e := range u.Pending.Level1Keys.PopDue(now) {
		keys := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 1, kind: KindLevel1Keys, apply: func(u *Updates) {
			u.Keys.Level1 = keys
		}})
	}
	for _, e := range u.Pending.Level2Keys.PopDue(now) {
		auth := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 2, kind: KindLevel2Keys, apply: func(u *Updates) {
			u.Keys.Level2 = auth
		}})
	}
	for _, e := range u.Pending.Protocol.PopDue(now) {
		protocol := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 3, kind: KindProtocol, apply: func(u *Updates) {
			if u.Protocol == nil {
				u.Protocol = &protocol
			}
		}})
	}
	for _, e := range u.Pending.ElectionDifficulty.PopDue(now) {
		diff := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 4, kind: KindElectionDifficulty, apply: func(u *Updates) {
			u.Parameters.ElectionDifficulty = diff
		}})
	}
	for _, e := range u.Pending.EuroPerEnergy.PopDue(now) {
		rate := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 5, kind: KindEuroPerEnergy, apply: func(u *Updates) {
			u.Parameters.EuroPerEnergy = rate
		}})
	}
	for _, e := range u.Pending.MicroUnitPerEuro.PopDue(now) {
		rate := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 6, kind: KindMicroUnitPerEuro, apply: func(u *Updates) {
			u.Parameters.MicroUnitPerEuro = rate
		}})
	}
	for _, e := range u.Pending.FoundationAccount.PopDue(now) {
		account := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 7, kind: KindFoundationAccount, apply: func(u *Updates) {
			u.Parameters.FoundationAccount = account
		}})
	}
	for _, e := range u.Pending.MintDistribution.PopDue(now) {
		dist := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 8, kind: KindMintDistribution, apply: func(u *Updates) {
			u.Parameters.MintDistribution = dist
		}})
	}
	for _, e := range u.Pending.TransactionFeeDistribution.PopDue(now) {
		dist := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 9, kind: KindTransactionFeeDistribution, apply: func(u *Updates) {
			u.Parameters.TransactionFeeDistribution = dist
		}})
	}
	for _, e := range u.Pending.GASRewards.PopDue(now) {
		rewards := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 10, kind: KindGASRewards, apply: func(u *Updates) {
			u.Parameters.GASRewards = rewards
		}})
	}
	for _, e := range u.Pending.BakerStakeThreshold.PopDue(now) {
		threshold := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 11, kind: KindBakerStakeThreshold, apply: func(u *Updates) {
			u.Parameters.BakerStakeThreshold = threshold
		}})
	}
	for _, e := range u.Pending.AddAnonymityRevoker.PopDue(now) {
		ar := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 12, kind: KindAddAnonymityRevoker, apply: func(u *Updates) {
			for _, live := range u.AnonymityRevokers {
				if live.ID == ar.ID {
					return
				}
			}
			u.AnonymityRevokers = append(u.AnonymityRevokers, ar)
		}})
	}
	for _, e := range u.Pending.AddIdentityProvider.PopDue(now) {
		ip := e.Update
		due = append(due, dueEntry{at: e.EffectiveTime, order: 13, kind: KindAddIdentityProvider, apply: func(u *Updates) {
			for _, live := range u.IdentityProviders {
				if live.ID == ip.ID {
					return
				}
			}
			u.IdentityProviders = append(u.IdentityProviders, ip)
		}})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].order < due[j].order
	})

	applied := make([]AppliedUpdate, 0, len(due))
	for _, d := range due {
		d.apply(u)
		applied = append(applied, AppliedUpdate{Queue: d.kind.String(), EffectiveTime: d.at})
	}

	return applied
}

// =============================================================================

// CommitmentHash folds the complete governance state into one digest. The
// digest chains the section hashes in fixed order, with a one byte
// discriminant telling whether a protocol update section follows.
func (u *Updates) CommitmentHash() ([32]byte, error) {
	var agg bytes.Buffer

	keysHash, err := hashSection(u.Keys.encodeTo)
	if err != nil {
		return [32]byte{}, fmt.Errorf("keys section: %w", err)
	}
	agg.Write(keysHash[:])

	if u.Protocol == nil {
		agg.WriteByte(0)
	} else {
		agg.WriteByte(1)
		protocolHash, err := hashSection(u.Protocol.encodeTo)
		if err != nil {
			return [32]byte{}, fmt.Errorf("protocol section: %w", err)
		}
		agg.Write(protocolHash[:])
	}

	paramsHash, err := hashSection(u.Parameters.encodeTo)
	if err != nil {
		return [32]byte{}, fmt.Errorf("parameters section: %w", err)
	}
	agg.Write(paramsHash[:])

	registryHash, err := hashSection(u.encodeRegistries)
	if err != nil {
		return [32]byte{}, fmt.Errorf("registry section: %w", err)
	}
	agg.Write(registryHash[:])

	pendingHash, err := hashSection(u.Pending.EncodeTo)
	if err != nil {
		return [32]byte{}, fmt.Errorf("pending section: %w", err)
	}
	agg.Write(pendingHash[:])

	return sha256.Sum256(agg.Bytes()), nil
}

// encodeRegistries writes the identity registries in registration order.
func (u *Updates) encodeRegistries(w io.Writer) error {
	if err := wire.WriteUint16(w, uint16(len(u.AnonymityRevokers))); err != nil {
		return err
	}
	for _, ar := range u.AnonymityRevokers {
		if err := ar.encodeTo(w); err != nil {
			return err
		}
	}

	if err := wire.WriteUint16(w, uint16(len(u.IdentityProviders))); err != nil {
		return err
	}
	for _, ip := range u.IdentityProviders {
		if err := ip.encodeTo(w); err != nil {
			return err
		}
	}

	return nil
}

// hashSection hashes one encodable section of the governance state.
func hashSection(enc func(io.Writer) error) ([32]byte, error) {
	var buf bytes.Buffer
	if err := enc(&buf); err != nil {
		return [32]byte{}, err
	}

	return sha256.Sum256(buf.Bytes()), nil
}

// =============================================================================

// Copy returns an independent deep copy of the governance state.
func (u *Updates) Copy() *Updates {
	c := Updates{
		Keys: KeyCollection{
			Root:   u.Keys.Root.copy(),
			Level1: u.Keys.Level1.copy(),
			Level2: u.Keys.Level2.copy(),
		},
		Parameters: u.Parameters,
		Pending:    u.Pending.Copy(),
	}

	if u.Protocol != nil {
		p := u.Protocol.copy()
		c.Protocol = &p
	}

	for _, ar := range u.AnonymityRevokers {
		c.AnonymityRevokers = append(c.AnonymityRevokers, ar.copy())
	}
	for _, ip := range u.IdentityProviders {
		c.IdentityProviders = append(c.IdentityProviders, ip.copy())
	}

	return &c
}
