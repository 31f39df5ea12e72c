package updates

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/wire"
)

// MaxGovernanceKeys bounds every governance key set so signature key indices
// always fit the one byte wire field.
const MaxGovernanceKeys = 256

// ErrUnauthorized is returned when an instruction's signatures do not meet
// the governing keys for its payload.
var ErrUnauthorized = errors.New("signatures do not meet the governing keys")

// =============================================================================

// Key is the hex encoding of a compressed secp256k1 public key taking part
// in governance.
type Key string

// decode returns the raw compressed key bytes.
func (k Key) decode() ([]byte, error) {
	return signature.DecodePublicKey(string(k))
}

// =============================================================================

// HigherLevelKeys is a flat key set with a signature threshold. The root and
// level 1 governance authorities both take this shape.
type HigherLevelKeys struct {
	Keys      []Key  `json:"keys"`
	Threshold uint16 `json:"threshold"`
}

// validate checks the structural rules shared by every higher level key set.
func (h HigherLevelKeys) validate() error {
	if len(h.Keys) == 0 {
		return errors.New("key set is empty")
	}
	if len(h.Keys) > MaxGovernanceKeys {
		return fmt.Errorf("key set holds %d keys, the maximum is %d", len(h.Keys), MaxGovernanceKeys)
	}
	if h.Threshold == 0 {
		return errors.New("threshold is zero")
	}
	if int(h.Threshold) > len(h.Keys) {
		return fmt.Errorf("threshold %d exceeds the %d keys", h.Threshold, len(h.Keys))
	}

	for _, key := range h.Keys {
		if _, err := key.decode(); err != nil {
			return err
		}
	}

	return nil
}

// copy returns an independent copy of the key set.
func (h HigherLevelKeys) copy() HigherLevelKeys {
	return HigherLevelKeys{
		Keys:      append([]Key(nil), h.Keys...),
		Threshold: h.Threshold,
	}
}

func (h HigherLevelKeys) encodeTo(w io.Writer) error {
	if err := wire.WriteUint16(w, uint16(len(h.Keys))); err != nil {
		return err
	}

	for _, key := range h.Keys {
		raw, err := key.decode()
		if err != nil {
			return err
		}
		if err := wire.WriteBytes(w, raw); err != nil {
			return err
		}
	}

	return wire.WriteUint16(w, h.Threshold)
}

func decodeHigherLevelKeys(r io.Reader) (HigherLevelKeys, error) {
	count, err := wire.ReadUint16(r)
	if err != nil {
		return HigherLevelKeys{}, err
	}
	if count == 0 || int(count) > MaxGovernanceKeys {
		return HigherLevelKeys{}, fmt.Errorf("key count %d out of range: %w", count, wire.ErrMalformed)
	}

	keys := make([]Key, count)
	for i := range keys {
		raw, err := wire.ReadBytes(r, signature.PublicKeyLength)
		if err != nil {
			return HigherLevelKeys{}, err
		}
		keys[i] = Key(hexutil.Encode(raw))
	}

	threshold, err := wire.ReadUint16(r)
	if err != nil {
		return HigherLevelKeys{}, err
	}

	hlk := HigherLevelKeys{Keys: keys, Threshold: threshold}
	if err := hlk.validate(); err != nil {
		return HigherLevelKeys{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return hlk, nil
}

// =============================================================================

// AccessStructure names the subset of the level 2 keys allowed to authorize
// one kind of chain parameter update, with the number of signatures needed.
type AccessStructure struct {
	KeyIndexes []uint16 `json:"keyIndexes"`
	Threshold  uint16   `json:"threshold"`
}

// validate checks the structure against the size of the level 2 key list.
func (a AccessStructure) validate(keyCount int) error {
	if len(a.KeyIndexes) == 0 {
		return errors.New("access structure is empty")
	}
	if a.Threshold == 0 {
		return errors.New("threshold is zero")
	}
	if int(a.Threshold) > len(a.KeyIndexes) {
		return fmt.Errorf("threshold %d exceeds the %d indexes", a.Threshold, len(a.KeyIndexes))
	}
	if !sort.SliceIsSorted(a.KeyIndexes, func(i, j int) bool { return a.KeyIndexes[i] < a.KeyIndexes[j] }) {
		return errors.New("key indexes are not ascending")
	}

	for i, idx := range a.KeyIndexes {
		if i > 0 && idx == a.KeyIndexes[i-1] {
			return fmt.Errorf("key index %d repeats", idx)
		}
		if int(idx) >= keyCount {
			return fmt.Errorf("key index %d exceeds the %d keys", idx, keyCount)
		}
	}

	return nil
}

// allows reports whether the key index takes part in this structure.
func (a AccessStructure) allows(idx uint16) bool {
	n := sort.Search(len(a.KeyIndexes), func(i int) bool { return a.KeyIndexes[i] >= idx })
	return n < len(a.KeyIndexes) && a.KeyIndexes[n] == idx
}

func (a AccessStructure) copy() AccessStructure {
	return AccessStructure{
		KeyIndexes: append([]uint16(nil), a.KeyIndexes...),
		Threshold:  a.Threshold,
	}
}

func (a AccessStructure) encodeTo(w io.Writer) error {
	if err := wire.WriteUint16(w, uint16(len(a.KeyIndexes))); err != nil {
		return err
	}
	for _, idx := range a.KeyIndexes {
		if err := wire.WriteUint16(w, idx); err != nil {
			return err
		}
	}

	return wire.WriteUint16(w, a.Threshold)
}

func decodeAccessStructure(r io.Reader) (AccessStructure, error) {
	count, err := wire.ReadUint16(r)
	if err != nil {
		return AccessStructure{}, err
	}
	if count == 0 || int(count) > MaxGovernanceKeys {
		return AccessStructure{}, fmt.Errorf("index count %d out of range: %w", count, wire.ErrMalformed)
	}

	indexes := make([]uint16, count)
	for i := range indexes {
		if indexes[i], err = wire.ReadUint16(r); err != nil {
			return AccessStructure{}, err
		}
	}

	threshold, err := wire.ReadUint16(r)
	if err != nil {
		return AccessStructure{}, err
	}

	return AccessStructure{KeyIndexes: indexes, Threshold: threshold}, nil
}

// =============================================================================

// Authorizations is the level 2 authority: one key list plus an access
// structure for every kind of chain parameter update.
type Authorizations struct {
	Keys                       []Key           `json:"keys"`
	Protocol                   AccessStructure `json:"protocol"`
	ElectionDifficulty         AccessStructure `json:"electionDifficulty"`
	EuroPerEnergy              AccessStructure `json:"euroPerEnergy"`
	MicroUnitPerEuro           AccessStructure `json:"microUnitPerEuro"`
	FoundationAccount          AccessStructure `json:"foundationAccount"`
	MintDistribution           AccessStructure `json:"mintDistribution"`
	TransactionFeeDistribution AccessStructure `json:"transactionFeeDistribution"`
	GASRewards                 AccessStructure `json:"gasRewards"`
	BakerStakeThreshold        AccessStructure `json:"bakerStakeThreshold"`
	AddAnonymityRevoker        AccessStructure `json:"addAnonymityRevoker"`
	AddIdentityProvider        AccessStructure `json:"addIdentityProvider"`
}

// structures returns the access structures in their fixed wire order.
func (a *Authorizations) structures() []*AccessStructure {
	return []*AccessStructure{
		&a.Protocol,
		&a.ElectionDifficulty,
		&a.EuroPerEnergy,
		&a.MicroUnitPerEuro,
		&a.FoundationAccount,
		&a.MintDistribution,
		&a.TransactionFeeDistribution,
		&a.GASRewards,
		&a.BakerStakeThreshold,
		&a.AddAnonymityRevoker,
		&a.AddIdentityProvider,
	}
}

// structureFor maps a payload kind to the access structure governing it.
func (a *Authorizations) structureFor(kind PayloadKind) (AccessStructure, error) {
	switch kind {
	case KindProtocol:
		return a.Protocol, nil
	case KindElectionDifficulty:
		return a.ElectionDifficulty, nil
	case KindEuroPerEnergy:
		return a.EuroPerEnergy, nil
	case KindMicroUnitPerEuro:
		return a.MicroUnitPerEuro, nil
	case KindFoundationAccount:
		return a.FoundationAccount, nil
	case KindMintDistribution:
		return a.MintDistribution, nil
	case KindTransactionFeeDistribution:
		return a.TransactionFeeDistribution, nil
	case KindGASRewards:
		return a.GASRewards, nil
	case KindBakerStakeThreshold:
		return a.BakerStakeThreshold, nil
	case KindAddAnonymityRevoker:
		return a.AddAnonymityRevoker, nil
	case KindAddIdentityProvider:
		return a.AddIdentityProvider, nil
	}

	return AccessStructure{}, fmt.Errorf("no access structure governs payload kind %d", kind)
}

// validate checks the key list and every access structure.
func (a *Authorizations) validate() error {
	if len(a.Keys) == 0 {
		return errors.New("key list is empty")
	}
	if len(a.Keys) > MaxGovernanceKeys {
		return fmt.Errorf("key list holds %d keys, the maximum is %d", len(a.Keys), MaxGovernanceKeys)
	}

	for _, key := range a.Keys {
		if _, err := key.decode(); err != nil {
			return err
		}
	}

	for _, st := range a.structures() {
		if err := st.validate(len(a.Keys)); err != nil {
			return err
		}
	}

	return nil
}

func (a *Authorizations) copy() Authorizations {
	c := Authorizations{Keys: append([]Key(nil), a.Keys...)}

	src := a.structures()
	dst := c.structures()
	for i := range src {
		*dst[i] = src[i].copy()
	}

	return c
}

func (a *Authorizations) encodeTo(w io.Writer) error {
	if err := wire.WriteUint16(w, uint16(len(a.Keys))); err != nil {
		return err
	}
	for _, key := range a.Keys {
		raw, err := key.decode()
		if err != nil {
			return err
		}
		if err := wire.WriteBytes(w, raw); err != nil {
			return err
		}
	}

	for _, st := range a.structures() {
		if err := st.encodeTo(w); err != nil {
			return err
		}
	}

	return nil
}

func decodeAuthorizations(r io.Reader) (Authorizations, error) {
	count, err := wire.ReadUint16(r)
	if err != nil {
		return Authorizations{}, err
	}
	if count == 0 || int(count) > MaxGovernanceKeys {
		return Authorizations{}, fmt.Errorf("key count %d out of range: %w", count, wire.ErrMalformed)
	}

	var a Authorizations
	a.Keys = make([]Key, count)
	for i := range a.Keys {
		raw, err := wire.ReadBytes(r, signature.PublicKeyLength)
		if err != nil {
			return Authorizations{}, err
		}
		a.Keys[i] = Key(hexutil.Encode(raw))
	}

	for _, st := range a.structures() {
		if *st, err = decodeAccessStructure(r); err != nil {
			return Authorizations{}, err
		}
	}

	if err := a.validate(); err != nil {
		return Authorizations{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return a, nil
}

// =============================================================================

// authorizeKeys checks the signatures against a higher level key set. Every
// signature must verify under a distinct known key and at least threshold
// many must be present.
func authorizeKeys(digest [32]byte, sigs transaction.Signatures, hlk HigherLevelKeys) error {
	seen := make(map[uint8]bool)

	for _, pair := range sigs {
		if seen[pair.KeyIdx] {
			return fmt.Errorf("key index %d signs twice: %w", pair.KeyIdx, ErrUnauthorized)
		}
		seen[pair.KeyIdx] = true

		if int(pair.KeyIdx) >= len(hlk.Keys) {
			return fmt.Errorf("key index %d exceeds the %d keys: %w", pair.KeyIdx, len(hlk.Keys), ErrUnauthorized)
		}

		raw, err := hlk.Keys[pair.KeyIdx].decode()
		if err != nil {
			return err
		}
		if !signature.Verify(digest, pair.Sig, raw) {
			return fmt.Errorf("signature by key index %d does not verify: %w", pair.KeyIdx, ErrUnauthorized)
		}
	}

	if len(seen) < int(hlk.Threshold) {
		return fmt.Errorf("%d signatures do not meet threshold %d: %w", len(seen), hlk.Threshold, ErrUnauthorized)
	}

	return nil
}

// authorizeStructure checks the signatures against an access structure over
// the level 2 key list. Only keys named by the structure count toward its
// threshold and an unknown or repeated index rejects the whole set.
func authorizeStructure(digest [32]byte, sigs transaction.Signatures, keys []Key, st AccessStructure) error {
	seen := make(map[uint8]bool)

	for _, pair := range sigs {
		if seen[pair.KeyIdx] {
			return fmt.Errorf("key index %d signs twice: %w", pair.KeyIdx, ErrUnauthorized)
		}
		seen[pair.KeyIdx] = true

		if !st.allows(uint16(pair.KeyIdx)) {
			return fmt.Errorf("key index %d is not in the access structure: %w", pair.KeyIdx, ErrUnauthorized)
		}
		if int(pair.KeyIdx) >= len(keys) {
			return fmt.Errorf("key index %d exceeds the %d keys: %w", pair.KeyIdx, len(keys), ErrUnauthorized)
		}

		raw, err := keys[pair.KeyIdx].decode()
		if err != nil {
			return err
		}
		if !signature.Verify(digest, pair.Sig, raw) {
			return fmt.Errorf("signature by key index %d does not verify: %w", pair.KeyIdx, ErrUnauthorized)
		}
	}

	if len(seen) < int(st.Threshold) {
		return fmt.Errorf("%d signatures do not meet threshold %d: %w", len(seen), st.Threshold, ErrUnauthorized)
	}

	return nil
}
