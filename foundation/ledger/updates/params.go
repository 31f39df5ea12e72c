package updates

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tallychain/tally/foundation/ledger/wire"
)

// RewardFractionUnit is the denominator of every reward fraction. A value
// of 100000 reads as 100 percent.
const RewardFractionUnit = 100_000

// RewardFraction expresses a share in parts per hundred thousand.
type RewardFraction uint32

func (f RewardFraction) validate(name string) error {
	if f > RewardFractionUnit {
		return fmt.Errorf("%s fraction %d exceeds %d", name, f, RewardFractionUnit)
	}
	return nil
}

// =============================================================================

// ElectionDifficulty sets the chance of winning the baking lottery per slot,
// in parts per hundred thousand.
type ElectionDifficulty struct {
	PartsPerHundredThousand uint32 `json:"partsPerHundredThousand"`
}

func (e ElectionDifficulty) validate() error {
	if e.PartsPerHundredThousand > RewardFractionUnit {
		return fmt.Errorf("election difficulty %d exceeds %d", e.PartsPerHundredThousand, RewardFractionUnit)
	}
	return nil
}

func (e ElectionDifficulty) encodeTo(w io.Writer) error {
	return wire.WriteUint32(w, e.PartsPerHundredThousand)
}

func decodeElectionDifficulty(r io.Reader) (ElectionDifficulty, error) {
	v, err := wire.ReadUint32(r)
	if err != nil {
		return ElectionDifficulty{}, err
	}

	e := ElectionDifficulty{PartsPerHundredThousand: v}
	if err := e.validate(); err != nil {
		return ElectionDifficulty{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return e, nil
}

// =============================================================================

// ExchangeRate is a ratio of two positive integers. The chain never reduces
// the fraction, the pair is kept exactly as governance set it.
type ExchangeRate struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

func (e ExchangeRate) validate() error {
	if e.Numerator == 0 || e.Denominator == 0 {
		return errors.New("exchange rate parts must be positive")
	}
	return nil
}

func (e ExchangeRate) encodeTo(w io.Writer) error {
	if err := wire.WriteUint64(w, e.Numerator); err != nil {
		return err
	}
	return wire.WriteUint64(w, e.Denominator)
}

func decodeExchangeRate(r io.Reader) (ExchangeRate, error) {
	var e ExchangeRate
	var err error

	if e.Numerator, err = wire.ReadUint64(r); err != nil {
		return ExchangeRate{}, err
	}
	if e.Denominator, err = wire.ReadUint64(r); err != nil {
		return ExchangeRate{}, err
	}

	if err := e.validate(); err != nil {
		return ExchangeRate{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return e, nil
}

// =============================================================================

// MintRate scales minting per slot as mantissa times ten to the negative
// exponent.
type MintRate struct {
	Mantissa uint32 `json:"mantissa"`
	Exponent uint8  `json:"exponent"`
}

func (m MintRate) encodeTo(w io.Writer) error {
	if err := wire.WriteUint32(w, m.Mantissa); err != nil {
		return err
	}
	return wire.WriteUint8(w, m.Exponent)
}

func decodeMintRate(r io.Reader) (MintRate, error) {
	var m MintRate
	var err error

	if m.Mantissa, err = wire.ReadUint32(r); err != nil {
		return MintRate{}, err
	}
	if m.Exponent, err = wire.ReadUint8(r); err != nil {
		return MintRate{}, err
	}

	return m, nil
}

// =============================================================================

// MintDistribution sets the mint rate per slot and how freshly minted funds
// split between baking and finalization rewards. The remainder accrues to
// the foundation.
type MintDistribution struct {
	MintPerSlot        MintRate       `json:"mintPerSlot"`
	BakingReward       RewardFraction `json:"bakingReward"`
	FinalizationReward RewardFraction `json:"finalizationReward"`
}

func (m MintDistribution) validate() error {
	if err := m.BakingReward.validate("baking reward"); err != nil {
		return err
	}
	if err := m.FinalizationReward.validate("finalization reward"); err != nil {
		return err
	}
	if uint64(m.BakingReward)+uint64(m.FinalizationReward) > RewardFractionUnit {
		return fmt.Errorf("baking and finalization rewards sum past %d", RewardFractionUnit)
	}
	return nil
}

func (m MintDistribution) encodeTo(w io.Writer) error {
	if err := m.MintPerSlot.encodeTo(w); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, uint32(m.BakingReward)); err != nil {
		return err
	}
	return wire.WriteUint32(w, uint32(m.FinalizationReward))
}

func decodeMintDistribution(r io.Reader) (MintDistribution, error) {
	var m MintDistribution
	var err error

	if m.MintPerSlot, err = decodeMintRate(r); err != nil {
		return MintDistribution{}, err
	}

	baking, err := wire.ReadUint32(r)
	if err != nil {
		return MintDistribution{}, err
	}
	finalization, err := wire.ReadUint32(r)
	if err != nil {
		return MintDistribution{}, err
	}
	m.BakingReward = RewardFraction(baking)
	m.FinalizationReward = RewardFraction(finalization)

	if err := m.validate(); err != nil {
		return MintDistribution{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return m, nil
}

// =============================================================================

// TransactionFeeDistribution splits collected transaction fees between the
// baker and the gas account. The remainder accrues to the foundation.
type TransactionFeeDistribution struct {
	Baker      RewardFraction `json:"baker"`
	GasAccount RewardFraction `json:"gasAccount"`
}

func (t TransactionFeeDistribution) validate() error {
	if err := t.Baker.validate("baker"); err != nil {
		return err
	}
	if err := t.GasAccount.validate("gas account"); err != nil {
		return err
	}
	if uint64(t.Baker)+uint64(t.GasAccount) > RewardFractionUnit {
		return fmt.Errorf("baker and gas account shares sum past %d", RewardFractionUnit)
	}
	return nil
}

func (t TransactionFeeDistribution) encodeTo(w io.Writer) error {
	if err := wire.WriteUint32(w, uint32(t.Baker)); err != nil {
		return err
	}
	return wire.WriteUint32(w, uint32(t.GasAccount))
}

func decodeTransactionFeeDistribution(r io.Reader) (TransactionFeeDistribution, error) {
	baker, err := wire.ReadUint32(r)
	if err != nil {
		return TransactionFeeDistribution{}, err
	}
	gas, err := wire.ReadUint32(r)
	if err != nil {
		return TransactionFeeDistribution{}, err
	}

	t := TransactionFeeDistribution{Baker: RewardFraction(baker), GasAccount: RewardFraction(gas)}
	if err := t.validate(); err != nil {
		return TransactionFeeDistribution{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return t, nil
}

// =============================================================================

// GASRewards sets the shares of the gas account paid out to the baker for
// the events a block carries.
type GASRewards struct {
	Baker             RewardFraction `json:"baker"`
	FinalizationProof RewardFraction `json:"finalizationProof"`
	AccountCreation   RewardFraction `json:"accountCreation"`
	ChainUpdate       RewardFraction `json:"chainUpdate"`
}

func (g GASRewards) validate() error {
	if err := g.Baker.validate("baker"); err != nil {
		return err
	}
	if err := g.FinalizationProof.validate("finalization proof"); err != nil {
		return err
	}
	if err := g.AccountCreation.validate("account creation"); err != nil {
		return err
	}
	return g.ChainUpdate.validate("chain update")
}

func (g GASRewards) encodeTo(w io.Writer) error {
	for _, f := range []RewardFraction{g.Baker, g.FinalizationProof, g.AccountCreation, g.ChainUpdate} {
		if err := wire.WriteUint32(w, uint32(f)); err != nil {
			return err
		}
	}
	return nil
}

func decodeGASRewards(r io.Reader) (GASRewards, error) {
	var parts [4]RewardFraction
	for i := range parts {
		v, err := wire.ReadUint32(r)
		if err != nil {
			return GASRewards{}, err
		}
		parts[i] = RewardFraction(v)
	}

	g := GASRewards{Baker: parts[0], FinalizationProof: parts[1], AccountCreation: parts[2], ChainUpdate: parts[3]}
	if err := g.validate(); err != nil {
		return GASRewards{}, fmt.Errorf("%v: %w", err, wire.ErrMalformed)
	}

	return g, nil
}

// =============================================================================

// BakerStakeThreshold sets the minimum stake an account needs to register
// as a baker.
type BakerStakeThreshold struct {
	MinimumThreshold uint64 `json:"minimumThreshold"`
}

func (b BakerStakeThreshold) encodeTo(w io.Writer) error {
	return wire.WriteUint64(w, b.MinimumThreshold)
}

func decodeBakerStakeThreshold(r io.Reader) (BakerStakeThreshold, error) {
	v, err := wire.ReadUint64(r)
	if err != nil {
		return BakerStakeThreshold{}, err
	}
	return BakerStakeThreshold{MinimumThreshold: v}, nil
}

// =============================================================================

// ProtocolUpdate announces a coordinated switch to a new protocol version.
// Applying one is terminal for this chain, the node keeps serving reads but
// accepts no further effects.
type ProtocolUpdate struct {
	Message           string        `json:"message"`
	SpecificationURL  string        `json:"specificationUrl"`
	SpecificationHash string        `json:"specificationHash"`
	AuxiliaryData     hexutil.Bytes `json:"auxiliaryData"`
}

func (p ProtocolUpdate) validate() error {
	hash, err := hexutil.Decode(p.SpecificationHash)
	if err != nil {
		return fmt.Errorf("specification hash: %w", err)
	}
	if len(hash) != 32 {
		return fmt.Errorf("specification hash is %d bytes, need 32", len(hash))
	}
	return nil
}

func (p ProtocolUpdate) copy() ProtocolUpdate {
	c := p
	c.AuxiliaryData = append(hexutil.Bytes(nil), p.AuxiliaryData...)
	return c
}

func (p ProtocolUpdate) encodeTo(w io.Writer) error {
	if err := wire.WriteString(w, p.Message); err != nil {
		return err
	}
	if err := wire.WriteString(w, p.SpecificationURL); err != nil {
		return err
	}

	hash, err := hexutil.Decode(p.SpecificationHash)
	if err != nil || len(hash) != 32 {
		return fmt.Errorf("specification hash %q is not a 32 byte hex value", p.SpecificationHash)
	}
	if err := wire.WriteBytes(w, hash); err != nil {
		return err
	}

	return wire.WriteBlob(w, p.AuxiliaryData)
}

func decodeProtocolUpdate(r io.Reader) (ProtocolUpdate, error) {
	var p ProtocolUpdate
	var err error

	if p.Message, err = wire.ReadString(r); err != nil {
		return ProtocolUpdate{}, err
	}
	if p.SpecificationURL, err = wire.ReadString(r); err != nil {
		return ProtocolUpdate{}, err
	}

	hash, err := wire.ReadBytes(r, 32)
	if err != nil {
		return ProtocolUpdate{}, err
	}
	p.SpecificationHash = hexutil.Encode(hash)

	aux, err := wire.ReadBlob(r)
	if err != nil {
		return ProtocolUpdate{}, err
	}
	p.AuxiliaryData = aux

	return p, nil
}

// =============================================================================

// Description names an identity participant for display purposes.
type Description struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (d Description) encodeTo(w io.Writer) error {
	if err := wire.WriteString(w, d.Name); err != nil {
		return err
	}
	if err := wire.WriteString(w, d.URL); err != nil {
		return err
	}
	return wire.WriteString(w, d.Description)
}

func decodeDescription(r io.Reader) (Description, error) {
	var d Description
	var err error

	if d.Name, err = wire.ReadString(r); err != nil {
		return Description{}, err
	}
	if d.URL, err = wire.ReadString(r); err != nil {
		return Description{}, err
	}
	if d.Description, err = wire.ReadString(r); err != nil {
		return Description{}, err
	}

	return d, nil
}

// =============================================================================

// AnonymityRevoker registers a party able to take part in revoking the
// anonymity of an account holder.
type AnonymityRevoker struct {
	ID          uint32        `json:"id"`
	Description Description   `json:"description"`
	PublicKey   hexutil.Bytes `json:"publicKey"`
}

func (a AnonymityRevoker) copy() AnonymityRevoker {
	c := a
	c.PublicKey = append(hexutil.Bytes(nil), a.PublicKey...)
	return c
}

func (a AnonymityRevoker) encodeTo(w io.Writer) error {
	if err := wire.WriteUint32(w, a.ID); err != nil {
		return err
	}
	if err := a.Description.encodeTo(w); err != nil {
		return err
	}
	return wire.WriteBlob(w, a.PublicKey)
}

func decodeAnonymityRevoker(r io.Reader) (AnonymityRevoker, error) {
	var a AnonymityRevoker
	var err error

	if a.ID, err = wire.ReadUint32(r); err != nil {
		return AnonymityRevoker{}, err
	}
	if a.Description, err = decodeDescription(r); err != nil {
		return AnonymityRevoker{}, err
	}

	key, err := wire.ReadBlob(r)
	if err != nil {
		return AnonymityRevoker{}, err
	}
	a.PublicKey = key

	return a, nil
}

// =============================================================================

// IdentityProvider registers a party able to issue identity credentials.
type IdentityProvider struct {
	ID           uint32        `json:"id"`
	Description  Description   `json:"description"`
	VerifyKey    hexutil.Bytes `json:"verifyKey"`
	CDIVerifyKey hexutil.Bytes `json:"cdiVerifyKey"`
}

func (p IdentityProvider) copy() IdentityProvider {
	c := p
	c.VerifyKey = append(hexutil.Bytes(nil), p.VerifyKey...)
	c.CDIVerifyKey = append(hexutil.Bytes(nil), p.CDIVerifyKey...)
	return c
}

func (p IdentityProvider) encodeTo(w io.Writer) error {
	if err := wire.WriteUint32(w, p.ID); err != nil {
		return err
	}
	if err := p.Description.encodeTo(w); err != nil {
		return err
	}
	if err := wire.WriteBlob(w, p.VerifyKey); err != nil {
		return err
	}
	return wire.WriteBlob(w, p.CDIVerifyKey)
}

func decodeIdentityProvider(r io.Reader) (IdentityProvider, error) {
	var p IdentityProvider
	var err error

	if p.ID, err = wire.ReadUint32(r); err != nil {
		return IdentityProvider{}, err
	}
	if p.Description, err = decodeDescription(r); err != nil {
		return IdentityProvider{}, err
	}

	verify, err := wire.ReadBlob(r)
	if err != nil {
		return IdentityProvider{}, err
	}
	cdi, err := wire.ReadBlob(r)
	if err != nil {
		return IdentityProvider{}, err
	}
	p.VerifyKey = verify
	p.CDIVerifyKey = cdi

	return p, nil
}
