package updates

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/wire"
)

// PayloadKind tags the wire form of an update instruction payload. The
// values are part of the wire format and never reordered.
type PayloadKind uint8

const (
	KindProtocol PayloadKind = iota + 1
	KindElectionDifficulty
	KindEuroPerEnergy
	KindMicroUnitPerEuro
	KindFoundationAccount
	KindMintDistribution
	KindTransactionFeeDistribution
	KindGASRewards
	KindBakerStakeThreshold
	KindRootKeys
	KindLevel1Keys
	KindLevel2Keys
	KindAddAnonymityRevoker
	KindAddIdentityProvider
)

// String names the queue the payload kind feeds.
func (k PayloadKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindElectionDifficulty:
		return "electionDifficulty"
	case KindEuroPerEnergy:
		return "euroPerEnergy"
	case KindMicroUnitPerEuro:
		return "microUnitPerEuro"
	case KindFoundationAccount:
		return "foundationAccount"
	case KindMintDistribution:
		return "mintDistribution"
	case KindTransactionFeeDistribution:
		return "transactionFeeDistribution"
	case KindGASRewards:
		return "gasRewards"
	case KindBakerStakeThreshold:
		return "bakerStakeThreshold"
	case KindRootKeys:
		return "rootKeys"
	case KindLevel1Keys:
		return "level1Keys"
	case KindLevel2Keys:
		return "level2Keys"
	case KindAddAnonymityRevoker:
		return "addAnonymityRevoker"
	case KindAddIdentityProvider:
		return "addIdentityProvider"
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// =============================================================================

// Payload is implemented by every concrete update body. The set is closed,
// decoding accepts exactly the kinds defined in this package.
type Payload interface {
	Kind() PayloadKind
	encodeBody(w io.Writer) error
}

// Kinds whose event type carries enough information on its own implement
// Payload directly. The rest wear a thin wrapper naming the target.

// Kind returns KindProtocol.
func (p ProtocolUpdate) Kind() PayloadKind { return KindProtocol }
func (p ProtocolUpdate) encodeBody(w io.Writer) error { return p.encodeTo(w) }

// Kind returns KindElectionDifficulty.
func (e ElectionDifficulty) Kind() PayloadKind { return KindElectionDifficulty }
func (e ElectionDifficulty) encodeBody(w io.Writer) error { return e.encodeTo(w) }

// Kind returns KindMintDistribution.
func (m MintDistribution) Kind() PayloadKind { return KindMintDistribution }
func (m MintDistribution) encodeBody(w io.Writer) error { return m.encodeTo(w) }

// Kind returns KindTransactionFeeDistribution.
func (t TransactionFeeDistribution) Kind() PayloadKind { return KindTransactionFeeDistribution }
func (t TransactionFeeDistribution) encodeBody(w io.Writer) error { return t.encodeTo(w) }

// Kind returns KindGASRewards.
func (g GASRewards) Kind() PayloadKind { return KindGASRewards }
func (g GASRewards) encodeBody(w io.Writer) error { return g.encodeTo(w) }

// Kind returns KindBakerStakeThreshold.
func (b BakerStakeThreshold) Kind() PayloadKind { return KindBakerStakeThreshold }
func (b BakerStakeThreshold) encodeBody(w io.Writer) error { return b.encodeTo(w) }

// Kind returns KindAddAnonymityRevoker.
func (a AnonymityRevoker) Kind() PayloadKind { return KindAddAnonymityRevoker }
func (a AnonymityRevoker) encodeBody(w io.Writer) error { return a.encodeTo(w) }

// Kind returns KindAddIdentityProvider.
func (p IdentityProvider) Kind() PayloadKind { return KindAddIdentityProvider }
func (p IdentityProvider) encodeBody(w io.Writer) error { return p.encodeTo(w) }

// =============================================================================

// RootKeysUpdate replaces the root governance keys.
type RootKeysUpdate struct {
	Keys HigherLevelKeys `json:"keys"`
}

// Kind returns KindRootKeys.
func (u RootKeysUpdate) Kind() PayloadKind { return KindRootKeys }
func (u RootKeysUpdate) encodeBody(w io.Writer) error { return u.Keys.encodeTo(w) }

// Level1KeysUpdate replaces the level 1 governance keys.
type Level1KeysUpdate struct {
	Keys HigherLevelKeys `json:"keys"`
}

// Kind returns KindLevel1Keys.
func (u Level1KeysUpdate) Kind() PayloadKind { return KindLevel1Keys }
func (u Level1KeysUpdate) encodeBody(w io.Writer) error { return u.Keys.encodeTo(w) }

// Level2KeysUpdate replaces the level 2 keys and every access structure.
type Level2KeysUpdate struct {
	Authorizations Authorizations `json:"authorizations"`
}

// Kind returns KindLevel2Keys.
func (u Level2KeysUpdate) Kind() PayloadKind { return KindLevel2Keys }
func (u Level2KeysUpdate) encodeBody(w io.Writer) error { return u.Authorizations.encodeTo(w) }

// EuroPerEnergyUpdate moves the euro price of a unit of energy.
type EuroPerEnergyUpdate struct {
	Rate ExchangeRate `json:"rate"`
}

// Kind returns KindEuroPerEnergy.
func (u EuroPerEnergyUpdate) Kind() PayloadKind { return KindEuroPerEnergy }
func (u EuroPerEnergyUpdate) encodeBody(w io.Writer) error { return u.Rate.encodeTo(w) }

// MicroUnitPerEuroUpdate moves the micro unit price of a euro.
type MicroUnitPerEuroUpdate struct {
	Rate ExchangeRate `json:"rate"`
}

// Kind returns KindMicroUnitPerEuro.
func (u MicroUnitPerEuroUpdate) Kind() PayloadKind { return KindMicroUnitPerEuro }
func (u MicroUnitPerEuroUpdate) encodeBody(w io.Writer) error { return u.Rate.encodeTo(w) }

// FoundationAccountUpdate points the foundation reward flow at a different
// account.
type FoundationAccountUpdate struct {
	Account transaction.AccountID `json:"account"`
}

// Kind returns KindFoundationAccount.
func (u FoundationAccountUpdate) Kind() PayloadKind { return KindFoundationAccount }

func (u FoundationAccountUpdate) encodeBody(w io.Writer) error {
	account, err := transaction.ToAccountID(string(u.Account))
	if err != nil {
		return err
	}

	return wire.WriteBytes(w, account.Bytes())
}

// =============================================================================

// EncodePayload serializes a payload as its kind tag followed by the body.
func EncodePayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer

	if err := wire.WriteUint8(&buf, uint8(p.Kind())); err != nil {
		return nil, err
	}
	if err := p.encodeBody(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodePayload parses a payload written by EncodePayload. The reader must
// be exhausted by the decode, trailing bytes reject the payload.
func decodePayload(data []byte) (Payload, error) {
	r := bytes.NewReader(data)

	kind, err := wire.ReadUint8(r)
	if err != nil {
		return nil, err
	}

	var payload Payload
	switch PayloadKind(kind) {
	case KindProtocol:
		payload, err = decodeProtocolUpdate(r)
	case KindElectionDifficulty:
		payload, err = decodeElectionDifficulty(r)
	case KindEuroPerEnergy:
		var rate ExchangeRate
		rate, err = decodeExchangeRate(r)
		payload = EuroPerEnergyUpdate{Rate: rate}
	case KindMicroUnitPerEuro:
		var rate ExchangeRate
		rate, err = decodeExchangeRate(r)
		payload = MicroUnitPerEuroUpdate{Rate: rate}
	case KindFoundationAccount:
		var raw []byte
		raw, err = wire.ReadBytes(r, transaction.AddressLength)
		payload = FoundationAccountUpdate{Account: transaction.BytesToAccountID(raw)}
	case KindMintDistribution:
		payload, err = decodeMintDistribution(r)
	case KindTransactionFeeDistribution:
		payload, err = decodeTransactionFeeDistribution(r)
	case KindGASRewards:
		payload, err = decodeGASRewards(r)
	case KindBakerStakeThreshold:
		payload, err = decodeBakerStakeThreshold(r)
	case KindRootKeys:
		var keys HigherLevelKeys
		keys, err = decodeHigherLevelKeys(r)
		payload = RootKeysUpdate{Keys: keys}
	case KindLevel1Keys:
		var keys HigherLevelKeys
		keys, err = decodeHigherLevelKeys(r)
		payload = Level1KeysUpdate{Keys: keys}
	case KindLevel2Keys:
		var auth Authorizations
		auth, err = decodeAuthorizations(r)
		payload = Level2KeysUpdate{Authorizations: auth}
	case KindAddAnonymityRevoker:
		payload, err = decodeAnonymityRevoker(r)
	case KindAddIdentityProvider:
		payload, err = decodeIdentityProvider(r)
	default:
		return nil, fmt.Errorf("payload kind %d is not defined: %w", kind, wire.ErrMalformed)
	}

	if err != nil {
		return nil, err
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("payload carries %d trailing bytes: %w", r.Len(), wire.ErrMalformed)
	}

	return payload, nil
}
