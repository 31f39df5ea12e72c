// Package transaction implements the wire level transaction type of the
// ledger and its byte exact codec. A transaction is immutable once
// constructed so every bookkeeping structure in the node can share one
// instance, and its identity is the content hash over the header and payload
// bytes alone.
package transaction

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tallychain/tally/foundation/ledger/signature"
)

// The bounds a signature set must respect on the wire.
const (
	MinSignatures = 1
	MaxSignatures = 255
)

// ErrInvalidSignature indicates a signature set failed verification against
// the account rules.
var ErrInvalidSignature = errors.New("invalid transaction signature")

// =============================================================================

// Header carries the fixed fields every transaction states up front. Two
// transactions with equal header fields have equal headers regardless of
// their payloads or signatures.
type Header struct {
	SenderID    AccountID `json:"sender"`
	Nonce       uint64    `json:"nonce"`
	Energy      uint64    `json:"energy"`
	PayloadSize uint32    `json:"payloadSize"`
	Expiry      uint64    `json:"expiry"`
}

// SignaturePair binds one signature to the index of the account key that
// produced it.
type SignaturePair struct {
	KeyIdx uint8         `json:"keyIdx"`
	Sig    hexutil.Bytes `json:"sig"`
}

// Signatures is the ordered list of signatures a transaction carries.
type Signatures []SignaturePair

// =============================================================================

// Transaction represents a signed transaction as the ledger tracks it. The
// derived fields are computed once at construction: the content hash, the
// total serialized size and the arrival time the node first saw the value.
type Transaction struct {
	header     Header
	payload    []byte
	signatures Signatures

	hash    TxHash
	size    int
	arrival uint64
}

// New constructs a transaction from its parts, deriving the content hash and
// the serialized size. The same structural rules the decoder enforces apply
// here, signatures are not verified.
func New(header Header, payload []byte, sigs Signatures, arrival uint64) (*Transaction, error) {
	senderID, err := ToAccountID(string(header.SenderID))
	if err != nil {
		return nil, err
	}
	header.SenderID = senderID

	if int(header.PayloadSize) != len(payload) {
		return nil, fmt.Errorf("header payload size %d does not match payload of %d bytes", header.PayloadSize, len(payload))
	}

	if len(sigs) < MinSignatures || len(sigs) > MaxSignatures {
		return nil, fmt.Errorf("transaction must carry between %d and %d signatures, got %d", MinSignatures, MaxSignatures, len(sigs))
	}

	sigSize := 1
	for _, sp := range sigs {
		if len(sp.Sig) == 0 {
			return nil, fmt.Errorf("signature for key index %d is empty", sp.KeyIdx)
		}
		if len(sp.Sig) > math.MaxUint16 {
			return nil, fmt.Errorf("signature for key index %d exceeds %d bytes", sp.KeyIdx, math.MaxUint16)
		}
		sigSize += 3 + len(sp.Sig)
	}

	tx := Transaction{
		header:     header,
		payload:    append([]byte(nil), payload...),
		signatures: append(Signatures(nil), sigs...),
		hash:       Digest(header, payload),
		size:       sigSize + bodyLength(header),
		arrival:    arrival,
	}

	return &tx, nil
}

// Sign produces the signature pair for the specified account key over the
// header and payload being committed to.
func Sign(header Header, payload []byte, keyIdx uint8, privateKey *ecdsa.PrivateKey) (SignaturePair, error) {
	digest := Digest(header, payload)

	sig, err := signature.Sign(digest, privateKey)
	if err != nil {
		return SignaturePair{}, fmt.Errorf("signing transaction: %w", err)
	}

	return SignaturePair{KeyIdx: keyIdx, Sig: sig}, nil
}

// =============================================================================

// Header returns the transaction header.
func (tx *Transaction) Header() Header {
	return tx.header
}

// SenderID returns the account that authored the transaction.
func (tx *Transaction) SenderID() AccountID {
	return tx.header.SenderID
}

// Nonce returns the account sequence number the transaction claims.
func (tx *Transaction) Nonce() uint64 {
	return tx.header.Nonce
}

// Energy returns the execution budget the sender committed to.
func (tx *Transaction) Energy() uint64 {
	return tx.header.Energy
}

// Expiry returns the unix second past which the transaction may no longer be
// placed in a block.
func (tx *Transaction) Expiry() uint64 {
	return tx.header.Expiry
}

// Expired reports whether the transaction can no longer be placed in a block
// at the specified time.
func (tx *Transaction) Expired(now uint64) bool {
	return tx.header.Expiry < now
}

// Payload returns a copy of the opaque payload bytes.
func (tx *Transaction) Payload() []byte {
	return append([]byte(nil), tx.payload...)
}

// Signatures returns a copy of the signature list.
func (tx *Transaction) Signatures() Signatures {
	return append(Signatures(nil), tx.signatures...)
}

// Hash returns the content hash that identifies the transaction.
func (tx *Transaction) Hash() TxHash {
	return tx.hash
}

// Size returns the total serialized size in bytes.
func (tx *Transaction) Size() int {
	return tx.size
}

// Arrival returns the unix second the node first saw the transaction.
func (tx *Transaction) Arrival() uint64 {
	return tx.arrival
}

// =============================================================================

// Verify checks the signature set against an account key set. Key indices
// must be distinct and resolve to an account key, every signature must
// verify over the content digest, and the signature count must meet the
// account threshold.
func (tx *Transaction) Verify(keys [][]byte, threshold uint8) error {
	if threshold == 0 || int(threshold) > len(keys) {
		return fmt.Errorf("unusable key set: threshold %d over %d keys", threshold, len(keys))
	}

	if len(tx.signatures) < int(threshold) {
		return fmt.Errorf("%d signatures cannot meet threshold %d: %w", len(tx.signatures), threshold, ErrInvalidSignature)
	}

	seen := make(map[uint8]bool, len(tx.signatures))
	for _, sp := range tx.signatures {
		if seen[sp.KeyIdx] {
			return fmt.Errorf("duplicate key index %d: %w", sp.KeyIdx, ErrInvalidSignature)
		}
		seen[sp.KeyIdx] = true

		if int(sp.KeyIdx) >= len(keys) {
			return fmt.Errorf("key index %d outside account key set of %d: %w", sp.KeyIdx, len(keys), ErrInvalidSignature)
		}

		if !signature.Verify(tx.hash, sp.Sig, keys[sp.KeyIdx]) {
			return fmt.Errorf("signature for key index %d does not verify: %w", sp.KeyIdx, ErrInvalidSignature)
		}
	}

	return nil
}
