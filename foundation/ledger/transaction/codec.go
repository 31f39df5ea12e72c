package transaction

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/wire"
)

// headerLength is the wire size of the fixed header fields: sender address,
// nonce, energy, payload size and expiry.
const headerLength = AddressLength + 8 + 8 + 4 + 8

// =============================================================================

// Encode returns the canonical wire encoding of the transaction. Encoding a
// decoded transaction reproduces the input byte for byte.
func (tx *Transaction) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, tx.size))

	// The buffer writer cannot fail and the signature set was bounds
	// checked at construction.
	wire.WriteUint8(buf, uint8(len(tx.signatures)))
	for _, sp := range tx.signatures {
		wire.WriteUint8(buf, sp.KeyIdx)
		wire.WriteUint16(buf, uint16(len(sp.Sig)))
		wire.WriteBytes(buf, sp.Sig)
	}

	wire.WriteBytes(buf, encodeBody(tx.header, tx.payload))

	return buf.Bytes()
}

// Decode parses a transaction from its wire encoding. The bytes are checked
// structurally, signatures are not verified. The content hash is computed
// over the exact header and payload byte range of the input, the value is
// never re-serialized to hash it.
func Decode(data []byte, arrival uint64) (*Transaction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty transaction data: %w", wire.ErrMalformed)
	}

	off := 0
	sigCount := int(data[off])
	off++

	if sigCount < MinSignatures {
		return nil, fmt.Errorf("transaction carries no signatures: %w", wire.ErrMalformed)
	}

	sigs := make(Signatures, 0, sigCount)
	for i := 0; i < sigCount; i++ {
		if off+3 > len(data) {
			return nil, fmt.Errorf("truncated signature %d: %w", i, wire.ErrMalformed)
		}

		keyIdx := data[off]
		off++
		sigLen := int(binary.BigEndian.Uint16(data[off:]))
		off += 2

		if sigLen == 0 {
			return nil, fmt.Errorf("empty signature for key index %d: %w", keyIdx, wire.ErrMalformed)
		}
		if off+sigLen > len(data) {
			return nil, fmt.Errorf("truncated signature for key index %d: %w", keyIdx, wire.ErrMalformed)
		}

		sig := make([]byte, sigLen)
		copy(sig, data[off:off+sigLen])
		off += sigLen

		sigs = append(sigs, SignaturePair{KeyIdx: keyIdx, Sig: sig})
	}

	bodyStart := off
	if off+headerLength > len(data) {
		return nil, fmt.Errorf("truncated transaction header: %w", wire.ErrMalformed)
	}

	var header Header
	header.SenderID = BytesToAccountID(data[off : off+AddressLength])
	off += AddressLength
	header.Nonce = binary.BigEndian.Uint64(data[off:])
	off += 8
	header.Energy = binary.BigEndian.Uint64(data[off:])
	off += 8
	header.PayloadSize = binary.BigEndian.Uint32(data[off:])
	off += 4
	header.Expiry = binary.BigEndian.Uint64(data[off:])
	off += 8

	if uint64(len(data)-off) != uint64(header.PayloadSize) {
		return nil, fmt.Errorf("payload of %d bytes does not match declared size %d: %w", len(data)-off, header.PayloadSize, wire.ErrMalformed)
	}

	payload := make([]byte, header.PayloadSize)
	copy(payload, data[off:])

	tx := Transaction{
		header:     header,
		payload:    payload,
		signatures: sigs,
		hash:       sha256.Sum256(data[bodyStart:]),
		size:       len(data),
		arrival:    arrival,
	}

	return &tx, nil
}

// =============================================================================

// Digest computes the hash a signer commits to for the given header and
// payload. It is the same value that identifies the final transaction.
func Digest(header Header, payload []byte) TxHash {
	return sha256.Sum256(encodeBody(header, payload))
}

// encodeBody lays out the header fields and payload in their wire order. The
// content hash covers exactly these bytes.
func encodeBody(header Header, payload []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, bodyLength(header)))

	wire.WriteBytes(buf, header.SenderID.Bytes())
	wire.WriteUint64(buf, header.Nonce)
	wire.WriteUint64(buf, header.Energy)
	wire.WriteUint32(buf, header.PayloadSize)
	wire.WriteUint64(buf, header.Expiry)
	wire.WriteBytes(buf, payload)

	return buf.Bytes()
}

// bodyLength returns the wire size of the header plus payload.
func bodyLength(header Header) int {
	return headerLength + int(header.PayloadSize)
}
