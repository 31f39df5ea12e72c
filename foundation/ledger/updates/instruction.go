package updates

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/wire"
)

// instructionHeaderLength is the wire size of the fixed header fields:
// sequence number, effective time, timeout and payload size.
const instructionHeaderLength = 8 + 8 + 8 + 4

// InstructionHeader carries the replay protection and scheduling fields of
// an update instruction. The payload size counts the kind tag.
type InstructionHeader struct {
	SequenceNumber uint64 `json:"sequenceNumber"`
	EffectiveTime  uint64 `json:"effectiveTime"`
	Timeout        uint64 `json:"timeout"`
	PayloadSize    uint32 `json:"payloadSize"`
}

// Instruction is a signed request to schedule one governance change. Like a
// transaction it is immutable once constructed, identified by the digest
// over its header and payload bytes.
type Instruction struct {
	header     InstructionHeader
	payload    Payload
	signatures transaction.Signatures

	digest [32]byte
}

// NewInstruction constructs an instruction from its parts. The declared
// payload size must match the actual payload encoding and the signature set
// must respect the wire bounds. Signatures are not verified here, the
// governance state checks them at acceptance.
func NewInstruction(header InstructionHeader, payload Payload, sigs transaction.Signatures) (*Instruction, error) {
	encoded, err := EncodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	if int(header.PayloadSize) != len(encoded) {
		return nil, fmt.Errorf("header payload size %d does not match payload of %d bytes", header.PayloadSize, len(encoded))
	}

	if len(sigs) < transaction.MinSignatures || len(sigs) > transaction.MaxSignatures {
		return nil, fmt.Errorf("instruction must carry between %d and %d signatures, got %d", transaction.MinSignatures, transaction.MaxSignatures, len(sigs))
	}
	for _, sp := range sigs {
		if len(sp.Sig) == 0 {
			return nil, fmt.Errorf("signature for key index %d is empty", sp.KeyIdx)
		}
	}

	digest, err := InstructionDigest(header, payload)
	if err != nil {
		return nil, err
	}

	ins := Instruction{
		header:     header,
		payload:    payload,
		signatures: append(transaction.Signatures(nil), sigs...),
		digest:     digest,
	}

	return &ins, nil
}

// SignInstruction produces the signature pair for the specified governance
// key over the header and payload being committed to.
func SignInstruction(header InstructionHeader, payload Payload, keyIdx uint8, privateKey *ecdsa.PrivateKey) (transaction.SignaturePair, error) {
	digest, err := InstructionDigest(header, payload)
	if err != nil {
		return transaction.SignaturePair{}, err
	}

	sig, err := signature.Sign(digest, privateKey)
	if err != nil {
		return transaction.SignaturePair{}, fmt.Errorf("signing instruction: %w", err)
	}

	return transaction.SignaturePair{KeyIdx: keyIdx, Sig: sig}, nil
}

// InstructionDigest computes the hash a signer commits to for the given
// header and payload.
func InstructionDigest(header InstructionHeader, payload Payload) ([32]byte, error) {
	body, err := encodeInstructionBody(header, payload)
	if err != nil {
		return [32]byte{}, err
	}

	return sha256.Sum256(body), nil
}

// =============================================================================

// Header returns the instruction header.
func (ins *Instruction) Header() InstructionHeader {
	return ins.header
}

// Payload returns the governance change being requested.
func (ins *Instruction) Payload() Payload {
	return ins.payload
}

// Signatures returns a copy of the signature list.
func (ins *Instruction) Signatures() transaction.Signatures {
	return append(transaction.Signatures(nil), ins.signatures...)
}

// Digest returns the hash the signers committed to.
func (ins *Instruction) Digest() [32]byte {
	return ins.digest
}

// TimedOut reports whether the instruction may no longer be accepted at the
// specified time.
func (ins *Instruction) TimedOut(now uint64) bool {
	return ins.header.Timeout < now
}

// =============================================================================

// Encode returns the canonical wire encoding of the instruction: the fixed
// header, the tagged payload, then the signature set.
func (ins *Instruction) Encode() ([]byte, error) {
	body, err := encodeInstructionBody(ins.header, ins.payload)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(body)

	wire.WriteUint8(buf, uint8(len(ins.signatures)))
	for _, sp := range ins.signatures {
		wire.WriteUint8(buf, sp.KeyIdx)
		wire.WriteUint16(buf, uint16(len(sp.Sig)))
		wire.WriteBytes(buf, sp.Sig)
	}

	return buf.Bytes(), nil
}

// DecodeInstruction parses an instruction from its wire encoding. The bytes
// are checked structurally, signatures are not verified. The digest is
// computed over the exact header and payload byte range of the input.
func DecodeInstruction(data []byte) (*Instruction, error) {
	if len(data) < instructionHeaderLength {
		return nil, fmt.Errorf("truncated instruction header: %w", wire.ErrMalformed)
	}

	var header InstructionHeader
	off := 0
	header.SequenceNumber = binary.BigEndian.Uint64(data[off:])
	off += 8
	header.EffectiveTime = binary.BigEndian.Uint64(data[off:])
	off += 8
	header.Timeout = binary.BigEndian.Uint64(data[off:])
	off += 8
	header.PayloadSize = binary.BigEndian.Uint32(data[off:])
	off += 4

	if header.PayloadSize == 0 {
		return nil, fmt.Errorf("instruction carries no payload: %w", wire.ErrMalformed)
	}
	if uint64(off)+uint64(header.PayloadSize) > uint64(len(data)) {
		return nil, fmt.Errorf("payload reaches past the %d input bytes: %w", len(data), wire.ErrMalformed)
	}

	payload, err := decodePayload(data[off : off+int(header.PayloadSize)])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	bodyEnd := off + int(header.PayloadSize)
	off = bodyEnd

	if off >= len(data) {
		return nil, fmt.Errorf("instruction carries no signatures: %w", wire.ErrMalformed)
	}

	sigCount := int(data[off])
	off++
	if sigCount < transaction.MinSignatures {
		return nil, fmt.Errorf("instruction carries no signatures: %w", wire.ErrMalformed)
	}

	sigs := make(transaction.Signatures, 0, sigCount)
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

		sigs = append(sigs, transaction.SignaturePair{KeyIdx: keyIdx, Sig: sig})
	}

	if off != len(data) {
		return nil, fmt.Errorf("instruction carries %d trailing bytes: %w", len(data)-off, wire.ErrMalformed)
	}

	ins := Instruction{
		header:     header,
		payload:    payload,
		signatures: sigs,
		digest:     sha256.Sum256(data[:bodyEnd]),
	}

	return &ins, nil
}

// encodeInstructionBody lays out the header and tagged payload in their
// wire order. The digest covers exactly these bytes.
func encodeInstructionBody(header InstructionHeader, payload Payload) ([]byte, error) {
	encoded, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	if int(header.PayloadSize) != len(encoded) {
		return nil, fmt.Errorf("header payload size %d does not match payload of %d bytes", header.PayloadSize, len(encoded))
	}

	buf := bytes.NewBuffer(make([]byte, 0, instructionHeaderLength+len(encoded)))

	wire.WriteUint64(buf, header.SequenceNumber)
	wire.WriteUint64(buf, header.EffectiveTime)
	wire.WriteUint64(buf, header.Timeout)
	wire.WriteUint32(buf, header.PayloadSize)
	wire.WriteBytes(buf, encoded)

	return buf.Bytes(), nil
}
