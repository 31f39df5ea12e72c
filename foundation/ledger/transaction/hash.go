package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashLength is the byte length of the content hashes used across the ledger.
const HashLength = 32

// =============================================================================

// TxHash is the content hash that identifies a transaction. It covers the
// header and payload bytes only, signatures never contribute.
type TxHash [HashLength]byte

// ToTxHash converts a hex encoded string into a transaction hash.
func ToTxHash(hex string) (TxHash, error) {
	var h TxHash
	if err := decodeHash(h[:], hex); err != nil {
		return TxHash{}, fmt.Errorf("invalid transaction hash: %w", err)
	}

	return h, nil
}

// IsZero reports whether the hash carries no value.
func (h TxHash) IsZero() bool {
	return h == TxHash{}
}

// String implements the fmt.Stringer interface.
func (h TxHash) String() string {
	return hexutil.Encode(h[:])
}

// MarshalText implements the encoding.TextMarshaler interface so the hash
// can key JSON maps.
func (h TxHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *TxHash) UnmarshalText(text []byte) error {
	return decodeHash(h[:], string(text))
}

// =============================================================================

// BlockHash identifies a block handed to the ledger by the consensus layer.
type BlockHash [HashLength]byte

// ToBlockHash converts a hex encoded string into a block hash.
func ToBlockHash(hex string) (BlockHash, error) {
	var h BlockHash
	if err := decodeHash(h[:], hex); err != nil {
		return BlockHash{}, fmt.Errorf("invalid block hash: %w", err)
	}

	return h, nil
}

// IsZero reports whether the hash carries no value.
func (h BlockHash) IsZero() bool {
	return h == BlockHash{}
}

// String implements the fmt.Stringer interface.
func (h BlockHash) String() string {
	return hexutil.Encode(h[:])
}

// MarshalText implements the encoding.TextMarshaler interface so the hash
// can key JSON maps.
func (h BlockHash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *BlockHash) UnmarshalText(text []byte) error {
	return decodeHash(h[:], string(text))
}

// =============================================================================

// decodeHash parses a 32 byte hex string into dst.
func decodeHash(dst []byte, hex string) error {
	data, err := hexutil.Decode(hex)
	if err != nil {
		return err
	}

	if len(data) != HashLength {
		return fmt.Errorf("hash must be %d bytes, got %d", HashLength, len(data))
	}

	copy(dst, data)
	return nil
}
