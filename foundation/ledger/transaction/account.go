package transaction

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the byte length of the binary form of an account id.
const AddressLength = 20

// AccountID represents the address of an account on the ledger. The value is
// kept in its checksummed hex form so equal addresses compare equal and the
// id can serve directly as a map key.
type AccountID string

// ToAccountID validates a hex encoded address and normalizes it to the
// canonical checksummed form.
func ToAccountID(hex string) (AccountID, error) {
	if !common.IsHexAddress(hex) {
		return "", fmt.Errorf("invalid account format: %q", hex)
	}

	return AccountID(common.HexToAddress(hex).Hex()), nil
}

// BytesToAccountID converts the 20 byte binary form of an address into an
// account id.
func BytesToAccountID(b []byte) AccountID {
	return AccountID(common.BytesToAddress(b).Hex())
}

// PublicKeyToAccountID converts the public key to an account id.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk).Hex())
}

// Bytes returns the 20 byte binary form of the account id.
func (a AccountID) Bytes() []byte {
	return common.HexToAddress(string(a)).Bytes()
}

// IsZero reports whether the account id carries no address.
func (a AccountID) IsZero() bool {
	return a == ""
}

// String implements the fmt.Stringer interface.
func (a AccountID) String() string {
	return string(a)
}
