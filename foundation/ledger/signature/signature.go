// Package signature provides the cryptographic support for signing and
// verifying the artifacts moving through the ledger.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// SignatureLength is the byte length of a serialized signature. Only the R
// and S components of the ECDSA signature are retained since verification
// happens against a known public key and never by recovery.
const SignatureLength = 64

// PublicKeyLength is the byte length of a compressed secp256k1 public key.
const PublicKeyLength = 33

// =============================================================================

// Hash returns a unique string for the specified value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// =============================================================================

// Sign uses the specified private key to sign the digest. The returned
// signature carries the R and S components only.
func Sign(digest [32]byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(stamp(digest), privateKey)
	if err != nil {
		return nil, fmt.Errorf("unable to sign: %w", err)
	}

	return sig[:SignatureLength], nil
}

// Verify reports whether the signature was produced over the digest by the
// holder of the specified compressed public key.
func Verify(digest [32]byte, sig []byte, publicKey []byte) bool {
	if len(sig) != SignatureLength {
		return false
	}

	if len(publicKey) != PublicKeyLength {
		return false
	}

	return crypto.VerifySignature(publicKey, stamp(digest), sig)
}

// PublicKeyBytes returns the compressed serialized form of the public key.
func PublicKeyBytes(publicKey *ecdsa.PublicKey) []byte {
	return crypto.CompressPubkey(publicKey)
}

// PublicKeyHex returns the hex encoding wallets and genesis documents use to
// carry a public key.
func PublicKeyHex(publicKey *ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.CompressPubkey(publicKey))
}

// DecodePublicKey validates and decodes a hex encoded compressed public key.
func DecodePublicKey(hexKey string) ([]byte, error) {
	data, err := hexutil.Decode(hexKey)
	if err != nil {
		return nil, fmt.Errorf("unable to decode public key: %w", err)
	}

	if _, err := crypto.DecompressPubkey(data); err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	return data, nil
}

// SignatureString returns the hex encoding of a signature for display.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}

// =============================================================================

// stamp salts the digest with a chain specific prefix so signatures produced
// for this ledger cannot be replayed against any other system.
func stamp(digest [32]byte) []byte {
	stamp := []byte(fmt.Sprintf("\x19Tally Signed Message:\n%d", len(digest)))

	return crypto.Keccak256(stamp, digest[:])
}
