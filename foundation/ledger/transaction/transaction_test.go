package transaction_test

import (
	"bytes"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Private keys used to build signed transactions for these tests.
const (
	pk1 = "8e7f2b5a90c1d4e637fa8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d91"
	pk2 = "1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f809"
	pk3 = "42f1636b1a06b22b60e730a6d75ca44006838cb1f7fd6ac11b48a1b5867620f5"
)

func loadKeys(t *testing.T, hexKeys ...string) []*ecdsa.PrivateKey {
	var keys []*ecdsa.PrivateKey
	for _, h := range hexKeys {
		pk, err := crypto.HexToECDSA(h)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the private key: %v", failed, err)
		}
		keys = append(keys, pk)
	}

	return keys
}

func publicKeys(keys []*ecdsa.PrivateKey) [][]byte {
	var pubs [][]byte
	for _, pk := range keys {
		pubs = append(pubs, signature.PublicKeyBytes(&pk.PublicKey))
	}

	return pubs
}

func signedTx(t *testing.T, nonce uint64, payload []byte, keys []*ecdsa.PrivateKey) *transaction.Transaction {
	header := transaction.Header{
		SenderID:    transaction.PublicKeyToAccountID(keys[0].PublicKey),
		Nonce:       nonce,
		Energy:      3000,
		PayloadSize: uint32(len(payload)),
		Expiry:      1757000000,
	}

	var sigs transaction.Signatures
	for i, pk := range keys {
		sp, err := transaction.Sign(header, payload, uint8(i), pk)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %v", failed, err)
		}
		sigs = append(sigs, sp)
	}

	tx, err := transaction.New(header, payload, sigs, 1756000000)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the transaction: %v", failed, err)
	}

	return tx
}

// =============================================================================

func Test_CodecRoundTrip(t *testing.T) {
	t.Log("Given the need to encode and decode transactions byte for byte.")
	{
		t.Logf("\tTest 0:\tWhen handling a two signature transaction.")
		{
			keys := loadKeys(t, pk1, pk2)
			tx := signedTx(t, 5, []byte("pay the bar tab"), keys)

			data := tx.Encode()
			if len(data) != tx.Size() {
				t.Fatalf("\t%s\tTest 0:\tShould report the encoded length as the size: got %d, exp %d", failed, tx.Size(), len(data))
			}
			t.Logf("\t%s\tTest 0:\tShould report the encoded length as the size.", success)

			tx2, err := transaction.Decode(data, 1756009999)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the encoding: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to decode the encoding.", success)

			if tx2.Hash() != tx.Hash() {
				t.Errorf("\t%s\tTest 0:\tShould compute the same content hash.", failed)
				t.Logf("\t\tTest 0:\tGot: %s", tx2.Hash())
				t.Logf("\t\tTest 0:\tExp: %s", tx.Hash())
			} else {
				t.Logf("\t%s\tTest 0:\tShould compute the same content hash.", success)
			}

			if tx2.Header() != tx.Header() {
				t.Errorf("\t%s\tTest 0:\tShould carry the same header fields.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould carry the same header fields.", success)
			}

			if tx2.Arrival() != 1756009999 {
				t.Errorf("\t%s\tTest 0:\tShould keep the arrival time it was decoded with: got %d", failed, tx2.Arrival())
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the arrival time it was decoded with.", success)
			}

			if !bytes.Equal(tx2.Encode(), data) {
				t.Errorf("\t%s\tTest 0:\tShould re-encode to the original bytes.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould re-encode to the original bytes.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen handling an empty payload.")
		{
			keys := loadKeys(t, pk1)
			tx := signedTx(t, 9, nil, keys)

			tx2, err := transaction.Decode(tx.Encode(), 0)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to decode the encoding: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to decode the encoding.", success)

			if tx2.Hash() != tx.Hash() {
				t.Errorf("\t%s\tTest 1:\tShould compute the same content hash.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould compute the same content hash.", success)
			}
		}
	}
}

func Test_DecodeFaults(t *testing.T) {
	keys := loadKeys(t, pk1, pk2)
	good := signedTx(t, 3, []byte("transfer"), keys).Encode()

	type table struct {
		name string
		data []byte
	}

	tt := []table{
		{name: "empty", data: nil},
		{name: "zero signatures", data: append([]byte{0x00}, good[1:]...)},
		{name: "truncated signature", data: good[:5]},
		{name: "truncated header", data: good[:len(good)-30]},
		{name: "trailing bytes", data: append(append([]byte(nil), good...), 0xff)},
		{name: "short payload", data: good[:len(good)-1]},
	}

	t.Log("Given the need to reject structurally broken transaction bytes.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %s input.", testID, tst.name)
			{
				f := func(t *testing.T) {
					if _, err := transaction.Decode(tst.data, 0); err == nil {
						t.Fatalf("\t%s\tTest %d:\tShould reject the input.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the input.", success, testID)
				}
				t.Run(tst.name, f)
			}
		}
	}
}

func Test_Verify(t *testing.T) {
	keys := loadKeys(t, pk1, pk2, pk3)
	pubs := publicKeys(keys)

	t.Log("Given the need to verify transaction signatures against account keys.")
	{
		t.Logf("\tTest 0:\tWhen the signatures meet the account threshold.")
		{
			tx := signedTx(t, 1, []byte("transfer"), keys[:2])

			if err := tx.Verify(pubs, 2); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the signature set: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the signature set.", success)
		}

		t.Logf("\tTest 1:\tWhen too few signatures are present.")
		{
			tx := signedTx(t, 1, []byte("transfer"), keys[:1])

			if err := tx.Verify(pubs, 2); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould reject the signature set.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the signature set.", success)
		}

		t.Logf("\tTest 2:\tWhen a key index repeats.")
		{
			header := transaction.Header{
				SenderID:    transaction.PublicKeyToAccountID(keys[0].PublicKey),
				Nonce:       1,
				PayloadSize: 8,
				Expiry:      1757000000,
			}
			payload := []byte("transfer")

			sp, err := transaction.Sign(header, payload, 0, keys[0])
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to sign: %v", failed, err)
			}

			tx, err := transaction.New(header, payload, transaction.Signatures{sp, sp}, 0)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to construct: %v", failed, err)
			}

			if err := tx.Verify(pubs, 2); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould reject the duplicate index.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the duplicate index.", success)
		}

		t.Logf("\tTest 3:\tWhen a key index is outside the account key set.")
		{
			tx := signedTx(t, 1, []byte("transfer"), keys)

			if err := tx.Verify(pubs[:2], 2); err == nil {
				t.Fatalf("\t%s\tTest 3:\tShould reject the unknown index.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould reject the unknown index.", success)
		}

		t.Logf("\tTest 4:\tWhen a signature was produced by the wrong key.")
		{
			header := transaction.Header{
				SenderID:    transaction.PublicKeyToAccountID(keys[0].PublicKey),
				Nonce:       1,
				PayloadSize: 8,
				Expiry:      1757000000,
			}
			payload := []byte("transfer")

			sp, err := transaction.Sign(header, payload, 0, keys[1])
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to sign: %v", failed, err)
			}

			tx, err := transaction.New(header, payload, transaction.Signatures{sp}, 0)
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to construct: %v", failed, err)
			}

			if err := tx.Verify(pubs, 1); err == nil {
				t.Fatalf("\t%s\tTest 4:\tShould reject the signature.", failed)
			}
			t.Logf("\t%s\tTest 4:\tShould reject the signature.", success)
		}
	}
}
