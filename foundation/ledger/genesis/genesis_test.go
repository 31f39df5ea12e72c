package genesis_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tallychain/tally/foundation/ledger/genesis"
	"github.com/tallychain/tally/foundation/ledger/signature"
	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/updates"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	pk1 = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	pk2 = "9f332e3700d8fc2358e3c586e1c6a411f476a72d7f557da2a586bc806e1769c5"
)

// publicKey returns the hex form of the private key's public key.
func publicKey(t *testing.T, hexKey string) string {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the private key: %v", failed, err)
	}

	return signature.PublicKeyHex(&key.PublicKey)
}

// accountID returns the account id the private key controls.
func accountID(t *testing.T, hexKey string) string {
	t.Helper()

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the private key: %v", failed, err)
	}

	return string(transaction.PublicKeyToAccountID(key.PublicKey))
}

// document builds a well formed genesis document for the tests to vary.
func document(t *testing.T) genesis.Genesis {
	t.Helper()

	pub1 := publicKey(t, pk1)
	pub2 := publicKey(t, pk2)

	open := updates.AccessStructure{KeyIndexes: []uint16{0}, Threshold: 1}

	return genesis.Genesis{
		Date:           time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC),
		ChainID:        1,
		TransPerBlock:  20,
		MaxBlockEnergy: 3_000_000,
		Accounts: []genesis.Account{
			{AccountID: accountID(t, pk1), Keys: []string{pub1, pub2}, Threshold: 2},
			{AccountID: accountID(t, pk2), Keys: []string{pub2}, Threshold: 1},
		},
		GovernanceKeys: updates.KeyCollection{
			Root:   updates.HigherLevelKeys{Keys: []updates.Key{updates.Key(pub1)}, Threshold: 1},
			Level1: updates.HigherLevelKeys{Keys: []updates.Key{updates.Key(pub2)}, Threshold: 1},
			Level2: updates.Authorizations{
				Keys:                       []updates.Key{updates.Key(pub1)},
				Protocol:                   open,
				ElectionDifficulty:         open,
				EuroPerEnergy:              open,
				MicroUnitPerEuro:           open,
				FoundationAccount:          open,
				MintDistribution:           open,
				TransactionFeeDistribution: open,
				GASRewards:                 open,
				BakerStakeThreshold:        open,
				AddAnonymityRevoker:        open,
				AddIdentityProvider:        open,
			},
		},
		Parameters: updates.ChainParameters{
			ElectionDifficulty:         updates.ElectionDifficulty{PartsPerHundredThousand: 2_500},
			EuroPerEnergy:              updates.ExchangeRate{Numerator: 1, Denominator: 50_000},
			MicroUnitPerEuro:           updates.ExchangeRate{Numerator: 50_000_000, Denominator: 1},
			FoundationAccount:          transaction.AccountID(accountID(t, pk1)),
			MintDistribution:           updates.MintDistribution{MintPerSlot: updates.MintRate{Mantissa: 7_555_999, Exponent: 16}, BakingReward: 60_000, FinalizationReward: 30_000},
			TransactionFeeDistribution: updates.TransactionFeeDistribution{Baker: 45_000, GasAccount: 45_000},
			GASRewards:                 updates.GASRewards{Baker: 25_000, FinalizationProof: 50, AccountCreation: 200, ChainUpdate: 50},
			BakerStakeThreshold:        updates.BakerStakeThreshold{MinimumThreshold: 14_000_000_000},
		},
	}
}

// write marshals the document into a genesis file under dir.
func write(t *testing.T, dir string, doc genesis.Genesis) string {
	t.Helper()

	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to marshal the document: %v", failed, err)
	}

	path := filepath.Join(dir, "genesis.json")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("\t%s\tShould be able to write the genesis file: %v", failed, err)
	}

	return path
}

// =============================================================================

func Test_LoadGenesis(t *testing.T) {
	t.Log("Given the need to load a genesis document from disk.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen loading a well formed document.", testID)
		{
			doc := document(t)
			path := write(t, t.TempDir(), doc)

			loaded, err := genesis.LoadFromFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the genesis file: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to load the genesis file.", success, testID)

			if loaded.ChainID != doc.ChainID || loaded.TransPerBlock != doc.TransPerBlock || loaded.MaxBlockEnergy != doc.MaxBlockEnergy {
				t.Errorf("\t%s\tTest %d:\tShould get the chain settings back.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get the chain settings back.", success, testID)
			}

			if len(loaded.Accounts) != 2 || loaded.Accounts[0].Threshold != 2 || len(loaded.Accounts[0].Keys) != 2 {
				t.Errorf("\t%s\tTest %d:\tShould get the declared accounts back.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get the declared accounts back.", success, testID)
			}

			if loaded.GovernanceKeys.Root.Threshold != 1 || len(loaded.GovernanceKeys.Level2.Keys) != 1 {
				t.Errorf("\t%s\tTest %d:\tShould get the governance keys back.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get the governance keys back.", success, testID)
			}

			if loaded.Parameters.FoundationAccount != doc.Parameters.FoundationAccount {
				t.Errorf("\t%s\tTest %d:\tShould get the chain parameters back.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould get the chain parameters back.", success, testID)
			}
		}

		testID++
		t.Logf("\tTest %d:\tWhen the document declares broken accounts.", testID)
		{
			dir := t.TempDir()

			doc := document(t)
			doc.Accounts[0].AccountID = "not-an-address"
			if _, err := genesis.LoadFromFile(write(t, dir, doc)); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject a malformed account id.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a malformed account id.", success, testID)
			}

			doc = document(t)
			doc.Accounts[1].AccountID = doc.Accounts[0].AccountID
			if _, err := genesis.LoadFromFile(write(t, dir, doc)); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject a duplicated account.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a duplicated account.", success, testID)
			}

			doc = document(t)
			doc.Accounts[1].Threshold = 2
			if _, err := genesis.LoadFromFile(write(t, dir, doc)); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject a threshold above the key count.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a threshold above the key count.", success, testID)
			}

			doc = document(t)
			doc.Accounts[0].Keys[0] = "zz"
			if _, err := genesis.LoadFromFile(write(t, dir, doc)); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould reject a key that does not decode.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould reject a key that does not decode.", success, testID)
			}
		}

		testID++
		t.Logf("\tTest %d:\tWhen the genesis file is missing.", testID)
		{
			if _, err := genesis.LoadFromFile(filepath.Join(t.TempDir(), "genesis.json")); err == nil {
				t.Errorf("\t%s\tTest %d:\tShould report the missing file.", failed, testID)
			} else {
				t.Logf("\t%s\tTest %d:\tShould report the missing file.", success, testID)
			}
		}
	}
}
