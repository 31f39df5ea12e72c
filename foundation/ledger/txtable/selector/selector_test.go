package selector_test

import (
	"fmt"
	"testing"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable/selector"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

const (
	alice = "0xaaaa567890123456789012345678901234567890"
	bob   = "0xbbbb567890123456789012345678901234567890"
)

func makeTx(t *testing.T, sender string, nonce uint64, arrival uint64) *transaction.Transaction {
	payload := []byte(fmt.Sprintf("%s:%d", sender, nonce))

	header := transaction.Header{
		SenderID:    transaction.AccountID(sender),
		Nonce:       nonce,
		PayloadSize: uint32(len(payload)),
		Expiry:      9000,
	}

	tx, err := transaction.New(header, payload, transaction.Signatures{{KeyIdx: 0, Sig: []byte("sig")}}, arrival)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	return tx
}

func candidates(t *testing.T) map[transaction.AccountID][]*transaction.Transaction {
	aliceID, err := transaction.ToAccountID(alice)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the account id: %v", failed, err)
	}
	bobID, err := transaction.ToAccountID(bob)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the account id: %v", failed, err)
	}

	return map[transaction.AccountID][]*transaction.Transaction{
		aliceID: {
			makeTx(t, alice, 1, 40),
			makeTx(t, alice, 2, 10),
			makeTx(t, alice, 3, 60),
		},
		bobID: {
			makeTx(t, bob, 7, 20),
			makeTx(t, bob, 8, 50),
		},
	}
}

// nonceOrderKept verifies no account's transactions were reordered.
func nonceOrderKept(selected []*transaction.Transaction) bool {
	last := make(map[transaction.AccountID]uint64)
	for _, tx := range selected {
		if prev, seen := last[tx.SenderID()]; seen && tx.Nonce() <= prev {
			return false
		}
		last[tx.SenderID()] = tx.Nonce()
	}

	return true
}

// =============================================================================

func Test_FairSelect(t *testing.T) {
	t.Log("Given the need to spread a block across accounts.")
	{
		t.Logf("\tTest 0:\tWhen selecting four of five transactions.")
		{
			fn, err := selector.Retrieve(selector.StrategyFair)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to retrieve the strategy: %v", failed, err)
			}

			selected := fn(candidates(t), 4)
			if len(selected) != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould select exactly four transactions: got %d", failed, len(selected))
			}
			t.Logf("\t%s\tTest 0:\tShould select exactly four transactions.", success)

			if !nonceOrderKept(selected) {
				t.Fatalf("\t%s\tTest 0:\tShould keep every account's nonce order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep every account's nonce order.", success)

			firstRow := map[uint64]bool{selected[0].Nonce(): true, selected[1].Nonce(): true}
			if !firstRow[1] || !firstRow[7] {
				t.Fatalf("\t%s\tTest 0:\tShould take one transaction per account per row.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould take one transaction per account per row.", success)
		}

		t.Logf("\tTest 1:\tWhen asking for everything with zero.")
		{
			fn, err := selector.Retrieve(selector.StrategyFair)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to retrieve the strategy: %v", failed, err)
			}

			selected := fn(candidates(t), 0)
			if len(selected) != 5 {
				t.Fatalf("\t%s\tTest 1:\tShould select all five transactions: got %d", failed, len(selected))
			}
			t.Logf("\t%s\tTest 1:\tShould select all five transactions.", success)
		}
	}
}

func Test_ArrivalSelect(t *testing.T) {
	t.Log("Given the need to favor the transactions that waited longest.")
	{
		t.Logf("\tTest 0:\tWhen accounts hold mixed arrival times.")
		{
			fn, err := selector.Retrieve(selector.StrategyArrival)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to retrieve the strategy: %v", failed, err)
			}

			selected := fn(candidates(t), 0)
			if len(selected) != 5 {
				t.Fatalf("\t%s\tTest 0:\tShould select all five transactions: got %d", failed, len(selected))
			}
			t.Logf("\t%s\tTest 0:\tShould select all five transactions.", success)

			if !nonceOrderKept(selected) {
				t.Fatalf("\t%s\tTest 0:\tShould keep every account's nonce order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep every account's nonce order.", success)

			// Bob's nonce 7 arrived at 20, before Alice's nonce 1 at 40.
			if selected[0].Nonce() != 7 {
				t.Fatalf("\t%s\tTest 0:\tShould pick the oldest waiting head first: got nonce %d", failed, selected[0].Nonce())
			}
			t.Logf("\t%s\tTest 0:\tShould pick the oldest waiting head first.", success)
		}
	}
}

func Test_RetrieveUnknown(t *testing.T) {
	t.Log("Given the need to reject a strategy that does not exist.")
	{
		if _, err := selector.Retrieve("best"); err == nil {
			t.Fatalf("\t%s\tShould reject the unknown strategy.", failed)
		}
		t.Logf("\t%s\tShould reject the unknown strategy.", success)
	}
}
