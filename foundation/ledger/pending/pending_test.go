package pending_test

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/tallychain/tally/foundation/ledger/pending"
	"github.com/tallychain/tally/foundation/ledger/transaction"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	alice = "0xaaaa567890123456789012345678901234567890"
	bob   = "0xbbbb567890123456789012345678901234567890"
)

func makeTx(t *testing.T, sender string, nonce uint64) *transaction.Transaction {
	payload := []byte(fmt.Sprintf("%s:%d", sender, nonce))

	header := transaction.Header{
		SenderID:    transaction.AccountID(sender),
		Nonce:       nonce,
		PayloadSize: uint32(len(payload)),
		Expiry:      9000,
	}

	tx, err := transaction.New(header, payload, transaction.Signatures{{KeyIdx: 0, Sig: []byte("sig")}}, 1)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	return tx
}

func accountID(t *testing.T, hex string) transaction.AccountID {
	id, err := transaction.ToAccountID(hex)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the account id: %v", failed, err)
	}

	return id
}

// mustPanic runs fn and fails the test unless it panicked.
func mustPanic(t *testing.T, testID int, msg string, fn func()) {
	t.Helper()

	defer func() {
		if recover() == nil {
			t.Fatalf("\t%s\tTest %d:\t%s", failed, testID, msg)
		}
		t.Logf("\t%s\tTest %d:\t%s", success, testID, msg)
	}()

	fn()
}

// =============================================================================

func Test_ForwardWalk(t *testing.T) {
	t.Log("Given an account with outstanding nonces five through seven.")
	{
		t.Logf("\tTest 0:\tWhen the followed branch consumes them one block at a time.")
		{
			table := pending.New()
			aliceID := accountID(t, alice)

			tx5 := makeTx(t, alice, 5)
			tx6 := makeTx(t, alice, 6)
			tx7 := makeTx(t, alice, 7)

			table.Extend(5, tx5)
			table.Extend(5, tx6)
			table.Extend(5, tx7)

			r, exists := table.Range(aliceID)
			if !exists || r != (pending.Range{NextNonce: 5, HighNonce: 7}) {
				t.Fatalf("\t%s\tTest 0:\tShould hold the range [5, 7]: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 0:\tShould hold the range [5, 7].", success)

			table.Forward([]*transaction.Transaction{tx5})
			if r, _ := table.Range(aliceID); r != (pending.Range{NextNonce: 6, HighNonce: 7}) {
				t.Fatalf("\t%s\tTest 0:\tShould advance to [6, 7]: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 0:\tShould advance to [6, 7].", success)

			table.Forward([]*transaction.Transaction{tx6})
			if r, _ := table.Range(aliceID); r != (pending.Range{NextNonce: 7, HighNonce: 7}) {
				t.Fatalf("\t%s\tTest 0:\tShould advance to [7, 7]: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 0:\tShould advance to [7, 7].", success)

			table.Forward([]*transaction.Transaction{tx7})
			if _, exists := table.Range(aliceID); exists {
				t.Fatalf("\t%s\tTest 0:\tShould drop the account once the range is consumed.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop the account once the range is consumed.", success)
		}
	}
}

func Test_ReverseUndoesForward(t *testing.T) {
	t.Log("Given a block that consumed transactions from two accounts.")
	{
		t.Logf("\tTest 0:\tWhen the followed branch steps back over the block.")
		{
			table := pending.New()

			blockTxs := []*transaction.Transaction{
				makeTx(t, alice, 5),
				makeTx(t, bob, 2),
				makeTx(t, alice, 6),
				makeTx(t, alice, 7),
				makeTx(t, bob, 3),
			}

			table.Extend(5, blockTxs[0])
			table.Extend(5, blockTxs[2])
			table.Extend(5, blockTxs[3])
			table.Extend(2, blockTxs[1])
			table.Extend(2, blockTxs[4])

			before := table.Ranges()

			table.Forward(blockTxs)
			if table.Len() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould consume every outstanding range: %d accounts left", failed, table.Len())
			}
			t.Logf("\t%s\tTest 0:\tShould consume every outstanding range.", success)

			table.Reverse(blockTxs)
			if !reflect.DeepEqual(table.Ranges(), before) {
				t.Fatalf("\t%s\tTest 0:\tShould restore the table exactly.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould restore the table exactly.", success)
		}

		t.Logf("\tTest 1:\tWhen only part of a range was consumed.")
		{
			table := pending.New()
			aliceID := accountID(t, alice)

			tx5 := makeTx(t, alice, 5)
			tx6 := makeTx(t, alice, 6)

			table.Extend(5, tx5)
			table.Extend(5, tx6)

			table.Forward([]*transaction.Transaction{tx5})
			table.Reverse([]*transaction.Transaction{tx5})

			if r, _ := table.Range(aliceID); r != (pending.Range{NextNonce: 5, HighNonce: 6}) {
				t.Fatalf("\t%s\tTest 1:\tShould restore the partial range: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 1:\tShould restore the partial range.", success)
		}
	}
}

func Test_CheckedExtend(t *testing.T) {
	t.Log("Given transactions that may no longer be relevant.")
	{
		t.Logf("\tTest 0:\tWhen extending with fresh and stale nonces.")
		{
			table := pending.New()
			aliceID := accountID(t, alice)

			if !table.CheckedExtend(5, makeTx(t, alice, 6)) {
				t.Fatalf("\t%s\tTest 0:\tShould record a nonce at or above the next nonce.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould record a nonce at or above the next nonce.", success)

			if table.CheckedExtend(5, makeTx(t, alice, 4)) {
				t.Fatalf("\t%s\tTest 0:\tShould skip a stale nonce silently.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould skip a stale nonce silently.", success)

			if r, _ := table.Range(aliceID); r != (pending.Range{NextNonce: 5, HighNonce: 6}) {
				t.Fatalf("\t%s\tTest 0:\tShould leave the range untouched by the skip: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the range untouched by the skip.", success)
		}
	}
}

func Test_InternalFaults(t *testing.T) {
	t.Log("Given calls that violate the table's preconditions.")
	{
		table := pending.New()
		table.Extend(5, makeTx(t, alice, 5))

		mustPanic(t, 0, "Should fail hard extending below the next nonce.", func() {
			table.Extend(6, makeTx(t, alice, 5))
		})

		mustPanic(t, 1, "Should fail hard forwarding an account with no range.", func() {
			table.Forward([]*transaction.Transaction{makeTx(t, bob, 1)})
		})

		mustPanic(t, 2, "Should fail hard forwarding the wrong nonce.", func() {
			table.Forward([]*transaction.Transaction{makeTx(t, alice, 6)})
		})

		mustPanic(t, 3, "Should fail hard reversing a nonce that was not consumed last.", func() {
			table.Reverse([]*transaction.Transaction{makeTx(t, alice, 3)})
		})
	}
}

func Test_Shrink(t *testing.T) {
	t.Log("Given ranges that must shrink after transactions disappeared.")
	{
		t.Logf("\tTest 0:\tWhen capping and dropping ranges.")
		{
			table := pending.New()
			aliceID := accountID(t, alice)
			bobID := accountID(t, bob)

			table.Extend(5, makeTx(t, alice, 9))
			table.Extend(2, makeTx(t, bob, 2))

			table.Shrink(aliceID, 6, true)
			if r, _ := table.Range(aliceID); r != (pending.Range{NextNonce: 5, HighNonce: 6}) {
				t.Fatalf("\t%s\tTest 0:\tShould cap the high nonce: %+v", failed, r)
			}
			t.Logf("\t%s\tTest 0:\tShould cap the high nonce.", success)

			table.Shrink(bobID, 0, false)
			if _, exists := table.Range(bobID); exists {
				t.Fatalf("\t%s\tTest 0:\tShould drop an account with nothing tracked.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop an account with nothing tracked.", success)

			table.Shrink(aliceID, 3, true)
			if _, exists := table.Range(aliceID); exists {
				t.Fatalf("\t%s\tTest 0:\tShould drop a range capped below its next nonce.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop a range capped below its next nonce.", success)
		}
	}
}
