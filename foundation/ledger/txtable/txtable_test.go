package txtable_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
)

const (
	alice = "0xaaaa567890123456789012345678901234567890"
	bob   = "0xbbbb567890123456789012345678901234567890"
)

// accountID normalizes a test address the same way the table keys are.
func accountID(t *testing.T, hex string) transaction.AccountID {
	id, err := transaction.ToAccountID(hex)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to parse the account id: %v", failed, err)
	}

	return id
}

// makeTx builds an unverified transaction for table tests. The salt keeps
// the content hash unique when several transactions compete for one nonce.
func makeTx(t *testing.T, sender string, nonce uint64, salt string, expiry uint64, arrival uint64) *transaction.Transaction {
	payload := []byte(fmt.Sprintf("%s:%d:%s", sender, nonce, salt))

	header := transaction.Header{
		SenderID:    transaction.AccountID(sender),
		Nonce:       nonce,
		Energy:      100,
		PayloadSize: uint32(len(payload)),
		Expiry:      expiry,
	}

	sigs := transaction.Signatures{{KeyIdx: 0, Sig: []byte("unverified")}}

	tx, err := transaction.New(header, payload, sigs, arrival)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a transaction: %v", failed, err)
	}

	return tx
}

// =============================================================================

func Test_UpsertAndFloor(t *testing.T) {
	t.Log("Given the need to track transactions with per account nonce floors.")
	{
		t.Logf("\tTest 0:\tWhen inserting transactions for one account.")
		{
			table := txtable.New()
			tx := makeTx(t, alice, 5, "a", 9000, 1)

			tracked, added, err := table.Upsert(tx, 5, 1)
			if err != nil || !added {
				t.Fatalf("\t%s\tTest 0:\tShould be able to insert a fresh transaction: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to insert a fresh transaction.", success)

			tracked2, added, err := table.Upsert(tx, 5, 1)
			if err != nil || added {
				t.Fatalf("\t%s\tTest 0:\tShould treat a duplicate hash as a no-op: %v", failed, err)
			}
			if tracked2 != tracked {
				t.Fatalf("\t%s\tTest 0:\tShould hand back the already tracked instance.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould treat a duplicate hash as a no-op.", success)

			low := makeTx(t, alice, 4, "b", 9000, 1)
			if _, _, err := table.Upsert(low, 5, 1); !errors.Is(err, txtable.ErrNonceTooLow) {
				t.Fatalf("\t%s\tTest 0:\tShould reject a nonce below the account floor: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould reject a nonce below the account floor.", success)

			if next, exists := table.NextNonce(accountID(t, alice)); !exists || next != 5 {
				t.Fatalf("\t%s\tTest 0:\tShould report the account floor: (%d, %v)", failed, next, exists)
			}
			t.Logf("\t%s\tTest 0:\tShould report the account floor.", success)

			txs, accounts := table.Counts()
			if txs != 1 || accounts != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould count one transaction for one account: (%d, %d)", failed, txs, accounts)
			}
			t.Logf("\t%s\tTest 0:\tShould count one transaction for one account.", success)
		}

		t.Logf("\tTest 1:\tWhen the first submission for an account is stale.")
		{
			table := txtable.New()

			low := makeTx(t, bob, 3, "a", 9000, 1)
			if _, _, err := table.Upsert(low, 5, 1); !errors.Is(err, txtable.ErrNonceTooLow) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a nonce below the account floor: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject a nonce below the account floor.", success)

			if _, exists := table.NextNonce(accountID(t, bob)); exists {
				t.Fatalf("\t%s\tTest 1:\tShould not start tracking the account.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould not start tracking the account.", success)

			txs, accounts := table.Counts()
			if txs != 0 || accounts != 0 {
				t.Fatalf("\t%s\tTest 1:\tShould count nothing after the rejection: (%d, %d)", failed, txs, accounts)
			}
			t.Logf("\t%s\tTest 1:\tShould count nothing after the rejection.", success)
		}
	}
}

func Test_CommitPruneFinalize(t *testing.T) {
	b1 := blockHash(1)
	b2 := blockHash(2)

	t.Log("Given a transaction committed on two competing branches.")
	{
		t.Logf("\tTest 0:\tWhen one branch dies and the other finalizes.")
		{
			table := txtable.New()

			txA := makeTx(t, alice, 1, "a", 9000, 1)
			txB := makeTx(t, alice, 1, "b", 9000, 2)

			if _, _, err := table.Upsert(txA, 1, 4); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to insert the first competitor: %v", failed, err)
			}
			if _, _, err := table.Upsert(txB, 1, 4); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to insert the second competitor: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to insert both competitors.", success)

			if err := table.AddResult(txA.Hash(), b1, 10, 0); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to commit into the first branch: %v", failed, err)
			}
			if err := table.AddResult(txA.Hash(), b2, 11, 0); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to commit into the second branch: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to commit into both branches.", success)

			if err := table.MarkDead(txA.Hash(), b1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to prune the losing branch: %v", failed, err)
			}

			if _, view, _ := table.Get(txA.Hash()); view.Status != "committed" {
				t.Fatalf("\t%s\tTest 0:\tShould stay committed through the prune: %s", failed, view.Status)
			}
			t.Logf("\t%s\tTest 0:\tShould stay committed through the prune.", success)

			dropped, err := table.Finalize(txA.Hash(), b2)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to finalize the survivor: %v", failed, err)
			}
			if len(dropped) != 1 || dropped[0].Hash() != txB.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould drop the competing transaction.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop the competing transaction.", success)

			if _, _, exists := table.Get(txB.Hash()); exists {
				t.Fatalf("\t%s\tTest 0:\tShould no longer track the competitor.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould no longer track the competitor.", success)

			_, view, exists := table.Get(txA.Hash())
			if !exists || view.Status != "finalized" || view.Block != b2.String() {
				t.Fatalf("\t%s\tTest 0:\tShould report the finalized status: %+v", failed, view)
			}
			t.Logf("\t%s\tTest 0:\tShould report the finalized status.", success)

			if _, exists := table.NextNonce(accountID(t, alice)); exists {
				t.Fatalf("\t%s\tTest 0:\tShould release the account once it has nothing tracked.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould release the account once it has nothing tracked.", success)
		}

		t.Logf("\tTest 1:\tWhen transitions reference unknown or unfit transactions.")
		{
			table := txtable.New()
			tx := makeTx(t, alice, 1, "a", 9000, 1)

			if err := table.AddResult(tx.Hash(), b1, 1, 0); !errors.Is(err, txtable.ErrUnknownTransaction) {
				t.Fatalf("\t%s\tTest 1:\tShould refuse a commit for an untracked hash: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse a commit for an untracked hash.", success)

			if _, _, err := table.Upsert(tx, 1, 1); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to insert the transaction: %v", failed, err)
			}

			if _, err := table.Finalize(tx.Hash(), b1); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to finalize a received transaction.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to finalize a received transaction.", success)
		}
	}
}

func Test_Run(t *testing.T) {
	t.Log("Given the need to hand a block builder a contiguous nonce run.")
	{
		t.Logf("\tTest 0:\tWhen the account has a gap and competing nonces.")
		{
			table := txtable.New()

			early := makeTx(t, alice, 5, "early", 9000, 10)
			late := makeTx(t, alice, 5, "late", 9000, 50)
			six := makeTx(t, alice, 6, "a", 9000, 20)
			eight := makeTx(t, alice, 8, "a", 9000, 30)

			for _, tx := range []*transaction.Transaction{late, early, six, eight} {
				if _, _, err := table.Upsert(tx, 5, 1); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to insert: %v", failed, err)
				}
			}

			run := table.Run(accountID(t, alice), 5, 8)
			if len(run) != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould stop the run at the first gap: got %d txs", failed, len(run))
			}
			t.Logf("\t%s\tTest 0:\tShould stop the run at the first gap.", success)

			if run[0].Hash() != early.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould pick the earliest arrival for a contested nonce.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould pick the earliest arrival for a contested nonce.", success)

			if run[1].Hash() != six.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould continue the run in nonce order.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould continue the run in nonce order.", success)
		}
	}
}

func Test_PurgeExpired(t *testing.T) {
	b1 := blockHash(1)

	t.Log("Given the need to drop transactions past their expiry.")
	{
		t.Logf("\tTest 0:\tWhen received and committed transactions expire.")
		{
			table := txtable.New()

			stale := makeTx(t, alice, 1, "stale", 100, 1)
			fresh := makeTx(t, alice, 2, "fresh", 9000, 1)
			held := makeTx(t, bob, 1, "held", 100, 1)

			for _, tx := range []*transaction.Transaction{stale, fresh, held} {
				if _, _, err := table.Upsert(tx, 1, 1); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to insert: %v", failed, err)
				}
			}

			if err := table.AddResult(held.Hash(), b1, 5, 0); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to commit the held transaction: %v", failed, err)
			}

			purged := table.PurgeExpired(500)
			if len(purged) != 1 || purged[0].Hash() != stale.Hash() {
				t.Fatalf("\t%s\tTest 0:\tShould purge only the expired received transaction: got %d", failed, len(purged))
			}
			t.Logf("\t%s\tTest 0:\tShould purge only the expired received transaction.", success)

			if _, _, exists := table.Get(held.Hash()); !exists {
				t.Fatalf("\t%s\tTest 0:\tShould keep an expired transaction a block still holds.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould keep an expired transaction a block still holds.", success)

			if max, exists := table.MaxNonce(accountID(t, alice)); !exists || max != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould report the surviving high nonce: (%d, %v)", failed, max, exists)
			}
			t.Logf("\t%s\tTest 0:\tShould report the surviving high nonce.", success)
		}
	}
}
