package txtable_test

import (
	"testing"

	"github.com/tallychain/tally/foundation/ledger/transaction"
	"github.com/tallychain/tally/foundation/ledger/txtable"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func blockHash(id byte) transaction.BlockHash {
	return transaction.BlockHash{id}
}

// =============================================================================

func Test_StatusLifecycle(t *testing.T) {
	b1 := blockHash(1)
	b2 := blockHash(2)

	t.Log("Given the need to track a transaction across competing blocks.")
	{
		t.Logf("\tTest 0:\tWhen a transaction moves received -> committed -> received.")
		{
			status := txtable.NewStatus(4)
			if status.Kind() != txtable.Received || status.Slot() != 4 {
				t.Fatalf("\t%s\tTest 0:\tShould start received at the given slot: %s slot %d", failed, status.Kind(), status.Slot())
			}
			t.Logf("\t%s\tTest 0:\tShould start received at the given slot.", success)

			status.AddResult(b1, 10, 3)
			if status.Kind() != txtable.Committed {
				t.Fatalf("\t%s\tTest 0:\tShould be committed once a block holds it.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould be committed once a block holds it.", success)

			status.AddResult(b2, 11, 0)
			if status.Slot() != 11 {
				t.Errorf("\t%s\tTest 0:\tShould raise the slot to the maximum observed: got %d", failed, status.Slot())
			} else {
				t.Logf("\t%s\tTest 0:\tShould raise the slot to the maximum observed.", success)
			}

			if index, finalized, ok := status.TransactionIndex(b1); !ok || finalized || index != 3 {
				t.Errorf("\t%s\tTest 0:\tShould report the committed index for the block: (%d, %v, %v)", failed, index, finalized, ok)
			} else {
				t.Logf("\t%s\tTest 0:\tShould report the committed index for the block.", success)
			}

			status.MarkDead(b1)
			if status.Kind() != txtable.Committed {
				t.Fatalf("\t%s\tTest 0:\tShould stay committed while other blocks hold it.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould stay committed while other blocks hold it.", success)

			status.MarkDead(b2)
			if status.Kind() != txtable.Received {
				t.Fatalf("\t%s\tTest 0:\tShould degrade to received when the last block dies.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould degrade to received when the last block dies.", success)

			if status.Slot() != 11 {
				t.Errorf("\t%s\tTest 0:\tShould keep the slot through the degradation: got %d", failed, status.Slot())
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the slot through the degradation.", success)
			}

			if _, _, ok := status.TransactionIndex(b2); ok {
				t.Errorf("\t%s\tTest 0:\tShould no longer report an index for the dead block.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould no longer report an index for the dead block.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen a transaction finalizes.")
		{
			status := txtable.NewStatus(4)

			if err := status.Finalize(b1); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to finalize a received transaction.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to finalize a received transaction.", success)

			status.AddResult(b1, 10, 2)
			status.AddResult(b2, 11, 5)

			if err := status.Finalize(blockHash(9)); err == nil {
				t.Fatalf("\t%s\tTest 1:\tShould refuse to finalize in a block it is not part of.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould refuse to finalize in a block it is not part of.", success)

			if err := status.Finalize(b2); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to finalize in a holding block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould be able to finalize in a holding block.", success)

			if index, finalized, ok := status.TransactionIndex(b2); !ok || !finalized || index != 5 {
				t.Errorf("\t%s\tTest 1:\tShould report the final index: (%d, %v, %v)", failed, index, finalized, ok)
			} else {
				t.Logf("\t%s\tTest 1:\tShould report the final index.", success)
			}

			if _, _, ok := status.TransactionIndex(b1); ok {
				t.Errorf("\t%s\tTest 1:\tShould not report an index for any other block.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould not report an index for any other block.", success)
			}

			status.AddResult(b1, 20, 7)
			status.MarkDead(b2)
			if status.Kind() != txtable.Finalized {
				t.Fatalf("\t%s\tTest 1:\tShould ignore every transform once finalized.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould ignore every transform once finalized.", success)

			view := status.View()
			if view.Status != "finalized" || view.Block != b2.String() || view.Index == nil || *view.Index != 5 {
				t.Errorf("\t%s\tTest 1:\tShould snapshot the finalized view.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould snapshot the finalized view.", success)
			}
		}
	}
}
