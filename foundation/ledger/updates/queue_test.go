package updates

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/tallychain/tally/foundation/ledger/wire"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Test_EnqueueSupersede validates the supersede rule: accepting an update
// drops every queued update that would take effect at or after it, and every
// acceptance consumes one sequence number.
func Test_EnqueueSupersede(t *testing.T) {
	t.Log("Given the need to schedule updates against one queue.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen accepting updates out of effective time order.", testID)
		{
			q := NewQueue[BakerStakeThreshold](1)

			q.Enqueue(1000, BakerStakeThreshold{MinimumThreshold: 500})
			q.Enqueue(2000, BakerStakeThreshold{MinimumThreshold: 600})

			if q.Len() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould hold 2 entries, got %d.", failed, testID, q.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould hold 2 entries.", success, testID)

			q.Enqueue(1500, BakerStakeThreshold{MinimumThreshold: 700})

			if q.Len() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould drop the later entry, got %d entries.", failed, testID, q.Len())
			}
			if q.Entries[1].EffectiveTime != 1500 || q.Entries[1].Update.MinimumThreshold != 700 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the new entry last, got %+v.", failed, testID, q.Entries[1])
			}
			t.Logf("\t%s\tTest %d:\tShould supersede the entry at a later time.", success, testID)

			q.Enqueue(1000, BakerStakeThreshold{MinimumThreshold: 800})

			if q.Len() != 1 || q.Entries[0].Update.MinimumThreshold != 800 {
				t.Fatalf("\t%s\tTest %d:\tShould supersede everything at or after the new time, got %+v.", failed, testID, q.Entries)
			}
			t.Logf("\t%s\tTest %d:\tShould supersede everything at or after the new time.", success, testID)

			if q.NextSequence != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould consume one sequence number per acceptance, got %d.", failed, testID, q.NextSequence)
			}
			t.Logf("\t%s\tTest %d:\tShould consume one sequence number per acceptance.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen popping the due entries.", testID)
		{
			q := NewQueue[BakerStakeThreshold](1)
			q.Enqueue(100, BakerStakeThreshold{MinimumThreshold: 1})
			q.Enqueue(200, BakerStakeThreshold{MinimumThreshold: 2})
			q.Enqueue(300, BakerStakeThreshold{MinimumThreshold: 3})

			if due := q.PopDue(99); due != nil {
				t.Fatalf("\t%s\tTest %d:\tShould pop nothing before the first time, got %d entries.", failed, testID, len(due))
			}
			t.Logf("\t%s\tTest %d:\tShould pop nothing before the first time.", success, testID)

			due := q.PopDue(200)
			if len(due) != 2 || due[0].EffectiveTime != 100 || due[1].EffectiveTime != 200 {
				t.Fatalf("\t%s\tTest %d:\tShould pop the due entries oldest first, got %+v.", failed, testID, due)
			}
			if q.Len() != 1 || q.NextSequence != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the rest and the sequence number, got %d entries seq %d.", failed, testID, q.Len(), q.NextSequence)
			}
			t.Logf("\t%s\tTest %d:\tShould pop the due entries and keep the rest.", success, testID)
		}
	}
}

// Test_QueueCodec validates the queue wire form round trips byte for byte
// and that structural corruption is rejected.
func Test_QueueCodec(t *testing.T) {
	t.Log("Given the need to move a queue across the wire.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen encoding and decoding a populated queue.", testID)
		{
			q := NewQueue[BakerStakeThreshold](7)
			q.Enqueue(100, BakerStakeThreshold{MinimumThreshold: 11})
			q.Enqueue(200, BakerStakeThreshold{MinimumThreshold: 22})

			var buf bytes.Buffer
			if err := q.EncodeTo(&buf, writeEvent[BakerStakeThreshold]); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould encode the queue: %v", failed, testID, err)
			}

			// 8 sequence bytes, two entries of marker+time+threshold,
			// one end marker.
			if want := 8 + 2*(1+8+8) + 1; buf.Len() != want {
				t.Fatalf("\t%s\tTest %d:\tShould encode %d bytes, got %d.", failed, testID, want, buf.Len())
			}
			t.Logf("\t%s\tTest %d:\tShould encode the expected byte count.", success, testID)

			got, err := DecodeQueue(bytes.NewReader(buf.Bytes()), decodeBakerStakeThreshold)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould decode the queue: %v", failed, testID, err)
			}
			if !reflect.DeepEqual(got, q) {
				t.Fatalf("\t%s\tTest %d:\tShould decode the same queue.\n\tgot: %+v\n\texp: %+v", failed, testID, got, q)
			}
			t.Logf("\t%s\tTest %d:\tShould decode the same queue.", success, testID)

			var again bytes.Buffer
			if err := got.EncodeTo(&again, writeEvent[BakerStakeThreshold]); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould re-encode the queue: %v", failed, testID, err)
			}
			if !bytes.Equal(again.Bytes(), buf.Bytes()) {
				t.Fatalf("\t%s\tTest %d:\tShould re-encode byte for byte.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould re-encode byte for byte.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the entry marker is corrupt.", testID)
		{
			q := NewQueue[BakerStakeThreshold](7)
			q.Enqueue(100, BakerStakeThreshold{MinimumThreshold: 11})

			var buf bytes.Buffer
			if err := q.EncodeTo(&buf, writeEvent[BakerStakeThreshold]); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould encode the queue: %v", failed, testID, err)
			}

			data := buf.Bytes()
			data[8] = 9

			if _, err := DecodeQueue(bytes.NewReader(data), decodeBakerStakeThreshold); !errors.Is(err, wire.ErrMalformed) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an undefined marker, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an undefined marker.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen the effective times do not ascend.", testID)
		{
			var buf bytes.Buffer
			wire.WriteUint64(&buf, 7)
			for i := 0; i < 2; i++ {
				wire.WriteUint8(&buf, queueEntryMarker)
				wire.WriteUint64(&buf, 100)
				wire.WriteUint64(&buf, 11)
			}
			wire.WriteUint8(&buf, queueEndMarker)

			if _, err := DecodeQueue(bytes.NewReader(buf.Bytes()), decodeBakerStakeThreshold); !errors.Is(err, wire.ErrMalformed) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a repeated effective time, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a repeated effective time.", success, testID)
		}

		testID = 3
		t.Logf("\tTest %d:\tWhen the end marker is missing.", testID)
		{
			q := NewQueue[BakerStakeThreshold](7)
			q.Enqueue(100, BakerStakeThreshold{MinimumThreshold: 11})

			var buf bytes.Buffer
			if err := q.EncodeTo(&buf, writeEvent[BakerStakeThreshold]); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould encode the queue: %v", failed, testID, err)
			}

			data := buf.Bytes()[:buf.Len()-1]

			if _, err := DecodeQueue(bytes.NewReader(data), decodeBakerStakeThreshold); !errors.Is(err, wire.ErrMalformed) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the truncated queue, got %v.", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the truncated queue.", success, testID)
		}
	}
}
