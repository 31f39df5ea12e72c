package updates

import (
	"fmt"
	"io"

	"github.com/tallychain/tally/foundation/ledger/wire"
)

// Queue wire markers. Every serialized entry sits behind a continuation
// marker and the end marker closes the queue.
const (
	queueEndMarker   = 0
	queueEntryMarker = 1
)

// Timed pairs an update event with the time it takes effect.
type Timed[E any] struct {
	EffectiveTime uint64 `json:"effectiveTime"`
	Update        E      `json:"update"`
}

// Queue holds the scheduled updates of one governable concern ordered by
// strictly ascending effective time, together with the sequence number the
// next accepted update instruction must carry. Accepting an update whose
// effective time does not exceed an already queued one supersedes that
// entry, the chain never applies both.
type Queue[E any] struct {
	NextSequence uint64     `json:"nextSequenceNumber"`
	Entries      []Timed[E] `json:"queue"`
}

// NewQueue constructs a queue that will accept sequence number seq first.
func NewQueue[E any](seq uint64) *Queue[E] {
	return &Queue[E]{
		NextSequence: seq,
	}
}

// =============================================================================

// Enqueue schedules the update and consumes one sequence number. Every
// queued entry that would take effect at or after the new update is dropped
// in its favor. Callers only enqueue updates that take effect in the future
// of the updates already applied.
func (q *Queue[E]) Enqueue(effectiveTime uint64, update E) {
	keep := q.Entries[:0]
	for _, e := range q.Entries {
		if e.EffectiveTime < effectiveTime {
			keep = append(keep, e)
		}
	}

	q.Entries = append(keep, Timed[E]{EffectiveTime: effectiveTime, Update: update})
	q.NextSequence++
}

// PopDue removes and returns the entries due at the given time, oldest
// first. The sequence number does not move, it only tracks acceptance.
func (q *Queue[E]) PopDue(now uint64) []Timed[E] {
	cut := 0
	for cut < len(q.Entries) && q.Entries[cut].EffectiveTime <= now {
		cut++
	}

	if cut == 0 {
		return nil
	}

	due := make([]Timed[E], cut)
	copy(due, q.Entries[:cut])
	q.Entries = q.Entries[cut:]

	return due
}

// Len returns the number of scheduled entries.
func (q *Queue[E]) Len() int {
	return len(q.Entries)
}

// =============================================================================

// EncodeTo writes the queue wire form: the next sequence number, every
// entry behind a continuation marker, then the end marker. writeEvent
// serializes the event payload.
func (q *Queue[E]) EncodeTo(w io.Writer, writeEvent func(io.Writer, E) error) error {
	if err := wire.WriteUint64(w, q.NextSequence); err != nil {
		return err
	}

	for _, e := range q.Entries {
		if err := wire.WriteUint8(w, queueEntryMarker); err != nil {
			return err
		}
		if err := wire.WriteUint64(w, e.EffectiveTime); err != nil {
			return err
		}
		if err := writeEvent(w, e.Update); err != nil {
			return err
		}
	}

	return wire.WriteUint8(w, queueEndMarker)
}

// DecodeQueue parses a queue written by EncodeTo. Any marker other than the
// two defined ones and any entry whose effective time does not strictly
// ascend past its predecessor reject the whole queue.
func DecodeQueue[E any](r io.Reader, readEvent func(io.Reader) (E, error)) (*Queue[E], error) {
	seq, err := wire.ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("queue sequence number: %w", err)
	}

	q := Queue[E]{
		NextSequence: seq,
	}

	var last uint64
	for {
		marker, err := wire.ReadUint8(r)
		if err != nil {
			return nil, fmt.Errorf("queue marker: %w", err)
		}

		if marker == queueEndMarker {
			break
		}
		if marker != queueEntryMarker {
			return nil, fmt.Errorf("queue marker %d is not defined: %w", marker, wire.ErrMalformed)
		}

		effectiveTime, err := wire.ReadUint64(r)
		if err != nil {
			return nil, fmt.Errorf("queue entry time: %w", err)
		}

		if len(q.Entries) > 0 && effectiveTime <= last {
			return nil, fmt.Errorf("queue time %d does not ascend past %d: %w", effectiveTime, last, wire.ErrMalformed)
		}

		update, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("queue entry event: %w", err)
		}

		q.Entries = append(q.Entries, Timed[E]{EffectiveTime: effectiveTime, Update: update})
		last = effectiveTime
	}

	return &q, nil
}

// =============================================================================

// copyQueue deep copies a queue using cp to copy each event.
func copyQueue[E any](q *Queue[E], cp func(E) E) *Queue[E] {
	c := Queue[E]{
		NextSequence: q.NextSequence,
	}

	if len(q.Entries) > 0 {
		c.Entries = make([]Timed[E], len(q.Entries))
		for i, e := range q.Entries {
			c.Entries[i] = Timed[E]{EffectiveTime: e.EffectiveTime, Update: cp(e.Update)}
		}
	}

	return &c
}
