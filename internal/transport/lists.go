package transport

import "fmt"

// writeLoc tags the scheduling queue a stream currently belongs to. A stream
// is in at most one queue at any instant; transitions are validated so a
// duplicate insertion is impossible by construction rather than by runtime
// de-duplication.
type writeLoc uint8

const (
	writeLocIdle writeLoc = iota
	writeLocWritable
	writeLocStalled
	writeLocWriting
)

func (l writeLoc) String() string {
	switch l {
	case writeLocIdle:
		return "idle"
	case writeLocWritable:
		return "writable"
	case writeLocStalled:
		return "stalled"
	case writeLocWriting:
		return "writing"
	default:
		return fmt.Sprintf("unknown_write_loc_%d", uint8(l))
	}
}

// afterWrite records where a stream written this pass must be re-queued by
// the finalizer: back to writable when its buffer still holds bytes, or to
// stalled-by-transport when the transport window ran out mid-stream.
type afterWrite uint8

const (
	afterWriteIdle afterWrite = iota
	afterWriteWritable
	afterWriteStalled
)

func (t *Transport) transition(s *Stream, from, to writeLoc) {
	if s.loc != from {
		panic(fmt.Sprintf("transport: stream %d write location is %s, expected %s (moving to %s)", s.id, s.loc, from, to))
	}
	s.loc = to
}

// enqueueWritable appends s to the writable queue. The stream must not be in
// any queue.
func (t *Transport) enqueueWritable(s *Stream) {
	t.transition(s, writeLocIdle, writeLocWritable)
	t.writable = append(t.writable, s)
}

// popWritable removes and returns the stream at the head of the writable
// queue, or nil when the queue is empty.
func (t *Transport) popWritable() *Stream {
	if len(t.writable) == 0 {
		return nil
	}
	s := t.writable[0]
	t.writable[0] = nil
	t.writable = t.writable[1:]
	t.transition(s, writeLocWritable, writeLocIdle)
	return s
}

// enqueueStalled parks s in the stalled-by-transport queue.
func (t *Transport) enqueueStalled(s *Stream) {
	t.transition(s, writeLocIdle, writeLocStalled)
	t.stalled = append(t.stalled, s)
}

// popStalled removes and returns a stream from the stalled-by-transport
// queue, or nil when the queue is empty. Promotion order is not significant.
func (t *Transport) popStalled() *Stream {
	if len(t.stalled) == 0 {
		return nil
	}
	s := t.stalled[0]
	t.stalled[0] = nil
	t.stalled = t.stalled[1:]
	t.transition(s, writeLocStalled, writeLocIdle)
	return s
}

// enqueueWriting appends s to the writing queue and reports whether it was
// newly inserted. A stream already in the writing queue stays where it is.
func (t *Transport) enqueueWriting(s *Stream) bool {
	if s.loc == writeLocWriting {
		return false
	}
	t.transition(s, writeLocIdle, writeLocWriting)
	t.writing = append(t.writing, s)
	return true
}

// popWriting removes and returns the stream at the head of the writing
// queue, or nil when the queue is empty.
func (t *Transport) popWriting() *Stream {
	if len(t.writing) == 0 {
		return nil
	}
	s := t.writing[0]
	t.writing[0] = nil
	t.writing = t.writing[1:]
	t.transition(s, writeLocWriting, writeLocIdle)
	return s
}
